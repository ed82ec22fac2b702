/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package provider

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/kentakayama/bootsign/internal/algo"
	cose "github.com/veraison/go-cose"
)

// PublicKey is verification material. Raw is the byte form embedded in
// keystores and hashed into the header fingerprint: the Edwards point for
// ed25519/ed448, X||Y for ECC, PKIX DER for RSA.
type PublicKey struct {
	Algorithm algo.Algorithm
	Raw       []byte
	Key       crypto.PublicKey
}

// PrivateKey is signing material plus its public half.
type PrivateKey struct {
	Algorithm algo.Algorithm
	Signer    crypto.Signer
	Public    *PublicKey
}

func curveFor(alg algo.Algorithm) (elliptic.Curve, int, error) {
	switch alg {
	case algo.ECC256:
		return elliptic.P256(), 32, nil
	case algo.ECC384:
		return elliptic.P384(), 48, nil
	case algo.ECC521:
		return elliptic.P521(), 66, nil
	}
	return nil, 0, fmt.Errorf("%w: %s is not an ECC algorithm", ErrUnsupported, alg)
}

// MarshalContainer returns the on-disk private key container.
func (k *PrivateKey) MarshalContainer() ([]byte, error) {
	switch s := k.Signer.(type) {
	case ed25519.PrivateKey:
		return append([]byte(nil), s...), nil
	case ed448.PrivateKey:
		return append([]byte(nil), s...), nil
	case *ecdsa.PrivateKey:
		_, n, err := curveFor(k.Algorithm)
		if err != nil {
			return nil, err
		}
		d, err := s.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		out := make([]byte, 0, 3*n)
		out = append(out, k.Public.Raw...)
		return append(out, d...), nil
	case *rsa.PrivateKey:
		return x509.MarshalPKCS1PrivateKey(s), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, k.Signer)
}

// ParsePrivateKey decodes a private key container for alg.
func ParsePrivateKey(alg algo.Algorithm, raw []byte) (*PrivateKey, error) {
	switch {
	case alg == algo.ED25519:
		var priv ed25519.PrivateKey
		switch len(raw) {
		case ed25519.SeedSize:
			priv = ed25519.NewKeyFromSeed(raw)
		case ed25519.PrivateKeySize:
			priv = ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
			if string(priv[ed25519.SeedSize:]) != string(raw[ed25519.SeedSize:]) {
				return nil, fmt.Errorf("%w: ed25519 public half does not match the seed", ErrInvalidKey)
			}
		default:
			return nil, fmt.Errorf("%w: ed25519 container is %d bytes", ErrInvalidKey, len(raw))
		}
		pub := priv.Public().(ed25519.PublicKey)
		return &PrivateKey{Algorithm: alg, Signer: priv, Public: &PublicKey{Algorithm: alg, Raw: []byte(pub), Key: pub}}, nil

	case alg == algo.ED448:
		if len(raw) != ed448.PrivateKeySize {
			return nil, fmt.Errorf("%w: ed448 container is %d bytes", ErrInvalidKey, len(raw))
		}
		priv := ed448.NewKeyFromSeed(raw[:ed448.SeedSize])
		if string(priv[ed448.SeedSize:]) != string(raw[ed448.SeedSize:]) {
			return nil, fmt.Errorf("%w: ed448 public half does not match the seed", ErrInvalidKey)
		}
		pub := priv.Public().(ed448.PublicKey)
		return &PrivateKey{Algorithm: alg, Signer: priv, Public: &PublicKey{Algorithm: alg, Raw: []byte(pub), Key: pub}}, nil

	case alg.IsECC():
		curve, n, _ := curveFor(alg)
		if len(raw) != 3*n {
			return nil, fmt.Errorf("%w: %s container is %d bytes, want %d", ErrInvalidKey, alg, len(raw), 3*n)
		}
		priv, err := ecdsa.ParseRawPrivateKey(curve, raw[2*n:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		pubBytes, err := priv.PublicKey.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		if string(pubBytes[1:]) != string(raw[:2*n]) {
			return nil, fmt.Errorf("%w: %s public point does not match the scalar", ErrInvalidKey, alg)
		}
		return &PrivateKey{Algorithm: alg, Signer: priv, Public: &PublicKey{Algorithm: alg, Raw: pubBytes[1:], Key: &priv.PublicKey}}, nil

	case alg.IsRSA():
		priv, err := parseRSAPrivate(raw)
		if err != nil {
			return nil, err
		}
		pub, err := rsaPublic(alg, &priv.PublicKey)
		if err != nil {
			return nil, err
		}
		return &PrivateKey{Algorithm: alg, Signer: priv, Public: pub}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, alg)
}

// ParsePublicKey accepts the raw public form, a private key container
// (only its public half is kept) or, for RSA, DER/PEM encodings.
func ParsePublicKey(alg algo.Algorithm, raw []byte) (*PublicKey, error) {
	switch {
	case alg == algo.ED25519:
		switch len(raw) {
		case ed25519.PublicKeySize:
		case ed25519.PrivateKeySize:
			raw = raw[ed25519.SeedSize:]
		default:
			return nil, fmt.Errorf("%w: ed25519 public key is %d bytes", ErrInvalidKey, len(raw))
		}
		pub := ed25519.PublicKey(append([]byte(nil), raw...))
		return &PublicKey{Algorithm: alg, Raw: []byte(pub), Key: pub}, nil

	case alg == algo.ED448:
		switch len(raw) {
		case ed448.PublicKeySize:
		case ed448.PrivateKeySize:
			raw = raw[ed448.SeedSize:]
		default:
			return nil, fmt.Errorf("%w: ed448 public key is %d bytes", ErrInvalidKey, len(raw))
		}
		pub := ed448.PublicKey(append([]byte(nil), raw...))
		return &PublicKey{Algorithm: alg, Raw: []byte(pub), Key: pub}, nil

	case alg.IsECC():
		curve, n, _ := curveFor(alg)
		switch len(raw) {
		case 2 * n, 3 * n:
			raw = raw[:2*n]
		default:
			return nil, fmt.Errorf("%w: %s public key is %d bytes", ErrInvalidKey, alg, len(raw))
		}
		pub, err := ecdsa.ParseUncompressedPublicKey(curve, append([]byte{0x04}, raw...))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return &PublicKey{Algorithm: alg, Raw: append([]byte(nil), raw...), Key: pub}, nil

	case alg.IsRSA():
		der := raw
		if block, _ := pem.Decode(raw); block != nil {
			der = block.Bytes
		}
		if k, err := x509.ParsePKIXPublicKey(der); err == nil {
			if rk, ok := k.(*rsa.PublicKey); ok {
				return rsaPublic(alg, rk)
			}
		}
		if k, err := x509.ParsePKCS1PublicKey(der); err == nil {
			return rsaPublic(alg, k)
		}
		if priv, err := parseRSAPrivate(raw); err == nil {
			return rsaPublic(alg, &priv.PublicKey)
		}
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, alg)
}

func parseRSAPrivate(raw []byte) (*rsa.PrivateKey, error) {
	der := raw
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	}
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: not an RSA private key", ErrInvalidKey)
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PKCS#8 key is %T", ErrInvalidKey, k)
	}
	return rk, nil
}

func rsaPublic(alg algo.Algorithm, k *rsa.PublicKey) (*PublicKey, error) {
	if want := algo.MustLookup(alg).SigLen; k.Size() != want {
		return nil, fmt.Errorf("%w: %d bit modulus for %s", ErrInvalidKey, k.Size()*8, alg)
	}
	der, err := x509.MarshalPKIXPublicKey(k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &PublicKey{Algorithm: alg, Raw: der, Key: k}, nil
}

// COSEKey returns the public key as a COSE_Key.
func (p *PublicKey) COSEKey() (*cose.Key, error) {
	switch p.Algorithm {
	case algo.ED25519, algo.ED448:
		crv := cose.CurveEd25519
		if p.Algorithm == algo.ED448 {
			crv = cose.CurveEd448
		}
		return &cose.Key{
			Type:      cose.KeyTypeOKP,
			Algorithm: cose.AlgorithmEdDSA,
			Params: map[any]any{
				cose.KeyLabelOKPCurve: crv,
				cose.KeyLabelOKPX:     p.Raw,
			},
		}, nil
	case algo.ECC256, algo.ECC384, algo.ECC521:
		_, n, _ := curveFor(p.Algorithm)
		alg, crv := coseECDSA(p.Algorithm)
		return &cose.Key{
			Type:      cose.KeyTypeEC2,
			Algorithm: alg,
			Params: map[any]any{
				cose.KeyLabelEC2Curve: crv,
				cose.KeyLabelEC2X:     p.Raw[:n],
				cose.KeyLabelEC2Y:     p.Raw[n:],
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: no COSE_Key form for %s", ErrUnsupported, p.Algorithm)
}

func coseECDSA(alg algo.Algorithm) (cose.Algorithm, cose.Curve) {
	switch alg {
	case algo.ECC384:
		return cose.AlgorithmES384, cose.CurveP384
	case algo.ECC521:
		return cose.AlgorithmES512, cose.CurveP521
	}
	return cose.AlgorithmES256, cose.CurveP256
}
