/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package provider is the cryptographic capability used by the image and
// keystore tooling. Primitives come from go-cose, circl, x/crypto and the
// Go crypto packages; nothing here implements a primitive itself.
package provider

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/kentakayama/bootsign/internal/algo"
	cose "github.com/veraison/go-cose"
	"golang.org/x/crypto/sha3"
)

// SignOptions tweaks the signature encoding.
type SignOptions struct {
	// EncodeDigestInfo wraps the digest in a PKCS#1 DigestInfo before RSA
	// signing.
	EncodeDigestInfo bool
}

// Provider signs, verifies and hashes on behalf of the image tooling.
type Provider interface {
	GenerateKey(alg algo.Algorithm) (*PrivateKey, error)
	Sign(key *PrivateKey, h algo.HashAlgorithm, digest []byte, opts SignOptions) ([]byte, error)
	Verify(pub *PublicKey, h algo.HashAlgorithm, digest, sig []byte) bool
	NewHash(h algo.HashAlgorithm) (hash.Hash, error)
	Hash(h algo.HashAlgorithm, r io.Reader) ([]byte, error)
}

// Default is the stock provider.
type Default struct {
	// Rand defaults to crypto/rand.
	Rand io.Reader
}

var _ Provider = (*Default)(nil)

func New() *Default {
	return &Default{Rand: rand.Reader}
}

func (d *Default) rand() io.Reader {
	if d.Rand == nil {
		return rand.Reader
	}
	return d.Rand
}

// GenerateKey creates a fresh key pair for alg.
func (d *Default) GenerateKey(alg algo.Algorithm) (*PrivateKey, error) {
	switch {
	case alg == algo.ED25519:
		_, priv, err := ed25519.GenerateKey(d.rand())
		if err != nil {
			return nil, err
		}
		return ParsePrivateKey(alg, priv)
	case alg == algo.ED448:
		_, priv, err := ed448.GenerateKey(d.rand())
		if err != nil {
			return nil, err
		}
		return ParsePrivateKey(alg, priv)
	case alg.IsECC():
		curve, _, _ := curveFor(alg)
		priv, err := ecdsa.GenerateKey(curve, d.rand())
		if err != nil {
			return nil, err
		}
		pub, err := priv.PublicKey.Bytes()
		if err != nil {
			return nil, err
		}
		return &PrivateKey{Algorithm: alg, Signer: priv, Public: &PublicKey{Algorithm: alg, Raw: pub[1:], Key: &priv.PublicKey}}, nil
	case alg.IsRSA():
		priv, err := rsa.GenerateKey(d.rand(), algo.MustLookup(alg).SigLen*8)
		if err != nil {
			return nil, err
		}
		pub, err := rsaPublic(alg, &priv.PublicKey)
		if err != nil {
			return nil, err
		}
		return &PrivateKey{Algorithm: alg, Signer: priv, Public: pub}, nil
	}
	return nil, fmt.Errorf("%w: cannot generate %s keys", ErrUnsupported, alg)
}

// Sign signs the content digest. ECC signatures are the fixed width
// concatenation r||s, Edwards signatures sign the digest as the message,
// RSA uses PKCS#1 v1.5 over the bare digest unless opts ask for a
// DigestInfo.
func (d *Default) Sign(key *PrivateKey, h algo.HashAlgorithm, digest []byte, opts SignOptions) ([]byte, error) {
	if key == nil || key.Signer == nil {
		return nil, ErrNoPrivateKey
	}
	switch {
	case key.Algorithm == algo.ED25519:
		signer, err := cose.NewSigner(cose.AlgorithmEdDSA, key.Signer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignFailed, err)
		}
		return signer.Sign(d.rand(), digest)
	case key.Algorithm == algo.ED448:
		priv, ok := key.Signer.(ed448.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an ed448 key", ErrInvalidKey, key.Signer)
		}
		return ed448.Sign(priv, digest, ""), nil
	case key.Algorithm.IsECC():
		alg, _ := coseECDSA(key.Algorithm)
		signer, err := cose.NewSigner(alg, key.Signer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignFailed, err)
		}
		ds, ok := signer.(cose.DigestSigner)
		if !ok {
			return nil, fmt.Errorf("%w: %s signer cannot sign a digest", ErrUnsupported, key.Algorithm)
		}
		return ds.SignDigest(d.rand(), digest)
	case key.Algorithm.IsRSA():
		priv, ok := key.Signer.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an RSA key", ErrInvalidKey, key.Signer)
		}
		ch := crypto.Hash(0)
		if opts.EncodeDigestInfo {
			ch = cryptoHash(h)
		}
		sig, err := rsa.SignPKCS1v15(d.rand(), priv, ch, digest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignFailed, err)
		}
		return sig, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, key.Algorithm)
}

// Verify checks sig over digest. RSA signatures are accepted with or
// without a DigestInfo wrapper.
func (d *Default) Verify(pub *PublicKey, h algo.HashAlgorithm, digest, sig []byte) bool {
	if pub == nil || pub.Key == nil {
		return false
	}
	switch {
	case pub.Algorithm == algo.ED25519:
		v, err := cose.NewVerifier(cose.AlgorithmEdDSA, pub.Key)
		if err != nil {
			return false
		}
		return v.Verify(digest, sig) == nil
	case pub.Algorithm == algo.ED448:
		k, ok := pub.Key.(ed448.PublicKey)
		return ok && ed448.Verify(k, digest, sig, "")
	case pub.Algorithm.IsECC():
		alg, _ := coseECDSA(pub.Algorithm)
		v, err := cose.NewVerifier(alg, pub.Key)
		if err != nil {
			return false
		}
		dv, ok := v.(cose.DigestVerifier)
		return ok && dv.VerifyDigest(digest, sig) == nil
	case pub.Algorithm.IsRSA():
		k, ok := pub.Key.(*rsa.PublicKey)
		if !ok {
			return false
		}
		if rsa.VerifyPKCS1v15(k, crypto.Hash(0), digest, sig) == nil {
			return true
		}
		ch := cryptoHash(h)
		return ch.Size() == len(digest) && rsa.VerifyPKCS1v15(k, ch, digest, sig) == nil
	}
	return false
}

// NewHash returns a running hash for h.
func (d *Default) NewHash(h algo.HashAlgorithm) (hash.Hash, error) {
	switch h {
	case algo.SHA256:
		return sha256.New(), nil
	case algo.SHA384:
		return sha512.New384(), nil
	case algo.SHA3_384:
		return sha3.New384(), nil
	}
	return nil, fmt.Errorf("%w: %s", algo.ErrUnknownHash, h)
}

// Hash digests r in bounded chunks.
func (d *Default) Hash(h algo.HashAlgorithm, r io.Reader) ([]byte, error) {
	hh, err := d.NewHash(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyBuffer(hh, r, make([]byte, 32*1024)); err != nil {
		return nil, err
	}
	return hh.Sum(nil), nil
}

func cryptoHash(h algo.HashAlgorithm) crypto.Hash {
	switch h {
	case algo.SHA384:
		return crypto.SHA384
	case algo.SHA3_384:
		return crypto.SHA3_384
	}
	return crypto.SHA256
}

// Fingerprint is the header public key hint: the digest of the raw public
// key bytes.
func Fingerprint(p Provider, h algo.HashAlgorithm, pub *PublicKey) ([]byte, error) {
	hh, err := p.NewHash(h)
	if err != nil {
		return nil, err
	}
	hh.Write(pub.Raw)
	return hh.Sum(nil), nil
}
