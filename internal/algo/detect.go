/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package algo

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"slices"
)

// Mode tells Detect what kind of key material it is looking at.
type Mode int

const (
	// ModeSign expects a private key container.
	ModeSign Mode = iota
	// ModeVerify expects public material only (manual signing, sha-only,
	// verification).
	ModeVerify
)

func (m Mode) String() string {
	if m == ModeSign {
		return "sign"
	}
	return "verify"
}

// Result is the outcome of key length detection.
type Result int

const (
	Unknown Result = iota
	Detected
	Ambiguous
)

// Detection reports the algorithm matching a key buffer. Candidates lists
// every algorithm an explicit selection may name for this buffer.
type Detection struct {
	Result     Result
	Algorithm  Algorithm
	Candidates []Algorithm
}

func detected(alg Algorithm, also ...Algorithm) Detection {
	return Detection{Result: Detected, Algorithm: alg, Candidates: append([]Algorithm{alg}, also...)}
}

// Detect guesses the algorithm of key from its length. RSA sized buffers
// holding a parseable key are classified by modulus size instead.
func Detect(key []byte, mode Mode) Detection {
	n := len(key)
	switch {
	case n == 32:
		if mode == ModeSign {
			return detected(ED25519)
		}
		return Detection{Result: Ambiguous, Candidates: []Algorithm{ED25519}}
	case n == 57:
		if mode == ModeVerify {
			return detected(ED448)
		}
	case n == 64:
		if mode == ModeSign {
			return detected(ED25519)
		}
		return detected(ECC256, ED25519)
	case n == 96:
		// ecc256 X||Y||d container; an ecc384 public key needs an explicit
		// selection
		if mode == ModeSign {
			return detected(ECC256)
		}
		return detected(ECC256, ECC384)
	case n == 114:
		return detected(ED448)
	case n == 132:
		if mode == ModeVerify {
			return detected(ECC521)
		}
	case n == 144:
		return detected(ECC384)
	case n == 198:
		return detected(ECC521)
	case n > 128:
		if alg, ok := rsaAlgorithm(key); ok {
			return detected(alg)
		}
		switch {
		case n > 512:
			return detected(RSA4096)
		case n > 256:
			return detected(RSA3072)
		default:
			return detected(RSA2048)
		}
	}
	return Detection{Result: Unknown}
}

// Resolve combines an explicit selection with the detected algorithm.
// Auto requires an unambiguous detection; an explicit choice must be one of
// the legal candidates for the buffer.
func Resolve(explicit Algorithm, key []byte, mode Mode) (Algorithm, error) {
	d := Detect(key, mode)
	if explicit == None {
		return None, nil
	}
	if explicit == Auto {
		switch d.Result {
		case Detected:
			return d.Algorithm, nil
		case Ambiguous:
			return Auto, fmt.Errorf("%w: %d bytes (%s mode)", ErrAmbiguousKey, len(key), mode)
		default:
			return Auto, fmt.Errorf("%w: %d bytes", ErrUnknownKey, len(key))
		}
	}
	if _, ok := registry[explicit]; !ok {
		return Auto, fmt.Errorf("%w: %s", ErrUnsupported, explicit)
	}
	if d.Result == Unknown {
		return Auto, fmt.Errorf("%w: %d bytes", ErrUnknownKey, len(key))
	}
	if !slices.Contains(d.Candidates, explicit) {
		return Auto, fmt.Errorf("%w: %s selected, %d byte key", ErrMismatch, explicit, len(key))
	}
	return explicit, nil
}

func rsaAlgorithm(key []byte) (Algorithm, bool) {
	der := key
	if block, _ := pem.Decode(key); block != nil {
		der = block.Bytes
	}
	var pub *rsa.PublicKey
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		pub = &k.PublicKey
	} else if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rk, ok := k.(*rsa.PrivateKey); ok {
			pub = &rk.PublicKey
		}
	} else if k, err := x509.ParsePKIXPublicKey(der); err == nil {
		pub, _ = k.(*rsa.PublicKey)
	} else if k, err := x509.ParsePKCS1PublicKey(der); err == nil {
		pub = k
	}
	if pub == nil {
		return Auto, false
	}
	switch pub.Size() {
	case 256:
		return RSA2048, true
	case 384:
		return RSA3072, true
	case 512:
		return RSA4096, true
	}
	return Auto, false
}
