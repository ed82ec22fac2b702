/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package algo is the static table of signature algorithms understood by
// the image header and the keystore.
package algo

import (
	"fmt"
	"strings"
)

// Algorithm identifies a signature scheme. Its value is the authentication
// byte of the image-type field and the key_type of a keystore slot.
type Algorithm uint8

const (
	Auto    Algorithm = 0x00
	ED25519 Algorithm = 0x01
	ECC256  Algorithm = 0x02
	RSA2048 Algorithm = 0x03
	RSA4096 Algorithm = 0x04
	ED448   Algorithm = 0x05
	ECC384  Algorithm = 0x06
	ECC521  Algorithm = 0x07
	RSA3072 Algorithm = 0x08
	None    Algorithm = 0xFF
)

// DefaultHeaderSize is used when neither the caller nor the algorithm asks
// for a larger header.
const DefaultHeaderSize = 256

// Descriptor holds the fixed sizes of one algorithm.
type Descriptor struct {
	Algorithm     Algorithm
	Name          string
	PubKeyLen     int // largest raw public key encoding, also the keystore slot width
	SigLen        int
	MinHeaderSize int
}

// ImageTag is the value stored in the high byte of the image-type TLV.
func (d Descriptor) ImageTag() uint16 {
	return uint16(d.Algorithm) << 8
}

var registry = map[Algorithm]Descriptor{
	None:    {Algorithm: None, Name: "none", PubKeyLen: 0, SigLen: 0, MinHeaderSize: 256},
	ED25519: {Algorithm: ED25519, Name: "ed25519", PubKeyLen: 32, SigLen: 64, MinHeaderSize: 256},
	ECC256:  {Algorithm: ECC256, Name: "ecc256", PubKeyLen: 64, SigLen: 64, MinHeaderSize: 256},
	ECC384:  {Algorithm: ECC384, Name: "ecc384", PubKeyLen: 96, SigLen: 96, MinHeaderSize: 512},
	ECC521:  {Algorithm: ECC521, Name: "ecc521", PubKeyLen: 132, SigLen: 132, MinHeaderSize: 512},
	ED448:   {Algorithm: ED448, Name: "ed448", PubKeyLen: 57, SigLen: 114, MinHeaderSize: 512},
	RSA2048: {Algorithm: RSA2048, Name: "rsa2048", PubKeyLen: 320, SigLen: 256, MinHeaderSize: 512},
	RSA3072: {Algorithm: RSA3072, Name: "rsa3072", PubKeyLen: 448, SigLen: 384, MinHeaderSize: 1024},
	RSA4096: {Algorithm: RSA4096, Name: "rsa4096", PubKeyLen: 576, SigLen: 512, MinHeaderSize: 1024},
}

// All lists the signing algorithms in keystore tag order.
var All = []Algorithm{ED25519, ECC256, RSA2048, RSA4096, ED448, ECC384, ECC521, RSA3072}

// Lookup returns the descriptor for alg.
func Lookup(alg Algorithm) (Descriptor, bool) {
	d, ok := registry[alg]
	return d, ok
}

// MustLookup is Lookup for algorithms already validated by Parse or Resolve.
func MustLookup(alg Algorithm) Descriptor {
	d, ok := registry[alg]
	if !ok {
		panic(fmt.Sprintf("algo: no descriptor for %#x", uint8(alg)))
	}
	return d
}

// FromImageType extracts the algorithm from an image-type field value.
func FromImageType(imageType uint16) (Algorithm, bool) {
	alg := Algorithm(imageType >> 8)
	_, ok := registry[alg]
	return alg, ok
}

func (a Algorithm) String() string {
	if a == Auto {
		return "auto"
	}
	if d, ok := registry[a]; ok {
		return d.Name
	}
	return fmt.Sprintf("algorithm(%#x)", uint8(a))
}

// IsECC reports whether a signs with ECDSA.
func (a Algorithm) IsECC() bool {
	return a == ECC256 || a == ECC384 || a == ECC521
}

// IsRSA reports whether a signs with RSA.
func (a Algorithm) IsRSA() bool {
	return a == RSA2048 || a == RSA3072 || a == RSA4096
}

// IsEdDSA reports whether a is one of the Edwards curves.
func (a Algorithm) IsEdDSA() bool {
	return a == ED25519 || a == ED448
}

// Parse maps a command line name ("ecc256", "rsa4096", "none", "auto") to
// an Algorithm.
func Parse(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "auto":
		return Auto, nil
	case "no-sign", "nosign":
		return None, nil
	}
	for alg, d := range registry {
		if d.Name == n {
			return alg, nil
		}
	}
	return Auto, fmt.Errorf("%w: %q", ErrUnsupported, name)
}

// HeaderSize returns the header size used for alg: the larger of the
// requested size and the algorithm's minimum.
func HeaderSize(requested int, alg Algorithm) int {
	size := requested
	if size <= 0 {
		size = DefaultHeaderSize
	}
	if d, ok := registry[alg]; ok && d.MinHeaderSize > size {
		size = d.MinHeaderSize
	}
	return size
}

// SignatureCandidates lists the algorithms producing signatures of n bytes.
func SignatureCandidates(n int) []Algorithm {
	var out []Algorithm
	for _, alg := range All {
		if registry[alg].SigLen == n {
			out = append(out, alg)
		}
	}
	return out
}
