/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package algo

import (
	"fmt"
	"strings"
)

// HashAlgorithm identifies the content digest. Its value is the TLV tag
// the digest is stored under.
type HashAlgorithm uint16

const (
	SHA256   HashAlgorithm = 0x0003
	SHA3_384 HashAlgorithm = 0x0013
	SHA384   HashAlgorithm = 0x0014
)

// Tag is the TLV tag of the digest field.
func (h HashAlgorithm) Tag() uint16 {
	return uint16(h)
}

// Size is the digest length in bytes.
func (h HashAlgorithm) Size() int {
	switch h {
	case SHA256:
		return 32
	case SHA384, SHA3_384:
		return 48
	}
	return 0
}

func (h HashAlgorithm) String() string {
	switch h {
	case SHA256:
		return "SHA256"
	case SHA384:
		return "SHA384"
	case SHA3_384:
		return "SHA3-384"
	}
	return fmt.Sprintf("hash(%#x)", uint16(h))
}

// HashForTag returns the hash algorithm stored under a digest tag.
func HashForTag(tag uint16) (HashAlgorithm, bool) {
	switch HashAlgorithm(tag) {
	case SHA256, SHA384, SHA3_384:
		return HashAlgorithm(tag), true
	}
	return 0, false
}

// ParseHash maps "sha256", "sha384" and "sha3" to a HashAlgorithm.
func ParseHash(name string) (HashAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha256":
		return SHA256, nil
	case "sha384":
		return SHA384, nil
	case "sha3", "sha3-384", "sha3_384":
		return SHA3_384, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHash, name)
}

// DigestTags lists every tag that may carry the content digest.
var DigestTags = []uint16{SHA256.Tag(), SHA3_384.Tag(), SHA384.Tag()}
