/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package tlv encodes and decodes the fixed size image header: magic,
// payload size and a run of tag/length/value records padded with 0xFF.
package tlv

import "fmt"

const (
	// Magic is "WOLF" read as a little-endian word.
	Magic uint32 = 0x464C4F57
	// PadByte fills alignment gaps and the header tail.
	PadByte byte = 0xFF
	// PrefixLen is the size of magic plus payload size.
	PrefixLen = 8
	// RecordHeaderLen is the size of a tag plus a length.
	RecordHeaderLen = 4
)

const (
	TagVersion          uint16 = 0x0001
	TagTimestamp        uint16 = 0x0002
	TagSHA256           uint16 = 0x0003
	TagImageType        uint16 = 0x0004
	TagDeltaBase        uint16 = 0x0005
	TagDeltaSize        uint16 = 0x0006
	TagPubKeyHint       uint16 = 0x0010
	TagSHA3_384         uint16 = 0x0013
	TagSHA384           uint16 = 0x0014
	TagDeltaInverse     uint16 = 0x0015
	TagDeltaInverseSize uint16 = 0x0016
	TagSignature        uint16 = 0x0020
)

// TagInfo describes a registered tag. Size 0 means variable length.
// Align is the alignment of the value offset, 0 when none is required.
type TagInfo struct {
	Name  string
	Size  int
	Align int
}

// registry only grows; decoders keep unknown tags as opaque fields.
var registry = map[uint16]TagInfo{
	TagVersion:          {Name: "version", Size: 4, Align: 4},
	TagTimestamp:        {Name: "timestamp", Size: 8, Align: 8},
	TagSHA256:           {Name: "sha256", Size: 32, Align: 8},
	TagImageType:        {Name: "image-type", Size: 2},
	TagDeltaBase:        {Name: "delta-base", Size: 4, Align: 4},
	TagDeltaSize:        {Name: "delta-size", Size: 2},
	TagPubKeyHint:       {Name: "pubkey-hint"},
	TagSHA3_384:         {Name: "sha3-384", Size: 48, Align: 8},
	TagSHA384:           {Name: "sha384", Size: 48, Align: 8},
	TagDeltaInverse:     {Name: "delta-inverse", Size: 4, Align: 4},
	TagDeltaInverseSize: {Name: "delta-inverse-size", Size: 2},
	TagSignature:        {Name: "signature"},
}

// Info returns the registry entry for tag.
func Info(tag uint16) (TagInfo, bool) {
	i, ok := registry[tag]
	return i, ok
}

// TagName returns a printable name for tag.
func TagName(tag uint16) string {
	if i, ok := registry[tag]; ok {
		return i.Name
	}
	return fmt.Sprintf("tag(%#04x)", tag)
}
