/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package image assembles signed firmware images and verifies them.
package image

import (
	"github.com/kentakayama/bootsign/internal/algo"
)

// Image type field layout: the high byte is the signature algorithm, the
// low nibble the partition id.
const (
	PartitionBootloader uint8 = 0
	PartitionApp        uint8 = 1
	MaxPartitionID      uint8 = 0x0F

	TypePartitionMask uint16 = 0x000F
	TypeDiff          uint16 = 0x00D0
	TypeAuthMask      uint16 = 0xFF00
)

// ImageType composes the image-type field.
func ImageType(alg algo.Algorithm, partition uint8, diff bool) uint16 {
	t := algo.MustLookup(alg).ImageTag() | uint16(partition)&TypePartitionMask
	if diff {
		t |= TypeDiff
	}
	return t
}

// DeltaInfo carries the delta TLV values. InverseOffset is derived from
// the header size and ForwardAligned when the header is built.
type DeltaInfo struct {
	BaseVersion    uint32
	ForwardSize    int
	ForwardAligned int
	InverseSize    int
}

// InverseOffset is the absolute offset of the inverse patch inside the
// final artifact.
func (d *DeltaInfo) InverseOffset(headerSize int) uint32 {
	return uint32(headerSize + d.ForwardAligned)
}
