/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

type SignedImage struct {
	ID           int64
	Path         string
	Version      uint32
	ImageType    uint16
	HashAlg      string
	Digest       []byte
	SigningKeyID *int64 // NULL for unsigned images
	IsDelta      bool
	BaseVersion  uint32 // zero unless IsDelta
	CreatedAt    time.Time
}
