/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// SigningKey is a public key that has signed at least one image.
type SigningKey struct {
	ID          int64
	Fingerprint []byte // pubkey hint as stored in the image header
	Algorithm   string
	PublicKey   []byte
	CreatedAt   time.Time
}
