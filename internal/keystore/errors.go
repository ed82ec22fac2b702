/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package keystore

import "errors"

var (
	ErrDuplicateSlot = errors.New("duplicate keystore slot id")
	ErrEmpty         = errors.New("keystore has no keys")
	ErrMalformed     = errors.New("malformed keystore")
	ErrKeyNotFound   = errors.New("no keystore key matches the public key hint")
	ErrPartition     = errors.New("keystore key not allowed for partition")
)
