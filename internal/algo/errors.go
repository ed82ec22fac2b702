/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package algo

import "errors"

var (
	ErrUnsupported  = errors.New("unsupported algorithm")
	ErrUnknownKey   = errors.New("key size does not match any cipher")
	ErrAmbiguousKey = errors.New("key size is ambiguous, select the cipher explicitly")
	ErrMismatch     = errors.New("key size does not match the cipher selected")
	ErrUnknownHash  = errors.New("unsupported hash algorithm")
)
