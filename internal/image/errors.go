/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package image

import "errors"

var (
	ErrInvalidOptions = errors.New("invalid image options")
	ErrMissingDigest  = errors.New("image header carries no digest")
	ErrShortPayload   = errors.New("payload shorter than declared")
	ErrMissingKey     = errors.New("key required for the selected algorithm")
	ErrSignatureSize  = errors.New("signature length does not match the algorithm")
)
