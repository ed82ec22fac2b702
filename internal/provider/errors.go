/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package provider

import "errors"

var (
	ErrInvalidKey   = errors.New("invalid key material")
	ErrUnsupported  = errors.New("operation not supported for algorithm")
	ErrSignFailed   = errors.New("signing failed")
	ErrNoPrivateKey = errors.New("private key required")
)
