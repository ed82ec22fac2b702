/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tlv

import "errors"

var (
	ErrBadMagic       = errors.New("bad image magic")
	ErrTruncated      = errors.New("truncated header")
	ErrMalformed      = errors.New("malformed TLV record")
	ErrHeaderOverflow = errors.New("header fields exceed the header size")
	ErrValueTooLarge  = errors.New("TLV value longer than 65535 bytes")
	ErrNotFound       = errors.New("TLV not found")
)
