/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package delta

import "errors"

var (
	ErrDiffTool        = errors.New("diff tool failed")
	ErrPatchTooLarge   = errors.New("patch does not fit the 16-bit size field")
	ErrBaseVersion     = errors.New("cannot determine the base version")
	ErrNotDelta        = errors.New("image is not a delta image")
	ErrCorruptEnvelope = errors.New("delta envelope out of bounds")
)
