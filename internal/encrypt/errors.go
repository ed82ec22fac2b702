/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package encrypt

import "errors"

var (
	ErrKeySize       = errors.New("encryption key file has the wrong size")
	ErrUnknownCipher = errors.New("unknown encryption cipher")
)
