/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package fsutil

import "errors"

var (
	ErrConfirmationRequired = errors.New("refusing to overwrite existing key file, use --force")
	ErrAborted              = errors.New("operation aborted")
)
