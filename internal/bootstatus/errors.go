/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package bootstatus

import "errors"

var (
	ErrMissingMagic     = errors.New("missing partition magic")
	ErrInvalidStatus    = errors.New("invalid status value")
	ErrInvalidPartition = errors.New("invalid partition")
)
