/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"

	"github.com/kentakayama/bootsign/internal/domain/model"
)

// SigningKeyRepository defines the interface for signing key persistence.
type SigningKeyRepository interface {
	Create(ctx context.Context, key *model.SigningKey) (int64, error)
	FindByFingerprint(ctx context.Context, fingerprint []byte) (*model.SigningKey, error)
}

// SignedImageRepository defines the interface for signed image persistence.
type SignedImageRepository interface {
	Create(ctx context.Context, img *model.SignedImage) (int64, error)
	FindByDigest(ctx context.Context, digest []byte) (*model.SignedImage, error)
	ListByVersion(ctx context.Context, version uint32) ([]*model.SignedImage, error)
	List(ctx context.Context) ([]*model.SignedImage, error)
}
