/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kentakayama/bootsign/internal/domain/model"
)

// SignedImageRepository handles signed image persistence.
type SignedImageRepository struct {
	db *sql.DB
}

func NewSignedImageRepository(db *sql.DB) *SignedImageRepository {
	return &SignedImageRepository{db: db}
}

const signedImageColumns = `id, path, version, image_type, hash_alg, digest, signing_key_id, is_delta, base_version, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignedImage(row rowScanner) (*model.SignedImage, error) {
	var (
		img   model.SignedImage
		keyID sql.NullInt64
	)
	if err := row.Scan(&img.ID, &img.Path, &img.Version, &img.ImageType, &img.HashAlg, &img.Digest,
		&keyID, &img.IsDelta, &img.BaseVersion, &img.CreatedAt); err != nil {
		return nil, err
	}
	if keyID.Valid {
		id := keyID.Int64
		img.SigningKeyID = &id
	}
	return &img, nil
}

// Create inserts a new signed image and returns the inserted id.
func (r *SignedImageRepository) Create(ctx context.Context, img *model.SignedImage) (int64, error) {
	const q = `
		INSERT INTO signed_images (path, version, image_type, hash_alg, digest, signing_key_id, is_delta, base_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var keyID sql.NullInt64
	if img.SigningKeyID != nil {
		keyID = sql.NullInt64{Int64: *img.SigningKeyID, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q, img.Path, int64(img.Version), int64(img.ImageType), img.HashAlg, img.Digest,
		keyID, img.IsDelta, int64(img.BaseVersion), img.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert signed_image: %w", err)
	}
	return res.LastInsertId()
}

// FindByDigest returns the most recent image with the given digest, or nil, nil.
func (r *SignedImageRepository) FindByDigest(ctx context.Context, digest []byte) (*model.SignedImage, error) {
	q := `SELECT ` + signedImageColumns + `
		FROM signed_images
		WHERE digest = ?
		ORDER BY id DESC
		LIMIT 1
	`
	img, err := scanSignedImage(r.db.QueryRowContext(ctx, q, digest))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan signed_image: %w", err)
	}
	return img, nil
}

// ListByVersion returns every image recorded for version, oldest first.
func (r *SignedImageRepository) ListByVersion(ctx context.Context, version uint32) ([]*model.SignedImage, error) {
	q := `SELECT ` + signedImageColumns + `
		FROM signed_images
		WHERE version = ?
		ORDER BY id ASC
	`
	return r.list(ctx, q, int64(version))
}

// List returns every recorded image, oldest first.
func (r *SignedImageRepository) List(ctx context.Context) ([]*model.SignedImage, error) {
	q := `SELECT ` + signedImageColumns + `
		FROM signed_images
		ORDER BY id ASC
	`
	return r.list(ctx, q)
}

func (r *SignedImageRepository) list(ctx context.Context, q string, args ...any) ([]*model.SignedImage, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query signed_images: %w", err)
	}
	defer rows.Close()

	var out []*model.SignedImage
	for rows.Next() {
		img, err := scanSignedImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signed_image: %w", err)
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
