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

// SigningKeyRepository handles signing key persistence.
type SigningKeyRepository struct {
	db *sql.DB
}

func NewSigningKeyRepository(db *sql.DB) *SigningKeyRepository {
	return &SigningKeyRepository{db: db}
}

// Create inserts a new signing key and returns the inserted id.
func (r *SigningKeyRepository) Create(ctx context.Context, key *model.SigningKey) (int64, error) {
	const q = `
		INSERT INTO signing_keys (fingerprint, algorithm, public_key, created_at)
		VALUES (?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q, key.Fingerprint, key.Algorithm, key.PublicKey, key.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert signing_key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByFingerprint returns nil, nil when no key matches.
func (r *SigningKeyRepository) FindByFingerprint(ctx context.Context, fingerprint []byte) (*model.SigningKey, error) {
	const q = `
		SELECT id, fingerprint, algorithm, public_key, created_at
		FROM signing_keys
		WHERE fingerprint = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, fingerprint)
	var key model.SigningKey
	if err := row.Scan(&key.ID, &key.Fingerprint, &key.Algorithm, &key.PublicKey, &key.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan signing_key: %w", err)
	}
	return &key, nil
}
