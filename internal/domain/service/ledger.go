/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/kentakayama/bootsign/internal/domain"
	"github.com/kentakayama/bootsign/internal/domain/model"
	"github.com/kentakayama/bootsign/internal/image"
	"github.com/sirupsen/logrus"
)

// Artifact describes one produced image file.
type Artifact struct {
	Path        string
	Version     uint32
	Built       *image.Built
	IsDelta     bool
	BaseVersion uint32
}

// Ledger records produced artifacts and the keys that signed them.
type Ledger struct {
	keys   SigningKeyRepository
	images SignedImageRepository
	log    *logrus.Logger
	now    func() time.Time
}

func NewLedger(keys SigningKeyRepository, images SignedImageRepository, logger *logrus.Logger) *Ledger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Ledger{keys: keys, images: images, log: logger, now: time.Now}
}

// Record stores a. Recording the same path and digest twice returns
// domain.ErrDuplicate.
func (l *Ledger) Record(ctx context.Context, a Artifact) (*model.SignedImage, error) {
	if a.Built == nil {
		return nil, fmt.Errorf("record %s: no build result", a.Path)
	}
	prev, err := l.images.FindByDigest(ctx, a.Built.Digest)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.Path == a.Path {
		return nil, fmt.Errorf("%w: %s digest %x", domain.ErrDuplicate, a.Path, a.Built.Digest)
	}

	now := l.now().UTC().Truncate(time.Second)
	img := &model.SignedImage{
		Path:        a.Path,
		Version:     a.Version,
		ImageType:   a.Built.ImageType,
		HashAlg:     a.Built.Hash.String(),
		Digest:      a.Built.Digest,
		IsDelta:     a.IsDelta,
		BaseVersion: a.BaseVersion,
		CreatedAt:   now,
	}
	if len(a.Built.Fingerprint) > 0 {
		id, err := l.signingKey(ctx, a.Built, now)
		if err != nil {
			return nil, err
		}
		img.SigningKeyID = &id
	}
	img.ID, err = l.images.Create(ctx, img)
	if err != nil {
		return nil, err
	}
	l.log.Debugf("ledger: recorded %s (version %d, id %d)", a.Path, a.Version, img.ID)
	return img, nil
}

func (l *Ledger) signingKey(ctx context.Context, b *image.Built, now time.Time) (int64, error) {
	key, err := l.keys.FindByFingerprint(ctx, b.Fingerprint)
	if err != nil {
		return 0, err
	}
	if key != nil {
		if len(b.PublicKey) > 0 && !bytes.Equal(key.PublicKey, b.PublicKey) {
			l.log.Warnf("ledger: fingerprint %x already bound to a different public key", b.Fingerprint)
		}
		return key.ID, nil
	}
	return l.keys.Create(ctx, &model.SigningKey{
		Fingerprint: b.Fingerprint,
		Algorithm:   b.Algorithm.String(),
		PublicKey:   b.PublicKey,
		CreatedAt:   now,
	})
}

// Lookup returns the latest image recorded with digest.
func (l *Ledger) Lookup(ctx context.Context, digest []byte) (*model.SignedImage, error) {
	img, err := l.images.FindByDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: digest %x", domain.ErrNotFound, digest)
	}
	return img, nil
}

// List returns every image, or only those of version when version > 0.
func (l *Ledger) List(ctx context.Context, version uint32) ([]*model.SignedImage, error) {
	if version > 0 {
		return l.images.ListByVersion(ctx, version)
	}
	return l.images.List(ctx)
}
