/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service_test

import (
	"context"
	"testing"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/domain"
	"github.com/kentakayama/bootsign/internal/domain/service"
	"github.com/kentakayama/bootsign/internal/image"
	"github.com/kentakayama/bootsign/internal/infra/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) *service.Ledger {
	t.Helper()
	db, err := sqlite.InitDB(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	t.Cleanup(func() { sqlite.CloseDB(db) })
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return service.NewLedger(sqlite.NewSigningKeyRepository(db), sqlite.NewSignedImageRepository(db), logger)
}

func built(digest byte, fingerprint []byte) *image.Built {
	return &image.Built{
		ImageType:   image.ImageType(algo.ED25519, image.PartitionApp, false),
		Algorithm:   algo.ED25519,
		Hash:        algo.SHA256,
		Digest:      []byte{digest},
		Fingerprint: fingerprint,
		PublicKey:   []byte("pub"),
	}
}

func TestLedger_RecordSharesKey(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	a, err := l.Record(ctx, service.Artifact{Path: "app_v1_signed.bin", Version: 1, Built: built(1, []byte{0xaa})})
	require.NoError(t, err)
	b, err := l.Record(ctx, service.Artifact{Path: "app_v2_signed_diff.bin", Version: 2, Built: built(2, []byte{0xaa}), IsDelta: true, BaseVersion: 1})
	require.NoError(t, err)

	require.NotNil(t, a.SigningKeyID)
	require.NotNil(t, b.SigningKeyID)
	assert.Equal(t, *a.SigningKeyID, *b.SigningKeyID)
	assert.Equal(t, "SHA256", b.HashAlg)

	got, err := l.Lookup(ctx, []byte{2})
	require.NoError(t, err)
	assert.True(t, got.IsDelta)
	assert.Equal(t, uint32(1), got.BaseVersion)

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	v1, err := l.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, v1, 1)
	assert.Equal(t, "app_v1_signed.bin", v1[0].Path)
}

func TestLedger_Unsigned(t *testing.T) {
	l := newLedger(t)
	img, err := l.Record(context.Background(), service.Artifact{Path: "app_v1_signed.bin", Version: 1, Built: built(3, nil)})
	require.NoError(t, err)
	assert.Nil(t, img.SigningKeyID)
}

func TestLedger_Errors(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.Record(ctx, service.Artifact{Path: "x.bin", Version: 1, Built: built(4, []byte{1})})
	require.NoError(t, err)
	_, err = l.Record(ctx, service.Artifact{Path: "x.bin", Version: 1, Built: built(4, []byte{1})})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = l.Lookup(ctx, []byte{0x55})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = l.Record(ctx, service.Artifact{Path: "y.bin"})
	assert.Error(t, err)
}
