/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package fsutil

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_OK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := WriteBytesAtomic(context.Background(), path, 0o644, []byte("hello"))
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	boom := errors.New("boom")

	err := WriteFileAtomic(context.Background(), path, 0o644, func(w io.Writer) error {
		if _, err := w.Write([]byte("partial")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, Exists(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteFileAtomic_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "out.bin")
	err := WriteBytesAtomic(ctx, path, 0o644, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, Exists(path))
}

func TestPersistKey(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "key.der")

	require.NoError(t, PersistKey(ctx, path, []byte("one"), false, nil))

	// non-interactive: refuse
	err := PersistKey(ctx, path, []byte("two"), false, nil)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	b, _ := os.ReadFile(path)
	assert.Equal(t, "one", string(b))

	// wrong phrase
	err = PersistKey(ctx, path, []byte("two"), false, ReaderConfirmer{In: strings.NewReader("yes\n")})
	assert.ErrorIs(t, err, ErrAborted)

	// right phrase
	err = PersistKey(ctx, path, []byte("three"), false, ReaderConfirmer{In: strings.NewReader(ConfirmPhrase + "\n")})
	require.NoError(t, err)
	b, _ = os.ReadFile(path)
	assert.Equal(t, "three", string(b))

	// force
	require.NoError(t, PersistKey(ctx, path, []byte("four"), true, nil))
	b, _ = os.ReadFile(path)
	assert.Equal(t, "four", string(b))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestTerminalConfirmer_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	err = (&TerminalConfirmer{In: f, Out: io.Discard}).Confirm("key.der")
	assert.ErrorIs(t, err, ErrConfirmationRequired)
}
