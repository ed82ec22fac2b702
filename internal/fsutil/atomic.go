/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package fsutil writes build artifacts without leaving partial files
// behind and guards key files against silent overwrites.
package fsutil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// WriteFileAtomic streams fill into a temporary file next to path and
// renames it into place once fill and the close succeed. On any error the
// temporary file is removed and path is left untouched.
func WriteFileAtomic(ctx context.Context, path string, perm os.FileMode, fill func(w io.Writer) error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("write %s: %w", path, ctx.Err())
	}

	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tempFile, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tempFileName := tempFile.Name()

	defer func() {
		if _, err := os.Stat(tempFileName); err == nil {
			if err := os.Remove(tempFileName); err != nil {
				log.Warnf("failed to remove %s: %v", tempFileName, err)
			}
		}
	}()

	if err := tempFile.Chmod(perm); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("set temp file permissions: %w", err)
	}

	bw := bufio.NewWriter(tempFile)
	if err := fill(bw); err != nil {
		_ = tempFile.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tempFileName, err)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("after temp file: %w", ctx.Err())
	}
	if err := os.Rename(tempFileName, path); err != nil {
		return fmt.Errorf("move %s to %s: %w", tempFileName, path, err)
	}
	return nil
}

// WriteBytesAtomic is WriteFileAtomic for an in-memory buffer.
func WriteBytesAtomic(ctx context.Context, path string, perm os.FileMode, b []byte) error {
	return WriteFileAtomic(ctx, path, perm, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
