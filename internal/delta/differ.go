/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package delta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"
)

// Differ writes a patch turning oldPath into newPath to patchPath.
type Differ interface {
	Diff(ctx context.Context, oldPath, newPath, patchPath string) error
}

// DefaultDiffTool follows the bmdiff calling convention: old new patch.
const DefaultDiffTool = "bmdiff"

// ExecDiffer runs an external diff program as "Path Args... old new patch".
// With Stdout set the patch path is not passed and the program's standard
// output becomes the patch.
type ExecDiffer struct {
	Path   string
	Args   []string
	Stdout bool
}

func (d *ExecDiffer) Diff(ctx context.Context, oldPath, newPath, patchPath string) error {
	path := d.Path
	if path == "" {
		path = DefaultDiffTool
	}
	args := append(append([]string(nil), d.Args...), oldPath, newPath)
	if !d.Stdout {
		args = append(args, patchPath)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var out *os.File
	if d.Stdout {
		f, err := os.OpenFile(patchPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		out = f
		cmd.Stdout = f
	}
	err := cmd.Run()
	if out != nil {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		diag := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return fmt.Errorf("%w: %s not found", ErrDiffTool, path)
		case errors.As(err, &exitErr):
			return fmt.Errorf("%w: %s exited with %d: %s", ErrDiffTool, path, exitErr.ExitCode(), diag)
		}
		return fmt.Errorf("%w: %s: %v", ErrDiffTool, path, err)
	}
	return nil
}

// BsdiffDiffer produces bsdiff patches in process.
type BsdiffDiffer struct{}

func (BsdiffDiffer) Diff(ctx context.Context, oldPath, newPath, patchPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	oldb, err := os.ReadFile(oldPath)
	if err != nil {
		return err
	}
	newb, err := os.ReadFile(newPath)
	if err != nil {
		return err
	}
	patch, err := bsdiff.Bytes(oldb, newb)
	if err != nil {
		return fmt.Errorf("%w: bsdiff: %v", ErrDiffTool, err)
	}
	return os.WriteFile(patchPath, patch, 0o600)
}

// Patch applies a bsdiff patch to old.
func Patch(old, patch []byte) ([]byte, error) {
	return bspatch.Bytes(old, patch)
}
