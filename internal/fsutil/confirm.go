/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package fsutil

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// ConfirmPhrase must be typed verbatim to overwrite a key file.
const ConfirmPhrase = "Yes, I am sure!"

// Confirmer asks the operator whether an existing file may be replaced.
type Confirmer interface {
	Confirm(path string) error
}

// TerminalConfirmer prompts on Out and reads the answer from In. It fails
// with ErrConfirmationRequired when In is not a terminal.
type TerminalConfirmer struct {
	In  *os.File
	Out io.Writer
}

func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{In: os.Stdin, Out: os.Stderr}
}

func (c *TerminalConfirmer) Confirm(path string) error {
	if c.In == nil || !term.IsTerminal(int(c.In.Fd())) {
		return fmt.Errorf("%w: %s", ErrConfirmationRequired, path)
	}
	return ReaderConfirmer{In: c.In, Out: c.Out}.Confirm(path)
}

// ReaderConfirmer reads the answer from any reader. Used for scripted
// input.
type ReaderConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c ReaderConfirmer) Confirm(path string) error {
	out := c.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "## CAUTION ##\n")
	fmt.Fprintf(out, "%s already exists and will be overwritten.\n", path)
	fmt.Fprintf(out, "Type '%s' if you are sure: ", ConfirmPhrase)
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimRight(line, "\r\n") != ConfirmPhrase {
		return fmt.Errorf("%w: %s not confirmed", ErrAborted, path)
	}
	return nil
}

// PersistKey writes private key material. An existing file is replaced
// only when force is set or confirm agrees; confirm may be nil, which
// behaves like a non-interactive session.
func PersistKey(ctx context.Context, path string, data []byte, force bool, confirm Confirmer) error {
	if Exists(path) && !force {
		if confirm == nil {
			return fmt.Errorf("%w: %s", ErrConfirmationRequired, path)
		}
		if err := confirm.Confirm(path); err != nil {
			return err
		}
		log.Infof("overwriting %s", path)
	}
	return WriteBytesAtomic(ctx, path, 0o600, data)
}

// CheckOverwrite runs the PersistKey policy without writing, so callers can
// fail before producing any other output.
func CheckOverwrite(path string, force bool, confirm Confirmer) error {
	if !Exists(path) || force {
		return nil
	}
	if confirm == nil {
		return fmt.Errorf("%w: %s", ErrConfirmationRequired, path)
	}
	return confirm.Confirm(path)
}
