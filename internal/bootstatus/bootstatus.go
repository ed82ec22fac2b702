/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package bootstatus reads and writes the update state byte kept at the
// end of a flash partition image.
package bootstatus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Magic marks an initialised status block.
var Magic = []byte("BOOT")

const (
	// StatusOffset and MagicOffset count back from the partition end.
	StatusOffset = 5
	MagicOffset  = 4
)

// Status is the partition state byte.
type Status byte

const (
	New      Status = 0xFF
	Updating Status = 0x70
	Success  Status = 0x00
	// Invalid is reported for any other byte; it is never written.
	Invalid Status = 0x01
)

func (s Status) String() string {
	switch s {
	case New:
		return "NEW"
	case Updating:
		return "UPDATING"
	case Success:
		return "SUCCESS"
	}
	return "INVALID"
}

// ParseStatus maps NEW, UPDATING and SUCCESS to a Status.
func ParseStatus(name string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "NEW":
		return New, nil
	case "UPDATING":
		return Updating, nil
	case "SUCCESS":
		return Success, nil
	}
	return Invalid, fmt.Errorf("%w: %q", ErrInvalidStatus, name)
}

func classify(b byte) Status {
	switch s := Status(b); s {
	case New, Updating, Success:
		return s
	}
	return Invalid
}

// Partition locates a partition inside a flash image.
type Partition struct {
	Name string
	Base int64
	Size int64
}

func (p Partition) statusAt() (int64, error) {
	if p.Size < StatusOffset || p.Base < 0 {
		return 0, fmt.Errorf("%w: %s base %#x size %#x", ErrInvalidPartition, p.Name, p.Base, p.Size)
	}
	return p.Base + p.Size - StatusOffset, nil
}

// Get returns the state of p and the raw byte it was read from. The magic
// must already be present.
func Get(f io.ReaderAt, p Partition) (Status, byte, error) {
	off, err := p.statusAt()
	if err != nil {
		return Invalid, 0, err
	}
	var blk [StatusOffset]byte
	if _, err := f.ReadAt(blk[:], off); err != nil {
		return Invalid, 0, fmt.Errorf("read %s status at %#x: %w", p.Name, off, err)
	}
	if !bytes.Equal(blk[1:], Magic) {
		return Invalid, blk[0], fmt.Errorf("%w at %#x (%s)", ErrMissingMagic, off+1, p.Name)
	}
	return classify(blk[0]), blk[0], nil
}

// ReadWriterAt is a random access file such as *os.File.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Set writes the magic if it is absent, then the status byte.
func Set(f ReadWriterAt, p Partition, s Status) error {
	if s != New && s != Updating && s != Success {
		return fmt.Errorf("%w: %#x", ErrInvalidStatus, byte(s))
	}
	off, err := p.statusAt()
	if err != nil {
		return err
	}
	magic := make([]byte, len(Magic))
	_, err = f.ReadAt(magic, off+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s magic: %w", p.Name, err)
	}
	if !bytes.Equal(magic, Magic) {
		if _, err := f.WriteAt(Magic, off+1); err != nil {
			return fmt.Errorf("write %s magic: %w", p.Name, err)
		}
	}
	if _, err := f.WriteAt([]byte{byte(s)}, off); err != nil {
		return fmt.Errorf("write %s status: %w", p.Name, err)
	}
	return nil
}

// GetFile opens path read-only and runs Get.
func GetFile(path string, p Partition) (Status, byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Invalid, 0, err
	}
	defer f.Close()
	return Get(f, p)
}

// SetFile updates path in place.
func SetFile(path string, p Partition, s Status) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := Set(f, p, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
