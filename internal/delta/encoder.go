/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package delta wraps a forward and an inverse patch between two signed
// images into a signed delta image.
package delta

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/kentakayama/bootsign/internal/image"
	"github.com/sirupsen/logrus"
)

const (
	// Alignment of the forward patch inside the payload.
	Alignment = 16
	// EncryptedAlignment is used when the delta image will be encrypted.
	EncryptedAlignment = 64

	maxPatchSize = 0xFFFF
)

var versionInName = regexp.MustCompile(`_v(\d+)_`)

// Request describes one delta build. BasePath and NewPath are signed
// images; Options carries the signing parameters for the delta header.
type Request struct {
	BasePath  string
	NewPath   string
	OutPath   string
	Encrypted bool
	// HeaderSize of the input images, 0 to derive it from the image type.
	HeaderSize int
	Options    image.Options
}

// Result reports the layout of the produced delta image.
type Result struct {
	Built          *image.Built
	BaseVersion    uint32
	Version        uint32
	ForwardSize    int
	ForwardAligned int
	InverseSize    int
	InverseOffset  uint32
}

// Encoder builds delta images.
type Encoder struct {
	differ    Differ
	assembler *image.Assembler
	log       *logrus.Logger
}

func NewEncoder(d Differ, a *image.Assembler, logger *logrus.Logger) *Encoder {
	if d == nil {
		d = &ExecDiffer{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if a == nil {
		a = image.NewAssembler(nil, logger)
	}
	return &Encoder{differ: d, assembler: a, log: logger}
}

// Encode diffs the base and new images both ways and signs the combined
// patch. Temporary patch files are removed whatever the outcome.
func (e *Encoder) Encode(ctx context.Context, req Request) (res *Result, err error) {
	newInfo, err := image.InspectFile(req.NewPath, req.HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("new image: %w", err)
	}
	baseVersion, err := BaseVersion(req.BasePath, req.HeaderSize)
	if err != nil {
		return nil, err
	}

	opts := req.Options
	if opts.Version == 0 {
		opts.Version = newInfo.Version
	}
	if opts.Timestamp.IsZero() {
		opts.Timestamp = newInfo.Timestamp
	}

	tmp, err := os.MkdirTemp(filepath.Dir(req.OutPath), ".delta-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(tmp); rerr != nil {
			err = multierror.Append(err, fmt.Errorf("remove %s: %w", tmp, rerr)).ErrorOrNil()
			res = nil
		}
	}()

	fwdPath := filepath.Join(tmp, "forward.patch")
	invPath := filepath.Join(tmp, "inverse.patch")
	e.log.Infof("Creating diff file %s -> %s", req.BasePath, req.NewPath)
	if err := e.differ.Diff(ctx, req.BasePath, req.NewPath, fwdPath); err != nil {
		return nil, fmt.Errorf("forward patch: %w", err)
	}
	e.log.Infof("Creating inverse diff file %s -> %s", req.NewPath, req.BasePath)
	if err := e.differ.Diff(ctx, req.NewPath, req.BasePath, invPath); err != nil {
		return nil, fmt.Errorf("inverse patch: %w", err)
	}

	fwdSize, err := patchSize(fwdPath)
	if err != nil {
		return nil, err
	}
	invSize, err := patchSize(invPath)
	if err != nil {
		return nil, err
	}

	align := Alignment
	if req.Encrypted {
		align = EncryptedAlignment
	}
	fwdAligned := (fwdSize + align - 1) / align * align

	payloadPath := filepath.Join(tmp, "payload.bin")
	if err := concat(payloadPath, fwdPath, fwdAligned-fwdSize, invPath); err != nil {
		return nil, err
	}

	opts.Delta = &image.DeltaInfo{
		BaseVersion:    baseVersion,
		ForwardSize:    fwdSize,
		ForwardAligned: fwdAligned,
		InverseSize:    invSize,
	}
	built, err := e.assembler.SignFile(ctx, payloadPath, req.OutPath, opts)
	if err != nil {
		return nil, err
	}
	e.log.Infof("Delta image %s: base v%d, forward %d bytes, inverse %d bytes", req.OutPath, baseVersion, fwdSize, invSize)
	return &Result{
		Built:          built,
		BaseVersion:    baseVersion,
		Version:        opts.Version,
		ForwardSize:    fwdSize,
		ForwardAligned: fwdAligned,
		InverseSize:    invSize,
		InverseOffset:  opts.Delta.InverseOffset(built.HeaderSize),
	}, nil
}

func patchSize(path string) (int, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: no patch produced: %v", ErrDiffTool, err)
	}
	if st.Size() > maxPatchSize {
		return 0, fmt.Errorf("%w: %s is %d bytes", ErrPatchTooLarge, filepath.Base(path), st.Size())
	}
	return int(st.Size()), nil
}

func concat(out, fwd string, pad int, inv string) error {
	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, p := range []string{fwd, inv} {
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(f, src)
		src.Close()
		if err != nil {
			return err
		}
		if p == fwd {
			if _, err := f.Write(bytes.Repeat([]byte{0xFF}, pad)); err != nil {
				return err
			}
		}
	}
	return f.Close()
}

// BaseVersion reads the version of a signed base image from its header,
// falling back to a "_v<N>_" marker in the file name.
func BaseVersion(path string, headerSize int) (uint32, error) {
	info, err := image.InspectFile(path, headerSize)
	if err == nil && info.Version != 0 {
		return info.Version, nil
	}
	if m := versionInName.FindStringSubmatch(filepath.Base(path)); m != nil {
		v, perr := strconv.ParseUint(m[1], 10, 32)
		if perr == nil {
			return uint32(v), nil
		}
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrBaseVersion, path, err)
	}
	return 0, fmt.Errorf("%w: %s", ErrBaseVersion, path)
}

// Patches splits a delta artifact into its forward and inverse patches.
func Patches(artifact []byte, headerSize int) (fwd, inv []byte, info *image.Info, err error) {
	info, err = image.Inspect(bytes.NewReader(artifact), int64(len(artifact)), headerSize)
	if err != nil {
		return nil, nil, nil, err
	}
	if info.Delta == nil || !info.IsDelta {
		return nil, nil, nil, ErrNotDelta
	}
	d := info.Delta
	fwdEnd := info.HeaderSize + int(d.ForwardSize)
	invEnd := int(d.InverseOffset) + int(d.InverseSize)
	if fwdEnd > len(artifact) || invEnd > len(artifact) || int(d.InverseOffset) < fwdEnd {
		return nil, nil, nil, ErrCorruptEnvelope
	}
	return artifact[info.HeaderSize:fwdEnd], artifact[d.InverseOffset:invEnd], info, nil
}
