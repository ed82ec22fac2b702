/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package image

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/tlv"
)

// DeltaFields are the delta TLVs of a diff image.
type DeltaFields struct {
	BaseVersion   uint32
	ForwardSize   uint16
	InverseOffset uint32
	InverseSize   uint16
}

// Info is the decoded header of an image.
type Info struct {
	Header      *tlv.Header
	Raw         []byte
	HeaderSize  int
	PayloadSize uint32
	Version     uint32
	Timestamp   time.Time
	ImageType   uint16
	Algorithm   algo.Algorithm
	Partition   uint8
	IsDelta     bool
	Hash        algo.HashAlgorithm
	DigestField tlv.Field
	Fingerprint []byte
	Signature   []byte
	Delta       *DeltaFields
}

// Inspect decodes the header of the image in r. headerSize is raised to the
// minimum of the algorithm named in the image-type field, as the assembler
// does; 0 uses that minimum.
func Inspect(r io.ReaderAt, size int64, headerSize int) (*Info, error) {
	headerSize, err := discoverHeaderSize(r, size, headerSize)
	if err != nil {
		return nil, err
	}
	if size < int64(headerSize) {
		return nil, fmt.Errorf("%w: image is %d bytes, header is %d", tlv.ErrTruncated, size, headerSize)
	}
	raw := make([]byte, headerSize)
	if _, err := r.ReadAt(raw, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h, err := tlv.Decode(raw, headerSize, tlv.DecodeOptions{})
	if err != nil {
		return nil, err
	}

	info := &Info{Header: h, Raw: raw, HeaderSize: headerSize, PayloadSize: h.PayloadSize}
	if v, err := h.Uint32(tlv.TagVersion); err == nil {
		info.Version = v
	}
	if ts, err := h.Uint64(tlv.TagTimestamp); err == nil {
		info.Timestamp = time.Unix(int64(ts), 0).UTC()
	}
	if it, err := h.Uint16(tlv.TagImageType); err == nil {
		info.ImageType = it
		if alg, ok := algo.FromImageType(it); ok {
			info.Algorithm = alg
		}
		info.Partition = uint8(it & TypePartitionMask)
		info.IsDelta = it&TypeDiff == TypeDiff
	}

	found := false
	for _, f := range h.Fields {
		if ha, ok := algo.HashForTag(f.Tag); ok {
			if len(f.Value) != ha.Size() {
				return nil, fmt.Errorf("%w: %s digest is %d bytes", tlv.ErrMalformed, ha, len(f.Value))
			}
			info.Hash, info.DigestField, found = ha, f, true
			break
		}
	}
	if !found {
		return nil, ErrMissingDigest
	}
	if f, ok := h.Find(tlv.TagPubKeyHint); ok {
		info.Fingerprint = f.Value
	}
	if f, ok := h.Find(tlv.TagSignature); ok {
		info.Signature = f.Value
	}

	if h.Has(tlv.TagDeltaBase) {
		d := &DeltaFields{}
		var errs []error
		var err error
		d.BaseVersion, err = h.Uint32(tlv.TagDeltaBase)
		errs = append(errs, err)
		d.ForwardSize, err = h.Uint16(tlv.TagDeltaSize)
		errs = append(errs, err)
		d.InverseOffset, err = h.Uint32(tlv.TagDeltaInverse)
		errs = append(errs, err)
		d.InverseSize, err = h.Uint16(tlv.TagDeltaInverseSize)
		errs = append(errs, err)
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("delta header: %w", err)
		}
		info.Delta = d
	}
	return info, nil
}

// discoverHeaderSize reads the image-type field from the smallest header
// and returns requested raised to the minimum of its algorithm. With a
// requested size, an unreadable probe header falls back to that size and
// the full decode reports the problem.
func discoverHeaderSize(r io.ReaderAt, size int64, requested int) (int, error) {
	n := algo.DefaultHeaderSize
	fallback := requested
	if fallback == 0 {
		fallback = n
	}
	if size < int64(n) {
		if requested > 0 {
			return requested, nil
		}
		return 0, fmt.Errorf("%w: image is %d bytes", tlv.ErrTruncated, size)
	}
	raw := make([]byte, n)
	if _, err := r.ReadAt(raw, 0); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	h, err := tlv.Decode(raw, n, tlv.DecodeOptions{})
	if err != nil {
		if requested > 0 {
			return requested, nil
		}
		return 0, err
	}
	it, err := h.Uint16(tlv.TagImageType)
	if err != nil {
		return fallback, nil
	}
	alg, ok := algo.FromImageType(it)
	if !ok {
		return fallback, nil
	}
	return algo.HeaderSize(requested, alg), nil
}
