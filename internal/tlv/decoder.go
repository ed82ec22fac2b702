/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tlv

import (
	"encoding/binary"
	"fmt"
)

// Header is a decoded image header.
type Header struct {
	Magic       uint32
	PayloadSize uint32
	Size        int
	Fields      []Field
}

// DecodeOptions tunes the record scan.
type DecodeOptions struct {
	// Strict turns a record running past the header end into ErrMalformed
	// instead of the end of the record list.
	Strict bool
}

// Decode parses the first size bytes of b.
func Decode(b []byte, size int, opts DecodeOptions) (*Header, error) {
	if size < PrefixLen || len(b) < size {
		return nil, fmt.Errorf("%w: have %d bytes, header is %d", ErrTruncated, len(b), size)
	}
	h := &Header{
		Magic:       binary.LittleEndian.Uint32(b[0:]),
		PayloadSize: binary.LittleEndian.Uint32(b[4:]),
		Size:        size,
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: %#08x", ErrBadMagic, h.Magic)
	}

	p := PrefixLen
	for p < size {
		if b[p] == PadByte {
			p++
			continue
		}
		if p+RecordHeaderLen > size {
			if opts.Strict {
				return nil, fmt.Errorf("%w: record header at %d crosses the header end", ErrMalformed, p)
			}
			break
		}
		tag := binary.LittleEndian.Uint16(b[p:])
		n := int(binary.LittleEndian.Uint16(b[p+2:]))
		if p+RecordHeaderLen+n > size {
			if opts.Strict {
				return nil, fmt.Errorf("%w: %s at %d is %d bytes long", ErrMalformed, TagName(tag), p, n)
			}
			break
		}
		v := make([]byte, n)
		copy(v, b[p+RecordHeaderLen:])
		h.Fields = append(h.Fields, Field{Tag: tag, Value: v, Offset: p})
		p += RecordHeaderLen + n
	}
	return h, nil
}

// Find returns the first record carrying tag.
func (h *Header) Find(tag uint16) (Field, bool) {
	for _, f := range h.Fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether a record with tag is present.
func (h *Header) Has(tag uint16) bool {
	_, ok := h.Find(tag)
	return ok
}

func (h *Header) fixed(tag uint16, n int) ([]byte, error) {
	f, ok := h.Find(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, TagName(tag))
	}
	if len(f.Value) != n {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrMalformed, TagName(tag), len(f.Value), n)
	}
	return f.Value, nil
}

func (h *Header) Uint16(tag uint16) (uint16, error) {
	v, err := h.fixed(tag, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

func (h *Header) Uint32(tag uint16) (uint32, error) {
	v, err := h.fixed(tag, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (h *Header) Uint64(tag uint16) (uint64, error) {
	v, err := h.fixed(tag, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}
