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

// Field is one TLV record. Offset is the position of the tag within the
// header; it is filled in by Decode and by Encoder.Append.
type Field struct {
	Tag    uint16
	Value  []byte
	Offset int
}

// Encoder lays out a header incrementally. The payload digest covers the
// bytes written before the digest record, so callers read Bytes() between
// appends.
type Encoder struct {
	buf  []byte
	size int
}

// NewEncoder starts a header of size bytes with the magic and the payload
// size already in place.
func NewEncoder(size int, payloadSize uint32) *Encoder {
	e := &Encoder{buf: make([]byte, PrefixLen, size), size: size}
	binary.LittleEndian.PutUint32(e.buf[0:], Magic)
	binary.LittleEndian.PutUint32(e.buf[4:], payloadSize)
	return e
}

// Len is the number of header bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Size is the final header size.
func (e *Encoder) Size() int {
	return e.size
}

// Align pads with 0xFF until the next record's value starts on an n byte
// boundary.
func (e *Encoder) Align(n int) error {
	if n <= 1 {
		return nil
	}
	for (len(e.buf)+RecordHeaderLen)%n != 0 {
		if len(e.buf) >= e.size {
			return fmt.Errorf("%w: aligning to %d at offset %d", ErrHeaderOverflow, n, len(e.buf))
		}
		e.buf = append(e.buf, PadByte)
	}
	return nil
}

// Append writes a record, aligned as the tag registry requires, and returns
// the offset of its tag.
func (e *Encoder) Append(tag uint16, value []byte) (int, error) {
	if len(value) > 0xFFFF {
		return 0, fmt.Errorf("%w: %s", ErrValueTooLarge, TagName(tag))
	}
	if info, ok := registry[tag]; ok {
		if info.Size != 0 && info.Size != len(value) {
			return 0, fmt.Errorf("%w: %s must be %d bytes, got %d", ErrMalformed, info.Name, info.Size, len(value))
		}
		if err := e.Align(info.Align); err != nil {
			return 0, err
		}
	}
	off := len(e.buf)
	if off+RecordHeaderLen+len(value) > e.size {
		return 0, fmt.Errorf("%w: %s needs %d bytes at offset %d of %d",
			ErrHeaderOverflow, TagName(tag), RecordHeaderLen+len(value), off, e.size)
	}
	e.buf = binary.LittleEndian.AppendUint16(e.buf, tag)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(len(value)))
	e.buf = append(e.buf, value...)
	return off, nil
}

func (e *Encoder) AppendUint16(tag uint16, v uint16) (int, error) {
	return e.Append(tag, binary.LittleEndian.AppendUint16(nil, v))
}

func (e *Encoder) AppendUint32(tag uint16, v uint32) (int, error) {
	return e.Append(tag, binary.LittleEndian.AppendUint32(nil, v))
}

func (e *Encoder) AppendUint64(tag uint16, v uint64) (int, error) {
	return e.Append(tag, binary.LittleEndian.AppendUint64(nil, v))
}

// Bytes returns the header prefix written so far. The slice is only valid
// until the next Append.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Finish pads the header to its full size and returns it.
func (e *Encoder) Finish() []byte {
	out := make([]byte, e.size)
	n := copy(out, e.buf)
	for i := n; i < e.size; i++ {
		out[i] = PadByte
	}
	return out
}

// Encode builds a complete header from fields in order.
func Encode(payloadSize uint32, fields []Field, size int) ([]byte, error) {
	if size < PrefixLen {
		return nil, fmt.Errorf("%w: header size %d", ErrHeaderOverflow, size)
	}
	e := NewEncoder(size, payloadSize)
	for _, f := range fields {
		if _, err := e.Append(f.Tag, f.Value); err != nil {
			return nil, err
		}
	}
	return e.Finish(), nil
}
