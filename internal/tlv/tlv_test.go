/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package tlv

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
func u64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func signedFields(sigLen int) []Field {
	return []Field{
		{Tag: TagVersion, Value: u32(3)},
		{Tag: TagTimestamp, Value: u64(1700000000)},
		{Tag: TagImageType, Value: u16(0x0201)},
		{Tag: TagSHA256, Value: bytes.Repeat([]byte{0xAB}, 32)},
		{Tag: TagPubKeyHint, Value: bytes.Repeat([]byte{0xCD}, 32)},
		{Tag: TagSignature, Value: bytes.Repeat([]byte{0x11}, sigLen)},
	}
}

func TestEncode_Layout(t *testing.T) {
	b, err := Encode(1024, signedFields(64), 256)
	require.NoError(t, err)
	require.Len(t, b, 256)

	assert.Equal(t, []byte{0x57, 0x4F, 0x4C, 0x46}, b[0:4])
	assert.Equal(t, uint32(1024), binary.LittleEndian.Uint32(b[4:]))

	// version at 8, timestamp value 8-aligned after 4 pad bytes
	assert.Equal(t, u16(TagVersion), b[8:10])
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, b[16:20])
	assert.Equal(t, u16(TagTimestamp), b[20:22])
	assert.Equal(t, u16(TagImageType), b[32:34])
	// image type ends at 38, digest value aligned to 48
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, b[38:44])
	assert.Equal(t, u16(TagSHA256), b[44:46])

	assert.Equal(t, byte(0xFF), b[255])
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	delta := []Field{
		{Tag: TagVersion, Value: u32(7)},
		{Tag: TagTimestamp, Value: u64(42)},
		{Tag: TagImageType, Value: u16(0x01D1)},
		{Tag: TagDeltaBase, Value: u32(6)},
		{Tag: TagDeltaSize, Value: u16(1000)},
		{Tag: TagDeltaInverse, Value: u32(256 + 1008)},
		{Tag: TagDeltaInverseSize, Value: u16(900)},
		{Tag: TagSHA384, Value: bytes.Repeat([]byte{0x22}, 48)},
		{Tag: TagPubKeyHint, Value: bytes.Repeat([]byte{0x33}, 48)},
		{Tag: TagSignature, Value: bytes.Repeat([]byte{0x44}, 96)},
	}
	cases := []struct {
		name   string
		fields []Field
		size   int
	}{
		{"ed25519", signedFields(64), 256},
		{"ecc256", signedFields(64), 256},
		{"ecc384", signedFields(96), 512},
		{"ecc521", signedFields(132), 512},
		{"ed448", signedFields(114), 512},
		{"rsa2048", signedFields(256), 512},
		{"rsa3072", signedFields(384), 1024},
		{"rsa4096", signedFields(512), 1024},
		{"delta", delta, 512},
		{"unsigned", signedFields(0)[:4], 256},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, err := Encode(99, c.fields, c.size)
			require.NoError(t, err)
			h, err := Decode(b, c.size, DecodeOptions{Strict: true})
			require.NoError(t, err)
			assert.Equal(t, Magic, h.Magic)
			assert.Equal(t, uint32(99), h.PayloadSize)
			require.Len(t, h.Fields, len(c.fields))
			for i, f := range c.fields {
				assert.Equal(t, f.Tag, h.Fields[i].Tag)
				assert.Equal(t, f.Value, h.Fields[i].Value)
			}
		})
	}
}

func TestEncode_Overflow(t *testing.T) {
	_, err := Encode(1, signedFields(512), 512)
	assert.ErrorIs(t, err, ErrHeaderOverflow)

	_, err = Encode(1, signedFields(64), 4)
	assert.ErrorIs(t, err, ErrHeaderOverflow)
}

func TestEncode_FixedSizeEnforced(t *testing.T) {
	_, err := Encode(1, []Field{{Tag: TagVersion, Value: []byte{1, 2}}}, 256)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncoder_OffsetsAndPrefix(t *testing.T) {
	e := NewEncoder(256, 10)
	_, err := e.AppendUint32(TagVersion, 1)
	require.NoError(t, err)
	_, err = e.AppendUint64(TagTimestamp, 2)
	require.NoError(t, err)
	_, err = e.AppendUint16(TagImageType, 0x0101)
	require.NoError(t, err)
	require.NoError(t, e.Align(8))
	prefix := append([]byte(nil), e.Bytes()...)
	off, err := e.Append(TagSHA256, make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, len(prefix), off)

	h, err := Decode(e.Finish(), 256, DecodeOptions{})
	require.NoError(t, err)
	f, ok := h.Find(TagSHA256)
	require.True(t, ok)
	assert.Equal(t, off, f.Offset)
}

func TestDecode_Errors(t *testing.T) {
	b, err := Encode(1, signedFields(64), 256)
	require.NoError(t, err)

	_, err = Decode(b[:100], 256, DecodeOptions{})
	assert.ErrorIs(t, err, ErrTruncated)

	bad := append([]byte(nil), b...)
	bad[0] = 0
	_, err = Decode(bad, 256, DecodeOptions{})
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecode_OverlongRecordEndsScan(t *testing.T) {
	e := NewEncoder(64, 0)
	_, err := e.AppendUint32(TagVersion, 5)
	require.NoError(t, err)
	b := e.Finish()
	// a record at 16 claiming 200 bytes
	copy(b[16:], []byte{0x20, 0x00, 0xC8, 0x00})

	h, err := Decode(b, 64, DecodeOptions{})
	require.NoError(t, err)
	assert.Len(t, h.Fields, 1)
	v, err := h.Uint32(TagVersion)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), v)

	_, err = Decode(b, 64, DecodeOptions{Strict: true})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHeader_TypedAccessors(t *testing.T) {
	b, err := Encode(1, signedFields(64), 256)
	require.NoError(t, err)
	h, err := Decode(b, 256, DecodeOptions{})
	require.NoError(t, err)

	ts, err := h.Uint64(TagTimestamp)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), ts)

	it, err := h.Uint16(TagImageType)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), it)

	_, err = h.Uint32(TagDeltaBase)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.Uint16(TagVersion)
	assert.ErrorIs(t, err, ErrMalformed)
}
