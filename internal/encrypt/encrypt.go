/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package encrypt applies the post-signing encryption layer. It treats
// images as opaque bytes processed in 16 byte blocks.
package encrypt

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kentakayama/bootsign/internal/fsutil"
	"golang.org/x/crypto/chacha20"
)

// BlockSize is the processing unit of every cipher.
const BlockSize = 16

type Cipher int

const (
	ChaCha20 Cipher = iota + 1
	AES128CTR
	AES256CTR
)

func (c Cipher) String() string {
	switch c {
	case ChaCha20:
		return "chacha20"
	case AES128CTR:
		return "aes128"
	case AES256CTR:
		return "aes256"
	}
	return fmt.Sprintf("cipher(%d)", int(c))
}

// KeySize and IVSize are the lengths expected in a key file.
func (c Cipher) KeySize() int {
	switch c {
	case ChaCha20, AES256CTR:
		return 32
	case AES128CTR:
		return 16
	}
	return 0
}

func (c Cipher) IVSize() int {
	switch c {
	case ChaCha20:
		return chacha20.NonceSize
	case AES128CTR, AES256CTR:
		return aes.BlockSize
	}
	return 0
}

// ParseCipher accepts "chacha", "chacha20", "aes128" and "aes256".
func ParseCipher(name string) (Cipher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chacha", "chacha20":
		return ChaCha20, nil
	case "aes128", "aes-128", "aes128-ctr":
		return AES128CTR, nil
	case "aes256", "aes-256", "aes256-ctr":
		return AES256CTR, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
}

// KeyMaterial is the content of a key file: the key followed by the
// nonce or IV.
type KeyMaterial struct {
	Key []byte
	IV  []byte
}

// ParseKeyMaterial splits raw into key and IV; raw must be exactly
// KeySize+IVSize bytes long.
func ParseKeyMaterial(raw []byte, c Cipher) (KeyMaterial, error) {
	if c.KeySize() == 0 {
		return KeyMaterial{}, fmt.Errorf("%w: %s", ErrUnknownCipher, c)
	}
	want := c.KeySize() + c.IVSize()
	if len(raw) != want {
		return KeyMaterial{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrKeySize, c, want, len(raw))
	}
	return KeyMaterial{
		Key: append([]byte(nil), raw[:c.KeySize()]...),
		IV:  append([]byte(nil), raw[c.KeySize():]...),
	}, nil
}

func LoadKeyMaterial(path string, c Cipher) (KeyMaterial, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KeyMaterial{}, err
	}
	return ParseKeyMaterial(raw, c)
}

// Encrypt reads src to the end and writes the ciphertext to dst. ChaCha20
// restarts the keystream at counter offset>>4 for every block and keeps
// the input length; the AES modes pad the last block with 0xFF.
func Encrypt(dst io.Writer, src io.Reader, c Cipher, km KeyMaterial) (int64, error) {
	return process(dst, src, c, km, true)
}

// Decrypt inverts Encrypt. AES padding is left in place.
func Decrypt(dst io.Writer, src io.Reader, c Cipher, km KeyMaterial) (int64, error) {
	return process(dst, src, c, km, false)
}

func process(dst io.Writer, src io.Reader, c Cipher, km KeyMaterial, pad bool) (int64, error) {
	if len(km.Key) != c.KeySize() || len(km.IV) != c.IVSize() {
		return 0, fmt.Errorf("%w: %s", ErrKeySize, c)
	}

	var xor func(out, in []byte, offset uint64) error
	switch c {
	case ChaCha20:
		xor = func(out, in []byte, offset uint64) error {
			s, err := chacha20.NewUnauthenticatedCipher(km.Key, km.IV)
			if err != nil {
				return err
			}
			s.SetCounter(uint32(offset >> 4))
			s.XORKeyStream(out, in)
			return nil
		}
	case AES128CTR, AES256CTR:
		block, err := aes.NewCipher(km.Key)
		if err != nil {
			return 0, err
		}
		stream := cipher.NewCTR(block, km.IV)
		xor = func(out, in []byte, _ uint64) error {
			stream.XORKeyStream(out, in)
			return nil
		}
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownCipher, c)
	}

	var (
		in      = make([]byte, BlockSize)
		out     = make([]byte, BlockSize)
		offset  uint64
		written int64
	)
	for {
		n, err := io.ReadFull(src, in)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return written, err
		}
		if n < BlockSize && pad && c != ChaCha20 {
			for i := n; i < BlockSize; i++ {
				in[i] = 0xFF
			}
			n = BlockSize
		}
		if xerr := xor(out[:n], in[:n], offset); xerr != nil {
			return written, xerr
		}
		w, werr := dst.Write(out[:n])
		written += int64(w)
		if werr != nil {
			return written, werr
		}
		offset += uint64(n)
		if err == io.ErrUnexpectedEOF {
			break
		}
	}
	return written, nil
}

// EncryptFile encrypts in into out through a temporary file.
func EncryptFile(ctx context.Context, in, out string, c Cipher, km KeyMaterial) error {
	return transformFile(ctx, in, out, c, km, Encrypt)
}

func DecryptFile(ctx context.Context, in, out string, c Cipher, km KeyMaterial) error {
	return transformFile(ctx, in, out, c, km, Decrypt)
}

func transformFile(ctx context.Context, in, out string, c Cipher, km KeyMaterial,
	fn func(io.Writer, io.Reader, Cipher, KeyMaterial) (int64, error)) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()
	return fsutil.WriteFileAtomic(ctx, out, 0o644, func(w io.Writer) error {
		_, err := fn(w, f, c, km)
		return err
	})
}
