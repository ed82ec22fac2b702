/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/encrypt"
	"github.com/kentakayama/bootsign/internal/image"
	"github.com/spf13/pflag"
)

// imageFlags are shared by sign and delta.
type imageFlags struct {
	algorithm        string
	hash             string
	headerSize       int
	partitionID      uint8
	selfUpdate       bool
	encodeDigestInfo bool
	timestamp        int64
	encryptKey       string
	cipher           string
	output           string
}

func (f *imageFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.algorithm, "algorithm", "a", "", "signature algorithm: auto, none, ed25519, ed448, ecc256, ecc384, ecc521, rsa2048, rsa3072, rsa4096 (default from profile)")
	fs.StringVar(&f.hash, "hash", "", "digest algorithm: sha256, sha384, sha3 (default from profile)")
	fs.IntVar(&f.headerSize, "header-size", 0, "image header size; raised to the algorithm minimum (default from profile)")
	fs.Uint8Var(&f.partitionID, "partition-id", image.PartitionApp, "target partition id 0..15")
	fs.BoolVar(&f.selfUpdate, "wolfboot-update", false, "mark the image as a bootloader self-update")
	fs.BoolVar(&f.encodeDigestInfo, "rsa-digest-info", false, "wrap RSA signature input in a DigestInfo structure")
	fs.Int64Var(&f.timestamp, "timestamp", 0, "header timestamp in unix seconds (default: input file mtime)")
	fs.StringVar(&f.encryptKey, "encrypt", "", "also write an encrypted copy using this key||iv file")
	fs.StringVar(&f.cipher, "cipher", encrypt.ChaCha20.String(), "encryption cipher: chacha20, aes128, aes256")
	fs.StringVarP(&f.output, "output", "o", "", "output file")
}

func (f *imageFlags) options(a *app) (image.Options, error) {
	algName := f.algorithm
	if algName == "" {
		algName = a.profile.Algorithm
	}
	alg, err := algo.Parse(algName)
	if err != nil {
		return image.Options{}, err
	}
	hashName := f.hash
	if hashName == "" {
		hashName = a.profile.Hash
	}
	h, err := algo.ParseHash(hashName)
	if err != nil {
		return image.Options{}, err
	}
	headerSize := a.headerSize(f.headerSize)
	opts := image.Options{
		Algorithm:        alg,
		Hash:             h,
		HeaderSize:       headerSize,
		PartitionID:      f.partitionID,
		SelfUpdate:       f.selfUpdate,
		EncodeDigestInfo: f.encodeDigestInfo,
	}
	if f.timestamp != 0 {
		opts.Timestamp = time.Unix(f.timestamp, 0)
	}
	return opts, nil
}

type encryption struct {
	cipher encrypt.Cipher
	key    encrypt.KeyMaterial
}

// encryption loads the --encrypt key, nil when encryption is off. It runs
// before any output is produced so a bad key leaves nothing behind.
func (f *imageFlags) encryption() (*encryption, error) {
	if f.encryptKey == "" {
		return nil, nil
	}
	c, err := encrypt.ParseCipher(f.cipher)
	if err != nil {
		return nil, err
	}
	km, err := encrypt.LoadKeyMaterial(f.encryptKey, c)
	if err != nil {
		return nil, err
	}
	return &encryption{cipher: c, key: km}, nil
}

func (e *encryption) apply(ctx context.Context, a *app, in, out string) error {
	if e == nil {
		return nil
	}
	if err := encrypt.EncryptFile(ctx, in, out, e.cipher, e.key); err != nil {
		return err
	}
	a.log.Infof("Encrypted output %s successfully created.", out)
	return nil
}

// headerSize returns the --header-size flag value, or the profile's
// header_size when the flag is 0. Readers and the assembler raise it to the
// algorithm minimum.
func (a *app) headerSize(flag int) int {
	if flag != 0 {
		return flag
	}
	return int(a.profile.HeaderSize)
}

func parseVersion(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: version %q must be a positive integer", image.ErrInvalidOptions, s)
	}
	return uint32(v), nil
}

// outputName derives <input-without-extension>_v<version>_<suffix>.bin.
func outputName(input string, version uint32, suffix string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return fmt.Sprintf("%s_v%d_%s.bin", base, version, suffix)
}

// withSuffix replaces the extension of path with _<suffix>.bin.
func withSuffix(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_" + suffix + ".bin"
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}
