/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/bootstatus"
	"github.com/kentakayama/bootsign/internal/image"
	"github.com/kentakayama/bootsign/internal/keystore"
	"github.com/kentakayama/bootsign/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

type workspace struct {
	dir     string
	keyPath string
	pubPath string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	priv, err := provider.New().GenerateKey(algo.ECC256)
	require.NoError(t, err)
	container, err := priv.MarshalContainer()
	require.NoError(t, err)
	w := &workspace{dir: dir, keyPath: filepath.Join(dir, "key.der"), pubPath: filepath.Join(dir, "key_pub.der")}
	require.NoError(t, os.WriteFile(w.keyPath, container, 0o600))
	require.NoError(t, os.WriteFile(w.pubPath, priv.Public.Raw, 0o644))
	return w
}

func (w *workspace) file(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(w.dir, name)
	require.NoError(t, os.WriteFile(p, content, 0o644))
	return p
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestSignVerifyInspectLedger(t *testing.T) {
	w := newWorkspace(t)
	app := w.file(t, "app.bin", randomBytes(t, 1024))
	ledger := filepath.Join(w.dir, "ledger.db")

	_, err := run(t, "sign", app, w.keyPath, "3", "--ledger", ledger, "--timestamp", "1700000000")
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	signed := filepath.Join(w.dir, "app_v3_signed.bin")
	require.FileExists(t, signed)

	out, err := run(t, "verify", signed, w.pubPath)
	require.NoError(t, err)
	assert.Contains(t, out, "digest:       OK")
	assert.Contains(t, out, "pubkey hint:  OK")
	assert.Contains(t, out, "signature:    OK")

	out, err = run(t, "inspect", signed)
	require.NoError(t, err)
	assert.Contains(t, out, "version:      3")
	assert.Contains(t, out, "payload size: 1024")
	assert.Contains(t, out, "image type:   0x0201 (ecc256, partition 1)")
	assert.Contains(t, out, "timestamp:    2023-11-14T22:13:20Z")

	out, err = run(t, "ledger", "list", "--ledger", ledger)
	require.NoError(t, err)
	assert.Contains(t, out, "app_v3_signed.bin")
	assert.Contains(t, out, "key #1")
}

func TestVerify_Tampered(t *testing.T) {
	w := newWorkspace(t)
	app := w.file(t, "app.bin", randomBytes(t, 512))
	_, err := run(t, "sign", app, w.keyPath, "1")
	require.NoError(t, err)

	signed := filepath.Join(w.dir, "app_v1_signed.bin")
	b, err := os.ReadFile(signed)
	require.NoError(t, err)
	b[len(b)-1] ^= 0x01
	require.NoError(t, os.WriteFile(signed, b, 0o644))

	out, err := run(t, "verify", signed, w.pubPath)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Contains(t, out, "digest:       FAILED")
}

func TestSign_Variants(t *testing.T) {
	w := newWorkspace(t)
	app := w.file(t, "fw.bin", randomBytes(t, 300))

	_, err := run(t, "sign", app, "2")
	assert.ErrorIs(t, err, image.ErrMissingKey)

	_, err = run(t, "sign", "--algorithm", "none", app, "2")
	require.NoError(t, err)
	out, err := run(t, "inspect", filepath.Join(w.dir, "fw_v2_signed.bin"))
	require.NoError(t, err)
	assert.Contains(t, out, "0xff01")

	out, err = run(t, "sign", "--sha-only", app, w.pubPath, "4")
	require.NoError(t, err)
	digest, err := os.ReadFile(filepath.Join(w.dir, "fw_v4_digest.bin"))
	require.NoError(t, err)
	assert.Len(t, digest, 32)
	assert.Contains(t, out, hex.EncodeToString(digest))

	_, err = run(t, "sign", app, w.keyPath, "0")
	assert.ErrorIs(t, err, image.ErrInvalidOptions)
	assert.NoFileExists(t, filepath.Join(w.dir, "fw_v0_signed.bin"))
}

func TestProfileHeaderSize(t *testing.T) {
	w := newWorkspace(t)
	profile := w.file(t, "profile.yaml", []byte("header_size: 0x200\n"))
	base := randomBytes(t, 2048)
	next := append([]byte(nil), base...)
	copy(next[100:], []byte("patched"))
	v1 := w.file(t, "fw_v1.bin", base)
	v2 := w.file(t, "fw_v2.bin", next)

	_, err := run(t, "--profile", profile, "sign", v1, w.keyPath, "1")
	require.NoError(t, err)
	_, err = run(t, "--profile", profile, "sign", v2, w.keyPath, "2")
	require.NoError(t, err)
	baseSigned := filepath.Join(w.dir, "fw_v1_v1_signed.bin")
	newSigned := filepath.Join(w.dir, "fw_v2_v2_signed.bin")
	img, err := os.ReadFile(newSigned)
	require.NoError(t, err)
	require.Len(t, img, 0x200+len(next))

	out, err := run(t, "--profile", profile, "verify", newSigned, w.pubPath)
	if err != nil {
		t.Fatalf("verify error: %v\n%s", err, out)
	}
	assert.Contains(t, out, "header size:  512")
	assert.Contains(t, out, "signature:    OK")

	out, err = run(t, "--profile", profile, "inspect", newSigned)
	require.NoError(t, err)
	assert.Contains(t, out, "payload size: 2048")

	// without the profile the image is read with the wrong header size
	out, err = run(t, "verify", newSigned, w.pubPath)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Contains(t, out, "header size:  256")

	out, err = run(t, "verify", "--header-size", "512", newSigned, w.pubPath)
	require.NoError(t, err)
	assert.Contains(t, out, "signature:    OK")

	_, err = run(t, "--profile", profile, "delta", baseSigned, newSigned, w.keyPath, "--diff-tool", "builtin")
	require.NoError(t, err)
	diff := filepath.Join(w.dir, "fw_v2_v2_signed_diff.bin")
	out, err = run(t, "--profile", profile, "verify", diff, w.pubPath)
	require.NoError(t, err)
	assert.Contains(t, out, "header size:  512")

	restored := filepath.Join(w.dir, "restored.bin")
	_, err = run(t, "--profile", profile, "patch", baseSigned, diff, restored)
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestSign_ShaOnlyAutoDetect(t *testing.T) {
	w := newWorkspace(t)
	app := w.file(t, "fw.bin", randomBytes(t, 256))

	// a 96 byte ecc256 container is accepted without naming the algorithm
	out, err := run(t, "sign", "--algorithm", "auto", "--sha-only", app, w.keyPath, "7")
	require.NoError(t, err)
	digest, err := os.ReadFile(filepath.Join(w.dir, "fw_v7_digest.bin"))
	require.NoError(t, err)
	assert.Contains(t, out, hex.EncodeToString(digest))
}

func TestSign_EncryptedCopy(t *testing.T) {
	w := newWorkspace(t)
	app := w.file(t, "app.bin", randomBytes(t, 700))
	encKey := w.file(t, "enc.key", randomBytes(t, 32+12))

	_, err := run(t, "sign", app, w.keyPath, "5", "--encrypt", encKey)
	require.NoError(t, err)
	signed := filepath.Join(w.dir, "app_v5_signed.bin")
	encrypted := filepath.Join(w.dir, "app_v5_signed_and_encrypted.bin")
	require.FileExists(t, encrypted)

	plain := filepath.Join(w.dir, "decrypted.bin")
	_, err = run(t, "decrypt", encrypted, plain, "--key", encKey)
	require.NoError(t, err)

	want, err := os.ReadFile(signed)
	require.NoError(t, err)
	got, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// a key file of the wrong length fails before anything is written
	bad := w.file(t, "bad.key", randomBytes(t, 40))
	_, err = run(t, "sign", app, w.keyPath, "6", "--encrypt", bad)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(w.dir, "app_v6_signed.bin"))
}

func TestDeltaAndPatch(t *testing.T) {
	w := newWorkspace(t)
	base := randomBytes(t, 4096)
	next := append([]byte(nil), base...)
	copy(next[1000:], []byte("second release"))

	v1 := w.file(t, "app_v1.bin", base)
	v2 := w.file(t, "app_v2.bin", next)
	_, err := run(t, "sign", v1, w.keyPath, "1", "--timestamp", "1700000001")
	require.NoError(t, err)
	_, err = run(t, "sign", v2, w.keyPath, "2", "--timestamp", "1700000002")
	require.NoError(t, err)
	baseSigned := filepath.Join(w.dir, "app_v1_v1_signed.bin")
	newSigned := filepath.Join(w.dir, "app_v2_v2_signed.bin")

	out, err := run(t, "delta", baseSigned, newSigned, w.keyPath, "--diff-tool", "builtin")
	if err != nil {
		t.Fatalf("delta error: %v", err)
	}
	assert.Contains(t, out, "base version 1, version 2")
	diff := filepath.Join(w.dir, "app_v2_v2_signed_diff.bin")

	out, err = run(t, "verify", diff, w.pubPath)
	require.NoError(t, err)
	assert.Contains(t, out, "delta")

	restored := filepath.Join(w.dir, "restored.bin")
	_, err = run(t, "patch", baseSigned, diff, restored)
	require.NoError(t, err)
	want, err := os.ReadFile(newSigned)
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	rolledBack := filepath.Join(w.dir, "rollback.bin")
	_, err = run(t, "patch", "--inverse", newSigned, diff, rolledBack)
	require.NoError(t, err)
	want, err = os.ReadFile(baseSigned)
	require.NoError(t, err)
	got, err = os.ReadFile(rolledBack)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestKeygenAndShow(t *testing.T) {
	w := newWorkspace(t)
	priv := filepath.Join(w.dir, "gen.der")
	bin := filepath.Join(w.dir, "keystore.img")
	src := filepath.Join(w.dir, "keystore.c")
	cose := filepath.Join(w.dir, "keystore.cbor")

	out, err := run(t, "keygen", "-i", w.pubPath, "-g", "ed25519:"+priv+"@0x2",
		"--out-bin", bin, "--out-c", src, "--out-cose", cose)
	if err != nil {
		t.Fatalf("keygen error: %v", err)
	}
	assert.Contains(t, out, "slot 0: ecc256 mask 0xffffffff")
	assert.Contains(t, out, "slot 1: ed25519 mask 0x00000002")
	require.FileExists(t, priv)
	require.FileExists(t, src)

	out, err = run(t, "keystore", "show", bin)
	require.NoError(t, err)
	assert.Contains(t, out, "slot 0: ecc256")
	assert.Contains(t, out, "slot 1: ed25519")

	out, err = run(t, "keystore", "show", cose)
	require.NoError(t, err)
	assert.Contains(t, out, `"kty(1)"`)
	assert.Contains(t, out, `"kid(2)": "h'01000000'"`)

	// regenerating over an existing private key needs confirmation
	_, err = run(t, "keygen", "-g", "ed25519:"+priv, "--out-bin", bin, "--out-c", "", "--out-cose", "")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	w := newWorkspace(t)
	profile := w.file(t, "profile.yaml", []byte("partition_size: 0x100\nboot_partition_address: 0x0\nupdate_partition_address: 0x100\n"))
	flash := w.file(t, "flash.bin", bytes.Repeat([]byte{0xFF}, 0x200))

	_, err := run(t, "--profile", profile, "status", "get", "BOOT", flash)
	assert.ErrorIs(t, err, bootstatus.ErrMissingMagic)

	_, err = run(t, "--profile", profile, "status", "set", "UPDATE", flash, "UPDATING")
	require.NoError(t, err)
	out, err := run(t, "--profile", profile, "status", "get", "update", flash)
	require.NoError(t, err)
	assert.Equal(t, "UPDATING\n", out)

	_, err = run(t, "--profile", profile, "status", "set", "UPDATE", flash, "DONE")
	assert.ErrorIs(t, err, bootstatus.ErrInvalidStatus)
}

func TestEnvOverrides(t *testing.T) {
	w := newWorkspace(t)
	app := w.file(t, "app.bin", randomBytes(t, 128))
	t.Setenv("BOOTSIGN_HASH", "sha384")
	t.Setenv("BOOTSIGN_PARTITION_ID", "3")

	_, err := run(t, "sign", app, w.keyPath, "1")
	require.NoError(t, err)
	out, err := run(t, "inspect", filepath.Join(w.dir, "app_v1_signed.bin"))
	require.NoError(t, err)
	assert.Contains(t, out, "hash:         SHA384")
	assert.Contains(t, out, "partition 3")
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "dir/app_v7_signed.bin", outputName("dir/app.bin", 7, "signed"))
	assert.Equal(t, "dir.d/app_v7_digest.bin", outputName("dir.d/app", 7, "digest"))
	assert.Equal(t, "app_v2_signed_diff.bin", withSuffix("app_v2_signed.bin", "diff"))
}

func TestParseKeySpec(t *testing.T) {
	ks, err := parseKeySpec("rsa2048:keys/a.der@0x3", algo.Auto)
	require.NoError(t, err)
	assert.Equal(t, algo.RSA2048, ks.alg)
	assert.Equal(t, "keys/a.der", ks.path)
	assert.Equal(t, uint32(3), ks.mask)

	ks, err = parseKeySpec("C:/keys/b.der", algo.ECC256)
	require.NoError(t, err)
	assert.Equal(t, algo.ECC256, ks.alg)
	assert.Equal(t, "C:/keys/b.der", ks.path)

	_, err = parseKeySpec("a.der@zz", algo.Auto)
	assert.Error(t, err)
}

func TestVerify_WithKeystore(t *testing.T) {
	w := newWorkspace(t)
	bin := filepath.Join(w.dir, "keystore.img")
	_, err := run(t, "keygen", "-i", w.pubPath+"@0x2", "--out-bin", bin, "--out-c", "", "--out-cose", "")
	require.NoError(t, err)

	app := w.file(t, "app.bin", randomBytes(t, 256))
	_, err = run(t, "sign", app, w.keyPath, "1")
	require.NoError(t, err)
	out, err := run(t, "verify", "--keystore", bin, filepath.Join(w.dir, "app_v1_signed.bin"))
	require.NoError(t, err)
	assert.Contains(t, out, "signature:    OK")

	// the key is not allowed to sign for partition 2
	_, err = run(t, "sign", "--partition-id", "2", "-o", filepath.Join(w.dir, "p2.bin"), app, w.keyPath, "1")
	require.NoError(t, err)
	_, err = run(t, "verify", "--keystore", bin, filepath.Join(w.dir, "p2.bin"))
	assert.ErrorIs(t, err, keystore.ErrPartition)
}
