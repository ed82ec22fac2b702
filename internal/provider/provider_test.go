/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package provider

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify_AllAlgorithms(t *testing.T) {
	p := New()
	digest := sha256.Sum256([]byte("firmware"))
	for _, alg := range algo.All {
		if testing.Short() && alg.IsRSA() && alg != algo.RSA2048 {
			continue
		}
		t.Run(alg.String(), func(t *testing.T) {
			key, err := p.GenerateKey(alg)
			require.NoError(t, err)

			d := algo.MustLookup(alg)
			assert.LessOrEqual(t, len(key.Public.Raw), d.PubKeyLen)

			sig, err := p.Sign(key, algo.SHA256, digest[:], SignOptions{})
			require.NoError(t, err)
			assert.Len(t, sig, d.SigLen)
			assert.True(t, p.Verify(key.Public, algo.SHA256, digest[:], sig))

			tampered := append([]byte(nil), digest[:]...)
			tampered[0] ^= 0x01
			assert.False(t, p.Verify(key.Public, algo.SHA256, tampered, sig))

			other, err := p.GenerateKey(alg)
			require.NoError(t, err)
			assert.False(t, p.Verify(other.Public, algo.SHA256, digest[:], sig))
		})
	}
}

func TestContainer_RoundTrip(t *testing.T) {
	p := New()
	wantLen := map[algo.Algorithm]int{
		algo.ED25519: 64,
		algo.ED448:   114,
		algo.ECC256:  96,
		algo.ECC384:  144,
		algo.ECC521:  198,
	}
	for alg, n := range wantLen {
		key, err := p.GenerateKey(alg)
		require.NoError(t, err)
		raw, err := key.MarshalContainer()
		require.NoError(t, err)
		assert.Len(t, raw, n, alg.String())

		// the container length alone selects the algorithm when signing
		got, err := algo.Resolve(algo.Auto, raw, algo.ModeSign)
		require.NoError(t, err)
		assert.Equal(t, alg, got)

		back, err := ParsePrivateKey(alg, raw)
		require.NoError(t, err)
		assert.Equal(t, key.Public.Raw, back.Public.Raw)

		pub, err := ParsePublicKey(alg, raw)
		require.NoError(t, err)
		assert.Equal(t, key.Public.Raw, pub.Raw)
	}
}

func TestParsePrivateKey_RSA(t *testing.T) {
	p := New()
	key, err := p.GenerateKey(algo.RSA2048)
	require.NoError(t, err)
	raw, err := key.MarshalContainer()
	require.NoError(t, err)

	back, err := ParsePrivateKey(algo.RSA2048, raw)
	require.NoError(t, err)
	assert.Equal(t, key.Public.Raw, back.Public.Raw)

	pub, err := ParsePublicKey(algo.RSA2048, key.Public.Raw)
	require.NoError(t, err)
	assert.Equal(t, key.Public.Raw, pub.Raw)

	_, err = ParsePrivateKey(algo.RSA4096, raw)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestRSA_DigestInfoVariant(t *testing.T) {
	p := New()
	key, err := p.GenerateKey(algo.RSA2048)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("x"))

	sig, err := p.Sign(key, algo.SHA256, digest[:], SignOptions{EncodeDigestInfo: true})
	require.NoError(t, err)
	assert.True(t, p.Verify(key.Public, algo.SHA256, digest[:], sig))

	raw, err := p.Sign(key, algo.SHA256, digest[:], SignOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, sig, raw)
}

func TestParsePublicKey_Invalid(t *testing.T) {
	_, err := ParsePublicKey(algo.ECC256, make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePublicKey(algo.ED25519, make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePrivateKey(algo.ECC256, bytes.Repeat([]byte{1}, 95))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePublicKey(algo.None, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestHash(t *testing.T) {
	p := New()
	for _, h := range []algo.HashAlgorithm{algo.SHA256, algo.SHA384, algo.SHA3_384} {
		a, err := p.Hash(h, bytes.NewReader([]byte("abc")))
		require.NoError(t, err)
		b, err := p.Hash(h, bytes.NewReader([]byte("abc")))
		require.NoError(t, err)
		assert.Len(t, a, h.Size())
		assert.Equal(t, a, b)
	}
	want := sha256.Sum256([]byte("abc"))
	got, err := p.Hash(algo.SHA256, bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, want[:], got)
}

func TestCOSEKey(t *testing.T) {
	p := New()
	key, err := p.GenerateKey(algo.ECC256)
	require.NoError(t, err)
	ck, err := key.Public.COSEKey()
	require.NoError(t, err)
	pub, err := ck.PublicKey()
	require.NoError(t, err)
	assert.True(t, key.Public.Key.(*ecdsa.PublicKey).Equal(pub))

	ed, err := p.GenerateKey(algo.ED25519)
	require.NoError(t, err)
	ck, err = ed.Public.COSEKey()
	require.NoError(t, err)
	pub, err = ck.PublicKey()
	require.NoError(t, err)
	assert.True(t, ed.Public.Key.(ed25519.PublicKey).Equal(pub))

	rsaKey, err := p.GenerateKey(algo.RSA2048)
	require.NoError(t, err)
	_, err = rsaKey.Public.COSEKey()
	assert.ErrorIs(t, err, ErrUnsupported)
}
