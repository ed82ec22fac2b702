/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package algo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_LengthTable(t *testing.T) {
	cases := []struct {
		n      int
		mode   Mode
		result Result
		alg    Algorithm
	}{
		{32, ModeSign, Detected, ED25519},
		{32, ModeVerify, Ambiguous, Auto},
		{57, ModeVerify, Detected, ED448},
		{57, ModeSign, Unknown, Auto},
		{64, ModeSign, Detected, ED25519},
		{64, ModeVerify, Detected, ECC256},
		{96, ModeSign, Detected, ECC256},
		{96, ModeVerify, Detected, ECC256},
		{114, ModeSign, Detected, ED448},
		{114, ModeVerify, Detected, ED448},
		{132, ModeVerify, Detected, ECC521},
		{144, ModeSign, Detected, ECC384},
		{198, ModeSign, Detected, ECC521},
		{600, ModeSign, Detected, RSA4096},
		{300, ModeSign, Detected, RSA3072},
		{200, ModeSign, Detected, RSA2048},
		{16, ModeSign, Unknown, Auto},
		{100, ModeVerify, Unknown, Auto},
		{0, ModeSign, Unknown, Auto},
	}
	for _, c := range cases {
		d := Detect(make([]byte, c.n), c.mode)
		assert.Equal(t, c.result, d.Result, "%d bytes, %s", c.n, c.mode)
		if c.result == Detected {
			assert.Equal(t, c.alg, d.Algorithm, "%d bytes, %s", c.n, c.mode)
		}
	}
}

func TestDetect_RSAByModulus(t *testing.T) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	// a 2048 bit public key is longer than 256 bytes but must not be
	// mistaken for rsa3072
	pub, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	require.NoError(t, err)
	require.Greater(t, len(pub), 256)
	d := Detect(pub, ModeVerify)
	assert.Equal(t, Detected, d.Result)
	assert.Equal(t, RSA2048, d.Algorithm)

	priv := x509.MarshalPKCS1PrivateKey(k)
	require.Greater(t, len(priv), 512)
	d = Detect(priv, ModeSign)
	assert.Equal(t, RSA2048, d.Algorithm)
}

func TestResolve(t *testing.T) {
	alg, err := Resolve(Auto, make([]byte, 96), ModeSign)
	require.NoError(t, err)
	assert.Equal(t, ECC256, alg)

	_, err = Resolve(ED25519, make([]byte, 96), ModeSign)
	assert.ErrorIs(t, err, ErrMismatch)

	_, err = Resolve(ECC256, make([]byte, 64), ModeSign)
	assert.ErrorIs(t, err, ErrMismatch)

	alg, err = Resolve(ECC256, make([]byte, 64), ModeVerify)
	require.NoError(t, err)
	assert.Equal(t, ECC256, alg)

	alg, err = Resolve(ED25519, make([]byte, 64), ModeVerify)
	require.NoError(t, err)
	assert.Equal(t, ED25519, alg)

	_, err = Resolve(Auto, make([]byte, 32), ModeVerify)
	assert.ErrorIs(t, err, ErrAmbiguousKey)

	alg, err = Resolve(ED25519, make([]byte, 32), ModeVerify)
	require.NoError(t, err)
	assert.Equal(t, ED25519, alg)

	_, err = Resolve(Auto, make([]byte, 10), ModeSign)
	assert.ErrorIs(t, err, ErrUnknownKey)

	alg, err = Resolve(None, nil, ModeSign)
	require.NoError(t, err)
	assert.Equal(t, None, alg)
}

func TestResolve_NinetySixByteVerify(t *testing.T) {
	alg, err := Resolve(Auto, make([]byte, 96), ModeVerify)
	require.NoError(t, err)
	assert.Equal(t, ECC256, alg)

	alg, err = Resolve(ECC384, make([]byte, 96), ModeVerify)
	require.NoError(t, err)
	assert.Equal(t, ECC384, alg)

	_, err = Resolve(ECC384, make([]byte, 96), ModeSign)
	assert.ErrorIs(t, err, ErrMismatch)
}
