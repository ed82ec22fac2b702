/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package image

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/provider"
	"github.com/kentakayama/bootsign/internal/tlv"
	"github.com/sirupsen/logrus"
)

// VerifyOptions select the trust material for Verify.
type VerifyOptions struct {
	// HeaderSize 0 derives the header size from the image-type field.
	HeaderSize int
	// PublicKey enables the fingerprint and signature checks.
	PublicKey []byte
	// Algorithm overrides the algorithm named by the image.
	Algorithm algo.Algorithm
}

// Report is the verdict of Verify. Mismatches land here, not in errors.
type Report struct {
	*Info
	Computed []byte
	DigestOK bool

	FingerprintChecked bool
	FingerprintOK      bool
	SignatureChecked   bool
	SignatureOK        bool
}

// OK reports whether every check that ran passed.
func (r *Report) OK() bool {
	if !r.DigestOK {
		return false
	}
	if r.FingerprintChecked && !r.FingerprintOK {
		return false
	}
	return !r.SignatureChecked || r.SignatureOK
}

// Verifier re-checks images.
type Verifier struct {
	crypto provider.Provider
	log    *logrus.Logger
}

func NewVerifier(p provider.Provider, logger *logrus.Logger) *Verifier {
	if p == nil {
		p = provider.New()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Verifier{crypto: p, log: logger}
}

// Verify recomputes the digest over the header bytes before the digest
// record and the payload, and checks the signature when a public key is
// given.
func (v *Verifier) Verify(ctx context.Context, r io.ReaderAt, size int64, opts VerifyOptions) (*Report, error) {
	info, err := Inspect(r, size, opts.HeaderSize)
	if err != nil {
		return nil, err
	}
	end := int64(info.HeaderSize) + int64(info.PayloadSize)
	if size < end {
		return nil, fmt.Errorf("%w: image is %d bytes, header declares %d", tlv.ErrTruncated, size, end)
	}
	if size > end {
		v.log.Warnf("%d trailing bytes after the payload", size-end)
	}

	hh, err := v.crypto.NewHash(info.Hash)
	if err != nil {
		return nil, err
	}
	hh.Write(info.Raw[:info.DigestField.Offset])
	payload := io.NewSectionReader(r, int64(info.HeaderSize), int64(info.PayloadSize))
	if _, err := io.CopyBuffer(hh, &ctxReader{ctx: ctx, r: payload}, make([]byte, 32*1024)); err != nil {
		return nil, fmt.Errorf("hash payload: %w", err)
	}
	rep := &Report{Info: info, Computed: hh.Sum(nil)}
	rep.DigestOK = bytes.Equal(rep.Computed, info.DigestField.Value)
	v.log.Debugf("stored digest %x computed %x", info.DigestField.Value, rep.Computed)

	if len(opts.PublicKey) == 0 {
		return rep, nil
	}

	alg := v.signatureAlgorithm(info, opts.Algorithm)
	if alg == algo.None || alg == algo.Auto {
		v.log.Infof("image carries no signature to check")
		return rep, nil
	}
	resolved, err := algo.Resolve(alg, opts.PublicKey, algo.ModeVerify)
	if err != nil {
		return nil, err
	}
	pub, err := provider.ParsePublicKey(resolved, opts.PublicKey)
	if err != nil {
		return nil, err
	}

	if info.Fingerprint != nil {
		fp, err := provider.Fingerprint(v.crypto, info.Hash, pub)
		if err != nil {
			return nil, err
		}
		rep.FingerprintChecked = true
		rep.FingerprintOK = bytes.Equal(fp, info.Fingerprint)
	}
	rep.SignatureChecked = true
	if info.Signature != nil {
		rep.SignatureOK = v.crypto.Verify(pub, info.Hash, rep.Computed, info.Signature)
	}
	return rep, nil
}

// signatureAlgorithm picks the algorithm: the override, then the
// image-type field, then the signature length with ecc256 winning ties.
func (v *Verifier) signatureAlgorithm(info *Info, override algo.Algorithm) algo.Algorithm {
	if override != algo.Auto {
		return override
	}
	if info.Algorithm != algo.Auto {
		return info.Algorithm
	}
	if info.Signature == nil {
		return algo.None
	}
	cands := algo.SignatureCandidates(len(info.Signature))
	switch {
	case len(cands) == 0:
		return algo.Auto
	case slices.Contains(cands, algo.ECC256):
		return algo.ECC256
	}
	return cands[0]
}

// VerifyFile opens path and runs Verify on it.
func (v *Verifier) VerifyFile(ctx context.Context, path string, opts VerifyOptions) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, f, st.Size(), opts)
}

// InspectFile opens path and runs Inspect on it.
func InspectFile(path string, headerSize int) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Inspect(f, st.Size(), headerSize)
}
