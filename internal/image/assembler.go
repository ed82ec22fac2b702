/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/fsutil"
	"github.com/kentakayama/bootsign/internal/provider"
	"github.com/kentakayama/bootsign/internal/tlv"
	"github.com/sirupsen/logrus"
)

// Options drive a single Build.
type Options struct {
	Version   uint32
	Timestamp time.Time
	// Algorithm may be algo.Auto to detect from Key, or algo.None for an
	// unsigned image.
	Algorithm  algo.Algorithm
	Hash       algo.HashAlgorithm
	HeaderSize int
	// PartitionID is the target partition, 0 meaning the bootloader.
	PartitionID uint8
	// SelfUpdate marks a bootloader update and forces partition id 0.
	SelfUpdate bool
	// Key is the private key container, or public key material when
	// Signature or ShaOnly is set.
	Key []byte
	// Signature is a detached signature produced elsewhere.
	Signature        []byte
	ShaOnly          bool
	EncodeDigestInfo bool
	Delta            *DeltaInfo
}

// Built is the outcome of Build.
type Built struct {
	Header      []byte
	HeaderSize  int
	PayloadSize uint32
	ImageType   uint16
	Algorithm   algo.Algorithm
	Hash        algo.HashAlgorithm
	Digest      []byte
	Fingerprint []byte
	PublicKey   []byte
	Signature   []byte
}

// Assembler turns payloads into signed images.
type Assembler struct {
	crypto provider.Provider
	log    *logrus.Logger
}

func NewAssembler(p provider.Provider, logger *logrus.Logger) *Assembler {
	if p == nil {
		p = provider.New()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Assembler{crypto: p, log: logger}
}

type credential struct {
	alg  algo.Algorithm
	priv *provider.PrivateKey
	pub  *provider.PublicKey
}

// resolve validates opts and loads the key. Nothing is written before it
// succeeds.
func (a *Assembler) resolve(opts *Options) (*credential, error) {
	if opts.Version == 0 {
		return nil, fmt.Errorf("%w: version must be a positive integer", ErrInvalidOptions)
	}
	if opts.PartitionID > MaxPartitionID {
		return nil, fmt.Errorf("%w: partition id %d out of range 0..%d", ErrInvalidOptions, opts.PartitionID, MaxPartitionID)
	}
	if opts.Hash == 0 {
		opts.Hash = algo.SHA256
	}
	if opts.Hash.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", algo.ErrUnknownHash, opts.Hash)
	}
	if opts.Delta != nil {
		if opts.Delta.ForwardSize > 0xFFFF || opts.Delta.InverseSize > 0xFFFF {
			return nil, fmt.Errorf("%w: delta patch sizes must fit in 16 bits", ErrInvalidOptions)
		}
		if opts.Delta.ForwardAligned < opts.Delta.ForwardSize {
			return nil, fmt.Errorf("%w: aligned forward size below forward size", ErrInvalidOptions)
		}
	}
	if opts.Algorithm == algo.None {
		if opts.Signature != nil {
			return nil, fmt.Errorf("%w: manual signature with an unsigned image", ErrInvalidOptions)
		}
		return &credential{alg: algo.None}, nil
	}
	if opts.ShaOnly && opts.Signature != nil {
		return nil, fmt.Errorf("%w: sha-only and manual signature are exclusive", ErrInvalidOptions)
	}
	if len(opts.Key) == 0 {
		return nil, ErrMissingKey
	}

	mode := algo.ModeSign
	if opts.ShaOnly || opts.Signature != nil {
		mode = algo.ModeVerify
	}
	alg, err := algo.Resolve(opts.Algorithm, opts.Key, mode)
	if err != nil {
		return nil, err
	}
	cred := &credential{alg: alg}
	if mode == algo.ModeSign {
		cred.priv, err = provider.ParsePrivateKey(alg, opts.Key)
		if err != nil {
			return nil, err
		}
		cred.pub = cred.priv.Public
	} else {
		cred.pub, err = provider.ParsePublicKey(alg, opts.Key)
		if err != nil {
			return nil, err
		}
	}
	if opts.Signature != nil {
		if want := algo.MustLookup(alg).SigLen; len(opts.Signature) != want {
			return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrSignatureSize, alg, want, len(opts.Signature))
		}
	}
	return cred, nil
}

// Build lays out the header for a payload of size bytes read from payload.
// The payload is streamed through the digest; it is not kept in memory.
func (a *Assembler) Build(ctx context.Context, payload io.Reader, size int64, opts Options) (*Built, error) {
	cred, err := a.resolve(&opts)
	if err != nil {
		return nil, err
	}
	if size < 0 || size > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: payload size %d", ErrInvalidOptions, size)
	}
	a.log.Infof("Selected cipher: %s", cred.alg)
	a.log.Infof("Selected hash: %s", opts.Hash)

	headerSize := algo.HeaderSize(opts.HeaderSize, cred.alg)
	if headerSize != opts.HeaderSize && opts.HeaderSize != 0 {
		a.log.Infof("Header size raised from %d to %d for %s", opts.HeaderSize, headerSize, cred.alg)
	}

	partition := opts.PartitionID
	if opts.SelfUpdate {
		partition = PartitionBootloader
	}
	imageType := ImageType(cred.alg, partition, opts.Delta != nil)

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	enc := tlv.NewEncoder(headerSize, uint32(size))
	if _, err := enc.AppendUint32(tlv.TagVersion, opts.Version); err != nil {
		return nil, err
	}
	if _, err := enc.AppendUint64(tlv.TagTimestamp, uint64(ts.Unix())); err != nil {
		return nil, err
	}
	if _, err := enc.AppendUint16(tlv.TagImageType, imageType); err != nil {
		return nil, err
	}
	if d := opts.Delta; d != nil {
		if err := appendDelta(enc, d); err != nil {
			return nil, err
		}
	}

	// The digest covers everything before the digest record, alignment
	// padding included.
	if err := enc.Align(8); err != nil {
		return nil, err
	}
	a.log.Infof("Calculating %s digest...", opts.Hash)
	digest, err := a.digest(ctx, opts.Hash, enc.Bytes(), payload, size)
	if err != nil {
		return nil, err
	}
	a.log.Debugf("digest %x", digest)
	if _, err := enc.Append(opts.Hash.Tag(), digest); err != nil {
		return nil, err
	}

	built := &Built{
		HeaderSize:  headerSize,
		PayloadSize: uint32(size),
		ImageType:   imageType,
		Algorithm:   cred.alg,
		Hash:        opts.Hash,
		Digest:      digest,
	}

	if cred.alg != algo.None {
		built.Fingerprint, err = provider.Fingerprint(a.crypto, opts.Hash, cred.pub)
		if err != nil {
			return nil, err
		}
		built.PublicKey = cred.pub.Raw
		a.log.Debugf("public key fingerprint %x", built.Fingerprint)
		if _, err := enc.Append(tlv.TagPubKeyHint, built.Fingerprint); err != nil {
			return nil, err
		}

		switch {
		case opts.ShaOnly:
		case opts.Signature != nil:
			built.Signature = opts.Signature
			if !a.crypto.Verify(cred.pub, opts.Hash, digest, opts.Signature) {
				a.log.Warnf("manual signature does not verify against the supplied public key")
			}
		default:
			a.log.Infof("Signing the digest...")
			built.Signature, err = a.crypto.Sign(cred.priv, opts.Hash, digest, provider.SignOptions{EncodeDigestInfo: opts.EncodeDigestInfo})
			if err != nil {
				return nil, fmt.Errorf("sign: %w", err)
			}
		}
		if built.Signature != nil {
			if _, err := enc.Append(tlv.TagSignature, built.Signature); err != nil {
				return nil, err
			}
		}
	}

	built.Header = enc.Finish()
	return built, nil
}

func appendDelta(enc *tlv.Encoder, d *DeltaInfo) error {
	if _, err := enc.AppendUint32(tlv.TagDeltaBase, d.BaseVersion); err != nil {
		return err
	}
	if _, err := enc.AppendUint16(tlv.TagDeltaSize, uint16(d.ForwardSize)); err != nil {
		return err
	}
	if _, err := enc.AppendUint32(tlv.TagDeltaInverse, d.InverseOffset(enc.Size())); err != nil {
		return err
	}
	_, err := enc.AppendUint16(tlv.TagDeltaInverseSize, uint16(d.InverseSize))
	return err
}

func (a *Assembler) digest(ctx context.Context, h algo.HashAlgorithm, prefix []byte, payload io.Reader, size int64) ([]byte, error) {
	hh, err := a.crypto.NewHash(h)
	if err != nil {
		return nil, err
	}
	hh.Write(prefix)
	n, err := io.CopyBuffer(hh, &ctxReader{ctx: ctx, r: io.LimitReader(payload, size)}, make([]byte, 32*1024))
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, fmt.Errorf("%w: read %d of %d bytes", ErrShortPayload, n, size)
	}
	return hh.Sum(nil), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// SignFile signs the payload at in and writes the artifact to out: the
// full image, or only the digest with ShaOnly. The payload mtime is the
// default timestamp. out is written through a temporary file.
func (a *Assembler) SignFile(ctx context.Context, in, out string, opts Options) (*Built, error) {
	f, err := os.Open(in)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if opts.Timestamp.IsZero() {
		opts.Timestamp = st.ModTime()
	}

	built, err := a.Build(ctx, f, st.Size(), opts)
	if err != nil {
		return nil, err
	}

	if opts.ShaOnly {
		if err := fsutil.WriteBytesAtomic(ctx, out, 0o644, built.Digest); err != nil {
			return nil, err
		}
		a.log.Infof("Digest image %s successfully created.", out)
		return built, nil
	}

	err = fsutil.WriteFileAtomic(ctx, out, 0o644, func(w io.Writer) error {
		if _, err := w.Write(built.Header); err != nil {
			return err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		n, err := io.Copy(w, &ctxReader{ctx: ctx, r: io.LimitReader(f, st.Size())})
		if err != nil {
			return err
		}
		if n != st.Size() {
			return fmt.Errorf("%w: %s changed while signing", ErrShortPayload, in)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Infof("Output image %s successfully created.", out)
	return built, nil
}

// BuildBytes is Build over an in-memory payload and returns header||payload.
func (a *Assembler) BuildBytes(ctx context.Context, payload []byte, opts Options) ([]byte, *Built, error) {
	built, err := a.Build(ctx, bytes.NewReader(payload), int64(len(payload)), opts)
	if err != nil {
		return nil, nil, err
	}
	out := make([]byte, 0, len(built.Header)+len(payload))
	out = append(out, built.Header...)
	return append(out, payload...), built, nil
}

// IsPolicyError reports whether err was raised while validating options
// or key material, before any output was produced.
func IsPolicyError(err error) bool {
	for _, target := range []error{
		ErrInvalidOptions, ErrMissingKey, ErrSignatureSize,
		algo.ErrMismatch, algo.ErrAmbiguousKey, algo.ErrUnknownKey, algo.ErrUnsupported, algo.ErrUnknownHash,
		tlv.ErrHeaderOverflow, provider.ErrInvalidKey,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
