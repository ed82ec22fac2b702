/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package keystore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/fsutil"
	"github.com/kentakayama/bootsign/internal/provider"
	"github.com/sirupsen/logrus"
)

type importReq struct {
	path string
	alg  algo.Algorithm
	mask uint32
}

type generateReq struct {
	path string
	alg  algo.Algorithm
	mask uint32
}

// Builder collects key sources. Imported keys get the first slot ids,
// generated keys follow in the order they were requested.
type Builder struct {
	crypto  provider.Provider
	log     *logrus.Logger
	imports []importReq
	gens    []generateReq

	// Force replaces existing private key files without asking.
	Force bool
	// Confirm is asked before replacing a key file; nil refuses.
	Confirm fsutil.Confirmer
}

func NewBuilder(p provider.Provider, logger *logrus.Logger) *Builder {
	if p == nil {
		p = provider.New()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Builder{crypto: p, log: logger}
}

// Import queues a public key file. alg may be algo.Auto.
func (b *Builder) Import(path string, alg algo.Algorithm, mask uint32) {
	b.imports = append(b.imports, importReq{path: path, alg: alg, mask: mask})
}

// Generate queues one new key pair per path; the private key container is
// written to that path.
func (b *Builder) Generate(alg algo.Algorithm, mask uint32, paths ...string) {
	for _, p := range paths {
		b.gens = append(b.gens, generateReq{path: p, alg: alg, mask: mask})
	}
}

// Build loads and generates the keys and assigns slot ids. Every import is
// read and every key file overwrite is approved up front; generated private
// keys stay in memory until WriteFiles.
func (b *Builder) Build(ctx context.Context) (*Keystore, error) {
	ks := &Keystore{}
	for _, req := range b.imports {
		raw, err := os.ReadFile(req.path)
		if err != nil {
			return nil, err
		}
		alg, err := algo.Resolve(req.alg, raw, algo.ModeVerify)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.path, err)
		}
		pub, err := provider.ParsePublicKey(alg, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.path, err)
		}
		b.log.Infof("Imported %s public key from %s", alg, req.path)
		ks.Records = append(ks.Records, Record{
			SlotID:   uint32(len(ks.Records)),
			KeyType:  alg,
			PartMask: req.mask,
			PubKey:   pub.Raw,
			Source:   filepath.Base(req.path),
		})
	}

	for _, req := range b.gens {
		if req.alg == algo.Auto || req.alg == algo.None {
			return nil, fmt.Errorf("%w: key generation needs an explicit algorithm", algo.ErrUnsupported)
		}
		if _, ok := algo.Lookup(req.alg); !ok {
			return nil, fmt.Errorf("%w: %s", algo.ErrUnsupported, req.alg)
		}
		if err := fsutil.CheckOverwrite(req.path, b.Force, b.Confirm); err != nil {
			return nil, err
		}
	}

	for _, req := range b.gens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.log.Infof("Generating %s key pair for %s", req.alg, req.path)
		priv, err := b.crypto.GenerateKey(req.alg)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", req.alg, err)
		}
		container, err := priv.MarshalContainer()
		if err != nil {
			return nil, err
		}
		ks.pending = append(ks.pending, pendingKey{path: req.path, container: container})
		ks.Records = append(ks.Records, Record{
			SlotID:   uint32(len(ks.Records)),
			KeyType:  req.alg,
			PartMask: req.mask,
			PubKey:   priv.Public.Raw,
			Source:   filepath.Base(req.path),
		})
	}

	if err := ks.Validate(); err != nil {
		return nil, err
	}
	return ks, nil
}
