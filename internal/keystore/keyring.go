/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package keystore

import (
	"bytes"
	"fmt"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/provider"
)

// Keyring resolves the public key hint carried by an image to a keystore
// slot, the way the bootloader picks its verification key.
type Keyring struct {
	ks     *Keystore
	crypto provider.Provider
}

func NewKeyring(ks *Keystore, p provider.Provider) *Keyring {
	if p == nil {
		p = provider.New()
	}
	return &Keyring{ks: ks, crypto: p}
}

// Find returns the record whose key hashes to hint under h and whose
// partition mask admits partition.
func (k *Keyring) Find(h algo.HashAlgorithm, hint []byte, partition uint8) (*Record, *provider.PublicKey, error) {
	if len(hint) == 0 {
		return nil, nil, fmt.Errorf("%w: image carries no hint", ErrKeyNotFound)
	}
	for i := range k.ks.Records {
		r := &k.ks.Records[i]
		pub, err := provider.ParsePublicKey(r.KeyType, r.PubKey)
		if err != nil {
			return nil, nil, fmt.Errorf("slot %d: %w", r.SlotID, err)
		}
		fp, err := provider.Fingerprint(k.crypto, h, pub)
		if err != nil {
			return nil, nil, err
		}
		if !bytes.Equal(fp, hint) {
			continue
		}
		if r.PartMask&(1<<partition) == 0 {
			return r, pub, fmt.Errorf("%w: slot %d mask %#x, partition %d", ErrPartition, r.SlotID, r.PartMask, partition)
		}
		return r, pub, nil
	}
	return nil, nil, fmt.Errorf("%w: %x", ErrKeyNotFound, hint)
}
