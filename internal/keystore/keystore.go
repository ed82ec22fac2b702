/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package keystore builds the bootloader trust table: a run of fixed size
// records holding public keys, emitted as a binary file, as C source and
// as a COSE_KeySet.
package keystore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/fsutil"
	"github.com/kentakayama/bootsign/internal/provider"
	"github.com/kentakayama/bootsign/internal/util"
	"github.com/kentakayama/bootsign/resources"
)

// AllPartitions is the default access mask.
const AllPartitions uint32 = 0xFFFFFFFF

// RecordHeaderLen is slot_id, key_type, part_id_mask and pubkey_size.
const RecordHeaderLen = 16

// Record is one keystore slot.
type Record struct {
	SlotID   uint32
	KeyType  algo.Algorithm
	PartMask uint32
	PubKey   []byte
	// Source names the file the key came from; it only appears in the C
	// output.
	Source string
}

// Keystore is an ordered set of records sharing one key width.
type Keystore struct {
	Records []Record

	// private keys generated by Builder, written by WriteFiles
	pending []pendingKey
}

type pendingKey struct {
	path      string
	container []byte
}

// KeyWidth is the pubkey field size: the largest public key length of the
// algorithms present.
func (k *Keystore) KeyWidth() int {
	w := 0
	for _, r := range k.Records {
		if d, ok := algo.Lookup(r.KeyType); ok && d.PubKeyLen > w {
			w = d.PubKeyLen
		}
	}
	return w
}

// Validate checks slot uniqueness and that every key fits its slot.
func (k *Keystore) Validate() error {
	if len(k.Records) == 0 {
		return ErrEmpty
	}
	seen := util.NewSet[uint32]()
	w := k.KeyWidth()
	for _, r := range k.Records {
		if seen.Has(r.SlotID) {
			return fmt.Errorf("%w: %d", ErrDuplicateSlot, r.SlotID)
		}
		seen.Add(r.SlotID)
		if _, ok := algo.Lookup(r.KeyType); !ok || r.KeyType == algo.None {
			return fmt.Errorf("%w: slot %d has key type %#x", ErrMalformed, r.SlotID, uint8(r.KeyType))
		}
		if len(r.PubKey) > w {
			return fmt.Errorf("%w: slot %d key is %d bytes, slot width %d", ErrMalformed, r.SlotID, len(r.PubKey), w)
		}
	}
	return nil
}

// MarshalBinary lays the records out back to back.
func (k *Keystore) MarshalBinary() ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	w := k.KeyWidth()
	out := make([]byte, 0, len(k.Records)*(RecordHeaderLen+w))
	for _, r := range k.Records {
		out = binary.LittleEndian.AppendUint32(out, r.SlotID)
		out = binary.LittleEndian.AppendUint32(out, uint32(r.KeyType))
		out = binary.LittleEndian.AppendUint32(out, r.PartMask)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(r.PubKey)))
		out = append(out, r.PubKey...)
		out = append(out, make([]byte, w-len(r.PubKey))...)
	}
	return out, nil
}

// UnmarshalBinary parses a binary keystore. width is the pubkey field size;
// 0 tries every algorithm key size and keeps the first consistent layout.
func UnmarshalBinary(data []byte, width int) (*Keystore, error) {
	if width > 0 {
		return unmarshalWidth(data, width)
	}
	var widths []int
	for _, alg := range algo.All {
		widths = append(widths, algo.MustLookup(alg).PubKeyLen)
	}
	slices.Sort(widths)
	widths = slices.Compact(widths)
	for _, w := range widths {
		if ks, err := unmarshalWidth(data, w); err == nil && ks.KeyWidth() == w {
			return ks, nil
		}
	}
	return nil, fmt.Errorf("%w: no record width matches %d bytes", ErrMalformed, len(data))
}

func unmarshalWidth(data []byte, w int) (*Keystore, error) {
	rec := RecordHeaderLen + w
	if len(data) == 0 || len(data)%rec != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformed, len(data), rec)
	}
	ks := &Keystore{}
	for p := 0; p < len(data); p += rec {
		n := int(binary.LittleEndian.Uint32(data[p+12:]))
		if n > w {
			return nil, fmt.Errorf("%w: key size %d over width %d", ErrMalformed, n, w)
		}
		ks.Records = append(ks.Records, Record{
			SlotID:   binary.LittleEndian.Uint32(data[p:]),
			KeyType:  algo.Algorithm(binary.LittleEndian.Uint32(data[p+4:])),
			PartMask: binary.LittleEndian.Uint32(data[p+8:]),
			PubKey:   append([]byte(nil), data[p+RecordHeaderLen:p+RecordHeaderLen+n]...),
		})
	}
	if err := ks.Validate(); err != nil {
		return nil, err
	}
	return ks, nil
}

var sourceTemplate = template.Must(template.New("keystore.c").Funcs(template.FuncMap{
	"authKey": func(a algo.Algorithm) string { return "AUTH_KEY_" + strings.ToUpper(a.String()) },
	"hexRows": hexRows,
}).Parse(resources.KeystoreSourceTemplate))

func hexRows(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i%8 == 0 {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("\t\t\t")
		}
		fmt.Fprintf(&sb, "0x%02x", c)
		if i != len(b)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}

// WriteSource renders the C trust table.
func (k *Keystore) WriteSource(w io.Writer) error {
	if err := k.Validate(); err != nil {
		return err
	}
	return sourceTemplate.Execute(w, struct {
		Records  []Record
		KeyWidth int
	}{k.Records, k.KeyWidth()})
}

// MarshalCOSE encodes the keys as a COSE_KeySet. The key id of each entry
// is its little-endian slot id.
func (k *Keystore) MarshalCOSE() ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	set := make([]any, 0, len(k.Records))
	for _, r := range k.Records {
		kid := binary.LittleEndian.AppendUint32(nil, r.SlotID)
		pub, err := provider.ParsePublicKey(r.KeyType, r.PubKey)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", r.SlotID, err)
		}
		if r.KeyType.IsRSA() {
			entry, err := rsaCOSEKey(pub, kid)
			if err != nil {
				return nil, err
			}
			set = append(set, entry)
			continue
		}
		ck, err := pub.COSEKey()
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", r.SlotID, err)
		}
		ck.ID = kid
		set = append(set, ck)
	}
	return cbor.Marshal(set)
}

// Outputs names the files WriteFiles produces; empty names are skipped.
type Outputs struct {
	Binary string
	Source string
	COSE   string
}

// WriteFiles renders every output from the same records, writes them, and
// then persists the private keys generated for them. When a private key
// cannot be written the keystore files and new key files written here are
// removed again.
func (k *Keystore) WriteFiles(ctx context.Context, o Outputs) (err error) {
	bin, err := k.MarshalBinary()
	if err != nil {
		return err
	}
	var src bytes.Buffer
	if err := k.WriteSource(&src); err != nil {
		return err
	}
	cose, err := k.MarshalCOSE()
	if err != nil {
		return err
	}

	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, p := range written {
			if rerr := os.Remove(p); rerr != nil {
				err = multierror.Append(err, fmt.Errorf("remove %s: %w", p, rerr))
			}
		}
	}()
	for _, f := range []struct {
		path string
		data []byte
	}{{o.Binary, bin}, {o.Source, src.Bytes()}, {o.COSE, cose}} {
		if f.path == "" {
			continue
		}
		if err := fsutil.WriteBytesAtomic(ctx, f.path, 0o644, f.data); err != nil {
			return err
		}
		written = append(written, f.path)
	}
	for _, pk := range k.pending {
		fresh := !fsutil.Exists(pk.path)
		if err := fsutil.PersistKey(ctx, pk.path, pk.container, true, nil); err != nil {
			return err
		}
		if fresh {
			written = append(written, pk.path)
		}
	}
	k.pending = nil
	return nil
}
