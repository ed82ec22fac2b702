/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/keystore"
	"github.com/kentakayama/bootsign/internal/util"
	"github.com/spf13/cobra"
)

// keySpec is [ALG:]PATH[@MASK] as given to keygen -i / -g.
type keySpec struct {
	alg  algo.Algorithm
	path string
	mask uint32
}

func parseKeySpec(s string, def algo.Algorithm) (keySpec, error) {
	ks := keySpec{alg: def, path: s, mask: keystore.AllPartitions}
	if i := strings.LastIndex(ks.path, "@"); i >= 0 {
		m, err := strconv.ParseUint(ks.path[i+1:], 0, 32)
		if err != nil {
			return keySpec{}, fmt.Errorf("partition mask in %q: %w", s, err)
		}
		ks.mask = uint32(m)
		ks.path = ks.path[:i]
	}
	if i := strings.Index(ks.path, ":"); i > 0 {
		if alg, err := algo.Parse(ks.path[:i]); err == nil {
			ks.alg = alg
			ks.path = ks.path[i+1:]
		}
	}
	if ks.path == "" {
		return keySpec{}, fmt.Errorf("empty key path in %q", s)
	}
	return ks, nil
}

func newKeygenCmd(a *app) *cobra.Command {
	var (
		imports   []string
		generates []string
		algorithm string
		force     bool
		outputs   keystore.Outputs
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Build the bootloader keystore from imported and generated keys",
		Long: "Keys are given as [ALG:]PATH[@MASK]. Imported public keys take the\n" +
			"first slots, generated keys follow. Generated private keys are written\n" +
			"to PATH and must not overwrite existing files unless confirmed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			importAlg, err := algo.Parse(algorithm)
			if err != nil {
				return err
			}
			genAlg := importAlg
			if genAlg == algo.Auto {
				if genAlg, err = algo.Parse(a.profile.Algorithm); err != nil {
					return err
				}
			}

			b := keystore.NewBuilder(a.crypto, a.log)
			b.Force = force
			b.Confirm = a.confirm
			for _, s := range imports {
				ks, err := parseKeySpec(s, importAlg)
				if err != nil {
					return err
				}
				b.Import(ks.path, ks.alg, ks.mask)
			}
			for _, s := range generates {
				ks, err := parseKeySpec(s, genAlg)
				if err != nil {
					return err
				}
				b.Generate(ks.alg, ks.mask, ks.path)
			}

			ks, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			if err := ks.WriteFiles(cmd.Context(), outputs); err != nil {
				return err
			}
			for _, r := range ks.Records {
				fmt.Fprintf(a.out, "slot %d: %s mask %#08x %s\n", r.SlotID, r.KeyType, r.PartMask, r.Source)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&imports, "import", "i", nil, "import a public key: [ALG:]PATH[@MASK]")
	cmd.Flags().StringArrayVarP(&generates, "generate", "g", nil, "generate a key pair: [ALG:]PATH[@MASK]")
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "default algorithm (auto-detect for imports, profile algorithm for generated keys)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing private key files without asking")
	cmd.Flags().StringVar(&outputs.Binary, "out-bin", "keystore.img", "binary keystore image (empty to skip)")
	cmd.Flags().StringVar(&outputs.Source, "out-c", "keystore.c", "C source keystore (empty to skip)")
	cmd.Flags().StringVar(&outputs.COSE, "out-cose", "keystore.cbor", "COSE_KeySet export (empty to skip)")
	return cmd
}

func newKeystoreCmd(a *app) *cobra.Command {
	ks := &cobra.Command{
		Use:   "keystore",
		Short: "Keystore utilities",
	}
	var width int
	show := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a binary keystore image or a COSE_KeySet export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if strings.EqualFold(filepath.Ext(args[0]), ".cbor") {
				pretty, err := util.DumpCBOR(data, util.COSEKeyLabels)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, pretty)
				return nil
			}
			k, err := keystore.UnmarshalBinary(data, width)
			if err != nil {
				return err
			}
			for _, r := range k.Records {
				fmt.Fprintf(a.out, "slot %d: %s mask %#08x pubkey %d bytes %x\n", r.SlotID, r.KeyType, r.PartMask, len(r.PubKey), r.PubKey)
			}
			return nil
		},
	}
	show.Flags().IntVar(&width, "key-width", 0, "padded public key width (0 tries every known width)")
	ks.AddCommand(show)
	return ks
}
