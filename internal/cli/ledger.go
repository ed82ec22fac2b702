/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLedgerCmd(a *app) *cobra.Command {
	lc := &cobra.Command{
		Use:   "ledger",
		Short: "Query the ledger of produced images",
	}
	var version uint32
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, done, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			if l == nil {
				return errors.New("no ledger configured; pass --ledger or set it in the profile")
			}
			defer done()
			images, err := l.List(cmd.Context(), version)
			if err != nil {
				return err
			}
			for _, img := range images {
				kind := "full"
				if img.IsDelta {
					kind = fmt.Sprintf("delta from v%d", img.BaseVersion)
				}
				signed := "unsigned"
				if img.SigningKeyID != nil {
					signed = fmt.Sprintf("key #%d", *img.SigningKeyID)
				}
				fmt.Fprintf(a.out, "%d\t%s\tv%d\t%#04x\t%s\t%s %x\t%s\t%s\n",
					img.ID, img.CreatedAt.UTC().Format(time.RFC3339), img.Version, img.ImageType,
					kind, img.HashAlg, img.Digest, signed, img.Path)
			}
			return nil
		},
	}
	list.Flags().Uint32Var(&version, "version", 0, "only list images of this version")
	lc.AddCommand(list)
	return lc
}
