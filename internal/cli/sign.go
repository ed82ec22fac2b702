/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"fmt"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/domain/service"
	"github.com/kentakayama/bootsign/internal/image"
	"github.com/spf13/cobra"
)

func newSignCmd(a *app) *cobra.Command {
	var (
		f          imageFlags
		shaOnly    bool
		manualSign string
	)
	cmd := &cobra.Command{
		Use:   "sign IMAGE KEY VERSION | sign --algorithm none IMAGE VERSION",
		Short: "Prepend a signed manifest header to a firmware image",
		Long: "Sign IMAGE with the private key container KEY. With --sha-only or\n" +
			"--manual-sign, KEY is the public key and no private key is needed.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := f.options(a)
			if err != nil {
				return err
			}
			input, keyPath, versionArg := args[0], "", args[len(args)-1]
			if len(args) == 3 {
				keyPath = args[1]
			} else if opts.Algorithm != algo.None {
				return fmt.Errorf("%w: a key is required unless --algorithm none", image.ErrMissingKey)
			}
			if opts.Version, err = parseVersion(versionArg); err != nil {
				return err
			}
			if opts.Key, err = readOptional(keyPath); err != nil {
				return err
			}
			if opts.Signature, err = readOptional(manualSign); err != nil {
				return err
			}
			opts.ShaOnly = shaOnly
			enc, err := f.encryption()
			if err != nil {
				return err
			}

			out := f.output
			if out == "" {
				suffix := "signed"
				if shaOnly {
					suffix = "digest"
				}
				out = outputName(input, opts.Version, suffix)
			}
			a.log.Infof("Update type:          %s", updateType(opts.SelfUpdate))
			a.log.Infof("Input image:          %s", input)
			a.log.Infof("Output image:         %s", out)

			built, err := image.NewAssembler(a.crypto, a.log).SignFile(ctx, input, out, opts)
			if err != nil {
				return err
			}
			if shaOnly {
				fmt.Fprintf(a.out, "%x\n", built.Digest)
				return nil
			}
			if err := enc.apply(ctx, a, out, outputName(input, opts.Version, "signed_and_encrypted")); err != nil {
				return err
			}
			return a.record(ctx, service.Artifact{Path: out, Version: opts.Version, Built: built})
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&shaOnly, "sha-only", false, "write only the digest to be signed externally")
	cmd.Flags().StringVar(&manualSign, "manual-sign", "", "detached signature file to embed")
	return cmd
}

func updateType(selfUpdate bool) string {
	if selfUpdate {
		return "bootloader"
	}
	return "firmware"
}
