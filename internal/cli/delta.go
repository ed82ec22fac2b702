/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"fmt"
	"os"

	"github.com/kentakayama/bootsign/internal/delta"
	"github.com/kentakayama/bootsign/internal/domain/service"
	"github.com/kentakayama/bootsign/internal/fsutil"
	"github.com/kentakayama/bootsign/internal/image"
	"github.com/spf13/cobra"
)

// builtinDiffTool selects the in-process bsdiff engine.
const builtinDiffTool = "builtin"

func differFor(tool string) delta.Differ {
	if tool == builtinDiffTool {
		return delta.BsdiffDiffer{}
	}
	return &delta.ExecDiffer{Path: tool}
}

func newDeltaCmd(a *app) *cobra.Command {
	var (
		f        imageFlags
		version  uint32
		diffTool string
	)
	cmd := &cobra.Command{
		Use:   "delta BASE_SIGNED NEW_SIGNED KEY",
		Short: "Build a signed delta update between two signed images",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := f.options(a)
			if err != nil {
				return err
			}
			opts.Version = version
			if opts.Key, err = os.ReadFile(args[2]); err != nil {
				return err
			}
			enc, err := f.encryption()
			if err != nil {
				return err
			}
			out := f.output
			if out == "" {
				out = withSuffix(args[1], "diff")
			}

			req := delta.Request{
				BasePath:   args[0],
				NewPath:    args[1],
				OutPath:    out,
				Encrypted:  enc != nil,
				HeaderSize: opts.HeaderSize,
				Options:    opts,
			}
			res, err := delta.NewEncoder(differFor(diffTool), image.NewAssembler(a.crypto, a.log), a.log).Encode(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "base version %d, version %d, forward %d bytes, inverse %d bytes at %#x\n",
				res.BaseVersion, res.Version, res.ForwardSize, res.InverseSize, res.InverseOffset)

			if err := enc.apply(ctx, a, out, withSuffix(out, "encrypted")); err != nil {
				return err
			}
			return a.record(ctx, service.Artifact{
				Path:        out,
				Version:     res.Version,
				Built:       res.Built,
				IsDelta:     true,
				BaseVersion: res.BaseVersion,
			})
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().Uint32Var(&version, "version", 0, "delta image version (default: version of NEW_SIGNED)")
	cmd.Flags().StringVar(&diffTool, "diff-tool", delta.DefaultDiffTool, `external diff program invoked as "TOOL old new patch", or "builtin" for bsdiff`)
	return cmd
}

func newPatchCmd(a *app) *cobra.Command {
	var (
		headerSize int
		inverse    bool
	)
	cmd := &cobra.Command{
		Use:   "patch BASE DELTA_IMAGE OUT",
		Short: "Apply the bsdiff patch carried by a delta image built with --diff-tool builtin",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			fwd, inv, info, err := delta.Patches(artifact, a.headerSize(headerSize))
			if err != nil {
				return err
			}
			patch := fwd
			if inverse {
				patch = inv
			}
			base, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			restored, err := delta.Patch(base, patch)
			if err != nil {
				return err
			}
			if err := fsutil.WriteBytesAtomic(cmd.Context(), args[2], 0o644, restored); err != nil {
				return err
			}
			a.log.Infof("Patched image %s (delta version %d, base version %d)", args[2], info.Version, info.Delta.BaseVersion)
			return nil
		},
	}
	cmd.Flags().IntVar(&headerSize, "header-size", 0, "delta image header size; raised to the image algorithm minimum (default from profile)")
	cmd.Flags().BoolVar(&inverse, "inverse", false, "apply the inverse patch to roll back")
	return cmd
}
