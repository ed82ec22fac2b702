/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/image"
	"github.com/kentakayama/bootsign/internal/keystore"
	"github.com/kentakayama/bootsign/internal/provider"
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		headerSize   int
		algorithm    string
		keystorePath string
	)
	cmd := &cobra.Command{
		Use:   "verify IMAGE [PUBKEY]",
		Short: "Recompute the digest of a signed image and check its signature",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := algo.Parse(algorithm)
			if err != nil {
				return err
			}
			opts := image.VerifyOptions{HeaderSize: a.headerSize(headerSize), Algorithm: alg}
			switch {
			case len(args) == 2:
				if opts.PublicKey, err = readOptional(args[1]); err != nil {
					return err
				}
			case keystorePath != "":
				rec, pub, err := trustedKey(a, keystorePath, args[0], opts.HeaderSize)
				if err != nil {
					return err
				}
				a.log.Infof("Using keystore slot %d (%s)", rec.SlotID, rec.KeyType)
				opts.PublicKey, opts.Algorithm = pub.Raw, rec.KeyType
			}
			rep, err := image.NewVerifier(a.crypto, a.log).VerifyFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			printInfo(a.out, rep.Info)
			fmt.Fprintf(a.out, "digest:       %s\n", verdict(true, rep.DigestOK))
			fmt.Fprintf(a.out, "pubkey hint:  %s\n", verdict(rep.FingerprintChecked, rep.FingerprintOK))
			fmt.Fprintf(a.out, "signature:    %s\n", verdict(rep.SignatureChecked, rep.SignatureOK))
			if !rep.OK() {
				return fmt.Errorf("%w: %s", ErrVerificationFailed, args[0])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&headerSize, "header-size", 0, "image header size; raised to the image algorithm minimum (default from profile)")
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "override the signature algorithm named by the image")
	cmd.Flags().StringVar(&keystorePath, "keystore", "", "binary keystore to pick the key from by public key hint (when PUBKEY is not given)")
	return cmd
}

func trustedKey(a *app, keystorePath, imagePath string, headerSize int) (*keystore.Record, *provider.PublicKey, error) {
	data, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, nil, err
	}
	ks, err := keystore.UnmarshalBinary(data, 0)
	if err != nil {
		return nil, nil, err
	}
	info, err := image.InspectFile(imagePath, headerSize)
	if err != nil {
		return nil, nil, err
	}
	return keystore.NewKeyring(ks, a.crypto).Find(info.Hash, info.Fingerprint, info.Partition)
}

func newInspectCmd(a *app) *cobra.Command {
	var headerSize int
	cmd := &cobra.Command{
		Use:   "inspect IMAGE",
		Short: "Print the manifest header of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := image.InspectFile(args[0], a.headerSize(headerSize))
			if err != nil {
				return err
			}
			printInfo(a.out, info)
			return nil
		},
	}
	cmd.Flags().IntVar(&headerSize, "header-size", 0, "image header size; raised to the image algorithm minimum (default from profile)")
	return cmd
}

func printInfo(w io.Writer, info *image.Info) {
	fmt.Fprintf(w, "header size:  %d\n", info.HeaderSize)
	fmt.Fprintf(w, "payload size: %d\n", info.PayloadSize)
	fmt.Fprintf(w, "version:      %d\n", info.Version)
	if !info.Timestamp.IsZero() {
		fmt.Fprintf(w, "timestamp:    %s\n", info.Timestamp.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "image type:   %#04x (%s, partition %d", info.ImageType, info.Algorithm, info.Partition)
	if info.IsDelta {
		fmt.Fprint(w, ", delta")
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintf(w, "hash:         %s %x\n", info.Hash, info.DigestField.Value)
	if info.Fingerprint != nil {
		fmt.Fprintf(w, "pubkey hint:  %x\n", info.Fingerprint)
	}
	if info.Signature != nil {
		fmt.Fprintf(w, "signature:    %d bytes\n", len(info.Signature))
	}
	if d := info.Delta; d != nil {
		fmt.Fprintf(w, "delta:        base v%d, forward %d bytes, inverse %d bytes at %#x\n",
			d.BaseVersion, d.ForwardSize, d.InverseSize, d.InverseOffset)
	}
}

func verdict(checked, ok bool) string {
	switch {
	case !checked:
		return "not checked"
	case ok:
		return "OK"
	}
	return "FAILED"
}
