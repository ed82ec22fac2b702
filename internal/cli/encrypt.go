/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"github.com/kentakayama/bootsign/internal/encrypt"
	"github.com/spf13/cobra"
)

func newEncryptCmd(a *app, forward bool) *cobra.Command {
	var keyFile, cipher string
	use, short := "encrypt IN OUT", "Encrypt an image with a key||iv file"
	if !forward {
		use, short = "decrypt IN OUT", "Decrypt an image encrypted with a key||iv file"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := encrypt.ParseCipher(cipher)
			if err != nil {
				return err
			}
			km, err := encrypt.LoadKeyMaterial(keyFile, c)
			if err != nil {
				return err
			}
			if forward {
				err = encrypt.EncryptFile(cmd.Context(), args[0], args[1], c, km)
			} else {
				err = encrypt.DecryptFile(cmd.Context(), args[0], args[1], c, km)
			}
			if err != nil {
				return err
			}
			a.log.Infof("%s: %s -> %s (%s)", cmd.Name(), args[0], args[1], c)
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyFile, "key", "k", "", "key file holding the key followed by the nonce or IV")
	cmd.Flags().StringVar(&cipher, "cipher", encrypt.ChaCha20.String(), "chacha20, aes128 or aes256")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
