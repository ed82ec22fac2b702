/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cli

import (
	"fmt"

	"github.com/kentakayama/bootsign/internal/bootstatus"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	st := &cobra.Command{
		Use:   "status",
		Short: "Read or write the partition state byte in a flash image",
	}
	get := &cobra.Command{
		Use:   "get BOOT|UPDATE FLASH_IMAGE",
		Short: "Print the state of a partition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			part, err := a.profile.Partition(args[0])
			if err != nil {
				return err
			}
			s, raw, err := bootstatus.GetFile(args[1], part)
			if err != nil {
				return err
			}
			if s == bootstatus.Invalid {
				fmt.Fprintf(a.out, "%s (%#02x)\n", s, raw)
				return nil
			}
			fmt.Fprintln(a.out, s)
			return nil
		},
	}
	set := &cobra.Command{
		Use:   "set BOOT|UPDATE FLASH_IMAGE NEW|UPDATING|SUCCESS",
		Short: "Write the state of a partition",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			part, err := a.profile.Partition(args[0])
			if err != nil {
				return err
			}
			s, err := bootstatus.ParseStatus(args[2])
			if err != nil {
				return err
			}
			if err := bootstatus.SetFile(args[1], part, s); err != nil {
				return err
			}
			a.log.Infof("%s partition of %s set to %s", part.Name, args[1], s)
			return nil
		},
	}
	st.AddCommand(get, set)
	return st
}
