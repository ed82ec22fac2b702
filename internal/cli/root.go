/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package cli maps the bootsign command line onto the image, delta,
// keystore and boot status packages.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kentakayama/bootsign/internal/config"
	"github.com/kentakayama/bootsign/internal/domain/service"
	"github.com/kentakayama/bootsign/internal/fsutil"
	"github.com/kentakayama/bootsign/internal/infra/sqlite"
	"github.com/kentakayama/bootsign/internal/provider"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	logLevelFlag = "log-level"
	profileFlag  = "profile"
	ledgerFlag   = "ledger"
)

var ErrVerificationFailed = errors.New("verification failed")

type app struct {
	logLevel    string
	profilePath string
	ledgerPath  string

	profile config.Profile
	log     *logrus.Logger
	crypto  provider.Provider
	confirm fsutil.Confirmer
	out     io.Writer
}

// NewRootCommand builds the command tree. out receives command output,
// errOut receives log lines.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	logger := logrus.New()
	logger.SetOutput(errOut)
	a := &app{
		log:     logger,
		crypto:  provider.New(),
		confirm: fsutil.NewTerminalConfirmer(),
		out:     out,
	}

	root := &cobra.Command{
		Use:           "bootsign",
		Short:         "Sign, verify and package firmware images for a secure bootloader",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetFlagsFromEnv(cmd.Flags())
			return a.init()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.logLevel, logLevelFlag, "l", "info", "sets bootsign log level")
	root.PersistentFlags().StringVarP(&a.profilePath, profileFlag, "p", "", "build profile (YAML); the embedded default is used when empty")
	root.PersistentFlags().StringVar(&a.ledgerPath, ledgerFlag, "", "SQLite ledger recording produced images (overrides the profile)")

	root.AddCommand(
		newSignCmd(a),
		newDeltaCmd(a),
		newPatchCmd(a),
		newVerifyCmd(a),
		newInspectCmd(a),
		newEncryptCmd(a, true),
		newEncryptCmd(a, false),
		newKeygenCmd(a),
		newKeystoreCmd(a),
		newStatusCmd(a),
		newLedgerCmd(a),
	)
	return root
}

// Execute runs the command line against the process streams.
func Execute(ctx context.Context) error {
	root := NewRootCommand(os.Stdout, os.Stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) init() error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("failed parsing log-level %s: %w", a.logLevel, err)
	}
	a.log.SetLevel(level)
	a.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	a.profile, err = config.Load(a.profilePath)
	if err != nil {
		return err
	}
	if a.ledgerPath == "" {
		a.ledgerPath = a.profile.Ledger
	}
	return nil
}

// openLedger returns nil, nil when no ledger is configured.
func (a *app) openLedger(ctx context.Context) (*service.Ledger, func(), error) {
	if a.ledgerPath == "" {
		return nil, func() {}, nil
	}
	db, err := sqlite.InitDB(ctx, a.ledgerPath)
	if err != nil {
		return nil, nil, err
	}
	l := service.NewLedger(sqlite.NewSigningKeyRepository(db), sqlite.NewSignedImageRepository(db), a.log)
	return l, func() {
		if err := sqlite.CloseDB(db); err != nil {
			a.log.Warnf("close ledger: %v", err)
		}
	}, nil
}

func (a *app) record(ctx context.Context, art service.Artifact) error {
	l, done, err := a.openLedger(ctx)
	if err != nil || l == nil {
		return err
	}
	defer done()
	_, err = l.Record(ctx, art)
	return err
}
