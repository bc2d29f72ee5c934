// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the passkeep command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/clock"
	"github.com/bureau-foundation/passkeep/lib/version"
)

// Root builds and returns the complete passkeep command tree. Commands
// that read the time (OTP codes, identity creation dates) use c.
func Root(c clock.Clock) *cli.Command {
	return &cli.Command{
		Name: "passkeep",
		Description: `passkeep: a password store of individually encrypted files.

Secrets live as one GPG or age encrypted file each under the store
directory (PASSWORD_STORE_DIR, default ~/.password-store). Recipients,
OTP accounts and git synchronization are managed alongside.`,
		Subcommands: []*cli.Command{
			listCommand(),
			showCommand(),
			grepCommand(),
			insertCommand(),
			generateCommand(),
			moveCommand(),
			copyCommand(),
			removeCommand(),
			aliasCommand(),
			recryptCommand(),
			recipientsCommand(),
			otpCommand(c),
			syncCommand(),
			ageCommand(c),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Fprintf(cli.Stdout, "passkeep %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
