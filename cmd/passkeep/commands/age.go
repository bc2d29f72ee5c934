// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/clock"
	"github.com/bureau-foundation/passkeep/lib/crypto/agecrypt"
)

func ageCommand(c clock.Clock) *cli.Command {
	return &cli.Command{
		Name:    "age",
		Summary: "Manage age identities",
		Subcommands: []*cli.Command{
			ageGenerateCommand(c),
		},
	}
}

type ageGenerateParams struct {
	cli.GlobalParams
	Output string `flag:"output,o" desc:"identity file to create (default: the first configured age identity)"`
}

func ageGenerateCommand(c clock.Clock) *cli.Command {
	var params ageGenerateParams

	return &cli.Command{
		Name:    "generate",
		Summary: "Create a new age identity",
		Description: `Generate an X25519 age identity and print its public key, the
recipient to add to the store's recipients file. An existing identity
file is never overwritten.`,
		Usage:  "passkeep age generate [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			path := params.Output
			if path == "" {
				identities := session.config.Crypto.Age.Identities
				if len(identities) == 0 {
					return fmt.Errorf("no age identity configured; pass --output")
				}
				path = identities[0]
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("creating identity directory: %w", err)
			}

			key, err := agecrypt.GenerateIdentity(path, c.Now())
			if err != nil {
				return err
			}
			logger.Info("generated age identity", "path", path)
			fmt.Fprintln(cli.Stdout, key.Fingerprint)
			return nil
		},
	}
}
