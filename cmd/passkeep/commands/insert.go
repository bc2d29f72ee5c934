// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/secret"
)

type insertParams struct {
	cli.GlobalParams
	From  string `flag:"from" desc:"file holding the secret; - reads stdin" default:"-"`
	Force bool   `flag:"force,f" desc:"replace an existing secret"`
}

func insertCommand() *cli.Command {
	var params insertParams

	return &cli.Command{
		Name:    "insert",
		Summary: "Store a secret read from stdin or a file",
		Description: `Encrypt the secret read from stdin (or --from FILE) for the store's
recipients and store it as NAME. Surrounding whitespace is trimmed and
empty input is refused. Parent directories are created as needed.`,
		Usage:  "passkeep insert <name> [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Store a password typed on stdin",
				Command:     "passkeep insert work/email",
			},
			{
				Description: "Replace a secret with the contents of a file",
				Command:     "passkeep insert --force --from notes.txt personal/notes",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one secret name")
			}
			plaintext, err := secret.ReadPlaintext(params.From)
			if err != nil {
				return fmt.Errorf("reading secret: %w", err)
			}
			defer plaintext.Close()

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.prepare(ctx); err != nil {
				return err
			}
			target, err := destination(session.store, args[0], "", params.Force)
			if err != nil {
				return err
			}

			if err := session.writeSecret(ctx, target.Path, plaintext); err != nil {
				return err
			}
			logger.Info("stored secret", "name", target.Name)
			return session.finalize(ctx, fmt.Sprintf("Insert secret %s", target.Name))
		},
	}
}

type generateParams struct {
	cli.GlobalParams
	Length int  `flag:"length,l" desc:"password length in characters" default:"24"`
	Merge  bool `flag:"merge,m" desc:"replace only the first line of an existing secret"`
	Stdin  bool `flag:"stdin,S" desc:"append lines read from stdin below the password"`
	Show   bool `flag:"show" desc:"print the stored secret"`
	Force  bool `flag:"force,f" desc:"replace an existing secret entirely"`
}

func generateCommand() *cli.Command {
	var params generateParams

	return &cli.Command{
		Name:    "generate",
		Summary: "Generate and store a random password",
		Description: `Generate a random password and store it as NAME. An existing secret
is refused unless --merge keeps its lines after the first (the password
line is replaced) or --force replaces it entirely.`,
		Usage:  "passkeep generate <name> [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Rotate a password, keeping the metadata lines",
				Command:     "passkeep generate --merge work/email",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one secret name")
			}
			if params.Merge && params.Force {
				return fmt.Errorf("--merge and --force are mutually exclusive")
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.prepare(ctx); err != nil {
				return err
			}
			target, err := destination(session.store, args[0], "", params.Merge || params.Force)
			if err != nil {
				return err
			}

			password, err := secret.GeneratePassword(params.Length)
			if err != nil {
				return err
			}
			defer password.Close()

			if params.Merge {
				if err := mergeExisting(ctx, session, target.Path, password); err != nil {
					return err
				}
			}
			if params.Stdin {
				extra, err := secret.ReadPlaintext("-")
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				err = password.Append(extra, true)
				extra.Close()
				if err != nil {
					return err
				}
			}

			if err := session.writeSecret(ctx, target.Path, password); err != nil {
				return err
			}
			logger.Info("generated secret", "name", target.Name, "length", params.Length)
			if params.Show {
				if err := printPlaintext(password, false); err != nil {
					return err
				}
			}
			return session.finalize(ctx, fmt.Sprintf("Generate secret to %s", target.Name))
		},
	}
}

// mergeExisting appends every line but the first of the secret at path
// to password. A missing secret leaves password unchanged.
func mergeExisting(ctx context.Context, s *session, path string, password *secret.Plaintext) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	c, err := s.context()
	if err != nil {
		return err
	}
	existing, err := crypto.DecryptFile(ctx, c, path)
	if err != nil {
		return fmt.Errorf("decrypting existing secret: %w", err)
	}
	defer existing.Close()

	rest, err := existing.ExceptFirstLine()
	if err != nil {
		return err
	}
	defer rest.Close()
	if rest.IsEmpty() {
		return nil
	}
	return password.Append(rest, true)
}
