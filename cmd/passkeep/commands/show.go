// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/secret"
	"github.com/bureau-foundation/passkeep/lib/store"
)

var (
	errNoMatch       = errors.New("no secret matches")
	errAmbiguousName = errors.New("several secrets match")
)

type showParams struct {
	cli.GlobalParams
	FirstLine bool `flag:"first-line,1" desc:"print only the first line (the password)"`
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Decrypt and print a secret",
		Description: `Decrypt and print the secret named QUERY. When QUERY is not the exact
name of a secret but a substring of exactly one secret's name, that
secret is shown. Several candidates are listed instead.`,
		Usage:  "passkeep show <query> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one secret name")
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			target, err := resolveSecret(session.store, args[0])
			if err != nil {
				return err
			}

			c, err := session.context()
			if err != nil {
				return err
			}
			plaintext, err := crypto.DecryptFile(ctx, c, target.Path)
			if err != nil {
				return fmt.Errorf("decrypting %s: %w", target.Name, err)
			}
			defer plaintext.Close()
			logger.Debug("decrypted secret", "name", target.Name)

			return printPlaintext(plaintext, params.FirstLine)
		},
	}
}

// resolveSecret turns a query into a single secret. Several substring
// matches are printed as candidates and reported as an error.
func resolveSecret(s *store.Store, query string) (store.Secret, error) {
	match := s.Find(query)
	switch {
	case match.Exact != nil:
		return *match.Exact, nil
	case len(match.Many) == 1:
		return match.Many[0], nil
	case len(match.Many) == 0:
		return store.Secret{}, fmt.Errorf("%w %q", errNoMatch, query)
	}
	for _, candidate := range match.Many {
		fmt.Fprintln(cli.Stdout, styled(cli.SecretName, candidate.Name))
	}
	return store.Secret{}, fmt.Errorf("%w %q (%d candidates)", errAmbiguousName, query, len(match.Many))
}

func printPlaintext(plaintext *secret.Plaintext, firstLine bool) error {
	if firstLine {
		line, err := plaintext.FirstLine()
		if err != nil {
			return err
		}
		defer line.Close()
		plaintext = line
	}
	data := plaintext.UnsecureBytes()
	if _, err := cli.Stdout.Write(data); err != nil {
		return err
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Fprintln(cli.Stdout)
	}
	return nil
}
