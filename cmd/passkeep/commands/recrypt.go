// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/store"
)

type recryptParams struct {
	cli.GlobalParams
	All  bool   `flag:"all,a" desc:"re-encrypt every secret and the OTP file"`
	Glob string `flag:"glob,g" desc:"re-encrypt the secrets matching a doublestar pattern"`
}

func recryptCommand() *cli.Command {
	var params recryptParams

	return &cli.Command{
		Name:    "recrypt",
		Summary: "Re-encrypt secrets for the current recipients",
		Description: `Decrypt secrets and encrypt them again for the recipients currently
listed in the store's recipients file. Select one secret by QUERY, a
set with --glob, or the whole store with --all. Aliases are skipped;
their targets are re-encrypted instead.`,
		Usage:  "passkeep recrypt (<query> | --glob PATTERN | --all) [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "Re-encrypt everything under work/",
				Command:     "passkeep recrypt --glob 'work/**'",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			selectors := 0
			for _, set := range []bool{params.All, params.Glob != "", len(args) > 0} {
				if set {
					selectors++
				}
			}
			if selectors != 1 || len(args) > 1 {
				return errors.New("select secrets with exactly one of: a query, --glob or --all")
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.prepare(ctx); err != nil {
				return err
			}

			var count int
			if params.All {
				count, err = session.recryptStore(ctx)
			} else {
				var secrets []store.Secret
				secrets, err = selectRecrypt(session.store, params.Glob, args)
				if err == nil {
					count = len(secrets)
					err = session.recryptSecrets(ctx, secrets)
				}
			}
			if err != nil {
				return err
			}

			logger.Info("re-encrypted secrets", "count", count)
			fmt.Fprintf(cli.Stdout, "re-encrypted %d secrets\n", count)
			return session.finalize(ctx, fmt.Sprintf("Re-encrypt %d secrets", count))
		},
	}
}

// selectRecrypt returns the regular files a glob or a single query
// selects. A queried alias selects the secret it resolves to.
func selectRecrypt(s *store.Store, pattern string, args []string) ([]store.Secret, error) {
	if pattern != "" {
		return s.Glob(pattern, store.IterConfig{FindFiles: true})
	}
	target, err := resolveSecret(s, args[0])
	if err != nil {
		return nil, err
	}
	resolved, err := s.ResolveAlias(target)
	if err != nil {
		return nil, err
	}
	return []store.Secret{resolved}, nil
}
