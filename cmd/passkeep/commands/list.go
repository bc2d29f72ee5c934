// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/store"
)

type listParams struct {
	cli.GlobalParams
	cli.JSONOutput
	NoAliases bool   `flag:"no-aliases" desc:"skip secrets that are aliases of other secrets"`
	Glob      string `flag:"glob,g" desc:"match names against a pattern such as 'work/**' instead of a substring"`
}

type secretEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List secrets",
		Description: `List the secrets in the store, optionally only those whose name
contains FILTER (case-insensitive).`,
		Usage:  "passkeep list [filter] [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "All secrets under work/", Command: "passkeep list --glob 'work/**'"},
			{Description: "Secrets mentioning mail", Command: "passkeep list mail"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument: %s", args[1])
			}
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			secrets, err := listSecrets(session.store, filter, params)
			if err != nil {
				return err
			}

			entries := make([]secretEntry, 0, len(secrets))
			for _, secret := range secrets {
				entries = append(entries, secretEntry{Name: secret.Name, Path: secret.Path})
			}
			if done, err := params.EmitJSON(entries); done {
				return err
			}
			for _, entry := range entries {
				fmt.Fprintln(cli.Stdout, styled(cli.SecretName, entry.Name))
			}
			return nil
		},
	}
}

func listSecrets(s *store.Store, filter string, params listParams) ([]store.Secret, error) {
	var secrets []store.Secret
	config := store.DefaultIterConfig()
	config.FindSymlinkFiles = !params.NoAliases
	if params.Glob != "" {
		matches, err := s.Glob(params.Glob, config)
		if err != nil {
			return nil, err
		}
		secrets = slices.Collect(store.FilterSecrets(slices.Values(matches), filter))
	} else {
		secrets = slices.Collect(store.FilterSecrets(s.Secrets(config), filter))
	}
	slices.SortFunc(secrets, func(a, b store.Secret) int { return strings.Compare(a.Name, b.Name) })
	return secrets, nil
}
