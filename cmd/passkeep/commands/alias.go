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
	"github.com/bureau-foundation/passkeep/lib/store"
)

type aliasParams struct {
	cli.GlobalParams
	cli.JSONOutput
}

type aliasChain struct {
	Name  string   `json:"name"`
	Chain []string `json:"chain"`
	Final string   `json:"final"`
}

func aliasCommand() *cli.Command {
	var params aliasParams

	return &cli.Command{
		Name:    "alias",
		Summary: "Show or create secret aliases",
		Description: `With one argument, print the chain of aliases QUERY resolves through
and the secret it finally names. With two, create ALIAS as a relative
symbolic link to the secret QUERY.`,
		Usage:  "passkeep alias <query> [alias] [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "Where does mail point?", Command: "passkeep alias mail"},
			{Description: "Make mail an alias of work/email", Command: "passkeep alias work/email mail"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("expected a secret name and an optional alias name")
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

			if len(args) == 1 {
				chain, err := resolveChain(session.store, target)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(chain); done {
					return err
				}
				for _, hop := range chain.Chain {
					fmt.Fprintf(cli.Stdout, "%s -> ", styled(cli.SecretName, hop))
				}
				fmt.Fprintln(cli.Stdout, styled(cli.SecretName, chain.Final))
				return nil
			}

			if err := session.prepare(ctx); err != nil {
				return err
			}
			alias, err := createAlias(session.store, target, args[1])
			if err != nil {
				return err
			}
			logger.Info("created alias", "alias", alias.Name, "target", target.Name)
			return session.finalize(ctx, fmt.Sprintf("Alias %s to %s", alias.Name, target.Name))
		},
	}
}

func resolveChain(s *store.Store, secret store.Secret) (aliasChain, error) {
	chain := aliasChain{Name: secret.Name, Chain: []string{}}
	final, err := s.ResolveAlias(secret)
	if err != nil {
		return chain, err
	}
	for current := secret; current.Path != final.Path; {
		chain.Chain = append(chain.Chain, current.Name)
		next, err := s.AliasTarget(current)
		if err != nil {
			return chain, err
		}
		current = next
	}
	chain.Final = final.Name
	return chain, nil
}

// createAlias links name to target with a link relative to the alias's
// directory, so the store stays valid when moved.
func createAlias(s *store.Store, target store.Secret, name string) (store.Secret, error) {
	path, err := s.NormalizeSecretPath(name, filepath.Base(target.Path), true)
	if err != nil {
		return store.Secret{}, err
	}
	if _, err := os.Lstat(path); err == nil {
		return store.Secret{}, fmt.Errorf("%s already exists", s.SecretAt(path).Name)
	}
	link, err := filepath.Rel(filepath.Dir(path), target.Path)
	if err != nil {
		return store.Secret{}, fmt.Errorf("relating alias to target: %w", err)
	}
	if err := os.Symlink(link, path); err != nil {
		return store.Secret{}, fmt.Errorf("creating alias: %w", err)
	}
	return s.SecretAt(path), nil
}
