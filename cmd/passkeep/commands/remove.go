// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/secret"
	"github.com/bureau-foundation/passkeep/lib/store"
)

type removeParams struct {
	cli.GlobalParams
}

func removeCommand() *cli.Command {
	var params removeParams

	return &cli.Command{
		Name:    "remove",
		Summary: "Delete a secret",
		Description: `Delete the secret named QUERY, resolved like show. Removing an alias
deletes the link only. Directories left empty are removed.`,
		Usage:  "passkeep remove <query> [flags]",
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

			if err := session.prepare(ctx); err != nil {
				return err
			}
			target, err := resolveSecret(session.store, args[0])
			if err != nil {
				return err
			}
			if err := os.Remove(target.Path); err != nil {
				return fmt.Errorf("removing %s: %w", target.Name, err)
			}
			session.store.PruneEmptyDirs(target.Path)
			logger.Info("removed secret", "name", target.Name)
			return session.finalize(ctx, fmt.Sprintf("Remove secret %s", target.Name))
		},
	}
}

type transferParams struct {
	cli.GlobalParams
	Force bool `flag:"force,f" desc:"replace an existing destination secret"`
}

func moveCommand() *cli.Command {
	var params transferParams

	return &cli.Command{
		Name:    "move",
		Summary: "Rename a secret",
		Description: `Move the secret named QUERY to DEST. A DEST naming a directory keeps
the file name. Moving an alias re-links it so it still points at its
target.`,
		Usage:  "passkeep move <query> <dest> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 2 {
				return fmt.Errorf("expected a secret name and a destination")
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.prepare(ctx); err != nil {
				return err
			}
			source, target, err := transferEnds(session.store, args[0], args[1], params.Force)
			if err != nil {
				return err
			}
			if err := moveSecret(session.store, source, target); err != nil {
				return err
			}
			session.store.PruneEmptyDirs(source.Path)
			logger.Info("moved secret", "from", source.Name, "to", target.Name)
			return session.finalize(ctx, fmt.Sprintf("Move from %s to %s", source.Name, target.Name))
		},
	}
}

func copyCommand() *cli.Command {
	var params transferParams

	return &cli.Command{
		Name:    "copy",
		Summary: "Duplicate a secret",
		Description: `Copy the secret named QUERY to DEST. The ciphertext is copied as is,
so the copy has the same recipients. Copying an alias copies the secret
it resolves to.`,
		Usage:  "passkeep copy <query> <dest> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 2 {
				return fmt.Errorf("expected a secret name and a destination")
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.prepare(ctx); err != nil {
				return err
			}
			source, target, err := transferEnds(session.store, args[0], args[1], params.Force)
			if err != nil {
				return err
			}
			resolved, err := session.store.ResolveAlias(source)
			if err != nil {
				return err
			}
			ciphertext, err := secret.ReadCiphertext(resolved.Path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", resolved.Name, err)
			}
			defer ciphertext.Close()
			if err := store.WriteFileAtomic(target.Path, ciphertext.UnsecureBytes(), session.store.FileMode()); err != nil {
				return err
			}
			logger.Info("copied secret", "from", source.Name, "to", target.Name)
			return session.finalize(ctx, fmt.Sprintf("Copy from %s to %s", source.Name, target.Name))
		},
	}
}

// transferEnds resolves the source query and the destination of a move
// or copy. A directory destination keeps the source's file name. The
// destination is taken as a path, never followed through an alias, so
// replacing it replaces the link itself.
func transferEnds(s *store.Store, query, dest string, force bool) (store.Secret, store.Secret, error) {
	source, err := resolveSecret(s, query)
	if err != nil {
		return store.Secret{}, store.Secret{}, err
	}
	path, err := s.NormalizeSecretPath(dest, filepath.Base(source.Path), true)
	if err != nil {
		return store.Secret{}, store.Secret{}, err
	}
	if path == source.Path {
		return store.Secret{}, store.Secret{}, fmt.Errorf("%w: %s", errSameSecret, source.Name)
	}
	target := s.SecretAt(path)
	if _, err := os.Lstat(path); err == nil && !force {
		return store.Secret{}, store.Secret{}, fmt.Errorf("%w: %s", errSecretExists, target.Name)
	}
	return source, target, nil
}

// moveSecret renames source to target. An alias is recreated with a
// link relative to its new directory, since a plain rename would leave
// a relative link dangling.
func moveSecret(s *store.Store, source, target store.Secret) error {
	info, err := os.Lstat(source.Path)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", source.Name, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		if err := os.Rename(source.Path, target.Path); err != nil {
			return fmt.Errorf("moving %s: %w", source.Name, err)
		}
		return nil
	}

	linked, err := s.AliasTarget(source)
	if err != nil {
		return err
	}
	if err := os.Remove(target.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replacing %s: %w", target.Name, err)
	}
	if _, err := createAlias(s, linked, target.Path); err != nil {
		return err
	}
	if err := os.Remove(source.Path); err != nil {
		return fmt.Errorf("removing old alias %s: %w", source.Name, err)
	}
	return nil
}
