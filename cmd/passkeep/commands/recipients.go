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
	"slices"
	"strings"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/recipients"
	"github.com/bureau-foundation/passkeep/lib/store"
)

var (
	errUnknownKey    = errors.New("no local public key matches")
	errNotRecipient  = errors.New("not a recipient of this store")
	errLastRecipient = errors.New("refusing to remove the last recipient")
	errLockout       = errors.New("no remaining recipient has a local private key")
)

func recipientsCommand() *cli.Command {
	return &cli.Command{
		Name:    "recipients",
		Summary: "Manage the keys secrets are encrypted for",
		Subcommands: []*cli.Command{
			recipientsListCommand(),
			recipientsAddCommand(),
			recipientsRemoveCommand(),
			recipientsExportCommand(),
			recipientsSyncKeysCommand(),
		},
	}
}

// findKey returns the key in keys whose fingerprint matches query.
func findKey(keys []crypto.Key, query string) (crypto.Key, bool) {
	for _, key := range keys {
		if key.MatchesFingerprint(query) {
			return key, true
		}
	}
	return crypto.Key{}, false
}

type recipientsChangeParams struct {
	cli.GlobalParams
	NoRecrypt bool `flag:"no-recrypt" desc:"skip re-encrypting the store for the new recipient set"`
}

func recipientsAddCommand() *cli.Command {
	var params recipientsChangeParams

	return &cli.Command{
		Name:    "add",
		Summary: "Add recipients and re-encrypt the store",
		Description: `Add the keys with the given FINGERPRINTs to the store's recipients
file, export their public keys into the store, and re-encrypt every
secret and the OTP file so the new recipients can read them. The keys
must be known to the local key-ring.`,
		Usage:  "passkeep recipients add <fingerprint>... [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("expected at least one fingerprint")
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.prepare(ctx); err != nil {
				return err
			}
			set, err := session.recipients(ctx)
			if err != nil {
				return err
			}
			c, err := session.context()
			if err != nil {
				return err
			}
			known, err := c.KeysPublic(ctx)
			if err != nil {
				return fmt.Errorf("listing public keys: %w", err)
			}

			var added []string
			for _, fingerprint := range args {
				key, ok := findKey(known, fingerprint)
				if !ok || !c.SupportsProto(key.Proto) {
					return fmt.Errorf("%w %s; import it into the key-ring first", errUnknownKey, fingerprint)
				}
				if !set.Add(key) {
					logger.Info("already a recipient", "fingerprint", key.Fingerprint)
					continue
				}
				added = append(added, key.Fingerprint)
			}
			if len(added) == 0 {
				return nil
			}

			return session.applyRecipients(ctx, set, params.NoRecrypt, fmt.Sprintf("Add recipient %s", strings.Join(added, ", ")))
		},
	}
}

type recipientsRemoveParams struct {
	recipientsChangeParams
	Force bool `flag:"force,f" desc:"remove even when no remaining recipient can be decrypted locally"`
}

func recipientsRemoveCommand() *cli.Command {
	var params recipientsRemoveParams

	return &cli.Command{
		Name:    "remove",
		Summary: "Remove recipients and re-encrypt the store",
		Description: `Remove the keys with the given FINGERPRINTs from the store's
recipients file, delete their exported public keys, and re-encrypt
every secret and the OTP file so the removed keys can no longer read
new ciphertexts. Removing the last key this machine can decrypt with
requires --force.`,
		Usage:  "passkeep recipients remove <fingerprint>... [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("expected at least one fingerprint")
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.prepare(ctx); err != nil {
				return err
			}
			set, err := session.recipients(ctx)
			if err != nil {
				return err
			}
			c, err := session.context()
			if err != nil {
				return err
			}

			var removed []string
			for _, fingerprint := range args {
				key, ok := findKey(set.Keys(), fingerprint)
				if !ok {
					return fmt.Errorf("%s: %w", fingerprint, errNotRecipient)
				}
				set.Remove(key)
				removed = append(removed, key.Fingerprint)
			}
			if set.Len() == 0 {
				return errLastRecipient
			}
			own, err := set.ContainsOwnSecretKey(ctx, c)
			if err != nil {
				return err
			}
			if !own && !params.Force {
				return fmt.Errorf("%w; pass --force to remove anyway", errLockout)
			}

			return session.applyRecipients(ctx, set, params.NoRecrypt, fmt.Sprintf("Remove recipient %s", strings.Join(removed, ", ")))
		},
	}
}

// applyRecipients saves a changed recipient set, brings the store's
// public key directory in line with it, re-encrypts the store unless
// skipped, and commits.
func (s *session) applyRecipients(ctx context.Context, set *recipients.Recipients, noRecrypt bool, message string) error {
	c, err := s.context()
	if err != nil {
		return err
	}
	if err := set.Save(s.store); err != nil {
		return err
	}
	if err := set.SyncPublicKeyFiles(ctx, s.store, c); err != nil {
		return err
	}
	if noRecrypt {
		s.logger.Warn("recipients changed without re-encrypting; existing secrets keep their old recipients")
	} else {
		count, err := s.recryptStore(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("re-encrypted store", "secrets", count, "recipients", set.Len())
	}
	return s.finalize(ctx, message)
}

type recipientsExportParams struct {
	cli.GlobalParams
	Output string `flag:"output,o" desc:"file to write the public key to instead of stdout"`
}

func recipientsExportCommand() *cli.Command {
	var params recipientsExportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Print a recipient's public key",
		Usage:   "passkeep recipients export <fingerprint> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one fingerprint")
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			set, err := session.recipients(ctx)
			if err != nil {
				return err
			}
			key, ok := findKey(set.Keys(), args[0])
			if !ok {
				return fmt.Errorf("%s: %w", args[0], errNotRecipient)
			}
			c, err := session.context()
			if err != nil {
				return err
			}
			data, err := c.ExportKey(ctx, key)
			if err != nil {
				return err
			}

			if params.Output == "" {
				_, err := cli.Stdout.Write(data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(params.Output), 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			if err := store.WriteFileAtomic(params.Output, data, 0o644); err != nil {
				return err
			}
			logger.Info("exported public key", "fingerprint", key.Fingerprint, "path", params.Output)
			return nil
		},
	}
}

type recipientsListParams struct {
	cli.GlobalParams
	cli.JSONOutput
}

type recipientEntry struct {
	Fingerprint string   `json:"fingerprint"`
	UserIDs     []string `json:"user_ids"`
	Own         bool     `json:"own"`
}

func recipientsListCommand() *cli.Command {
	var params recipientsListParams

	return &cli.Command{
		Name:    "list",
		Summary: "List the keys secrets are encrypted for",
		Description: `List the recipients of the store's recipients file. Keys whose
private half is available locally are marked.`,
		Usage:  "passkeep recipients list [flags]",
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

			set, err := session.recipients(ctx)
			if err != nil {
				return err
			}
			c, err := session.context()
			if err != nil {
				return err
			}
			own, err := c.KeysPrivate(ctx)
			if err != nil {
				return fmt.Errorf("listing private keys: %w", err)
			}

			entries := make([]recipientEntry, 0, set.Len())
			for _, key := range set.Keys() {
				entries = append(entries, recipientEntry{
					Fingerprint: key.Fingerprint,
					UserIDs:     slices.Clone(key.UserIDs),
					Own:         crypto.ContainsKey(own, key),
				})
			}
			if done, err := params.EmitJSON(entries); done {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintf(cli.Stdout, "no recipients in %s\n", session.store.RecipientsFilePath(set.Proto().RecipientsFile()))
				return nil
			}
			for _, entry := range entries {
				marker := " "
				if entry.Own {
					marker = styled(cli.Good, "*")
				}
				line := marker + " " + styled(cli.Faint, entry.Fingerprint)
				if len(entry.UserIDs) > 0 {
					line += "  " + entry.UserIDs[0]
				}
				fmt.Fprintln(cli.Stdout, line)
			}
			return nil
		},
	}
}

type recipientsSyncKeysParams struct {
	cli.GlobalParams
}

func recipientsSyncKeysCommand() *cli.Command {
	var params recipientsSyncKeysParams

	return &cli.Command{
		Name:    "sync-keys",
		Summary: "Exchange recipient public keys through the store",
		Description: `Import the public keys of recipients the local key-ring lacks from
the store's public key directory, then export every recipient's public
key into that directory and remove files of former recipients.`,
		Usage:  "passkeep recipients sync-keys [flags]",
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

			if err := session.prepare(ctx); err != nil {
				return err
			}
			set, err := session.recipients(ctx)
			if err != nil {
				return err
			}
			c, err := session.context()
			if err != nil {
				return err
			}

			results, err := set.ImportMissingKeysFromStore(ctx, session.store, c)
			if err != nil {
				return err
			}
			for _, result := range results {
				status := styled(cli.Good, result.Status.String())
				if result.Status == recipients.Unavailable {
					status = styled(cli.Warn, result.Status.String())
				}
				fmt.Fprintf(cli.Stdout, "%s %s\n", status, result.Fingerprint)
			}

			if err := set.SyncPublicKeyFiles(ctx, session.store, c); err != nil {
				return err
			}
			return session.finalize(ctx, "Synchronize recipient public keys")
		},
	}
}
