// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/config"
	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/crypto/backend"
	"github.com/bureau-foundation/passkeep/lib/recipients"
	"github.com/bureau-foundation/passkeep/lib/secret"
	"github.com/bureau-foundation/passkeep/lib/store"
	"github.com/bureau-foundation/passkeep/lib/sync"
)

var (
	errSecretExists = errors.New("secret already exists")
	errNoRecipients = errors.New("no recipients to encrypt for")
	errStoreLocked  = errors.New("no local private key can decrypt the store")
	errSameSecret   = errors.New("source and destination are the same secret")
)

// session is the state shared by a single command invocation: the
// loaded configuration, the opened store and, on first use, the crypto
// context.
type session struct {
	globals cli.GlobalParams
	config  *config.Config
	store   *store.Store
	sync    *sync.Sync
	logger  *slog.Logger

	crypto crypto.Context
}

// openSession loads the configuration and opens the store. The flag
// values in globals override the configuration file.
func openSession(globals cli.GlobalParams, logger *slog.Logger) (*session, error) {
	var cfg *config.Config
	var err error
	if globals.Config != "" {
		cfg, err = config.LoadFile(globals.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if globals.Store != "" {
		cfg.Store.Dir = globals.Store
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if !globals.Verbose && (cfg.Log.Level != "info" || cfg.Log.Format != "auto") {
		logger = cli.NewLogger(cfg.LogLevel(), cfg.Log.Format)
	}

	options, err := cfg.StoreOptions()
	if err != nil {
		return nil, err
	}
	opened, err := store.OpenWithOptions(cfg.Store.Dir, options)
	if err != nil {
		return nil, fmt.Errorf("opening password store: %w", err)
	}
	logger.Debug("opened store", "root", opened.Root(), "proto", cfg.Crypto.Proto)

	return &session{
		globals: globals,
		config:  cfg,
		store:   opened,
		sync:    sync.New(opened, logger),
		logger:  logger,
	}, nil
}

// context returns the crypto context, creating it on first use so
// commands that never decrypt work without gpg installed.
func (s *session) context() (crypto.Context, error) {
	if s.crypto != nil {
		return s.crypto, nil
	}
	c, err := backend.New(s.config, s.logger)
	if err != nil {
		return nil, err
	}
	s.crypto = c
	return c, nil
}

func (s *session) recipients(ctx context.Context) (*recipients.Recipients, error) {
	c, err := s.context()
	if err != nil {
		return nil, err
	}
	return recipients.Load(ctx, s.store, c, s.logger)
}

// encryptionKeys returns the store's recipients. New ciphertexts are
// always encrypted for the whole set; an empty set is an error.
func (s *session) encryptionKeys(ctx context.Context) ([]crypto.Key, error) {
	set, err := s.recipients(ctx)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: %s is empty or missing", errNoRecipients, s.store.RecipientsFilePath(set.Proto().RecipientsFile()))
	}
	return set.Keys(), nil
}

// writeSecret encrypts plaintext for the store's recipients into path.
func (s *session) writeSecret(ctx context.Context, path string, plaintext *secret.Plaintext) error {
	c, err := s.context()
	if err != nil {
		return err
	}
	keys, err := s.encryptionKeys(ctx)
	if err != nil {
		return err
	}
	return crypto.EncryptFile(ctx, c, keys, plaintext, path, s.store.FileMode())
}

// destination normalizes a user-supplied target into the secret a
// command writes. An existing secret is refused unless replace is set;
// replacing an alias writes through to the secret it resolves to.
// nameHint names the file when target is a directory.
func destination(s *store.Store, target, nameHint string, replace bool) (store.Secret, error) {
	path, err := s.NormalizeSecretPath(target, nameHint, true)
	if err != nil {
		return store.Secret{}, err
	}
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s.SecretAt(path), nil
	case err != nil:
		return store.Secret{}, fmt.Errorf("inspecting %s: %w", path, err)
	case !replace:
		return store.Secret{}, fmt.Errorf("%w: %s", errSecretExists, s.SecretAt(path).Name)
	case info.Mode()&os.ModeSymlink != 0:
		return s.ResolveAlias(s.SecretAt(path))
	}
	return s.SecretAt(path), nil
}

// recryptSecrets decrypts and re-encrypts secrets for the current
// recipients, in place. Aliases must not be passed: the atomic write
// would replace the link with a copy.
func (s *session) recryptSecrets(ctx context.Context, secrets []store.Secret) error {
	c, err := s.context()
	if err != nil {
		return err
	}
	keys, err := s.encryptionKeys(ctx)
	if err != nil {
		return err
	}
	canDecrypt, err := recipients.CanDecryptStore(ctx, s.store, c)
	if err != nil {
		return err
	}
	if !canDecrypt {
		return errStoreLocked
	}

	for _, target := range secrets {
		if err := ctx.Err(); err != nil {
			return err
		}
		plaintext, err := crypto.DecryptFile(ctx, c, target.Path)
		if err != nil {
			return fmt.Errorf("decrypting %s: %w", target.Name, err)
		}
		err = crypto.EncryptFile(ctx, c, keys, plaintext, target.Path, s.store.FileMode())
		plaintext.Close()
		if err != nil {
			return fmt.Errorf("re-encrypting %s: %w", target.Name, err)
		}
		s.logger.Debug("re-encrypted secret", "name", target.Name)
	}
	return nil
}

// recryptStore re-encrypts every secret and the OTP file. It returns
// the number of secrets rewritten.
func (s *session) recryptStore(ctx context.Context) (int, error) {
	secrets := slices.Collect(s.store.Secrets(store.IterConfig{FindFiles: true}))
	if err := s.recryptSecrets(ctx, secrets); err != nil {
		return 0, err
	}

	if _, err := os.Stat(s.store.OTPFilePath()); err == nil {
		file, err := s.openOTPFile(ctx)
		if err != nil {
			return 0, err
		}
		defer file.Close()
		if err := s.saveOTPFile(ctx, file); err != nil {
			return 0, err
		}
		s.logger.Debug("re-encrypted OTP file")
	}
	return len(secrets), nil
}

func (s *session) syncEnabled() bool {
	return s.config.Sync.Enabled && !s.globals.NoSync
}

// prepare gates a mutation on the store's git state and pulls remote
// changes.
func (s *session) prepare(ctx context.Context) error {
	allowDirty := s.globals.AllowDirty || s.config.Sync.AllowDirty
	if !s.syncEnabled() {
		return nil
	}
	return s.sync.Prepare(ctx, allowDirty)
}

// finalize commits and pushes a mutation.
func (s *session) finalize(ctx context.Context, message string) error {
	if !s.syncEnabled() {
		return nil
	}
	return s.sync.Finalize(ctx, message)
}

func (s *session) Close() error {
	if s.crypto == nil {
		return nil
	}
	return s.crypto.Close()
}

// styled applies style when stdout is a terminal.
func styled(style func(string) string, text string) string {
	if cli.Stdout == os.Stdout && cli.IsTerminal() {
		return style(text)
	}
	return text
}
