// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend constructs the crypto.Context configured for a store.
// It is the only package that imports every backend, so callers depend
// on lib/crypto alone.
package backend

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/passkeep/lib/config"
	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/crypto/agecrypt"
	"github.com/bureau-foundation/passkeep/lib/crypto/gnupg"
)

// New returns a context for cfg.Crypto.Proto. For age, configured
// identity files that do not exist are skipped, so encryption works on
// machines that hold no identity.
func New(cfg *config.Config, logger *slog.Logger) (crypto.Context, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Crypto.Proto {
	case crypto.ProtoGPG:
		return gnupg.New(gnupg.Config{
			Binary:  cfg.Crypto.GPG.Binary,
			Home:    cfg.Crypto.GPG.Home,
			TTY:     cfg.Crypto.GPG.TTY,
			TTYPath: cfg.Crypto.GPG.TTYPath,
			Logger:  logger,
		})
	case crypto.ProtoAge:
		identities := cfg.ExistingIdentities()
		if len(identities) < len(cfg.Crypto.Age.Identities) {
			logger.Debug("skipping missing age identity files",
				"configured", len(cfg.Crypto.Age.Identities), "found", len(identities))
		}
		return agecrypt.New(agecrypt.Config{
			IdentityFiles: identities,
			KeyringFile:   cfg.Crypto.Age.Keyring,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported protocol %s", crypto.ErrBackendUnavailable, cfg.Crypto.Proto)
	}
}
