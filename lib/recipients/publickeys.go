// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recipients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/store"
)

// ErrPrivateKeyMaterial is returned when exported key data looks like a
// private key. Such data is never written to the store.
var ErrPrivateKeyMaterial = errors.New("exported key contains private key material")

// ImportStatus is the outcome of importing one recipient's key.
type ImportStatus int

const (
	// Imported means the key was found in the store and imported.
	Imported ImportStatus = iota

	// Unavailable means the store has no public key file for it.
	Unavailable
)

func (s ImportStatus) String() string {
	switch s {
	case Imported:
		return "imported"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("ImportStatus(%d)", int(s))
	}
}

// ImportResult reports what happened to one recipient missing from the
// local key-ring.
type ImportResult struct {
	Fingerprint string
	Status      ImportStatus
}

// ImportMissingKeysFromStore imports recipient keys that the local
// key-ring lacks from the store's public key directory. Recipients
// already known locally produce no result.
func (r *Recipients) ImportMissingKeysFromStore(ctx context.Context, s *store.Store, c crypto.Context) ([]ImportResult, error) {
	known, err := c.KeysPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing public keys: %w", err)
	}

	var results []ImportResult
	for _, key := range r.keys {
		if crypto.ContainsKey(known, key) {
			continue
		}

		path := filepath.Join(s.PublicKeysDir(), key.FileName())
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("no public key file for recipient", "fingerprint", key.Fingerprint)
			results = append(results, ImportResult{Fingerprint: key.Fingerprint, Status: Unavailable})
			continue
		}
		if err != nil {
			return results, fmt.Errorf("reading public key of %s: %w", key.Fingerprint, err)
		}

		if err := c.ImportKey(ctx, data); err != nil {
			return results, fmt.Errorf("importing public key of %s: %w", key.Fingerprint, err)
		}
		r.logger.Info("imported recipient key", "fingerprint", key.Fingerprint)
		results = append(results, ImportResult{Fingerprint: key.Fingerprint, Status: Imported})
	}
	return results, nil
}

// SyncPublicKeyFiles mirrors the recipients' public keys into the
// store. See [SyncPublicKeyFiles].
func (r *Recipients) SyncPublicKeyFiles(ctx context.Context, s *store.Store, c crypto.Context) error {
	return SyncPublicKeyFiles(ctx, s, c, r.keys, r.logger)
}

// SyncPublicKeyFiles writes the exported public key of every key to the
// store's public key directory and removes files of keys not in keys.
// Unchanged files are left untouched.
func SyncPublicKeyFiles(ctx context.Context, s *store.Store, c crypto.Context, keys []crypto.Key, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	directory := s.PublicKeysDir()
	if err := os.MkdirAll(directory, s.DirMode()); err != nil {
		return fmt.Errorf("creating public key directory: %w", err)
	}

	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		data, err := c.ExportKey(ctx, key)
		if err != nil {
			return fmt.Errorf("exporting key %s: %w", key.Fingerprint, err)
		}
		if looksPrivate(data) {
			return fmt.Errorf("%w: %s", ErrPrivateKeyMaterial, key.Fingerprint)
		}

		name := key.FileName()
		wanted[name] = true
		path := filepath.Join(directory, name)
		if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
			continue
		}
		if err := store.WriteFileAtomic(path, data, s.FileMode()); err != nil {
			return fmt.Errorf("writing public key of %s: %w", key.Fingerprint, err)
		}
		logger.Debug("wrote public key file", "fingerprint", key.Fingerprint, "file", name)
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		return fmt.Errorf("listing public key directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if wanted[name] || strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(directory, name)); err != nil {
			return fmt.Errorf("removing stale public key %s: %w", name, err)
		}
		logger.Debug("removed stale public key file", "file", name)
	}
	return nil
}

// looksPrivate detects armored OpenPGP secret keys, PEM or OpenSSH
// private keys and age identities.
func looksPrivate(data []byte) bool {
	upper := bytes.ToUpper(data)
	return bytes.Contains(upper, []byte("PRIVATE KEY")) ||
		bytes.Contains(upper, []byte("AGE-SECRET-KEY-"))
}
