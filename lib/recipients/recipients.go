// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recipients

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/store"
)

// Recipients is an ordered set of keys, unique by fingerprint.
type Recipients struct {
	proto  crypto.Proto
	keys   []crypto.Key
	logger *slog.Logger
}

// New returns an empty recipient set for proto.
func New(proto crypto.Proto, logger *slog.Logger) *Recipients {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recipients{proto: proto, logger: logger}
}

// Load reads the store's recipients file for the context's protocol and
// resolves every fingerprint against the local public keys. Unknown
// fingerprints are kept as keys without user IDs. A missing recipients
// file yields an empty set.
func Load(ctx context.Context, s *store.Store, c crypto.Context, logger *slog.Logger) (*Recipients, error) {
	r := New(c.Proto(), logger)

	path := s.RecipientsFilePath(c.Proto().RecipientsFile())
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("no recipients file", "path", path)
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading recipients file: %w", err)
	}

	known, err := c.KeysPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing public keys: %w", err)
	}

	for _, entry := range parseRecipientsFile(data) {
		key := crypto.NewKey(r.proto, entry.fingerprint)
		if entry.comment != "" {
			key.UserIDs = []string{entry.comment}
		}
		for _, candidate := range known {
			if candidate.Proto == r.proto && candidate.MatchesFingerprint(entry.fingerprint) {
				key = candidate
				break
			}
		}
		r.Add(key)
	}
	return r, nil
}

type fileEntry struct {
	fingerprint string
	comment     string
}

// parseRecipientsFile reads one fingerprint per line. Blank lines and
// "#" comments are skipped; a comment directly above an entry is kept
// as its display name.
func parseRecipientsFile(data []byte) []fileEntry {
	var entries []fileEntry
	comment := ""
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			comment = ""
		case strings.HasPrefix(line, "#"):
			comment = strings.TrimSpace(strings.TrimPrefix(line, "#"))
		default:
			entries = append(entries, fileEntry{fingerprint: line, comment: comment})
			comment = ""
		}
	}
	return entries
}

// Save writes the recipients file atomically.
func (r *Recipients) Save(s *store.Store) error {
	var output bytes.Buffer
	for _, key := range r.keys {
		if r.proto == crypto.ProtoAge && len(key.UserIDs) > 0 && !strings.HasPrefix(key.Fingerprint, "ssh-") {
			fmt.Fprintf(&output, "# %s\n", key.UserIDs[0])
		}
		output.WriteString(key.Fingerprint)
		output.WriteByte('\n')
	}

	path := s.RecipientsFilePath(r.proto.RecipientsFile())
	if err := store.WriteFileAtomic(path, output.Bytes(), s.FileMode()); err != nil {
		return fmt.Errorf("saving recipients: %w", err)
	}
	return nil
}

// Proto returns the protocol of the set.
func (r *Recipients) Proto() crypto.Proto { return r.proto }

// Keys returns a copy of the keys in order.
func (r *Recipients) Keys() []crypto.Key { return slices.Clone(r.keys) }

// Len returns the number of recipients.
func (r *Recipients) Len() int { return len(r.keys) }

// Fingerprints returns the fingerprints in order.
func (r *Recipients) Fingerprints() []string {
	fingerprints := make([]string, 0, len(r.keys))
	for _, key := range r.keys {
		fingerprints = append(fingerprints, key.Fingerprint)
	}
	return fingerprints
}

// Has reports whether key is a recipient.
func (r *Recipients) Has(key crypto.Key) bool {
	return crypto.ContainsKey(r.keys, key)
}

// Add appends key unless an equal key is present. Reports whether the
// set changed.
func (r *Recipients) Add(key crypto.Key) bool {
	if r.Has(key) {
		return false
	}
	r.keys = append(r.keys, key)
	return true
}

// Remove drops key. Reports whether the set changed.
func (r *Recipients) Remove(key crypto.Key) bool {
	before := len(r.keys)
	r.keys = slices.DeleteFunc(r.keys, key.Equal)
	return len(r.keys) != before
}

// ContainsOwnSecretKey reports whether any recipient's private key is
// available to c.
func (r *Recipients) ContainsOwnSecretKey(ctx context.Context, c crypto.Context) (bool, error) {
	private, err := c.KeysPrivate(ctx)
	if err != nil {
		return false, fmt.Errorf("listing private keys: %w", err)
	}
	for _, key := range private {
		if r.Has(key) {
			return true, nil
		}
	}
	return false, nil
}

// CanDecryptStore reports whether c can decrypt the store, judged by
// the first secret found. An empty store is decryptable.
func CanDecryptStore(ctx context.Context, s *store.Store, c crypto.Context) (bool, error) {
	for secret := range s.Secrets(store.DefaultIterConfig()) {
		return crypto.CanDecryptFile(ctx, c, secret.Path)
	}
	return true, nil
}
