// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agecrypt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/secret"
)

// GenerateIdentity creates a new X25519 identity file at path in the
// format of age-keygen and returns the matching recipient key. An
// existing file is never overwritten.
func GenerateIdentity(path string, now time.Time) (crypto.Key, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return crypto.Key{}, fmt.Errorf("generating age identity: %w", err)
	}
	recipient := identity.Recipient().String()

	// The identity string is on the heap already; the file contents are
	// assembled in protected memory so only one heap copy exists.
	header := fmt.Sprintf("# created: %s\n# public key: %s\n", now.UTC().Format(time.RFC3339), recipient)
	identityText := identity.String()
	buffer, err := secret.New(len(header) + len(identityText) + 1)
	if err != nil {
		return crypto.Key{}, fmt.Errorf("protecting age identity: %w", err)
	}
	defer buffer.Close()
	contents := buffer.UnsecureBytes()
	offset := copy(contents, header)
	offset += copy(contents[offset:], identityText)
	contents[offset] = '\n'

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return crypto.Key{}, fmt.Errorf("creating identity directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return crypto.Key{}, fmt.Errorf("age identity file %s already exists", path)
	}
	if err != nil {
		return crypto.Key{}, fmt.Errorf("creating age identity file: %w", err)
	}
	if _, err := file.Write(contents); err != nil {
		file.Close()
		os.Remove(path)
		return crypto.Key{}, fmt.Errorf("writing age identity file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return crypto.Key{}, fmt.Errorf("closing age identity file: %w", err)
	}

	return crypto.NewKey(crypto.ProtoAge, recipient), nil
}
