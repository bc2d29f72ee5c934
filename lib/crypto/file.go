// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/bureau-foundation/passkeep/lib/secret"
	"github.com/bureau-foundation/passkeep/lib/store"
)

// EncryptFile encrypts plaintext for recipients and replaces the file
// at path with the ciphertext. Nothing is written unless encryption
// succeeds.
func EncryptFile(ctx context.Context, c Context, recipients []Key, plaintext *secret.Plaintext, path string, perm fs.FileMode) error {
	ciphertext, err := c.Encrypt(ctx, recipients, plaintext)
	if err != nil {
		return err
	}
	defer ciphertext.Close()

	if err := store.WriteFileAtomic(path, ciphertext.UnsecureBytes(), perm); err != nil {
		return fmt.Errorf("writing secret: %w", err)
	}
	return nil
}

// DecryptFile reads and decrypts the file at path.
func DecryptFile(ctx context.Context, c Context, path string) (*secret.Plaintext, error) {
	ciphertext, err := secret.ReadCiphertext(path)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	defer ciphertext.Close()

	return c.Decrypt(ctx, ciphertext)
}

// CanDecryptFile reports whether the file at path can be decrypted
// with local private key material.
func CanDecryptFile(ctx context.Context, c Context, path string) (bool, error) {
	ciphertext, err := secret.ReadCiphertext(path)
	if err != nil {
		return false, fmt.Errorf("reading secret: %w", err)
	}
	defer ciphertext.Close()

	return c.CanDecrypt(ctx, ciphertext)
}
