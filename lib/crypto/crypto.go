// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"errors"

	"github.com/bureau-foundation/passkeep/lib/secret"
)

var (
	// ErrNoRecipients is returned when encrypting to an empty recipient
	// set.
	ErrNoRecipients = errors.New("no recipients to encrypt for")

	// ErrNoMatchingIdentity is returned when no local private key can
	// decrypt a ciphertext.
	ErrNoMatchingIdentity = errors.New("no matching private key for this secret")

	// ErrMalformedCiphertext is returned when a ciphertext cannot be
	// parsed by the backend.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrBackendUnavailable is returned when the backend cannot run at
	// all, such as a missing gpg binary or identity file.
	ErrBackendUnavailable = errors.New("crypto backend unavailable")

	// ErrDecryptFailed covers decryption failures that are not one of
	// the more specific errors above.
	ErrDecryptFailed = errors.New("decryption failed")

	// ErrEncryptFailed covers encryption failures other than an empty
	// recipient set.
	ErrEncryptFailed = errors.New("encryption failed")

	// ErrImportFailed is returned when key material could not be added
	// to the local key-ring.
	ErrImportFailed = errors.New("key import failed")

	// ErrExportFailed is returned when a public key could not be
	// exported.
	ErrExportFailed = errors.New("key export failed")
)

// Context is the capability set every crypto backend implements. A
// Context is acquired per command and released with Close.
type Context interface {
	// Proto returns the protocol this context speaks.
	Proto() Proto

	// SupportsProto reports whether keys of the given protocol can be
	// used with this context.
	SupportsProto(proto Proto) bool

	// Encrypt encrypts plaintext so that every recipient can decrypt
	// it. An empty recipient list fails with ErrNoRecipients.
	Encrypt(ctx context.Context, recipients []Key, plaintext *secret.Plaintext) (*secret.Ciphertext, error)

	// Decrypt decrypts ciphertext with local private key material.
	Decrypt(ctx context.Context, ciphertext *secret.Ciphertext) (*secret.Plaintext, error)

	// CanDecrypt reports whether a local private key matches one of
	// the ciphertext's recipients, without producing the plaintext.
	CanDecrypt(ctx context.Context, ciphertext *secret.Ciphertext) (bool, error)

	// KeysPublic lists the public keys known locally.
	KeysPublic(ctx context.Context) ([]Key, error)

	// KeysPrivate lists keys whose private half is available locally.
	KeysPrivate(ctx context.Context) ([]Key, error)

	// ImportKey adds public key material to the local key-ring.
	ImportKey(ctx context.Context, data []byte) error

	// ExportKey returns the public key material of key. Never returns
	// private key material.
	ExportKey(ctx context.Context, key Key) ([]byte, error)

	// Close releases resources held by the context, such as decoded
	// identities.
	Close() error
}
