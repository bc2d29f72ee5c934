// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agecrypt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/secret"
)

// Config configures an age context.
type Config struct {
	// IdentityFiles are files holding age identities, one
	// "AGE-SECRET-KEY-1..." per line. May be empty, in which case the
	// context can encrypt but not decrypt.
	IdentityFiles []string

	// KeyringFile is the local recipients file that stands in for a
	// public key-ring. Empty disables ImportKey.
	KeyringFile string

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// Context is the age implementation of crypto.Context.
type Context struct {
	identities  []age.Identity
	privateKeys []crypto.Key
	keyringFile string
	logger      *slog.Logger
}

var _ crypto.Context = (*Context)(nil)

// New loads the configured identity files. A listed identity file that
// does not exist or holds no identities is an ErrBackendUnavailable
// error.
func New(config Config) (*Context, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Context{
		keyringFile: config.KeyringFile,
		logger:      logger,
	}
	for _, path := range config.IdentityFiles {
		if err := c.loadIdentityFile(path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Context) loadIdentityFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading age identity file: %v", crypto.ErrBackendUnavailable, err)
	}
	buffer, err := secret.NewFromBytes(data)
	if err != nil {
		return fmt.Errorf("protecting age identity file %s: %w", path, err)
	}
	defer buffer.Close()

	identities, err := age.ParseIdentities(bytes.NewReader(buffer.UnsecureBytes()))
	if err != nil {
		return fmt.Errorf("%w: parsing age identity file %s: %v", crypto.ErrBackendUnavailable, path, err)
	}

	for _, identity := range identities {
		c.identities = append(c.identities, identity)
		x25519, ok := identity.(*age.X25519Identity)
		if !ok {
			c.logger.Debug("age identity has no listable recipient", "file", path)
			continue
		}
		c.privateKeys = append(c.privateKeys, crypto.NewKey(crypto.ProtoAge, x25519.Recipient().String()))
	}
	c.logger.Debug("loaded age identities", "file", path, "count", len(identities))
	return nil
}

// Proto returns crypto.ProtoAge.
func (c *Context) Proto() crypto.Proto { return crypto.ProtoAge }

// SupportsProto reports whether proto is age.
func (c *Context) SupportsProto(proto crypto.Proto) bool { return proto == crypto.ProtoAge }

// Encrypt encrypts plaintext to every recipient and armors the result.
func (c *Context) Encrypt(ctx context.Context, recipients []crypto.Key, plaintext *secret.Plaintext) (*secret.Ciphertext, error) {
	if len(recipients) == 0 {
		return nil, crypto.ErrNoRecipients
	}

	parsed := make([]age.Recipient, 0, len(recipients))
	for _, key := range recipients {
		if !c.SupportsProto(key.Proto) {
			return nil, fmt.Errorf("%w: recipient %s is a %s key", crypto.ErrEncryptFailed, key.Fingerprint, key.Proto)
		}
		recipient, err := ParseRecipient(key.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrEncryptFailed, err)
		}
		parsed = append(parsed, recipient)
	}

	var output bytes.Buffer
	armorWriter := armor.NewWriter(&output)
	writer, err := age.Encrypt(armorWriter, parsed...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating age encryptor: %v", crypto.ErrEncryptFailed, err)
	}
	if _, err := writer.Write(plaintext.UnsecureBytes()); err != nil {
		return nil, fmt.Errorf("%w: writing plaintext: %v", crypto.ErrEncryptFailed, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalizing age encryption: %v", crypto.ErrEncryptFailed, err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalizing armor: %v", crypto.ErrEncryptFailed, err)
	}

	return secret.NewCiphertext(output.Bytes())
}

// Decrypt decrypts an armored or binary age file.
func (c *Context) Decrypt(ctx context.Context, ciphertext *secret.Ciphertext) (*secret.Plaintext, error) {
	reader, err := c.open(ciphertext)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(data)
		return nil, fmt.Errorf("%w: %v", crypto.ErrDecryptFailed, err)
	}
	return secret.NewPlaintext(data)
}

// CanDecrypt unwraps the file key with the local identities without
// reading the payload.
func (c *Context) CanDecrypt(ctx context.Context, ciphertext *secret.Ciphertext) (bool, error) {
	_, err := c.open(ciphertext)
	if errors.Is(err, crypto.ErrNoMatchingIdentity) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// open parses the header and returns a reader of the decrypted payload.
func (c *Context) open(ciphertext *secret.Ciphertext) (io.Reader, error) {
	if len(c.identities) == 0 {
		return nil, fmt.Errorf("%w: no age identities configured", crypto.ErrNoMatchingIdentity)
	}

	data := ciphertext.UnsecureBytes()
	var source io.Reader = bytes.NewReader(data)
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte(armor.Header)) {
		source = armor.NewReader(bytes.NewReader(bytes.TrimLeft(data, " \t\r\n")))
	}

	reader, err := age.Decrypt(source, c.identities...)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, fmt.Errorf("%w: %v", crypto.ErrNoMatchingIdentity, err)
		}
		return nil, fmt.Errorf("%w: %v", crypto.ErrMalformedCiphertext, err)
	}
	return reader, nil
}

// KeysPublic returns the keys of the local keyring file followed by the
// recipients of the loaded identities that the keyring lacks.
func (c *Context) KeysPublic(ctx context.Context) ([]crypto.Key, error) {
	keys, err := c.readKeyring()
	if err != nil {
		return nil, err
	}
	for _, key := range c.privateKeys {
		if !crypto.ContainsKey(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// KeysPrivate returns the recipients of the loaded X25519 identities.
// Display names are taken from the keyring when it lists the key.
func (c *Context) KeysPrivate(ctx context.Context) ([]crypto.Key, error) {
	keyring, err := c.readKeyring()
	if err != nil {
		return nil, err
	}
	keys := make([]crypto.Key, 0, len(c.privateKeys))
	for _, key := range c.privateKeys {
		for _, known := range keyring {
			if known.Equal(key) {
				key = known
				break
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ImportKey validates recipient lines and appends new ones to the
// keyring file.
func (c *Context) ImportKey(ctx context.Context, data []byte) error {
	if c.keyringFile == "" {
		return fmt.Errorf("%w: no age keyring file configured", crypto.ErrImportFailed)
	}
	incoming, err := ParseRecipientsFile(data)
	if err != nil {
		return fmt.Errorf("%w: %v", crypto.ErrImportFailed, err)
	}
	if len(incoming) == 0 {
		return fmt.Errorf("%w: no recipients in key data", crypto.ErrImportFailed)
	}

	existing, err := c.readKeyring()
	if err != nil {
		return fmt.Errorf("%w: %v", crypto.ErrImportFailed, err)
	}
	var added []crypto.Key
	for _, key := range incoming {
		if !crypto.ContainsKey(existing, key) && !crypto.ContainsKey(added, key) {
			added = append(added, key)
		}
	}
	if len(added) == 0 {
		return nil
	}

	if err := appendKeyring(c.keyringFile, added); err != nil {
		return fmt.Errorf("%w: %v", crypto.ErrImportFailed, err)
	}
	c.logger.Debug("imported age recipients", "keyring", c.keyringFile, "count", len(added))
	return nil
}

// ExportKey returns the recipient line of key. age recipients are their
// own public key material.
func (c *Context) ExportKey(ctx context.Context, key crypto.Key) ([]byte, error) {
	if key.Proto != crypto.ProtoAge {
		return nil, fmt.Errorf("%w: %s is not an age key", crypto.ErrExportFailed, key.Fingerprint)
	}
	if _, err := ParseRecipient(key.Fingerprint); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrExportFailed, err)
	}

	var output bytes.Buffer
	if len(key.UserIDs) > 0 {
		fmt.Fprintf(&output, "# %s\n", key.UserIDs[0])
	}
	output.WriteString(key.Fingerprint)
	output.WriteByte('\n')
	return output.Bytes(), nil
}

// Close drops the parsed identities.
func (c *Context) Close() error {
	c.identities = nil
	c.privateKeys = nil
	return nil
}

func (c *Context) readKeyring() ([]crypto.Key, error) {
	if c.keyringFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.keyringFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading age keyring: %w", err)
	}
	return ParseRecipientsFile(data)
}
