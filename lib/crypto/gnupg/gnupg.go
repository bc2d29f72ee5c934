// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gnupg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/secret"
)

// Config configures a GPG context.
type Config struct {
	// Binary is the gpg executable. Empty means "gpg" from PATH.
	Binary string

	// Home sets GNUPGHOME. Empty uses gpg's default.
	Home string

	// TTY enables terminal pinentry by forwarding TTYPath as GPG_TTY.
	TTY bool

	// TTYPath is the terminal device, usually the value of GPG_TTY.
	TTYPath string

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// Context is the GPG implementation of crypto.Context.
type Context struct {
	binary  string
	home    string
	tty     bool
	ttyPath string
	logger  *slog.Logger
}

var _ crypto.Context = (*Context)(nil)

// New locates the gpg binary. A missing binary is an
// ErrBackendUnavailable error.
func New(config Config) (*Context, error) {
	binary := config.Binary
	if binary == "" {
		binary = "gpg"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrBackendUnavailable, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Context{
		binary:  resolved,
		home:    config.Home,
		tty:     config.TTY,
		ttyPath: config.TTYPath,
		logger:  logger,
	}, nil
}

// Proto returns crypto.ProtoGPG.
func (c *Context) Proto() crypto.Proto { return crypto.ProtoGPG }

// SupportsProto reports whether proto is GPG.
func (c *Context) SupportsProto(proto crypto.Proto) bool { return proto == crypto.ProtoGPG }

// run executes gpg with the common options and returns stdout. Stderr
// is returned separately so callers can classify failures.
func (c *Context) run(ctx context.Context, stdin io.Reader, args ...string) ([]byte, string, error) {
	fullArgs := []string{"--batch", "--quiet", "--yes"}
	if !c.tty {
		fullArgs = append(fullArgs, "--no-tty")
	}
	fullArgs = append(fullArgs, args...)

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.binary, fullArgs...)
	command.Stdin = stdin
	command.Stdout = &stdout
	command.Stderr = &stderr
	command.Env = c.environment()

	c.logger.Debug("running gpg", "args", strings.Join(args, " "))
	err := command.Run()
	return stdout.Bytes(), strings.TrimSpace(stderr.String()), err
}

func (c *Context) environment() []string {
	environment := os.Environ()
	if c.home != "" {
		environment = append(environment, "GNUPGHOME="+c.home)
	}
	if c.tty && c.ttyPath != "" {
		environment = append(environment, "GPG_TTY="+c.ttyPath)
	}
	return environment
}

// Encrypt encrypts plaintext to every recipient.
func (c *Context) Encrypt(ctx context.Context, recipients []crypto.Key, plaintext *secret.Plaintext) (*secret.Ciphertext, error) {
	if len(recipients) == 0 {
		return nil, crypto.ErrNoRecipients
	}

	args := []string{"--encrypt", "--trust-model", "always", "--output", "-"}
	for _, key := range recipients {
		if !c.SupportsProto(key.Proto) {
			return nil, fmt.Errorf("%w: recipient %s is a %s key", crypto.ErrEncryptFailed, key.Fingerprint, key.Proto)
		}
		args = append(args, "--recipient", key.Fingerprint)
	}

	stdout, stderr, err := c.run(ctx, bytes.NewReader(plaintext.UnsecureBytes()), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: gpg: %v (stderr: %s)", crypto.ErrEncryptFailed, err, stderr)
	}
	return secret.NewCiphertext(stdout)
}

// Decrypt decrypts ciphertext with the local key-ring.
func (c *Context) Decrypt(ctx context.Context, ciphertext *secret.Ciphertext) (*secret.Plaintext, error) {
	stdout, stderr, err := c.run(ctx, bytes.NewReader(ciphertext.UnsecureBytes()), "--decrypt", "--output", "-")
	if err != nil {
		secret.Zero(stdout)
		return nil, classifyDecryptError(err, stderr)
	}
	return secret.NewPlaintext(stdout)
}

func classifyDecryptError(err error, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "no secret key"):
		return fmt.Errorf("%w: %s", crypto.ErrNoMatchingIdentity, stderr)
	case strings.Contains(lower, "no valid openpgp data"),
		strings.Contains(lower, "invalid packet"),
		strings.Contains(lower, "unexpected data"),
		strings.Contains(lower, "invalid armor"):
		return fmt.Errorf("%w: %s", crypto.ErrMalformedCiphertext, stderr)
	default:
		return fmt.Errorf("%w: gpg: %v (stderr: %s)", crypto.ErrDecryptFailed, err, stderr)
	}
}

// CanDecrypt matches the key IDs the ciphertext is encrypted to against
// local secret keys and subkeys. A ciphertext with hidden recipients is
// checked by attempting decryption.
func (c *Context) CanDecrypt(ctx context.Context, ciphertext *secret.Ciphertext) (bool, error) {
	stdout, stderr, err := c.run(ctx, bytes.NewReader(ciphertext.UnsecureBytes()), "--list-packets", "--list-only")
	keyIDs := parseEncryptedKeyIDs(string(stdout))
	if len(keyIDs) == 0 {
		if err != nil {
			return false, fmt.Errorf("%w: %s", crypto.ErrMalformedCiphertext, stderr)
		}
		return false, fmt.Errorf("%w: no encrypted session key packets", crypto.ErrMalformedCiphertext)
	}

	listed, err := c.listKeys(ctx, true)
	if err != nil {
		return false, err
	}

	hidden := false
	for _, keyID := range keyIDs {
		if keyID == hiddenKeyID {
			hidden = true
			continue
		}
		for _, key := range listed {
			if key.hasKeyID(keyID) {
				return true, nil
			}
		}
	}
	if !hidden || len(listed) == 0 {
		return false, nil
	}

	plaintext, err := c.Decrypt(ctx, ciphertext)
	if err != nil {
		return false, nil
	}
	plaintext.Close()
	return true, nil
}

// KeysPublic lists the public key-ring.
func (c *Context) KeysPublic(ctx context.Context) ([]crypto.Key, error) {
	listed, err := c.listKeys(ctx, false)
	if err != nil {
		return nil, err
	}
	return toKeys(listed), nil
}

// KeysPrivate lists keys with secret material in the key-ring.
func (c *Context) KeysPrivate(ctx context.Context) ([]crypto.Key, error) {
	listed, err := c.listKeys(ctx, true)
	if err != nil {
		return nil, err
	}
	return toKeys(listed), nil
}

func (c *Context) listKeys(ctx context.Context, secretKeys bool) ([]listedKey, error) {
	mode := "--list-keys"
	if secretKeys {
		mode = "--list-secret-keys"
	}
	stdout, stderr, err := c.run(ctx, nil, "--with-colons", "--with-subkey-fingerprint", "--fixed-list-mode", mode)
	if err != nil {
		// An empty key-ring makes gpg exit non-zero on some versions
		// with nothing on stdout.
		if len(bytes.TrimSpace(stdout)) == 0 && !strings.Contains(strings.ToLower(stderr), "error") {
			return nil, nil
		}
		return nil, fmt.Errorf("gpg %s: %w (stderr: %s)", mode, err, stderr)
	}
	return parseColonKeys(string(stdout)), nil
}

// ImportKey imports public key material. Secret key blocks are refused.
func (c *Context) ImportKey(ctx context.Context, data []byte) error {
	if ContainsPrivateKeyMaterial(data) {
		return fmt.Errorf("%w: refusing to import secret key material", crypto.ErrImportFailed)
	}
	_, stderr, err := c.run(ctx, bytes.NewReader(data), "--import")
	if err != nil {
		return fmt.Errorf("%w: gpg: %v (stderr: %s)", crypto.ErrImportFailed, err, stderr)
	}
	return nil
}

// ExportKey exports the armored public key of key.
func (c *Context) ExportKey(ctx context.Context, key crypto.Key) ([]byte, error) {
	if key.Proto != crypto.ProtoGPG {
		return nil, fmt.Errorf("%w: %s is not a GPG key", crypto.ErrExportFailed, key.Fingerprint)
	}
	stdout, stderr, err := c.run(ctx, nil, "--armor", "--export", key.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: gpg: %v (stderr: %s)", crypto.ErrExportFailed, err, stderr)
	}
	if len(bytes.TrimSpace(stdout)) == 0 {
		return nil, fmt.Errorf("%w: key %s not in key-ring", crypto.ErrExportFailed, key.Fingerprint)
	}
	if ContainsPrivateKeyMaterial(stdout) {
		return nil, fmt.Errorf("%w: gpg returned secret key material", crypto.ErrExportFailed)
	}
	return stdout, nil
}

// Close is a no-op; gpg holds no state in this process.
func (c *Context) Close() error { return nil }

// ContainsPrivateKeyMaterial reports whether data holds an armored
// OpenPGP secret key block.
func ContainsPrivateKeyMaterial(data []byte) bool {
	return bytes.Contains(data, []byte("PRIVATE KEY BLOCK"))
}
