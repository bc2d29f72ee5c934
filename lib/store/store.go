// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultSuffix is the secret file suffix of a GPG store.
	DefaultSuffix = ".gpg"

	// DefaultUmask is applied to new secret files and directories when
	// no umask is configured.
	DefaultUmask fs.FileMode = 0o077

	// OTPFileName is the encrypted OTP side-file at the store root.
	OTPFileName = ".otp-codes.json"

	// PublicKeysDirName holds exported public keys of recipients.
	PublicKeysDirName = ".public-keys"
)

var (
	// ErrNotADirectory is returned by Open when the root does not exist
	// or is not a directory.
	ErrNotADirectory = errors.New("store root is not a directory")

	// ErrExpandFailed is returned when a path refers to an undefined
	// environment variable or an unknown home directory.
	ErrExpandFailed = errors.New("failed to expand path")
)

// Options configures how a store is opened.
type Options struct {
	// Suffix is the secret file suffix including the dot. Empty means
	// DefaultSuffix.
	Suffix string

	// Umask masks permission bits of files and directories the store
	// creates.
	Umask fs.FileMode
}

// DefaultOptions returns the options of a GPG store with the default
// umask.
func DefaultOptions() Options {
	return Options{Suffix: DefaultSuffix, Umask: DefaultUmask}
}

// Store is an opened password store. It is immutable after Open and
// safe to copy.
type Store struct {
	root          string
	canonicalRoot string
	suffix        string
	umask         fs.FileMode
}

// Open opens the store at root with DefaultOptions.
func Open(root string) (*Store, error) {
	return OpenWithOptions(root, DefaultOptions())
}

// OpenWithOptions expands root ("~", "$VAR", "${VAR}", "${VAR:-default}"),
// makes it absolute and requires it to be an existing directory.
func OpenWithOptions(root string, options Options) (*Store, error) {
	expanded, err := expandPath(root)
	if err != nil {
		return nil, err
	}
	absolute, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("resolving store root %q: %w", expanded, err)
	}

	info, err := os.Stat(absolute)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, absolute)
	}

	canonical, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return nil, fmt.Errorf("resolving store root %q: %w", absolute, err)
	}

	suffix := options.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}

	return &Store{
		root:          absolute,
		canonicalRoot: canonical,
		suffix:        suffix,
		umask:         options.Umask & fs.ModePerm,
	}, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.root }

// Suffix returns the secret file suffix, including the dot.
func (s *Store) Suffix() string { return s.suffix }

// Umask returns the configured umask.
func (s *Store) Umask() fs.FileMode { return s.umask }

// FileMode returns the permission bits for new files.
func (s *Store) FileMode() fs.FileMode { return 0o666 &^ s.umask }

// DirMode returns the permission bits for new directories.
func (s *Store) DirMode() fs.FileMode { return 0o777 &^ s.umask }

// OTPFilePath returns the path of the encrypted OTP side-file.
func (s *Store) OTPFilePath() string {
	return filepath.Join(s.root, OTPFileName)
}

// RecipientsFilePath returns the path of a recipients file such as
// ".gpg-id" at the store root.
func (s *Store) RecipientsFilePath(name string) string {
	return filepath.Join(s.root, name)
}

// PublicKeysDir returns the directory holding exported public keys.
func (s *Store) PublicKeysDir() string {
	return filepath.Join(s.root, PublicKeysDirName)
}

// Secret is one entry of the store. It is a plain value: it carries no
// reference to the Store that produced it.
type Secret struct {
	// Name is the path relative to the store root without the suffix,
	// or "?" when the file is not inside the store.
	Name string

	// Path is the absolute file path, ending in the store suffix.
	Path string
}

// SecretAt builds a Secret for an absolute path, deriving its name
// from the store root.
func (s *Store) SecretAt(path string) Secret {
	return Secret{Name: s.secretName(path), Path: path}
}

func (s *Store) secretName(path string) string {
	for _, root := range []string{s.root, s.canonicalRoot} {
		relative, err := filepath.Rel(root, path)
		if err != nil || relative == "." || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
			continue
		}
		return strings.TrimSuffix(relative, s.suffix)
	}
	return "?"
}

// ParseUmask parses an octal umask such as "077" or "0o027".
func ParseUmask(value string) (fs.FileMode, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0o")
	parsed, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid umask %q: must be octal", value)
	}
	if parsed > 0o777 {
		return 0, fmt.Errorf("invalid umask %q: must not exceed 0777", value)
	}
	return fs.FileMode(parsed), nil
}
