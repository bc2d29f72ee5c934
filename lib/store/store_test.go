// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestStore opens a store on a fresh temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

// writeSecret creates an (unencrypted) placeholder file for name.
func writeSecret(t *testing.T, store *Store, name string) string {
	t.Helper()
	path := filepath.Join(store.Root(), name+store.Suffix())
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("creating directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte("ciphertext"), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestOpen(t *testing.T) {
	directory := t.TempDir()

	store, err := Open(directory)
	if err != nil {
		t.Fatalf("Open(%q): %v", directory, err)
	}
	if store.Root() != directory {
		t.Errorf("Root() = %q, want %q", store.Root(), directory)
	}
	if store.Suffix() != ".gpg" {
		t.Errorf("Suffix() = %q, want .gpg", store.Suffix())
	}
}

func TestOpen_ExpandsEnvironment(t *testing.T) {
	directory := t.TempDir()
	t.Setenv("PASSKEEP_TEST_STORE", directory)

	for _, root := range []string{"$PASSKEEP_TEST_STORE", "${PASSKEEP_TEST_STORE}", "${PASSKEEP_TEST_UNSET:-" + directory + "}"} {
		store, err := Open(root)
		if err != nil {
			t.Fatalf("Open(%q): %v", root, err)
		}
		if store.Root() != directory {
			t.Errorf("Open(%q).Root() = %q, want %q", root, store.Root(), directory)
		}
	}
}

func TestOpen_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.Mkdir(filepath.Join(home, ".password-store"), 0o700); err != nil {
		t.Fatalf("creating store: %v", err)
	}

	store, err := Open("~/.password-store")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if want := filepath.Join(home, ".password-store"); store.Root() != want {
		t.Errorf("Root() = %q, want %q", store.Root(), want)
	}
}

func TestOpen_Errors(t *testing.T) {
	directory := t.TempDir()
	file := filepath.Join(directory, "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	tests := []struct {
		name string
		root string
		want error
	}{
		{"missing", filepath.Join(directory, "missing"), ErrNotADirectory},
		{"regular file", file, ErrNotADirectory},
		{"undefined variable", "$PASSKEEP_TEST_DEFINITELY_UNSET/store", ErrExpandFailed},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Open(test.root)
			if !errors.Is(err, test.want) {
				t.Errorf("Open(%q) error = %v, want %v", test.root, err, test.want)
			}
		})
	}
}

func TestModes(t *testing.T) {
	store, err := OpenWithOptions(t.TempDir(), Options{Suffix: ".age", Umask: 0o027})
	if err != nil {
		t.Fatalf("OpenWithOptions: %v", err)
	}
	if store.FileMode() != 0o640 {
		t.Errorf("FileMode() = %o, want 640", store.FileMode())
	}
	if store.DirMode() != 0o750 {
		t.Errorf("DirMode() = %o, want 750", store.DirMode())
	}
	if store.Suffix() != ".age" {
		t.Errorf("Suffix() = %q, want .age", store.Suffix())
	}
}

func TestParseUmask(t *testing.T) {
	tests := []struct {
		input   string
		want    os.FileMode
		wantErr bool
	}{
		{"077", 0o077, false},
		{"0o027", 0o027, false},
		{" 22 ", 0o022, false},
		{"0", 0, false},
		{"999", 0, true},
		{"1777", 0, true},
		{"", 0, true},
	}

	for _, test := range tests {
		got, err := ParseUmask(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseUmask(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("ParseUmask(%q) = %o, want %o", test.input, got, test.want)
		}
	}
}

func TestSecretName(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(store.Root(), "mail.gpg"), "mail"},
		{filepath.Join(store.Root(), "work", "mail.gpg"), filepath.Join("work", "mail")},
		{"/elsewhere/secret.gpg", "?"},
	}

	for _, test := range tests {
		if got := store.SecretAt(test.path).Name; got != test.want {
			t.Errorf("SecretAt(%q).Name = %q, want %q", test.path, got, test.want)
		}
	}
}

func TestFilePaths(t *testing.T) {
	store := newTestStore(t)
	if got, want := store.OTPFilePath(), filepath.Join(store.Root(), ".otp-codes.json"); got != want {
		t.Errorf("OTPFilePath() = %q, want %q", got, want)
	}
	if got, want := store.RecipientsFilePath(".gpg-id"), filepath.Join(store.Root(), ".gpg-id"); got != want {
		t.Errorf("RecipientsFilePath() = %q, want %q", got, want)
	}
	if got, want := store.PublicKeysDir(), filepath.Join(store.Root(), ".public-keys"); got != want {
		t.Errorf("PublicKeysDir() = %q, want %q", got, want)
	}
}

func TestPruneEmptyDirs(t *testing.T) {
	store := newTestStore(t)
	kept := writeSecret(t, store, "work/email")
	removed := writeSecret(t, store, "work/servers/old/db")
	if err := os.Remove(removed); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	store.PruneEmptyDirs(removed)

	if _, err := os.Stat(filepath.Join(store.Root(), "work", "servers")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("empty work/servers survived: %v", err)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("sibling secret removed: %v", err)
	}
	if _, err := os.Stat(store.Root()); err != nil {
		t.Errorf("store root removed: %v", err)
	}

	// A secret directly below the root leaves the root alone even when
	// it is the last entry.
	if err := os.RemoveAll(filepath.Join(store.Root(), "work")); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	store.PruneEmptyDirs(filepath.Join(store.Root(), "gone"+store.Suffix()))
	if _, err := os.Stat(store.Root()); err != nil {
		t.Errorf("store root removed: %v", err)
	}
}
