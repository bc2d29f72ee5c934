// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func secretNames(secrets []Secret) []string {
	names := make([]string, 0, len(secrets))
	for _, secret := range secrets {
		names = append(names, filepath.ToSlash(secret.Name))
	}
	return names
}

func TestSecrets_Walk(t *testing.T) {
	store := newTestStore(t)
	root := store.Root()

	writeSecret(t, store, "email")
	writeSecret(t, store, "work/gmail")
	writeSecret(t, store, "work/vpn")
	writeSecret(t, store, "personal/bank/checking")
	writeSecret(t, store, ".hidden/secret")
	writeSecret(t, store, "lost+found/recovered")
	writeSecret(t, store, ".dotfile")
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o600); err != nil {
		t.Fatalf("writing notes: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".gpg-id"), []byte("ABC\n"), 0o600); err != nil {
		t.Fatalf("writing .gpg-id: %v", err)
	}

	got := secretNames(slices.Collect(store.Secrets(DefaultIterConfig())))
	want := []string{"email", "personal/bank/checking", "work/gmail", "work/vpn"}
	if !slices.Equal(got, want) {
		t.Errorf("Secrets() = %v, want %v", got, want)
	}

	// A second range walks again.
	again := secretNames(slices.Collect(store.Secrets(DefaultIterConfig())))
	if !slices.Equal(again, want) {
		t.Errorf("second walk = %v, want %v", again, want)
	}
}

func TestSecrets_Symlinks(t *testing.T) {
	store := newTestStore(t)
	root := store.Root()

	writeSecret(t, store, "real")
	writeSecret(t, store, "shared/token")
	if err := os.Symlink("real.gpg", filepath.Join(root, "alias.gpg")); err != nil {
		t.Fatalf("creating alias: %v", err)
	}
	if err := os.Symlink("shared", filepath.Join(root, "linked")); err != nil {
		t.Fatalf("creating directory link: %v", err)
	}
	if err := os.Symlink("missing.gpg", filepath.Join(root, "dangling.gpg")); err != nil {
		t.Fatalf("creating dangling link: %v", err)
	}
	// A loop back to the root must not be walked forever.
	if err := os.Symlink("..", filepath.Join(root, "shared", "loop")); err != nil {
		t.Fatalf("creating loop: %v", err)
	}

	tests := []struct {
		name   string
		config IterConfig
		want   []string
	}{
		{"files and links", DefaultIterConfig(), []string{"alias", "linked/token", "real", "shared/token"}},
		{"files only", IterConfig{FindFiles: true}, []string{"linked/token", "real", "shared/token"}},
		{"links only", IterConfig{FindSymlinkFiles: true}, []string{"alias"}},
		{"nothing", IterConfig{}, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := secretNames(slices.Collect(store.Secrets(test.config)))
			if len(got) == 0 && len(test.want) == 0 {
				return
			}
			if !slices.Equal(got, test.want) {
				t.Errorf("Secrets(%+v) = %v, want %v", test.config, got, test.want)
			}
		})
	}
}

func TestSecrets_EarlyStop(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"a", "b/c", "d"} {
		writeSecret(t, store, name)
	}

	count := 0
	for range store.Secrets(DefaultIterConfig()) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("consumed %d secrets, want 2", count)
	}
}

func TestFilterSecrets(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"Mail/work", "bank", "gmail", "personal/hotmail", "vpn", "zz/MAILBOX"} {
		writeSecret(t, store, name)
	}

	all := secretNames(slices.Collect(store.Secrets(DefaultIterConfig())))
	var expected []string
	for _, name := range all {
		if strings.Contains(strings.ToLower(name), "mail") {
			expected = append(expected, name)
		}
	}

	got := secretNames(slices.Collect(FilterSecrets(store.Secrets(DefaultIterConfig()), "mail")))
	if !slices.Equal(got, expected) {
		t.Errorf("FilterSecrets(mail) = %v, want %v", got, expected)
	}
	if want := []string{"Mail/work", "gmail", "personal/hotmail", "zz/MAILBOX"}; !slices.Equal(got, want) {
		t.Errorf("FilterSecrets(mail) = %v, want %v", got, want)
	}

	unfiltered := secretNames(slices.Collect(FilterSecrets(store.Secrets(DefaultIterConfig()), "")))
	if !slices.Equal(unfiltered, all) {
		t.Errorf("empty filter = %v, want %v", unfiltered, all)
	}
}

func TestFind(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"mail", "mail-backup", "work/mail", "vpn"} {
		writeSecret(t, store, name)
	}

	match := store.Find("mail")
	if match.Exact == nil || match.Exact.Name != "mail" {
		t.Fatalf("Find(mail) = %+v, want exact mail", match)
	}

	match = store.Find("work/mail.gpg")
	if match.Exact == nil || filepath.ToSlash(match.Exact.Name) != "work/mail" {
		t.Fatalf("Find(work/mail.gpg) = %+v, want exact work/mail", match)
	}

	match = store.Find("MAI")
	if match.Exact != nil {
		t.Fatalf("Find(MAI) returned exact %+v", match.Exact)
	}
	if got, want := secretNames(match.Many), []string{"mail-backup", "mail", "work/mail"}; !slices.Equal(got, want) {
		t.Errorf("Find(MAI).Many = %v, want %v", got, want)
	}

	if got := store.Find("").Many; len(got) != 4 {
		t.Errorf("Find(\"\") returned %d secrets, want 4", len(got))
	}

	if _, ok := store.FindAt("../mail"); ok {
		t.Error("FindAt accepted a traversal path")
	}
	if _, ok := store.FindAt("work"); ok {
		t.Error("FindAt matched a directory")
	}
}

func TestGlob(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"email", "work/email", "work/servers/db", "home/wifi"} {
		writeSecret(t, store, name)
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"work/**", []string{"work/email", "work/servers/db"}},
		{"*/email", []string{"work/email"}},
		{"**/email", []string{"email", "work/email"}},
		{"*", []string{"email"}},
	}

	for _, test := range tests {
		got, err := store.Glob(test.pattern, DefaultIterConfig())
		if err != nil {
			t.Fatalf("Glob(%q): %v", test.pattern, err)
		}
		if names := secretNames(got); !slices.Equal(names, test.want) {
			t.Errorf("Glob(%q) = %v, want %v", test.pattern, names, test.want)
		}
	}

	if _, err := store.Glob("work/[unclosed", DefaultIterConfig()); err == nil {
		t.Error("Glob accepted an invalid pattern")
	}
}

func TestGlob_SkipsAliasesWhenAsked(t *testing.T) {
	store := newTestStore(t)
	writeSecret(t, store, "work/email")
	if err := os.Symlink("email"+store.Suffix(), filepath.Join(store.Root(), "work", "mail"+store.Suffix())); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	got, err := store.Glob("work/*", IterConfig{FindFiles: true})
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if names := secretNames(got); !slices.Equal(names, []string{"work/email"}) {
		t.Errorf("Glob without aliases = %v, want [work/email]", names)
	}
}
