// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package otp

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/crypto/agecrypt"
	"github.com/bureau-foundation/passkeep/lib/store"
)

type fileFixture struct {
	store   *store.Store
	context *agecrypt.Context
	key     crypto.Key
}

func newFileFixture(t *testing.T) fileFixture {
	t.Helper()
	home := t.TempDir()
	identity := filepath.Join(home, "identity.txt")
	key, err := agecrypt.GenerateIdentity(identity, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	c, err := agecrypt.New(agecrypt.Config{IdentityFiles: []string{identity}})
	if err != nil {
		t.Fatalf("agecrypt.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	root := filepath.Join(home, "store")
	if err := os.Mkdir(root, 0o700); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	s, err := store.OpenWithOptions(root, store.Options{Suffix: ".age", Umask: store.DefaultUmask})
	if err != nil {
		t.Fatalf("OpenWithOptions: %v", err)
	}
	return fileFixture{store: s, context: c, key: key}
}

func openFile(t *testing.T, f fileFixture) *File {
	t.Helper()
	file, err := Open(context.Background(), f.store, f.context)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file
}

func mustAccount(t *testing.T, params AccountParams) Account {
	t.Helper()
	account, err := NewAccount(params)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	return account
}

func TestFile_MissingIsEmpty(t *testing.T) {
	f := newFileFixture(t)
	file := openFile(t, f)
	if file.Len() != 0 || len(file.Names()) != 0 {
		t.Errorf("new file has accounts: %v", file.Names())
	}
	if _, err := os.Stat(file.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open created the file: %v", err)
	}
}

func TestFile_SaveOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)

	file := openFile(t, f)
	if err := file.Add(mustAccount(t, AccountParams{Name: "web/github", Path: "web/github", Key: testKey})); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := file.Add(mustAccount(t, AccountParams{Name: "bank", Path: "bank", Key: testKey, Type: TypeHOTP, Counter: 4})); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := file.Save(ctx, []crypto.Key{f.key}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(f.store.Root(), store.OTPFileName))
	if err != nil {
		t.Fatalf("reading OTP file: %v", err)
	}
	if bytes.Contains(data, []byte(testKey)) || bytes.Contains(data, []byte("github")) {
		t.Fatal("OTP file contains plaintext")
	}

	reopened := openFile(t, f)
	if got, want := reopened.Names(), []string{"bank", "web/github"}; !slices.Equal(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	bank, ok := reopened.Get("bank")
	if !ok || bank.TOTP || *bank.Counter != 4 {
		t.Errorf("bank = %+v, %v", bank, ok)
	}
	accounts := reopened.Accounts()
	if len(accounts) != 2 || accounts[0].Name != "bank" {
		t.Errorf("Accounts = %+v", accounts)
	}
}

func TestFile_AddOverwritesAndDelete(t *testing.T) {
	f := newFileFixture(t)
	file := openFile(t, f)

	file.Add(mustAccount(t, AccountParams{Name: "mail", Path: "old", Key: testKey}))
	file.Add(mustAccount(t, AccountParams{Name: "mail", Path: "new", Key: testKey}))
	if file.Len() != 1 {
		t.Fatalf("Len = %d, want 1", file.Len())
	}
	if account, _ := file.Get("mail"); account.Path != "new" {
		t.Errorf("Path = %q, want overwritten value", account.Path)
	}

	if err := file.Add(Account{Name: "broken", Key: "!!"}); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("Add of invalid account = %v, want ErrInvalidAccount", err)
	}

	if _, ok := file.Delete("mail"); !ok {
		t.Error("Delete of present account reported absent")
	}
	if _, ok := file.Delete("mail"); ok {
		t.Error("second Delete reported present")
	}
}

func TestFile_IncrementCounter(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)
	file := openFile(t, f)
	file.Add(mustAccount(t, AccountParams{Name: "bank", Key: testKey, Type: TypeHOTP}))
	file.Add(mustAccount(t, AccountParams{Name: "mail", Key: testKey}))

	account, err := file.IncrementCounter("bank")
	if err != nil {
		t.Fatalf("IncrementCounter: %v", err)
	}
	if *account.Counter != 1 {
		t.Errorf("counter = %d, want 1", *account.Counter)
	}
	code, err := account.Code(time.Time{})
	if err != nil || code != "287082" {
		t.Errorf("Code after increment = %s, %v; want 287082", code, err)
	}

	if _, err := file.IncrementCounter("mail"); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("IncrementCounter(TOTP) = %v, want ErrInvalidAccount", err)
	}
	if _, err := file.IncrementCounter("missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("IncrementCounter(missing) = %v, want ErrAccountNotFound", err)
	}

	if err := file.Save(ctx, []crypto.Key{f.key}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reopened := openFile(t, f)
	if bank, _ := reopened.Get("bank"); *bank.Counter != 1 {
		t.Errorf("persisted counter = %d, want 1", *bank.Counter)
	}
}

func TestFile_SaveWithoutRecipientsKeepsOldFile(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)
	file := openFile(t, f)
	file.Add(mustAccount(t, AccountParams{Name: "mail", Key: testKey}))
	if err := file.Save(ctx, []crypto.Key{f.key}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	before, err := os.ReadFile(file.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	file.Delete("mail")
	if err := file.Save(ctx, nil); !errors.Is(err, crypto.ErrNoRecipients) {
		t.Fatalf("Save without recipients = %v, want ErrNoRecipients", err)
	}
	after, err := os.ReadFile(file.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("failed Save modified the file")
	}
}

func TestFile_OpenCorrupt(t *testing.T) {
	ctx := context.Background()
	f := newFileFixture(t)
	if err := os.WriteFile(f.store.OTPFilePath(), []byte("not age data"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(ctx, f.store, f.context); !errors.Is(err, crypto.ErrMalformedCiphertext) {
		t.Errorf("Open = %v, want ErrMalformedCiphertext", err)
	}
}
