// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/secret"
	"github.com/bureau-foundation/passkeep/lib/store"
)

var (
	// ErrSerialization is returned when the side-file cannot be encoded
	// or decoded as JSON.
	ErrSerialization = errors.New("OTP file serialization failed")

	// ErrAccountNotFound is returned for operations on unknown names.
	ErrAccountNotFound = errors.New("OTP account not found")
)

// File is the decrypted OTP side-file of a store. It is not safe for
// concurrent use.
type File struct {
	path     string
	perm     os.FileMode
	crypto   crypto.Context
	accounts map[string]Account
}

// Open decrypts the store's OTP file. A missing file yields an empty
// File that is created on the first Save.
func Open(ctx context.Context, s *store.Store, c crypto.Context) (*File, error) {
	file := &File{
		path:     s.OTPFilePath(),
		perm:     s.FileMode(),
		crypto:   c,
		accounts: make(map[string]Account),
	}

	if _, err := os.Stat(file.path); errors.Is(err, os.ErrNotExist) {
		return file, nil
	}

	plaintext, err := crypto.DecryptFile(ctx, c, file.path)
	if err != nil {
		return nil, fmt.Errorf("decrypting OTP file: %w", err)
	}
	defer plaintext.Close()

	if plaintext.Len() == 0 {
		return file, nil
	}
	if err := json.Unmarshal(plaintext.UnsecureBytes(), &file.accounts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if file.accounts == nil {
		file.accounts = make(map[string]Account)
	}
	return file, nil
}

// Path returns the location of the encrypted file.
func (f *File) Path() string { return f.path }

// Get returns the account stored under name.
func (f *File) Get(name string) (Account, bool) {
	account, ok := f.accounts[name]
	return account, ok
}

// Add stores account under its name, replacing any previous account of
// the same name.
func (f *File) Add(account Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	f.accounts[account.Name] = account
	return nil
}

// Delete removes and returns the account stored under name.
func (f *File) Delete(name string) (Account, bool) {
	account, ok := f.accounts[name]
	if ok {
		delete(f.accounts, name)
	}
	return account, ok
}

// Names returns the account names in sorted order.
func (f *File) Names() []string {
	return slices.Sorted(maps.Keys(f.accounts))
}

// Accounts returns the accounts ordered by name.
func (f *File) Accounts() []Account {
	accounts := make([]Account, 0, len(f.accounts))
	for _, name := range f.Names() {
		accounts = append(accounts, f.accounts[name])
	}
	return accounts
}

// Len returns the number of accounts.
func (f *File) Len() int { return len(f.accounts) }

// IncrementCounter advances the counter of an HOTP account and returns
// the updated account. The change is in memory until Save.
func (f *File) IncrementCounter(name string) (Account, error) {
	account, ok := f.accounts[name]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	if account.TOTP || account.Counter == nil {
		return Account{}, fmt.Errorf("%w %q: not counter-based", ErrInvalidAccount, name)
	}
	counter := *account.Counter + 1
	account.Counter = &counter
	f.accounts[name] = account
	return account, nil
}

// Save encrypts the whole document for recipients and atomically
// replaces the file on disk.
func (f *File) Save(ctx context.Context, recipients []crypto.Key) error {
	data, err := json.MarshalIndent(f.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	plaintext, err := secret.NewPlaintext(data)
	if err != nil {
		return fmt.Errorf("protecting OTP file: %w", err)
	}
	defer plaintext.Close()

	if err := crypto.EncryptFile(ctx, f.crypto, recipients, plaintext, f.path, f.perm); err != nil {
		return fmt.Errorf("encrypting OTP file: %w", err)
	}
	return nil
}

// Close drops the decrypted accounts from memory.
func (f *File) Close() error {
	clear(f.accounts)
	return nil
}
