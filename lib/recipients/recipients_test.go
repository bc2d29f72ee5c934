// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recipients

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/crypto/agecrypt"
	"github.com/bureau-foundation/passkeep/lib/secret"
	"github.com/bureau-foundation/passkeep/lib/store"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *store.Store
	context *agecrypt.Context
	own     crypto.Key
	keyring string
}

// newFixture opens an age store in a temp dir with one local identity
// and an empty keyring file.
func newFixture(t *testing.T) fixture {
	t.Helper()
	home := t.TempDir()

	identityPath := filepath.Join(home, "identity.txt")
	own, err := agecrypt.GenerateIdentity(identityPath, testTime)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	keyring := filepath.Join(home, "recipients.txt")

	c, err := agecrypt.New(agecrypt.Config{IdentityFiles: []string{identityPath}, KeyringFile: keyring})
	if err != nil {
		t.Fatalf("agecrypt.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	root := filepath.Join(home, "store")
	if err := os.Mkdir(root, 0o700); err != nil {
		t.Fatalf("creating store: %v", err)
	}
	s, err := store.OpenWithOptions(root, store.Options{Suffix: crypto.ProtoAge.SecretSuffix(), Umask: store.DefaultUmask})
	if err != nil {
		t.Fatalf("OpenWithOptions: %v", err)
	}
	return fixture{store: s, context: c, own: own, keyring: keyring}
}

// foreignKey generates an identity that the fixture's context does not
// hold and returns its public key.
func foreignKey(t *testing.T, name string) crypto.Key {
	t.Helper()
	key, err := agecrypt.GenerateIdentity(filepath.Join(t.TempDir(), name+".txt"), testTime)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	return key
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	f := newFixture(t)
	r, err := Load(context.Background(), f.store, f.context, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	if r.Proto() != crypto.ProtoAge {
		t.Errorf("Proto = %v, want age", r.Proto())
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := foreignKey(t, "bob")
	other.UserIDs = []string{"bob@example.com"}

	r := New(crypto.ProtoAge, nil)
	r.Add(f.own)
	r.Add(other)
	if err := r.Save(f.store); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(f.store.Root(), ".age-recipients"))
	if err != nil {
		t.Fatalf("reading recipients file: %v", err)
	}
	if !strings.Contains(string(data), "# bob@example.com\n"+other.Fingerprint+"\n") {
		t.Errorf("recipients file missing commented entry:\n%s", data)
	}

	loaded, err := Load(ctx, f.store, f.context, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := loaded.Fingerprints(), []string{f.own.Fingerprint, other.Fingerprint}; !slices.Equal(got, want) {
		t.Errorf("Fingerprints = %v, want %v", got, want)
	}
	keys := loaded.Keys()
	if got := keys[1].DisplayUserIDs(); got != "bob@example.com" {
		t.Errorf("unresolved key user IDs = %q, want comment", got)
	}
}

func TestLoad_SkipsCommentsAndBlankLines(t *testing.T) {
	f := newFixture(t)
	content := "# team\n\n" + f.own.Fingerprint + "\n\n   \n# trailing comment\n"
	path := filepath.Join(f.store.Root(), ".age-recipients")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing recipients file: %v", err)
	}

	r, err := Load(context.Background(), f.store, f.context, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Len() != 1 || !r.Has(f.own) {
		t.Fatalf("recipients = %v, want only own key", r.Fingerprints())
	}
}

func TestAddRemove(t *testing.T) {
	first := crypto.NewKey(crypto.ProtoGPG, "0xabcdef0123456789")
	second := crypto.NewKey(crypto.ProtoGPG, "1111222233334444")

	r := New(crypto.ProtoGPG, nil)
	if !r.Add(first) {
		t.Fatal("first Add reported no change")
	}
	if r.Add(crypto.NewKey(crypto.ProtoGPG, "ABCDEF0123456789")) {
		t.Error("Add of an equal key reported a change")
	}
	r.Add(second)
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	if !r.Remove(first) {
		t.Error("Remove of a present key reported no change")
	}
	if r.Remove(first) {
		t.Error("second Remove reported a change")
	}
	if r.Has(first) || !r.Has(second) {
		t.Errorf("Fingerprints after remove = %v", r.Fingerprints())
	}
}

func TestKeysReturnsCopy(t *testing.T) {
	r := New(crypto.ProtoGPG, nil)
	r.Add(crypto.NewKey(crypto.ProtoGPG, "ABCDEF0123456789"))
	keys := r.Keys()
	keys[0].Fingerprint = "changed"
	if r.Fingerprints()[0] != "ABCDEF0123456789" {
		t.Error("mutating Keys result changed the set")
	}
}

func TestContainsOwnSecretKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := New(crypto.ProtoAge, nil)
	r.Add(foreignKey(t, "bob"))
	own, err := r.ContainsOwnSecretKey(ctx, f.context)
	if err != nil {
		t.Fatalf("ContainsOwnSecretKey: %v", err)
	}
	if own {
		t.Error("ContainsOwnSecretKey = true without own key")
	}

	r.Add(f.own)
	own, err = r.ContainsOwnSecretKey(ctx, f.context)
	if err != nil {
		t.Fatalf("ContainsOwnSecretKey: %v", err)
	}
	if !own {
		t.Error("ContainsOwnSecretKey = false with own key")
	}
}

func TestSyncPublicKeyFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := foreignKey(t, "bob")

	r := New(crypto.ProtoAge, nil)
	r.Add(f.own)
	r.Add(bob)
	if err := r.SyncPublicKeyFiles(ctx, f.store, f.context); err != nil {
		t.Fatalf("SyncPublicKeyFiles: %v", err)
	}

	directory := f.store.PublicKeysDir()
	for _, key := range []crypto.Key{f.own, bob} {
		data, err := os.ReadFile(filepath.Join(directory, key.FileName()))
		if err != nil {
			t.Fatalf("public key file of %s: %v", key.Fingerprint, err)
		}
		if !bytes.Contains(data, []byte(key.Fingerprint)) {
			t.Errorf("public key file of %s does not contain the key", key.Fingerprint)
		}
		if bytes.Contains(bytes.ToUpper(data), []byte("AGE-SECRET-KEY-")) {
			t.Errorf("public key file of %s contains private key material", key.Fingerprint)
		}
	}

	r.Remove(bob)
	if err := r.SyncPublicKeyFiles(ctx, f.store, f.context); err != nil {
		t.Fatalf("second SyncPublicKeyFiles: %v", err)
	}
	if _, err := os.Stat(filepath.Join(directory, bob.FileName())); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale public key file not removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(directory, f.own.FileName())); err != nil {
		t.Errorf("current public key file removed: %v", err)
	}
}

// leakyContext exports private key material for every key.
type leakyContext struct {
	*agecrypt.Context
}

func (leakyContext) ExportKey(ctx context.Context, key crypto.Key) ([]byte, error) {
	return []byte("AGE-SECRET-KEY-1QQQQ\n"), nil
}

func TestSyncPublicKeyFiles_RefusesPrivateMaterial(t *testing.T) {
	f := newFixture(t)
	err := SyncPublicKeyFiles(context.Background(), f.store, leakyContext{f.context}, []crypto.Key{f.own}, nil)
	if !errors.Is(err, ErrPrivateKeyMaterial) {
		t.Fatalf("SyncPublicKeyFiles error = %v, want ErrPrivateKeyMaterial", err)
	}
	if _, err := os.Stat(filepath.Join(f.store.PublicKeysDir(), f.own.FileName())); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("private material written to store: %v", err)
	}
}

func TestImportMissingKeysFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := foreignKey(t, "bob")
	carol := foreignKey(t, "carol")

	// bob's key is published in the store, carol's is not.
	if err := SyncPublicKeyFiles(ctx, f.store, f.context, []crypto.Key{bob}, nil); err != nil {
		t.Fatalf("SyncPublicKeyFiles: %v", err)
	}

	r := New(crypto.ProtoAge, nil)
	r.Add(f.own)
	r.Add(bob)
	r.Add(carol)

	results, err := r.ImportMissingKeysFromStore(ctx, f.store, f.context)
	if err != nil {
		t.Fatalf("ImportMissingKeysFromStore: %v", err)
	}
	want := []ImportResult{
		{Fingerprint: bob.Fingerprint, Status: Imported},
		{Fingerprint: carol.Fingerprint, Status: Unavailable},
	}
	if !slices.Equal(results, want) {
		t.Fatalf("results = %v, want %v", results, want)
	}

	public, err := f.context.KeysPublic(ctx)
	if err != nil {
		t.Fatalf("KeysPublic: %v", err)
	}
	if !crypto.ContainsKey(public, bob) {
		t.Error("imported key missing from key-ring")
	}

	results, err = r.ImportMissingKeysFromStore(ctx, f.store, f.context)
	if err != nil {
		t.Fatalf("second ImportMissingKeysFromStore: %v", err)
	}
	if len(results) != 1 || results[0].Status != Unavailable {
		t.Errorf("second import results = %v, want only carol unavailable", results)
	}
}

func TestCanDecryptStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ok, err := CanDecryptStore(ctx, f.store, f.context)
	if err != nil || !ok {
		t.Fatalf("empty store: CanDecryptStore = %v, %v; want true", ok, err)
	}

	value, err := secret.PlaintextFromString("hunter2")
	if err != nil {
		t.Fatalf("PlaintextFromString: %v", err)
	}
	defer value.Close()
	path := filepath.Join(f.store.Root(), "web", "mail.age")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := crypto.EncryptFile(ctx, f.context, []crypto.Key{foreignKey(t, "bob")}, value, path, 0o600); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	ok, err = CanDecryptStore(ctx, f.store, f.context)
	if err != nil {
		t.Fatalf("CanDecryptStore: %v", err)
	}
	if ok {
		t.Error("CanDecryptStore = true for a secret encrypted to someone else")
	}
}

func TestImportStatusString(t *testing.T) {
	if Imported.String() != "imported" || Unavailable.String() != "unavailable" {
		t.Errorf("String = %q, %q", Imported, Unavailable)
	}
}
