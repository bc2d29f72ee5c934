// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/clock"
	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/crypto/agecrypt"
	"github.com/bureau-foundation/passkeep/lib/otp"
	"github.com/bureau-foundation/passkeep/lib/secret"
	"github.com/bureau-foundation/passkeep/lib/store"
	"github.com/bureau-foundation/passkeep/lib/sync"
	"github.com/bureau-foundation/passkeep/lib/testutil"
)

// rfcKey is the RFC 4226 test key "12345678901234567890" in base32.
const rfcKey = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	config   string
	root     string
	home     string
	identity string
	keyring  string
	own      crypto.Key
	clock    clock.Clock
}

// newFixture creates an age store holding work/email and
// personal/bank, encrypted for a freshly generated identity, and a
// configuration file pointing at both. Sync is disabled unless enabled
// is set.
func newFixture(t *testing.T, syncEnabled bool) fixture {
	t.Helper()
	t.Setenv("PASSWORD_STORE_DIR", "")
	t.Setenv("PASSWORD_STORE_UMASK", "")
	t.Setenv("PASSKEEP_CONFIG", "")
	home := t.TempDir()

	identity := filepath.Join(home, "identity.txt")
	own, err := agecrypt.GenerateIdentity(identity, testTime)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	keyring := filepath.Join(home, "keyring.txt")

	root := filepath.Join(home, "store")
	if err := os.Mkdir(root, 0o700); err != nil {
		t.Fatalf("creating store: %v", err)
	}
	recipientsFile := filepath.Join(root, crypto.ProtoAge.RecipientsFile())
	if err := os.WriteFile(recipientsFile, []byte(own.Fingerprint+"\n"), 0o600); err != nil {
		t.Fatalf("writing recipients: %v", err)
	}

	config := filepath.Join(home, "config.yaml")
	contents := fmt.Sprintf(`store:
  dir: %s
crypto:
  proto: age
  age:
    identities: [%s]
    keyring: %s
sync:
  enabled: %t
log:
  level: error
`, root, identity, keyring, syncEnabled)
	if err := os.WriteFile(config, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	f := fixture{
		config:   config,
		root:     root,
		home:     home,
		identity: identity,
		keyring:  keyring,
		own:      own,
		clock:    clock.Real(),
	}
	f.writeSecret(t, "work/email", "hunter2\nuser: alice\n")
	f.writeSecret(t, "personal/bank", "0000\n")
	return f
}

func (f fixture) writeSecret(t *testing.T, name, contents string) {
	t.Helper()
	c, err := agecrypt.New(agecrypt.Config{})
	if err != nil {
		t.Fatalf("agecrypt.New: %v", err)
	}
	path := filepath.Join(f.root, name+crypto.ProtoAge.SecretSuffix())
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("creating secret directory: %v", err)
	}
	plaintext, err := secret.PlaintextFromString(contents)
	if err != nil {
		t.Fatalf("PlaintextFromString: %v", err)
	}
	defer plaintext.Close()
	if err := crypto.EncryptFile(context.Background(), c, []crypto.Key{f.own}, plaintext, path, 0o600); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}
}

// run executes passkeep with args against the fixture's configuration
// and returns what the command wrote to stdout.
func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buffer bytes.Buffer
	saved := cli.Stdout
	cli.Stdout = &buffer
	defer func() { cli.Stdout = saved }()

	err := Root(f.clock).Execute(context.Background(), append(args, "--config", f.config))
	return buffer.String(), err
}

func (f fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := f.run(t, args...)
	if err != nil {
		t.Fatalf("passkeep %s: %v", strings.Join(args, " "), err)
	}
	return output
}

// decrypt decrypts the secret name with only the identities in
// identityFiles.
func (f fixture) decrypt(t *testing.T, name string, identityFiles ...string) (string, error) {
	t.Helper()
	c, err := agecrypt.New(agecrypt.Config{IdentityFiles: identityFiles})
	if err != nil {
		t.Fatalf("agecrypt.New: %v", err)
	}
	defer c.Close()
	plaintext, err := crypto.DecryptFile(context.Background(), c, filepath.Join(f.root, name))
	if err != nil {
		return "", err
	}
	defer plaintext.Close()
	return string(plaintext.UnsecureBytes()), nil
}

// secondIdentity creates another age identity and lists its recipient
// in the fixture's key-ring, as if its public key had been imported.
func (f fixture) secondIdentity(t *testing.T) (string, crypto.Key) {
	t.Helper()
	path := filepath.Join(f.home, "second.txt")
	key, err := agecrypt.GenerateIdentity(path, testTime)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	if err := os.WriteFile(f.keyring, []byte(key.Fingerprint+"\n"), 0o600); err != nil {
		t.Fatalf("writing keyring: %v", err)
	}
	return path, key
}

func (f fixture) recipientsFile() string {
	return filepath.Join(f.root, crypto.ProtoAge.RecipientsFile())
}

// withStdin makes os.Stdin read contents for the rest of the test.
func withStdin(t *testing.T, contents string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing stdin file: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening stdin file: %v", err)
	}
	saved := os.Stdin
	os.Stdin = file
	t.Cleanup(func() {
		os.Stdin = saved
		file.Close()
	})
}

func TestList(t *testing.T) {
	f := newFixture(t, false)

	if got, want := f.mustRun(t, "list"), "personal/bank\nwork/email\n"; got != want {
		t.Errorf("list = %q, want %q", got, want)
	}
	if got, want := f.mustRun(t, "list", "MAIL"), "work/email\n"; got != want {
		t.Errorf("list MAIL = %q, want %q", got, want)
	}
	if got, want := f.mustRun(t, "list", "--glob", "work/**"), "work/email\n"; got != want {
		t.Errorf("list --glob = %q, want %q", got, want)
	}

	var entries []secretEntry
	if err := json.Unmarshal([]byte(f.mustRun(t, "list", "--json", "bank")), &entries); err != nil {
		t.Fatalf("decoding list --json: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "personal/bank" || !strings.HasSuffix(entries[0].Path, "bank.age") {
		t.Errorf("list --json = %+v", entries)
	}
}

func TestShow(t *testing.T) {
	f := newFixture(t, false)

	if got, want := f.mustRun(t, "show", "work/email"), "hunter2\nuser: alice\n"; got != want {
		t.Errorf("show = %q, want %q", got, want)
	}
	if got, want := f.mustRun(t, "show", "--first-line", "work/email"), "hunter2\n"; got != want {
		t.Errorf("show --first-line = %q, want %q", got, want)
	}
	if got, want := f.mustRun(t, "show", "bank"), "0000\n"; got != want {
		t.Errorf("show by substring = %q, want %q", got, want)
	}
}

func TestShow_AmbiguousAndMissing(t *testing.T) {
	f := newFixture(t, false)

	output, err := f.run(t, "show", "a")
	if !errors.Is(err, errAmbiguousName) {
		t.Fatalf("show a: err = %v, want errAmbiguousName", err)
	}
	if output != "personal/bank\nwork/email\n" {
		t.Errorf("candidates = %q", output)
	}

	if _, err := f.run(t, "show", "nothing-like-this"); !errors.Is(err, errNoMatch) {
		t.Errorf("show missing: err = %v, want errNoMatch", err)
	}
	if _, err := f.run(t, "show"); err == nil {
		t.Error("show without a name succeeded")
	}
}

func TestAlias(t *testing.T) {
	f := newFixture(t, false)

	f.mustRun(t, "alias", "work/email", "mail")
	link, err := os.Readlink(filepath.Join(f.root, "mail.age"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if link != filepath.Join("work", "email.age") {
		t.Errorf("alias link = %q, want relative work/email.age", link)
	}

	if got, want := f.mustRun(t, "show", "mail"), "hunter2\nuser: alice\n"; got != want {
		t.Errorf("show through alias = %q, want %q", got, want)
	}
	if got, want := f.mustRun(t, "alias", "mail"), "mail -> work/email\n"; got != want {
		t.Errorf("alias chain = %q, want %q", got, want)
	}

	var chain aliasChain
	if err := json.Unmarshal([]byte(f.mustRun(t, "alias", "--json", "mail")), &chain); err != nil {
		t.Fatalf("decoding alias --json: %v", err)
	}
	if chain.Final != "work/email" || len(chain.Chain) != 1 {
		t.Errorf("alias --json = %+v", chain)
	}

	if _, err := f.run(t, "alias", "work/email", "mail"); err == nil {
		t.Error("creating an existing alias succeeded")
	}
	if _, err := f.run(t, "alias", "work/email", "../outside"); !errors.Is(err, store.ErrSneakyPath) {
		t.Errorf("alias outside the store: err = %v, want ErrSneakyPath", err)
	}
}

func TestRecipientsList(t *testing.T) {
	f := newFixture(t, false)

	var entries []recipientEntry
	if err := json.Unmarshal([]byte(f.mustRun(t, "recipients", "list", "--json")), &entries); err != nil {
		t.Fatalf("decoding recipients list --json: %v", err)
	}
	if len(entries) != 1 || entries[0].Fingerprint != f.own.Fingerprint || !entries[0].Own {
		t.Errorf("recipients list = %+v, want own key %s", entries, f.own.Fingerprint)
	}
}

func TestRecipientsSyncKeys(t *testing.T) {
	f := newFixture(t, false)

	f.mustRun(t, "recipients", "sync-keys")
	exported := filepath.Join(f.root, store.PublicKeysDirName, f.own.FileName())
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("reading exported key: %v", err)
	}
	if !strings.Contains(string(data), f.own.Fingerprint) {
		t.Errorf("exported key = %q, want %s", data, f.own.Fingerprint)
	}
}

func TestOTP_TOTP(t *testing.T) {
	f := newFixture(t, false)
	f.clock = clock.Fake(time.Unix(59, 0))

	f.mustRun(t, "otp", "add", "rfc", "--key", rfcKey, "--digits", "8", "--path", "work/email")
	if got, want := f.mustRun(t, "otp", "view", "rfc"), "94287082\n"; got != want {
		t.Errorf("otp view = %q, want %q", got, want)
	}

	var entries []otpEntry
	if err := json.Unmarshal([]byte(f.mustRun(t, "otp", "list", "--json")), &entries); err != nil {
		t.Fatalf("decoding otp list --json: %v", err)
	}
	want := otpEntry{Name: "rfc", Type: "totp", Path: "work/email", Digits: 8}
	if len(entries) != 1 || entries[0] != want {
		t.Errorf("otp list = %+v, want [%+v]", entries, want)
	}

	if _, err := f.run(t, "otp", "add", "rfc", "--key", rfcKey); err == nil {
		t.Error("adding an existing account without --force succeeded")
	}
	f.mustRun(t, "otp", "add", "rfc", "--key", rfcKey, "--force")
	if got, want := f.mustRun(t, "otp", "view", "rfc"), "287082\n"; got != want {
		t.Errorf("otp view after replace = %q, want %q", got, want)
	}
}

func TestOTP_HOTPAdvancesCounter(t *testing.T) {
	f := newFixture(t, false)

	f.mustRun(t, "otp", "add", "counter", "--key", rfcKey, "--hotp")
	for _, want := range []string{"755224\n", "287082\n", "359152\n"} {
		if got := f.mustRun(t, "otp", "view", "counter"); got != want {
			t.Fatalf("otp view = %q, want %q", got, want)
		}
	}
}

func TestOTP_AddFromURI(t *testing.T) {
	f := newFixture(t, false)
	f.clock = clock.Fake(time.Unix(1111111109, 0))

	uri := "otpauth://totp/Example:alice@example.com?secret=" + rfcKey + "&issuer=Example&digits=8"
	f.mustRun(t, "otp", "add", "example", "--uri", uri)
	if got, want := f.mustRun(t, "otp", "view", "example"), "07081804\n"; got != want {
		t.Errorf("otp view = %q, want %q", got, want)
	}
}

func TestOTP_AddRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name string
		args []string
	}{
		{"no key", []string{"otp", "add", "x"}},
		{"key and uri", []string{"otp", "add", "x", "--key", rfcKey, "--uri", "otpauth://totp/x?secret=" + rfcKey}},
		{"bad key", []string{"otp", "add", "x", "--key", "not base32!"}},
		{"too many digits", []string{"otp", "add", "x", "--key", rfcKey, "--digits", "10"}},
		{"bad uri", []string{"otp", "add", "x", "--uri", "https://example.com"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := f.run(t, test.args...); err == nil {
				t.Errorf("passkeep %v succeeded", test.args)
			}
		})
	}
	if _, err := os.Stat(filepath.Join(f.root, store.OTPFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("rejected input created the OTP file: %v", err)
	}
}

func TestOTP_Remove(t *testing.T) {
	f := newFixture(t, false)

	f.mustRun(t, "otp", "add", "gone", "--key", rfcKey)
	f.mustRun(t, "otp", "remove", "gone")
	if _, err := f.run(t, "otp", "view", "gone"); !errors.Is(err, otp.ErrAccountNotFound) {
		t.Errorf("view after remove: err = %v, want ErrAccountNotFound", err)
	}
	if _, err := f.run(t, "otp", "remove", "gone"); !errors.Is(err, otp.ErrAccountNotFound) {
		t.Errorf("second remove: err = %v, want ErrAccountNotFound", err)
	}
}

// notifyWriter signals every write on writes.
type notifyWriter struct {
	bytes.Buffer
	writes chan struct{}
}

func (w *notifyWriter) Write(data []byte) (int, error) {
	n, err := w.Buffer.Write(data)
	w.writes <- struct{}{}
	return n, err
}

func TestOTP_WatchRedrawsUntilCancelled(t *testing.T) {
	f := newFixture(t, false)
	fake := clock.Fake(time.Unix(59, 0))
	f.clock = fake
	f.mustRun(t, "otp", "add", "rfc", "--key", rfcKey, "--digits", "8")

	writer := &notifyWriter{writes: make(chan struct{}, 16)}
	saved := cli.Stdout
	cli.Stdout = writer
	defer func() { cli.Stdout = saved }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Root(fake).Execute(ctx, []string{"otp", "view", "rfc", "--watch", "--config", f.config})
	}()

	<-writer.writes
	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	<-writer.writes
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("otp view --watch: %v", err)
	}

	output := writer.String()
	if !strings.Contains(output, "94287082") || !strings.Contains(output, "37359152") {
		t.Errorf("watch output = %q, want codes before and after the period boundary", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("watch output = %q, want a final newline", output)
	}
}

func TestSyncStatus_NoRepository(t *testing.T) {
	f := newFixture(t, true)

	if got, want := f.mustRun(t, "sync", "status"), "no-sync\n"; got != want {
		t.Errorf("sync status = %q, want %q", got, want)
	}
}

func TestSync_InitAndCommit(t *testing.T) {
	testutil.GitIdentity(t)
	testutil.RequireTool(t, "git")
	f := newFixture(t, true)

	f.mustRun(t, "sync", "init")
	if got, want := f.mustRun(t, "sync", "status"), "ready\n"; got != want {
		t.Errorf("sync status after init = %q, want %q", got, want)
	}
	if _, err := f.run(t, "sync", "init"); !errors.Is(err, sync.ErrAlreadyInitialized) {
		t.Errorf("second init: err = %v, want ErrAlreadyInitialized", err)
	}

	f.mustRun(t, "otp", "add", "committed", "--key", rfcKey)
	log := testutil.RunGit(t, f.root, "log", "--format=%s")
	if !strings.Contains(log, "Add OTP account committed") {
		t.Errorf("git log = %q, want the OTP commit", log)
	}

	if err := os.WriteFile(filepath.Join(f.root, "stray"), []byte("x"), 0o600); err != nil {
		t.Fatalf("writing stray file: %v", err)
	}
	output, err := f.run(t, "sync", "status")
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != 1 {
		t.Fatalf("sync status on dirty store: err = %v, want exit code 1", err)
	}
	if output != "dirty\n" {
		t.Errorf("sync status = %q, want dirty", output)
	}

	if _, err := f.run(t, "otp", "add", "blocked", "--key", rfcKey); !errors.Is(err, sync.ErrDirty) {
		t.Errorf("otp add on dirty store: err = %v, want ErrDirty", err)
	}
	f.mustRun(t, "otp", "add", "allowed", "--key", rfcKey, "--allow-dirty")
}

func TestSyncInit_Remote(t *testing.T) {
	testutil.GitIdentity(t)
	testutil.RequireTool(t, "git")
	f := newFixture(t, true)
	remote := filepath.Join(f.home, "remote.git")

	f.mustRun(t, "sync", "init", "--remote", remote)
	var status syncStatus
	if err := json.Unmarshal([]byte(f.mustRun(t, "sync", "status", "--json")), &status); err != nil {
		t.Fatalf("decoding sync status --json: %v", err)
	}
	if status.Readiness != "ready" || status.Remote != remote {
		t.Errorf("sync status = %+v, want ready with remote %s", status, remote)
	}
}

func TestAgeGenerate(t *testing.T) {
	f := newFixture(t, false)
	f.clock = clock.Fake(testTime)
	path := filepath.Join(f.home, "new", "identity.txt")

	output := f.mustRun(t, "age", "generate", "--output", path)
	recipient := strings.TrimSpace(output)
	if !strings.HasPrefix(recipient, "age1") {
		t.Fatalf("age generate printed %q, want an age recipient", output)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading identity: %v", err)
	}
	if !strings.Contains(string(data), "# public key: "+recipient) {
		t.Errorf("identity file lacks its public key comment:\n%s", data)
	}

	if _, err := f.run(t, "age", "generate", "--output", path); err == nil {
		t.Error("age generate overwrote an existing identity")
	}
}

func TestVersion(t *testing.T) {
	var buffer bytes.Buffer
	saved := cli.Stdout
	cli.Stdout = &buffer
	defer func() { cli.Stdout = saved }()

	if err := Root(clock.Real()).Execute(context.Background(), []string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(buffer.String(), "passkeep ") {
		t.Errorf("version output = %q", buffer.String())
	}
}

func TestInsert(t *testing.T) {
	f := newFixture(t, false)
	source := filepath.Join(f.home, "secret.txt")
	if err := os.WriteFile(source, []byte("  s3cret\nurl: example.com\n\n"), 0o600); err != nil {
		t.Fatalf("writing source: %v", err)
	}

	f.mustRun(t, "insert", "--from", source, "web/example")
	if got, want := f.mustRun(t, "show", "web/example"), "s3cret\nurl: example.com\n"; got != want {
		t.Errorf("show after insert = %q, want %q", got, want)
	}
	if _, err := f.run(t, "insert", "--from", source, "web/example"); !errors.Is(err, errSecretExists) {
		t.Errorf("insert over an existing secret: err = %v, want errSecretExists", err)
	}

	withStdin(t, "replaced\n")
	f.mustRun(t, "insert", "--force", "web/example")
	if got, want := f.mustRun(t, "show", "web/example"), "replaced\n"; got != want {
		t.Errorf("show after insert --force = %q, want %q", got, want)
	}
}

func TestInsert_RejectsBadInput(t *testing.T) {
	f := newFixture(t, false)
	empty := filepath.Join(f.home, "empty.txt")
	if err := os.WriteFile(empty, []byte(" \n\t\n"), 0o600); err != nil {
		t.Fatalf("writing empty source: %v", err)
	}
	full := filepath.Join(f.home, "full.txt")
	if err := os.WriteFile(full, []byte("value"), 0o600); err != nil {
		t.Fatalf("writing source: %v", err)
	}

	if _, err := f.run(t, "insert", "--from", empty, "blank"); !errors.Is(err, secret.ErrEmptyInput) {
		t.Errorf("insert of whitespace: err = %v, want ErrEmptyInput", err)
	}
	if _, err := f.run(t, "insert", "--from", full, "../outside"); !errors.Is(err, store.ErrSneakyPath) {
		t.Errorf("insert outside the store: err = %v, want ErrSneakyPath", err)
	}
	if _, err := f.run(t, "insert", "--from", full, "work/"); !errors.Is(err, store.ErrTargetDirWithoutNameHint) {
		t.Errorf("insert into a directory: err = %v, want ErrTargetDirWithoutNameHint", err)
	}

	if err := os.WriteFile(f.recipientsFile(), nil, 0o600); err != nil {
		t.Fatalf("emptying recipients: %v", err)
	}
	if _, err := f.run(t, "insert", "--from", full, "orphan"); !errors.Is(err, errNoRecipients) {
		t.Errorf("insert without recipients: err = %v, want errNoRecipients", err)
	}
	if _, err := os.Stat(filepath.Join(f.root, "orphan.age")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("failed insert left a file behind: %v", err)
	}
}

func TestInsert_ForceWritesThroughAlias(t *testing.T) {
	f := newFixture(t, false)
	f.mustRun(t, "alias", "work/email", "mail")
	withStdin(t, "rotated\n")

	f.mustRun(t, "insert", "--force", "mail")

	info, err := os.Lstat(filepath.Join(f.root, "mail.age"))
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("alias replaced by a regular file: %v", err)
	}
	if got, want := f.mustRun(t, "show", "work/email"), "rotated\n"; got != want {
		t.Errorf("alias target = %q, want %q", got, want)
	}
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, false)

	output := f.mustRun(t, "generate", "--length", "16", "--show", "web/new")
	password := strings.TrimSuffix(output, "\n")
	if len(password) != 16 {
		t.Fatalf("generate --show printed %q, want 16 characters", output)
	}
	if got := f.mustRun(t, "show", "web/new"); got != output {
		t.Errorf("stored secret = %q, want %q", got, output)
	}

	if _, err := f.run(t, "generate", "web/new"); !errors.Is(err, errSecretExists) {
		t.Errorf("generate over an existing secret: err = %v, want errSecretExists", err)
	}
	if _, err := f.run(t, "generate", "--merge", "--force", "web/new"); err == nil {
		t.Error("generate accepted --merge with --force")
	}
	if _, err := f.run(t, "generate", "--length", "0", "web/zero"); err == nil {
		t.Error("generate accepted a zero length")
	}
}

func TestGenerate_MergeKeepsMetadata(t *testing.T) {
	f := newFixture(t, false)

	f.mustRun(t, "generate", "--merge", "work/email")
	got := f.mustRun(t, "show", "work/email")
	first, rest, _ := strings.Cut(got, "\n")
	if first == "hunter2" || len(first) != secret.DefaultPasswordLength {
		t.Errorf("first line after merge = %q, want a fresh %d character password", first, secret.DefaultPasswordLength)
	}
	if rest != "user: alice\n" {
		t.Errorf("metadata after merge = %q, want %q", rest, "user: alice\n")
	}
}

func TestGenerate_AppendsStdin(t *testing.T) {
	f := newFixture(t, false)
	withStdin(t, "user: bob\n")

	f.mustRun(t, "generate", "--stdin", "web/bob")
	got := f.mustRun(t, "show", "web/bob")
	if _, rest, _ := strings.Cut(got, "\n"); rest != "user: bob\n" {
		t.Errorf("show = %q, want the password followed by user: bob", got)
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t, false)
	f.mustRun(t, "alias", "work/email", "mail")

	f.mustRun(t, "remove", "mail")
	if _, err := os.Lstat(filepath.Join(f.root, "mail.age")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("alias still present: %v", err)
	}
	if got, want := f.mustRun(t, "show", "work/email"), "hunter2\nuser: alice\n"; got != want {
		t.Errorf("removing the alias changed its target: %q", got)
	}

	f.mustRun(t, "remove", "bank")
	if got, want := f.mustRun(t, "list"), "work/email\n"; got != want {
		t.Errorf("list after remove = %q, want %q", got, want)
	}
	if _, err := os.Stat(filepath.Join(f.root, "personal")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("empty personal/ not pruned: %v", err)
	}
	if _, err := f.run(t, "remove", "bank"); !errors.Is(err, errNoMatch) {
		t.Errorf("second remove: err = %v, want errNoMatch", err)
	}
}

func TestMove(t *testing.T) {
	f := newFixture(t, false)

	f.mustRun(t, "move", "personal/bank", "archive/")
	if got, want := f.mustRun(t, "list"), "archive/bank\nwork/email\n"; got != want {
		t.Errorf("list after move = %q, want %q", got, want)
	}
	if _, err := os.Stat(filepath.Join(f.root, "personal")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("empty personal/ not pruned: %v", err)
	}

	if _, err := f.run(t, "move", "archive/bank", "work/email"); !errors.Is(err, errSecretExists) {
		t.Errorf("move onto an existing secret: err = %v, want errSecretExists", err)
	}
	if _, err := f.run(t, "move", "archive/bank", "archive/bank"); !errors.Is(err, errSameSecret) {
		t.Errorf("move onto itself: err = %v, want errSameSecret", err)
	}
	if _, err := f.run(t, "move", "archive/bank", "../escape"); !errors.Is(err, store.ErrSneakyPath) {
		t.Errorf("move outside the store: err = %v, want ErrSneakyPath", err)
	}
}

func TestMove_AliasKeepsTarget(t *testing.T) {
	f := newFixture(t, false)
	f.mustRun(t, "alias", "work/email", "mail")

	f.mustRun(t, "move", "mail", "links/mail")
	link, err := os.Readlink(filepath.Join(f.root, "links", "mail.age"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if link != filepath.Join("..", "work", "email.age") {
		t.Errorf("moved alias links to %q, want ../work/email.age", link)
	}
	if got, want := f.mustRun(t, "show", "links/mail"), "hunter2\nuser: alice\n"; got != want {
		t.Errorf("show through moved alias = %q, want %q", got, want)
	}
}

func TestCopy(t *testing.T) {
	f := newFixture(t, false)
	f.mustRun(t, "alias", "work/email", "mail")

	f.mustRun(t, "copy", "mail", "backup/mail")
	info, err := os.Lstat(filepath.Join(f.root, "backup", "mail.age"))
	if err != nil || !info.Mode().IsRegular() {
		t.Fatalf("copy of an alias is not a regular file: %v", err)
	}
	if got, want := f.mustRun(t, "show", "backup/mail"), "hunter2\nuser: alice\n"; got != want {
		t.Errorf("show copy = %q, want %q", got, want)
	}
	if got, want := f.mustRun(t, "show", "work/email"), "hunter2\nuser: alice\n"; got != want {
		t.Errorf("copy changed the source: %q", got)
	}
}

func TestRecrypt(t *testing.T) {
	f := newFixture(t, false)
	second, key := f.secondIdentity(t)
	f.mustRun(t, "otp", "add", "rfc", "--key", rfcKey)

	recipients := f.own.Fingerprint + "\n" + key.Fingerprint + "\n"
	if err := os.WriteFile(f.recipientsFile(), []byte(recipients), 0o600); err != nil {
		t.Fatalf("writing recipients: %v", err)
	}

	if got, want := f.mustRun(t, "recrypt", "--glob", "work/**"), "re-encrypted 1 secrets\n"; got != want {
		t.Errorf("recrypt --glob = %q, want %q", got, want)
	}
	if _, err := f.decrypt(t, "work/email.age", second); err != nil {
		t.Errorf("second identity cannot read a re-encrypted secret: %v", err)
	}
	if _, err := f.decrypt(t, "personal/bank.age", second); err == nil {
		t.Error("second identity reads a secret outside the glob")
	}

	f.mustRun(t, "recrypt", "--all")
	for _, name := range []string{"personal/bank.age", store.OTPFileName} {
		if _, err := f.decrypt(t, name, second); err != nil {
			t.Errorf("second identity cannot read %s after recrypt --all: %v", name, err)
		}
	}

	for _, args := range [][]string{
		{"recrypt"},
		{"recrypt", "--all", "work/email"},
		{"recrypt", "--glob", "work/**", "--all"},
	} {
		if _, err := f.run(t, args...); err == nil {
			t.Errorf("passkeep %v succeeded", args)
		}
	}
}

func TestRecrypt_AliasQuerySelectsTarget(t *testing.T) {
	f := newFixture(t, false)
	second, key := f.secondIdentity(t)
	f.mustRun(t, "alias", "work/email", "mail")
	recipients := f.own.Fingerprint + "\n" + key.Fingerprint + "\n"
	if err := os.WriteFile(f.recipientsFile(), []byte(recipients), 0o600); err != nil {
		t.Fatalf("writing recipients: %v", err)
	}

	f.mustRun(t, "recrypt", "mail")
	info, err := os.Lstat(filepath.Join(f.root, "mail.age"))
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("recrypt replaced the alias: %v", err)
	}
	if _, err := f.decrypt(t, "work/email.age", second); err != nil {
		t.Errorf("alias target not re-encrypted: %v", err)
	}
}

func TestRecipientsAddRemove(t *testing.T) {
	f := newFixture(t, false)
	second, key := f.secondIdentity(t)

	f.mustRun(t, "recipients", "add", key.Fingerprint)
	var entries []recipientEntry
	if err := json.Unmarshal([]byte(f.mustRun(t, "recipients", "list", "--json")), &entries); err != nil {
		t.Fatalf("decoding recipients list --json: %v", err)
	}
	if len(entries) != 2 || entries[1].Fingerprint != key.Fingerprint || entries[1].Own {
		t.Errorf("recipients after add = %+v", entries)
	}
	for _, name := range []string{"work/email.age", "personal/bank.age"} {
		if _, err := f.decrypt(t, name, second); err != nil {
			t.Errorf("new recipient cannot read %s: %v", name, err)
		}
	}
	exported := filepath.Join(f.root, store.PublicKeysDirName, key.FileName())
	if _, err := os.Stat(exported); err != nil {
		t.Errorf("new recipient's public key not exported: %v", err)
	}

	if _, err := f.run(t, "recipients", "remove", f.own.Fingerprint); !errors.Is(err, errLockout) {
		t.Errorf("removing the own key: err = %v, want errLockout", err)
	}

	f.mustRun(t, "recipients", "remove", key.Fingerprint)
	if _, err := f.decrypt(t, "work/email.age", second); err == nil {
		t.Error("removed recipient still reads re-encrypted secrets")
	}
	if _, err := os.Stat(exported); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("removed recipient's public key still exported: %v", err)
	}

	if _, err := f.run(t, "recipients", "remove", f.own.Fingerprint); !errors.Is(err, errLastRecipient) {
		t.Errorf("removing the last recipient: err = %v, want errLastRecipient", err)
	}
	if _, err := f.run(t, "recipients", "remove", key.Fingerprint); !errors.Is(err, errNotRecipient) {
		t.Errorf("removing a non-recipient: err = %v, want errNotRecipient", err)
	}
}

func TestRecipientsAdd_UnknownKey(t *testing.T) {
	f := newFixture(t, false)
	key, err := agecrypt.GenerateIdentity(filepath.Join(f.home, "stranger.txt"), testTime)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	if _, err := f.run(t, "recipients", "add", key.Fingerprint); !errors.Is(err, errUnknownKey) {
		t.Errorf("adding a key missing from the key-ring: err = %v, want errUnknownKey", err)
	}
}

func TestRecipientsAdd_NoRecrypt(t *testing.T) {
	f := newFixture(t, false)
	second, key := f.secondIdentity(t)

	f.mustRun(t, "recipients", "add", "--no-recrypt", key.Fingerprint)
	if _, err := f.decrypt(t, "work/email.age", second); err == nil {
		t.Error("--no-recrypt re-encrypted existing secrets")
	}
	f.mustRun(t, "insert", "--from", f.recipientsFile(), "fresh")
	if _, err := f.decrypt(t, "fresh.age", second); err != nil {
		t.Errorf("new secrets are not encrypted for the added recipient: %v", err)
	}
}

func TestRecipientsExport(t *testing.T) {
	f := newFixture(t, false)

	if got, want := f.mustRun(t, "recipients", "export", f.own.Fingerprint), f.own.Fingerprint+"\n"; !strings.HasSuffix(got, want) {
		t.Errorf("recipients export = %q, want it to end with %q", got, want)
	}

	output := filepath.Join(f.home, "exported", "key.txt")
	f.mustRun(t, "recipients", "export", "--output", output, f.own.Fingerprint)
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading exported key: %v", err)
	}
	if !strings.Contains(string(data), f.own.Fingerprint) {
		t.Errorf("exported file = %q", data)
	}

	if _, err := f.run(t, "recipients", "export", "age1unknown"); !errors.Is(err, errNotRecipient) {
		t.Errorf("export of a non-recipient: err = %v, want errNotRecipient", err)
	}
}

func TestGrep(t *testing.T) {
	f := newFixture(t, false)
	f.mustRun(t, "alias", "work/email", "mail")

	if got, want := f.mustRun(t, "grep", "alice"), "work/email:user: alice\n"; got != want {
		t.Errorf("grep = %q, want %q", got, want)
	}
	if got, want := f.mustRun(t, "grep", "-i", "^USER"), "work/email:user: alice\n"; got != want {
		t.Errorf("grep -i = %q, want %q", got, want)
	}
	if got, want := f.mustRun(t, "grep", "^[0-9]+$"), "personal/bank:0000\n"; got != want {
		t.Errorf("grep digits = %q, want %q", got, want)
	}

	output, err := f.run(t, "grep", "nothing-like-this")
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != 1 || output != "" {
		t.Errorf("grep without matches: output %q, err %v, want exit code 1", output, err)
	}
	if _, err := f.run(t, "grep", "("); err == nil {
		t.Error("grep accepted an invalid pattern")
	}
}

func TestOTP_AddResolvesPath(t *testing.T) {
	f := newFixture(t, false)

	f.mustRun(t, "otp", "add", "mail", "--key", rfcKey, "--path", "email")
	var entries []otpEntry
	if err := json.Unmarshal([]byte(f.mustRun(t, "otp", "list", "--json")), &entries); err != nil {
		t.Fatalf("decoding otp list --json: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "work/email" {
		t.Errorf("otp list = %+v, want path work/email", entries)
	}

	if _, err := f.run(t, "otp", "add", "shadow", "--key", rfcKey, "--path", "../../etc/shadow"); !errors.Is(err, store.ErrSneakyPath) {
		t.Errorf("--path with traversal: err = %v, want ErrSneakyPath", err)
	}
	if _, err := f.run(t, "otp", "add", "ghost", "--key", rfcKey, "--path", "nothing-like-this"); !errors.Is(err, errNoMatch) {
		t.Errorf("--path to a missing secret: err = %v, want errNoMatch", err)
	}
	if got, want := f.mustRun(t, "otp", "list"), "mail totp work/email\n"; got != want {
		t.Errorf("rejected accounts were stored: %q", got)
	}
}

func TestOTP_HOTPShowsNoCodeWhenSaveFails(t *testing.T) {
	f := newFixture(t, false)
	f.mustRun(t, "otp", "add", "counter", "--key", rfcKey, "--hotp")

	recipients, err := os.ReadFile(f.recipientsFile())
	if err != nil {
		t.Fatalf("reading recipients: %v", err)
	}
	if err := os.WriteFile(f.recipientsFile(), nil, 0o600); err != nil {
		t.Fatalf("emptying recipients: %v", err)
	}
	output, err := f.run(t, "otp", "view", "counter")
	if !errors.Is(err, errNoRecipients) {
		t.Fatalf("otp view without recipients: err = %v, want errNoRecipients", err)
	}
	if output != "" {
		t.Errorf("otp view printed %q although the counter was not saved", output)
	}

	if err := os.WriteFile(f.recipientsFile(), recipients, 0o600); err != nil {
		t.Fatalf("restoring recipients: %v", err)
	}
	if got, want := f.mustRun(t, "otp", "view", "counter"), "755224\n"; got != want {
		t.Errorf("otp view after restoring = %q, want the unused first code %q", got, want)
	}
}

func TestSync_MutationsCommit(t *testing.T) {
	testutil.GitIdentity(t)
	testutil.RequireTool(t, "git")
	f := newFixture(t, true)
	f.mustRun(t, "sync", "init")
	source := filepath.Join(f.home, "value.txt")
	if err := os.WriteFile(source, []byte("value"), 0o600); err != nil {
		t.Fatalf("writing source: %v", err)
	}

	f.mustRun(t, "insert", "--from", source, "web/site")
	f.mustRun(t, "move", "web/site", "web/renamed")
	f.mustRun(t, "remove", "web/renamed")

	log := testutil.RunGit(t, f.root, "log", "--format=%s")
	for _, message := range []string{"Insert secret web/site", "Move from web/site to web/renamed", "Remove secret web/renamed"} {
		if !strings.Contains(log, message) {
			t.Errorf("git log lacks %q:\n%s", message, log)
		}
	}
	if got, want := f.mustRun(t, "sync", "status"), "ready\n"; got != want {
		t.Errorf("sync status after mutations = %q, want %q", got, want)
	}
}
