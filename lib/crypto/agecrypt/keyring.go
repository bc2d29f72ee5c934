// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agecrypt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/agessh"
	"golang.org/x/crypto/ssh"

	"github.com/bureau-foundation/passkeep/lib/crypto"
)

// secretKeyPrefix starts every encoded age identity.
const secretKeyPrefix = "AGE-SECRET-KEY-"

// ErrPrivateKeyMaterial is returned when recipient data contains an age
// identity or SSH private key.
var ErrPrivateKeyMaterial = errors.New("refusing private key material where a public key is expected")

// ParseRecipient parses an X25519 recipient or an SSH public key line.
func ParseRecipient(recipient string) (age.Recipient, error) {
	recipient = strings.TrimSpace(recipient)
	if strings.HasPrefix(recipient, "ssh-") {
		parsed, err := agessh.ParseRecipient(recipient)
		if err != nil {
			return nil, fmt.Errorf("parsing SSH recipient: %w", err)
		}
		return parsed, nil
	}
	parsed, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return nil, fmt.Errorf("parsing age recipient %q: %w", recipient, err)
	}
	return parsed, nil
}

// ContainsPrivateKeyMaterial reports whether data holds an age identity
// or a PEM/OpenSSH private key block.
func ContainsPrivateKeyMaterial(data []byte) bool {
	upper := bytes.ToUpper(data)
	return bytes.Contains(upper, []byte(secretKeyPrefix)) ||
		bytes.Contains(upper, []byte("PRIVATE KEY-----"))
}

// ParseRecipientsFile parses recipients, one per line. Blank lines are
// ignored. A "#" comment directly above a recipient becomes its user
// ID; SSH keys also get their key comment and SHA256 fingerprint.
func ParseRecipientsFile(data []byte) ([]crypto.Key, error) {
	if ContainsPrivateKeyMaterial(data) {
		return nil, ErrPrivateKeyMaterial
	}

	var keys []crypto.Key
	var pendingComment string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			pendingComment = ""
			continue
		case strings.HasPrefix(line, "#"):
			pendingComment = strings.TrimSpace(strings.TrimPrefix(line, "#"))
			continue
		}

		if _, err := ParseRecipient(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		key := crypto.NewKey(crypto.ProtoAge, line, recipientUserIDs(line, pendingComment)...)
		if !crypto.ContainsKey(keys, key) {
			keys = append(keys, key)
		}
		pendingComment = ""
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// recipientUserIDs derives display identities for a recipient line.
func recipientUserIDs(recipient, comment string) []string {
	var userIDs []string
	if comment != "" {
		userIDs = append(userIDs, comment)
	}
	if !strings.HasPrefix(recipient, "ssh-") {
		return userIDs
	}
	publicKey, keyComment, _, _, err := ssh.ParseAuthorizedKey([]byte(recipient))
	if err != nil {
		return userIDs
	}
	if keyComment != "" && keyComment != comment {
		userIDs = append(userIDs, keyComment)
	}
	return append(userIDs, ssh.FingerprintSHA256(publicKey))
}

// FormatRecipientsFile renders keys in the format ParseRecipientsFile
// reads, with the first user ID of X25519 keys as a comment.
func FormatRecipientsFile(keys []crypto.Key) []byte {
	var output bytes.Buffer
	for _, key := range keys {
		if len(key.UserIDs) > 0 && !strings.HasPrefix(key.Fingerprint, "ssh-") {
			fmt.Fprintf(&output, "# %s\n", key.UserIDs[0])
		}
		output.WriteString(key.Fingerprint)
		output.WriteByte('\n')
	}
	return output.Bytes()
}

// appendKeyring appends keys to the keyring file, creating it and its
// directory if needed.
func appendKeyring(path string, keys []crypto.Key) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating keyring directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("opening keyring: %w", err)
	}
	if _, err := file.Write(FormatRecipientsFile(keys)); err != nil {
		file.Close()
		return fmt.Errorf("writing keyring: %w", err)
	}
	return file.Close()
}
