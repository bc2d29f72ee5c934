// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key is a public key of one protocol, identified by its fingerprint.
// For GPG the fingerprint is the hex key fingerprint; for age it is the
// recipient string (an "age1..." key or an SSH public key line).
type Key struct {
	Proto       Proto
	Fingerprint string

	// UserIDs are human-readable identities such as "Alice <a@b.c>".
	// Empty for keys that could not be resolved locally.
	UserIDs []string
}

// NewKey builds a Key with a normalized fingerprint: trimmed, and
// upper-cased for GPG. age recipients are case-sensitive bech32 or SSH
// keys and keep their case.
func NewKey(proto Proto, fingerprint string, userIDs ...string) Key {
	fingerprint = strings.TrimSpace(fingerprint)
	if proto == ProtoGPG {
		fingerprint = strings.ToUpper(strings.TrimPrefix(strings.TrimPrefix(fingerprint, "0x"), "0X"))
	}
	return Key{Proto: proto, Fingerprint: fingerprint, UserIDs: userIDs}
}

// NormalizeFingerprint returns the comparison form of a fingerprint.
func NormalizeFingerprint(fingerprint string) string {
	return strings.ToUpper(strings.TrimSpace(fingerprint))
}

// Equal reports whether two keys have the same protocol and
// fingerprint. User IDs are not compared.
func (k Key) Equal(other Key) bool {
	return k.Proto == other.Proto &&
		NormalizeFingerprint(k.Fingerprint) == NormalizeFingerprint(other.Fingerprint)
}

// MatchesFingerprint reports whether fingerprint names this key. A GPG
// short or long key ID matches as a suffix of the full fingerprint.
func (k Key) MatchesFingerprint(fingerprint string) bool {
	own := NormalizeFingerprint(k.Fingerprint)
	query := NormalizeFingerprint(fingerprint)
	if k.Proto == ProtoGPG {
		query = strings.TrimPrefix(query, "0X")
		return len(query) >= 8 && strings.HasSuffix(own, query)
	}
	return own == query
}

// ShortFingerprint returns the last 16 characters of the fingerprint,
// the long key ID for GPG.
func (k Key) ShortFingerprint() string {
	if len(k.Fingerprint) <= 16 {
		return k.Fingerprint
	}
	return k.Fingerprint[len(k.Fingerprint)-16:]
}

// FileName returns a file name under which the key's exported public
// key is stored in the store's public key directory.
func (k Key) FileName() string {
	fingerprint := strings.TrimSpace(k.Fingerprint)
	if k.Proto == ProtoGPG {
		return NormalizeFingerprint(fingerprint)
	}
	if isFileNameSafe(fingerprint) {
		return fingerprint
	}
	sum := sha256.Sum256([]byte(fingerprint))
	return "ssh-" + hex.EncodeToString(sum[:])[:32]
}

// DisplayUserIDs joins the user IDs for presentation.
func (k Key) DisplayUserIDs() string {
	return strings.Join(k.UserIDs, "; ")
}

func (k Key) String() string {
	if len(k.UserIDs) == 0 {
		return k.Fingerprint
	}
	return k.Fingerprint + " - " + k.DisplayUserIDs()
}

func isFileNameSafe(name string) bool {
	if name == "" {
		return false
	}
	for _, character := range name {
		switch {
		case character >= 'a' && character <= 'z':
		case character >= 'A' && character <= 'Z':
		case character >= '0' && character <= '9':
		default:
			return false
		}
	}
	return true
}

// ContainsKey reports whether keys holds a key equal to key.
func ContainsKey(keys []Key, key Key) bool {
	for _, candidate := range keys {
		if candidate.Equal(key) {
			return true
		}
	}
	return false
}
