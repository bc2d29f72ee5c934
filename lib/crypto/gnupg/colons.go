// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gnupg

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bureau-foundation/passkeep/lib/crypto"
)

// hiddenKeyID is the key ID gpg reports for a --throw-keyids recipient.
const hiddenKeyID = "0000000000000000"

// listedKey is one primary key from --with-colons output.
type listedKey struct {
	fingerprint        string
	userIDs            []string
	subkeyFingerprints []string
}

// hasKeyID reports whether a 16-digit key ID names the primary key or
// one of its subkeys.
func (k listedKey) hasKeyID(keyID string) bool {
	keyID = strings.ToUpper(keyID)
	if strings.HasSuffix(k.fingerprint, keyID) {
		return true
	}
	for _, subkey := range k.subkeyFingerprints {
		if strings.HasSuffix(subkey, keyID) {
			return true
		}
	}
	return false
}

func toKeys(listed []listedKey) []crypto.Key {
	keys := make([]crypto.Key, 0, len(listed))
	for _, key := range listed {
		keys = append(keys, crypto.NewKey(crypto.ProtoGPG, key.fingerprint, key.userIDs...))
	}
	return keys
}

// parseColonKeys parses gpg --with-colons key listings. A "pub" or
// "sec" record starts a key; the "fpr" record following it is the
// primary fingerprint, and "fpr" records after "sub"/"ssb" are subkey
// fingerprints. Field 10 of "uid" records is the user ID with colons
// and other special characters C-escaped.
func parseColonKeys(output string) []listedKey {
	var keys []listedKey
	var current *listedKey
	// expecting records which record type the next "fpr" belongs to.
	expecting := ""

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), ":")
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "pub", "sec":
			keys = append(keys, listedKey{})
			current = &keys[len(keys)-1]
			expecting = "primary"
		case "sub", "ssb":
			expecting = "subkey"
		case "fpr":
			if current == nil || len(fields) < 10 {
				continue
			}
			fingerprint := strings.ToUpper(fields[9])
			switch expecting {
			case "primary":
				current.fingerprint = fingerprint
			case "subkey":
				current.subkeyFingerprints = append(current.subkeyFingerprints, fingerprint)
			}
			expecting = ""
		case "uid":
			if current == nil || len(fields) < 10 {
				continue
			}
			// Revoked and expired user IDs are not displayed.
			if validity := fields[1]; validity == "r" || validity == "e" {
				continue
			}
			current.userIDs = append(current.userIDs, unescapeColonField(fields[9]))
		}
	}

	// Drop records whose fingerprint never appeared.
	valid := keys[:0]
	for _, key := range keys {
		if key.fingerprint != "" {
			valid = append(valid, key)
		}
	}
	return valid
}

var colonEscape = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)

// unescapeColonField decodes the \xHH escapes gpg uses in colon output.
func unescapeColonField(field string) string {
	return colonEscape.ReplaceAllStringFunc(field, func(match string) string {
		value, err := strconv.ParseUint(match[2:], 16, 8)
		if err != nil {
			return match
		}
		return string(rune(value))
	})
}

var encryptedKeyIDPattern = regexp.MustCompile(`(?m)^:pubkey enc packet:.*\bkeyid ([0-9A-Fa-f]{16})`)

// parseEncryptedKeyIDs extracts the recipient key IDs from
// --list-packets output.
func parseEncryptedKeyIDs(output string) []string {
	var keyIDs []string
	for _, match := range encryptedKeyIDPattern.FindAllStringSubmatch(output, -1) {
		keyIDs = append(keyIDs, strings.ToUpper(match[1]))
	}
	return keyIDs
}
