// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agecrypt implements the age protocol backend of
// lib/crypto.Context using filippo.io/age.
//
// Private key material comes from local identity files holding
// "AGE-SECRET-KEY-1..." lines. Identity file contents are read into
// mmap-backed secret buffers and released as soon as they are parsed.
// Recipients are X25519 ("age1...") keys or SSH public keys
// (filippo.io/age/agessh).
//
// age has no system key-ring, so the backend keeps one as a plain
// recipients file: [Context.ImportKey] appends to it and
// [Context.KeysPublic] reads it. A "# comment" line directly above a
// recipient is used as that key's display name.
//
// Ciphertext is written ASCII-armored. Both armored and binary input
// decrypt.
package agecrypt
