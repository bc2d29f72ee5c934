// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gnupg implements the GPG protocol backend of
// lib/crypto.Context by running the system gpg binary.
//
// Every operation is one gpg invocation in batch mode. Plaintext goes
// in through stdin and comes back on stdout; neither is ever placed in
// a file or an argument. Keys are listed with --with-colons and parsed
// from the machine-readable records. CanDecrypt inspects the public-key
// encrypted session key packets (--list-packets --list-only) and
// matches their key IDs against local secret keys and subkeys, so no
// plaintext is produced.
//
// Ciphertext uses binary OpenPGP framing. Recipients are always fully
// trusted for encryption (--trust-model always); which keys may read a
// store is decided by the store's recipients file, not the web of
// trust.
//
// Passphrase prompts are handled by gpg-agent. In TTY mode GPG_TTY is
// forwarded so pinentry can use the terminal; otherwise gpg runs with
// --no-tty.
package gnupg
