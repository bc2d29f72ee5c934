// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package crypto defines the backend-neutral encryption capability used
// by the store: [Context] encrypts a plaintext to a set of recipient
// [Key] values, decrypts with whatever private key material is locally
// available, and manages the local key-ring.
//
// Two protocols exist, named by [Proto]: GPG (lib/crypto/gnupg, driving
// the system gpg binary and its key-ring) and age (lib/crypto/agecrypt,
// using filippo.io/age with local identity files). lib/crypto/backend
// picks one from configuration. Callers hold only a Context and never
// branch on the protocol.
//
// Every backend failure wraps one of the sentinel errors declared here,
// so callers classify errors with errors.Is regardless of backend.
//
// [EncryptFile], [DecryptFile] and [CanDecryptFile] bind a Context to
// files on disk. EncryptFile writes only after encryption has fully
// succeeded, through an atomic rename.
package crypto
