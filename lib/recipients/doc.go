// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recipients manages the set of public keys allowed to decrypt
// a store.
//
// The set is persisted in the recipients file at the store root
// (".gpg-id" or ".age-recipients", one fingerprint per line) and
// mirrored as exported public keys under ".public-keys/", so that a
// fresh clone of the store carries everything needed to import the
// recipients' keys. [Recipients.SyncPublicKeyFiles] writes that mirror
// and [Recipients.ImportMissingKeysFromStore] reads it back into the
// local key-ring. Private key material is never written.
package recipients
