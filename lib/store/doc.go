// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store models a password store: a directory tree in which
// every regular file ending in the store suffix (".gpg" or ".age") is
// one encrypted secret.
//
// [Open] anchors a [Store] at an existing directory. All caller-supplied
// secret paths go through [Store.NormalizeSecretPath], which refuses
// parent-directory traversal and re-anchors absolute paths under the
// root, so no normalized path can leave the store.
//
// [Store.Secrets] walks the tree lazily as an iter.Seq, following
// symlinks and skipping hidden entries. Secrets that are symlinks to
// other secrets are aliases; [Store.ResolveAlias] follows them with a
// fixed depth bound and reports cycles as [ErrAliasRecursionLimit].
//
// The package never decrypts anything. Encryption lives in lib/crypto.
package store
