// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides memory-safe containers for secret store
// contents: decrypted secrets ([Plaintext]) and their encrypted form
// ([Ciphertext]).
//
// Both wrap a [Buffer], which allocates memory outside the Go heap via
// mmap(MAP_ANONYMOUS), excludes it from core dumps via
// madvise(MADV_DONTDUMP) and locks it into RAM via mlock when the
// memlock limit allows. On Close the memory is zeroed, unlocked and
// unmapped. Constructors that take an owned byte slice zero the source
// after copying.
//
// Every read of secret bytes goes through an accessor named Unsecure*
// so that each place secret material leaves protected memory can be
// found with grep. After Close, any access panics. Close is idempotent.
//
// Depends on golang.org/x/sys/unix. No other passkeep packages.
package secret
