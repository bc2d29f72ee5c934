// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sync gates store mutations on the state of the store's git
// repository and performs the pull and commit-push steps around them.
//
// [Sync.Readiness] is computed fresh on every call: callers re-query
// before each mutating action instead of caching the answer. A store
// that is not a git repository is [NoSync], which is as safe to mutate
// as [Ready]; uncommitted changes ([Dirty]) and unfinished git
// operations ([GitState]) are rejected by [Sync.EnsureReady] unless the
// caller opts into a dirty tree.
package sync
