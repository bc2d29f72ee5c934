// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for passkeep packages.
//
// [SocketDir] creates a short temporary directory in /tmp. gpg-agent
// places its sockets inside GNUPGHOME, and Unix domain sockets have a
// 108-byte path limit (sun_path in sockaddr_un) that deeply nested
// t.TempDir() paths can exceed.
//
// [RequireTool] skips a test when an external binary such as git or
// gpg is not installed. [GitIdentity] sets the author and committer
// environment so commits work on machines without a git config, and
// [InitGitRepository] creates a repository with one commit.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no passkeep-internal dependencies.
package testutil
