// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for passkeep.
//
// Configuration is loaded from a single file specified by either the
// PASSKEEP_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no file discovery: without either, [Load]
// returns [Default], which works for a standard password store at
// ~/.password-store.
//
// After the file is read, the password-store environment variables
// override it: PASSWORD_STORE_DIR (store directory),
// PASSWORD_STORE_UMASK (octal umask) and GPG_TTY (terminal pinentry).
// Then ${VAR} and ${VAR:-default} patterns and a leading "~" are
// expanded in path fields.
//
// Key exports:
//
//   - [Config] -- master struct with Store, Crypto, Sync, Log
//   - [Default] -- returns a Config for a GPG store in the home directory
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
package config
