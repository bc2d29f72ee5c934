// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework of the passkeep binary: a tree
// of [Command] values dispatched by name, flags bound from tagged
// parameter structs ([FlagsFromParams]), a structured command logger,
// optional JSON output and the terminal styles used by commands.
package cli
