// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for CLI command
// operations. When stderr is a terminal it uses slog.TextHandler for
// human-readable output; when stderr is piped or redirected it uses
// slog.JSONHandler.
//
// Secret values are never passed to the logger; commands log names,
// fingerprints and paths only.
func NewCommandLogger(level slog.Level) *slog.Logger {
	return NewLogger(level, "auto")
}

// NewLogger creates a logger writing to stderr in format "text",
// "json" or "auto" (text on a terminal, JSON otherwise).
func NewLogger(level slog.Level, format string) *slog.Logger {
	text := term.IsTerminal(int(os.Stderr.Fd()))
	switch format {
	case "text":
		text = true
	case "json":
		text = false
	}

	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if text {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// IsTerminal reports whether stdout is a terminal. Commands use it to
// decide between styled and plain output.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
