// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandPath performs shell-style expansion of a leading "~" and of
// "$VAR", "${VAR}" and "${VAR:-default}" references. An undefined
// variable without a default is an error rather than an empty string,
// so a typo cannot silently redirect a path to the filesystem root.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrExpandFailed, path, err)
		}
		// Concatenate rather than Join so a trailing separator, which
		// marks a directory target, survives.
		path = strings.TrimSuffix(home, string(filepath.Separator)) + path[1:]
	}

	var builder strings.Builder
	for index := 0; index < len(path); index++ {
		character := path[index]
		if character != '$' || index+1 >= len(path) {
			builder.WriteByte(character)
			continue
		}

		rest := path[index+1:]
		var name, fallback string
		var hasFallback bool
		var consumed int

		if rest[0] == '{' {
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return "", fmt.Errorf("%w: %q: unterminated ${", ErrExpandFailed, path)
			}
			inner := rest[1:end]
			name, fallback, hasFallback = strings.Cut(inner, ":-")
			consumed = end + 1
		} else {
			length := 0
			for length < len(rest) && isNameByte(rest[length], length == 0) {
				length++
			}
			if length == 0 {
				builder.WriteByte(character)
				continue
			}
			name = rest[:length]
			consumed = length
		}

		value, ok := os.LookupEnv(name)
		switch {
		case ok && (value != "" || !hasFallback):
			builder.WriteString(value)
		case hasFallback:
			builder.WriteString(fallback)
		default:
			return "", fmt.Errorf("%w: %q: environment variable %s is not set", ErrExpandFailed, path, name)
		}
		index += consumed
	}
	return builder.String(), nil
}

func isNameByte(character byte, first bool) bool {
	switch {
	case character == '_':
		return true
	case character >= 'a' && character <= 'z', character >= 'A' && character <= 'Z':
		return true
	case character >= '0' && character <= '9':
		return !first
	}
	return false
}
