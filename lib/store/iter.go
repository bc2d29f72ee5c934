// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// lostAndFound is created by fsck at the root of ext filesystems; a
// store living on its own volume must not list its contents.
const lostAndFound = "lost+found"

// IterConfig selects which kinds of entries a walk yields.
type IterConfig struct {
	// FindFiles yields regular files.
	FindFiles bool

	// FindSymlinkFiles yields symlinks that point to regular files
	// (aliases).
	FindSymlinkFiles bool
}

// DefaultIterConfig yields both regular files and aliases.
func DefaultIterConfig() IterConfig {
	return IterConfig{FindFiles: true, FindSymlinkFiles: true}
}

// Secrets walks the store and yields every secret, in lexical order per
// directory. Symlinked directories are followed; a directory whose
// canonical path is already on the current walk path is skipped, so
// link loops terminate. Hidden entries and lost+found are skipped
// everywhere below the root. Unreadable directories are skipped.
//
// Each range over the returned sequence performs a fresh walk.
func (s *Store) Secrets(config IterConfig) iter.Seq[Secret] {
	return func(yield func(Secret) bool) {
		ancestors := []string{s.canonicalRoot}
		s.walk(s.root, ancestors, config, yield)
	}
}

// walk returns false once the consumer stops.
func (s *Store) walk(directory string, ancestors []string, config IterConfig, yield func(Secret) bool) bool {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return true
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == lostAndFound {
			continue
		}
		path := filepath.Join(directory, name)

		isSymlink := entry.Type()&os.ModeSymlink != 0
		info, err := os.Stat(path)
		if err != nil {
			// Dangling link or racing removal.
			continue
		}

		if info.IsDir() {
			canonical, err := filepath.EvalSymlinks(path)
			if err != nil || slices.Contains(ancestors, canonical) {
				continue
			}
			if !s.walk(path, append(ancestors, canonical), config, yield) {
				return false
			}
			continue
		}

		if !info.Mode().IsRegular() || !strings.HasSuffix(name, s.suffix) {
			continue
		}
		if isSymlink && !config.FindSymlinkFiles {
			continue
		}
		if !isSymlink && !config.FindFiles {
			continue
		}
		if !yield(s.SecretAt(path)) {
			return false
		}
	}
	return true
}

// FilterSecrets yields the secrets of seq whose name contains filter,
// compared case-insensitively, preserving order. An empty filter
// passes everything.
func FilterSecrets(seq iter.Seq[Secret], filter string) iter.Seq[Secret] {
	if filter == "" {
		return seq
	}
	needle := strings.ToLower(filter)
	return func(yield func(Secret) bool) {
		for secret := range seq {
			if !strings.Contains(strings.ToLower(secret.Name), needle) {
				continue
			}
			if !yield(secret) {
				return
			}
		}
	}
}

// List collects all secrets matching filter.
func (s *Store) List(filter string) []Secret {
	return slices.Collect(FilterSecrets(s.Secrets(DefaultIterConfig()), filter))
}

// Match is the result of Find: either one exact hit or every secret
// whose name contains the query.
type Match struct {
	Exact *Secret
	Many  []Secret
}

// FindAt returns the secret at a store-relative name, trying the name
// with the suffix appended first and as given second. Names with a
// ".." segment never match.
func (s *Store) FindAt(name string) (Secret, bool) {
	if IsSneakyPath(name) {
		return Secret{}, false
	}
	base := filepath.Join(s.root, s.stripRoot(name))
	for _, candidate := range []string{base + s.suffix, base} {
		if !strings.HasSuffix(candidate, s.suffix) {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return s.SecretAt(candidate), true
		}
	}
	return Secret{}, false
}

// Find resolves a query: an exact secret name short-circuits to that
// secret, anything else lists the secrets whose name contains the
// query. An empty query lists everything.
func (s *Store) Find(query string) Match {
	if query != "" {
		if secret, ok := s.FindAt(query); ok {
			return Match{Exact: &secret}
		}
	}
	return Match{Many: s.List(query)}
}

// Glob returns the secrets selected by config whose name matches a
// doublestar pattern, such as "work/**" or "*/email". Bulk rewrites
// pass a config without symlink files so an alias is never replaced
// by a copy of its target.
func (s *Store) Glob(pattern string, config IterConfig) ([]Secret, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid secret pattern %q", pattern)
	}
	var matches []Secret
	for secret := range s.Secrets(config) {
		if doublestar.MatchUnvalidated(pattern, filepath.ToSlash(secret.Name)) {
			matches = append(matches, secret)
		}
	}
	return matches, nil
}
