// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MaxAliasDepth bounds the number of alias hops ResolveAlias follows.
const MaxAliasDepth = 30

var (
	// ErrNotAlias is returned by AliasTarget for a secret that is not a
	// symlink.
	ErrNotAlias = errors.New("secret is not an alias")

	// ErrAliasRecursionLimit is returned when alias resolution exceeds
	// MaxAliasDepth hops, which includes every alias cycle.
	ErrAliasRecursionLimit = errors.New("alias recursion limit exceeded")
)

// AliasTarget follows one alias hop. The link is read without
// resolving further links, made absolute relative to the alias's
// directory, and the containing directory is canonicalized.
func (s *Store) AliasTarget(secret Secret) (Secret, error) {
	info, err := os.Lstat(secret.Path)
	if err != nil {
		return Secret{}, fmt.Errorf("inspecting %s: %w", secret.Path, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return Secret{}, fmt.Errorf("%w: %s", ErrNotAlias, secret.Name)
	}

	link, err := os.Readlink(secret.Path)
	if err != nil {
		return Secret{}, fmt.Errorf("reading alias %s: %w", secret.Path, err)
	}
	if !filepath.IsAbs(link) {
		link = filepath.Join(filepath.Dir(secret.Path), link)
	}
	link = filepath.Clean(link)

	parent, err := filepath.EvalSymlinks(filepath.Dir(link))
	if err != nil {
		return Secret{}, fmt.Errorf("resolving alias %s: %w", secret.Name, err)
	}
	return s.SecretAt(filepath.Join(parent, filepath.Base(link))), nil
}

// ResolveAlias follows aliases until it reaches a secret that is not
// one. A secret that is not an alias resolves to itself.
func (s *Store) ResolveAlias(secret Secret) (Secret, error) {
	current := secret
	for range MaxAliasDepth {
		next, err := s.AliasTarget(current)
		if errors.Is(err, ErrNotAlias) {
			return current, nil
		}
		if err != nil {
			return Secret{}, err
		}
		current = next
	}
	return Secret{}, fmt.Errorf("%w: %s (more than %d hops)", ErrAliasRecursionLimit, secret.Name, MaxAliasDepth)
}
