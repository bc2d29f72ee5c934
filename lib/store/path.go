// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrSneakyPath is returned for a path containing a ".." segment.
	ErrSneakyPath = errors.New("path contains parent directory traversal")

	// ErrTargetDirWithoutNameHint is returned when a path names a
	// directory and no file name was given to place inside it.
	ErrTargetDirWithoutNameHint = errors.New("target is a directory but no secret name was given")

	// ErrCreateDirFailed is returned when parent directories of a
	// secret could not be created.
	ErrCreateDirFailed = errors.New("failed to create secret directory")
)

// sneakyPattern matches ".." as the whole path or as a segment bounded
// by separators. Names such as "..hidden" or "a..b" are allowed.
var sneakyPattern = regexp.MustCompile(`(^|[/\\])\.\.([/\\]|$)`)

// IsSneakyPath reports whether path contains a parent directory
// traversal segment.
func IsSneakyPath(path string) bool {
	return sneakyPattern.MatchString(path)
}

// NormalizeSecretPath turns a user-supplied target into the absolute
// path of a secret file inside the store:
//
//  1. a ".." segment in target or nameHint is rejected before any
//     expansion takes place;
//  2. "~" and environment variables are expanded;
//  3. an accidental store root prefix is stripped, and what remains is
//     anchored under the root even when it is absolute;
//  4. a directory target (trailing separator, or an existing directory)
//     gets nameHint appended, and fails without one;
//  5. the store suffix is appended if missing;
//  6. with createDirs, missing parent directories are created.
//
// The result depends only on the inputs and the filesystem, and feeding
// a result back in returns it unchanged.
func (s *Store) NormalizeSecretPath(target, nameHint string, createDirs bool) (string, error) {
	if IsSneakyPath(target) {
		return "", fmt.Errorf("%w: %q", ErrSneakyPath, target)
	}
	if IsSneakyPath(nameHint) {
		return "", fmt.Errorf("%w: name %q", ErrSneakyPath, nameHint)
	}

	expanded, err := expandPath(target)
	if err != nil {
		return "", err
	}
	// Expansion may have introduced traversal through a variable value.
	if IsSneakyPath(expanded) {
		return "", fmt.Errorf("%w: %q expands to %q", ErrSneakyPath, target, expanded)
	}

	relative := s.stripRoot(expanded)
	isDirectory := relative == "" || strings.HasSuffix(relative, "/") || strings.HasSuffix(relative, string(filepath.Separator))

	path := filepath.Join(s.root, relative)
	if !isDirectory {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			isDirectory = true
		}
	}

	if isDirectory {
		if nameHint == "" {
			return "", fmt.Errorf("%w: %s", ErrTargetDirWithoutNameHint, path)
		}
		path = filepath.Join(path, nameHint)
	}

	if !strings.HasSuffix(path, s.suffix) {
		path += s.suffix
	}

	if createDirs {
		parent := filepath.Dir(path)
		if err := os.MkdirAll(parent, s.DirMode()); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrCreateDirFailed, parent, err)
		}
	}

	return path, nil
}

// stripRoot removes a leading store root (as given or canonical) and
// any leading separators, leaving a path relative to the root.
func (s *Store) stripRoot(path string) string {
	for _, root := range []string{s.root, s.canonicalRoot} {
		if path == root {
			return ""
		}
		prefix := root + string(filepath.Separator)
		if strings.HasPrefix(path, prefix) {
			path = path[len(prefix):]
			break
		}
	}
	return strings.TrimLeft(path, string(filepath.Separator))
}
