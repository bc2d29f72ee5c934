// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"os"
	"path/filepath"
	"strings"
)

// PruneEmptyDirs removes the directories containing path, innermost
// first, while they are empty. It stops at the first non-empty
// directory and never removes the store root or anything outside it.
func (s *Store) PruneEmptyDirs(path string) {
	directory := filepath.Dir(path)
	for {
		if directory == s.root || !strings.HasPrefix(directory, s.root+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(directory)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(directory); err != nil {
			return
		}
		directory = filepath.Dir(directory)
	}
}
