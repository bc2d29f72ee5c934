// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package git provides typed access to the git CLI for the store's
// repository. Every command targets the repository directory through
// the -C flag, which all Repository methods inject.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repository represents the git working tree at a specific directory.
// There is no default directory: callers always say which repository
// they mean.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in the error on
// failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := r.Command(ctx, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Command returns an *exec.Cmd for a git command without running it.
// The caller controls Stdin, Stdout and Stderr. The -C flag targeting
// this repository is prepended.
func (r *Repository) Command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-C", r.dir}, args...)
	return exec.CommandContext(ctx, "git", fullArgs...)
}

// IsRepository reports whether the directory is the top level of a git
// working tree. A directory nested inside some other repository (a
// store under a versioned home directory) is not.
func (r *Repository) IsRepository(ctx context.Context) bool {
	output, err := r.Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return false
	}
	return sameDirectory(strings.TrimSpace(output), r.dir)
}

// GitDir returns the absolute path of the repository's .git directory.
func (r *Repository) GitDir(ctx context.Context) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// Status returns the porcelain status lines of the working tree. An
// empty result means a clean tree.
func (r *Repository) Status(ctx context.Context) ([]string, error) {
	output, err := r.Run(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return splitLines(output), nil
}

// Remotes returns the configured remote names.
func (r *Repository) Remotes(ctx context.Context) ([]string, error) {
	output, err := r.Run(ctx, "remote")
	if err != nil {
		return nil, err
	}
	return splitLines(output), nil
}

// RemoteURL returns the fetch URL of the named remote.
func (r *Repository) RemoteURL(ctx context.Context, name string) (string, error) {
	output, err := r.Run(ctx, "remote", "get-url", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// HasCommits reports whether HEAD points at a commit.
func (r *Repository) HasCommits(ctx context.Context) bool {
	_, err := r.Run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

func splitLines(output string) []string {
	var lines []string
	for line := range strings.Lines(output) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func sameDirectory(a, b string) bool {
	resolvedA, errA := filepath.EvalSymlinks(a)
	resolvedB, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return resolvedA == resolvedB
}
