// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireTool skips the test when name is not on PATH and returns its
// absolute path otherwise.
func RequireTool(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not installed: %v", name, err)
	}
	return path
}

// GitIdentity sets the git author and committer environment for the
// duration of the test and points HOME at an empty directory so the
// user's git configuration does not leak in.
func GitIdentity(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@test.local")
	t.Setenv("GIT_COMMITTER_NAME", "Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@test.local")
}

// InitGitRepository initializes a git repository in directory with a
// single commit of a README file. The test is skipped when git is not
// installed. Call GitIdentity first.
func InitGitRepository(t *testing.T, directory string) {
	t.Helper()
	RequireTool(t, "git")

	RunGit(t, directory, "init", "--initial-branch=main")
	readme := filepath.Join(directory, "README")
	if err := os.WriteFile(readme, []byte("test\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	RunGit(t, directory, "add", "README")
	RunGit(t, directory, "commit", "-m", "initial")
}

// RunGit runs git in directory and fails the test on error. Returns
// combined output.
func RunGit(t *testing.T, directory string, args ...string) string {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", directory}, args...)...)
	output, err := command.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, output)
	}
	return string(output)
}
