// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/bureau-foundation/passkeep/lib/git"
	"github.com/bureau-foundation/passkeep/lib/store"
)

var (
	// ErrDirty is returned by EnsureReady when the repository has
	// uncommitted changes.
	ErrDirty = errors.New("store git repository has uncommitted changes")

	// ErrUnfinishedGitState is returned by EnsureReady when a merge,
	// rebase or similar operation is in progress. The concrete error is
	// a *GitStateError.
	ErrUnfinishedGitState = errors.New("store git repository is in an unfinished state")

	// ErrNotInitialized is returned by operations that need a git
	// repository when the store has none.
	ErrNotInitialized = errors.New("store is not a git repository")

	// ErrAlreadyInitialized is returned by Init when the store is
	// already a git repository.
	ErrAlreadyInitialized = errors.New("store is already a git repository")
)

// DefaultRemote is the remote name used by SetRemote.
const DefaultRemote = "origin"

// Kind enumerates the readiness states.
type Kind int

const (
	// Ready means a clean repository: safe to mutate and sync.
	Ready Kind = iota

	// NoSync means the store is not versioned. Mutations proceed and
	// nothing is synced.
	NoSync

	// Dirty means uncommitted changes are present.
	Dirty

	// GitState means an operation such as a merge is unfinished.
	GitState
)

func (k Kind) String() string {
	switch k {
	case Ready:
		return "ready"
	case NoSync:
		return "no-sync"
	case Dirty:
		return "dirty"
	case GitState:
		return "git-state"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Readiness is the result of a readiness query. State names the
// unfinished operation when Kind is GitState.
type Readiness struct {
	Kind  Kind
	State RepositoryState
}

// String describes the readiness for humans.
func (r Readiness) String() string {
	if r.Kind == GitState {
		return fmt.Sprintf("%s (%s)", r.Kind, r.State)
	}
	return r.Kind.String()
}

// RepositoryState names an in-progress git operation.
type RepositoryState string

const (
	StateMerge        RepositoryState = "merge"
	StateRebase       RepositoryState = "rebase"
	StateApplyMailbox RepositoryState = "apply-mailbox"
	StateCherryPick   RepositoryState = "cherry-pick"
	StateRevert       RepositoryState = "revert"
	StateBisect       RepositoryState = "bisect"
)

// GitStateError carries the unfinished operation that blocked a
// mutation. It matches ErrUnfinishedGitState with errors.Is.
type GitStateError struct {
	State RepositoryState
}

func (e *GitStateError) Error() string {
	return fmt.Sprintf("%s: %s in progress", ErrUnfinishedGitState, e.State)
}

func (e *GitStateError) Is(target error) bool {
	return target == ErrUnfinishedGitState
}

// stateMarkers maps files in the git directory to the operation their
// presence indicates, in the order git itself checks them.
var stateMarkers = []struct {
	path  string
	state RepositoryState
}{
	{"rebase-merge", StateRebase},
	{filepath.Join("rebase-apply", "applying"), StateApplyMailbox},
	{"rebase-apply", StateRebase},
	{"MERGE_HEAD", StateMerge},
	{"CHERRY_PICK_HEAD", StateCherryPick},
	{"REVERT_HEAD", StateRevert},
	{"BISECT_LOG", StateBisect},
}

// Sync manages the git repository of a store.
type Sync struct {
	repository *git.Repository
	logger     *slog.Logger
}

// New returns a Sync for the store's root directory.
func New(s *store.Store, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{repository: git.NewRepository(s.Root()), logger: logger}
}

// Repository returns the underlying git repository.
func (s *Sync) Repository() *git.Repository { return s.repository }

// IsInit reports whether the store root is a git repository.
func (s *Sync) IsInit(ctx context.Context) bool {
	return s.repository.IsRepository(ctx)
}

// Readiness queries the repository state.
func (s *Sync) Readiness(ctx context.Context) (Readiness, error) {
	if !s.IsInit(ctx) {
		return Readiness{Kind: NoSync}, nil
	}

	gitDir, err := s.repository.GitDir(ctx)
	if err != nil {
		return Readiness{}, fmt.Errorf("locating git directory: %w", err)
	}
	for _, marker := range stateMarkers {
		if _, err := os.Stat(filepath.Join(gitDir, marker.path)); err == nil {
			return Readiness{Kind: GitState, State: marker.state}, nil
		}
	}

	status, err := s.repository.Status(ctx)
	if err != nil {
		return Readiness{}, fmt.Errorf("querying git status: %w", err)
	}
	if len(status) > 0 {
		return Readiness{Kind: Dirty}, nil
	}
	return Readiness{Kind: Ready}, nil
}

// EnsureReady returns nil when the store may be mutated: Ready, NoSync,
// or Dirty with allowDirty set. An unfinished git operation is never
// allowed.
func (s *Sync) EnsureReady(ctx context.Context, allowDirty bool) error {
	readiness, err := s.Readiness(ctx)
	if err != nil {
		return err
	}
	switch readiness.Kind {
	case Dirty:
		if allowDirty {
			s.logger.Warn("proceeding with uncommitted changes in store repository")
			return nil
		}
		return ErrDirty
	case GitState:
		return &GitStateError{State: readiness.State}
	}
	return nil
}

// Init turns the store into a git repository and commits its current
// contents.
func (s *Sync) Init(ctx context.Context) error {
	if s.IsInit(ctx) {
		return ErrAlreadyInitialized
	}
	if _, err := s.repository.Run(ctx, "init"); err != nil {
		return fmt.Errorf("initializing store repository: %w", err)
	}
	s.logger.Info("initialized store git repository", "path", s.repository.Dir())
	return s.commitAll(ctx, "Initialize sync with git")
}

// Remote returns the URL of the store's remote, or "" when none is
// configured. DefaultRemote is preferred when several exist.
func (s *Sync) Remote(ctx context.Context) (string, error) {
	name, err := s.remoteName(ctx)
	if err != nil || name == "" {
		return "", err
	}
	return s.repository.RemoteURL(ctx, name)
}

// SetRemote adds or replaces the DefaultRemote URL.
func (s *Sync) SetRemote(ctx context.Context, url string) error {
	if !s.IsInit(ctx) {
		return ErrNotInitialized
	}
	remotes, err := s.repository.Remotes(ctx)
	if err != nil {
		return fmt.Errorf("listing remotes: %w", err)
	}
	verb := "add"
	if slices.Contains(remotes, DefaultRemote) {
		verb = "set-url"
	}
	if _, err := s.repository.Run(ctx, "remote", verb, DefaultRemote, url); err != nil {
		return fmt.Errorf("setting remote: %w", err)
	}
	s.logger.Info("set store remote", "remote", DefaultRemote, "url", url)
	return nil
}

// Prepare brings the store up to date before a mutation: it checks
// readiness and pulls when a remote with commits exists. It does
// nothing for an unversioned store.
func (s *Sync) Prepare(ctx context.Context, allowDirty bool) error {
	if err := s.EnsureReady(ctx, allowDirty); err != nil {
		return err
	}
	if !s.IsInit(ctx) {
		return nil
	}
	remote, err := s.remoteName(ctx)
	if err != nil || remote == "" {
		return err
	}
	if !s.repository.HasCommits(ctx) {
		return nil
	}
	s.logger.Debug("pulling store changes", "remote", remote)
	if _, err := s.repository.Run(ctx, "pull", "--no-edit", "--no-rebase", remote); err != nil {
		return fmt.Errorf("pulling store changes: %w", err)
	}
	return nil
}

// Finalize records a mutation: it commits all changes with message and
// pushes when a remote is configured. It does nothing for an
// unversioned store. Readiness is queried again first: an operation
// such as a merge started while the store was being changed blocks the
// commit with a *GitStateError. A dirty tree is expected here, since
// the mutation itself produced it.
func (s *Sync) Finalize(ctx context.Context, message string) error {
	readiness, err := s.Readiness(ctx)
	if err != nil {
		return err
	}
	switch readiness.Kind {
	case NoSync:
		return nil
	case GitState:
		return &GitStateError{State: readiness.State}
	}
	if err := s.commitAll(ctx, message); err != nil {
		return err
	}
	remote, err := s.remoteName(ctx)
	if err != nil || remote == "" {
		return err
	}
	s.logger.Debug("pushing store changes", "remote", remote)
	if _, err := s.repository.Run(ctx, "push", "--set-upstream", remote, "HEAD"); err != nil {
		return fmt.Errorf("pushing store changes: %w", err)
	}
	return nil
}

// commitAll stages every change and commits when anything is staged.
func (s *Sync) commitAll(ctx context.Context, message string) error {
	if _, err := s.repository.Run(ctx, "add", "--all"); err != nil {
		return fmt.Errorf("staging store changes: %w", err)
	}
	status, err := s.repository.Status(ctx)
	if err != nil {
		return fmt.Errorf("querying git status: %w", err)
	}
	if len(status) == 0 {
		s.logger.Debug("no store changes to commit")
		return nil
	}
	if _, err := s.repository.Run(ctx, "commit", "--quiet", "--message", message); err != nil {
		return fmt.Errorf("committing store changes: %w", err)
	}
	s.logger.Debug("committed store changes", "files", len(status), "message", message)
	return nil
}

func (s *Sync) remoteName(ctx context.Context) (string, error) {
	remotes, err := s.repository.Remotes(ctx)
	if err != nil {
		return "", fmt.Errorf("listing remotes: %w", err)
	}
	switch {
	case len(remotes) == 0:
		return "", nil
	case slices.Contains(remotes, DefaultRemote):
		return DefaultRemote, nil
	default:
		return remotes[0], nil
	}
}
