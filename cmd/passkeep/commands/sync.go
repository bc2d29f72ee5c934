// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/sync"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:    "sync",
		Summary: "Manage the store's git repository",
		Subcommands: []*cli.Command{
			syncStatusCommand(),
			syncInitCommand(),
		},
	}
}

type syncStatusParams struct {
	cli.GlobalParams
	cli.JSONOutput
}

type syncStatus struct {
	Readiness string `json:"readiness"`
	State     string `json:"state,omitempty"`
	Remote    string `json:"remote,omitempty"`
}

func syncStatusCommand() *cli.Command {
	var params syncStatusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Report whether the store is ready for changes",
		Description: `Report the readiness of the store's git repository: ready, no-sync
(not a repository), dirty (uncommitted changes) or git-state (an
unfinished merge, rebase or similar). Exits 1 when dirty or in an
unfinished operation.`,
		Usage:  "passkeep sync status [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			readiness, err := session.sync.Readiness(ctx)
			if err != nil {
				return err
			}
			status := syncStatus{Readiness: readiness.Kind.String(), State: string(readiness.State)}
			if readiness.Kind != sync.NoSync {
				if status.Remote, err = session.sync.Remote(ctx); err != nil {
					return err
				}
			}

			done, err := params.EmitJSON(status)
			if err != nil {
				return err
			}
			if !done {
				style := cli.Good
				switch readiness.Kind {
				case sync.NoSync:
					style = cli.Faint
				case sync.Dirty, sync.GitState:
					style = cli.Bad
				}
				fmt.Fprintln(cli.Stdout, styled(style, readiness.String()))
				if status.Remote != "" {
					fmt.Fprintf(cli.Stdout, "remote: %s\n", status.Remote)
				}
			}

			if readiness.Kind == sync.Dirty || readiness.Kind == sync.GitState {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

type syncInitParams struct {
	cli.GlobalParams
	Remote string `flag:"remote" desc:"URL of the remote to push to"`
}

func syncInitCommand() *cli.Command {
	var params syncInitParams

	return &cli.Command{
		Name:    "init",
		Summary: "Turn the store into a git repository",
		Description: `Initialize a git repository at the store root and commit the current
contents. With --remote, also configure the remote that later changes
are pushed to. On an existing repository only the remote is set.`,
		Usage:  "passkeep sync init [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if !session.sync.IsInit(ctx) {
				if err := session.sync.Init(ctx); err != nil {
					return err
				}
			} else if params.Remote == "" {
				return sync.ErrAlreadyInitialized
			}

			if params.Remote != "" {
				if err := session.sync.SetRemote(ctx, params.Remote); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
