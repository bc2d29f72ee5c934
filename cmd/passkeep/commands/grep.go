// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/store"
)

type grepParams struct {
	cli.GlobalParams
	IgnoreCase bool `flag:"ignore-case,i" desc:"match case-insensitively"`
}

func grepCommand() *cli.Command {
	var params grepParams

	return &cli.Command{
		Name:    "grep",
		Summary: "Search the contents of every secret",
		Description: `Decrypt every secret and print the lines matching the regular
expression PATTERN, prefixed with the secret's name. Aliases are not
searched twice. Exits with status 1 when nothing matches.`,
		Usage:  "passkeep grep <pattern> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one pattern")
			}
			expression := args[0]
			if params.IgnoreCase {
				expression = "(?i)" + expression
			}
			pattern, err := regexp.Compile(expression)
			if err != nil {
				return fmt.Errorf("invalid pattern: %w", err)
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			c, err := session.context()
			if err != nil {
				return err
			}

			matched := 0
			for target := range session.store.Secrets(store.IterConfig{FindFiles: true}) {
				if err := ctx.Err(); err != nil {
					return err
				}
				plaintext, err := crypto.DecryptFile(ctx, c, target.Path)
				if err != nil {
					return fmt.Errorf("decrypting %s: %w", target.Name, err)
				}
				for line := range bytes.Lines(plaintext.UnsecureBytes()) {
					line = bytes.TrimRight(line, "\r\n")
					if !pattern.Match(line) {
						continue
					}
					matched++
					fmt.Fprintf(cli.Stdout, "%s:", styled(cli.SecretName, target.Name))
					cli.Stdout.Write(line)
					fmt.Fprintln(cli.Stdout)
				}
				plaintext.Close()
			}

			logger.Debug("searched store", "matches", matched)
			if matched == 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
