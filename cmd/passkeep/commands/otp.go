// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/passkeep/cmd/passkeep/cli"
	"github.com/bureau-foundation/passkeep/lib/clock"
	"github.com/bureau-foundation/passkeep/lib/otp"
	"github.com/bureau-foundation/passkeep/lib/store"
)

func otpCommand(c clock.Clock) *cli.Command {
	return &cli.Command{
		Name:    "otp",
		Summary: "Manage one-time password accounts",
		Description: `Manage the HOTP and TOTP accounts kept in the store's encrypted OTP
file. Codes are computed locally; the shared keys never leave the file
unencrypted.`,
		Subcommands: []*cli.Command{
			otpAddCommand(),
			otpListCommand(),
			otpViewCommand(c),
			otpRemoveCommand(),
		},
	}
}

// openOTPFile decrypts the store's OTP file.
func (s *session) openOTPFile(ctx context.Context) (*otp.File, error) {
	c, err := s.context()
	if err != nil {
		return nil, err
	}
	return otp.Open(ctx, s.store, c)
}

// saveOTPFile encrypts file for the store's recipients.
func (s *session) saveOTPFile(ctx context.Context, file *otp.File) error {
	keys, err := s.encryptionKeys(ctx)
	if err != nil {
		return err
	}
	return file.Save(ctx, keys)
}

type otpAddParams struct {
	cli.GlobalParams
	URI       string `flag:"uri" desc:"otpauth:// URI, as encoded in provisioning QR codes"`
	Key       string `flag:"key" desc:"base32 shared key, when no URI is given"`
	HOTP      bool   `flag:"hotp" desc:"counter-based account (with --key)"`
	Counter   uint64 `flag:"counter" desc:"initial counter of an HOTP account (with --key)"`
	Algorithm string `flag:"algorithm" desc:"hash function: SHA1, SHA256, SHA384 or SHA512 (with --key)" default:"SHA1"`
	Digits    int    `flag:"digits" desc:"code length (with --key)" default:"6"`
	Period    uint64 `flag:"period" desc:"TOTP period in seconds (with --key)" default:"30"`
	Path      string `flag:"path" desc:"secret the account belongs to (resolved like show's query)"`
	Force     bool   `flag:"force,f" desc:"replace an existing account of the same name"`
}

func otpAddCommand() *cli.Command {
	var params otpAddParams

	return &cli.Command{
		Name:    "add",
		Summary: "Add an OTP account",
		Usage:   "passkeep otp add <name> (--uri URI | --key KEY) [flags]",
		Params:  func() any { return &params },
		Examples: []cli.Example{
			{
				Description: "From a provisioning URI",
				Command:     "passkeep otp add github --uri 'otpauth://totp/GitHub:alice?secret=JBSWY3DPEHPK3PXP'",
			},
			{
				Description: "Counter-based, from a bare key",
				Command:     "passkeep otp add bank --key JBSWY3DPEHPK3PXP --hotp --digits 8",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one account name")
			}
			accountParams, err := params.accountParams(args[0])
			if err != nil {
				return err
			}
			account, err := otp.NewAccount(accountParams)
			if err != nil {
				return err
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if params.Path != "" {
				linked, err := resolveSecret(session.store, params.Path)
				if err != nil {
					return fmt.Errorf("resolving --path: %w", err)
				}
				account.Path = linked.Name
			}

			if err := session.prepare(ctx); err != nil {
				return err
			}
			file, err := session.openOTPFile(ctx)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, exists := file.Get(account.Name); exists && !params.Force {
				return fmt.Errorf("OTP account %q exists; use --force to replace it", account.Name)
			}
			if err := file.Add(account); err != nil {
				return err
			}
			if err := session.saveOTPFile(ctx, file); err != nil {
				return err
			}
			logger.Info("added OTP account", "name", account.Name, "type", account.Type())
			return session.finalize(ctx, fmt.Sprintf("Add OTP account %s", account.Name))
		},
	}
}

func (p *otpAddParams) accountParams(name string) (otp.AccountParams, error) {
	if store.IsSneakyPath(p.Path) {
		return otp.AccountParams{}, fmt.Errorf("--path: %w: %q", store.ErrSneakyPath, p.Path)
	}
	switch {
	case p.URI != "" && p.Key != "":
		return otp.AccountParams{}, errors.New("--uri and --key are mutually exclusive")
	case p.URI != "":
		uri, err := otp.ParseURI(p.URI)
		if err != nil {
			return otp.AccountParams{}, err
		}
		return uri.AccountParams(name, p.Path, p.URI), nil
	case p.Key != "":
		accountType := otp.TypeTOTP
		if p.HOTP {
			accountType = otp.TypeHOTP
		}
		return otp.AccountParams{
			Name:         name,
			Path:         p.Path,
			Key:          p.Key,
			Type:         accountType,
			HashFunction: otp.ParseHashFunction(p.Algorithm),
			Counter:      p.Counter,
			Period:       p.Period,
			Digits:       p.Digits,
		}, nil
	default:
		return otp.AccountParams{}, errors.New("one of --uri or --key is required")
	}
}

type otpListParams struct {
	cli.GlobalParams
	cli.JSONOutput
}

type otpEntry struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Path   string `json:"path,omitempty"`
	Digits int    `json:"digits"`
}

func otpListCommand() *cli.Command {
	var params otpListParams

	return &cli.Command{
		Name:    "list",
		Summary: "List OTP accounts",
		Usage:   "passkeep otp list [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			file, err := session.openOTPFile(ctx)
			if err != nil {
				return err
			}
			defer file.Close()

			entries := make([]otpEntry, 0, file.Len())
			for _, account := range file.Accounts() {
				entries = append(entries, otpEntry{
					Name:   account.Name,
					Type:   account.Type().String(),
					Path:   account.Path,
					Digits: account.EffectiveDigits(),
				})
			}
			if done, err := params.EmitJSON(entries); done {
				return err
			}
			for _, entry := range entries {
				line := styled(cli.SecretName, entry.Name) + " " + styled(cli.Faint, entry.Type)
				if entry.Path != "" {
					line += " " + styled(cli.Faint, entry.Path)
				}
				fmt.Fprintln(cli.Stdout, line)
			}
			return nil
		},
	}
}

type otpViewParams struct {
	cli.GlobalParams
	Watch bool `flag:"watch,w" desc:"keep printing the current TOTP code with its remaining validity"`
}

func otpViewCommand(c clock.Clock) *cli.Command {
	var params otpViewParams

	return &cli.Command{
		Name:    "view",
		Summary: "Print the current code of an OTP account",
		Description: `Print the current code of the OTP account NAME. For a counter-based
account the stored counter is advanced after the code is shown, and the
OTP file is saved.`,
		Usage:  "passkeep otp view <name> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one account name")
			}
			name := args[0]

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			file, err := session.openOTPFile(ctx)
			if err != nil {
				return err
			}
			defer file.Close()

			account, ok := file.Get(name)
			if !ok {
				return fmt.Errorf("%w: %s", otp.ErrAccountNotFound, name)
			}

			if account.Type() == otp.TypeHOTP {
				file.Close()
				return viewHOTP(ctx, session, name)
			}
			if params.Watch {
				return watchTOTP(ctx, c, account)
			}
			code, err := account.Code(c.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.Stdout, styled(cli.Code, code))
			return nil
		},
	}
}

// viewHOTP persists the advanced counter and then prints the code for
// the counter it replaced, so a code is never shown twice when saving
// fails. The file is reopened after the pull so the counter reflects
// the latest remote state.
func viewHOTP(ctx context.Context, s *session, name string) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}
	file, err := s.openOTPFile(ctx)
	if err != nil {
		return err
	}
	defer file.Close()

	account, ok := file.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", otp.ErrAccountNotFound, name)
	}
	// HOTP codes do not depend on the time.
	code, err := account.Code(time.Time{})
	if err != nil {
		return err
	}

	if _, err := file.IncrementCounter(name); err != nil {
		return err
	}
	if err := s.saveOTPFile(ctx, file); err != nil {
		return fmt.Errorf("saving advanced counter: %w", err)
	}
	s.logger.Debug("advanced HOTP counter", "name", name)
	fmt.Fprintln(cli.Stdout, styled(cli.Code, code))
	return s.finalize(ctx, fmt.Sprintf("Advance OTP counter of %s", name))
}

// watchTOTP redraws the code and countdown every second until ctx is
// cancelled.
func watchTOTP(ctx context.Context, c clock.Clock, account otp.Account) error {
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	period := time.Duration(account.Period) * time.Second
	for {
		current := c.Now()
		code, err := account.Code(current)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.Stdout, "\r%s %s", styled(cli.Code, code), cli.Countdown(account.Remaining(current), period))

		select {
		case <-ctx.Done():
			fmt.Fprintln(cli.Stdout)
			return nil
		case <-ticker.C:
		}
	}
}

type otpRemoveParams struct {
	cli.GlobalParams
}

func otpRemoveCommand() *cli.Command {
	var params otpRemoveParams

	return &cli.Command{
		Name:    "remove",
		Summary: "Remove an OTP account",
		Usage:   "passkeep otp remove <name> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one account name")
			}
			name := args[0]

			session, err := openSession(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.prepare(ctx); err != nil {
				return err
			}
			file, err := session.openOTPFile(ctx)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, ok := file.Delete(name); !ok {
				return fmt.Errorf("%w: %s", otp.ErrAccountNotFound, name)
			}
			if err := session.saveOTPFile(ctx, file); err != nil {
				return err
			}
			logger.Info("removed OTP account", "name", name)
			return session.finalize(ctx, fmt.Sprintf("Remove OTP account %s", name))
		},
	}
}
