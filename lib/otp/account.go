// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package otp

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAccount is returned by Validate and NewAccount.
var ErrInvalidAccount = errors.New("invalid OTP account")

// Type distinguishes time-based from counter-based accounts.
type Type int

const (
	TypeTOTP Type = iota
	TypeHOTP
)

func (t Type) String() string {
	if t == TypeHOTP {
		return "hotp"
	}
	return "totp"
}

// Account is one stored OTP generator. A TOTP account has no Counter;
// an HOTP account always has one.
type Account struct {
	Name         string       `json:"name"`
	URI          string       `json:"uri,omitempty"`
	Path         string       `json:"path"`
	Key          string       `json:"key"`
	TOTP         bool         `json:"totp"`
	HashFunction HashFunction `json:"hash_function"`
	Counter      *uint64      `json:"counter"`
	Period       uint64       `json:"period"`
	Digits       int          `json:"digits,omitempty"`
}

// AccountParams holds the inputs of NewAccount. Zero values select the
// defaults: TOTP, SHA1, DefaultPeriod and DefaultDigits.
type AccountParams struct {
	Name         string
	Path         string
	Key          string
	URI          string
	Type         Type
	HashFunction HashFunction
	Counter      uint64
	Period       uint64
	Digits       int
}

// NewAccount builds and validates an account. The key is stored in
// normalized form.
func NewAccount(params AccountParams) (Account, error) {
	account := Account{
		Name:         params.Name,
		URI:          params.URI,
		Path:         params.Path,
		Key:          NormalizeKey(params.Key),
		TOTP:         params.Type == TypeTOTP,
		HashFunction: params.HashFunction,
		Period:       params.Period,
	}
	if account.Period == 0 {
		account.Period = DefaultPeriod
	}
	if params.Digits != 0 && params.Digits != DefaultDigits {
		account.Digits = params.Digits
	}
	if !account.TOTP {
		counter := params.Counter
		account.Counter = &counter
	}
	if err := account.Validate(); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Validate checks the account's invariants.
func (a Account) Validate() error {
	var problems []error
	if a.Name == "" {
		problems = append(problems, errors.New("name is empty"))
	}
	if _, err := DecodeKey(a.Key); err != nil {
		problems = append(problems, err)
	}
	switch {
	case a.TOTP && a.Counter != nil:
		problems = append(problems, errors.New("time-based account has a counter"))
	case !a.TOTP && a.Counter == nil:
		problems = append(problems, errors.New("counter-based account has no counter"))
	}
	if a.TOTP && a.Period == 0 {
		problems = append(problems, errors.New("period is zero"))
	}
	if a.Digits < 0 || a.Digits > MaxDigits {
		problems = append(problems, fmt.Errorf("%w: %d", ErrInvalidDigits, a.Digits))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidAccount, a.Name, errors.Join(problems...))
	}
	return nil
}

// Type returns the account type.
func (a Account) Type() Type {
	if a.TOTP {
		return TypeTOTP
	}
	return TypeHOTP
}

// EffectiveDigits returns the code length, applying the default.
func (a Account) EffectiveDigits() int {
	if a.Digits == 0 {
		return DefaultDigits
	}
	return a.Digits
}

// Code returns the current code. For HOTP accounts the stored counter
// is used and now is ignored.
func (a Account) Code(now time.Time) (string, error) {
	key, err := DecodeKey(a.Key)
	if err != nil {
		return "", err
	}
	if a.TOTP {
		return TOTP(key, a.Period, a.HashFunction, a.EffectiveDigits(), now)
	}
	if a.Counter == nil {
		return "", fmt.Errorf("%w %q: counter-based account has no counter", ErrInvalidAccount, a.Name)
	}
	return HOTP(key, *a.Counter, a.HashFunction, a.EffectiveDigits())
}

// Remaining returns how long the TOTP code for now stays valid. It is
// zero for HOTP accounts and invalid periods.
func (a Account) Remaining(now time.Time) time.Duration {
	if !a.TOTP || a.Period == 0 || now.Unix() < 0 {
		return 0
	}
	period := time.Duration(a.Period) * time.Second
	elapsed := time.Duration(uint64(now.Unix())%a.Period)*time.Second + time.Duration(now.Nanosecond())
	return period - elapsed
}
