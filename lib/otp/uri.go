// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package otp

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidURI is returned by ParseURI for malformed otpauth URIs.
var ErrInvalidURI = errors.New("invalid otpauth URI")

// URI is the content of an otpauth:// key URI, with defaults applied
// for absent parameters.
type URI struct {
	Type         Type
	Issuer       string
	AccountName  string
	Secret       string
	HashFunction HashFunction
	Digits       int
	Period       uint64
	Counter      uint64
}

// ParseURI parses otpauth://TYPE/LABEL?secret=...&issuer=...&algorithm=
// ...&digits=...&period=...&counter=... The label is "issuer:account"
// or just "account"; an issuer parameter takes precedence over the
// label prefix. The secret is required and must decode.
func ParseURI(raw string) (URI, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return URI{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if parsed.Scheme != "otpauth" {
		return URI{}, fmt.Errorf("%w: scheme %q is not otpauth", ErrInvalidURI, parsed.Scheme)
	}

	result := URI{HashFunction: SHA1, Digits: DefaultDigits, Period: DefaultPeriod}
	switch strings.ToLower(parsed.Host) {
	case "totp":
		result.Type = TypeTOTP
	case "hotp":
		result.Type = TypeHOTP
	default:
		return URI{}, fmt.Errorf("%w: type %q is neither totp nor hotp", ErrInvalidURI, parsed.Host)
	}

	label := strings.TrimPrefix(parsed.Path, "/")
	if issuer, account, found := strings.Cut(label, ":"); found {
		result.Issuer = strings.TrimSpace(issuer)
		result.AccountName = strings.TrimSpace(account)
	} else {
		result.AccountName = strings.TrimSpace(label)
	}

	query := parsed.Query()
	result.Secret = NormalizeKey(query.Get("secret"))
	if result.Secret == "" {
		return URI{}, fmt.Errorf("%w: missing secret", ErrInvalidURI)
	}
	if _, err := DecodeKey(result.Secret); err != nil {
		return URI{}, err
	}
	if issuer := query.Get("issuer"); issuer != "" {
		result.Issuer = issuer
	}
	if algorithm := query.Get("algorithm"); algorithm != "" {
		result.HashFunction = ParseHashFunction(algorithm)
	}
	if digits := query.Get("digits"); digits != "" {
		value, err := strconv.Atoi(digits)
		if err != nil || value <= 0 || value > MaxDigits {
			return URI{}, fmt.Errorf("%w: digits %q", ErrInvalidURI, digits)
		}
		result.Digits = value
	}
	if period := query.Get("period"); period != "" {
		value, err := strconv.ParseUint(period, 10, 64)
		if err != nil || value == 0 {
			return URI{}, fmt.Errorf("%w: period %q", ErrInvalidURI, period)
		}
		result.Period = value
	}
	if counter := query.Get("counter"); counter != "" {
		value, err := strconv.ParseUint(counter, 10, 64)
		if err != nil {
			return URI{}, fmt.Errorf("%w: counter %q", ErrInvalidURI, counter)
		}
		result.Counter = value
	}
	return result, nil
}

// AccountParams returns the parameters of an account generated from
// the URI, named name and associated with the secret at path. The raw
// URI is kept on the account.
func (u URI) AccountParams(name, path, raw string) AccountParams {
	return AccountParams{
		Name:         name,
		Path:         path,
		Key:          u.Secret,
		URI:          raw,
		Type:         u.Type,
		HashFunction: u.HashFunction,
		Counter:      u.Counter,
		Period:       u.Period,
		Digits:       u.Digits,
	}
}

// Label returns "issuer:account", or the account name alone.
func (u URI) Label() string {
	if u.Issuer == "" {
		return u.AccountName
	}
	return u.Issuer + ":" + u.AccountName
}
