// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package otp

import (
	"crypto/hmac"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultDigits is the code length when none is given.
	DefaultDigits = 6

	// DefaultPeriod is the TOTP time step in seconds.
	DefaultPeriod = 30

	// MaxDigits is the longest code a 31-bit truncated value can fill.
	MaxDigits = 9
)

var (
	// ErrInvalidDigest is returned when an HMAC digest is too short for
	// dynamic truncation.
	ErrInvalidDigest = errors.New("invalid HMAC digest")

	// ErrInvalidTime is returned for TOTP computations before the Unix
	// epoch or with a zero period.
	ErrInvalidTime = errors.New("invalid time for TOTP")

	// ErrInvalidDigits is returned for code lengths outside 1..MaxDigits.
	ErrInvalidDigits = errors.New("invalid number of OTP digits")
)

// HOTP computes the RFC 4226 code for counter. digits <= 0 means
// DefaultDigits.
func HOTP(key []byte, counter uint64, hashFunction HashFunction, digits int) (string, error) {
	if digits <= 0 {
		digits = DefaultDigits
	}
	if digits > MaxDigits {
		return "", fmt.Errorf("%w: %d", ErrInvalidDigits, digits)
	}

	var message [8]byte
	binary.BigEndian.PutUint64(message[:], counter)
	mac := hmac.New(hashFunction.new(), key)
	mac.Write(message[:])
	return truncate(mac.Sum(nil), digits)
}

// TOTP computes the RFC 6238 code for the time step containing now.
// period is in seconds.
func TOTP(key []byte, period uint64, hashFunction HashFunction, digits int, now time.Time) (string, error) {
	counter, err := timeStep(period, now)
	if err != nil {
		return "", err
	}
	return HOTP(key, counter, hashFunction, digits)
}

func timeStep(period uint64, now time.Time) (uint64, error) {
	if period == 0 {
		return 0, fmt.Errorf("%w: period is zero", ErrInvalidTime)
	}
	seconds := now.Unix()
	if seconds < 0 {
		return 0, fmt.Errorf("%w: %s is before the Unix epoch", ErrInvalidTime, now.UTC().Format(time.RFC3339))
	}
	return uint64(seconds) / period, nil
}

// truncate applies RFC 4226 dynamic truncation and formats the result
// zero-padded to digits.
func truncate(digest []byte, digits int) (string, error) {
	if len(digest) < 20 {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidDigest, len(digest))
	}
	offset := int(digest[len(digest)-1] & 0x0f)
	value := binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff

	modulus := uint32(1)
	for range digits {
		modulus *= 10
	}
	return fmt.Sprintf("%0*d", digits, value%modulus), nil
}
