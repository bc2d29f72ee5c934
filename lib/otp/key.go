// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package otp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrKeyDecode is matched by every *KeyDecodeError.
var ErrKeyDecode = errors.New("OTP key is not valid base32")

// KeyDecodeError reports an OTP key that is not valid base32. The key
// is carried for the caller but kept out of the message.
type KeyDecodeError struct {
	Key string
	Err error
}

func (e *KeyDecodeError) Error() string {
	return fmt.Sprintf("%s: %v", ErrKeyDecode, e.Err)
}

func (e *KeyDecodeError) Unwrap() error { return e.Err }

func (e *KeyDecodeError) Is(target error) bool { return target == ErrKeyDecode }

var keyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NormalizeKey returns the canonical base32 form of an OTP key: upper
// case, without whitespace and padding.
func NormalizeKey(key string) string {
	key = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, key)
	return strings.TrimRight(key, "=")
}

// DecodeKey decodes an RFC 4648 base32 OTP key. Case, whitespace and
// trailing padding are tolerated.
func DecodeKey(key string) ([]byte, error) {
	normalized := NormalizeKey(key)
	if normalized == "" {
		return nil, &KeyDecodeError{Key: key, Err: errors.New("empty key")}
	}
	decoded, err := keyEncoding.DecodeString(normalized)
	if err != nil {
		return nil, &KeyDecodeError{Key: key, Err: err}
	}
	return decoded, nil
}
