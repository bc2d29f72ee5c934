// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package otp

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"
)

// HashFunction selects the HMAC hash of an account.
type HashFunction int

const (
	SHA1 HashFunction = iota
	SHA256
	SHA384
	SHA512
)

var hashNames = [...]string{SHA1: "SHA1", SHA256: "SHA256", SHA384: "SHA384", SHA512: "SHA512"}

// String returns the serialized name ("SHA1", "SHA256", ...).
func (h HashFunction) String() string {
	if h < 0 || int(h) >= len(hashNames) {
		return fmt.Sprintf("HashFunction(%d)", int(h))
	}
	return hashNames[h]
}

// ParseHashFunction reads user input leniently: "sha256", "SHA-256"
// and "256" all select SHA256. Anything unrecognized selects SHA1, the
// otpauth default.
func ParseHashFunction(name string) HashFunction {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "")
	switch normalized {
	case "sha256", "256":
		return SHA256
	case "sha384", "384":
		return SHA384
	case "sha512", "512":
		return SHA512
	default:
		return SHA1
	}
}

func (h HashFunction) new() func() hash.Hash {
	switch h {
	case SHA256:
		return sha256.New
	case SHA384:
		return sha512.New384
	case SHA512:
		return sha512.New
	default:
		return sha1.New
	}
}

// MarshalText implements encoding.TextMarshaler.
func (h HashFunction) MarshalText() ([]byte, error) {
	if h < 0 || int(h) >= len(hashNames) {
		return nil, fmt.Errorf("%w: unknown hash function %d", ErrSerialization, int(h))
	}
	return []byte(hashNames[h]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Stored names must
// be exact.
func (h *HashFunction) UnmarshalText(text []byte) error {
	for value, name := range hashNames {
		if string(text) == name {
			*h = HashFunction(value)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown hash function %q", ErrSerialization, text)
}
