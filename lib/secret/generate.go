// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultPasswordLength is the length GeneratePassword callers use when
// the user asks for none.
const DefaultPasswordLength = 24

// PasswordAlphabet is the character set of generated passwords: ASCII
// letters, digits and punctuation that needs no shell quoting inside
// single quotes.
const PasswordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789" +
	"!#$%&()*+,-./:;<=>?@[]^_{|}~"

// GeneratePassword returns length characters drawn uniformly from
// PasswordAlphabet with crypto/rand. The characters are written
// straight into protected memory.
func GeneratePassword(length int) (*Plaintext, error) {
	if length <= 0 {
		return nil, fmt.Errorf("secret: password length must be positive, got %d", length)
	}
	buffer, err := New(length)
	if err != nil {
		return nil, err
	}
	limit := big.NewInt(int64(len(PasswordAlphabet)))
	for i := range length {
		index, err := rand.Int(rand.Reader, limit)
		if err != nil {
			buffer.Close()
			return nil, fmt.Errorf("secret: reading random bytes: %w", err)
		}
		buffer.data[i] = PasswordAlphabet[index.Int64()]
	}
	return &Plaintext{buffer: buffer}, nil
}
