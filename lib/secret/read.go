// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrEmptyInput is returned by [ReadPlaintext] when the source holds
// nothing but whitespace.
var ErrEmptyInput = errors.New("secret: input is empty")

// ReadPlaintext reads a secret value from a file path, or from stdin if
// path is "-". Leading and trailing whitespace is trimmed. The returned
// plaintext must be closed by the caller.
func ReadPlaintext(path string) (*Plaintext, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			Zero(data)
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, ErrEmptyInput
	}

	// NewPlaintext zeros trimmed; the whitespace around it is zeroed
	// with the rest of data.
	plaintext, err := NewPlaintext(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// ReadCiphertext reads an encrypted secret file. An empty file yields an
// empty ciphertext.
func ReadCiphertext(path string) (*Ciphertext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewCiphertext(data)
}
