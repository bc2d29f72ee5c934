// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

// Ciphertext is an encrypted secret as stored on disk. Its format is
// owned by the crypto backend that produced it; this package treats it
// as opaque bytes.
type Ciphertext struct {
	buffer *Buffer
}

// NewCiphertext copies data into protected memory and zeros data.
func NewCiphertext(data []byte) (*Ciphertext, error) {
	buffer, err := NewFromBytes(data)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{buffer: buffer}, nil
}

// UnsecureBytes returns the ciphertext bytes. The slice is invalid after
// Close.
func (c *Ciphertext) UnsecureBytes() []byte {
	return c.buffer.UnsecureBytes()
}

// Len returns the ciphertext size in bytes.
func (c *Ciphertext) Len() int {
	return c.buffer.Len()
}

// Close zeros and releases the ciphertext.
func (c *Ciphertext) Close() error {
	return c.buffer.Close()
}
