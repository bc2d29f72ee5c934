// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ErrNotUTF8 is returned when a plaintext is read as text but does not
// hold valid UTF-8.
var ErrNotUTF8 = errors.New("secret: plaintext is not valid UTF-8")

// Plaintext is a decrypted secret. The zero value is not usable; build
// one with [NewPlaintext], [PlaintextFromString] or [EmptyPlaintext].
type Plaintext struct {
	buffer *Buffer
}

// NewPlaintext copies data into protected memory and zeros data.
func NewPlaintext(data []byte) (*Plaintext, error) {
	buffer, err := NewFromBytes(data)
	if err != nil {
		return nil, err
	}
	return &Plaintext{buffer: buffer}, nil
}

// PlaintextFromString copies text into protected memory. The string
// itself cannot be zeroed; prefer [NewPlaintext] when the caller owns
// a byte slice.
func PlaintextFromString(text string) (*Plaintext, error) {
	return NewPlaintext([]byte(text))
}

// EmptyPlaintext returns a plaintext with no content.
func EmptyPlaintext() *Plaintext {
	return &Plaintext{buffer: &Buffer{}}
}

// UnsecureBytes returns the plaintext bytes, pointing into protected
// memory. The slice is invalid after Close.
func (p *Plaintext) UnsecureBytes() []byte {
	return p.buffer.UnsecureBytes()
}

// UnsecureString decodes the plaintext as UTF-8 into a heap string.
func (p *Plaintext) UnsecureString() (string, error) {
	data := p.buffer.UnsecureBytes()
	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}
	return string(data), nil
}

// FirstLine returns a new plaintext holding the first line, without its
// line terminator. A carriage return before the newline is dropped too.
func (p *Plaintext) FirstLine() (*Plaintext, error) {
	data := p.buffer.UnsecureBytes()
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	line, _, _ := bytes.Cut(data, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return p.derive(line)
}

// ExceptFirstLine returns a new plaintext holding every line after the
// first, joined with "\n". The trailing terminator of the last line is
// not kept.
func (p *Plaintext) ExceptFirstLine() (*Plaintext, error) {
	data := p.buffer.UnsecureBytes()
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	_, rest, found := bytes.Cut(data, []byte("\n"))
	if !found {
		return EmptyPlaintext(), nil
	}
	rest = bytes.TrimSuffix(rest, []byte("\n"))
	rest = bytes.TrimSuffix(rest, []byte("\r"))

	// Normalize CRLF line endings while copying into fresh protected
	// memory, so no unprotected intermediate holds the lines.
	size := len(rest) - bytes.Count(rest, []byte("\r\n"))
	buffer, err := New(size)
	if err != nil {
		return nil, err
	}
	target := buffer.data[:0]
	for len(rest) > 0 {
		line, remainder, more := bytes.Cut(rest, []byte("\n"))
		target = append(target, bytes.TrimSuffix(line, []byte("\r"))...)
		if more {
			target = append(target, '\n')
		}
		rest = remainder
	}
	buffer.length = len(target)
	return &Plaintext{buffer: buffer}, nil
}

// Append adds other to the end of the plaintext, separated by a newline
// when newline is set. The receiver's old memory is zeroed and
// released; other is left untouched.
func (p *Plaintext) Append(other *Plaintext, newline bool) error {
	current := p.buffer.UnsecureBytes()
	addition := other.buffer.UnsecureBytes()

	size := len(current) + len(addition)
	if newline {
		size++
	}
	buffer, err := New(size)
	if err != nil {
		return fmt.Errorf("secret: growing plaintext: %w", err)
	}
	offset := copy(buffer.data, current)
	if newline {
		buffer.data[offset] = '\n'
		offset++
	}
	copy(buffer.data[offset:], addition)

	previous := p.buffer
	p.buffer = buffer
	return previous.Close()
}

// IsEmpty reports whether the plaintext has no bytes, or holds valid
// UTF-8 made only of whitespace.
func (p *Plaintext) IsEmpty() bool {
	data := p.buffer.UnsecureBytes()
	if len(data) == 0 {
		return true
	}
	if !utf8.Valid(data) {
		return false
	}
	return len(bytes.TrimFunc(data, unicode.IsSpace)) == 0
}

// Len returns the plaintext size in bytes.
func (p *Plaintext) Len() int {
	return p.buffer.Len()
}

// Close zeros and releases the plaintext.
func (p *Plaintext) Close() error {
	return p.buffer.Close()
}

// derive copies a sub-slice of the receiver into a new plaintext
// without zeroing the receiver.
func (p *Plaintext) derive(part []byte) (*Plaintext, error) {
	buffer, err := New(len(part))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, part)
	return &Plaintext{buffer: buffer}, nil
}
