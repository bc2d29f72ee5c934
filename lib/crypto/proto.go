// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"fmt"
	"strings"
)

// Proto names an encryption protocol.
type Proto int

const (
	// ProtoGPG is OpenPGP through the system gpg binary.
	ProtoGPG Proto = iota

	// ProtoAge is the age file encryption format.
	ProtoAge
)

// Protos lists every supported protocol.
var Protos = []Proto{ProtoGPG, ProtoAge}

func (p Proto) String() string {
	switch p {
	case ProtoGPG:
		return "gpg"
	case ProtoAge:
		return "age"
	default:
		return fmt.Sprintf("Proto(%d)", int(p))
	}
}

// ParseProto parses a protocol name as written in configuration. "gpg",
// "gnupg" and "openpgp" all select GPG.
func ParseProto(name string) (Proto, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gpg", "gnupg", "openpgp":
		return ProtoGPG, nil
	case "age":
		return ProtoAge, nil
	default:
		return 0, fmt.Errorf("unknown crypto protocol %q (expected gpg or age)", name)
	}
}

// SecretSuffix returns the file suffix of secrets encrypted with p.
func (p Proto) SecretSuffix() string {
	if p == ProtoAge {
		return ".age"
	}
	return ".gpg"
}

// RecipientsFile returns the name of the recipients file at the store
// root for p.
func (p Proto) RecipientsFile() string {
	if p == ProtoAge {
		return ".age-recipients"
	}
	return ".gpg-id"
}

// MarshalText implements encoding.TextMarshaler.
func (p Proto) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so a Proto can be
// a YAML or JSON field.
func (p *Proto) UnmarshalText(text []byte) error {
	parsed, err := ParseProto(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
