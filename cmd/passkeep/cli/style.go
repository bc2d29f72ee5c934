// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	codeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// SecretName styles a secret or account name.
func SecretName(name string) string { return nameStyle.Render(name) }

// Code styles an OTP code.
func Code(code string) string { return codeStyle.Render(code) }

// Faint styles secondary information such as fingerprints.
func Faint(text string) string { return faintStyle.Render(text) }

// Good, Warn and Bad style status words.
func Good(text string) string { return goodStyle.Render(text) }
func Warn(text string) string { return warnStyle.Render(text) }
func Bad(text string) string  { return badStyle.Render(text) }

// Countdown renders the remaining validity of a TOTP code as seconds
// and a bar of one cell per second of the period: elapsed seconds as
// "-", the current position as "<" and the rest as "=". The seconds
// turn yellow and then red as the code nears expiry.
func Countdown(remaining, period time.Duration) string {
	periodSeconds := int(period / time.Second)
	remainingSeconds := int((remaining + time.Second - 1) / time.Second)
	if periodSeconds <= 0 {
		return ""
	}
	remainingSeconds = max(1, min(remainingSeconds, periodSeconds))
	elapsed := periodSeconds - remainingSeconds

	seconds := fmt.Sprintf("%2ds", remainingSeconds)
	switch {
	case remainingSeconds > 12:
		seconds = goodStyle.Render(seconds)
	case remainingSeconds > 6:
		seconds = warnStyle.Render(seconds)
	default:
		seconds = badStyle.Render(seconds)
	}

	bar := badStyle.Render(strings.Repeat("-", elapsed)) +
		goodStyle.Bold(true).Render("<") +
		goodStyle.Render(strings.Repeat("=", remainingSeconds-1))
	return seconds + " [" + bar + "]"
}
