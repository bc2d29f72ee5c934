// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package otp computes HOTP (RFC 4226) and TOTP (RFC 6238) codes and
// keeps OTP accounts in an encrypted side-file of the store.
//
// The side-file ([File]) is a single JSON document mapping account
// names to [Account] records, encrypted as one ciphertext at
// ".otp-codes.json" in the store root. It is always rewritten whole:
// [File.Save] encrypts the complete document before replacing the old
// file, so a failed save leaves the previous contents in place.
//
// Accounts are created with [NewAccount], which fills defaults (SHA1,
// six digits, 30 second period, time-based) and validates the result,
// or from an otpauth:// URI through [ParseURI].
package otp
