// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that computes time-dependent values (TOTP codes, the remaining
// validity of a code) or waits for time to pass (the refreshing OTP
// display) takes a Clock instead of calling the time package directly.
// Real returns the standard library behavior; Fake returns a clock that
// stands still until the test calls Advance:
//
//	c := clock.Fake(time.Unix(59, 0))
//	code, _ := account.Code(c.Now())
//	c.Advance(30 * time.Second)
//
// Tickers and After channels registered on a FakeClock fire during
// Advance. WaitForTimers blocks until a goroutine under test has
// registered its waiters, so the test never races the registration.
package clock
