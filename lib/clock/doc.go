// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The enforcement engine compares policy timestamps against "now" and
// the service reports ledger state on a ticker. Both take a Clock so
// that tests can pin the current time and step it forward explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
//	enforcer := enforcement.New(enforcement.WithClock(c))
//	// ...
//	c.Advance(3 * time.Second)
//
// Production code uses Real(), which defers to the time package.
package clock
