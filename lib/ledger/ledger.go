// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger records when each key was last used and when the user
// last authenticated. The enforcement engine reads it to apply rate
// limits, single-use constraints and authentication timeouts.
//
// A Ledger is not safe for concurrent use. Its only owner is the
// enforcement engine, which serializes every read-then-write under one
// lock; a second, internal lock would not close the gap between a
// check and the access it records.
package ledger

import "time"

// KeyID is the host's opaque handle for a key.
type KeyID uint64

// IsNever reports whether t is the time returned for a key that has not
// been used, or when no user authentication has been recorded. That
// time is the zero time.Time, earlier than any real timestamp.
func IsNever(t time.Time) bool {
	return t.IsZero()
}

// Ledger holds one access record per key plus the process-wide time of
// the last user authentication. Records are created on first use,
// updated on every later use, and never removed: the key population is
// bounded by the host's key table.
type Ledger struct {
	lastAccess map[KeyID]time.Time
	lastAuth   time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{lastAccess: make(map[KeyID]time.Time)}
}

// RecordAccess sets the last-access time of id to now, creating the
// record if needed.
func (l *Ledger) RecordAccess(id KeyID, now time.Time) {
	l.lastAccess[id] = now
}

// LastAccess returns the last-access time of id, or the zero time if
// the key has not been used.
func (l *Ledger) LastAccess(id KeyID) time.Time {
	return l.lastAccess[id]
}

// RecordUserAuthentication sets the last user-authentication time.
func (l *Ledger) RecordUserAuthentication(now time.Time) {
	l.lastAuth = now
}

// LastUserAuthentication returns the last user-authentication time, or
// the zero time if none has been recorded.
func (l *Ledger) LastUserAuthentication() time.Time {
	return l.lastAuth
}

// Len returns the number of keys with an access record.
func (l *Ledger) Len() int {
	return len(l.lastAccess)
}
