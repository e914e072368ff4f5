// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package enforcement

import (
	"sync"
	"time"

	"github.com/bureau-foundation/keygate/lib/authset"
	"github.com/bureau-foundation/keygate/lib/clock"
	"github.com/bureau-foundation/keygate/lib/ledger"
)

// UsersRange is the number of application UIDs allotted to each user.
// A caller UID encodes the user as uid / UsersRange and the application
// as uid % UsersRange.
const UsersRange = 100000

// KeyID aliases the ledger key identifier so callers need not import
// the ledger package.
type KeyID = ledger.KeyID

// Operation is one request to use a key.
type Operation struct {
	Purpose authset.Purpose
	KeyID   KeyID
	Policy  authset.Set

	// CallerUID is the full caller UID, user and application combined.
	CallerUID uint32

	// ApplicationID is the opaque application identity presented by
	// the caller. Compared byte for byte with APPLICATION_ID.
	ApplicationID []byte
}

// Rescope is one request to replace a key's authorization set.
type Rescope struct {
	KeyID     KeyID
	OldPolicy authset.Set
	NewPolicy authset.Set
	CallerUID uint32
}

// Stats is a point-in-time snapshot of enforcer state.
type Stats struct {
	// TrackedKeys is the number of keys with a recorded access.
	TrackedKeys int

	// LastUserAuthentication is the zero time if no authentication
	// has been recorded since the enforcer was created.
	LastUserAuthentication time.Time
}

// Enforcer evaluates operation and rescope requests against key
// policies. The zero value is not usable; construct with New. All
// methods are safe for concurrent use.
type Enforcer struct {
	clock clock.Clock

	mu     sync.Mutex
	ledger *ledger.Ledger
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithClock sets the time source. Defaults to clock.Real().
func WithClock(c clock.Clock) Option {
	return func(e *Enforcer) { e.clock = c }
}

// New creates an Enforcer with an empty ledger.
func New(options ...Option) *Enforcer {
	enforcer := &Enforcer{
		clock:  clock.Real(),
		ledger: ledger.New(),
	}
	for _, option := range options {
		option(enforcer)
	}
	return enforcer
}

// now returns the current time at second resolution.
func (e *Enforcer) now() time.Time {
	return e.clock.Now().Truncate(time.Second)
}

// AuthorizeOperation decides whether op may proceed. It returns nil on
// success, after recording the access for op.KeyID. A refusal is a
// *Denial; use CodeOf or errors.Is to inspect it.
func (e *Enforcer) AuthorizeOperation(op Operation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkPurpose(op.Purpose, op.Policy); err != nil {
		return err
	}
	if err := checkConflicts(op.Policy); err != nil {
		return err
	}

	evaluation := &evaluation{
		operation: &op,
		now:       e.now(),
		ledger:    e.ledger,
	}
	for _, tag := range op.Policy {
		check, ok := checkers[tag.Kind]
		if !ok {
			continue
		}
		if code := check(tag, evaluation); code != OK {
			return deny(code, tag.Kind)
		}
	}

	e.ledger.RecordAccess(op.KeyID, evaluation.now)
	return nil
}

// RecordUserAuthentication stamps the current time as the most recent
// successful user authentication. Callers verify the authentication
// before calling; the enforcer takes it on trust.
func (e *Enforcer) RecordUserAuthentication() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	e.ledger.RecordUserAuthentication(now)
	return now
}

// LastAccess returns the time of the last successful operation on id,
// or the zero time if there has been none.
func (e *Enforcer) LastAccess(id KeyID) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.LastAccess(id)
}

// Stats returns a snapshot of the enforcer's state.
func (e *Enforcer) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		TrackedKeys:            e.ledger.Len(),
		LastUserAuthentication: e.ledger.LastUserAuthentication(),
	}
}
