// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authtoken

import (
	"crypto/hmac"
	"fmt"
	"sync"

	"github.com/bureau-foundation/keygate/lib/secret"
)

// Verifier authenticates tokens and tracks the newest timestamp seen
// from each authenticator. Safe for concurrent use.
type Verifier struct {
	key *secret.Buffer

	mu     sync.Mutex
	newest map[uint32]uint32
}

// NewVerifier returns a Verifier using key. key is borrowed; the caller
// closes it after the Verifier is no longer used.
func NewVerifier(key *secret.Buffer) *Verifier {
	return &Verifier{
		key:    key,
		newest: make(map[uint32]uint32),
	}
}

// Verify checks raw and, if it is authentic and fresh, records its
// timestamp and returns the decoded token.
func (v *Verifier) Verify(raw []byte) (*Token, error) {
	token, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	expected := computeMAC(v.key.Bytes(), raw[:macOffset])
	if !hmac.Equal(expected, raw[macOffset:]) {
		return nil, ErrInvalidMAC
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if newest, seen := v.newest[token.AuthenticatorID]; seen && token.Timestamp <= newest {
		return nil, fmt.Errorf("%w: authenticator %d timestamp %d, last accepted %d",
			ErrReplayed, token.AuthenticatorID, token.Timestamp, newest)
	}
	v.newest[token.AuthenticatorID] = token.Timestamp
	return token, nil
}
