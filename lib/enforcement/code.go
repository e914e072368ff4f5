// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package enforcement

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/keygate/lib/authset"
)

// Code is a stable result code. The numeric values are part of the
// service protocol and never change.
type Code int32

const (
	OK                      Code = 0
	UnsupportedPurpose      Code = -2
	IncompatiblePurpose     Code = -3
	InvalidUserID           Code = -15
	KeyNotYetValid          Code = -24
	KeyExpired              Code = -25
	KeyUserNotAuthenticated Code = -26
	TooManyOperations       Code = -31
	InvalidTag              Code = -40
	InvalidRescoping        Code = -42
)

// String returns the canonical name of the code.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case UnsupportedPurpose:
		return "UNSUPPORTED_PURPOSE"
	case IncompatiblePurpose:
		return "INCOMPATIBLE_PURPOSE"
	case InvalidUserID:
		return "INVALID_USER_ID"
	case KeyNotYetValid:
		return "KEY_NOT_YET_VALID"
	case KeyExpired:
		return "KEY_EXPIRED"
	case KeyUserNotAuthenticated:
		return "KEY_USER_NOT_AUTHENTICATED"
	case TooManyOperations:
		return "TOO_MANY_OPERATIONS"
	case InvalidTag:
		return "INVALID_TAG"
	case InvalidRescoping:
		return "INVALID_RESCOPING"
	default:
		return fmt.Sprintf("CODE(%d)", int32(c))
	}
}

// Error makes a Code usable as an error so callers can test results
// with errors.Is(err, enforcement.KeyExpired).
func (c Code) Error() string {
	switch c {
	case UnsupportedPurpose:
		return "unsupported purpose"
	case IncompatiblePurpose:
		return "purpose not granted by key"
	case InvalidUserID:
		return "caller identity does not match key"
	case KeyNotYetValid:
		return "key not yet valid"
	case KeyExpired:
		return "key expired"
	case KeyUserNotAuthenticated:
		return "user not authenticated"
	case TooManyOperations:
		return "too many operations"
	case InvalidTag:
		return "contradictory tags"
	case InvalidRescoping:
		return "rescoping not permitted"
	default:
		return c.String()
	}
}

// Denial is the error returned for a refused request. It unwraps to its
// Code and names the tag kind that caused the refusal. APPLICATION_ID
// mismatches carry InvalidUserID like USER_ID mismatches; Kind tells
// them apart.
type Denial struct {
	Code Code

	// Kind is the tag whose check failed. For purpose failures it is
	// PURPOSE; for rescoping failures it is the kind whose addition,
	// removal or change was not granted.
	Kind authset.Kind

	// ConflictsWith is the second tag of a contradictory pair. Only set
	// when Code is InvalidTag.
	ConflictsWith authset.Kind
}

func (d *Denial) Error() string {
	if d.Code == InvalidTag {
		return fmt.Sprintf("%v: %s conflicts with %s", d.Code, d.Kind, d.ConflictsWith)
	}
	return fmt.Sprintf("%v (%s)", d.Code, d.Kind)
}

func (d *Denial) Unwrap() error { return d.Code }

// CodeOf returns the Code carried by err: OK for nil, the denial's code
// for a Denial or Code anywhere in the chain. Any other error maps to
// InvalidTag, the closest code to "request could not be evaluated".
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var code Code
	if errors.As(err, &code) {
		return code
	}
	return InvalidTag
}

func deny(code Code, kind authset.Kind) error {
	return &Denial{Code: code, Kind: kind}
}
