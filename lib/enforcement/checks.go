// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package enforcement

import (
	"time"

	"github.com/bureau-foundation/keygate/lib/authset"
	"github.com/bureau-foundation/keygate/lib/ledger"
)

// evaluation is the state one AuthorizeOperation call hands to each
// checker. The ledger is read-only to checkers.
type evaluation struct {
	operation *Operation
	now       time.Time
	ledger    *ledger.Ledger
}

// checker evaluates one tag. Returning anything but OK ends evaluation.
type checker func(tag authset.Tag, e *evaluation) Code

// checkers maps tag kinds to their checks. Kinds not listed are
// presence-only or descriptive and always pass.
var checkers = map[authset.Kind]checker{
	authset.TagActiveDatetime:            checkActive,
	authset.TagOriginationExpireDatetime: checkOriginationExpire,
	authset.TagUsageExpireDatetime:       checkUsageExpire,
	authset.TagMinSecondsBetweenOps:      checkMinSeconds,
	authset.TagSingleUsePerBoot:          checkSingleUse,
	authset.TagUserID:                    checkUserID,
	authset.TagApplicationID:             checkApplicationID,
	authset.TagAuthTimeout:               checkOperationAuthTimeout,
	authset.TagRescopeAuthTimeout:        checkOperationAuthTimeout,
}

// conflictingPairs lists tag kinds that must not appear together.
var conflictingPairs = [][2]authset.Kind{
	{authset.TagAllUsers, authset.TagUserID},
	{authset.TagUserAuthID, authset.TagNoAuthRequired},
	{authset.TagAllApplications, authset.TagApplicationID},
}

func checkPurpose(purpose authset.Purpose, policy authset.Set) error {
	if !purpose.Valid() {
		return deny(UnsupportedPurpose, authset.TagPurpose)
	}
	granted := false
	for _, tag := range policy.All(authset.TagPurpose) {
		declared := authset.Purpose(tag.Integer)
		if tag.Integer > uint64(^uint32(0)) || !declared.Valid() {
			return deny(UnsupportedPurpose, authset.TagPurpose)
		}
		if declared == purpose {
			granted = true
		}
	}
	if !granted {
		return deny(IncompatiblePurpose, authset.TagPurpose)
	}
	return nil
}

func checkConflicts(policy authset.Set) error {
	for _, pair := range conflictingPairs {
		if policy.Contains(pair[0]) && policy.Contains(pair[1]) {
			return &Denial{Code: InvalidTag, Kind: pair[0], ConflictsWith: pair[1]}
		}
	}
	return nil
}

func checkActive(tag authset.Tag, e *evaluation) Code {
	if e.now.Unix() < tag.Unix() {
		return KeyNotYetValid
	}
	return OK
}

// Origination expiry bounds signing only; a key past it can still
// verify signatures it made earlier.
func checkOriginationExpire(tag authset.Tag, e *evaluation) Code {
	if e.operation.Purpose == authset.PurposeSign && e.now.Unix() > tag.Unix() {
		return KeyExpired
	}
	return OK
}

func checkUsageExpire(tag authset.Tag, e *evaluation) Code {
	if e.operation.Purpose == authset.PurposeVerify && e.now.Unix() > tag.Unix() {
		return KeyExpired
	}
	return OK
}

// A key never accessed has last access at the zero time; the elapsed
// duration saturates and always clears the interval.
func checkMinSeconds(tag authset.Tag, e *evaluation) Code {
	last := e.ledger.LastAccess(e.operation.KeyID)
	if e.now.Sub(last) < tag.Seconds() {
		return TooManyOperations
	}
	return OK
}

func checkSingleUse(tag authset.Tag, e *evaluation) Code {
	if !ledger.IsNever(e.ledger.LastAccess(e.operation.KeyID)) {
		return TooManyOperations
	}
	return OK
}

func checkUserID(tag authset.Tag, e *evaluation) Code {
	if uint64(e.operation.CallerUID/UsersRange) != tag.Integer {
		return InvalidUserID
	}
	return OK
}

func checkApplicationID(tag authset.Tag, e *evaluation) Code {
	presented := authset.BytesTag(authset.TagApplicationID, e.operation.ApplicationID)
	if !authset.Equal(tag, presented) || e.operation.Policy.Contains(authset.TagAllApplications) {
		return InvalidUserID
	}
	return OK
}

func checkOperationAuthTimeout(tag authset.Tag, e *evaluation) Code {
	return checkAuthTimeout(tag, e.now, e.ledger)
}

// checkAuthTimeout passes once the last user authentication is older
// than the tag's timeout, and when no authentication has been recorded.
// An authentication within the window denies.
func checkAuthTimeout(tag authset.Tag, now time.Time, l *ledger.Ledger) Code {
	last := l.LastUserAuthentication()
	if ledger.IsNever(last) || now.Sub(last) > tag.Seconds() {
		return OK
	}
	return KeyUserNotAuthenticated
}
