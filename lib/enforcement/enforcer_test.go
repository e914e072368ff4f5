// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package enforcement

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/keygate/lib/authset"
	"github.com/bureau-foundation/keygate/lib/clock"
)

var testClockEpoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestEnforcer(t *testing.T) (*Enforcer, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(testClockEpoch)
	return New(WithClock(fake)), fake
}

// authorize runs one operation and returns its code.
func authorize(enforcer *Enforcer, purpose authset.Purpose, keyID KeyID, policy authset.Set, callerUID uint32) Code {
	return CodeOf(enforcer.AuthorizeOperation(Operation{
		Purpose:   purpose,
		KeyID:     keyID,
		Policy:    policy,
		CallerUID: callerUID,
	}))
}

func expectCode(t *testing.T, label string, got, want Code) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", label, got, want)
	}
}

func TestPurposeGating(t *testing.T) {
	purposes := []authset.Purpose{
		authset.PurposeEncrypt, authset.PurposeDecrypt, authset.PurposeSign, authset.PurposeVerify,
	}
	// Every subset of the four purposes, by bitmask.
	for mask := 0; mask < 1<<len(purposes); mask++ {
		var policy authset.Set
		granted := make(map[authset.Purpose]bool)
		for bit, purpose := range purposes {
			if mask&(1<<bit) != 0 {
				policy = append(policy, authset.PurposeTag(purpose))
				granted[purpose] = true
			}
		}
		enforcer, _ := newTestEnforcer(t)
		for _, purpose := range purposes {
			want := IncompatiblePurpose
			if granted[purpose] {
				want = OK
			}
			got := authorize(enforcer, purpose, KeyID(mask), policy, 0)
			if got != want {
				t.Errorf("mask %04b purpose %v: got %v, want %v", mask, purpose, got, want)
			}
		}
	}
}

func TestInvalidPurpose(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{authset.PurposeTag(authset.PurposeSign)}

	// The wire value -1 arrives as the all-ones uint32.
	for _, purpose := range []authset.Purpose{authset.Purpose(^uint32(0)), 4} {
		err := enforcer.AuthorizeOperation(Operation{Purpose: purpose, Policy: policy})
		if !errors.Is(err, UnsupportedPurpose) {
			t.Errorf("purpose %d: got %v, want UnsupportedPurpose", uint32(purpose), err)
		}
	}
}

func TestMalformedDeclaredPurpose(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.EnumTag(authset.TagPurpose, 7),
	}
	// A malformed declaration poisons the whole policy, even for a
	// purpose that is granted.
	for _, purpose := range []authset.Purpose{authset.PurposeSign, authset.PurposeEncrypt} {
		expectCode(t, purpose.String(), authorize(enforcer, purpose, 1, policy, 0), UnsupportedPurpose)
	}
}

func TestActiveDatetime(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)

	future := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.DateTag(authset.TagActiveDatetime, testClockEpoch.Add(time.Hour)),
	}
	expectCode(t, "future", authorize(enforcer, authset.PurposeSign, 1, future, 0), KeyNotYetValid)

	past := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.DateTag(authset.TagActiveDatetime, testClockEpoch.Add(-time.Hour)),
	}
	expectCode(t, "past", authorize(enforcer, authset.PurposeSign, 2, past, 0), OK)

	exact := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.DateTag(authset.TagActiveDatetime, testClockEpoch),
	}
	expectCode(t, "exact", authorize(enforcer, authset.PurposeSign, 3, exact, 0), OK)
}

func TestActiveDatetimeBecomesValid(t *testing.T) {
	enforcer, fake := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeEncrypt),
		authset.DateTag(authset.TagActiveDatetime, testClockEpoch.Add(10*time.Second)),
	}
	expectCode(t, "before", authorize(enforcer, authset.PurposeEncrypt, 1, policy, 0), KeyNotYetValid)
	fake.Advance(10 * time.Second)
	expectCode(t, "after", authorize(enforcer, authset.PurposeEncrypt, 1, policy, 0), OK)
}

func TestFarFutureDates(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	for _, value := range []uint64{math.MaxInt64, math.MaxUint64, 1 << 40} {
		active := authset.Set{
			authset.PurposeTag(authset.PurposeSign),
			authset.UlongTag(authset.TagActiveDatetime, value),
		}
		label := fmt.Sprintf("active %d", value)
		expectCode(t, label, authorize(enforcer, authset.PurposeSign, 1, active, 0), KeyNotYetValid)

		expiring := authset.Set{
			authset.PurposeTag(authset.PurposeSign),
			authset.PurposeTag(authset.PurposeVerify),
			authset.UlongTag(authset.TagOriginationExpireDatetime, value),
			authset.UlongTag(authset.TagUsageExpireDatetime, value),
		}
		label = fmt.Sprintf("expiry %d", value)
		expectCode(t, label+" sign", authorize(enforcer, authset.PurposeSign, 2, expiring, 0), OK)
		expectCode(t, label+" verify", authorize(enforcer, authset.PurposeVerify, 2, expiring, 0), OK)
	}
}

func TestOversizedIntervals(t *testing.T) {
	const interval = 1 << 40

	t.Run("min seconds", func(t *testing.T) {
		enforcer, fake := newTestEnforcer(t)
		policy := authset.Set{
			authset.PurposeTag(authset.PurposeSign),
			authset.UlongTag(authset.TagMinSecondsBetweenOps, interval),
		}
		expectCode(t, "first use", authorize(enforcer, authset.PurposeSign, 1, policy, 0), OK)
		expectCode(t, "immediate reuse", authorize(enforcer, authset.PurposeSign, 1, policy, 0), TooManyOperations)
		fake.Advance(24 * time.Hour)
		expectCode(t, "a day later", authorize(enforcer, authset.PurposeSign, 1, policy, 0), TooManyOperations)
	})

	t.Run("auth timeout", func(t *testing.T) {
		enforcer, fake := newTestEnforcer(t)
		policy := authset.Set{
			authset.PurposeTag(authset.PurposeSign),
			authset.UlongTag(authset.TagAuthTimeout, interval),
		}
		expectCode(t, "never authenticated", authorize(enforcer, authset.PurposeSign, 1, policy, 0), OK)
		enforcer.RecordUserAuthentication()
		fake.Advance(24 * time.Hour)
		expectCode(t, "a day after authenticating", authorize(enforcer, authset.PurposeSign, 2, policy, 0), KeyUserNotAuthenticated)
	})
}

func TestOriginationExpireOnlyBoundsSigning(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.PurposeTag(authset.PurposeVerify),
		authset.DateTag(authset.TagOriginationExpireDatetime, testClockEpoch.Add(-time.Minute)),
	}
	expectCode(t, "sign", authorize(enforcer, authset.PurposeSign, 1, policy, 0), KeyExpired)
	expectCode(t, "verify", authorize(enforcer, authset.PurposeVerify, 1, policy, 0), OK)
}

func TestUsageExpireOnlyBoundsVerification(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.PurposeTag(authset.PurposeVerify),
		authset.DateTag(authset.TagUsageExpireDatetime, testClockEpoch.Add(-time.Minute)),
	}
	expectCode(t, "verify", authorize(enforcer, authset.PurposeVerify, 1, policy, 0), KeyExpired)
	expectCode(t, "sign", authorize(enforcer, authset.PurposeSign, 1, policy, 0), OK)
}

func TestSingleUsePerBoot(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeDecrypt),
		authset.BoolTag(authset.TagSingleUsePerBoot),
	}
	expectCode(t, "first", authorize(enforcer, authset.PurposeDecrypt, 42, policy, 0), OK)
	expectCode(t, "second", authorize(enforcer, authset.PurposeDecrypt, 42, policy, 0), TooManyOperations)

	// Another key is tracked independently.
	expectCode(t, "other key", authorize(enforcer, authset.PurposeDecrypt, 43, policy, 0), OK)
}

func TestSingleUseConcurrent(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeDecrypt),
		authset.BoolTag(authset.TagSingleUsePerBoot),
	}

	const callers = 32
	var (
		successes atomic.Int32
		waitGroup sync.WaitGroup
		start     = make(chan struct{})
	)
	for range callers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			<-start
			if authorize(enforcer, authset.PurposeDecrypt, 7, policy, 0) == OK {
				successes.Add(1)
			}
		}()
	}
	close(start)
	waitGroup.Wait()

	if got := successes.Load(); got != 1 {
		t.Errorf("concurrent single-use successes = %d, want 1", got)
	}
}

func TestMinSecondsBetweenOps(t *testing.T) {
	enforcer, fake := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.UintTag(authset.TagMinSecondsBetweenOps, 10),
	}

	expectCode(t, "first", authorize(enforcer, authset.PurposeSign, 1, policy, 0), OK)
	fake.Advance(5 * time.Second)
	expectCode(t, "after 5s", authorize(enforcer, authset.PurposeSign, 1, policy, 0), TooManyOperations)

	// The denied attempt did not move the last access forward.
	fake.Advance(6 * time.Second)
	expectCode(t, "after 11s", authorize(enforcer, authset.PurposeSign, 1, policy, 0), OK)

	fake.Advance(10 * time.Second)
	expectCode(t, "exactly 10s later", authorize(enforcer, authset.PurposeSign, 1, policy, 0), OK)
}

func TestDenialDoesNotRecordAccess(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	denied := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.DateTag(authset.TagActiveDatetime, testClockEpoch.Add(time.Hour)),
	}
	expectCode(t, "denied", authorize(enforcer, authset.PurposeSign, 9, denied, 0), KeyNotYetValid)
	if last := enforcer.LastAccess(9); !last.IsZero() {
		t.Errorf("LastAccess after denial = %v, want zero", last)
	}
	if stats := enforcer.Stats(); stats.TrackedKeys != 0 {
		t.Errorf("TrackedKeys = %d, want 0", stats.TrackedKeys)
	}

	allowed := authset.Set{authset.PurposeTag(authset.PurposeSign)}
	expectCode(t, "allowed", authorize(enforcer, authset.PurposeSign, 9, allowed, 0), OK)
	if last := enforcer.LastAccess(9); !last.Equal(testClockEpoch) {
		t.Errorf("LastAccess after success = %v, want %v", last, testClockEpoch)
	}
}

func TestTimeTruncatedToSeconds(t *testing.T) {
	fake := clock.Fake(testClockEpoch.Add(900 * time.Millisecond))
	enforcer := New(WithClock(fake))
	policy := authset.Set{authset.PurposeTag(authset.PurposeSign)}

	expectCode(t, "sign", authorize(enforcer, authset.PurposeSign, 1, policy, 0), OK)
	if last := enforcer.LastAccess(1); !last.Equal(testClockEpoch) {
		t.Errorf("LastAccess = %v, want %v", last, testClockEpoch)
	}
}

func TestUserID(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	const userID = 10
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.UintTag(authset.TagUserID, userID),
	}

	for _, appID := range []uint32{0, 1, 10, 99999, 123456} {
		callerUID := uint32(userID*UsersRange + appID%UsersRange)
		expectCode(t, "matching user", authorize(enforcer, authset.PurposeSign, 1, policy, callerUID), OK)
	}

	for _, otherUser := range []uint32{0, 9, 11} {
		callerUID := otherUser*UsersRange + 42
		got := authorize(enforcer, authset.PurposeSign, 1, policy, callerUID)
		expectCode(t, "other user", got, InvalidUserID)
	}
}

func TestApplicationID(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.BytesTag(authset.TagApplicationID, []byte("com.example.wallet")),
	}

	err := enforcer.AuthorizeOperation(Operation{
		Purpose:       authset.PurposeSign,
		KeyID:         1,
		Policy:        policy,
		ApplicationID: []byte("com.example.wallet"),
	})
	if err != nil {
		t.Fatalf("matching application: %v", err)
	}

	err = enforcer.AuthorizeOperation(Operation{
		Purpose:       authset.PurposeSign,
		KeyID:         1,
		Policy:        policy,
		ApplicationID: []byte("com.example.other"),
	})
	var denial *Denial
	if !errors.As(err, &denial) {
		t.Fatalf("mismatched application: got %v, want *Denial", err)
	}
	if denial.Code != InvalidUserID || denial.Kind != authset.TagApplicationID {
		t.Errorf("mismatched application: got %v/%v, want INVALID_USER_ID/APPLICATION_ID", denial.Code, denial.Kind)
	}
}

func TestApplicationIDEmptyMatchesNil(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.BytesTag(authset.TagApplicationID, []byte{}),
	}
	err := enforcer.AuthorizeOperation(Operation{
		Purpose: authset.PurposeSign,
		KeyID:   1,
		Policy:  policy,
	})
	if err != nil {
		t.Errorf("empty policy blob vs nil caller blob: %v", err)
	}
}

func TestConflictingTags(t *testing.T) {
	tests := []struct {
		name  string
		extra authset.Set
		kind  authset.Kind
		with  authset.Kind
	}{
		{
			name: "all users with user id",
			extra: authset.Set{
				authset.BoolTag(authset.TagAllUsers),
				authset.UintTag(authset.TagUserID, 10),
			},
			kind: authset.TagAllUsers,
			with: authset.TagUserID,
		},
		{
			name: "user auth id with no auth required",
			extra: authset.Set{
				authset.UintTag(authset.TagUserAuthID, 3),
				authset.BoolTag(authset.TagNoAuthRequired),
			},
			kind: authset.TagUserAuthID,
			with: authset.TagNoAuthRequired,
		},
		{
			name: "all applications with application id",
			extra: authset.Set{
				authset.BytesTag(authset.TagApplicationID, []byte("app")),
				authset.BoolTag(authset.TagAllApplications),
			},
			kind: authset.TagAllApplications,
			with: authset.TagApplicationID,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			enforcer, _ := newTestEnforcer(t)
			policy := append(authset.Set{authset.PurposeTag(authset.PurposeSign)}, test.extra...)

			// A matching caller still gets InvalidTag.
			err := enforcer.AuthorizeOperation(Operation{
				Purpose:       authset.PurposeSign,
				KeyID:         1,
				Policy:        policy,
				CallerUID:     10 * UsersRange,
				ApplicationID: []byte("app"),
			})
			var denial *Denial
			if !errors.As(err, &denial) {
				t.Fatalf("got %v, want *Denial", err)
			}
			if denial.Code != InvalidTag {
				t.Errorf("code = %v, want INVALID_TAG", denial.Code)
			}
			if denial.Kind != test.kind || denial.ConflictsWith != test.with {
				t.Errorf("conflict = %v/%v, want %v/%v", denial.Kind, denial.ConflictsWith, test.kind, test.with)
			}
		})
	}
}

func TestConflictOverridesEarlierTagFailure(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.DateTag(authset.TagActiveDatetime, testClockEpoch.Add(time.Hour)),
		authset.BoolTag(authset.TagAllUsers),
		authset.UintTag(authset.TagUserID, 10),
	}
	expectCode(t, "conflict", authorize(enforcer, authset.PurposeSign, 1, policy, 0), InvalidTag)
}

func TestPurposeFailurePrecedesConflict(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.BoolTag(authset.TagAllUsers),
		authset.UintTag(authset.TagUserID, 10),
	}
	expectCode(t, "encrypt", authorize(enforcer, authset.PurposeEncrypt, 1, policy, 0), IncompatiblePurpose)
}

func TestAuthTimeout(t *testing.T) {
	for _, kind := range []authset.Kind{authset.TagAuthTimeout, authset.TagRescopeAuthTimeout} {
		t.Run(kind.String(), func(t *testing.T) {
			enforcer, fake := newTestEnforcer(t)
			policy := authset.Set{
				authset.PurposeTag(authset.PurposeSign),
				authset.UintTag(kind, 2),
			}

			expectCode(t, "never authenticated", authorize(enforcer, authset.PurposeSign, 1, policy, 0), OK)

			enforcer.RecordUserAuthentication()
			expectCode(t, "fresh authentication", authorize(enforcer, authset.PurposeSign, 2, policy, 0), KeyUserNotAuthenticated)

			fake.Advance(2 * time.Second)
			expectCode(t, "at the timeout", authorize(enforcer, authset.PurposeSign, 3, policy, 0), KeyUserNotAuthenticated)

			fake.Advance(time.Second)
			expectCode(t, "past the timeout", authorize(enforcer, authset.PurposeSign, 4, policy, 0), OK)
		})
	}
}

func TestFirstFailingTagWins(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeSign),
		authset.UintTag(authset.TagUserID, 5),
		authset.DateTag(authset.TagActiveDatetime, testClockEpoch.Add(time.Hour)),
	}
	err := enforcer.AuthorizeOperation(Operation{Purpose: authset.PurposeSign, KeyID: 1, Policy: policy})
	var denial *Denial
	if !errors.As(err, &denial) {
		t.Fatalf("got %v, want *Denial", err)
	}
	if denial.Kind != authset.TagUserID {
		t.Errorf("denied by %v, want USER_ID", denial.Kind)
	}
}

func TestUncheckedTagsPass(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	policy := authset.Set{
		authset.PurposeTag(authset.PurposeEncrypt),
		authset.EnumTag(authset.TagAlgorithm, uint32(authset.AlgorithmAES)),
		authset.UintTag(authset.TagKeySize, 256),
		authset.BoolTag(authset.TagAllUsers),
		authset.BoolTag(authset.TagNoAuthRequired),
		authset.BoolTag(authset.TagRollbackResistant),
		authset.BytesTag(authset.TagApplicationData, []byte("data")),
		authset.EnumTag(authset.TagRescopingAdd, uint32(authset.TagUserID)),
	}
	expectCode(t, "encrypt", authorize(enforcer, authset.PurposeEncrypt, 1, policy, 0), OK)
}

func TestStats(t *testing.T) {
	enforcer, fake := newTestEnforcer(t)
	if stats := enforcer.Stats(); stats.TrackedKeys != 0 || !stats.LastUserAuthentication.IsZero() {
		t.Fatalf("fresh stats = %+v", stats)
	}

	policy := authset.Set{authset.PurposeTag(authset.PurposeSign)}
	authorize(enforcer, authset.PurposeSign, 1, policy, 0)
	authorize(enforcer, authset.PurposeSign, 2, policy, 0)
	authorize(enforcer, authset.PurposeSign, 1, policy, 0)

	fake.Advance(time.Minute)
	stamped := enforcer.RecordUserAuthentication()

	stats := enforcer.Stats()
	if stats.TrackedKeys != 2 {
		t.Errorf("TrackedKeys = %d, want 2", stats.TrackedKeys)
	}
	if !stats.LastUserAuthentication.Equal(stamped) || !stamped.Equal(testClockEpoch.Add(time.Minute)) {
		t.Errorf("LastUserAuthentication = %v (stamped %v), want %v",
			stats.LastUserAuthentication, stamped, testClockEpoch.Add(time.Minute))
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != OK {
		t.Errorf("CodeOf(nil) = %v", got)
	}
	if got := CodeOf(deny(KeyExpired, authset.TagUsageExpireDatetime)); got != KeyExpired {
		t.Errorf("CodeOf(denial) = %v", got)
	}
	if got := CodeOf(TooManyOperations); got != TooManyOperations {
		t.Errorf("CodeOf(code) = %v", got)
	}
	if got := CodeOf(errors.New("unrelated")); got != InvalidTag {
		t.Errorf("CodeOf(unrelated) = %v", got)
	}
}

func TestCodeString(t *testing.T) {
	tests := map[Code]string{
		OK:                      "OK",
		UnsupportedPurpose:      "UNSUPPORTED_PURPOSE",
		KeyUserNotAuthenticated: "KEY_USER_NOT_AUTHENTICATED",
		InvalidRescoping:        "INVALID_RESCOPING",
		Code(-99):               "CODE(-99)",
	}
	for code, want := range tests {
		if got := code.String(); got != want {
			t.Errorf("Code(%d).String() = %q, want %q", int32(code), got, want)
		}
	}
}
