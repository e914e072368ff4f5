// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package enforcement decides whether a key may be used, and whether a
// key's authorization set may be replaced.
//
// An [Enforcer] evaluates two requests against an [authset.Set]:
//
// AuthorizeOperation admits or denies one operation (encrypt, decrypt,
// sign, verify) on one key. Evaluation order:
//
//  1. The requested purpose and every PURPOSE tag in the set must be
//     one of the four defined purposes (else UnsupportedPurpose), and
//     the requested purpose must be among the PURPOSE tags (else
//     IncompatiblePurpose).
//  2. Contradictory tag pairs anywhere in the set (ALL_USERS with
//     USER_ID, USER_AUTH_ID with NO_AUTH_REQUIRED, ALL_APPLICATIONS with
//     APPLICATION_ID) deny with InvalidTag, whatever the other tags say.
//  3. Each tag is checked in order by the checker for its kind; the
//     first failure is returned. Kinds without a checker pass.
//  4. On success the key's access is recorded in the ledger.
//
// AuthorizeRescope admits or denies replacing a key's set. The old set
// is frozen except where it grants RESCOPING_ADD (a kind may be
// introduced) or RESCOPING_DEL (a kind may be removed); changing a value
// needs both.
//
// # Concurrency
//
// One mutex serializes every call on an Enforcer, across all keys. The
// rate-limit and single-use checks read the ledger and the success path
// writes it; holding the lock from check to record is what keeps two
// concurrent uses of a single-use key from both succeeding. Checkers
// run under the lock and never call back into the Enforcer.
//
// # Time
//
// The current time comes from the injected clock, truncated to whole
// seconds to match the second resolution of date tags. AUTH_TIMEOUT and
// RESCOPE_AUTH_TIMEOUT pass when the last user authentication is older
// than the timeout, and when no authentication has been recorded.
//
// The package does no logging and no I/O. Hosts log decisions.
package enforcement
