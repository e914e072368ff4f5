// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Keygate-service hosts the key-policy enforcement engine behind a CBOR
// Unix socket. A keystore (or anything else that holds keys) asks it
// whether an operation or a rescope may proceed, and tells it when the
// user has authenticated.
//
// Actions:
//
//   - status (open): uptime, version, tracked key count, whether
//     auth-token verification is configured
//   - authorize-operation: purpose, key_id, policy, caller_uid,
//     application_id
//   - authorize-rescope: key_id, old_policy, new_policy, caller_uid
//   - record-user-auth: token (65-byte auth token), or an empty request
//     when no auth-token key is configured
//   - key-info: key_id
//
// All actions but status are restricted to the UIDs listed in
// service.allowed_uids; the kernel-reported peer UID is checked, not
// anything the client sends. caller_uid defaults to the peer UID.
//
// Every authorization decision is answered with a decision id, the
// numeric code and its name, and the tag responsible for a denial. A
// denial is a successful exchange: the socket-level error field is
// reserved for malformed requests. Decisions are logged with the policy
// fingerprint and counted in keygate_decisions_total.
//
// The ledger lives only in memory. Restarting the daemon forgets every
// SINGLE_USE_PER_BOOT key and every user authentication, which is the
// per-boot semantics those tags ask for.
package main
