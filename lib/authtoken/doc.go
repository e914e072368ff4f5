// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authtoken parses and verifies user-authentication tokens, the
// evidence an authenticator (PIN entry, fingerprint reader) presents to
// say "the user just authenticated".
//
// A token is 65 packed bytes:
//
//	offset  size  field
//	0       1     version (0)
//	1       8     challenge          (little-endian)
//	9       8     root user id       (little-endian)
//	17      8     secondary user id  (little-endian)
//	25      4     authenticator id   (big-endian)
//	29      4     timestamp          (big-endian)
//	33      32    HMAC-SHA256 over bytes 0..32
//
// The MAC key is derived from a master secret with HKDF-SHA256 (see
// [DeriveKey]); authenticators and the verifier share the master
// secret. A [Verifier] checks the MAC in constant time and refuses a
// token whose timestamp does not advance past the last token accepted
// from the same authenticator.
package authtoken
