// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material in memory the Go runtime never
// sees: an anonymous mmap region, locked against swap with mlock and
// excluded from core dumps with MADV_DONTDUMP.
//
// keygate keeps two things in a [Buffer]: the age identity that unseals
// the master secret, and the HMAC key derived from that secret for
// verifying user-authentication tokens. [Buffer.Close] zeroes the
// region before unmapping it and is safe to call more than once. Any
// read after Close panics.
package secret
