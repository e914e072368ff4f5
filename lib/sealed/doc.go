// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed stores secrets at rest encrypted with age x25519.
//
// keygate seals the master secret from which the auth-token MAC key is
// derived. The sealed file holds base64 age ciphertext; the daemon and
// the CLI unseal it with an identity read into a [secret.Buffer], and
// the plaintext comes back in a [secret.Buffer] as well.
package sealed
