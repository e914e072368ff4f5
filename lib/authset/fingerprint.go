// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authset

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/keygate/lib/codec"
)

// fingerprintKey is the BLAKE3 key for policy fingerprints: the ASCII
// domain name zero-padded to 32 bytes. Changing it changes every
// fingerprint.
var fingerprintKey = [32]byte{
	'k', 'e', 'y', 'g', 'a', 't', 'e', '.', 'a', 'u', 't', 'h', 's', 'e', 't', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0,
}

// fingerprintLength is the number of digest bytes kept. 16 bytes is
// plenty for correlating log lines and is not a security boundary.
const fingerprintLength = 16

// Fingerprint returns a hex digest identifying the set. It is keyed
// BLAKE3 over the deterministic CBOR encoding, so it depends on tag
// order and treats nil and empty blobs alike.
func Fingerprint(s Set) string {
	normalized := make(Set, len(s))
	for index, tag := range s {
		if len(tag.Blob) == 0 {
			tag.Blob = nil
		}
		normalized[index] = tag
	}
	if len(normalized) == 0 {
		normalized = nil
	}

	// A slice of plain structs with integer, bool and byte fields
	// cannot fail to encode.
	encoded, err := codec.Marshal(normalized)
	if err != nil {
		panic("authset: encoding set for fingerprint: " + err.Error())
	}

	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("authset: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(encoded)
	return hex.EncodeToString(hasher.Sum(nil)[:fingerprintLength])
}
