// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds keygate's CBOR configuration.
//
// CBOR carries every internal byte stream: the service socket protocol,
// the wire form of authorization sets, and the canonical input to
// policy fingerprints. Human-facing formats (policy files, CLI output)
// are JSON.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2) so the
// same authorization set always produces the same bytes, which is what
// makes fingerprints stable across processes. The decoder rejects
// duplicate map keys: a request carrying two "uid" fields is malformed,
// not ambiguous.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types serialized only as CBOR use `cbor` struct tags. Types that also
// appear in CLI JSON output use `json` tags, which fxamacker/cbor reads
// as a fallback. Never put both on one field.
package codec
