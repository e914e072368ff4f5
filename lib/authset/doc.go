// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authset models a key's authorization set: the ordered list of
// tagged parameters that describes what a key may be used for and under
// which constraints.
//
// A [Tag] pairs a [Kind] with a value. The kind's high four bits name
// its [Category] (enumerated, integer, long integer, date, boolean,
// blob, or a repeatable variant of the first two), and the category
// decides which field of the Tag carries the value and which equality
// rule [Equal] applies.
//
// A [Set] is an ordered multiset. Kinds in repeatable categories may
// appear several times (a key usable for both SIGN and VERIFY carries
// two PURPOSE tags); lookups return matches in insertion order:
//
//	for index := set.Find(authset.TagPurpose, 0); index >= 0; index = set.Find(authset.TagPurpose, index+1) {
//	    purpose := authset.Purpose(set[index].Integer)
//	    // ...
//	}
//
// [Fingerprint] gives a short, stable digest of a set for logs and
// service replies. It is computed over the deterministic CBOR encoding,
// so two sets fingerprint equal only if they hold the same tags in the
// same order.
package authset
