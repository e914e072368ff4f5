// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authset

import "bytes"

// Equal reports whether two tags have the same kind and the same value
// under the kind's category:
//
//   - enum, uint, ulong, date and their repeated forms compare Integer
//   - bool compares the presence flag
//   - bytes and bignum are equal when their lengths match and the
//     contents are identical; a nil blob equals an empty one
//
// Tags of an invalid category never compare equal. Equal decides both
// APPLICATION_ID matching and whether a rescope changed a value, so
// the nil/empty rule applies to both.
func Equal(a, b Tag) bool {
	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind.Category() {
	case CategoryEnum, CategoryEnumRepeated,
		CategoryUint, CategoryUintRepeated,
		CategoryUlong, CategoryDate:
		return a.Integer == b.Integer
	case CategoryBool:
		return a.Bool == b.Bool
	case CategoryBytes, CategoryBignum:
		// bytes.Equal treats nil and empty slices as equal.
		return bytes.Equal(a.Blob, b.Blob)
	default:
		return false
	}
}
