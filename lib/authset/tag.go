// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authset

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// maxUnixSeconds is the latest Unix second a time.Time can hold; its
// internal clock counts from year 1.
const maxUnixSeconds = math.MaxInt64 - 62135596800

// Tag is one entry of an authorization set. Which value field is
// meaningful depends on Kind.Category():
//
//   - enum, enum-repeated, uint, uint-repeated, ulong: Integer
//   - date: Integer, as Unix seconds
//   - bool: Bool (presence implies true)
//   - bytes, bignum: Blob
//
// Fields not used by the category stay at their zero value.
type Tag struct {
	Kind    Kind   `cbor:"1,keyasint"`
	Integer uint64 `cbor:"2,keyasint,omitempty"`
	Bool    bool   `cbor:"3,keyasint,omitempty"`
	Blob    []byte `cbor:"4,keyasint,omitempty"`
}

// EnumTag returns an enumerated tag. Use it for enum and
// enum-repeated kinds, including RESCOPING_ADD and RESCOPING_DEL whose
// value is itself a Kind.
func EnumTag(kind Kind, value uint32) Tag {
	return Tag{Kind: kind, Integer: uint64(value)}
}

// UintTag returns a 32-bit integer tag.
func UintTag(kind Kind, value uint32) Tag {
	return Tag{Kind: kind, Integer: uint64(value)}
}

// UlongTag returns a 64-bit integer tag.
func UlongTag(kind Kind, value uint64) Tag {
	return Tag{Kind: kind, Integer: value}
}

// DateTag returns a date tag holding t truncated to whole seconds.
// Times before the Unix epoch clamp to zero.
func DateTag(kind Kind, t time.Time) Tag {
	seconds := t.Unix()
	if seconds < 0 {
		seconds = 0
	}
	return Tag{Kind: kind, Integer: uint64(seconds)}
}

// BoolTag returns a boolean tag, which is true by being present.
func BoolTag(kind Kind) Tag {
	return Tag{Kind: kind, Bool: true}
}

// BytesTag returns a blob tag. The slice is not copied.
func BytesTag(kind Kind, value []byte) Tag {
	return Tag{Kind: kind, Blob: value}
}

// PurposeTag is shorthand for a PURPOSE tag.
func PurposeTag(purpose Purpose) Tag {
	return EnumTag(TagPurpose, uint32(purpose))
}

// Unix returns the value of a date tag in Unix seconds, saturating at
// math.MaxInt64. Date checks compare in this form.
func (t Tag) Unix() int64 {
	if t.Integer > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(t.Integer)
}

// Time returns the value of a date tag. Values past the range of
// time.Time clamp to its latest instant.
func (t Tag) Time() time.Time {
	return time.Unix(min(t.Unix(), maxUnixSeconds), 0).UTC()
}

// Seconds returns the value of an integer tag as a duration in
// seconds, saturating at the largest time.Duration. Used for
// MIN_SECONDS_BETWEEN_OPS and the auth timeouts.
func (t Tag) Seconds() time.Duration {
	if t.Integer > uint64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(t.Integer) * time.Second
}

// String renders the tag as NAME=value for logs and CLI output. Blob
// values are shown as hex.
func (t Tag) String() string {
	switch t.Kind.Category() {
	case CategoryBool:
		return t.Kind.String()
	case CategoryDate:
		return fmt.Sprintf("%s=%s", t.Kind, t.Time().Format(time.RFC3339))
	case CategoryBytes, CategoryBignum:
		return fmt.Sprintf("%s=%s", t.Kind, hex.EncodeToString(t.Blob))
	}

	switch t.Kind {
	case TagPurpose:
		return fmt.Sprintf("%s=%s", t.Kind, Purpose(t.Integer))
	case TagAlgorithm:
		return fmt.Sprintf("%s=%s", t.Kind, Algorithm(t.Integer))
	case TagRescopingAdd, TagRescopingDel:
		return fmt.Sprintf("%s=%s", t.Kind, Kind(t.Integer))
	}
	return fmt.Sprintf("%s=%d", t.Kind, t.Integer)
}

// validate checks that only the field belonging to the kind's category
// is populated.
func (t Tag) validate() error {
	if !t.Kind.Known() {
		return fmt.Errorf("unknown tag kind %s", t.Kind)
	}

	switch category := t.Kind.Category(); category {
	case CategoryEnum, CategoryEnumRepeated, CategoryUint, CategoryUintRepeated:
		if t.Integer > 0xFFFFFFFF {
			return fmt.Errorf("%s: value %d does not fit in 32 bits", t.Kind, t.Integer)
		}
		fallthrough
	case CategoryUlong, CategoryDate:
		if category == CategoryDate && t.Integer > math.MaxInt64 {
			return fmt.Errorf("%s: date %d is past the largest Unix time", t.Kind, t.Integer)
		}
		if t.Bool || len(t.Blob) > 0 {
			return fmt.Errorf("%s: %s tag carries a bool or blob value", t.Kind, category)
		}
	case CategoryBool:
		if !t.Bool {
			return fmt.Errorf("%s: bool tag must be true when present", t.Kind)
		}
		if t.Integer != 0 || len(t.Blob) > 0 {
			return fmt.Errorf("%s: bool tag carries an integer or blob value", t.Kind)
		}
	case CategoryBytes, CategoryBignum:
		if t.Integer != 0 || t.Bool {
			return fmt.Errorf("%s: %s tag carries an integer or bool value", t.Kind, category)
		}
	}

	if t.Kind == TagRescopingAdd || t.Kind == TagRescopingDel {
		if target := Kind(t.Integer); !target.Known() {
			return fmt.Errorf("%s: names unknown tag kind %s", t.Kind, target)
		}
	}
	return nil
}
