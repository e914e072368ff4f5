// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package policydef reads key policies authored by hand as JSONC files
// (JSON with comments and trailing commas) and turns them into
// [authset.Set] values.
//
// A policy file looks like:
//
//	{
//	    "description": "release signing key",
//	    "tags": [
//	        {"tag": "PURPOSE", "value": "SIGN"},
//	        {"tag": "ALGORITHM", "value": "EC"},
//	        {"tag": "USAGE_EXPIRE_DATETIME", "value": "2027-01-01T00:00:00Z"},
//	        {"tag": "MIN_SECONDS_BETWEEN_OPS", "value": 30},
//	        {"tag": "SINGLE_USE_PER_BOOT"},
//	        {"tag": "APPLICATION_ID", "value": {"base64": "c2lnbmVy"}},
//	        {"tag": "RESCOPING_ADD", "value": "AUTH_TIMEOUT"},
//	    ],
//	}
//
// Values are interpreted by the tag's category. Enumerations take a
// number, or a name for PURPOSE, ALGORITHM and the RESCOPING_* tags.
// Dates take an RFC 3339 string or Unix seconds. Booleans take no
// value or true. Byte strings take a string (its UTF-8 bytes) or an
// object with a base64 field.
package policydef

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/keygate/lib/authset"
)

// Definition is a parsed policy file. Tags keep their raw values until
// Set converts them.
type Definition struct {
	Description string  `json:"description,omitempty"`
	Tags        []Entry `json:"tags"`
}

// Entry is one tag as written in a policy file.
type Entry struct {
	Tag   string          `json:"tag"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Parse strips JSONC syntax from data and decodes the definition.
// Unknown top-level fields are rejected so typos do not silently drop
// constraints.
func Parse(data []byte) (*Definition, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var definition Definition
	if err := decoder.Decode(&definition); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}
	if len(definition.Tags) == 0 {
		return nil, errors.New("parsing policy: no tags")
	}
	return &definition, nil
}

// ReadFile reads and parses a policy file.
func ReadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	definition, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return definition, nil
}

// Set converts every entry and validates the resulting set.
func (d *Definition) Set() (authset.Set, error) {
	set := make(authset.Set, 0, len(d.Tags))
	for index, entry := range d.Tags {
		tag, err := entry.convert()
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", index, err)
		}
		set = append(set, tag)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// LoadSet reads a policy file and returns its validated set.
func LoadSet(path string) (authset.Set, error) {
	definition, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	set, err := definition.Set()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

func (e Entry) convert() (authset.Tag, error) {
	kind, err := authset.ParseKind(e.Tag)
	if err != nil {
		return authset.Tag{}, err
	}

	switch kind.Category() {
	case authset.CategoryBool:
		return convertBool(kind, e.Value)
	case authset.CategoryDate:
		return convertDate(kind, e.Value)
	case authset.CategoryBytes, authset.CategoryBignum:
		return convertBytes(kind, e.Value)
	case authset.CategoryEnum, authset.CategoryEnumRepeated:
		return convertEnum(kind, e.Value)
	case authset.CategoryUint, authset.CategoryUintRepeated:
		value, err := decodeUnsigned(kind, e.Value, math.MaxUint32)
		if err != nil {
			return authset.Tag{}, err
		}
		return authset.UintTag(kind, uint32(value)), nil
	case authset.CategoryUlong:
		value, err := decodeUnsigned(kind, e.Value, math.MaxUint64)
		if err != nil {
			return authset.Tag{}, err
		}
		return authset.UlongTag(kind, value), nil
	}
	return authset.Tag{}, fmt.Errorf("%s: unsupported category %s", kind, kind.Category())
}

func convertBool(kind authset.Kind, raw json.RawMessage) (authset.Tag, error) {
	if len(raw) > 0 {
		var value bool
		if err := json.Unmarshal(raw, &value); err != nil || !value {
			return authset.Tag{}, fmt.Errorf("%s: boolean tags take no value or true", kind)
		}
	}
	return authset.BoolTag(kind), nil
}

func convertDate(kind authset.Kind, raw json.RawMessage) (authset.Tag, error) {
	if len(raw) == 0 {
		return authset.Tag{}, fmt.Errorf("%s: missing value", kind)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		parsed, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return authset.Tag{}, fmt.Errorf("%s: %w", kind, err)
		}
		if parsed.Before(time.Unix(0, 0)) {
			return authset.Tag{}, fmt.Errorf("%s: %s is before the Unix epoch", kind, text)
		}
		return authset.DateTag(kind, parsed), nil
	}
	seconds, err := decodeUnsigned(kind, raw, math.MaxInt64)
	if err != nil {
		return authset.Tag{}, fmt.Errorf("%s: want an RFC 3339 string or Unix seconds", kind)
	}
	return authset.UlongTag(kind, seconds), nil
}

func convertBytes(kind authset.Kind, raw json.RawMessage) (authset.Tag, error) {
	if len(raw) == 0 {
		return authset.Tag{}, fmt.Errorf("%s: missing value", kind)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return authset.BytesTag(kind, []byte(text)), nil
	}

	var encoded struct {
		Base64 *string `json:"base64"`
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&encoded); err != nil || encoded.Base64 == nil {
		return authset.Tag{}, fmt.Errorf("%s: want a string or {\"base64\": ...}", kind)
	}
	blob, err := base64.StdEncoding.DecodeString(*encoded.Base64)
	if err != nil {
		return authset.Tag{}, fmt.Errorf("%s: %w", kind, err)
	}
	return authset.BytesTag(kind, blob), nil
}

func convertEnum(kind authset.Kind, raw json.RawMessage) (authset.Tag, error) {
	if len(raw) == 0 {
		return authset.Tag{}, fmt.Errorf("%s: missing value", kind)
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		value, err := decodeUnsigned(kind, raw, math.MaxUint32)
		if err != nil {
			return authset.Tag{}, err
		}
		return authset.EnumTag(kind, uint32(value)), nil
	}

	switch kind {
	case authset.TagPurpose:
		purpose, err := authset.ParsePurpose(name)
		if err != nil {
			return authset.Tag{}, fmt.Errorf("%s: %w", kind, err)
		}
		return authset.PurposeTag(purpose), nil
	case authset.TagAlgorithm:
		algorithm, err := authset.ParseAlgorithm(name)
		if err != nil {
			return authset.Tag{}, fmt.Errorf("%s: %w", kind, err)
		}
		return authset.EnumTag(kind, uint32(algorithm)), nil
	case authset.TagRescopingAdd, authset.TagRescopingDel:
		target, err := authset.ParseKind(name)
		if err != nil {
			return authset.Tag{}, fmt.Errorf("%s: %w", kind, err)
		}
		return authset.EnumTag(kind, uint32(target)), nil
	}
	return authset.Tag{}, fmt.Errorf("%s: no names defined, use a number", kind)
}

func decodeUnsigned(kind authset.Kind, raw json.RawMessage, limit uint64) (uint64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%s: missing value", kind)
	}
	var value uint64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("%s: want a non-negative integer, got %s", kind, raw)
	}
	if value > limit {
		return 0, fmt.Errorf("%s: value %d exceeds %d", kind, value, limit)
	}
	return value, nil
}
