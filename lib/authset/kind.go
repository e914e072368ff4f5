// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authset

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the value type carried by a tag kind, stored in the high
// four bits of the Kind.
type Category uint32

const (
	CategoryInvalid      Category = 0
	CategoryEnum         Category = 1 << 28
	CategoryEnumRepeated Category = 2 << 28
	CategoryUint         Category = 3 << 28
	CategoryUintRepeated Category = 4 << 28
	CategoryUlong        Category = 5 << 28
	CategoryDate         Category = 6 << 28
	CategoryBool         Category = 7 << 28
	CategoryBignum       Category = 8 << 28
	CategoryBytes        Category = 9 << 28
)

const categoryMask = 0xF0000000

func (c Category) String() string {
	switch c {
	case CategoryEnum:
		return "enum"
	case CategoryEnumRepeated:
		return "enum-repeated"
	case CategoryUint:
		return "uint"
	case CategoryUintRepeated:
		return "uint-repeated"
	case CategoryUlong:
		return "ulong"
	case CategoryDate:
		return "date"
	case CategoryBool:
		return "bool"
	case CategoryBignum:
		return "bignum"
	case CategoryBytes:
		return "bytes"
	default:
		return fmt.Sprintf("category(%#x)", uint32(c))
	}
}

// Kind identifies a tag. The set of kinds is closed; kinds outside it
// are carried through sets untouched but rejected by Validate.
type Kind uint32

const (
	TagInvalid Kind = 0

	TagPurpose      = Kind(CategoryEnumRepeated) | 1
	TagAlgorithm    = Kind(CategoryEnum) | 2
	TagKeySize      = Kind(CategoryUint) | 3
	TagBlockMode    = Kind(CategoryEnum) | 4
	TagDigest       = Kind(CategoryEnum) | 5
	TagMacLength    = Kind(CategoryUint) | 6
	TagPadding      = Kind(CategoryEnum) | 7
	TagChunkLength  = Kind(CategoryUint) | 8
	TagRescopingAdd = Kind(CategoryEnumRepeated) | 101
	TagRescopingDel = Kind(CategoryEnumRepeated) | 102

	TagRSAPublicExponent = Kind(CategoryUlong) | 200

	TagActiveDatetime            = Kind(CategoryDate) | 400
	TagOriginationExpireDatetime = Kind(CategoryDate) | 401
	TagUsageExpireDatetime       = Kind(CategoryDate) | 402
	TagMinSecondsBetweenOps      = Kind(CategoryUint) | 403
	TagSingleUsePerBoot          = Kind(CategoryBool) | 405

	TagAllUsers           = Kind(CategoryBool) | 500
	TagUserID             = Kind(CategoryUint) | 501
	TagUserAuthID         = Kind(CategoryUintRepeated) | 502
	TagNoAuthRequired     = Kind(CategoryBool) | 503
	TagAuthTimeout        = Kind(CategoryUint) | 505
	TagRescopeAuthTimeout = Kind(CategoryUint) | 506

	TagAllApplications = Kind(CategoryBool) | 600
	TagApplicationID   = Kind(CategoryBytes) | 601

	TagApplicationData   = Kind(CategoryBytes) | 700
	TagCreationDatetime  = Kind(CategoryDate) | 701
	TagOrigin            = Kind(CategoryEnum) | 702
	TagRollbackResistant = Kind(CategoryBool) | 703
	TagRootOfTrust       = Kind(CategoryBytes) | 704

	TagAssociatedData = Kind(CategoryBytes) | 1000
)

var kindNames = map[Kind]string{
	TagPurpose:                   "PURPOSE",
	TagAlgorithm:                 "ALGORITHM",
	TagKeySize:                   "KEY_SIZE",
	TagBlockMode:                 "BLOCK_MODE",
	TagDigest:                    "DIGEST",
	TagMacLength:                 "MAC_LENGTH",
	TagPadding:                   "PADDING",
	TagChunkLength:               "CHUNK_LENGTH",
	TagRescopingAdd:              "RESCOPING_ADD",
	TagRescopingDel:              "RESCOPING_DEL",
	TagRSAPublicExponent:         "RSA_PUBLIC_EXPONENT",
	TagActiveDatetime:            "ACTIVE_DATETIME",
	TagOriginationExpireDatetime: "ORIGINATION_EXPIRE_DATETIME",
	TagUsageExpireDatetime:       "USAGE_EXPIRE_DATETIME",
	TagMinSecondsBetweenOps:      "MIN_SECONDS_BETWEEN_OPS",
	TagSingleUsePerBoot:          "SINGLE_USE_PER_BOOT",
	TagAllUsers:                  "ALL_USERS",
	TagUserID:                    "USER_ID",
	TagUserAuthID:                "USER_AUTH_ID",
	TagNoAuthRequired:            "NO_AUTH_REQUIRED",
	TagAuthTimeout:               "AUTH_TIMEOUT",
	TagRescopeAuthTimeout:        "RESCOPE_AUTH_TIMEOUT",
	TagAllApplications:           "ALL_APPLICATIONS",
	TagApplicationID:             "APPLICATION_ID",
	TagApplicationData:           "APPLICATION_DATA",
	TagCreationDatetime:          "CREATION_DATETIME",
	TagOrigin:                    "ORIGIN",
	TagRollbackResistant:         "ROLLBACK_RESISTANT",
	TagRootOfTrust:               "ROOT_OF_TRUST",
	TagAssociatedData:            "ASSOCIATED_DATA",
}

var kindsByName = func() map[string]Kind {
	byName := make(map[string]Kind, len(kindNames))
	for kind, name := range kindNames {
		byName[name] = kind
	}
	return byName
}()

// Category returns the value category encoded in the kind.
func (k Kind) Category() Category {
	return Category(uint32(k) & categoryMask)
}

// Repeatable reports whether a set may hold more than one tag of this
// kind with distinct values.
func (k Kind) Repeatable() bool {
	category := k.Category()
	return category == CategoryEnumRepeated || category == CategoryUintRepeated
}

// Known reports whether k is one of the defined tag kinds.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// String returns the canonical upper-case name, or a hex rendering for
// unknown kinds.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TAG(%#x)", uint32(k))
}

// ParseKind resolves a canonical tag name (case-insensitive, with or
// without a "TAG_" prefix) or a numeric tag id.
func ParseKind(name string) (Kind, error) {
	normalized := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "TAG_")
	if kind, ok := kindsByName[normalized]; ok {
		return kind, nil
	}
	if number, err := strconv.ParseUint(name, 0, 32); err == nil {
		kind := Kind(number)
		if !kind.Known() {
			return TagInvalid, fmt.Errorf("unknown tag id %#x", number)
		}
		return kind, nil
	}
	return TagInvalid, fmt.Errorf("unknown tag %q", name)
}
