// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authset

import (
	"fmt"
	"strings"
)

// Purpose is the cryptographic operation category a key is used for.
type Purpose uint32

const (
	PurposeEncrypt Purpose = 0
	PurposeDecrypt Purpose = 1
	PurposeSign    Purpose = 2
	PurposeVerify  Purpose = 3
)

// Valid reports whether p is one of the four defined purposes.
func (p Purpose) Valid() bool {
	return p <= PurposeVerify
}

func (p Purpose) String() string {
	switch p {
	case PurposeEncrypt:
		return "ENCRYPT"
	case PurposeDecrypt:
		return "DECRYPT"
	case PurposeSign:
		return "SIGN"
	case PurposeVerify:
		return "VERIFY"
	default:
		return fmt.Sprintf("PURPOSE(%d)", uint32(p))
	}
}

// ParsePurpose resolves a purpose name, case-insensitively.
func ParsePurpose(name string) (Purpose, error) {
	for purpose := PurposeEncrypt; purpose <= PurposeVerify; purpose++ {
		if strings.EqualFold(name, purpose.String()) {
			return purpose, nil
		}
	}
	return 0, fmt.Errorf("unknown purpose %q (want ENCRYPT, DECRYPT, SIGN or VERIFY)", name)
}

// Algorithm is the value of an ALGORITHM tag. The engine never
// interprets it; names exist for policy files and display.
type Algorithm uint32

const (
	AlgorithmRSA  Algorithm = 1
	AlgorithmDSA  Algorithm = 2
	AlgorithmEC   Algorithm = 3
	AlgorithmAES  Algorithm = 32
	AlgorithmHMAC Algorithm = 128
)

var algorithmNames = map[Algorithm]string{
	AlgorithmRSA:  "RSA",
	AlgorithmDSA:  "DSA",
	AlgorithmEC:   "EC",
	AlgorithmAES:  "AES",
	AlgorithmHMAC: "HMAC",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("ALGORITHM(%d)", uint32(a))
}

// ParseAlgorithm resolves an algorithm name, case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	for algorithm, known := range algorithmNames {
		if strings.EqualFold(name, known) {
			return algorithm, nil
		}
	}
	return 0, fmt.Errorf("unknown algorithm %q", name)
}
