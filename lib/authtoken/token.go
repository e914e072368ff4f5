// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/keygate/lib/secret"
)

const (
	// Size is the length of an encoded token.
	Size = 65

	// CurrentVersion is the only token version accepted.
	CurrentVersion = 0

	// KeySize is the length of the derived MAC key.
	KeySize = 32

	macOffset = 33
)

// keyInfo separates the auth-token MAC key from anything else derived
// from the same master secret.
const keyInfo = "keygate auth-token hmac-sha256 v0"

// Errors returned by Parse and Verifier.Verify.
var (
	ErrWrongSize          = errors.New("authtoken: token must be 65 bytes")
	ErrUnsupportedVersion = errors.New("authtoken: unsupported token version")
	ErrInvalidMAC         = errors.New("authtoken: invalid HMAC")
	ErrReplayed           = errors.New("authtoken: timestamp does not advance")
)

// Token is a decoded authentication token, without its MAC.
type Token struct {
	Version         uint8
	Challenge       uint64
	RootUserID      uint64
	SecondaryUserID uint64
	AuthenticatorID uint32
	Timestamp       uint32
}

// Parse decodes raw without checking the MAC.
func Parse(raw []byte) (*Token, error) {
	if len(raw) != Size {
		return nil, fmt.Errorf("%w, got %d", ErrWrongSize, len(raw))
	}
	token := &Token{
		Version:         raw[0],
		Challenge:       binary.LittleEndian.Uint64(raw[1:9]),
		RootUserID:      binary.LittleEndian.Uint64(raw[9:17]),
		SecondaryUserID: binary.LittleEndian.Uint64(raw[17:25]),
		AuthenticatorID: binary.BigEndian.Uint32(raw[25:29]),
		Timestamp:       binary.BigEndian.Uint32(raw[29:33]),
	}
	if token.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, token.Version)
	}
	return token, nil
}

// payload encodes the MAC-covered prefix.
func (t *Token) payload() []byte {
	buffer := make([]byte, macOffset, Size)
	buffer[0] = t.Version
	binary.LittleEndian.PutUint64(buffer[1:9], t.Challenge)
	binary.LittleEndian.PutUint64(buffer[9:17], t.RootUserID)
	binary.LittleEndian.PutUint64(buffer[17:25], t.SecondaryUserID)
	binary.BigEndian.PutUint32(buffer[25:29], t.AuthenticatorID)
	binary.BigEndian.PutUint32(buffer[29:33], t.Timestamp)
	return buffer
}

// Mint encodes token and appends its MAC under key.
func Mint(key []byte, token *Token) []byte {
	payload := token.payload()
	return append(payload, computeMAC(key, payload)...)
}

func computeMAC(key, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// DeriveKey derives the token MAC key from master.
func DeriveKey(master []byte) (*secret.Buffer, error) {
	if len(master) == 0 {
		return nil, fmt.Errorf("authtoken: deriving key: %w", secret.ErrEmpty)
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(keyInfo)), key); err != nil {
		secret.Zero(key)
		return nil, fmt.Errorf("authtoken: deriving key: %w", err)
	}
	return secret.NewFromBytes(key)
}
