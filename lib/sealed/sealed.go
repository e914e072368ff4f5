// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/bureau-foundation/keygate/lib/secret"
)

// ErrNoRecipients is returned by Encrypt when no recipient is given.
var ErrNoRecipients = errors.New("sealed: at least one recipient is required")

// Keypair is an age x25519 identity and its public recipient.
type Keypair struct {
	// Identity is the AGE-SECRET-KEY-1... string. Never log it.
	Identity *secret.Buffer

	// Recipient is the age1... public key.
	Recipient string
}

// Close releases the identity.
func (k *Keypair) Close() error {
	if k.Identity == nil {
		return nil
	}
	return k.Identity.Close()
}

// GenerateKeypair creates a new x25519 identity.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating identity: %w", err)
	}
	protected, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting identity: %w", err)
	}
	return &Keypair{
		Identity:  protected,
		Recipient: identity.Recipient().String(),
	}, nil
}

// Encrypt seals plaintext to every recipient and returns the ciphertext
// as standard base64.
func Encrypt(plaintext []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", ErrNoRecipients
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("sealed: recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return "", fmt.Errorf("sealed: starting encryption: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("sealed: encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("sealed: finishing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Decrypt opens base64 ciphertext with identity. identity is borrowed,
// not closed. The caller closes the returned buffer.
func Decrypt(ciphertext string, identity *secret.Buffer) (*secret.Buffer, error) {
	parsed, err := age.ParseX25519Identity(identity.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("sealed: decoding ciphertext: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(raw), parsed)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting plaintext: %w", err)
	}
	return buffer, nil
}

// DecryptFile reads base64 ciphertext from path and opens it.
func DecryptFile(path string, identity *secret.Buffer) (*secret.Buffer, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading %s: %w", path, err)
	}
	return Decrypt(string(ciphertext), identity)
}

// ParseRecipient checks that key is a valid age x25519 recipient.
func ParseRecipient(key string) error {
	if _, err := age.ParseX25519Recipient(key); err != nil {
		return fmt.Errorf("sealed: invalid recipient: %w", err)
	}
	return nil
}
