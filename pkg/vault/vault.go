// Package vault encrypts credential payloads at rest with a
// process-wide AES-256-GCM master key. A blob that fails to decrypt is
// unusable, full stop; callers must never fall back to partial trust.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrBadKey     = errors.New("vault: master key must be 32 bytes")
	ErrCorrupt    = errors.New("vault: blob failed authentication")
	ErrShortBlob  = errors.New("vault: blob shorter than nonce")
	ErrNotEncoded = errors.New("vault: blob is not valid base64")
)

// Vault seals and opens credential maps with one symmetric key.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a raw 32-byte master key.
func New(masterKey []byte) (*Vault, error) {
	if len(masterKey) != 32 {
		return nil, ErrBadKey
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt serializes the credential map and seals it. The nonce is
// prepended to the ciphertext and the whole blob is base64-encoded.
func (v *Vault) Encrypt(credentials map[string]string) (string, error) {
	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return "", fmt.Errorf("vault: marshal: %w", err)
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering, truncation,
// or wrong key yields an error, never a wrong-but-plausible object.
func (v *Vault) Decrypt(blob string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrNotEncoded
	}

	if len(raw) < v.aead.NonceSize() {
		return nil, ErrShortBlob
	}

	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrCorrupt
	}

	var credentials map[string]string
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return nil, ErrCorrupt
	}

	return credentials, nil
}
