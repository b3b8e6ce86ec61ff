// Package crypto is the encryption boundary for exchange API secrets and
// wallet private keys. Secrets are sealed with XChaCha20-Poly1305 under a
// single process-wide key; callers decrypt, use and discard.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required length of the vault key in bytes.
const KeySize = chacha20poly1305.KeySize

// ErrNotConfigured is returned when the vault key is missing or malformed.
// The vault fails closed: no credential operation falls back to plaintext.
var ErrNotConfigured = errors.New("encryption not configured")

// Vault seals and opens credential material.
type Vault struct {
	key []byte
}

// NewVault creates a vault from a 32-byte key. An empty or wrong-length key
// yields ErrNotConfigured rather than a degraded vault.
func NewVault(key string) (*Vault, error) {
	if len(key) != KeySize {
		return nil, ErrNotConfigured
	}
	return &Vault{key: []byte(key)}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v == nil || len(v.key) != KeySize {
		return "", ErrNotConfigured
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if v == nil || len(v.key) != KeySize {
		return "", ErrNotConfigured
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	if len(raw) < aead.NonceSize() {
		return "", errors.New("malformed ciphertext: too short")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
