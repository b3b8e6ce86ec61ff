package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// DeriveWalletAddress derives the public Solana wallet address from a
// base58-encoded ed25519 private key. The private key is never persisted in
// any derived form; only the public address leaves this function.
func DeriveWalletAddress(privateKeyBase58 string) (string, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return "", fmt.Errorf("malformed private key: %w", err)
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		pub := ed25519.PrivateKey(raw).Public().(ed25519.PublicKey)
		return base58.Encode(pub), nil
	case ed25519.SeedSize:
		pub := ed25519.NewKeyFromSeed(raw).Public().(ed25519.PublicKey)
		return base58.Encode(pub), nil
	default:
		return "", errors.New("malformed private key: unexpected length")
	}
}

// SignerFromPrivateKey returns an ed25519 signer for transaction submission.
// Callers must not retain the key beyond the signing operation.
func SignerFromPrivateKey(privateKeyBase58 string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("malformed private key: %w", err)
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, errors.New("malformed private key: unexpected length")
	}
}
