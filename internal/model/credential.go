package model

import "time"

// Credential supplier attribution
const (
	CredentialSourceClient   = "client"
	CredentialSourceOperator = "operator"
)

// Credential is a per-client-per-venue encrypted secret. Plaintext exists only
// transiently during signing or session construction.
type Credential struct {
	ID       int64  `json:"id"`
	ClientID string `json:"client_id"`
	Venue    string `json:"venue"`

	EncryptedKey        string `json:"encrypted_key,omitempty"`
	EncryptedSecret     string `json:"encrypted_secret,omitempty"`
	EncryptedPassphrase string `json:"encrypted_passphrase,omitempty"`
	// EncryptedPrivateKey holds the chain wallet key for DEX venues.
	EncryptedPrivateKey string `json:"encrypted_private_key,omitempty"`
	// Memo is the venue sub-account identifier; required by some venues for
	// authentication but not itself secret.
	Memo string `json:"memo,omitempty"`

	// WalletAddress is derived once from a chain private key at submission.
	WalletAddress string `json:"wallet_address,omitempty"`

	Source string `json:"source"` // client, operator

	// Version is bumped on every rotation so live sessions know to rebuild.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DecryptedCredential carries plaintext secret material. Never persist or log.
type DecryptedCredential struct {
	Key        string
	Secret     string
	Passphrase string
	Memo       string
	PrivateKey string // chain wallet private key, DEX venues only
	Wallet     string
	Version    int
}

// CredentialRequest represents a credential submission.
type CredentialRequest struct {
	Venue      string `json:"venue" binding:"required"`
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
	Memo       string `json:"memo"`
	PrivateKey string `json:"private_key"` // DEX wallet key
	ClientID   string `json:"client_id"`   // operator-supplied credentials only
}

// CredentialResponse is the safe view returned by the API. No secret material.
type CredentialResponse struct {
	ID            int64     `json:"id"`
	ClientID      string    `json:"client_id"`
	Venue         string    `json:"venue"`
	Memo          string    `json:"memo,omitempty"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToResponse strips secret material for API exposure.
func (c *Credential) ToResponse() *CredentialResponse {
	return &CredentialResponse{
		ID:            c.ID,
		ClientID:      c.ClientID,
		Venue:         c.Venue,
		Memo:          c.Memo,
		WalletAddress: c.WalletAddress,
		Source:        c.Source,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
