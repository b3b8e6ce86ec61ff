// Package service implements the application's business logic: credential
// management, venue data fetching, trade execution, scheduling and health
// monitoring.
package service

import (
	"context"
	"strings"
	"sync"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/repository"
	"botfleet/backend/internal/util"
	"botfleet/backend/internal/venue"
	"botfleet/backend/pkg/crypto"
	"botfleet/backend/pkg/logger"
)

// CredentialService handles credential submission, decryption and rotation.
// Plaintext secret material never leaves this service except inside a
// DecryptedCredential handed to session construction.
type CredentialService struct {
	credRepo CredentialRepo
	botRepo  BotLister

	// vaultMu guards the vault pointer: RotateKey swaps it while the
	// scheduler's and monitor's session builders decrypt concurrently. Each
	// operation reads the pointer once so it works against one coherent vault.
	vaultMu sync.RWMutex
	vault   *crypto.Vault
}

// NewCredentialService creates a new credential service.
func NewCredentialService(credRepo CredentialRepo, botRepo BotLister, vault *crypto.Vault) *CredentialService {
	return &CredentialService{
		credRepo: credRepo,
		botRepo:  botRepo,
		vault:    vault,
	}
}

func (s *CredentialService) currentVault() *crypto.Vault {
	s.vaultMu.RLock()
	defer s.vaultMu.RUnlock()
	return s.vault
}

func maskString(s string) string {
	if len(s) == 0 {
		return "<empty>"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// Submit validates and stores a credential for a client. Secret fields are
// trimmed (copy-paste whitespace is the most common submission mistake),
// validated per venue, encrypted and stored. For DEX venues the public wallet
// address is derived from the private key at submission so later reads never
// need the key.
func (s *CredentialService) Submit(ctx context.Context, clientID, source string, req *model.CredentialRequest) (*model.CredentialResponse, error) {
	v, err := venue.Resolve(req.Venue)
	if err != nil {
		return nil, util.ErrConfiguration(err.Error())
	}

	key := strings.TrimSpace(req.Key)
	secret := strings.TrimSpace(req.Secret)
	passphrase := strings.TrimSpace(req.Passphrase)
	memo := strings.TrimSpace(req.Memo)
	privateKey := strings.TrimSpace(req.PrivateKey)

	cred := &model.Credential{
		ClientID: clientID,
		Venue:    string(v),
		Memo:     memo,
		Source:   source,
	}

	log := logger.GetLogger()
	vault := s.currentVault()

	if v.IsDEX() {
		if privateKey == "" {
			return nil, util.ErrValidation("Wallet private key cannot be empty")
		}
		wallet, derr := crypto.DeriveWalletAddress(privateKey)
		if derr != nil {
			return nil, util.NewAppErrorWithDetails(400, util.ErrCodeValidation,
				"Invalid wallet private key", derr.Error())
		}
		cred.WalletAddress = wallet

		encrypted, eerr := vault.Encrypt(privateKey)
		if eerr != nil {
			return nil, vaultError(eerr, "Failed to encrypt wallet private key")
		}
		cred.EncryptedPrivateKey = encrypted

		log.Infof("Storing wallet credential for client %s: venue=%s wallet=%s", clientID, v, wallet)
	} else {
		if key == "" {
			return nil, util.ErrValidation("API key cannot be empty")
		}
		if secret == "" {
			return nil, util.ErrValidation("API secret cannot be empty")
		}
		if v == venue.Bitmart && memo == "" {
			return nil, util.ErrValidation("This venue requires a memo (account UID) alongside key and secret")
		}

		encryptedKey, eerr := vault.Encrypt(key)
		if eerr != nil {
			return nil, vaultError(eerr, "Failed to encrypt API key")
		}
		encryptedSecret, eerr := vault.Encrypt(secret)
		if eerr != nil {
			return nil, vaultError(eerr, "Failed to encrypt API secret")
		}
		cred.EncryptedKey = encryptedKey
		cred.EncryptedSecret = encryptedSecret

		if passphrase != "" {
			encryptedPassphrase, perr := vault.Encrypt(passphrase)
			if perr != nil {
				return nil, vaultError(perr, "Failed to encrypt API passphrase")
			}
			cred.EncryptedPassphrase = encryptedPassphrase
		}

		log.Infof("Storing API credential for client %s: venue=%s key=%s (len=%d)", clientID, v, maskString(key), len(key))
	}

	if err := s.credRepo.Create(ctx, cred); err != nil {
		return nil, util.ErrInternalServer("Failed to save credential")
	}

	return cred.ToResponse(), nil
}

// Get returns the safe view of one credential, scoped to its owner.
func (s *CredentialService) Get(ctx context.Context, clientID string, credentialID int64) (*model.CredentialResponse, error) {
	cred, err := s.ownedCredential(ctx, clientID, credentialID)
	if err != nil {
		return nil, err
	}
	return cred.ToResponse(), nil
}

// List returns all credentials for one client, safe view only.
func (s *CredentialService) List(ctx context.Context, clientID string) ([]*model.CredentialResponse, error) {
	creds, err := s.credRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to list credentials")
	}

	out := make([]*model.CredentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.ToResponse())
	}
	return out, nil
}

// Delete removes a credential. Refused while any bot still references it.
func (s *CredentialService) Delete(ctx context.Context, clientID string, credentialID int64) error {
	if _, err := s.ownedCredential(ctx, clientID, credentialID); err != nil {
		return err
	}

	bots, err := s.botRepo.ListByClient(ctx, clientID)
	if err != nil {
		return util.ErrInternalServer("Failed to check credential references")
	}
	for _, b := range bots {
		if b.CredentialID == credentialID {
			return util.ErrConflict("Credential is still referenced by bot " + b.Name)
		}
	}

	if err := s.credRepo.Delete(ctx, credentialID); err != nil {
		return util.ErrInternalServer("Failed to delete credential")
	}
	return nil
}

// Decrypt opens a credential for internal use. Never exposed through the API.
func (s *CredentialService) Decrypt(ctx context.Context, credentialID int64) (*model.DecryptedCredential, error) {
	cred, err := s.credRepo.GetByID(ctx, credentialID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, util.ErrNotFound("Credential not found")
		}
		return nil, util.ErrInternalServer("Failed to load credential")
	}

	out := &model.DecryptedCredential{
		Memo:    cred.Memo,
		Wallet:  cred.WalletAddress,
		Version: cred.Version,
	}

	vault := s.currentVault()

	if cred.EncryptedKey != "" {
		out.Key, err = vault.Decrypt(cred.EncryptedKey)
		if err != nil {
			return nil, vaultError(err, "Failed to decrypt API key")
		}
	}
	if cred.EncryptedSecret != "" {
		out.Secret, err = vault.Decrypt(cred.EncryptedSecret)
		if err != nil {
			return nil, vaultError(err, "Failed to decrypt API secret")
		}
	}
	if cred.EncryptedPassphrase != "" {
		out.Passphrase, err = vault.Decrypt(cred.EncryptedPassphrase)
		if err != nil {
			return nil, vaultError(err, "Failed to decrypt API passphrase")
		}
	}
	if cred.EncryptedPrivateKey != "" {
		out.PrivateKey, err = vault.Decrypt(cred.EncryptedPrivateKey)
		if err != nil {
			return nil, vaultError(err, "Failed to decrypt wallet private key")
		}
	}

	return out, nil
}

// RotateKey re-encrypts every stored credential under a new vault key and
// bumps each credential's version so live sessions rebuild. Operator only.
// On any per-credential failure the credential is left untouched under the
// old key and reported; rotation continues with the rest.
func (s *CredentialService) RotateKey(ctx context.Context, newKey string) (rotated int, failed []int64, err error) {
	newVault, err := crypto.NewVault(newKey)
	if err != nil {
		return 0, nil, util.NewAppError(400, util.ErrCodeVaultNotConfigured,
			"New encryption key must be exactly 32 bytes")
	}

	creds, err := s.credRepo.ListAll(ctx)
	if err != nil {
		return 0, nil, util.ErrInternalServer("Failed to list credentials for rotation")
	}

	log := logger.GetLogger()
	oldVault := s.currentVault()

	reseal := func(ciphertext string) (string, error) {
		if ciphertext == "" {
			return "", nil
		}
		plain, derr := oldVault.Decrypt(ciphertext)
		if derr != nil {
			return "", derr
		}
		return newVault.Encrypt(plain)
	}

	for _, cred := range creds {
		var rerr error
		next := *cred

		if next.EncryptedKey, rerr = reseal(cred.EncryptedKey); rerr == nil {
			if next.EncryptedSecret, rerr = reseal(cred.EncryptedSecret); rerr == nil {
				if next.EncryptedPassphrase, rerr = reseal(cred.EncryptedPassphrase); rerr == nil {
					next.EncryptedPrivateKey, rerr = reseal(cred.EncryptedPrivateKey)
				}
			}
		}
		if rerr != nil {
			log.Errorf("Key rotation failed for credential %d: %v", cred.ID, rerr)
			failed = append(failed, cred.ID)
			continue
		}

		next.Version = cred.Version + 1
		if uerr := s.credRepo.Update(ctx, &next); uerr != nil {
			log.Errorf("Key rotation failed to persist credential %d: %v", cred.ID, uerr)
			failed = append(failed, cred.ID)
			continue
		}
		rotated++
	}

	// Rotated credentials are only readable under the new key from here on.
	s.vaultMu.Lock()
	s.vault = newVault
	s.vaultMu.Unlock()
	log.Infof("Encryption key rotation complete: rotated=%d failed=%d", rotated, len(failed))

	return rotated, failed, nil
}

func (s *CredentialService) ownedCredential(ctx context.Context, clientID string, credentialID int64) (*model.Credential, error) {
	cred, err := s.credRepo.GetByID(ctx, credentialID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, util.ErrNotFound("Credential not found")
		}
		return nil, util.ErrInternalServer("Failed to load credential")
	}
	if cred.ClientID != clientID {
		// Do not reveal existence of other clients' credentials.
		return nil, util.ErrNotFound("Credential not found")
	}
	return cred, nil
}

func vaultError(err error, message string) *util.AppError {
	if err == crypto.ErrNotConfigured {
		return util.NewAppError(500, util.ErrCodeVaultNotConfigured,
			"Credential encryption is not configured")
	}
	return util.NewAppErrorWithDetails(500, util.ErrCodeInternal, message, err.Error())
}
