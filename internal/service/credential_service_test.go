package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"sync"
	"testing"

	"github.com/mr-tron/base58"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/repository"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/crypto"
)

const vaultTestKey = "0123456789abcdef0123456789abcdef"

type fakeCredRepo struct {
	mu    sync.Mutex
	seq   int64
	creds map[int64]*model.Credential
}

func newFakeCredRepo() *fakeCredRepo {
	return &fakeCredRepo{creds: make(map[int64]*model.Credential)}
}

func (r *fakeCredRepo) Create(_ context.Context, cred *model.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	cred.ID = r.seq
	if cred.Version == 0 {
		cred.Version = 1
	}
	r.creds[cred.ID] = cred
	return nil
}

func (r *fakeCredRepo) GetByID(_ context.Context, credentialID int64) (*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[credentialID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (r *fakeCredRepo) Update(_ context.Context, cred *model.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[cred.ID] = cred
	return nil
}

func (r *fakeCredRepo) Delete(_ context.Context, credentialID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creds, credentialID)
	return nil
}

func (r *fakeCredRepo) ListByClient(_ context.Context, clientID string) ([]*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Credential
	for _, c := range r.creds {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCredRepo) ListAll(_ context.Context) ([]*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Credential, 0, len(r.creds))
	for _, c := range r.creds {
		out = append(out, c)
	}
	return out, nil
}

func newCredServiceFixture(t *testing.T) (*CredentialService, *fakeCredRepo, *fakeBotStore) {
	t.Helper()
	vault, err := crypto.NewVault(vaultTestKey)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	repo := newFakeCredRepo()
	bots := newFakeBotStore()
	return NewCredentialService(repo, bots, vault), repo, bots
}

func testWalletKey(t *testing.T) (string, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return base58.Encode(priv), base58.Encode(pub)
}

func TestCredentialSubmitCEX(t *testing.T) {
	svc, repo, _ := newCredServiceFixture(t)

	// Whitespace is trimmed before anything is validated or sealed.
	resp, err := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, &model.CredentialRequest{
		Venue:  "MEXC",
		Key:    "  api-key  ",
		Secret: " api-secret\n",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Venue != "mexc" || resp.ClientID != "client-1" {
		t.Errorf("response = %+v", resp)
	}

	stored := repo.creds[resp.ID]
	if stored.EncryptedKey == "" || strings.Contains(stored.EncryptedKey, "api-key") {
		t.Error("key not sealed")
	}
	if stored.EncryptedSecret == "" || strings.Contains(stored.EncryptedSecret, "api-secret") {
		t.Error("secret not sealed")
	}

	plain, err := svc.Decrypt(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain.Key != "api-key" || plain.Secret != "api-secret" {
		t.Errorf("decrypted = %q/%q, want trimmed values", plain.Key, plain.Secret)
	}
	if plain.Version != 1 {
		t.Errorf("version = %d, want 1", plain.Version)
	}
}

func TestCredentialSubmitValidation(t *testing.T) {
	svc, _, _ := newCredServiceFixture(t)

	tests := []struct {
		name string
		req  *model.CredentialRequest
	}{
		{name: "unknown venue", req: &model.CredentialRequest{Venue: "binance", Key: "k", Secret: "s"}},
		{name: "missing key", req: &model.CredentialRequest{Venue: "mexc", Secret: "s"}},
		{name: "missing secret", req: &model.CredentialRequest{Venue: "mexc", Key: "k"}},
		{name: "whitespace only secret", req: &model.CredentialRequest{Venue: "mexc", Key: "k", Secret: "   "}},
		{name: "bitmart without memo", req: &model.CredentialRequest{Venue: "bitmart", Key: "k", Secret: "s"}},
		{name: "dex without private key", req: &model.CredentialRequest{Venue: "jupiter"}},
		{name: "dex with malformed key", req: &model.CredentialRequest{Venue: "jupiter", PrivateKey: "not-a-key!!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, tt.req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCredentialSubmitBitmartWithMemo(t *testing.T) {
	svc, _, _ := newCredServiceFixture(t)

	resp, err := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, &model.CredentialRequest{
		Venue: "bitmart", Key: "k", Secret: "s", Memo: "sub1",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Memo != "sub1" {
		t.Errorf("memo = %q", resp.Memo)
	}
}

func TestCredentialSubmitDEX(t *testing.T) {
	svc, repo, _ := newCredServiceFixture(t)
	privKey, wantWallet := testWalletKey(t)

	resp, err := svc.Submit(context.Background(), "client-1", model.CredentialSourceOperator, &model.CredentialRequest{
		Venue:      "jupiter",
		PrivateKey: privKey,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.WalletAddress != wantWallet {
		t.Errorf("wallet = %s, want %s", resp.WalletAddress, wantWallet)
	}
	if resp.Source != model.CredentialSourceOperator {
		t.Errorf("source = %s", resp.Source)
	}

	stored := repo.creds[resp.ID]
	if stored.EncryptedPrivateKey == "" || strings.Contains(stored.EncryptedPrivateKey, privKey) {
		t.Error("private key not sealed")
	}

	plain, err := svc.Decrypt(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain.PrivateKey != privKey || plain.Wallet != wantWallet {
		t.Error("decrypted wallet material mismatch")
	}
}

func TestCredentialOwnership(t *testing.T) {
	svc, _, _ := newCredServiceFixture(t)
	resp, err := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, &model.CredentialRequest{
		Venue: "mexc", Key: "k", Secret: "s",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := svc.Get(context.Background(), "client-1", resp.ID); err != nil {
		t.Errorf("owner read failed: %v", err)
	}

	// Another client's credential reads as not found.
	_, err = svc.Get(context.Background(), "client-2", resp.ID)
	appErr := util.GetAppError(err)
	if appErr == nil || appErr.StatusCode != 404 {
		t.Errorf("cross-client read: got %v, want 404", err)
	}
}

func TestCredentialDeleteRefusedWhileReferenced(t *testing.T) {
	svc, _, bots := newCredServiceFixture(t)
	resp, err := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, &model.CredentialRequest{
		Venue: "mexc", Key: "k", Secret: "s",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	bot := newVolumeBot(1)
	bot.CredentialID = resp.ID
	bots.Create(context.Background(), bot)

	derr := svc.Delete(context.Background(), "client-1", resp.ID)
	appErr := util.GetAppError(derr)
	if appErr == nil || appErr.StatusCode != 409 {
		t.Fatalf("delete while referenced: got %v, want conflict", derr)
	}

	bots.Delete(context.Background(), 1)
	if err := svc.Delete(context.Background(), "client-1", resp.ID); err != nil {
		t.Errorf("delete after dereference: %v", err)
	}
}

func TestCredentialRotateKey(t *testing.T) {
	svc, repo, _ := newCredServiceFixture(t)

	a, err := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, &model.CredentialRequest{
		Venue: "mexc", Key: "key-a", Secret: "secret-a",
	})
	if err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	b, err := svc.Submit(context.Background(), "client-2", model.CredentialSourceClient, &model.CredentialRequest{
		Venue: "coinstore", Key: "key-b", Secret: "secret-b",
	})
	if err != nil {
		t.Fatalf("Submit b: %v", err)
	}

	newKey := strings.Repeat("z", 32)
	rotated, failed, err := svc.RotateKey(context.Background(), newKey)
	if err != nil {
		t.Fatalf("RotateKey: %v", err)
	}
	if rotated != 2 || len(failed) != 0 {
		t.Fatalf("rotated=%d failed=%v, want 2/none", rotated, failed)
	}

	// Versions bump so live sessions rebuild.
	if repo.creds[a.ID].Version != 2 || repo.creds[b.ID].Version != 2 {
		t.Errorf("versions = %d/%d, want 2/2", repo.creds[a.ID].Version, repo.creds[b.ID].Version)
	}

	// Material is readable under the new key through the same service.
	plain, err := svc.Decrypt(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Decrypt after rotation: %v", err)
	}
	if plain.Key != "key-a" || plain.Secret != "secret-a" {
		t.Errorf("decrypted = %q/%q", plain.Key, plain.Secret)
	}

	// And unreadable under the old key.
	oldVault, _ := crypto.NewVault(vaultTestKey)
	if _, err := oldVault.Decrypt(repo.creds[a.ID].EncryptedKey); err == nil {
		t.Error("rotated ciphertext still opens under the old key")
	}
}

func TestCredentialRotateKeyConcurrentDecrypt(t *testing.T) {
	// Session builders decrypt while an operator rotates the key. The service
	// must hand each Decrypt one coherent vault for its whole pass, and the
	// swap itself must be synchronized against those readers.
	svc, _, _ := newCredServiceFixture(t)

	resp, err := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, &model.CredentialRequest{
		Venue: "mexc", Key: "api-key", Secret: "api-secret",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// A read that straddles the store/vault swap may fail; it must
			// never corrupt the service or return torn state.
			_, _ = svc.Decrypt(context.Background(), resp.ID)
		}
	}()

	rotated, failed, err := svc.RotateKey(context.Background(), strings.Repeat("k", 32))
	close(stop)
	wg.Wait()

	if err != nil || rotated != 1 || len(failed) != 0 {
		t.Fatalf("RotateKey: rotated=%d failed=%v err=%v", rotated, failed, err)
	}

	plain, err := svc.Decrypt(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Decrypt after rotation: %v", err)
	}
	if plain.Key != "api-key" || plain.Secret != "api-secret" {
		t.Errorf("decrypted = %q/%q", plain.Key, plain.Secret)
	}
	if plain.Version != 2 {
		t.Errorf("version = %d, want 2", plain.Version)
	}
}

func TestCredentialRotateKeyPartialFailure(t *testing.T) {
	svc, repo, _ := newCredServiceFixture(t)

	good, _ := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, &model.CredentialRequest{
		Venue: "mexc", Key: "key-good", Secret: "secret-good",
	})
	bad, _ := svc.Submit(context.Background(), "client-1", model.CredentialSourceClient, &model.CredentialRequest{
		Venue: "mexc", Key: "key-bad", Secret: "secret-bad",
	})
	repo.creds[bad.ID].EncryptedSecret = "corrupted"
	badVersion := repo.creds[bad.ID].Version

	rotated, failed, err := svc.RotateKey(context.Background(), strings.Repeat("y", 32))
	if err != nil {
		t.Fatalf("RotateKey: %v", err)
	}
	if rotated != 1 || len(failed) != 1 || failed[0] != bad.ID {
		t.Fatalf("rotated=%d failed=%v, want 1/[%d]", rotated, failed, bad.ID)
	}

	// The failed credential is untouched; the good one moved on.
	if repo.creds[bad.ID].Version != badVersion {
		t.Error("failed credential's version bumped")
	}
	if repo.creds[good.ID].Version != badVersion+1 {
		t.Error("good credential not rotated")
	}
}

func TestCredentialRotateKeyRejectsBadKey(t *testing.T) {
	svc, _, _ := newCredServiceFixture(t)

	_, _, err := svc.RotateKey(context.Background(), "too-short")
	appErr := util.GetAppError(err)
	if appErr == nil || appErr.Code != util.ErrCodeVaultNotConfigured {
		t.Fatalf("got %v, want vault-not-configured error", err)
	}
}
