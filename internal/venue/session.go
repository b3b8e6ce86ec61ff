package venue

import (
	"context"
	"fmt"
	"sync"

	"botfleet/backend/internal/model"
	"botfleet/backend/pkg/cex"
	"botfleet/backend/pkg/crypto"
	"botfleet/backend/pkg/logger"
)

// Config carries the venue endpoints needed to build connectors. Populated
// once at startup from application config.
type Config struct {
	MexcAPIURL      string
	BitmartAPIURL   string
	CoinstoreAPIURL string
	ProxyURL        string
	SolanaRPCURL    string
	AggregatorURL   string
	SlippageBps     int
}

// Session is an authenticated, bot-scoped handle on a venue. It pins the
// credential version it was built from so rotation invalidates it.
type Session struct {
	BotID             int64
	Venue             Venue
	Pair              Pair
	CredentialVersion int

	conn Connector
}

func (s *Session) GetBalance(ctx context.Context) (Balance, error) {
	return s.conn.GetBalance(ctx, s.Pair)
}

func (s *Session) GetMidPrice(ctx context.Context) (float64, error) {
	return s.conn.GetMidPrice(ctx, s.Pair)
}

func (s *Session) PlaceOrder(ctx context.Context, side string, qty, price float64) (string, error) {
	return s.conn.PlaceOrder(ctx, s.Pair, side, qty, price)
}

func (s *Session) CancelOrder(ctx context.Context, orderID string) error {
	return s.conn.CancelOrder(ctx, s.Pair, orderID)
}

// ActivityProber is implemented by connectors that can report recent venue
// activity. On-chain venues expose the wallet's latest signatures.
type ActivityProber interface {
	RecentActivity(ctx context.Context, limit int) (interface{}, error)
}

// RecentActivity probes the venue for recent activity. The second return is
// false when the venue has no activity probe; the result shape is not
// validated here.
func (s *Session) RecentActivity(ctx context.Context, limit int) (interface{}, bool, error) {
	p, ok := s.conn.(ActivityProber)
	if !ok {
		return nil, false, nil
	}
	out, err := p.RecentActivity(ctx, limit)
	return out, true, err
}

// NewSession builds an authenticated session for the bot from plaintext
// credential material. The material is used only during construction and not
// retained on the session.
func NewSession(cfg Config, bot *model.Bot, creds *model.DecryptedCredential) (*Session, error) {
	v, err := Resolve(bot.Venue)
	if err != nil {
		return nil, err
	}

	pair := Pair{
		Symbol:        bot.Symbol,
		BaseMint:      bot.BaseMint,
		QuoteMint:     bot.QuoteMint,
		BaseDecimals:  bot.BaseDecimals,
		QuoteDecimals: bot.QuoteDecimals,
	}

	var conn Connector
	if v.IsDEX() {
		if creds.PrivateKey == "" {
			return nil, fmt.Errorf("credential has no wallet private key for venue %s", v)
		}
		signer, kerr := crypto.SignerFromPrivateKey(creds.PrivateKey)
		if kerr != nil {
			return nil, kerr
		}
		conn, err = newDEXConnector(cfg, creds.Wallet, signer)
	} else {
		conn, err = newCEXConnector(v, cfg, cex.Credentials{
			Key:        creds.Key,
			Secret:     creds.Secret,
			Passphrase: creds.Passphrase,
			Memo:       creds.Memo,
		})
	}
	if err != nil {
		return nil, err
	}

	return &Session{
		BotID:             bot.ID,
		Venue:             v,
		Pair:              pair,
		CredentialVersion: creds.Version,
		conn:              conn,
	}, nil
}

// NewSessionWithConnector builds a session around an existing connector.
func NewSessionWithConnector(botID int64, v Venue, pair Pair, version int, conn Connector) *Session {
	return &Session{
		BotID:             botID,
		Venue:             v,
		Pair:              pair,
		CredentialVersion: version,
		conn:              conn,
	}
}

// DecryptFunc resolves a bot's credential to plaintext material. Supplied by
// the credential service so decryption stays behind one choke point.
type DecryptFunc func(ctx context.Context, credentialID int64) (*model.DecryptedCredential, error)

// Manager caches live sessions per bot. Sessions survive across ticks so the
// HTTP transport and signer state are reused; a credential rotation or venue
// change forces a rebuild on the next acquire.
type Manager struct {
	cfg      Config
	decrypt  DecryptFunc
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewManager creates a session manager.
func NewManager(cfg Config, decrypt DecryptFunc) *Manager {
	return &Manager{
		cfg:      cfg,
		decrypt:  decrypt,
		sessions: make(map[int64]*Session),
	}
}

// GetOrCreate returns the cached session for the bot when it is still valid,
// otherwise decrypts the credential and builds a fresh one.
func (m *Manager) GetOrCreate(ctx context.Context, bot *model.Bot, currentVersion int) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[bot.ID]
	m.mu.RUnlock()
	if ok && s.CredentialVersion == currentVersion && string(s.Venue) == bot.Venue {
		return s, nil
	}

	creds, err := m.decrypt(ctx, bot.CredentialID)
	if err != nil {
		return nil, err
	}

	s, err = NewSession(m.cfg, bot, creds)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[bot.ID] = s
	m.mu.Unlock()

	logger.GetLogger().WithBot(bot.ID).Debugf("Venue session established: venue=%s credential_version=%d", bot.Venue, s.CredentialVersion)
	return s, nil
}

// Teardown drops the cached session for a bot. Called on stop and delete.
func (m *Manager) Teardown(botID int64) {
	m.mu.Lock()
	delete(m.sessions, botID)
	m.mu.Unlock()
}
