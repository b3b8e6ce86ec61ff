package service

import (
	"context"
	"time"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/venue"
)

// Narrow store contracts the services depend on. The redis repositories
// satisfy them in production; tests substitute in-memory fakes.

type BotStore interface {
	GetByID(ctx context.Context, botID int64) (*model.Bot, error)
	ListByClient(ctx context.Context, clientID string) ([]*model.Bot, error)
	ListByStatus(ctx context.Context, status string) ([]*model.Bot, error)
	Create(ctx context.Context, bot *model.Bot) error
	Update(ctx context.Context, bot *model.Bot, oldStatus, oldVenue string) error
	Delete(ctx context.Context, botID int64) error
	UpdateStatus(ctx context.Context, botID int64, status string) error
	UpdateHealth(ctx context.Context, botID int64, health, message string) error
	RecordHeartbeat(ctx context.Context, botID int64) error
	RecordTradeTime(ctx context.Context, botID int64) error
}

type TradeStore interface {
	Record(ctx context.Context, trade *model.TradeRecord) error
	ListByBot(ctx context.Context, botID int64, limit int64) ([]*model.TradeRecord, error)
	ListByBotSince(ctx context.Context, botID int64, since time.Time) ([]*model.TradeRecord, error)
	NotionalSince(ctx context.Context, botID int64, since time.Time) (float64, error)
}

type HealthStore interface {
	RecordTransition(ctx context.Context, t *model.HealthTransition) error
	ListByBot(ctx context.Context, botID int64, limit int64) ([]*model.HealthTransition, error)
}

type CredentialStore interface {
	GetByID(ctx context.Context, credentialID int64) (*model.Credential, error)
}

// CredentialRepo is the full credential persistence contract the credential
// service manages secrets through.
type CredentialRepo interface {
	Create(ctx context.Context, cred *model.Credential) error
	GetByID(ctx context.Context, credentialID int64) (*model.Credential, error)
	Update(ctx context.Context, cred *model.Credential) error
	Delete(ctx context.Context, credentialID int64) error
	ListByClient(ctx context.Context, clientID string) ([]*model.Credential, error)
	ListAll(ctx context.Context) ([]*model.Credential, error)
}

// BotLister is the slice of the bot store the credential service needs for
// reference checks before deletion.
type BotLister interface {
	ListByClient(ctx context.Context, clientID string) ([]*model.Bot, error)
}

// Notifier pushes events to connected clients. The websocket hub satisfies it;
// a nil-safe no-op fake stands in for tests.
type Notifier interface {
	NotifyClient(clientID, event string, payload interface{})
}

// SessionProvider hands out authenticated venue sessions per bot.
type SessionProvider interface {
	GetOrCreate(ctx context.Context, bot *model.Bot, currentVersion int) (*venue.Session, error)
	Teardown(botID int64)
}
