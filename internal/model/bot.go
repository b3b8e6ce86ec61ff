package model

import "time"

// Administrative status constants. Only explicit start/stop calls mutate this.
const (
	BotStatusStopped = "stopped"
	BotStatusRunning = "running"
)

// Strategy constants
const (
	StrategySpread = "spread"
	StrategyVolume = "volume"
)

// Health status constants. Only the health monitor mutates these; health never
// implies control authority over the administrative status.
const (
	HealthUnknown = "unknown"
	HealthHealthy = "healthy"
	HealthStale   = "stale"
	HealthError   = "error"
)

// Partial-fill behavior for volume bots when balance covers only part of the
// chosen trade size.
const (
	PartialFillSkip   = "skip"
	PartialFillShrink = "shrink"
)

// Bot represents a hosted trading bot configuration plus its runtime fields.
type Bot struct {
	ID       int64  `json:"id"`
	ClientID string `json:"client_id"`
	Name     string `json:"name"`

	// Venue and instrument. CEX bots use Symbol; DEX bots use the mint pair.
	Venue         string `json:"venue"`
	Symbol        string `json:"symbol,omitempty"`
	BaseMint      string `json:"base_mint,omitempty"`
	QuoteMint     string `json:"quote_mint,omitempty"`
	BaseDecimals  int    `json:"base_decimals,omitempty"`
	QuoteDecimals int    `json:"quote_decimals,omitempty"`

	Strategy string        `json:"strategy"` // spread, volume
	Spread   *SpreadParams `json:"spread_params,omitempty"`
	Volume   *VolumeParams `json:"volume_params,omitempty"`

	// Delegated bots hand order placement to the external orchestration
	// service instead of executing locally.
	Delegated           bool   `json:"delegated"`
	OrchestratorProfile string `json:"orchestrator_profile,omitempty"`

	CredentialID int64 `json:"credential_id"`

	// Administrative status: running, stopped.
	Status string `json:"status"`

	// Derived health, owned by the health monitor.
	Health        string `json:"health"`
	HealthMessage string `json:"health_message,omitempty"`

	// Runtime timestamps, always stored in UTC.
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	LastTradeAt   *time.Time `json:"last_trade_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SpreadParams configures the market-making strategy.
type SpreadParams struct {
	BidSpreadPercent           float64 `json:"bid_spread_percent" validate:"gt=0,lte=20"`
	AskSpreadPercent           float64 `json:"ask_spread_percent" validate:"gt=0,lte=20"`
	OrderNotional              float64 `json:"order_notional" validate:"gt=0"`
	RepositionThresholdPercent float64 `json:"reposition_threshold_percent" validate:"gte=0,lte=10"`
}

// VolumeParams configures the randomized volume-generation strategy.
type VolumeParams struct {
	DailyTargetNotional float64 `json:"daily_target_notional" validate:"gt=0"`
	MinTradeNotional    float64 `json:"min_trade_notional" validate:"gt=0"`
	MaxTradeNotional    float64 `json:"max_trade_notional" validate:"gtefield=MinTradeNotional"`
	MinIntervalSec      int     `json:"min_interval_sec" validate:"gte=1"`
	MaxIntervalSec      int     `json:"max_interval_sec" validate:"gtefield=MinIntervalSec"`
	// PartialFillMode decides whether a trade that balance cannot fully cover
	// is shrunk to fit or skipped. Explicit choice, default skip.
	PartialFillMode string `json:"partial_fill_mode" validate:"omitempty,oneof=skip shrink"`
}

// BotRequest represents the request to create or update a bot.
type BotRequest struct {
	Name                string        `json:"name" binding:"required"`
	Venue               string        `json:"venue" binding:"required"`
	Symbol              string        `json:"symbol"`
	BaseMint            string        `json:"base_mint"`
	QuoteMint           string        `json:"quote_mint"`
	BaseDecimals        int           `json:"base_decimals"`
	QuoteDecimals       int           `json:"quote_decimals"`
	Strategy            string        `json:"strategy" binding:"required,oneof=spread volume"`
	Spread              *SpreadParams `json:"spread_params"`
	Volume              *VolumeParams `json:"volume_params"`
	Delegated           bool          `json:"delegated"`
	OrchestratorProfile string        `json:"orchestrator_profile"`
	CredentialID        int64         `json:"credential_id"`
}

// IsRunning reports the administrative on switch.
func (b *Bot) IsRunning() bool {
	return b.Status == BotStatusRunning
}

// ExpectedCadence is the longest gap between trades the health monitor
// tolerates before classifying the bot as stale.
func (b *Bot) ExpectedCadence() time.Duration {
	if b.Strategy == StrategyVolume && b.Volume != nil && b.Volume.MaxIntervalSec > 0 {
		return 2 * time.Duration(b.Volume.MaxIntervalSec) * time.Second
	}
	// Spread bots quote every tick; an hour of silence means something is wrong.
	return time.Hour
}
