package model

import "time"

// Trade sides
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// TradeRecord is an immutable log entry for one executed trade. Records are
// append-only and are the source of volume and P&L computation.
type TradeRecord struct {
	ID       string `json:"id"`
	BotID    int64  `json:"bot_id"`
	ClientID string `json:"client_id"`
	Venue    string `json:"venue"`
	Symbol   string `json:"symbol"`

	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Notional float64 `json:"notional"`

	// OrderID is the venue order id, or the transaction signature for DEX fills.
	OrderID string `json:"order_id"`

	ExecutedAt time.Time `json:"executed_at"` // UTC
}

// TradeSummary aggregates a bot's recent activity for read-only queries.
type TradeSummary struct {
	BotID         int64      `json:"bot_id"`
	TradesToday   int        `json:"trades_today"`
	NotionalToday float64    `json:"notional_today"`
	LastTradeAt   *time.Time `json:"last_trade_at,omitempty"`
	TotalTrades   int        `json:"total_trades"`
	TotalNotional float64    `json:"total_notional"`
}
