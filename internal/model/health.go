package model

import "time"

// HealthTransition is an append-only audit row recorded by the health monitor
// every time a bot's derived status changes.
type HealthTransition struct {
	ID       string    `json:"id"`
	BotID    int64     `json:"bot_id"`
	Previous string    `json:"previous"`
	Current  string    `json:"current"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"` // UTC
}
