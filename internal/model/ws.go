package model

// WebSocket event names pushed to connected clients.
const (
	EventBotStatus = "bot.status"
	EventBotHealth = "bot.health"
	EventBotTrade  = "bot.trade"
)

// WSMessage is the envelope for every pushed event.
type WSMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}
