package redis

import "fmt"

// Redis key patterns for the application
// Following the pattern: entity:id or entity:id:attribute

// Bot keys

func BotKey(botID string) string {
	return fmt.Sprintf("bot:%s", botID)
}

func ClientBotsKey(clientID string) string {
	return fmt.Sprintf("client_bots:%s", clientID)
}

func BotsByStatusKey(status string) string {
	return fmt.Sprintf("bots_by_status:%s", status)
}

func BotsByVenueKey(venue string) string {
	return fmt.Sprintf("bots_by_venue:%s", venue)
}

// Credential keys

func CredentialKey(credentialID string) string {
	return fmt.Sprintf("credential:%s", credentialID)
}

func ClientCredentialsKey(clientID string) string {
	return fmt.Sprintf("client_credentials:%s", clientID)
}

func AllCredentialsKey() string {
	return "credentials:all"
}

// Trade record keys

func TradeKey(tradeID string) string {
	return fmt.Sprintf("trade:%s", tradeID)
}

// BotTradesKey is a sorted set of trade ids scored by execution time (unix
// seconds, UTC) so daily-notional queries are range reads.
func BotTradesKey(botID int64) string {
	return fmt.Sprintf("bot_trades:%d", botID)
}

// Health audit keys

// BotHealthAuditKey is an append-only list of health transitions for one bot.
func BotHealthAuditKey(botID int64) string {
	return fmt.Sprintf("bot_health_audit:%d", botID)
}

// Rate limiting keys

func RateLimitKey(identifier, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, identifier)
}

// WebSocket pub/sub channels

func WSBroadcastKey() string {
	return "ws:broadcast"
}

func WSClientKey(clientID string) string {
	return fmt.Sprintf("ws:client:%s", clientID)
}

// Sequences

func BotSequenceKey() string {
	return "sequences:bot_id"
}

func CredentialSequenceKey() string {
	return "sequences:credential_id"
}
