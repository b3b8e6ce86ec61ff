package repository

import (
	"context"
	"encoding/json"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/redis"
)

// HealthRepository stores the append-only health transition audit trail.
type HealthRepository struct {
	redis *redis.Client
}

func NewHealthRepository(redisClient *redis.Client) *HealthRepository {
	return &HealthRepository{
		redis: redisClient,
	}
}

// RecordTransition appends one health transition for a bot.
func (r *HealthRepository) RecordTransition(ctx context.Context, t *model.HealthTransition) error {
	t.At = util.ToUTC(t.At)

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	return r.redis.RPush(ctx, redis.BotHealthAuditKey(t.BotID), string(data))
}

// ListByBot returns the bot's most recent transitions, newest first.
func (r *HealthRepository) ListByBot(ctx context.Context, botID int64, limit int64) ([]*model.HealthTransition, error) {
	if limit <= 0 {
		limit = 50
	}

	// List is append-only oldest-first; read the tail.
	entries, err := r.redis.LRange(ctx, redis.BotHealthAuditKey(botID), -limit, -1)
	if err != nil {
		return nil, err
	}

	transitions := make([]*model.HealthTransition, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		var t model.HealthTransition
		if err := json.Unmarshal([]byte(entries[i]), &t); err != nil {
			continue
		}
		t.At = util.ToUTC(t.At)
		transitions = append(transitions, &t)
	}

	return transitions, nil
}
