package repository

import (
	"context"
	"strconv"
	"time"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/redis"

	redislib "github.com/redis/go-redis/v9"
)

// TradeRepository stores the append-only trade history. Trades are never
// updated or deleted; the per-bot index is a sorted set scored by execution
// time so daily-notional queries are single range reads.
type TradeRepository struct {
	redis *redis.Client
}

func NewTradeRepository(redisClient *redis.Client) *TradeRepository {
	return &TradeRepository{
		redis: redisClient,
	}
}

// Record appends one executed trade.
func (r *TradeRepository) Record(ctx context.Context, trade *model.TradeRecord) error {
	trade.ExecutedAt = util.ToUTC(trade.ExecutedAt)

	if err := r.redis.SetJSON(ctx, redis.TradeKey(trade.ID), trade, 0); err != nil {
		return err
	}

	return r.redis.ZAdd(ctx, redis.BotTradesKey(trade.BotID), redislib.Z{
		Score:  float64(trade.ExecutedAt.Unix()),
		Member: trade.ID,
	})
}

// GetByID retrieves a single trade.
func (r *TradeRepository) GetByID(ctx context.Context, tradeID string) (*model.TradeRecord, error) {
	var trade model.TradeRecord
	err := r.redis.GetJSON(ctx, redis.TradeKey(tradeID), &trade)
	if err != nil {
		if err == redislib.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	trade.ExecutedAt = util.ToUTC(trade.ExecutedAt)
	return &trade, nil
}

// ListByBot returns the bot's most recent trades, newest first.
func (r *TradeRepository) ListByBot(ctx context.Context, botID int64, limit int64) ([]*model.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	tradeIDs, err := r.redis.ZRevRange(ctx, redis.BotTradesKey(botID), 0, limit-1)
	if err != nil {
		return nil, err
	}

	trades := make([]*model.TradeRecord, 0, len(tradeIDs))
	for _, id := range tradeIDs {
		trade, err := r.GetByID(ctx, id)
		if err == nil {
			trades = append(trades, trade)
		}
	}

	return trades, nil
}

// ListByBotSince returns trades executed at or after the given instant.
func (r *TradeRepository) ListByBotSince(ctx context.Context, botID int64, since time.Time) ([]*model.TradeRecord, error) {
	min := strconv.FormatInt(util.ToUTC(since).Unix(), 10)

	tradeIDs, err := r.redis.ZRangeByScore(ctx, redis.BotTradesKey(botID), min, "+inf")
	if err != nil {
		return nil, err
	}

	trades := make([]*model.TradeRecord, 0, len(tradeIDs))
	for _, id := range tradeIDs {
		trade, err := r.GetByID(ctx, id)
		if err == nil {
			trades = append(trades, trade)
		}
	}

	return trades, nil
}

// NotionalSince sums executed notional since the given instant. The volume
// strategy uses this with the start of the current UTC day to track progress
// toward the daily target.
func (r *TradeRepository) NotionalSince(ctx context.Context, botID int64, since time.Time) (float64, error) {
	trades, err := r.ListByBotSince(ctx, botID, since)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, t := range trades {
		total += t.Notional
	}
	return total, nil
}
