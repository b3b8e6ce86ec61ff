// Package repository provides data access for the application and interacts with Redis.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/redis"

	redislib "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = fmt.Errorf("record not found")

type BotRepository struct {
	redis *redis.Client
}

func NewBotRepository(redisClient *redis.Client) *BotRepository {
	return &BotRepository{
		redis: redisClient,
	}
}

// Create creates a new bot. New bots start stopped with unknown health.
func (r *BotRepository) Create(ctx context.Context, bot *model.Bot) error {
	if bot.ID == 0 {
		id, err := r.redis.Incr(ctx, redis.BotSequenceKey())
		if err != nil {
			return err
		}
		bot.ID = id
	}

	bot.CreatedAt = util.NowUTC()
	bot.UpdatedAt = bot.CreatedAt
	bot.Status = model.BotStatusStopped
	bot.Health = model.HealthUnknown

	botIDStr := strconv.FormatInt(bot.ID, 10)

	if err := r.redis.SetJSON(ctx, redis.BotKey(botIDStr), bot, 0); err != nil {
		return err
	}

	// Index memberships: owner, status, venue.
	if err := r.redis.SAdd(ctx, redis.ClientBotsKey(bot.ClientID), botIDStr); err != nil {
		return err
	}
	if err := r.redis.SAdd(ctx, redis.BotsByStatusKey(bot.Status), botIDStr); err != nil {
		return err
	}
	if err := r.redis.SAdd(ctx, redis.BotsByVenueKey(bot.Venue), botIDStr); err != nil {
		return err
	}

	return nil
}

// GetByID retrieves a bot by ID. Timestamps are normalized to UTC on read.
func (r *BotRepository) GetByID(ctx context.Context, botID int64) (*model.Bot, error) {
	key := redis.BotKey(strconv.FormatInt(botID, 10))
	var bot model.Bot
	err := r.redis.GetJSON(ctx, key, &bot)
	if err != nil {
		if err == redislib.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	normalizeBotTimes(&bot)
	return &bot, nil
}

// Update updates a bot. oldStatus and oldVenue move index memberships when
// either changed; pass "" to leave the index alone.
func (r *BotRepository) Update(ctx context.Context, bot *model.Bot, oldStatus, oldVenue string) error {
	bot.UpdatedAt = util.NowUTC()
	botIDStr := strconv.FormatInt(bot.ID, 10)

	if err := r.redis.SetJSON(ctx, redis.BotKey(botIDStr), bot, 0); err != nil {
		return err
	}

	if oldStatus != "" && oldStatus != bot.Status {
		r.redis.SRem(ctx, redis.BotsByStatusKey(oldStatus), botIDStr)
		r.redis.SAdd(ctx, redis.BotsByStatusKey(bot.Status), botIDStr)
	}
	if oldVenue != "" && oldVenue != bot.Venue {
		r.redis.SRem(ctx, redis.BotsByVenueKey(oldVenue), botIDStr)
		r.redis.SAdd(ctx, redis.BotsByVenueKey(bot.Venue), botIDStr)
	}

	return nil
}

// Delete removes a bot and all of its index memberships.
func (r *BotRepository) Delete(ctx context.Context, botID int64) error {
	bot, err := r.GetByID(ctx, botID)
	if err != nil {
		return err
	}

	botIDStr := strconv.FormatInt(botID, 10)

	if err := r.redis.Del(ctx, redis.BotKey(botIDStr)); err != nil {
		return err
	}

	r.redis.SRem(ctx, redis.ClientBotsKey(bot.ClientID), botIDStr)
	r.redis.SRem(ctx, redis.BotsByStatusKey(bot.Status), botIDStr)
	r.redis.SRem(ctx, redis.BotsByVenueKey(bot.Venue), botIDStr)

	return nil
}

// ListByClient retrieves all bots owned by one client.
func (r *BotRepository) ListByClient(ctx context.Context, clientID string) ([]*model.Bot, error) {
	return r.listBySet(ctx, redis.ClientBotsKey(clientID))
}

// ListByStatus retrieves all bots with a specific administrative status. The
// scheduler and the health monitor build their work sets from this.
func (r *BotRepository) ListByStatus(ctx context.Context, status string) ([]*model.Bot, error) {
	return r.listBySet(ctx, redis.BotsByStatusKey(status))
}

// ListByVenue retrieves all bots trading on one venue.
func (r *BotRepository) ListByVenue(ctx context.Context, venue string) ([]*model.Bot, error) {
	return r.listBySet(ctx, redis.BotsByVenueKey(venue))
}

func (r *BotRepository) listBySet(ctx context.Context, setKey string) ([]*model.Bot, error) {
	botIDs, err := r.redis.SMembers(ctx, setKey)
	if err != nil {
		return nil, err
	}

	bots := make([]*model.Bot, 0, len(botIDs))
	for _, idStr := range botIDs {
		id, _ := strconv.ParseInt(idStr, 10, 64)
		bot, err := r.GetByID(ctx, id)
		if err == nil {
			bots = append(bots, bot)
		}
	}

	return bots, nil
}

// UpdateStatus updates the administrative status. Only start/stop calls go
// through here; the health monitor never does.
func (r *BotRepository) UpdateStatus(ctx context.Context, botID int64, status string) error {
	bot, err := r.GetByID(ctx, botID)
	if err != nil {
		return err
	}

	oldStatus := bot.Status
	bot.Status = status

	return r.Update(ctx, bot, oldStatus, "")
}

// UpdateHealth updates the derived health fields. Owned by the health monitor.
func (r *BotRepository) UpdateHealth(ctx context.Context, botID int64, health, message string) error {
	return r.mutateBot(ctx, botID, func(bot *model.Bot) {
		bot.Health = health
		bot.HealthMessage = message
	})
}

// RecordHeartbeat stamps a serviced scheduler tick.
func (r *BotRepository) RecordHeartbeat(ctx context.Context, botID int64) error {
	return r.mutateBot(ctx, botID, func(bot *model.Bot) {
		now := util.NowUTC()
		bot.LastHeartbeat = &now
	})
}

// RecordTradeTime stamps the bot's last successful trade.
func (r *BotRepository) RecordTradeTime(ctx context.Context, botID int64) error {
	return r.mutateBot(ctx, botID, func(bot *model.Bot) {
		now := util.NowUTC()
		bot.LastTradeAt = &now
	})
}

// mutateBot applies a field-level change to the stored bot through an
// optimistic transaction. The scheduler and the health monitor stamp the same
// blob concurrently; a plain read-modify-write here would let one overwrite
// the other's field.
func (r *BotRepository) mutateBot(ctx context.Context, botID int64, mutate func(*model.Bot)) error {
	key := redis.BotKey(strconv.FormatInt(botID, 10))

	err := r.redis.UpdateJSON(ctx, key, func(data []byte) (interface{}, error) {
		var bot model.Bot
		if err := json.Unmarshal(data, &bot); err != nil {
			return nil, err
		}
		mutate(&bot)
		bot.UpdatedAt = util.NowUTC()
		return &bot, nil
	})
	if err == redislib.Nil {
		return ErrNotFound
	}
	return err
}

func normalizeBotTimes(bot *model.Bot) {
	bot.CreatedAt = util.ToUTC(bot.CreatedAt)
	bot.UpdatedAt = util.ToUTC(bot.UpdatedAt)
	bot.LastHeartbeat = util.ToUTCPtr(bot.LastHeartbeat)
	bot.LastTradeAt = util.ToUTCPtr(bot.LastTradeAt)
}
