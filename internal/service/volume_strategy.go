package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/internal/venue"
	"botfleet/backend/pkg/logger"
)

// volumeTick executes the randomized volume strategy: one market trade per
// randomized interval, sized inside the configured band, until the daily
// notional target (UTC day) is reached.
func (e *Executor) volumeTick(ctx context.Context, bot *model.Bot, sess *venue.Session) TickResult {
	params := bot.Volume
	log := logger.GetLogger().WithBot(bot.ID)
	now := e.now()

	e.mu.Lock()
	st, ok := e.volume[bot.ID]
	if !ok {
		st = &volumeState{}
		e.volume[bot.ID] = st
	}
	e.mu.Unlock()

	if !st.nextTradeAt.IsZero() && now.Before(st.nextTradeAt) {
		return tickSkipped(fmt.Sprintf("waiting for next trade window at %s", st.nextTradeAt.Format(time.RFC3339)))
	}

	dayStart := util.StartOfDayUTC(now)
	doneToday, err := e.trades.NotionalSince(ctx, bot.ID, dayStart)
	if err != nil {
		return tickError("Failed to read today's executed notional", err)
	}
	if doneToday >= params.DailyTargetNotional {
		return tickSkipped(fmt.Sprintf("daily target reached (%.2f of %.2f)", doneToday, params.DailyTargetNotional))
	}

	priceRes := e.fetcher.FetchMidPrice(ctx, sess)
	if !priceRes.OK() {
		if priceRes.Reason == venue.FailAuth {
			return authTickError(priceRes.Err)
		}
		return tickSkipped(fmt.Sprintf("mid price unavailable (%s)", priceRes.Reason))
	}
	mid := priceRes.Price

	balRes := e.fetcher.FetchBalance(ctx, sess)
	if !balRes.OK() {
		if balRes.Reason == venue.FailAuth {
			return authTickError(balRes.Err)
		}
		return tickSkipped(fmt.Sprintf("balance unavailable (%s)", balRes.Reason))
	}
	bal := balRes.Balance

	// Size inside the band, clamped to what remains of the daily target.
	notional := params.MinTradeNotional + e.randFloat64()*(params.MaxTradeNotional-params.MinTradeNotional)
	if remaining := params.DailyTargetNotional - doneToday; notional > remaining {
		notional = remaining
	}
	if notional < params.MinTradeNotional {
		notional = params.MinTradeNotional
	}

	side := e.pickSide(st)

	// Affordability: quote funds a buy, base funds a sell.
	affordable := bal.QuoteAvailable
	if side == model.SideSell {
		affordable = bal.BaseAvailable * mid
	}

	if affordable < notional {
		if affordable < params.MinTradeNotional {
			return tickSkipped("insufficient balance")
		}
		switch mode := params.PartialFillMode; mode {
		case model.PartialFillShrink:
			notional = affordable
			log.Infof("Shrinking trade to available balance: notional=%.4f side=%s", notional, side)
		default: // skip
			return tickSkipped("insufficient balance for chosen trade size")
		}
	}

	qty := util.FloorToPrecision(notional/mid, 6)
	if qty <= 0 {
		return tickSkipped("trade size rounds to zero quantity")
	}

	orderID, err := sess.PlaceOrder(ctx, side, qty, 0)
	if err != nil {
		if venue.Classify(err) == venue.FailAuth {
			return authTickError(err)
		}
		return tickError("Order placement failed", err)
	}

	// A stop recorded while the order was in flight suppresses persistence.
	// The fill stands at the venue; only the bookkeeping is withheld.
	if !e.confirmStillRunning(ctx, bot.ID) {
		log.Warnf("Bot stopped mid-tick, order %s executed but not recorded against runtime state", orderID)
		return tickSkipped("stopped mid-tick")
	}

	trade := &model.TradeRecord{
		ID:         uuid.New().String(),
		BotID:      bot.ID,
		ClientID:   bot.ClientID,
		Venue:      bot.Venue,
		Symbol:     bot.Symbol,
		Side:       side,
		Quantity:   qty,
		Price:      mid,
		Notional:   util.RoundToPrecision(qty*mid, 8),
		OrderID:    orderID,
		ExecutedAt: now,
	}
	if err := e.trades.Record(ctx, trade); err != nil {
		return tickError("Failed to record executed trade", err)
	}
	if err := e.bots.RecordTradeTime(ctx, bot.ID); err != nil {
		log.Warnf("Failed to stamp last trade time: %v", err)
	}

	st.lastSide = side
	st.nextTradeAt = now.Add(e.nextInterval(params))

	log.Infof("Volume trade executed: side=%s qty=%.6f price=%.8f notional=%.4f order=%s next=%s",
		side, qty, mid, trade.Notional, orderID, st.nextTradeAt.Format(time.RFC3339))

	return TickResult{Outcome: TickTraded, Reason: fmt.Sprintf("%s %.6f @ %.8f", side, qty, mid)}
}

// pickSide alternates sides with a random tiebreak on the first trade so a
// fleet of bots does not lean one way.
func (e *Executor) pickSide(st *volumeState) string {
	switch st.lastSide {
	case model.SideBuy:
		return model.SideSell
	case model.SideSell:
		return model.SideBuy
	default:
		if e.randIntn(2) == 0 {
			return model.SideBuy
		}
		return model.SideSell
	}
}

func (e *Executor) nextInterval(params *model.VolumeParams) time.Duration {
	span := params.MaxIntervalSec - params.MinIntervalSec
	sec := params.MinIntervalSec
	if span > 0 {
		sec += e.randIntn(span + 1)
	}
	return time.Duration(sec) * time.Second
}
