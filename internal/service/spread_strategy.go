package service

import (
	"context"
	"fmt"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/internal/venue"
	"botfleet/backend/pkg/logger"
)

// spreadTick maintains a bid and an ask around the current mid price. Quotes
// rest until mid drifts past the reposition threshold, then both sides are
// cancelled and replaced around the new mid.
func (e *Executor) spreadTick(ctx context.Context, bot *model.Bot, sess *venue.Session) TickResult {
	params := bot.Spread
	log := logger.GetLogger().WithBot(bot.ID)

	priceRes := e.fetcher.FetchMidPrice(ctx, sess)
	if !priceRes.OK() {
		if priceRes.Reason == venue.FailAuth {
			return authTickError(priceRes.Err)
		}
		return tickSkipped(fmt.Sprintf("mid price unavailable (%s)", priceRes.Reason))
	}
	mid := priceRes.Price

	e.mu.Lock()
	st, ok := e.spread[bot.ID]
	if !ok {
		st = &spreadState{}
		e.spread[bot.ID] = st
	}
	e.mu.Unlock()

	// Quotes still inside the drift band rest untouched.
	if st.anchor > 0 && (st.bidOrderID != "" || st.askOrderID != "") {
		driftPct := util.Abs(mid-st.anchor) / st.anchor * 100
		if driftPct < params.RepositionThresholdPercent {
			return tickSkipped(fmt.Sprintf("quotes resting, drift %.3f%% within threshold", driftPct))
		}
		log.Infof("Repositioning quotes: mid=%.8f anchor=%.8f drift=%.3f%%", mid, st.anchor, driftPct)

		if st.bidOrderID != "" {
			if err := sess.CancelOrder(ctx, st.bidOrderID); err != nil {
				log.Warnf("Failed to cancel bid %s: %v", st.bidOrderID, err)
			}
			st.bidOrderID = ""
		}
		if st.askOrderID != "" {
			if err := sess.CancelOrder(ctx, st.askOrderID); err != nil {
				log.Warnf("Failed to cancel ask %s: %v", st.askOrderID, err)
			}
			st.askOrderID = ""
		}
	}

	balRes := e.fetcher.FetchBalance(ctx, sess)
	if !balRes.OK() {
		if balRes.Reason == venue.FailAuth {
			return authTickError(balRes.Err)
		}
		return tickSkipped(fmt.Sprintf("balance unavailable (%s)", balRes.Reason))
	}
	bal := balRes.Balance

	bidPrice := util.RoundToPrecision(mid*(1-params.BidSpreadPercent/100), 8)
	askPrice := util.RoundToPrecision(mid*(1+params.AskSpreadPercent/100), 8)
	qty := util.FloorToPrecision(params.OrderNotional/mid, 6)
	if qty <= 0 {
		return tickSkipped("order notional rounds to zero quantity")
	}

	var placed int

	if bal.QuoteAvailable >= params.OrderNotional {
		orderID, err := sess.PlaceOrder(ctx, model.SideBuy, qty, bidPrice)
		if err != nil {
			if venue.Classify(err) == venue.FailAuth {
				return authTickError(err)
			}
			log.Warnf("Failed to place bid at %.8f: %v", bidPrice, err)
		} else {
			st.bidOrderID = orderID
			placed++
		}
	} else {
		log.Debugf("Skipping bid: quote balance %.4f below notional %.4f", bal.QuoteAvailable, params.OrderNotional)
	}

	if bal.BaseAvailable >= qty {
		orderID, err := sess.PlaceOrder(ctx, model.SideSell, qty, askPrice)
		if err != nil {
			if venue.Classify(err) == venue.FailAuth {
				return authTickError(err)
			}
			log.Warnf("Failed to place ask at %.8f: %v", askPrice, err)
		} else {
			st.askOrderID = orderID
			placed++
		}
	} else {
		log.Debugf("Skipping ask: base balance %.6f below quantity %.6f", bal.BaseAvailable, qty)
	}

	if placed == 0 {
		return tickSkipped("insufficient balance on both sides")
	}

	st.anchor = mid
	return TickResult{Outcome: TickQuoted, Reason: fmt.Sprintf("%d quote(s) resting around %.8f", placed, mid)}
}
