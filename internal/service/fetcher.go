package service

import (
	"context"
	"time"

	"botfleet/backend/internal/venue"
	"botfleet/backend/pkg/logger"
)

// Fetch timeouts. Balance and price reads sit on the trading hot path and get
// a short budget; activity probes are off the hot path and get a longer one.
const (
	fetchTimeout = 5 * time.Second
	probeTimeout = 10 * time.Second
)

// BalanceResult is a fetched balance with its failure classification. A zero
// balance with a non-empty Reason means "unknown due to fetch failure", never
// "legitimately zero"; strategies must check Reason before sizing trades.
type BalanceResult struct {
	Balance venue.Balance
	Reason  venue.FailureKind
	Err     error
}

// OK reports whether the balance is trustworthy.
func (r BalanceResult) OK() bool {
	return r.Reason == venue.FailNone
}

// PriceResult is a fetched mid price with its failure classification.
type PriceResult struct {
	Price  float64
	Reason venue.FailureKind
	Err    error
}

func (r PriceResult) OK() bool {
	return r.Reason == venue.FailNone
}

// Fetcher reads balances and prices through venue sessions, bounding every
// call and classifying every failure. It holds no state of its own.
type Fetcher struct{}

func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// FetchBalance reads the pair-scoped balance for a session.
func (f *Fetcher) FetchBalance(ctx context.Context, sess *venue.Session) BalanceResult {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	bal, err := sess.GetBalance(fctx)
	if err != nil {
		kind := venue.Classify(err)
		logger.GetLogger().WithBot(sess.BotID).Warnf("Balance fetch failed: venue=%s reason=%s err=%v", sess.Venue, kind, err)
		return BalanceResult{Reason: kind, Err: err}
	}

	return BalanceResult{Balance: bal}
}

// FetchMidPrice reads the current mid price for a session.
func (f *Fetcher) FetchMidPrice(ctx context.Context, sess *venue.Session) PriceResult {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	price, err := sess.GetMidPrice(fctx)
	if err != nil {
		kind := venue.Classify(err)
		logger.GetLogger().WithBot(sess.BotID).Warnf("Mid price fetch failed: venue=%s reason=%s err=%v", sess.Venue, kind, err)
		return PriceResult{Reason: kind, Err: err}
	}

	return PriceResult{Price: price}
}

// ProbeContext returns a context bounded by the longer probe budget. Used by
// the health monitor for activity lookups.
func ProbeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, probeTimeout)
}
