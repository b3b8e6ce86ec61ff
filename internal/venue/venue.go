// Package venue is the uniform interface over heterogeneous trading venues:
// signed-REST centralized exchanges and the Solana swap aggregator. Venue
// selection is a closed set behind one connector contract, so an unknown
// venue is a configuration error at the edge, never a nil adapter downstream.
package venue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"botfleet/backend/pkg/cex"
	"botfleet/backend/pkg/solana"
)

// Venue identifies one supported trading venue.
type Venue string

// The closed venue set.
const (
	Mexc      Venue = "mexc"
	Bitmart   Venue = "bitmart"
	Coinstore Venue = "coinstore"
	Jupiter   Venue = "jupiter"
)

// ErrUnknownVenue is returned by Resolve for identifiers outside the set.
var ErrUnknownVenue = errors.New("unknown venue")

// Resolve normalizes a venue identifier (trim, lowercase) and validates it
// against the closed set. Missing or malformed identifiers fail here with a
// configuration error instead of surfacing later as a nil dereference.
func Resolve(name string) (Venue, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty venue identifier", ErrUnknownVenue)
	}
	switch Venue(normalized) {
	case Mexc, Bitmart, Coinstore, Jupiter:
		return Venue(normalized), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVenue, normalized)
	}
}

// IsDEX reports whether the venue settles on chain.
func (v Venue) IsDEX() bool {
	return v == Jupiter
}

// Pair identifies the traded instrument. CEX venues use Symbol; DEX venues
// use the mint pair with decimals.
type Pair struct {
	Symbol        string
	BaseMint      string
	QuoteMint     string
	BaseDecimals  int
	QuoteDecimals int
}

// Balance is the pair-scoped balance snapshot a connector returns.
type Balance struct {
	BaseAvailable  float64
	BaseLocked     float64
	QuoteAvailable float64
	QuoteLocked    float64
}

// Connector is the capability set every venue adapter implements.
type Connector interface {
	GetBalance(ctx context.Context, pair Pair) (Balance, error)
	GetMidPrice(ctx context.Context, pair Pair) (float64, error)
	PlaceOrder(ctx context.Context, pair Pair, side string, qty, price float64) (string, error)
	CancelOrder(ctx context.Context, pair Pair, orderID string) error
}

// FailureKind classifies a venue call failure so callers can distinguish
// "legitimately zero" from "unknown due to fetch failure".
type FailureKind string

const (
	FailNone           FailureKind = ""
	FailAuth           FailureKind = "venue-auth-failure"
	FailUnreachable    FailureKind = "venue-unreachable"
	FailSymbolNotFound FailureKind = "symbol-not-found"
	FailRateLimited    FailureKind = "rate-limited"
	FailUnknown        FailureKind = "unknown"
)

// Classify maps a connector error onto the failure taxonomy.
func Classify(err error) FailureKind {
	if err == nil {
		return FailNone
	}

	var apiErr *cex.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsAuth():
			return FailAuth
		case apiErr.IsRateLimited():
			return FailRateLimited
		case apiErr.IsSymbolNotFound():
			return FailSymbolNotFound
		default:
			return FailUnknown
		}
	}

	if errors.Is(err, cex.ErrMemoRequired) {
		return FailAuth
	}

	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == 429 {
			return FailRateLimited
		}
		return FailUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailUnreachable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailUnreachable
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return FailUnreachable
	}

	return FailUnknown
}
