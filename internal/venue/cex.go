package venue

import (
	"context"
	"fmt"

	"botfleet/backend/pkg/cex"
)

// cexConnector adapts the signed REST client to the Connector contract.
type cexConnector struct {
	client *cex.Client
}

func newCEXConnector(v Venue, cfg Config, creds cex.Credentials) (Connector, error) {
	var baseURL string
	var signer cex.Signer

	switch v {
	case Mexc:
		baseURL = cfg.MexcAPIURL
		signer = cex.NewTimestampSigner(creds)
	case Bitmart:
		baseURL = cfg.BitmartAPIURL
		// BitMart authenticates with key+secret+memo. A missing memo produces
		// a misleading bad-signature response from the venue, so it is
		// rejected here with its own error.
		if creds.Memo == "" {
			return nil, cex.ErrMemoRequired
		}
		signer = cex.NewMemoSigner(creds)
	case Coinstore:
		baseURL = cfg.CoinstoreAPIURL
		signer = cex.NewDerivedKeySigner(creds)
	default:
		return nil, fmt.Errorf("%w: %q is not a CEX venue", ErrUnknownVenue, v)
	}

	client, err := cex.NewClient(string(v), baseURL, cfg.ProxyURL, signer)
	if err != nil {
		return nil, err
	}
	return &cexConnector{client: client}, nil
}

func (c *cexConnector) GetBalance(ctx context.Context, pair Pair) (Balance, error) {
	bal, err := c.client.GetBalance(ctx, pair.Symbol)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		BaseAvailable:  bal.BaseAvailable,
		BaseLocked:     bal.BaseLocked,
		QuoteAvailable: bal.QuoteAvailable,
		QuoteLocked:    bal.QuoteLocked,
	}, nil
}

func (c *cexConnector) GetMidPrice(ctx context.Context, pair Pair) (float64, error) {
	ticker, err := c.client.GetTicker(ctx, pair.Symbol)
	if err != nil {
		return 0, err
	}
	mid := ticker.Mid()
	if mid <= 0 {
		return 0, fmt.Errorf("no market data for symbol %s", pair.Symbol)
	}
	return mid, nil
}

func (c *cexConnector) PlaceOrder(ctx context.Context, pair Pair, side string, qty, price float64) (string, error) {
	orderType := "limit"
	if price <= 0 {
		orderType = "market"
	}
	return c.client.PlaceOrder(ctx, cex.OrderRequest{
		Symbol: pair.Symbol,
		Side:   side,
		Type:   orderType,
		Price:  price,
		Qty:    qty,
	})
}

func (c *cexConnector) CancelOrder(ctx context.Context, pair Pair, orderID string) error {
	return c.client.CancelOrder(ctx, pair.Symbol, orderID)
}
