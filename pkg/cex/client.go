// Package cex is the signed REST client for centralized-exchange venues.
// Venue-specific signing quirks live in signer.go; network egress optionally
// goes through a forward proxy so requests present a pre-whitelisted IP.
package cex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is a signed REST client for one venue, bound to one credential.
type Client struct {
	venue      string
	baseURL    string
	signer     Signer
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a venue client. proxyURL may be empty for direct egress;
// when set it is normalized to the http:// scheme first (see NormalizeProxyURL).
func NewClient(venue, baseURL, proxyURL string, signer Signer) (*Client, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		normalized, err := NormalizeProxyURL(proxyURL)
		if err != nil {
			return nil, err
		}
		parsed, err := url.Parse(normalized)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}

	return &Client{
		venue:   venue,
		baseURL: baseURL,
		signer:  signer,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		now: time.Now,
	}, nil
}

// NormalizeProxyURL rewrites an https:// proxy URL to http://. The forward
// proxies in use speak plain HTTP even when tunneling HTTPS traffic; leaving
// the https scheme in place produces a proxy-authentication rejection that
// looks like a credential failure.
func NormalizeProxyURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid proxy URL: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid proxy URL: missing host in %q", raw)
	}
	if parsed.Scheme == "https" {
		parsed.Scheme = "http"
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	return parsed.String(), nil
}

// GetBalance fetches the pair-scoped balance snapshot.
func (c *Client) GetBalance(ctx context.Context, symbol string) (Balance, error) {
	var out Balance
	err := c.do(ctx, http.MethodGet, "/api/v1/account/balance", url.Values{"symbol": {symbol}}, nil, &out)
	return out, err
}

// GetTicker fetches the top-of-book snapshot for a symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (Ticker, error) {
	var out Ticker
	err := c.do(ctx, http.MethodGet, "/api/v1/market/ticker", url.Values{"symbol": {symbol}}, nil, &out)
	return out, err
}

// PlaceOrder submits an order and returns the venue order id.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/order", nil, req, &out); err != nil {
		return "", err
	}
	return out.OrderID, nil
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]string{"symbol": symbol, "order_id": orderID}
	return c.do(ctx, http.MethodDelete, "/api/v1/order", nil, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// The signed payload is the query string for reads, the body for writes.
	signBase := query.Encode()
	if len(payload) > 0 {
		signBase = string(payload)
	}
	headers, err := c.signer.Sign(c.now().UnixMilli(), signBase)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.venue, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		var parsed struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &parsed) == nil {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", c.venue, err)
		}
	}
	return nil
}
