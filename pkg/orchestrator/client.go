// Package orchestrator is the client for the third-party order-orchestration
// service that one CEX bot family delegates to. The core only submits a
// strategy descriptor against a pre-existing per-client credentials profile
// and interprets the outcome; it never places those orders itself.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StrategyDescriptor is the payload the orchestration service expects.
type StrategyDescriptor struct {
	ProfileID string  `json:"profile_id"` // per-client credentials profile, provisioned out of band
	Venue     string  `json:"venue"`
	Symbol    string  `json:"symbol"`
	Strategy  string  `json:"strategy"` // spread, volume
	Side      string  `json:"side,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Notional  float64 `json:"notional,omitempty"`
}

// SubmitResult is the orchestration service's answer.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	TaskID   string `json:"task_id"`
	Reason   string `json:"reason,omitempty"`
}

// Client talks to the orchestration service HTTP API.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates an orchestration service client.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Submit sends a strategy descriptor. A transport or 5xx failure is an error;
// a well-formed rejection comes back as Accepted=false with the reason.
func (c *Client) Submit(ctx context.Context, desc StrategyDescriptor) (*SubmitResult, error) {
	if desc.ProfileID == "" {
		return nil, fmt.Errorf("orchestrator submission requires a credentials profile id")
	}

	body, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode strategy descriptor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/strategies", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach orchestration service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("orchestration service error (status %d): %s", resp.StatusCode, string(raw))
	}

	var result SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode >= 400 && result.Reason == "" {
		result.Reason = resp.Status
	}
	return &result, nil
}
