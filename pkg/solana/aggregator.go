package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// AggregatorClient talks to a Jupiter-style swap aggregator: quote first,
// then request a swap transaction for the wallet to sign and submit.
type AggregatorClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAggregatorClient creates a swap aggregator client.
func NewAggregatorClient(baseURL string) *AggregatorClient {
	return &AggregatorClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Quote is the aggregator's route quote for one swap.
type Quote struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	// Raw is the full quote body; the swap endpoint wants it echoed back.
	Raw json.RawMessage `json:"-"`
}

// Price returns the output per input unit implied by the quote, adjusted for
// the two mints' decimals.
func (q *Quote) Price(inDecimals, outDecimals int) (float64, error) {
	in, err := strconv.ParseFloat(q.InAmount, 64)
	if err != nil || in == 0 {
		return 0, errors.New("quote has no input amount")
	}
	out, err := strconv.ParseFloat(q.OutAmount, 64)
	if err != nil {
		return 0, errors.New("quote has no output amount")
	}
	scale := pow10(inDecimals - outDecimals)
	return out / in * scale, nil
}

func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	for i := 0; i > n; i-- {
		v /= 10
	}
	return v
}

// GetQuote fetches a route quote for swapping amount (in raw base units) of
// inputMint into outputMint.
func (c *AggregatorClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}

	raw, err := c.send(req)
	if err != nil {
		return nil, err
	}

	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("failed to parse quote: %w", err)
	}
	quote.Raw = raw
	return &quote, nil
}

// BuildSwapTransaction asks the aggregator to assemble an unsigned swap
// transaction for the given quote and wallet.
func (c *AggregatorClient) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"quoteResponse": json.RawMessage(quote.Raw),
		"userPublicKey": userPublicKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.send(req)
	if err != nil {
		return "", err
	}

	var parsed struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse swap response: %w", err)
	}
	if parsed.SwapTransaction == "" {
		return "", errors.New("aggregator returned no swap transaction")
	}
	return parsed.SwapTransaction, nil
}

func (c *AggregatorClient) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach aggregator: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read aggregator response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("aggregator error (status %d): %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

// SignTransaction signs a base64 transaction produced by the aggregator.
// The wire format is a compact-array of signatures followed by the message;
// the aggregator builds single-signer transactions, so the first (only) slot
// is filled with the wallet's signature.
func SignTransaction(txBase64 string, key ed25519.PrivateKey) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("malformed transaction: %w", err)
	}
	if len(raw) < 1 {
		return "", errors.New("malformed transaction: empty")
	}

	numSigs := int(raw[0])
	if numSigs < 1 || numSigs >= 0x80 || len(raw) < 1+numSigs*ed25519.SignatureSize {
		return "", errors.New("malformed transaction: bad signature array")
	}

	message := raw[1+numSigs*ed25519.SignatureSize:]
	sig := ed25519.Sign(key, message)
	copy(raw[1:1+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}
