// Package solana is a minimal JSON-RPC client for the Solana chain plus a
// swap-aggregator client. It covers exactly what the bot core needs: token
// balances, recent activity lookups and transaction submission.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// RPCClient talks JSON-RPC 2.0 to a Solana node.
type RPCClient struct {
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewRPCClient creates a Solana RPC client.
func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solana RPC error %d: %s", e.Code, e.Message)
}

// Call invokes one RPC method and decodes the result into out.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach RPC node: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read RPC response: %w", err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("failed to parse RPC response: %w", err)
	}
	if parsed.Error != nil {
		return parsed.Error
	}
	if out != nil {
		if err := json.Unmarshal(parsed.Result, out); err != nil {
			return fmt.Errorf("failed to parse RPC result: %w", err)
		}
	}
	return nil
}

// TokenBalance returns the aggregate uiAmount held by owner for one mint.
func (c *RPCClient) TokenBalance(ctx context.Context, owner, mint string) (float64, error) {
	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								UIAmount float64 `json:"uiAmount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}

	params := []interface{}{
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := c.Call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return 0, err
	}

	var total float64
	for _, acc := range result.Value {
		total += acc.Account.Data.Parsed.Info.TokenAmount.UIAmount
	}
	return total, nil
}

// SOLBalance returns the owner's native SOL balance in SOL units.
func (c *RPCClient) SOLBalance(ctx context.Context, owner string) (float64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.Call(ctx, "getBalance", []interface{}{owner}, &result); err != nil {
		return 0, err
	}
	return float64(result.Value) / 1e9, nil
}

// RecentSignatures fetches the latest transaction signatures for an address.
// The result is returned undecoded; callers must validate its shape before
// indexing into it.
func (c *RPCClient) RecentSignatures(ctx context.Context, address string, limit int) (interface{}, error) {
	var result interface{}
	params := []interface{}{address, map[string]int{"limit": limit}}
	if err := c.Call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SendTransaction submits a signed base64 transaction and returns its signature.
func (c *RPCClient) SendTransaction(ctx context.Context, signedTxBase64 string) (string, error) {
	var signature string
	params := []interface{}{signedTxBase64, map[string]string{"encoding": "base64"}}
	if err := c.Call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}
