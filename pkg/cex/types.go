package cex

import "fmt"

// Credentials holds decrypted API credential material for one venue. Values
// live only for the lifetime of a session; never log them.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
	// Memo is the sub-account identifier ("memo"/"UID") some venues require
	// in addition to the key pair. It is not secret.
	Memo string
}

// Balance is the pair-scoped balance snapshot returned by a venue.
type Balance struct {
	BaseAvailable  float64 `json:"base_available"`
	BaseLocked     float64 `json:"base_locked"`
	QuoteAvailable float64 `json:"quote_available"`
	QuoteLocked    float64 `json:"quote_locked"`
}

// Ticker is the top-of-book snapshot for one symbol.
type Ticker struct {
	Symbol  string  `json:"symbol"`
	BestBid float64 `json:"best_bid"`
	BestAsk float64 `json:"best_ask"`
	Last    float64 `json:"last"`
}

// Mid returns the bid/ask midpoint, falling back to last when one side is empty.
func (t Ticker) Mid() float64 {
	if t.BestBid > 0 && t.BestAsk > 0 {
		return (t.BestBid + t.BestAsk) / 2
	}
	return t.Last
}

// OrderRequest describes one order placement.
type OrderRequest struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"` // buy, sell
	Type   string  `json:"type"` // limit, market
	Price  float64 `json:"price,omitempty"`
	Qty    float64 `json:"qty"`
}

// APIError is a non-2xx or error-body response from a venue.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue API error (status %d, code %s): %s", e.HTTPStatus, e.Code, e.Message)
}

// IsAuth reports whether the venue rejected the credential or signature.
func (e *APIError) IsAuth() bool {
	return e.HTTPStatus == 401 || e.HTTPStatus == 403 || e.Code == "AUTH_FAILED" || e.Code == "BAD_SIGNATURE"
}

// IsRateLimited reports whether the venue throttled the request.
func (e *APIError) IsRateLimited() bool {
	return e.HTTPStatus == 429 || e.Code == "RATE_LIMITED"
}

// IsSymbolNotFound reports whether the venue does not list the symbol.
func (e *APIError) IsSymbolNotFound() bool {
	return e.Code == "SYMBOL_NOT_FOUND" || e.Code == "INVALID_SYMBOL"
}
