package venue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"botfleet/backend/pkg/cex"
	"botfleet/backend/pkg/solana"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in      string
		want    Venue
		wantErr bool
	}{
		{in: "mexc", want: Mexc},
		{in: "MEXC", want: Mexc},
		{in: "  Bitmart  ", want: Bitmart},
		{in: "coinstore", want: Coinstore},
		{in: "Jupiter", want: Jupiter},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "binance", wantErr: true},
	}

	for _, tt := range tests {
		got, err := Resolve(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownVenue) {
				t.Errorf("Resolve(%q): got %v, want ErrUnknownVenue", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsDEX(t *testing.T) {
	if !Jupiter.IsDEX() {
		t.Error("jupiter should settle on chain")
	}
	for _, v := range []Venue{Mexc, Bitmart, Coinstore} {
		if v.IsDEX() {
			t.Errorf("%s should not be a DEX", v)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil", err: nil, want: FailNone},
		{name: "http 401", err: &cex.APIError{HTTPStatus: 401}, want: FailAuth},
		{name: "bad signature code", err: &cex.APIError{HTTPStatus: 200, Code: "BAD_SIGNATURE"}, want: FailAuth},
		{name: "wrapped auth error", err: fmt.Errorf("balance fetch: %w", &cex.APIError{HTTPStatus: 403}), want: FailAuth},
		{name: "rate limited", err: &cex.APIError{HTTPStatus: 429}, want: FailRateLimited},
		{name: "symbol not found", err: &cex.APIError{HTTPStatus: 400, Code: "INVALID_SYMBOL"}, want: FailSymbolNotFound},
		{name: "venue 500", err: &cex.APIError{HTTPStatus: 500}, want: FailUnknown},
		{name: "missing memo", err: cex.ErrMemoRequired, want: FailAuth},
		{name: "rpc throttled", err: &solana.RPCError{Code: 429, Message: "too many requests"}, want: FailRateLimited},
		{name: "rpc other", err: &solana.RPCError{Code: -32602, Message: "invalid params"}, want: FailUnknown},
		{name: "deadline", err: context.DeadlineExceeded, want: FailUnreachable},
		{name: "wrapped deadline", err: fmt.Errorf("mid price: %w", context.DeadlineExceeded), want: FailUnreachable},
		{name: "transport failure", err: &url.Error{Op: "Get", URL: "http://venue", Err: errors.New("connection refused")}, want: FailUnreachable},
		{name: "plain error", err: errors.New("boom"), want: FailUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
