package solana

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQuotePrice(t *testing.T) {
	tests := []struct {
		name                    string
		in, out                 string
		inDecimals, outDecimals int
		want                    float64
		wantErr                 bool
	}{
		{
			// 1 unit of a 9-decimal token buying 150 units of a 6-decimal token.
			name: "decimal adjustment",
			in:   "1000000000", out: "150000000",
			inDecimals: 9, outDecimals: 6,
			want: 150,
		},
		{
			name: "same decimals",
			in:   "2000000", out: "1000000",
			inDecimals: 6, outDecimals: 6,
			want: 0.5,
		},
		{name: "zero input", in: "0", out: "100", inDecimals: 6, outDecimals: 6, wantErr: true},
		{name: "malformed input", in: "abc", out: "100", inDecimals: 6, outDecimals: 6, wantErr: true},
		{name: "malformed output", in: "100", out: "", inDecimals: 6, outDecimals: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Quote{InAmount: tt.in, OutAmount: tt.out}
			got, err := q.Price(tt.inDecimals, tt.outDecimals)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Price: %v", err)
			}
			if got != tt.want {
				t.Errorf("Price = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("inputMint") != "mintA" || q.Get("outputMint") != "mintB" {
			t.Errorf("mints = %s/%s", q.Get("inputMint"), q.Get("outputMint"))
		}
		if q.Get("amount") != "1000000" || q.Get("slippageBps") != "50" {
			t.Errorf("amount/slippage = %s/%s", q.Get("amount"), q.Get("slippageBps"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"inputMint":  "mintA",
			"outputMint": "mintB",
			"inAmount":   "1000000",
			"outAmount":  "42000000",
			"routePlan":  []interface{}{map[string]interface{}{"percent": 100}},
		})
	}))
	defer srv.Close()

	quote, err := NewAggregatorClient(srv.URL).GetQuote(context.Background(), "mintA", "mintB", 1000000, 50)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.OutAmount != "42000000" {
		t.Errorf("OutAmount = %q", quote.OutAmount)
	}
	// The raw body is kept so the swap endpoint can receive it verbatim,
	// including fields this client does not model.
	if len(quote.Raw) == 0 {
		t.Fatal("Raw quote body not retained")
	}
	var echo map[string]interface{}
	if err := json.Unmarshal(quote.Raw, &echo); err != nil {
		t.Fatalf("Raw not valid JSON: %v", err)
	}
	if _, ok := echo["routePlan"]; !ok {
		t.Error("Raw quote lost unmodeled fields")
	}
}

func TestBuildSwapTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			QuoteResponse map[string]interface{} `json:"quoteResponse"`
			UserPublicKey string                 `json:"userPublicKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad swap request: %v", err)
		}
		if body.UserPublicKey != "wallet-pubkey" {
			t.Errorf("userPublicKey = %q", body.UserPublicKey)
		}
		if body.QuoteResponse["inAmount"] != "1000000" {
			t.Errorf("quote not echoed: %#v", body.QuoteResponse)
		}
		json.NewEncoder(w).Encode(map[string]string{"swapTransaction": "dHgtYnl0ZXM="})
	}))
	defer srv.Close()

	quote := &Quote{Raw: json.RawMessage(`{"inAmount":"1000000","outAmount":"42000000"}`)}
	tx, err := NewAggregatorClient(srv.URL).BuildSwapTransaction(context.Background(), quote, "wallet-pubkey")
	if err != nil {
		t.Fatalf("BuildSwapTransaction: %v", err)
	}
	if tx != "dHgtYnl0ZXM=" {
		t.Errorf("tx = %q", tx)
	}
}

func TestBuildSwapTransactionEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	quote := &Quote{Raw: json.RawMessage(`{}`)}
	if _, err := NewAggregatorClient(srv.URL).BuildSwapTransaction(context.Background(), quote, "w"); err == nil {
		t.Fatal("expected error for missing swap transaction")
	}
}

func TestSignTransaction(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	// Single-signer wire layout: [1][64 zero bytes][message].
	message := []byte("serialized transaction message")
	raw := make([]byte, 1+ed25519.SignatureSize+len(message))
	raw[0] = 1
	copy(raw[1+ed25519.SignatureSize:], message)

	signed, err := SignTransaction(base64.StdEncoding.EncodeToString(raw), priv)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(signed)
	if err != nil {
		t.Fatalf("signed tx not base64: %v", err)
	}
	sig := decoded[1 : 1+ed25519.SignatureSize]
	if !ed25519.Verify(pub, message, sig) {
		t.Error("signature does not verify against the message")
	}
	if string(decoded[1+ed25519.SignatureSize:]) != string(message) {
		t.Error("message bytes were altered")
	}
}

func TestSignTransactionMalformed(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(rand.Reader)

	cases := []string{
		"not base64!!",
		base64.StdEncoding.EncodeToString([]byte{}),
		base64.StdEncoding.EncodeToString([]byte{5, 1, 2}), // claims 5 sigs, far too short
		base64.StdEncoding.EncodeToString([]byte{0}),       // zero signers
	}
	for _, in := range cases {
		if _, err := SignTransaction(in, priv); err == nil {
			t.Errorf("SignTransaction(%q): expected error", in)
		}
	}
}
