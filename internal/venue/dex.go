package venue

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math"

	"botfleet/backend/pkg/solana"
)

// Native SOL is held as lamports on the account itself, not in a token account.
const solMint = "So11111111111111111111111111111111111111112"

// dexConnector trades through the Solana swap aggregator: balance is an
// on-chain token-account lookup, a trade is quote-then-submit-transaction.
type dexConnector struct {
	rpc         *solana.RPCClient
	aggregator  *solana.AggregatorClient
	wallet      string
	signer      ed25519.PrivateKey
	slippageBps int
}

func newDEXConnector(cfg Config, wallet string, signer ed25519.PrivateKey) (Connector, error) {
	if wallet == "" {
		return nil, errors.New("no wallet address for DEX session")
	}
	if len(signer) != ed25519.PrivateKeySize {
		return nil, errors.New("no signing key for DEX session")
	}
	return &dexConnector{
		rpc:         solana.NewRPCClient(cfg.SolanaRPCURL),
		aggregator:  solana.NewAggregatorClient(cfg.AggregatorURL),
		wallet:      wallet,
		signer:      signer,
		slippageBps: cfg.SlippageBps,
	}, nil
}

func (d *dexConnector) mintBalance(ctx context.Context, mint string) (float64, error) {
	if mint == solMint {
		return d.rpc.SOLBalance(ctx, d.wallet)
	}
	return d.rpc.TokenBalance(ctx, d.wallet, mint)
}

func (d *dexConnector) GetBalance(ctx context.Context, pair Pair) (Balance, error) {
	base, err := d.mintBalance(ctx, pair.BaseMint)
	if err != nil {
		return Balance{}, err
	}
	quote, err := d.mintBalance(ctx, pair.QuoteMint)
	if err != nil {
		return Balance{}, err
	}
	// Swaps settle atomically, nothing rests on a book, so locked is zero.
	return Balance{BaseAvailable: base, QuoteAvailable: quote}, nil
}

func (d *dexConnector) GetMidPrice(ctx context.Context, pair Pair) (float64, error) {
	// Quote one whole base unit; the implied route price stands in for mid.
	probe := uint64(math.Pow(10, float64(pair.BaseDecimals)))
	quote, err := d.aggregator.GetQuote(ctx, pair.BaseMint, pair.QuoteMint, probe, d.slippageBps)
	if err != nil {
		return 0, err
	}
	return quote.Price(pair.BaseDecimals, pair.QuoteDecimals)
}

// PlaceOrder executes a swap. Price is advisory only; the aggregator route
// decides execution, bounded by the configured slippage.
func (d *dexConnector) PlaceOrder(ctx context.Context, pair Pair, side string, qty, price float64) (string, error) {
	var inputMint, outputMint string
	var amountRaw uint64

	switch side {
	case "buy":
		// Spend quote to acquire qty of base. Market orders carry no price, so
		// the current route price sizes the input amount.
		inputMint, outputMint = pair.QuoteMint, pair.BaseMint
		if price <= 0 {
			mid, merr := d.GetMidPrice(ctx, pair)
			if merr != nil {
				return "", merr
			}
			price = mid
		}
		amountRaw = uint64(qty * price * math.Pow(10, float64(pair.QuoteDecimals)))
	case "sell":
		inputMint, outputMint = pair.BaseMint, pair.QuoteMint
		amountRaw = uint64(qty * math.Pow(10, float64(pair.BaseDecimals)))
	default:
		return "", fmt.Errorf("unknown order side %q", side)
	}
	if amountRaw == 0 {
		return "", errors.New("swap amount rounds to zero")
	}

	quote, err := d.aggregator.GetQuote(ctx, inputMint, outputMint, amountRaw, d.slippageBps)
	if err != nil {
		return "", err
	}

	unsigned, err := d.aggregator.BuildSwapTransaction(ctx, quote, d.wallet)
	if err != nil {
		return "", err
	}

	signed, err := solana.SignTransaction(unsigned, d.signer)
	if err != nil {
		return "", err
	}

	return d.rpc.SendTransaction(ctx, signed)
}

func (d *dexConnector) CancelOrder(ctx context.Context, pair Pair, orderID string) error {
	// Swaps are fill-or-fail; there is never a resting order to cancel.
	return nil
}

// RecentActivity returns the wallet's latest transaction signatures, shape
// unvalidated. The health monitor validates before indexing.
func (d *dexConnector) RecentActivity(ctx context.Context, limit int) (interface{}, error) {
	return d.rpc.RecentSignatures(ctx, d.wallet, limit)
}
