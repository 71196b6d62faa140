// Package types defines the shared domain model for the chainpay payment
// and swap execution core: chain configuration, asset descriptors, request
// payloads, transaction records and quote results.
package types

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenConfig describes one ERC-20 token available on a chain.
// Decimals may be left at zero, in which case the resolver reads them
// from the contract once and caches the result.
type TokenConfig struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals,omitempty"`
}

// ChainConfig is the immutable description of one supported network.
// It is loaded at startup and treated as read-only input.
type ChainConfig struct {
	// Numeric EVM chain identifier (e.g. 8453 for Base).
	ChainID uint64 `json:"chainId"`

	// Display name of the network.
	Name string `json:"name"`

	// Symbol and precision of the chain's intrinsic coin.
	NativeSymbol   string `json:"nativeSymbol"`
	NativeDecimals uint8  `json:"nativeDecimals"`

	// Ordered list of RPC endpoints; the first one that answers is used.
	RPCURLs []string `json:"rpcUrls"`

	// Base URL of the block explorer, for human-readable links.
	ExplorerURL string `json:"explorerUrl,omitempty"`

	// Address of the swap router contract on this chain.
	RouterAddress string `json:"routerAddress,omitempty"`

	// Address of the wrapped native token, used for swap routes that
	// include the native coin.
	WrappedNativeAddress string `json:"wrappedNativeAddress,omitempty"`

	// Tokens accepted on this chain, keyed by symbol at registration.
	Tokens []TokenConfig `json:"tokens,omitempty"`
}

// AssetKind discriminates native coins from contract tokens.
type AssetKind string

const (
	AssetNative AssetKind = "native"
	AssetToken  AssetKind = "token"
)

// Asset is a resolved descriptor for a currency on exactly one chain.
type Asset struct {
	ChainID  uint64         `json:"chainId"`
	Symbol   string         `json:"symbol"`
	Kind     AssetKind      `json:"kind"`
	Contract common.Address `json:"contract,omitempty"`
	Decimals uint8          `json:"decimals"`
}

// IsNative reports whether the asset is the chain's intrinsic coin.
func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

// Key returns a stable identifier for the asset usable in composite
// cache keys. Native assets share a single sentinel per chain.
func (a Asset) Key() string {
	if a.IsNative() {
		return "native"
	}
	return a.Contract.Hex()
}

// TransferRequest asks the core to move an asset to a recipient.
type TransferRequest struct {
	ChainID uint64 `json:"chainId" validate:"required"`

	// Sender and recipient addresses in 0x-hex form.
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`

	// Currency symbol, resolved against the chain's registry.
	Symbol string `json:"symbol" validate:"required"`

	// Human-decimal amount string (e.g. "12.50").
	Amount string `json:"amount" validate:"required"`

	// Optional free-form memo carried on the record.
	Memo string `json:"memo,omitempty"`

	// Optional external reference (e.g. an invoice id) marked paid
	// once the transfer confirms.
	LinkID string `json:"linkId,omitempty"`
}

// PoolType selects the swap pool curve.
type PoolType string

const (
	PoolStable   PoolType = "stable"
	PoolVolatile PoolType = "volatile"
)

// Default swap parameters.
const (
	// DefaultSlippageBps is 0.5% expressed in basis points.
	DefaultSlippageBps uint32 = 50

	// DefaultSwapDeadline bounds how long a submitted swap stays valid.
	DefaultSwapDeadline = 600 * time.Second
)

// SwapRequest asks the core to exchange one asset for another.
type SwapRequest struct {
	ChainID uint64 `json:"chainId" validate:"required"`

	From string `json:"from" validate:"required"`

	InSymbol  string `json:"inSymbol" validate:"required"`
	OutSymbol string `json:"outSymbol" validate:"required"`

	// Human-decimal input amount string.
	Amount string `json:"amount" validate:"required"`

	Pool PoolType `json:"pool,omitempty"`

	// SlippageBps is the tolerance in basis points; zero means the
	// default of 50 (0.5%).
	SlippageBps uint32 `json:"slippageBps,omitempty"`

	// Deadline horizon added to the submission time; zero means the
	// default of 600s.
	Deadline time.Duration `json:"deadline,omitempty"`
}

// Slippage returns the effective tolerance in basis points.
func (r SwapRequest) Slippage() uint32 {
	if r.SlippageBps == 0 {
		return DefaultSlippageBps
	}
	return r.SlippageBps
}

// DeadlineHorizon returns the effective deadline duration.
func (r SwapRequest) DeadlineHorizon() time.Duration {
	if r.Deadline <= 0 {
		return DefaultSwapDeadline
	}
	return r.Deadline
}

// Stable reports whether the stable pool curve was selected.
func (r SwapRequest) Stable() bool {
	return r.Pool == PoolStable
}

// QuoteResult is a priced swap, valid only for the exact request that
// produced it and only within a short freshness window.
type QuoteResult struct {
	ChainID   uint64   `json:"chainId"`
	InSymbol  string   `json:"inSymbol"`
	OutSymbol string   `json:"outSymbol"`
	Pool      PoolType `json:"pool"`

	AmountIn decimal.Decimal `json:"amountIn"`

	// Quoted output in the output asset's precision.
	AmountOut decimal.Decimal `json:"amountOut"`

	// Minimum acceptable output after slippage, truncated (never
	// rounded up) in the output asset's precision.
	MinOut decimal.Decimal `json:"minOut"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// Identity returns the logical input identity of the quote. Two quotes
// with different identities are never interchangeable.
func (q *QuoteResult) Identity() string {
	return quoteIdentity(q.ChainID, q.InSymbol, q.OutSymbol, q.Pool, q.AmountIn.String())
}

// RequestIdentity returns the logical identity of a swap request, used
// to match quotes against requests and to key debounced fetches.
func (r SwapRequest) RequestIdentity() string {
	amt := r.Amount
	if d, err := decimal.NewFromString(r.Amount); err == nil {
		amt = d.String()
	}
	return quoteIdentity(r.ChainID, r.InSymbol, r.OutSymbol, r.Pool, amt)
}

func quoteIdentity(chainID uint64, in, out string, pool PoolType, amount string) string {
	if pool == "" {
		pool = PoolVolatile
	}
	return string(pool) + "/" + in + "/" + out + "/" + amount + "@" + strconv.FormatUint(chainID, 10)
}

// Fresh reports whether the quote is still usable at now, given the
// freshness window.
func (q *QuoteResult) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(q.FetchedAt) <= window
}
