// Package registry maps currency symbols to concrete assets on one
// chain: the native coin or an ERC-20 contract with known precision.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/coinflow/chainpay/clients"
	"github.com/coinflow/chainpay/internal/erc20"
	"github.com/coinflow/chainpay/logger"
	"github.com/coinflow/chainpay/types"
)

// fallbackDecimals is used when a token declares no precision and the
// decimals() call fails. 18 matches the dominant ERC-20 convention;
// resolution for non-standard tokens is logged so the misconfiguration
// is visible.
const fallbackDecimals uint8 = 18

// Registry is the per-chain catalogue of resolvable assets. The token
// table is seeded from ChainConfig at construction; dynamic decimals
// lookups are cached for the process lifetime.
type Registry struct {
	cfg    types.ChainConfig
	client clients.EVM
	log    logger.Logger

	mu       sync.RWMutex
	tokens   map[string]types.TokenConfig
	decimals map[common.Address]uint8
}

func New(cfg types.ChainConfig, client clients.EVM, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NoopLogger{}
	}

	tokens := make(map[string]types.TokenConfig, len(cfg.Tokens))
	for _, tc := range cfg.Tokens {
		tokens[strings.ToUpper(tc.Symbol)] = tc
	}

	return &Registry{
		cfg:      cfg,
		client:   client,
		log:      log,
		tokens:   tokens,
		decimals: make(map[common.Address]uint8),
	}
}

// Config returns the immutable chain configuration.
func (r *Registry) Config() types.ChainConfig {
	return r.cfg
}

// Router returns the swap router contract for this chain.
func (r *Registry) Router() common.Address {
	return common.HexToAddress(r.cfg.RouterAddress)
}

// WrappedNative returns the wrapped native token address, used to
// express native legs in swap routes.
func (r *Registry) WrappedNative() common.Address {
	return common.HexToAddress(r.cfg.WrappedNativeAddress)
}

// AddToken registers an additional token at runtime.
func (r *Registry) AddToken(tc types.TokenConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[strings.ToUpper(tc.Symbol)] = tc
}

// Resolve maps a currency symbol to an asset descriptor. The native
// symbol wins over any token with the same name; unknown symbols fail
// with an unsupported-asset error and never reach the network.
func (r *Registry) Resolve(ctx context.Context, symbol string) (types.Asset, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return types.Asset{}, &types.Error{
			Code:    types.ErrCodeValidation,
			Message: "currency symbol is required",
		}
	}

	if sym == strings.ToUpper(r.cfg.NativeSymbol) {
		return types.Asset{
			ChainID:  r.cfg.ChainID,
			Symbol:   r.cfg.NativeSymbol,
			Kind:     types.AssetNative,
			Decimals: r.cfg.NativeDecimals,
		}, nil
	}

	r.mu.RLock()
	tc, ok := r.tokens[sym]
	r.mu.RUnlock()
	if !ok {
		return types.Asset{}, &types.Error{
			Code:    types.ErrCodeUnsupportedAsset,
			Message: fmt.Sprintf("%s is not available on %s", symbol, r.cfg.Name),
		}
	}

	contract := common.HexToAddress(tc.Address)
	decimals := tc.Decimals
	if decimals == 0 {
		decimals = r.resolveDecimals(ctx, contract)
	}

	return types.Asset{
		ChainID:  r.cfg.ChainID,
		Symbol:   tc.Symbol,
		Kind:     types.AssetToken,
		Contract: contract,
		Decimals: decimals,
	}, nil
}

// resolveDecimals reads decimals() from the contract once and caches
// the answer. A failed call falls back to 18 with a warning; the
// fallback itself is cached so a flaky RPC does not flip precision
// between calls.
func (r *Registry) resolveDecimals(ctx context.Context, contract common.Address) uint8 {
	r.mu.RLock()
	cached, ok := r.decimals[contract]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	decimals := fallbackDecimals
	data, err := erc20.PackDecimals()
	if err == nil {
		var out []byte
		out, err = r.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		if err == nil {
			decimals, err = erc20.UnpackDecimals(out)
		}
	}
	if err != nil {
		decimals = fallbackDecimals
		r.log.Warn("decimals lookup failed, assuming 18", map[string]any{
			"chain":    r.cfg.Name,
			"contract": contract.Hex(),
			"error":    err.Error(),
		})
	}

	r.mu.Lock()
	r.decimals[contract] = decimals
	r.mu.Unlock()
	return decimals
}
