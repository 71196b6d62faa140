// Package quote prices swaps against the chain's router and computes
// slippage-bounded minimum outputs.
//
// Quote fetches are debounced per logical input: while a caller is
// still editing an amount, each new request cancels the scheduled or
// in-flight fetch for the same asset pair, so a burst of edits costs at
// most one RPC round trip for the final value.
package quote

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"

	"github.com/coinflow/chainpay/clients"
	"github.com/coinflow/chainpay/internal/erc20"
	"github.com/coinflow/chainpay/logger"
	"github.com/coinflow/chainpay/metrics"
	"github.com/coinflow/chainpay/registry"
	"github.com/coinflow/chainpay/types"
	"github.com/coinflow/chainpay/utils"
)

const (
	// DefaultDebounce is the settle window before a fetch fires.
	DefaultDebounce = 300 * time.Millisecond

	// DefaultFreshness bounds how old a quote may be at submission.
	DefaultFreshness = 30 * time.Second
)

// Engine retrieves price quotes for one network.
type Engine struct {
	client    clients.EVM
	reg       *registry.Registry
	network   string
	debounce  time.Duration
	freshness time.Duration
	log       logger.Logger
	metrics   metrics.Recorder

	mu      sync.Mutex
	waiters map[string]chan struct{}

	now func() time.Time
}

func New(client clients.EVM, reg *registry.Registry, network string, debounce time.Duration, log logger.Logger, rec metrics.Recorder) *Engine {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Engine{
		client:    client,
		reg:       reg,
		network:   network,
		debounce:  debounce,
		freshness: DefaultFreshness,
		log:       log,
		metrics:   rec,
		waiters:   make(map[string]chan struct{}),
		now:       time.Now,
	}
}

// Freshness returns the window within which a quote may still drive a
// submission.
func (e *Engine) Freshness() time.Duration {
	return e.freshness
}

// Quote validates the request, waits out the debounce window and
// fetches a price. Superseded requests — ones replaced by a newer
// request for the same pair while waiting or fetching — fail with a
// superseded error instead of issuing redundant RPC load.
func (e *Engine) Quote(ctx context.Context, req types.SwapRequest) (*types.QuoteResult, error) {
	amount, err := validate(req)
	if err != nil {
		return nil, err
	}

	cancelCh, key := e.register(req)
	defer e.unregister(key, cancelCh)

	timer := time.NewTimer(e.debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-cancelCh:
		return nil, supersededErr(req)
	case <-timer.C:
	}

	result, err := e.fetch(ctx, req, amount)
	if err != nil {
		return nil, err
	}

	// A newer request may have arrived while the fetch was in flight;
	// its result is the one that counts.
	select {
	case <-cancelCh:
		return nil, supersededErr(req)
	default:
	}
	return result, nil
}

// register installs this request as the sole waiter for its pair,
// cancelling any predecessor.
func (e *Engine) register(req types.SwapRequest) (chan struct{}, string) {
	key := debounceKey(req)

	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.waiters[key]; ok {
		close(prev)
	}
	ch := make(chan struct{})
	e.waiters[key] = ch
	return ch, key
}

func (e *Engine) unregister(key string, ch chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.waiters[key] == ch {
		delete(e.waiters, key)
	}
}

func (e *Engine) fetch(ctx context.Context, req types.SwapRequest, amount decimal.Decimal) (*types.QuoteResult, error) {
	start := e.now()
	defer func() {
		e.metrics.ObserveLatency("quote", e.now().Sub(start), map[string]string{"network": e.network})
	}()

	in, err := e.reg.Resolve(ctx, req.InSymbol)
	if err != nil {
		return nil, err
	}
	out, err := e.reg.Resolve(ctx, req.OutSymbol)
	if err != nil {
		return nil, err
	}
	if in.Key() == out.Key() {
		return nil, &types.Error{
			Code:    types.ErrCodeValidation,
			Message: "input and output assets are identical",
		}
	}

	amountIn := utils.ToUnits(amount, in.Decimals)

	fromLeg := in.Contract
	if in.IsNative() {
		fromLeg = e.reg.WrappedNative()
	}
	toLeg := out.Contract
	if out.IsNative() {
		toLeg = e.reg.WrappedNative()
	}
	routes := []erc20.Route{{From: fromLeg, To: toLeg, Stable: req.Stable()}}

	data, err := erc20.PackGetAmountsOut(amountIn, routes)
	if err != nil {
		return nil, err
	}

	router := e.reg.Router()
	raw, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &router, Data: data}, nil)
	if err != nil {
		e.log.Debug("router quote call reverted", map[string]any{
			"network": e.network,
			"pair":    req.InSymbol + "/" + req.OutSymbol,
			"error":   err.Error(),
		})
		return nil, &types.Error{
			Code:    types.ErrCodeQuoteNoLiquidity,
			Message: fmt.Sprintf("no route for %s to %s", req.InSymbol, req.OutSymbol),
			Err:     err,
		}
	}

	quotedUnits, err := erc20.UnpackAmountsOut(raw)
	if err != nil {
		return nil, &types.Error{
			Code:    types.ErrCodeQuoteNoLiquidity,
			Message: fmt.Sprintf("no route for %s to %s", req.InSymbol, req.OutSymbol),
			Err:     err,
		}
	}
	if quotedUnits.Sign() <= 0 {
		return nil, &types.Error{
			Code:    types.ErrCodeQuoteNoLiquidity,
			Message: fmt.Sprintf("pool returned no output for %s to %s", req.InSymbol, req.OutSymbol),
		}
	}

	e.metrics.IncCounter("quote_fetches", map[string]string{"network": e.network})

	quoted := utils.FromUnits(quotedUnits, out.Decimals)
	pool := req.Pool
	if pool == "" {
		pool = types.PoolVolatile
	}

	return &types.QuoteResult{
		ChainID:   req.ChainID,
		InSymbol:  req.InSymbol,
		OutSymbol: req.OutSymbol,
		Pool:      pool,
		AmountIn:  amount,
		AmountOut: quoted,
		MinOut:    MinOut(quoted, req.Slippage(), out.Decimals),
		FetchedAt: e.now(),
	}, nil
}

// MinOut applies the slippage tolerance to a quoted output and
// truncates in the output asset's precision. Truncation, not rounding:
// the floor must never promise more than the pool can deliver.
func MinOut(quoted decimal.Decimal, slippageBps uint32, decimals uint8) decimal.Decimal {
	factor := decimal.NewFromInt(int64(10000 - slippageBps))
	return quoted.Mul(factor).Div(decimal.NewFromInt(10000)).Truncate(int32(decimals))
}

func validate(req types.SwapRequest) (decimal.Decimal, error) {
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		return decimal.Decimal{}, &types.Error{
			Code:    types.ErrCodeQuoteInvalidAmount,
			Message: "swap amount is not a valid positive number",
			Err:     err,
		}
	}
	if amount.IsZero() {
		return decimal.Decimal{}, &types.Error{
			Code:    types.ErrCodeQuoteInvalidAmount,
			Message: "swap amount must be greater than zero",
		}
	}
	if req.InSymbol == req.OutSymbol {
		return decimal.Decimal{}, &types.Error{
			Code:    types.ErrCodeValidation,
			Message: "input and output assets are identical",
		}
	}
	return amount, nil
}

// debounceKey identifies the logical input being edited: the pair and
// pool, not the amount — rapid amount changes share one key so only
// the final value is fetched.
func debounceKey(req types.SwapRequest) string {
	pool := req.Pool
	if pool == "" {
		pool = types.PoolVolatile
	}
	return strconv.FormatUint(req.ChainID, 10) + "/" + req.From + "/" + req.InSymbol + "/" + req.OutSymbol + "/" + string(pool)
}

func supersededErr(req types.SwapRequest) error {
	return &types.Error{
		Code:    types.ErrCodeQuoteSuperseded,
		Message: fmt.Sprintf("a newer quote request for %s/%s replaced this one", req.InSymbol, req.OutSymbol),
	}
}
