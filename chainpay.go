// Package chainpay executes stablecoin payments and on-chain swaps for
// merchant-facing applications across multiple EVM networks.
//
// The facade wires, per configured chain, a token registry, a TTL
// balance cache, a gas estimator, a transaction submitter, a
// confirmation tracker and a swap quote engine. Callers supply wallet
// signing capability and persistence/notification collaborators; the
// core produces transaction records and domain events and renders
// nothing.
package chainpay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/coinflow/chainpay/balances"
	"github.com/coinflow/chainpay/bridge"
	"github.com/coinflow/chainpay/clients"
	"github.com/coinflow/chainpay/confirm"
	"github.com/coinflow/chainpay/gas"
	"github.com/coinflow/chainpay/logger"
	"github.com/coinflow/chainpay/metrics"
	"github.com/coinflow/chainpay/quote"
	"github.com/coinflow/chainpay/registry"
	"github.com/coinflow/chainpay/submit"
	"github.com/coinflow/chainpay/types"
	"github.com/coinflow/chainpay/utils"
	"github.com/coinflow/chainpay/wallet"
)

// ChainPay is the main entry point. One instance serves any number of
// networks added through AddNetwork.
type ChainPay struct {
	store  bridge.Persistence
	notify bridge.Notifier

	log           logger.Logger
	metrics       metrics.Recorder
	submitTimeout time.Duration
	confirmPolicy confirm.Policy
	quoteDebounce time.Duration
	balanceTTL    time.Duration

	validate *validator.Validate

	mu       sync.RWMutex
	networks map[uint64]*network
}

// network bundles one chain's engines around a shared RPC client.
type network struct {
	cfg       types.ChainConfig
	client    clients.EVM
	wallet    wallet.Wallet
	registry  *registry.Registry
	balances  *balances.Cache
	estimator *gas.Estimator
	tracker   *confirm.Tracker
	submitter *submit.Submitter
	quotes    *quote.Engine
}

// New creates a ChainPay core reporting to the given persistence store
// and notifier. The notifier may be nil.
func New(store bridge.Persistence, notify bridge.Notifier, opts ...Option) *ChainPay {
	p := &ChainPay{
		store:         store,
		notify:        notify,
		log:           logger.NoopLogger{},
		metrics:       metrics.NoopRecorder{},
		submitTimeout: 30 * time.Second,
		confirmPolicy: confirm.DefaultPolicy(),
		quoteDebounce: quote.DefaultDebounce,
		balanceTTL:    balances.DefaultTTL,
		validate:      validator.New(),
		networks:      make(map[uint64]*network),
	}
	if p.notify == nil {
		p.notify = bridge.NoopNotifier{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddNetwork dials the chain's RPC endpoints in order and registers the
// network with the given signing wallet.
func (p *ChainPay) AddNetwork(ctx context.Context, cfg types.ChainConfig, w wallet.Wallet) error {
	client, err := clients.Dial(ctx, cfg.ChainID, cfg.RPCURLs)
	if err != nil {
		return fmt.Errorf("failed to connect network %s: %w", cfg.Name, err)
	}
	return p.AddNetworkWithClient(cfg, w, client)
}

// AddNetworkWithClient registers a network on an already-connected
// client. Tests use this to inject stub backends.
func (p *ChainPay) AddNetworkWithClient(cfg types.ChainConfig, w wallet.Wallet, client clients.EVM) error {
	if cfg.ChainID == 0 {
		return &types.Error{Code: types.ErrCodeValidation, Message: "chain id is required"}
	}

	reg := registry.New(cfg, client, p.log)
	tracker := confirm.New(client, p.store, p.notify, cfg.Name, p.confirmPolicy, p.log, p.metrics)
	estimator := gas.New(client, cfg.Name, p.log, p.metrics)

	n := &network{
		cfg:       cfg,
		client:    client,
		wallet:    w,
		registry:  reg,
		balances:  balances.New(client, cfg.Name, p.balanceTTL, p.log, p.metrics),
		estimator: estimator,
		tracker:   tracker,
		submitter: submit.New(client, w, reg, estimator, p.store, tracker, cfg.Name, p.log, p.metrics),
		quotes:    quote.New(client, reg, cfg.Name, p.quoteDebounce, p.log, p.metrics),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.networks[cfg.ChainID]; ok {
		return &types.Error{
			Code:    types.ErrCodeValidation,
			Message: fmt.Sprintf("chain %d already registered", cfg.ChainID),
		}
	}
	p.networks[cfg.ChainID] = n
	p.log.Info("network registered", map[string]any{"network": cfg.Name, "chainId": cfg.ChainID})
	return nil
}

// IsNetworkSupported reports whether a chain has a configured client.
func (p *ChainPay) IsNetworkSupported(chainID uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.networks[chainID]
	return ok
}

func (p *ChainPay) network(chainID uint64) (*network, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.networks[chainID]
	if !ok {
		return nil, &types.Error{
			Code:    types.ErrCodeUnsupportedNetwork,
			Message: fmt.Sprintf("chain %d has no configured client", chainID),
		}
	}
	return n, nil
}

// Transfer sends a native or token payment and waits for its terminal
// confirmation state. Validation failures return before any network
// call and are never persisted; anything past a successful submission
// is persisted even when confirmation later fails or times out, in
// which case the record is returned together with the error.
func (p *ChainPay) Transfer(ctx context.Context, req types.TransferRequest) (*types.TransactionRecord, error) {
	if err := p.validate.Struct(&req); err != nil {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "incomplete transfer request", Err: err}
	}

	n, err := p.network(req.ChainID)
	if err != nil {
		return nil, err
	}

	if !utils.ValidAddress(req.From) || !utils.ValidAddress(req.To) {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "sender and recipient must be valid addresses"}
	}
	if !strings.EqualFold(req.From, n.wallet.Address().Hex()) {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "sender does not match the configured wallet"}
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "amount must be a non-negative decimal", Err: err}
	}

	asset, err := n.registry.Resolve(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	units := utils.ToUnits(amount, asset.Decimals)
	display := amount.String()

	var intent submit.Intent
	if asset.IsNative() {
		intent = submit.NativeTransfer{
			From:    common.HexToAddress(req.From),
			To:      common.HexToAddress(req.To),
			Asset:   asset,
			Amount:  units,
			Display: display,
			Memo:    req.Memo,
			LinkID:  req.LinkID,
		}
	} else {
		intent = submit.TokenTransfer{
			From:    common.HexToAddress(req.From),
			To:      common.HexToAddress(req.To),
			Asset:   asset,
			Amount:  units,
			Display: display,
			Memo:    req.Memo,
			LinkID:  req.LinkID,
		}
	}

	subCtx, cancel := context.WithTimeout(ctx, p.submitTimeout)
	rec, err := n.submitter.Submit(subCtx, intent)
	cancel()
	if err != nil {
		return rec, err
	}

	err = n.tracker.Track(ctx, rec)
	if rec.Status == types.StatusConfirmed {
		n.balances.Invalidate(common.HexToAddress(req.From), asset.ChainID, asset.Key())
	}
	return rec, err
}

// Quote prices a swap. See the quote package for debounce semantics.
func (p *ChainPay) Quote(ctx context.Context, req types.SwapRequest) (*types.QuoteResult, error) {
	if err := p.validate.Struct(&req); err != nil {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "incomplete swap request", Err: err}
	}
	n, err := p.network(req.ChainID)
	if err != nil {
		return nil, err
	}
	return n.quotes.Quote(ctx, req)
}

// Swap executes a swap against a previously fetched quote. The quote
// must match the request's logical identity and still be within the
// freshness window; stale quotes never drive a submission. When q is
// nil a fresh quote is fetched first.
func (p *ChainPay) Swap(ctx context.Context, req types.SwapRequest, q *types.QuoteResult) (*types.TransactionRecord, error) {
	if err := p.validate.Struct(&req); err != nil {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "incomplete swap request", Err: err}
	}

	n, err := p.network(req.ChainID)
	if err != nil {
		return nil, err
	}
	if !utils.ValidAddress(req.From) {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "sender must be a valid address"}
	}
	if !strings.EqualFold(req.From, n.wallet.Address().Hex()) {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "sender does not match the configured wallet"}
	}

	if q == nil {
		q, err = n.quotes.Quote(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	if q.Identity() != req.RequestIdentity() || !q.Fresh(time.Now(), n.quotes.Freshness()) {
		return nil, &types.Error{
			Code:    types.ErrCodeQuoteStale,
			Message: "quote no longer matches the request, fetch a fresh one",
		}
	}

	in, err := n.registry.Resolve(ctx, req.InSymbol)
	if err != nil {
		return nil, err
	}
	out, err := n.registry.Resolve(ctx, req.OutSymbol)
	if err != nil {
		return nil, err
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		return nil, &types.Error{Code: types.ErrCodeValidation, Message: "amount must be a non-negative decimal", Err: err}
	}

	intent := submit.Swap{
		From:      common.HexToAddress(req.From),
		In:        in,
		Out:       out,
		AmountIn:  utils.ToUnits(amount, in.Decimals),
		MinOut:    utils.ToUnits(q.MinOut, out.Decimals),
		Stable:    req.Stable(),
		Deadline:  time.Now().Add(req.DeadlineHorizon()),
		DisplayIn: amount.String(),
	}

	rec, err := n.submitter.Submit(ctx, intent)
	if err != nil {
		return rec, err
	}

	err = n.tracker.Track(ctx, rec)
	if rec.Status == types.StatusConfirmed {
		owner := common.HexToAddress(req.From)
		n.balances.Invalidate(owner, in.ChainID, in.Key())
		n.balances.Invalidate(owner, out.ChainID, out.Key())
	}
	return rec, err
}

// Balance reads a cached balance in human-decimal units. A failed
// fetch degrades to zero rather than blocking dependent flows.
func (p *ChainPay) Balance(ctx context.Context, chainID uint64, owner, symbol string) (decimal.Decimal, error) {
	n, err := p.network(chainID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !utils.ValidAddress(owner) {
		return decimal.Decimal{}, &types.Error{Code: types.ErrCodeValidation, Message: "owner must be a valid address"}
	}
	asset, err := n.registry.Resolve(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return n.balances.Balance(ctx, common.HexToAddress(owner), asset), nil
}

// Resume continues confirmation of a persisted record, e.g. after a
// crash between submission and confirmation.
func (p *ChainPay) Resume(ctx context.Context, rec *types.TransactionRecord) error {
	n, err := p.network(rec.ChainID)
	if err != nil {
		return err
	}
	return n.tracker.Resume(ctx, rec)
}

// Close disconnects all network clients.
func (p *ChainPay) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.networks {
		n.client.Close()
	}
	p.networks = make(map[uint64]*network)
}
