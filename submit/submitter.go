// Package submit validates transaction intents, arranges gas, sequences
// the approve-then-act pattern and hands signed submissions to the
// wallet. A record is persisted the moment a hash exists so a crash
// never loses a pending transaction.
package submit

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/coinflow/chainpay/bridge"
	"github.com/coinflow/chainpay/clients"
	"github.com/coinflow/chainpay/confirm"
	"github.com/coinflow/chainpay/gas"
	"github.com/coinflow/chainpay/internal/erc20"
	"github.com/coinflow/chainpay/logger"
	"github.com/coinflow/chainpay/metrics"
	"github.com/coinflow/chainpay/registry"
	"github.com/coinflow/chainpay/types"
	"github.com/coinflow/chainpay/wallet"
)

// Submitter builds and sends transactions for one network.
type Submitter struct {
	client    clients.EVM
	wallet    wallet.Wallet
	reg       *registry.Registry
	estimator *gas.Estimator
	store     bridge.Persistence
	tracker   *confirm.Tracker
	network   string
	log       logger.Logger
	metrics   metrics.Recorder
}

func New(
	client clients.EVM,
	w wallet.Wallet,
	reg *registry.Registry,
	estimator *gas.Estimator,
	store bridge.Persistence,
	tracker *confirm.Tracker,
	network string,
	log logger.Logger,
	rec metrics.Recorder,
) *Submitter {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Submitter{
		client:    client,
		wallet:    w,
		reg:       reg,
		estimator: estimator,
		store:     store,
		tracker:   tracker,
		network:   network,
		log:       log,
		metrics:   rec,
	}
}

// Submit validates the intent, sends the transaction and persists the
// resulting record in submitted state. Validation failures return
// before any network call. For swaps, an insufficient router allowance
// is recovered by submitting an approval and waiting for its confirmed
// state first; approval and swap are never in flight together.
func (s *Submitter) Submit(ctx context.Context, intent Intent) (*types.TransactionRecord, error) {
	if err := intent.validate(); err != nil {
		return nil, err
	}

	if sw, ok := intent.(Swap); ok && !sw.In.IsNative() {
		if err := s.ensureAllowance(ctx, sw); err != nil {
			return nil, err
		}
	}

	return s.send(ctx, intent)
}

// ensureAllowance checks the router's allowance for the swap input and,
// when short, runs a full approve round trip before returning.
func (s *Submitter) ensureAllowance(ctx context.Context, sw Swap) error {
	router := s.reg.Router()

	current, err := s.allowance(ctx, sw.In.Contract, sw.From, router)
	if err != nil {
		// An unreadable allowance is treated as zero; approving is
		// harmless when the allowance was already sufficient.
		s.log.Warn("allowance read failed, assuming zero", map[string]any{
			"network": s.network,
			"token":   sw.In.Contract.Hex(),
			"error":   err.Error(),
		})
		current = new(big.Int)
	}

	if current.Cmp(sw.AmountIn) >= 0 {
		return nil
	}

	s.log.Info("allowance below required spend, approving", map[string]any{
		"network":  s.network,
		"token":    sw.In.Symbol,
		"spender":  router.Hex(),
		"required": sw.AmountIn.String(),
		"current":  current.String(),
	})

	approval := Approve{
		Owner:   sw.From,
		Spender: router,
		Asset:   sw.In,
		Amount:  sw.AmountIn,
		Display: sw.DisplayIn,
	}
	rec, err := s.send(ctx, approval)
	if err != nil {
		return &types.Error{
			Code:    types.ErrCodeInsufficientAllowance,
			Message: "token approval submission failed",
			Err:     err,
		}
	}

	// The swap's correctness depends on the approval's on-chain
	// effect, so the approval must reach a confirmed state first.
	if err := s.tracker.Track(ctx, rec); err != nil {
		return &types.Error{
			Code:    types.ErrCodeInsufficientAllowance,
			Message: "token approval did not confirm",
			Err:     err,
		}
	}
	return nil
}

func (s *Submitter) allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := erc20.PackAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return erc20.UnpackUint256("allowance", out)
}

// send builds the calldata, arranges gas and broadcasts.
func (s *Submitter) send(ctx context.Context, intent Intent) (*types.TransactionRecord, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLatency("submit", time.Since(start), map[string]string{"network": s.network})
	}()

	req, recTo, err := s.build(intent)
	if err != nil {
		return nil, err
	}

	// Primary gas path; on estimation failure the request goes out with
	// no explicit parameters and the wallet's provider decides.
	params, err := s.estimator.Estimate(ctx, ethereum.CallMsg{
		From:  s.wallet.Address(),
		To:    req.To,
		Value: req.Value,
		Data:  req.Data,
	})
	if err != nil {
		s.log.Warn("gas estimation failed, delegating to wallet", map[string]any{
			"network": s.network,
			"kind":    string(intent.kind()),
			"error":   err.Error(),
		})
	} else {
		req.GasLimit = params.Limit
		req.GasPrice = params.Price
	}

	hash, err := s.wallet.SendTransaction(ctx, req)
	if err != nil {
		s.metrics.IncCounter("rejections", map[string]string{"network": s.network})
		return nil, &types.Error{
			Code:    types.ErrCodeSubmissionRejected,
			Message: "wallet declined the transaction",
			Err:     err,
		}
	}

	rec := s.record(intent, hash, recTo)
	if err := s.store.CreateTransaction(ctx, rec); err != nil {
		// The transaction is on-chain regardless; surface the storage
		// failure but keep the record so the caller can still track it.
		s.log.Error("failed to persist submitted transaction", map[string]any{
			"network": s.network,
			"hash":    rec.Hash,
			"error":   err.Error(),
		})
		return rec, err
	}

	s.metrics.IncCounter("submissions", map[string]string{"network": s.network})
	s.log.Info("transaction submitted", map[string]any{
		"network": s.network,
		"kind":    string(intent.kind()),
		"hash":    rec.Hash,
	})
	return rec, nil
}

// build produces the wallet request and the counterparty recorded on
// the transaction record.
func (s *Submitter) build(intent Intent) (*wallet.TxRequest, string, error) {
	switch i := intent.(type) {
	case NativeTransfer:
		to := i.To
		return &wallet.TxRequest{To: &to, Value: i.Amount}, i.To.Hex(), nil

	case TokenTransfer:
		data, err := erc20.PackTransfer(i.To, i.Amount)
		if err != nil {
			return nil, "", err
		}
		contract := i.Asset.Contract
		return &wallet.TxRequest{To: &contract, Data: data}, i.To.Hex(), nil

	case Approve:
		data, err := erc20.PackApprove(i.Spender, i.Amount)
		if err != nil {
			return nil, "", err
		}
		contract := i.Asset.Contract
		return &wallet.TxRequest{To: &contract, Data: data}, i.Spender.Hex(), nil

	case Swap:
		return s.buildSwap(i)

	default:
		return nil, "", fmt.Errorf("unknown intent type %T", intent)
	}
}

func (s *Submitter) buildSwap(i Swap) (*wallet.TxRequest, string, error) {
	router := s.reg.Router()
	deadline := big.NewInt(i.Deadline.Unix())

	fromLeg := i.In.Contract
	if i.In.IsNative() {
		fromLeg = s.reg.WrappedNative()
	}
	toLeg := i.Out.Contract
	if i.Out.IsNative() {
		toLeg = s.reg.WrappedNative()
	}
	routes := []erc20.Route{{From: fromLeg, To: toLeg, Stable: i.Stable}}

	var (
		data []byte
		err  error
		val  *big.Int
	)
	switch {
	case i.In.IsNative():
		data, err = erc20.PackSwapExactETHForTokens(i.MinOut, routes, i.From, deadline)
		val = i.AmountIn
	case i.Out.IsNative():
		data, err = erc20.PackSwapExactTokensForETH(i.AmountIn, i.MinOut, routes, i.From, deadline)
	default:
		data, err = erc20.PackSwapExactTokensForTokens(i.AmountIn, i.MinOut, routes, i.From, deadline)
	}
	if err != nil {
		return nil, "", err
	}

	return &wallet.TxRequest{To: &router, Value: val, Data: data}, router.Hex(), nil
}

func (s *Submitter) record(intent Intent, hash common.Hash, to string) *types.TransactionRecord {
	rec := types.NewTransactionRecord(intent.kind(), s.reg.Config().ChainID, types.StatusSubmitted)
	rec.Hash = hash.Hex()
	rec.From = s.wallet.Address().Hex()
	rec.To = to
	rec.Symbol = symbolOf(intent)

	switch i := intent.(type) {
	case NativeTransfer:
		rec.Amount = i.Display
		rec.Memo = i.Memo
		rec.LinkID = i.LinkID
	case TokenTransfer:
		rec.Amount = i.Display
		rec.Memo = i.Memo
		rec.LinkID = i.LinkID
	case Approve:
		rec.Amount = i.Display
	case Swap:
		rec.Amount = i.DisplayIn
	}

	return rec
}
