// Package confirm drives a submitted transaction to a terminal state.
//
// The tracker polls for a receipt under a bounded window. A receipt
// with success status confirms the record; a revert fails it. When the
// window expires without any receipt the outcome is ambiguous, so the
// tracker schedules exactly one deferred retry before surfacing the
// transaction as unconfirmed. Retry policy lives here and nowhere else.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/coinflow/chainpay/bridge"
	"github.com/coinflow/chainpay/clients"
	"github.com/coinflow/chainpay/logger"
	"github.com/coinflow/chainpay/metrics"
	"github.com/coinflow/chainpay/types"
	"github.com/coinflow/chainpay/utils"
)

// receiptAttempts is the total number of polling windows: the original
// wait plus one deferred retry.
const receiptAttempts = 2

// Policy bounds the receipt wait. Tests compress these durations.
type Policy struct {
	// PollInterval is the gap between receipt queries for one hash.
	// Polling is strictly sequential; there are never overlapping
	// queries for the same transaction.
	PollInterval time.Duration

	// ReceiptTimeout bounds one polling window.
	ReceiptTimeout time.Duration

	// RetryDelay is the pause before the single deferred retry.
	RetryDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		PollInterval:   3 * time.Second,
		ReceiptTimeout: 120 * time.Second,
		RetryDelay:     30 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.PollInterval <= 0 {
		p.PollInterval = d.PollInterval
	}
	if p.ReceiptTimeout <= 0 {
		p.ReceiptTimeout = d.ReceiptTimeout
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = d.RetryDelay
	}
	return p
}

// Tracker observes one network's transactions. Every state transition
// is reported to the persistence bridge; confirmation additionally
// emits a human-readable notification and settles any linked invoice.
type Tracker struct {
	client  clients.EVM
	store   bridge.Persistence
	notify  bridge.Notifier
	network string
	policy  Policy
	log     logger.Logger
	metrics metrics.Recorder
}

func New(client clients.EVM, store bridge.Persistence, notify bridge.Notifier, network string, policy Policy, log logger.Logger, rec metrics.Recorder) *Tracker {
	if notify == nil {
		notify = bridge.NoopNotifier{}
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Tracker{
		client:  client,
		store:   store,
		notify:  notify,
		network: network,
		policy:  policy.withDefaults(),
		log:     log,
		metrics: rec,
	}
}

// Track polls rec's hash until it reaches a terminal state or the
// timeout schedule is exhausted. Cancelling ctx abandons only the local
// observation; the transaction itself stays on-chain and the record
// can be resumed later from persisted state.
func (t *Tracker) Track(ctx context.Context, rec *types.TransactionRecord) error {
	if rec.Hash == "" {
		return &types.Error{
			Code:    types.ErrCodeValidation,
			Message: "cannot track a record without a transaction hash",
		}
	}
	if rec.Status.Terminal() {
		return nil
	}

	start := time.Now()
	defer func() {
		t.metrics.ObserveLatency("confirm", time.Since(start), map[string]string{"network": t.network})
	}()

	if err := t.transition(ctx, rec, types.StatusPending); err != nil {
		return err
	}
	if err := t.transition(ctx, rec, types.StatusConfirming); err != nil {
		return err
	}

	hash := common.HexToHash(rec.Hash)
	for attempt := 1; attempt <= receiptAttempts; attempt++ {
		receipt, err := t.pollWindow(ctx, hash)
		if err != nil {
			// Context cancellation: observation abandoned, no transition.
			return err
		}
		if receipt != nil {
			return t.settle(ctx, rec, receipt)
		}

		if attempt < receiptAttempts {
			t.log.Warn("receipt wait timed out, scheduling one retry", map[string]any{
				"network": t.network,
				"hash":    rec.Hash,
				"delay":   t.policy.RetryDelay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.policy.RetryDelay):
			}
		}
	}

	// Two windows without a receipt: indeterminate, not failed.
	t.metrics.IncCounter("timeouts", map[string]string{"network": t.network})
	if err := t.transition(ctx, rec, types.StatusUnconfirmed); err != nil {
		return err
	}
	return &types.Error{
		Code:    types.ErrCodeConfirmationTimeout,
		Message: fmt.Sprintf("no receipt for %s after %d attempts", utils.ShortAddress(rec.Hash), receiptAttempts),
	}
}

// Resume continues observation of a persisted record, e.g. after a
// restart or an abandoned wait. Terminal records return immediately.
func (t *Tracker) Resume(ctx context.Context, rec *types.TransactionRecord) error {
	return t.Track(ctx, rec)
}

// pollWindow queries for a receipt every PollInterval until one shows
// up or ReceiptTimeout elapses. A nil receipt with nil error means the
// window expired.
func (t *Tracker) pollWindow(ctx context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	window, cancel := context.WithTimeout(ctx, t.policy.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(t.policy.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.client.TransactionReceipt(window, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.log.Debug("receipt query failed", map[string]any{
				"network": t.network,
				"hash":    hash.Hex(),
				"error":   err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-window.Done():
			return nil, nil
		case <-ticker.C:
		}
	}
}

// settle applies the receipt's verdict.
func (t *Tracker) settle(ctx context.Context, rec *types.TransactionRecord, receipt *coretypes.Receipt) error {
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		t.metrics.IncCounter("failures", map[string]string{"network": t.network})
		if err := t.transition(ctx, rec, types.StatusFailed); err != nil {
			return err
		}
		return &types.Error{
			Code:    types.ErrCodeOnChainRevert,
			Message: fmt.Sprintf("transaction %s reverted on chain", utils.ShortAddress(rec.Hash)),
		}
	}

	t.metrics.IncCounter("confirmations", map[string]string{"network": t.network})
	return t.transition(ctx, rec, types.StatusConfirmed)
}

// transition persists a state change. Same-state transitions are
// no-ops, which makes terminal updates idempotent: the confirmed
// notification fires at most once per record.
func (t *Tracker) transition(ctx context.Context, rec *types.TransactionRecord, status types.TxStatus) error {
	if rec.Status == status {
		return nil
	}

	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()

	if err := t.store.UpdateTransactionStatus(ctx, rec.Hash, status, nil); err != nil {
		t.log.Error("failed to persist status transition", map[string]any{
			"network": t.network,
			"hash":    rec.Hash,
			"status":  string(status),
			"error":   err.Error(),
		})
		return err
	}

	switch status {
	case types.StatusConfirmed:
		t.announce(ctx, rec)
	case types.StatusFailed:
		if err := t.notify.Emit(ctx, bridge.Event{
			Message:       fmt.Sprintf("transaction %s failed on %s", utils.ShortAddress(rec.Hash), t.network),
			Type:          bridge.EventFailed,
			TransactionID: rec.ID,
		}); err != nil {
			t.log.Warn("notification emit failed", map[string]any{"hash": rec.Hash, "error": err.Error()})
		}
	}
	return nil
}

func (t *Tracker) announce(ctx context.Context, rec *types.TransactionRecord) {
	var msg string
	switch rec.Kind {
	case types.TxSwap:
		msg = fmt.Sprintf("swap of %s %s by %s confirmed", rec.Amount, rec.Symbol, utils.ShortAddress(rec.From))
	case types.TxApprove:
		msg = fmt.Sprintf("approval of %s %s by %s confirmed", rec.Amount, rec.Symbol, utils.ShortAddress(rec.From))
	default:
		msg = fmt.Sprintf("%s %s sent from %s to %s", rec.Amount, rec.Symbol, utils.ShortAddress(rec.From), utils.ShortAddress(rec.To))
	}

	if err := t.notify.Emit(ctx, bridge.Event{
		Message:       msg,
		Type:          bridge.EventConfirmed,
		TransactionID: rec.ID,
	}); err != nil {
		t.log.Warn("notification emit failed", map[string]any{"hash": rec.Hash, "error": err.Error()})
	}

	if rec.LinkID != "" {
		if err := t.store.MarkLinkedInvoicePaid(ctx, rec.LinkID); err != nil {
			t.log.Error("failed to mark linked invoice paid", map[string]any{
				"linkId": rec.LinkID,
				"hash":   rec.Hash,
				"error":  err.Error(),
			})
		}
	}
}
