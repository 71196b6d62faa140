// Package bridge declares the external collaborators the core reports
// to: a persistence store for transaction records and a notifier for
// domain events. Both are supplied by the surrounding application; the
// in-memory implementation in this package backs tests and examples.
package bridge

import (
	"context"

	"github.com/coinflow/chainpay/types"
)

// Persistence records transaction state transitions. The core calls
// CreateTransaction as soon as a hash is acquired, so a crash after
// submission never loses a pending transaction.
type Persistence interface {
	CreateTransaction(ctx context.Context, record *types.TransactionRecord) error

	// UpdateTransactionStatus mutates the record identified by hash.
	// Re-applying an already-current terminal status must be a no-op.
	UpdateTransactionStatus(ctx context.Context, hash string, status types.TxStatus, fields map[string]any) error

	// MarkLinkedInvoicePaid settles the external reference attached to
	// a confirmed transfer.
	MarkLinkedInvoicePaid(ctx context.Context, linkID string) error
}

// Event types emitted through the Notifier.
const (
	EventConfirmed = "transaction_confirmed"
	EventFailed    = "transaction_failed"
)

// Event is a human-readable domain event.
type Event struct {
	Message       string `json:"message"`
	Type          string `json:"type"`
	TransactionID string `json:"relatedTransactionId,omitempty"`
}

// Notifier receives domain events for user-facing surfaces.
type Notifier interface {
	Emit(ctx context.Context, event Event) error
}

// NoopNotifier drops all events.
type NoopNotifier struct{}

func (NoopNotifier) Emit(context.Context, Event) error { return nil }
