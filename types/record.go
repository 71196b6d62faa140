package types

import (
	"time"

	"github.com/google/uuid"
)

// TxKind classifies what a transaction does.
type TxKind string

const (
	TxTransfer TxKind = "transfer"
	TxApprove  TxKind = "approve"
	TxSwap     TxKind = "swap"
)

// TxStatus is the confirmation state of a transaction record.
//
// The happy path is Preparing → Submitting → Pending → Confirming →
// Confirmed. Failed is reachable at any point after Submitting, but only
// on a definite on-chain revert. A transaction whose receipt never
// arrives within the timeout schedule ends Unconfirmed, which is an
// indeterminate outcome rather than a failure.
type TxStatus string

const (
	StatusPreparing   TxStatus = "preparing"
	StatusSubmitting  TxStatus = "submitting"
	StatusSubmitted   TxStatus = "submitted"
	StatusPending     TxStatus = "pending"
	StatusConfirming  TxStatus = "confirming"
	StatusConfirmed   TxStatus = "confirmed"
	StatusFailed      TxStatus = "failed"
	StatusUnconfirmed TxStatus = "unconfirmed"
)

// Terminal reports whether no further transition is possible.
// Unconfirmed is deliberately not terminal: a tracker may resume the
// record from persisted state and still observe a receipt.
func (s TxStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// TransactionRecord is the core's durable view of one submitted
// transaction. Records are created once a hash is acquired, mutated by
// the confirmation tracker and never deleted.
type TransactionRecord struct {
	// Client-generated, collision-resistant identifier.
	ID string `json:"id"`

	Kind    TxKind `json:"kind"`
	ChainID uint64 `json:"chainId"`

	// Transaction hash as returned by the provider.
	Hash string `json:"hash"`

	From   string `json:"from"`
	To     string `json:"to"`
	Symbol string `json:"symbol"`

	// Human-decimal amount the caller asked for.
	Amount string `json:"amount"`

	Status TxStatus `json:"status"`

	// External reference (e.g. invoice id) marked paid on confirmation.
	LinkID string `json:"linkId,omitempty"`

	Memo string `json:"memo,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTransactionRecord builds a record in the given initial status with
// a fresh id and timestamps.
func NewTransactionRecord(kind TxKind, chainID uint64, status TxStatus) *TransactionRecord {
	now := time.Now().UTC()
	return &TransactionRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		ChainID:   chainID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
