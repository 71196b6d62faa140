package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coinflow/chainpay/types"
)

// Memory is an in-process Persistence and Notifier. It keeps every
// record and event it has seen; terminal-status updates are idempotent.
type Memory struct {
	mu      sync.Mutex
	records map[string]*types.TransactionRecord
	order   []string
	events  []Event
	paid    map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*types.TransactionRecord),
		paid:    make(map[string]bool),
	}
}

func (m *Memory) CreateTransaction(_ context.Context, record *types.TransactionRecord) error {
	if record == nil || record.Hash == "" {
		return fmt.Errorf("record must carry a transaction hash")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.Hash]; ok {
		return nil
	}
	cp := *record
	m.records[record.Hash] = &cp
	m.order = append(m.order, record.Hash)
	return nil
}

func (m *Memory) UpdateTransactionStatus(_ context.Context, hash string, status types.TxStatus, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[hash]
	if !ok {
		return fmt.Errorf("no record for hash %s", hash)
	}

	// Re-applying the current status must not disturb UpdatedAt.
	if rec.Status == status {
		return nil
	}

	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	if memo, ok := fields["memo"].(string); ok {
		rec.Memo = memo
	}
	return nil
}

func (m *Memory) MarkLinkedInvoicePaid(_ context.Context, linkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid[linkID] = true
	return nil
}

func (m *Memory) Emit(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Record returns a copy of the stored record for hash, if any.
func (m *Memory) Record(hash string) (*types.TransactionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[hash]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Records returns stored records in creation order.
func (m *Memory) Records() []*types.TransactionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.TransactionRecord, 0, len(m.order))
	for _, h := range m.order {
		cp := *m.records[h]
		out = append(out, &cp)
	}
	return out
}

// Events returns all emitted events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// InvoicePaid reports whether the linked reference was settled.
func (m *Memory) InvoicePaid(linkID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paid[linkID]
}
