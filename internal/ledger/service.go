package ledger

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrEntryNotFound           = errors.New("ledger entry not found")
	ErrEntryDeleted            = errors.New("ledger entry has been deleted")
	ErrNotDebtor               = errors.New("only the debtor can settle this entry")
	ErrInvalidSettlementAmount = errors.New("settlement amount must be between 0 and the open amount")
	ErrSettleContention        = errors.New("entry was settled concurrently, retry")
)

// maxSettleRetries bounds how often a settlement re-reads after losing
// the conditional write to a concurrent settlement.
const maxSettleRetries = 3

// EntryStore is the persistence the service needs for settlements
type EntryStore interface {
	GetByID(ctx context.Context, id int64) (*Entry, error)
	Settle(ctx context.Context, id, expectedSettled, newSettled int64, status EntryStatus, settledAt *time.Time) (*Entry, error)
}

// SummaryReconciler propagates settlement progress back into the parent
// receipt's settle summary. Implemented by the receipt service.
type SummaryReconciler interface {
	ReconcileSettleSummary(ctx context.Context, receiptID int64) error
}

// Service handles settlement business logic
type Service struct {
	store    EntryStore
	receipts SummaryReconciler
}

// NewService creates a new ledger service
func NewService(store EntryStore, receipts SummaryReconciler) *Service {
	return &Service{store: store, receipts: receipts}
}

// GetEntry retrieves a single non-deleted ledger entry
func (s *Service) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	entry, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	if entry.IsDeleted {
		return nil, ErrEntryDeleted
	}
	return entry, nil
}

// Settle records a payment of amountCents against an entry. Only the
// debtor may settle, and the amount must not exceed the open amount. The
// write is conditional on the entry's current settled_amount_cents; on a
// lost race the entry is re-read and the amount re-validated against the
// refreshed open amount. Settlement progress is then reconciled into the
// parent receipt's settle summary.
func (s *Service) Settle(ctx context.Context, callerID, entryID, amountCents int64) (*Entry, error) {
	if amountCents < 0 {
		return nil, ErrInvalidSettlementAmount
	}

	for attempt := 0; attempt < maxSettleRetries; attempt++ {
		entry, err := s.store.GetByID(ctx, entryID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, ErrEntryNotFound
		}
		if entry.IsDeleted {
			return nil, ErrEntryDeleted
		}
		if entry.DebtorID != callerID {
			return nil, ErrNotDebtor
		}
		if amountCents > entry.OpenAmountCents() {
			return nil, ErrInvalidSettlementAmount
		}

		newSettled := entry.SettledAmountCents + amountCents
		status := StatusFor(entry.AmountCents, newSettled)

		var settledAt *time.Time
		if status == EntryStatusSettled {
			now := time.Now().UTC()
			settledAt = &now
		}

		updated, err := s.store.Settle(ctx, entryID, entry.SettledAmountCents, newSettled, status, settledAt)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			// Lost the conditional write; re-read and retry.
			continue
		}

		if err := s.receipts.ReconcileSettleSummary(ctx, updated.ReceiptID); err != nil {
			return nil, err
		}

		return updated, nil
	}

	return nil, ErrSettleContention
}
