package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository handles ledger entry persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const entryColumns = `id, receipt_id, debtor_id, creditor_id, amount_cents, settled_amount_cents, status, is_deleted, settled_at, created_at, updated_at`

func scanEntry(row interface{ Scan(...interface{}) error }) (*Entry, error) {
	entry := &Entry{}
	err := row.Scan(
		&entry.ID,
		&entry.ReceiptID,
		&entry.DebtorID,
		&entry.CreditorID,
		&entry.AmountCents,
		&entry.SettledAmountCents,
		&entry.Status,
		&entry.IsDeleted,
		&entry.SettledAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// InsertEntriesTx persists obligations for a freshly finalized receipt
// inside the caller's transaction, so the status flip and the ledger
// insert commit together.
func InsertEntriesTx(ctx context.Context, tx *sql.Tx, receiptID int64, obligations []Obligation) ([]*Entry, error) {
	query := `
		INSERT INTO ledger_entries (receipt_id, debtor_id, creditor_id, amount_cents, settled_amount_cents, status)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING ` + entryColumns

	entries := make([]*Entry, 0, len(obligations))
	for _, ob := range obligations {
		entry, err := scanEntry(tx.QueryRowContext(ctx, query,
			receiptID,
			ob.DebtorID,
			ob.CreditorID,
			ob.AmountCents,
			EntryStatusPending,
		))
		if err != nil {
			return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// SoftDeleteEntriesTx marks a receipt's entries deleted inside the
// caller's transaction. The update is conditional on zero settlement
// progress; the returned remaining count is the number of live entries
// the guard refused to touch. A non-zero remaining means settlement
// raced in and the caller must abort the unfinalize.
func SoftDeleteEntriesTx(ctx context.Context, tx *sql.Tx, receiptID int64) (remaining int64, err error) {
	deleteQuery := `
		UPDATE ledger_entries
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE receipt_id = $1 AND is_deleted = FALSE AND settled_amount_cents = 0
	`
	if _, err := tx.ExecContext(ctx, deleteQuery, receiptID); err != nil {
		return 0, fmt.Errorf("failed to soft delete ledger entries: %w", err)
	}

	countQuery := `
		SELECT COUNT(*) FROM ledger_entries
		WHERE receipt_id = $1 AND is_deleted = FALSE
	`
	if err := tx.QueryRowContext(ctx, countQuery, receiptID).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("failed to count remaining ledger entries: %w", err)
	}

	return remaining, nil
}

// GetByID retrieves a ledger entry by its ID, including deleted ones so
// the service can distinguish missing from deleted.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return entry, nil
}

// ListByReceiptID retrieves all non-deleted entries for a receipt
func (r *Repository) ListByReceiptID(ctx context.Context, receiptID int64) ([]*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE receipt_id = $1 AND is_deleted = FALSE
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Settle advances an entry's settled amount with a conditional write on
// the current settled_amount_cents. Returns nil, nil when the condition
// no longer holds (a concurrent settlement won); the caller re-reads and
// retries with the refreshed open amount.
func (r *Repository) Settle(ctx context.Context, id, expectedSettled, newSettled int64, status EntryStatus, settledAt *time.Time) (*Entry, error) {
	query := `
		UPDATE ledger_entries
		SET settled_amount_cents = $3, status = $4, settled_at = COALESCE($5, settled_at), updated_at = NOW()
		WHERE id = $1 AND settled_amount_cents = $2 AND is_deleted = FALSE
		RETURNING ` + entryColumns

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id, expectedSettled, newSettled, status, settledAt))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to settle ledger entry: %w", err)
	}

	return entry, nil
}

// SettledByDebtor sums settled cents per debtor across a receipt's
// non-deleted entries, for the settle summary reconciliation.
func (r *Repository) SettledByDebtor(ctx context.Context, receiptID int64) (map[int64]int64, error) {
	query := `
		SELECT debtor_id, COALESCE(SUM(settled_amount_cents), 0)
		FROM ledger_entries
		WHERE receipt_id = $1 AND is_deleted = FALSE
		GROUP BY debtor_id
	`

	rows, err := r.db.QueryContext(ctx, query, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum settled amounts: %w", err)
	}
	defer rows.Close()

	settled := make(map[int64]int64)
	for rows.Next() {
		var debtorID, amount int64
		if err := rows.Scan(&debtorID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan settled amount: %w", err)
		}
		settled[debtorID] = amount
	}

	return settled, nil
}

// BalanceOf sums open amounts across all receipts where the user is
// debtor or creditor. Fully settled and deleted entries carry no open
// amount and are excluded.
func (r *Repository) BalanceOf(ctx context.Context, userID int64) (owes, isOwed int64, err error) {
	owesQuery := `
		SELECT COALESCE(SUM(amount_cents - settled_amount_cents), 0)
		FROM ledger_entries
		WHERE debtor_id = $1 AND is_deleted = FALSE AND status <> $2
	`
	if err := r.db.QueryRowContext(ctx, owesQuery, userID, EntryStatusSettled).Scan(&owes); err != nil {
		return 0, 0, fmt.Errorf("failed to sum debts: %w", err)
	}

	isOwedQuery := `
		SELECT COALESCE(SUM(amount_cents - settled_amount_cents), 0)
		FROM ledger_entries
		WHERE creditor_id = $1 AND is_deleted = FALSE AND status <> $2
	`
	if err := r.db.QueryRowContext(ctx, isOwedQuery, userID, EntryStatusSettled).Scan(&isOwed); err != nil {
		return 0, 0, fmt.Errorf("failed to sum credits: %w", err)
	}

	return owes, isOwed, nil
}
