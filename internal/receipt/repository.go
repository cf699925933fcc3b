package receipt

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/malnajdi/fatoora/internal/ledger"
)

// Repository handles receipt persistence. The aggregate's embedded
// collections (participants, items, charges, payments, settle_summary)
// live in JSONB columns so every mutation rewrites the document under a
// single conditional write on the version column.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new receipt repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const receiptColumns = `id, owner_id, folder_id, title, description, comments, status,
	participants, items, charges, payments, settle_summary,
	subtotal_cents, total_cents, version, is_deleted,
	created_at, updated_at, created_by, updated_by`

// marshalDoc encodes an embedded collection, mapping nil slices to empty
// JSON arrays so the stored document never contains nulls.
func marshalDoc(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt document: %w", err)
	}
	if string(data) == "null" {
		return []byte("[]"), nil
	}
	return data, nil
}

func scanReceipt(row interface{ Scan(...interface{}) error }) (*Receipt, error) {
	rcpt := &Receipt{}
	var participants, items, charges, payments, summary []byte

	err := row.Scan(
		&rcpt.ID,
		&rcpt.OwnerID,
		&rcpt.FolderID,
		&rcpt.Title,
		&rcpt.Description,
		&rcpt.Comments,
		&rcpt.Status,
		&participants,
		&items,
		&charges,
		&payments,
		&summary,
		&rcpt.SubtotalCents,
		&rcpt.TotalCents,
		&rcpt.Version,
		&rcpt.IsDeleted,
		&rcpt.CreatedAt,
		&rcpt.UpdatedAt,
		&rcpt.CreatedBy,
		&rcpt.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(participants, &rcpt.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}
	if err := json.Unmarshal(items, &rcpt.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	if err := json.Unmarshal(charges, &rcpt.Charges); err != nil {
		return nil, fmt.Errorf("failed to decode charges: %w", err)
	}
	if err := json.Unmarshal(payments, &rcpt.Payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	if err := json.Unmarshal(summary, &rcpt.SettleSummary); err != nil {
		return nil, fmt.Errorf("failed to decode settle summary: %w", err)
	}

	return rcpt, nil
}

type receiptDocs struct {
	participants []byte
	items        []byte
	charges      []byte
	payments     []byte
	summary      []byte
}

func encodeDocs(rcpt *Receipt) (*receiptDocs, error) {
	participants, err := marshalDoc(rcpt.Participants)
	if err != nil {
		return nil, err
	}
	items, err := marshalDoc(rcpt.Items)
	if err != nil {
		return nil, err
	}
	charges, err := marshalDoc(rcpt.Charges)
	if err != nil {
		return nil, err
	}
	payments, err := marshalDoc(rcpt.Payments)
	if err != nil {
		return nil, err
	}
	summary, err := marshalDoc(rcpt.SettleSummary)
	if err != nil {
		return nil, err
	}
	return &receiptDocs{participants, items, charges, payments, summary}, nil
}

// Insert persists a freshly created draft receipt
func (r *Repository) Insert(ctx context.Context, rcpt *Receipt) (*Receipt, error) {
	docs, err := encodeDocs(rcpt)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO receipts (owner_id, folder_id, title, description, comments, status,
			participants, items, charges, payments, settle_summary,
			subtotal_cents, total_cents, version, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $14)
		RETURNING ` + receiptColumns

	created, err := scanReceipt(r.db.QueryRowContext(ctx, query,
		rcpt.OwnerID,
		rcpt.FolderID,
		rcpt.Title,
		rcpt.Description,
		rcpt.Comments,
		rcpt.Status,
		docs.participants,
		docs.items,
		docs.charges,
		docs.payments,
		docs.summary,
		rcpt.SubtotalCents,
		rcpt.TotalCents,
		rcpt.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create receipt: %w", err)
	}

	return created, nil
}

// GetByID retrieves a receipt by its ID. Soft-deleted receipts are
// invisible to every read path.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1 AND is_deleted = FALSE`

	rcpt, err := scanReceipt(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return rcpt, nil
}

// ListByParticipant retrieves all non-deleted receipts where the user is
// a participant (the owner always is), newest first.
func (r *Repository) ListByParticipant(ctx context.Context, userID int64, limit, offset int) ([]*Receipt, int, error) {
	memberFilter := `participants @> jsonb_build_array(jsonb_build_object('user_id', $1::bigint))`

	var total int
	countQuery := `SELECT COUNT(*) FROM receipts WHERE is_deleted = FALSE AND ` + memberFilter
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count receipts: %w", err)
	}

	query := `
		SELECT ` + receiptColumns + `
		FROM receipts
		WHERE is_deleted = FALSE AND ` + memberFilter + `
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*Receipt
	for rows.Next() {
		rcpt, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, rcpt)
	}

	return receipts, total, nil
}

// SaveDraft writes the merged draft state conditionally on the version
// the caller read. Returns nil, nil when the conditional write matches no
// row: a concurrent writer won the race (or the draft precondition broke)
// and the caller must surface a version conflict.
func (r *Repository) SaveDraft(ctx context.Context, rcpt *Receipt, expectedVersion int64) (*Receipt, error) {
	docs, err := encodeDocs(rcpt)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE receipts
		SET folder_id = $3, title = $4, description = $5, comments = $6,
			participants = $7, items = $8, charges = $9, payments = $10, settle_summary = $11,
			subtotal_cents = $12, total_cents = $13,
			version = version + 1, updated_at = NOW(), updated_by = $14
		WHERE id = $1 AND version = $2 AND status = $15 AND is_deleted = FALSE
		RETURNING ` + receiptColumns

	updated, err := scanReceipt(r.db.QueryRowContext(ctx, query,
		rcpt.ID,
		expectedVersion,
		rcpt.FolderID,
		rcpt.Title,
		rcpt.Description,
		rcpt.Comments,
		docs.participants,
		docs.items,
		docs.charges,
		docs.payments,
		docs.summary,
		rcpt.SubtotalCents,
		rcpt.TotalCents,
		rcpt.UpdatedBy,
		StatusDraft,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update receipt: %w", err)
	}

	return updated, nil
}

// Finalize flips the receipt to finalized and inserts its ledger entries
// in one transaction, conditionally on the version the caller read.
// Returns nil, nil, nil when the conditional flip matched no row
// (a concurrent finalize or update won).
func (r *Repository) Finalize(ctx context.Context, rcpt *Receipt, expectedVersion int64, obligations []ledger.Obligation) (*Receipt, []*ledger.Entry, error) {
	summary, err := marshalDoc(rcpt.SettleSummary)
	if err != nil {
		return nil, nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE receipts
		SET status = $3, settle_summary = $4,
			version = version + 1, updated_at = NOW(), updated_by = $5
		WHERE id = $1 AND version = $2 AND status = $6 AND is_deleted = FALSE
		RETURNING ` + receiptColumns

	finalized, err := scanReceipt(tx.QueryRowContext(ctx, query,
		rcpt.ID,
		expectedVersion,
		StatusFinalized,
		summary,
		rcpt.UpdatedBy,
		StatusDraft,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to finalize receipt: %w", err)
	}

	entries, err := ledger.InsertEntriesTx(ctx, tx, rcpt.ID, obligations)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit finalize: %w", err)
	}

	return finalized, entries, nil
}

// Unfinalize soft-deletes the receipt's ledger entries and returns it to
// draft in one transaction. The entry delete is conditional on zero
// settlement progress; if any live entry survives the guard, a
// settlement raced in and the whole transaction aborts with
// ErrAlreadySettled.
func (r *Repository) Unfinalize(ctx context.Context, rcpt *Receipt) (*Receipt, error) {
	summary, err := marshalDoc(rcpt.SettleSummary)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	remaining, err := ledger.SoftDeleteEntriesTx(ctx, tx, rcpt.ID)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, ErrAlreadySettled
	}

	query := `
		UPDATE receipts
		SET status = $2, settle_summary = $3,
			version = version + 1, updated_at = NOW(), updated_by = $4
		WHERE id = $1 AND status = $5 AND is_deleted = FALSE
		RETURNING ` + receiptColumns

	reverted, err := scanReceipt(tx.QueryRowContext(ctx, query,
		rcpt.ID,
		StatusDraft,
		summary,
		rcpt.UpdatedBy,
		StatusFinalized,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to unfinalize receipt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit unfinalize: %w", err)
	}

	return reverted, nil
}

// UpdateSettleSummary rewrites the settle summary projection without
// bumping the version: reconciliation reflects ledger state, it is not a
// client mutation.
func (r *Repository) UpdateSettleSummary(ctx context.Context, id int64, summary []SettleEntry) error {
	doc, err := marshalDoc(summary)
	if err != nil {
		return err
	}

	query := `
		UPDATE receipts
		SET settle_summary = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, id, doc); err != nil {
		return fmt.Errorf("failed to update settle summary: %w", err)
	}

	return nil
}

// SoftDelete flips the receipt's deletion flag. Ledger entries are left
// untouched.
func (r *Repository) SoftDelete(ctx context.Context, id, updatedBy int64) error {
	query := `
		UPDATE receipts
		SET is_deleted = TRUE, updated_at = NOW(), updated_by = $2
		WHERE id = $1 AND is_deleted = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, id, updatedBy); err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}

	return nil
}
