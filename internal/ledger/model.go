package ledger

import "time"

// EntryStatus represents the settlement state of a ledger entry
type EntryStatus string

const (
	EntryStatusPending          EntryStatus = "pending"
	EntryStatusPartiallySettled EntryStatus = "partially_settled"
	EntryStatusSettled          EntryStatus = "settled"
)

// Entry is an obligation derived from one finalized receipt: debtor owes
// creditor amount_cents. The amount is fixed at creation; only
// settled_amount_cents moves, monotonically, under a conditional write.
type Entry struct {
	ID                 int64       `json:"id"`
	ReceiptID          int64       `json:"receipt_id"`
	DebtorID           int64       `json:"debtor_id"`
	CreditorID         int64       `json:"creditor_id"`
	AmountCents        int64       `json:"amount_cents"`
	SettledAmountCents int64       `json:"settled_amount_cents"`
	Status             EntryStatus `json:"status"`
	IsDeleted          bool        `json:"is_deleted"`
	SettledAt          *time.Time  `json:"settled_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// OpenAmountCents is what remains to be paid on the entry
func (e *Entry) OpenAmountCents() int64 {
	return e.AmountCents - e.SettledAmountCents
}

// StatusFor derives the entry status from the (amount, settled) pair.
// The status is never stored independently of these two values.
func StatusFor(amountCents, settledCents int64) EntryStatus {
	switch {
	case settledCents >= amountCents:
		return EntryStatusSettled
	case settledCents > 0:
		return EntryStatusPartiallySettled
	default:
		return EntryStatusPending
	}
}
