package ledger

// SettleEntryRequest represents the request to settle part of an entry
type SettleEntryRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"gte=0"`
}

// EntryResponse represents the response for a ledger entry
type EntryResponse struct {
	ID                 int64       `json:"id"`
	ReceiptID          int64       `json:"receipt_id"`
	DebtorID           int64       `json:"debtor_id"`
	CreditorID         int64       `json:"creditor_id"`
	AmountCents        int64       `json:"amount_cents"`
	SettledAmountCents int64       `json:"settled_amount_cents"`
	OpenAmountCents    int64       `json:"open_amount_cents"`
	Status             EntryStatus `json:"status"`
	SettledAt          string      `json:"settled_at,omitempty"`
	CreatedAt          string      `json:"created_at"`
	UpdatedAt          string      `json:"updated_at"`
}

// ToResponse converts an Entry model to an EntryResponse DTO
func (e *Entry) ToResponse() *EntryResponse {
	resp := &EntryResponse{
		ID:                 e.ID,
		ReceiptID:          e.ReceiptID,
		DebtorID:           e.DebtorID,
		CreditorID:         e.CreditorID,
		AmountCents:        e.AmountCents,
		SettledAmountCents: e.SettledAmountCents,
		OpenAmountCents:    e.OpenAmountCents(),
		Status:             e.Status,
		CreatedAt:          e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:          e.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if e.SettledAt != nil {
		resp.SettledAt = e.SettledAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}
