package receipt

import (
	"github.com/google/uuid"
)

// CreateReceiptRequest represents the request to create a receipt
type CreateReceiptRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description,omitempty"`
	Comments    string `json:"comments,omitempty"`
	FolderID    *int64 `json:"folder_id,omitempty"`
}

// SplitInput assigns a share of an item's quantity or a charge's weight
// to a user
type SplitInput struct {
	UserID        int64   `json:"user_id"`
	ShareQuantity float64 `json:"share_quantity"`
}

// ItemInput represents an item in an update patch. Omitted item IDs are
// assigned on save.
type ItemInput struct {
	ItemID         string       `json:"item_id,omitempty"`
	Name           string       `json:"name"`
	UnitPriceCents int64        `json:"unit_price_cents"`
	Quantity       float64      `json:"quantity"`
	Taxable        bool         `json:"taxable"`
	Splits         []SplitInput `json:"splits"`
}

// ChargeInput represents a charge (tax, tip, fee) in an update patch
type ChargeInput struct {
	ChargeID       string       `json:"charge_id,omitempty"`
	Name           string       `json:"name"`
	UnitPriceCents int64        `json:"unit_price_cents"`
	Taxable        bool         `json:"taxable"`
	Splits         []SplitInput `json:"splits"`
}

// PaymentInput represents a payment in an update patch
type PaymentInput struct {
	UserID          int64 `json:"user_id"`
	AmountPaidCents int64 `json:"amount_paid_cents"`
}

// UpdateReceiptRequest carries a partial patch against a draft receipt.
// Version is the optimistic lock: it must match the version the client
// last read. Nil fields are left unchanged, which is what lets autosave
// resubmit small diffs.
type UpdateReceiptRequest struct {
	Version     int64           `json:"version" validate:"required,gte=1"`
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Comments    *string         `json:"comments,omitempty"`
	FolderID    *int64          `json:"folder_id,omitempty"`
	Items       *[]ItemInput    `json:"items,omitempty"`
	Charges     *[]ChargeInput  `json:"charges,omitempty"`
	Payments    *[]PaymentInput `json:"payments,omitempty"`
}

// AddMemberRequest represents the request to add a participant by email
type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// toItems converts patch inputs to model items, assigning IDs where the
// client sent none
func toItems(inputs []ItemInput) []Item {
	items := make([]Item, len(inputs))
	for i, in := range inputs {
		itemID := in.ItemID
		if itemID == "" {
			itemID = uuid.NewString()
		}
		items[i] = Item{
			ItemID:         itemID,
			Name:           in.Name,
			UnitPriceCents: in.UnitPriceCents,
			Quantity:       in.Quantity,
			Taxable:        in.Taxable,
			Splits:         toSplits(in.Splits),
		}
	}
	return items
}

// toCharges converts patch inputs to model charges
func toCharges(inputs []ChargeInput) []Charge {
	charges := make([]Charge, len(inputs))
	for i, in := range inputs {
		chargeID := in.ChargeID
		if chargeID == "" {
			chargeID = uuid.NewString()
		}
		charges[i] = Charge{
			ChargeID:       chargeID,
			Name:           in.Name,
			UnitPriceCents: in.UnitPriceCents,
			Taxable:        in.Taxable,
			Splits:         toSplits(in.Splits),
		}
	}
	return charges
}

func toSplits(inputs []SplitInput) []Split {
	splits := make([]Split, len(inputs))
	for i, in := range inputs {
		splits[i] = Split{UserID: in.UserID, ShareQuantity: in.ShareQuantity}
	}
	return splits
}

func toPayments(inputs []PaymentInput) []Payment {
	payments := make([]Payment, len(inputs))
	for i, in := range inputs {
		payments[i] = Payment{UserID: in.UserID, AmountPaidCents: in.AmountPaidCents}
	}
	return payments
}

// ParticipantResponse represents a participant in API responses
type ParticipantResponse struct {
	UserID   int64  `json:"user_id"`
	Role     Role   `json:"role"`
	JoinedAt string `json:"joined_at"`
}

// SettleEntryResponse represents a settle summary entry in API responses
type SettleEntryResponse struct {
	UserID             int64         `json:"user_id"`
	AmountCents        int64         `json:"amount_cents"`
	PaidCents          int64         `json:"paid_cents"`
	NetCents           int64         `json:"net_cents"`
	SettledAmountCents int64         `json:"settled_amount_cents"`
	IsSettled          bool          `json:"is_settled"`
	SettledAt          string        `json:"settled_at,omitempty"`
	Status             SummaryStatus `json:"status"`
}

// ReceiptResponse represents the response for a receipt
type ReceiptResponse struct {
	ID            int64                 `json:"id"`
	OwnerID       int64                 `json:"owner_id"`
	FolderID      *int64                `json:"folder_id,omitempty"`
	Title         string                `json:"title"`
	Description   string                `json:"description,omitempty"`
	Comments      string                `json:"comments,omitempty"`
	Status        Status                `json:"status"`
	Participants  []ParticipantResponse `json:"participants"`
	Items         []Item                `json:"items"`
	Charges       []Charge              `json:"charges"`
	Payments      []Payment             `json:"payments"`
	SettleSummary []SettleEntryResponse `json:"settle_summary"`
	SubtotalCents int64                 `json:"subtotal_cents"`
	TotalCents    int64                 `json:"total_cents"`
	Version       int64                 `json:"version"`
	CreatedAt     string                `json:"created_at"`
	UpdatedAt     string                `json:"updated_at"`
}

// ToResponse converts a Receipt model to a ReceiptResponse DTO
func (r *Receipt) ToResponse() *ReceiptResponse {
	const timeFormat = "2006-01-02T15:04:05Z"

	participants := make([]ParticipantResponse, len(r.Participants))
	for i, p := range r.Participants {
		participants[i] = ParticipantResponse{
			UserID:   p.UserID,
			Role:     p.Role,
			JoinedAt: p.JoinedAt.Format(timeFormat),
		}
	}

	summary := make([]SettleEntryResponse, len(r.SettleSummary))
	for i, e := range r.SettleSummary {
		summary[i] = SettleEntryResponse{
			UserID:             e.UserID,
			AmountCents:        e.AmountCents,
			PaidCents:          e.PaidCents,
			NetCents:           e.NetCents,
			SettledAmountCents: e.SettledAmountCents,
			IsSettled:          e.IsSettled,
			Status:             e.Status,
		}
		if e.SettledAt != nil {
			summary[i].SettledAt = e.SettledAt.Format(timeFormat)
		}
	}

	return &ReceiptResponse{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		FolderID:      r.FolderID,
		Title:         r.Title,
		Description:   r.Description,
		Comments:      r.Comments,
		Status:        r.Status,
		Participants:  participants,
		Items:         r.Items,
		Charges:       r.Charges,
		Payments:      r.Payments,
		SettleSummary: summary,
		SubtotalCents: r.SubtotalCents,
		TotalCents:    r.TotalCents,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt.Format(timeFormat),
		UpdatedAt:     r.UpdatedAt.Format(timeFormat),
	}
}
