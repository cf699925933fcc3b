package receipt

import (
	"time"

	"github.com/malnajdi/fatoora/internal/money"
)

// Status represents the lifecycle state of a receipt
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
	// StatusSettled exists for API compatibility; settled-ness is derived
	// from the ledger and never stored as a receipt lifecycle state.
	StatusSettled Status = "settled"
)

// Role represents a participant's role on a receipt
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// SummaryStatus represents a participant's settlement state on a receipt
type SummaryStatus string

const (
	SummaryStatusPending          SummaryStatus = "pending"
	SummaryStatusPartiallySettled SummaryStatus = "partially_settled"
	SummaryStatusSettled          SummaryStatus = "settled"
	SummaryStatusCreditor         SummaryStatus = "creditor"
)

// Participant is a user attached to a receipt. The owner is always at
// index 0; insertion order is preserved and drives remainder distribution
// for equal charge splits.
type Participant struct {
	UserID   int64     `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Split assigns a portion of an item's quantity (or a charge's weight)
// to a participant.
type Split struct {
	UserID        int64   `json:"user_id"`
	ShareQuantity float64 `json:"share_quantity"`
}

// Item is a line on the receipt. Splits carry share quantities that must
// sum to the item quantity; an item with no splits is unassigned and
// contributes to the subtotal but to nobody's liability.
type Item struct {
	ItemID         string  `json:"item_id"`
	Name           string  `json:"name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Quantity       float64 `json:"quantity"`
	Taxable        bool    `json:"taxable"`
	Splits         []Split `json:"splits"`
}

// Charge is a non-item line (tax, tip, fee). Splits are fractional
// weights summing to 1.0; empty splits mean equal across participants.
type Charge struct {
	ChargeID       string  `json:"charge_id"`
	Name           string  `json:"name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Taxable        bool    `json:"taxable"`
	Splits         []Split `json:"splits"`
}

// Payment records money a user put toward the receipt total
type Payment struct {
	UserID          int64 `json:"user_id"`
	AmountPaidCents int64 `json:"amount_paid_cents"`
}

// SettleEntry is the per-participant settlement projection stored on the
// receipt. Recomputed on every mutation and overlaid with ledger progress
// after every settlement event.
type SettleEntry struct {
	UserID             int64         `json:"user_id"`
	AmountCents        int64         `json:"amount_cents"`
	PaidCents          int64         `json:"paid_cents"`
	NetCents           int64         `json:"net_cents"`
	SettledAmountCents int64         `json:"settled_amount_cents"`
	IsSettled          bool          `json:"is_settled"`
	SettledAt          *time.Time    `json:"settled_at,omitempty"`
	Status             SummaryStatus `json:"status"`
}

// Receipt is the root aggregate: a collaboratively edited bill with an
// optimistic-locking version counter.
type Receipt struct {
	ID            int64         `json:"id"`
	OwnerID       int64         `json:"owner_id"`
	FolderID      *int64        `json:"folder_id,omitempty"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Comments      string        `json:"comments"`
	Status        Status        `json:"status"`
	Participants  []Participant `json:"participants"`
	Items         []Item        `json:"items"`
	Charges       []Charge      `json:"charges"`
	Payments      []Payment     `json:"payments"`
	SettleSummary []SettleEntry `json:"settle_summary"`
	SubtotalCents int64         `json:"subtotal_cents"`
	TotalCents    int64         `json:"total_cents"`
	Version       int64         `json:"version"`
	IsDeleted     bool          `json:"is_deleted"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	CreatedBy     int64         `json:"created_by"`
	UpdatedBy     int64         `json:"updated_by"`
}

// IsOwner reports whether userID owns the receipt
func (r *Receipt) IsOwner(userID int64) bool {
	return r.OwnerID == userID
}

// IsParticipant reports whether userID appears in the participant list
func (r *Receipt) IsParticipant(userID int64) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// HasObligations reports whether userID appears in any item or charge
// split or has recorded a payment. Such a member cannot be removed.
func (r *Receipt) HasObligations(userID int64) bool {
	for _, item := range r.Items {
		for _, split := range item.Splits {
			if split.UserID == userID {
				return true
			}
		}
	}
	for _, charge := range r.Charges {
		for _, split := range charge.Splits {
			if split.UserID == userID {
				return true
			}
		}
	}
	for _, payment := range r.Payments {
		if payment.UserID == userID {
			return true
		}
	}
	return false
}

// PaymentsTotalCents sums all recorded payments
func (r *Receipt) PaymentsTotalCents() int64 {
	var total int64
	for _, p := range r.Payments {
		total += p.AmountPaidCents
	}
	return total
}

// RecomputeTotals refreshes the stored subtotal and total from items and
// charges. Item subtotals truncate toward zero via money.IntegerScale.
func (r *Receipt) RecomputeTotals() {
	var subtotal int64
	for _, item := range r.Items {
		subtotal += money.IntegerScale(item.UnitPriceCents, item.Quantity)
	}

	total := subtotal
	for _, charge := range r.Charges {
		total += charge.UnitPriceCents
	}

	r.SubtotalCents = subtotal
	r.TotalCents = total
}
