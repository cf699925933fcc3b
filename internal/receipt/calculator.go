package receipt

import (
	"fmt"
	"time"

	"github.com/malnajdi/fatoora/internal/money"
)

// Breakdown holds the per-user financial derivation of one receipt.
// All three maps are keyed by user ID. Users referenced by splits or
// payments but absent from the participant list are tolerated: they get
// a liability (or net credit) here but no settle summary entry.
type Breakdown struct {
	Liability map[int64]int64
	Paid      map[int64]int64
	Net       map[int64]int64
}

// ComputeBreakdown derives liability, payments and net position for every
// user on the receipt. Pure: it never touches the store, so both the
// update path (settle summary refresh) and the finalize path (ledger
// build) call it.
func ComputeBreakdown(r *Receipt) (*Breakdown, error) {
	liability := make(map[int64]int64)
	paid := make(map[int64]int64)

	for _, p := range r.Participants {
		liability[p.UserID] = 0
		paid[p.UserID] = 0
	}

	// Items: allocate each item subtotal across its splits by share
	// quantity. Unassigned items (no splits) contribute to nobody.
	for _, item := range r.Items {
		if len(item.Splits) == 0 {
			continue
		}

		itemSubtotal := money.IntegerScale(item.UnitPriceCents, item.Quantity)
		weights := make([]float64, len(item.Splits))
		for i, split := range item.Splits {
			weights[i] = split.ShareQuantity
		}

		parts, err := money.Allocate(itemSubtotal, weights)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate item %q: %w", item.Name, err)
		}
		for i, split := range item.Splits {
			liability[split.UserID] += parts[i]
		}
	}

	// Charges: explicit weights scale the charge amount per user with the
	// final user absorbing the rounding remainder; empty splits divide
	// equally across participants in participant order.
	for _, charge := range r.Charges {
		if len(charge.Splits) > 0 {
			var assigned int64
			for i, split := range charge.Splits {
				var share int64
				if i == len(charge.Splits)-1 {
					share = charge.UnitPriceCents - assigned
				} else {
					share = money.IntegerScale(charge.UnitPriceCents, split.ShareQuantity)
					assigned += share
				}
				liability[split.UserID] += share
			}
			continue
		}

		if len(r.Participants) == 0 {
			continue
		}
		weights := make([]float64, len(r.Participants))
		for i := range weights {
			weights[i] = 1
		}
		parts, err := money.Allocate(charge.UnitPriceCents, weights)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate charge %q: %w", charge.Name, err)
		}
		for i, p := range r.Participants {
			liability[p.UserID] += parts[i]
		}
	}

	for _, payment := range r.Payments {
		paid[payment.UserID] += payment.AmountPaidCents
	}

	net := make(map[int64]int64, len(liability))
	for userID := range liability {
		net[userID] = liability[userID] - paid[userID]
	}
	for userID, amount := range paid {
		if _, ok := net[userID]; !ok {
			net[userID] = -amount
		}
	}

	return &Breakdown{Liability: liability, Paid: paid, Net: net}, nil
}

// BuildSettleSummary projects the breakdown into one entry per
// participant, in participant order, with no settlement progress applied.
func BuildSettleSummary(r *Receipt, b *Breakdown) []SettleEntry {
	summary := make([]SettleEntry, 0, len(r.Participants))
	for _, p := range r.Participants {
		net := b.Net[p.UserID]

		entry := SettleEntry{
			UserID:    p.UserID,
			PaidCents: b.Paid[p.UserID],
			NetCents:  net,
			IsSettled: net == 0,
		}
		switch {
		case net < 0:
			entry.Status = SummaryStatusCreditor
		case net == 0:
			entry.Status = SummaryStatusSettled
		default:
			entry.AmountCents = net
			entry.Status = SummaryStatusPending
		}

		summary = append(summary, entry)
	}
	return summary
}

// OverlaySettlement applies per-debtor settled amounts from the ledger to
// a freshly built summary. Debtor entries become partially_settled or
// settled as progress covers their amount; creditor and zero entries are
// untouched.
func OverlaySettlement(summary []SettleEntry, settledByDebtor map[int64]int64, now time.Time) []SettleEntry {
	out := make([]SettleEntry, len(summary))
	copy(out, summary)

	for i := range out {
		entry := &out[i]
		if entry.NetCents <= 0 {
			continue
		}

		settled := settledByDebtor[entry.UserID]
		if settled > entry.AmountCents {
			settled = entry.AmountCents
		}
		entry.SettledAmountCents = settled

		switch {
		case settled == entry.AmountCents && settled > 0:
			entry.Status = SummaryStatusSettled
			entry.IsSettled = true
			settledAt := now
			entry.SettledAt = &settledAt
		case settled > 0:
			entry.Status = SummaryStatusPartiallySettled
		default:
			entry.Status = SummaryStatusPending
		}
	}
	return out
}
