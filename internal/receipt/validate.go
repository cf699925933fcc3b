package receipt

import (
	"fmt"
	"math"
)

// splitTolerance bounds float error when comparing split sums against the
// item quantity (or 1.0 for charge weights).
const splitTolerance = 1e-4

// ValidationError describes a structural problem in a receipt payload
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateItems checks item prices, quantities and the split-sum rule:
// non-empty splits must have positive shares summing to the quantity.
func ValidateItems(items []Item) error {
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)

		if item.UnitPriceCents < 0 {
			return &ValidationError{field, fmt.Sprintf("item %q has negative price %d", item.Name, item.UnitPriceCents)}
		}
		if item.Quantity <= 0 {
			return &ValidationError{field, fmt.Sprintf("item %q has non-positive quantity %g", item.Name, item.Quantity)}
		}

		var splitSum float64
		for _, split := range item.Splits {
			if split.ShareQuantity <= 0 {
				return &ValidationError{field, fmt.Sprintf("item %q has non-positive split share %g", item.Name, split.ShareQuantity)}
			}
			splitSum += split.ShareQuantity
		}

		if len(item.Splits) > 0 && math.Abs(splitSum-item.Quantity) > splitTolerance {
			return &ValidationError{field, fmt.Sprintf("item %q split sum %g does not equal quantity %g", item.Name, splitSum, item.Quantity)}
		}
	}
	return nil
}

// ValidateCharges checks charge prices and weight rules: non-empty splits
// must have positive weights summing to 1.0.
func ValidateCharges(charges []Charge) error {
	for i, charge := range charges {
		field := fmt.Sprintf("charges[%d]", i)

		if charge.UnitPriceCents < 0 {
			return &ValidationError{field, fmt.Sprintf("charge %q has negative price %d", charge.Name, charge.UnitPriceCents)}
		}

		var weightSum float64
		for _, split := range charge.Splits {
			if split.ShareQuantity <= 0 {
				return &ValidationError{field, fmt.Sprintf("charge %q has non-positive split weight %g", charge.Name, split.ShareQuantity)}
			}
			weightSum += split.ShareQuantity
		}

		if len(charge.Splits) > 0 && math.Abs(weightSum-1.0) > splitTolerance {
			return &ValidationError{field, fmt.Sprintf("charge %q weights sum to %g, expected 1.0", charge.Name, weightSum)}
		}
	}
	return nil
}

// ValidatePayments rejects negative payment amounts. Whether payments
// cover the total is only enforced at finalize.
func ValidatePayments(payments []Payment) error {
	for i, payment := range payments {
		if payment.AmountPaidCents < 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("payments[%d]", i),
				Message: fmt.Sprintf("payment has negative amount %d", payment.AmountPaidCents),
			}
		}
	}
	return nil
}
