package money

import (
	"errors"
	"math"
	"sort"
)

// All monetary arithmetic in the service goes through this package.
// Amounts are int64 cents; division is never done anywhere else, so
// conservation (sum of parts == total) holds by construction.

var (
	ErrNegativeTotal = errors.New("total cannot be negative")
	ErrNoWeights     = errors.New("at least one positive weight is required")
	ErrBadWeight     = errors.New("weights cannot be negative")
)

// Allocate splits total cents across weights using largest-remainder
// rounding: each part gets the floor of its exact share, then leftover
// cents go one-by-one to the largest fractional remainders, ties broken
// by ascending index. The returned parts always sum to total.
func Allocate(total int64, weights []float64) ([]int64, error) {
	if total < 0 {
		return nil, ErrNegativeTotal
	}

	var weightSum float64
	for _, w := range weights {
		if w < 0 {
			return nil, ErrBadWeight
		}
		weightSum += w
	}
	if len(weights) == 0 || weightSum <= 0 {
		return nil, ErrNoWeights
	}

	parts := make([]int64, len(weights))
	remainders := make([]float64, len(weights))

	var allocated int64
	for i, w := range weights {
		exact := float64(total) * w / weightSum
		floor := math.Floor(exact)
		parts[i] = int64(floor)
		remainders[i] = exact - floor
		allocated += parts[i]
	}

	leftover := total - allocated

	// Indices ordered by descending remainder, ascending index on ties.
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})

	for k := int64(0); k < leftover; k++ {
		parts[order[k%int64(len(order))]]++
	}

	return parts, nil
}

// IntegerScale computes floor(unitPriceCents * quantity) in cents.
// Products that land within a tiny epsilon of an integer are snapped to
// it first, so 2199.9999999998 scales to 2200 rather than 2199.
func IntegerScale(unitPriceCents int64, quantity float64) int64 {
	product := float64(unitPriceCents) * quantity
	nearest := math.Round(product)
	if math.Abs(product-nearest) < 1e-6 {
		return int64(nearest)
	}
	return int64(math.Floor(product))
}
