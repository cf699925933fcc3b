package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_EqualSplit(t *testing.T) {
	parts, err := Allocate(100, []float64{1, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{25, 25, 25, 25}, parts)
}

func TestAllocate_RemainderGoesToLargestFractions(t *testing.T) {
	// 100 / 3 = 33.33..., one leftover cent goes to the first index
	// because all remainders tie.
	parts, err := Allocate(100, []float64{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{34, 33, 33}, parts)
}

func TestAllocate_WeightedSplit(t *testing.T) {
	parts, err := Allocate(1000, []float64{0.5, 0.3, 0.2})
	require.NoError(t, err)
	assert.Equal(t, []int64{500, 300, 200}, parts)
}

func TestAllocate_Conservation(t *testing.T) {
	cases := []struct {
		name    string
		total   int64
		weights []float64
	}{
		{"three way odd total", 1001, []float64{1, 1, 1}},
		{"seven way", 12345, []float64{1, 1, 1, 1, 1, 1, 1}},
		{"uneven weights", 9999, []float64{0.17, 2.5, 1.0, 0.33}},
		{"fractional shares", 2200, []float64{0.5, 1.5}},
		{"single weight", 777, []float64{3.2}},
		{"zero total", 0, []float64{1, 2, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts, err := Allocate(tc.total, tc.weights)
			require.NoError(t, err)
			require.Len(t, parts, len(tc.weights))

			var sum int64
			for _, p := range parts {
				assert.GreaterOrEqual(t, p, int64(0))
				sum += p
			}
			assert.Equal(t, tc.total, sum, "parts must sum to the total")
		})
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	first, err := Allocate(997, []float64{1.1, 2.2, 3.3, 0.4})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		again, err := Allocate(997, []float64{1.1, 2.2, 3.3, 0.4})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAllocate_ZeroWeightGetsNothing(t *testing.T) {
	parts, err := Allocate(100, []float64{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), parts[1])
	assert.Equal(t, int64(100), parts[0]+parts[2])
}

func TestAllocate_Errors(t *testing.T) {
	_, err := Allocate(-1, []float64{1})
	assert.ErrorIs(t, err, ErrNegativeTotal)

	_, err = Allocate(100, nil)
	assert.ErrorIs(t, err, ErrNoWeights)

	_, err = Allocate(100, []float64{0, 0})
	assert.ErrorIs(t, err, ErrNoWeights)

	_, err = Allocate(100, []float64{1, -1})
	assert.ErrorIs(t, err, ErrBadWeight)
}

func TestIntegerScale(t *testing.T) {
	assert.Equal(t, int64(2200), IntegerScale(1100, 2))
	assert.Equal(t, int64(550), IntegerScale(1100, 0.5))
	assert.Equal(t, int64(366), IntegerScale(1100, 1.0/3.0))

	// Float products a hair under an integer snap rather than truncate.
	assert.Equal(t, int64(2200), IntegerScale(1000, 2.2))

	assert.Equal(t, int64(0), IntegerScale(0, 5))
}
