package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cost(v int64) *int64 { return &v }

func TestWeightedAverageTruncates(t *testing.T) {
	movements := []Movement{
		{Kind: MovementKindReceive, Quantity: 10, UnitCost: cost(100)},
		{Kind: MovementKindReceive, Quantity: 5, UnitCost: cost(160)},
	}
	avg, ok := WeightedAverage(movements)
	require.True(t, ok)
	require.Equal(t, int64(120), avg)

	// 3 @ 100 -> 100.33 truncates to 100
	movements = []Movement{
		{Kind: MovementKindReceive, Quantity: 2, UnitCost: cost(100)},
		{Kind: MovementKindReceive, Quantity: 1, UnitCost: cost(101)},
	}
	avg, ok = WeightedAverage(movements)
	require.True(t, ok)
	require.Equal(t, int64(100), avg)
}

func TestWeightedAverageIgnoresIssues(t *testing.T) {
	movements := []Movement{
		{Kind: MovementKindReceive, Quantity: 10, UnitCost: cost(100)},
		{Kind: MovementKindIssue, Quantity: 8, UnitCost: cost(500)},
	}
	avg, ok := WeightedAverage(movements)
	require.True(t, ok)
	require.Equal(t, int64(100), avg)
}

func TestWeightedAverageSkipsUncostedAndNegative(t *testing.T) {
	movements := []Movement{
		{Kind: MovementKindReceive, Quantity: 10, UnitCost: nil},
		{Kind: MovementKindAdjust, Quantity: -5, UnitCost: cost(100)},
	}
	_, ok := WeightedAverage(movements)
	require.False(t, ok)

	movements = append(movements, Movement{Kind: MovementKindAdjust, Quantity: 4, UnitCost: cost(200)})
	avg, ok := WeightedAverage(movements)
	require.True(t, ok)
	require.Equal(t, int64(200), avg)
}

func TestWeightedAverageEmpty(t *testing.T) {
	avg, ok := WeightedAverage(nil)
	require.False(t, ok)
	require.Zero(t, avg)
}
