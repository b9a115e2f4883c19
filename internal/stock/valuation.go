package stock

// WeightedAverage computes the weighted-average unit cost from movement
// history. Only RECEIVE and ADJUST movements with a positive quantity and a
// known unit cost qualify; ISSUE movements never feed the average, so
// consumption cannot shift its own cost basis. The division truncates
// toward zero because costs live in integer minor units.
//
// The second return value reports whether any movement qualified. The same
// history always yields the same result, so callers may memoize freely.
func WeightedAverage(movements []Movement) (int64, bool) {
	var totalQty, totalCost int64
	for _, m := range movements {
		if m.Kind != MovementKindReceive && m.Kind != MovementKindAdjust {
			continue
		}
		if m.Quantity <= 0 || m.UnitCost == nil {
			continue
		}
		totalQty += m.Quantity
		totalCost += m.Quantity * *m.UnitCost
	}
	if totalQty == 0 {
		return 0, false
	}
	return totalCost / totalQty, true
}
