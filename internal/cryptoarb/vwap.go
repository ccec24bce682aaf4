package cryptoarb

import "math"

// VWAPWalk simulates filling a USDC-sized market order against one side of
// an order book. Returns the volume-weighted fill price and how much USDC
// actually filled; an empty book yields (+Inf, 0).
func VWAPWalk(levels []PriceLevel, usdc float64) (vwap, filled float64) {
	remaining := usdc
	cost := 0.0
	qty := 0.0

	for _, level := range levels {
		levelValue := level.Price * level.Volume
		if remaining <= levelValue {
			fillQty := remaining / level.Price
			cost += fillQty * level.Price
			qty += fillQty
			remaining = 0
			break
		}
		cost += levelValue
		qty += level.Volume
		remaining -= levelValue
	}

	if qty == 0 {
		return math.Inf(1), usdc - remaining
	}

	return cost / qty, usdc - remaining
}
