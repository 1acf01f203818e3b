// Package venue defines the capability surface the engine consumes from the
// external AMM: tick-to-price conversion, the pre/post-trade observation
// hook, and an in-process constant-product simulator used when no external
// venue is wired.
package venue

import "math"

const (
	// tickBase is the venue's price base: one tick is a 0.01% price step.
	tickBase = 1.0001

	// PriceScale is the fixed-point scale of the canonical price.
	PriceScale = 1_000_000_000

	// MinTick and MaxTick bound the convertible tick range so the scaled
	// price always fits in a uint64. Ticks outside the range are clamped,
	// which preserves monotonicity at the extremes.
	MinTick int64 = -221_818
	MaxTick int64 = 221_818
)

// TickToPrice converts a venue tick to the canonical fixed-point price:
// round(1.0001^tick * PriceScale), with the tick clamped to
// [MinTick, MaxTick]. The mapping is deterministic and monotonic in tick,
// independent of trade direction or size.
func TickToPrice(tick int64) uint64 {
	if tick < MinTick {
		tick = MinTick
	}
	if tick > MaxTick {
		tick = MaxTick
	}
	return uint64(math.Round(math.Pow(tickBase, float64(tick)) * PriceScale))
}

// PriceToTick returns the tick whose price is nearest to the given ratio of
// quote to base reserves. It is the inverse used by the simulator when
// reporting pool state.
func PriceToTick(ratio float64) int64 {
	if ratio <= 0 {
		return MinTick
	}
	tick := int64(math.Round(math.Log(ratio) / math.Log(tickBase)))
	if tick < MinTick {
		return MinTick
	}
	if tick > MaxTick {
		return MaxTick
	}
	return tick
}
