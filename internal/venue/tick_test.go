package venue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/useQlick/qlickd/internal/venue"
)

func TestTickToPrice(t *testing.T) {
	// Tick zero is par.
	require.Equal(t, uint64(venue.PriceScale), venue.TickToPrice(0))

	// Monotonic in tick.
	require.Greater(t, venue.TickToPrice(1), venue.TickToPrice(0))
	require.Less(t, venue.TickToPrice(-1), venue.TickToPrice(0))
	require.Greater(t, venue.TickToPrice(10_000), venue.TickToPrice(9_999))

	// One tick is a 0.01% step.
	require.Equal(t, uint64(1_000_100_000), venue.TickToPrice(1))
}

func TestTickToPriceClamps(t *testing.T) {
	require.Equal(t, venue.TickToPrice(venue.MaxTick), venue.TickToPrice(venue.MaxTick+1))
	require.Equal(t, venue.TickToPrice(venue.MinTick), venue.TickToPrice(venue.MinTick-1))

	// The extremes stay representable and ordered.
	require.Greater(t, venue.TickToPrice(venue.MaxTick), venue.TickToPrice(0))
	require.Less(t, venue.TickToPrice(venue.MinTick), venue.TickToPrice(0))
	require.NotZero(t, venue.TickToPrice(venue.MaxTick))
}

func TestPriceToTickRoundTrip(t *testing.T) {
	for _, tick := range []int64{-10_000, -1, 0, 1, 42, 10_000} {
		ratio := float64(venue.TickToPrice(tick)) / float64(venue.PriceScale)
		require.Equal(t, tick, venue.PriceToTick(ratio), "tick %d", tick)
	}

	require.Equal(t, venue.MinTick, venue.PriceToTick(0))
	require.Equal(t, venue.MinTick, venue.PriceToTick(-1))
	require.Equal(t, venue.MaxTick, venue.PriceToTick(1e30))
}
