package venue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/venue"
)

var (
	venueAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	poolKey   = common.HexToHash("0x0101010101010101010101010101010101010101010101010101010101010101")
)

type report struct {
	caller  common.Address
	pool    common.Hash
	avgTick int64
}

// recorderStub stands in for the lifecycle engine behind the observation
// hook.
type recorderStub struct {
	rejectWith error
	reports    []report
}

func (r *recorderStub) ValidateSwap(pool common.Hash) error {
	return r.rejectWith
}

func (r *recorderStub) RecordPostSwap(ctx context.Context, caller common.Address, pool common.Hash, avgTick int64) error {
	r.reports = append(r.reports, report{caller, pool, avgTick})
	return nil
}

func newSim(t *testing.T, rec *recorderStub) *venue.Simulator {
	t.Helper()
	sim := venue.NewSimulator(venueAddr)
	sim.Attach(venue.NewObserver(venueAddr, rec))
	return sim
}

func TestInitializePool(t *testing.T) {
	sim := newSim(t, &recorderStub{})
	ctx := context.Background()

	require.NoError(t, sim.InitializePool(ctx, poolKey, 1000, 500))
	require.ErrorIs(t, sim.InitializePool(ctx, poolKey, 1, 1), domain.ErrAlreadyRegistered)

	tick, err := sim.CurrentTick(ctx, poolKey)
	require.NoError(t, err)
	require.Equal(t, venue.PriceToTick(0.5), tick)

	_, err = sim.CurrentTick(ctx, common.HexToHash("0x02"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuyMovesTickUp(t *testing.T) {
	rec := &recorderStub{}
	sim := newSim(t, rec)
	ctx := context.Background()

	require.NoError(t, sim.InitializePool(ctx, poolKey, 1000, 1000))
	before, err := sim.CurrentTick(ctx, poolKey)
	require.NoError(t, err)

	out, err := sim.Buy(ctx, poolKey, 100)
	require.NoError(t, err)
	require.NotZero(t, out)
	require.Less(t, out, uint64(100)) // constant product pays out less than par

	after, err := sim.CurrentTick(ctx, poolKey)
	require.NoError(t, err)
	require.Greater(t, after, before)

	// The post-trade tick was reported under the venue address.
	require.Len(t, rec.reports, 1)
	require.Equal(t, venueAddr, rec.reports[0].caller)
	require.Equal(t, poolKey, rec.reports[0].pool)
	require.Equal(t, after, rec.reports[0].avgTick)
}

func TestSellMovesTickDown(t *testing.T) {
	rec := &recorderStub{}
	sim := newSim(t, rec)
	ctx := context.Background()

	require.NoError(t, sim.InitializePool(ctx, poolKey, 1000, 1000))
	before, err := sim.CurrentTick(ctx, poolKey)
	require.NoError(t, err)

	_, err = sim.Sell(ctx, poolKey, 100)
	require.NoError(t, err)

	after, err := sim.CurrentTick(ctx, poolKey)
	require.NoError(t, err)
	require.Less(t, after, before)
}

func TestSwapRejectedByValidation(t *testing.T) {
	rec := &recorderStub{rejectWith: errors.New("market closed")}
	sim := newSim(t, rec)
	ctx := context.Background()

	require.NoError(t, sim.InitializePool(ctx, poolKey, 1000, 1000))

	_, err := sim.Buy(ctx, poolKey, 100)
	require.Error(t, err)
	require.Empty(t, rec.reports)

	// Reserves are untouched.
	tick, err := sim.CurrentTick(ctx, poolKey)
	require.NoError(t, err)
	require.Equal(t, venue.PriceToTick(1), tick)
}

func TestSwapInputValidation(t *testing.T) {
	sim := newSim(t, &recorderStub{})
	ctx := context.Background()

	_, err := sim.Buy(ctx, poolKey, 0)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = sim.Buy(ctx, poolKey, 100)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestObserverAveragesWindow(t *testing.T) {
	rec := &recorderStub{}
	obs := venue.NewObserver(venueAddr, rec)
	ctx := context.Background()

	obs.OnTick(poolKey, 100)
	obs.OnTick(poolKey, 200)
	obs.OnTick(poolKey, 301)

	require.NoError(t, obs.AfterSwap(ctx, poolKey))
	require.Len(t, rec.reports, 1)
	require.Equal(t, int64(200), rec.reports[0].avgTick) // truncating average

	// The window resets after reporting.
	require.NoError(t, obs.AfterSwap(ctx, poolKey))
	require.Len(t, rec.reports, 1)

	obs.OnTick(poolKey, -5)
	require.NoError(t, obs.AfterSwap(ctx, poolKey))
	require.Len(t, rec.reports, 2)
	require.Equal(t, int64(-5), rec.reports[1].avgTick)
}
