package venue

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// pool is one constant-product pair of a claim instance against the
// synthetic dollar.
type pool struct {
	claimReserve  uint64
	dollarReserve uint64
}

// tick returns the pool's current tick from its reserve ratio (dollars per
// claim).
func (p *pool) tick() int64 {
	if p.claimReserve == 0 {
		return MaxTick
	}
	return PriceToTick(float64(p.dollarReserve) / float64(p.claimReserve))
}

// Simulator is an in-process constant-product AMM implementing the venue
// capability interface. It stands in for the external venue when the daemon
// runs without one: pools are seeded by the engine at proposal creation and
// every swap runs through the observation hook exactly like an external
// venue's callbacks would.
type Simulator struct {
	addr common.Address
	obs  *Observer

	mu    sync.Mutex
	pools map[common.Hash]*pool
}

// NewSimulator creates a simulator trading under the given venue address.
// Attach connects the observation hook; it must be called before any swap.
func NewSimulator(addr common.Address) *Simulator {
	return &Simulator{
		addr:  addr,
		pools: make(map[common.Hash]*pool),
	}
}

// Addr returns the address the simulator's callbacks authenticate as.
func (s *Simulator) Addr() common.Address { return s.addr }

// Attach wires the observation hook used for pre/post-trade callbacks.
func (s *Simulator) Attach(obs *Observer) { s.obs = obs }

// InitializePool seeds a new pool for the given key. Reinitialising an
// existing pool fails.
func (s *Simulator) InitializePool(ctx context.Context, key common.Hash, claimReserve, dollarReserve uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[key]; ok {
		return fmt.Errorf("venue: pool %s: %w", key, domain.ErrAlreadyRegistered)
	}
	s.pools[key] = &pool{claimReserve: claimReserve, dollarReserve: dollarReserve}
	return nil
}

// CurrentTick returns the pool's current tick for spot-price display.
func (s *Simulator) CurrentTick(ctx context.Context, key common.Hash) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[key]
	if !ok {
		return 0, fmt.Errorf("venue: pool %s: %w", key, domain.ErrNotFound)
	}
	return p.tick(), nil
}

// Buy swaps dollarIn synthetic dollars into the pool for claims and returns
// the claim amount out. The trade runs through the observation hook: the
// engine's validation gates it, and the post-trade tick is reported back.
func (s *Simulator) Buy(ctx context.Context, key common.Hash, dollarIn uint64) (uint64, error) {
	return s.swap(ctx, key, dollarIn, true)
}

// Sell swaps claimIn claims into the pool for synthetic dollars and returns
// the dollar amount out.
func (s *Simulator) Sell(ctx context.Context, key common.Hash, claimIn uint64) (uint64, error) {
	return s.swap(ctx, key, claimIn, false)
}

func (s *Simulator) swap(ctx context.Context, key common.Hash, amountIn uint64, buyClaims bool) (uint64, error) {
	if amountIn == 0 {
		return 0, fmt.Errorf("venue: zero swap amount: %w", domain.ErrInvalidInput)
	}
	if err := s.obs.BeforeSwap(key); err != nil {
		return 0, fmt.Errorf("venue: swap rejected: %w", err)
	}

	s.mu.Lock()
	p, ok := s.pools[key]
	if !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("venue: pool %s: %w", key, domain.ErrNotFound)
	}

	// Constant product x*y=k, no fee.
	var amountOut uint64
	if buyClaims {
		k := float64(p.claimReserve) * float64(p.dollarReserve)
		newDollar := p.dollarReserve + amountIn
		newClaim := uint64(k / float64(newDollar))
		amountOut = p.claimReserve - newClaim
		p.dollarReserve = newDollar
		p.claimReserve = newClaim
	} else {
		k := float64(p.claimReserve) * float64(p.dollarReserve)
		newClaim := p.claimReserve + amountIn
		newDollar := uint64(k / float64(newClaim))
		amountOut = p.dollarReserve - newDollar
		p.claimReserve = newClaim
		p.dollarReserve = newDollar
	}
	tick := p.tick()
	s.mu.Unlock()

	s.obs.OnTick(key, tick)
	if err := s.obs.AfterSwap(ctx, key); err != nil {
		return 0, fmt.Errorf("venue: post-swap callback: %w", err)
	}
	return amountOut, nil
}

// Compile-time interface check.
var _ domain.Venue = (*Simulator)(nil)
