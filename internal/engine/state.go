package engine

import (
	"sync"

	"github.com/useQlick/qlickd/internal/domain"
)

// State is the explicit mutable store owned by the lifecycle engine: market
// and proposal records, the per-market graduation trackers, and the accepted
// proposal records. No other component writes it. Tests construct an
// isolated instance per case.
type State struct {
	mu            sync.RWMutex
	markets       map[uint64]*domain.Market
	proposals     map[uint64]*domain.Proposal
	trackers      map[uint64]*domain.PriceRecord
	accepted      map[uint64]uint64
	firstProposal map[uint64]uint64
	nextMarket    uint64
	nextProposal  uint64
}

// NewState creates an empty store. IDs are assigned monotonically from 1.
func NewState() *State {
	return &State{
		markets:       make(map[uint64]*domain.Market),
		proposals:     make(map[uint64]*domain.Proposal),
		trackers:      make(map[uint64]*domain.PriceRecord),
		accepted:      make(map[uint64]uint64),
		firstProposal: make(map[uint64]uint64),
	}
}

// allocMarketID reserves the next market id. Caller must hold mu.
func (s *State) allocMarketID() uint64 {
	s.nextMarket++
	return s.nextMarket
}

// allocProposalID reserves the next global proposal id. Caller must hold mu.
func (s *State) allocProposalID() uint64 {
	s.nextProposal++
	return s.nextProposal
}
