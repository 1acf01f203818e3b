// Package engine implements the market/proposal lifecycle state machine and
// every mutating entry point of the ledger: market creation, deposits,
// proposal creation, claim minting and redemption, graduation, resolution,
// and reward redemption. The engine owns all cross-cutting conservation
// invariants; the ledgers, registry, venue and gateway are collaborators it
// drives.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/ledger"
	"github.com/useQlick/qlickd/internal/registry"
)

// Config bundles the collaborators and identities the engine needs.
type Config struct {
	// Self is the engine's custody address: it holds deposited reference
	// asset and is the mint/burn authority of the claim and synthetic
	// ledgers.
	Self common.Address

	// VenueAddr is the address venue callbacks authenticate as and the
	// account seed liquidity is transferred to.
	VenueAddr common.Address

	Bank    *ledger.Bank
	Venue   domain.Venue
	Gateway domain.VerificationGateway

	Sink   domain.EventSink  // optional
	Prices domain.PriceCache // optional
	State  *State            // optional; a fresh store when nil
	Now    func() time.Time  // optional; time.Now when nil
	Logger *slog.Logger      // optional; slog.Default when nil
}

// Engine is the lifecycle engine. All value-moving entry points are guarded
// by a single non-reentrancy flag: a flag set on entry, cleared on exit and
// checked at entry, so a collaborator callback cannot re-enter any mutating
// method before the first call's state updates are finalised.
type Engine struct {
	self      common.Address
	venueAddr common.Address

	bank     *ledger.Bank
	dollars  *ledger.SyntheticLedger
	claims   *ledger.ClaimLedger
	deposits *ledger.DepositLedger
	registry *registry.Registry

	venue   domain.Venue
	gateway domain.VerificationGateway
	sink    domain.EventSink
	prices  domain.PriceCache

	state  *State
	now    func() time.Time
	logger *slog.Logger

	busy atomic.Bool
}

// New creates an engine from the given configuration.
func New(cfg Config) *Engine {
	st := cfg.State
	if st == nil {
		st = NewState()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		self:      cfg.Self,
		venueAddr: cfg.VenueAddr,
		bank:      cfg.Bank,
		dollars:   ledger.NewSyntheticLedger(cfg.Self),
		claims:    ledger.NewClaimLedger(cfg.Self),
		deposits:  ledger.NewDepositLedger(),
		registry:  registry.New(),
		venue:     cfg.Venue,
		gateway:   cfg.Gateway,
		sink:      cfg.Sink,
		prices:    cfg.Prices,
		state:     st,
		now:       now,
		logger:    logger.With(slog.String("component", "engine")),
	}
}

// Self returns the engine's custody address.
func (e *Engine) Self() common.Address { return e.self }

// enter acquires the non-reentrancy guard.
func (e *Engine) enter(op string) error {
	if !e.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("engine: %s: %w", op, domain.ErrReentrantCall)
	}
	return nil
}

// exit releases the non-reentrancy guard.
func (e *Engine) exit() {
	e.busy.Store(false)
}

// emit records a committed operation's change notification. Sink failures
// never undo the operation; they are logged and dropped.
func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Record(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "engine: event sink failed",
			slog.String("kind", string(ev.Kind)),
			slog.Uint64("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// ---------------------------------------------------------------------------
// Read accessors. These are pure reads over engine-owned state; collaborators
// and the query API use them instead of touching the stores directly.
// ---------------------------------------------------------------------------

// Market returns a copy of the market record.
func (e *Engine) Market(id uint64) (domain.Market, error) {
	e.state.mu.RLock()
	defer e.state.mu.RUnlock()

	m, ok := e.state.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("engine: market %d: %w", id, domain.ErrNotFound)
	}
	return *m, nil
}

// Proposal returns a copy of the proposal record.
func (e *Engine) Proposal(id uint64) (domain.Proposal, error) {
	e.state.mu.RLock()
	defer e.state.mu.RUnlock()

	p, ok := e.state.proposals[id]
	if !ok {
		return domain.Proposal{}, fmt.Errorf("engine: proposal %d: %w", id, domain.ErrNotFound)
	}
	return *p, nil
}

// AcceptedProposal returns the winning proposal id frozen at graduation.
func (e *Engine) AcceptedProposal(marketID uint64) (uint64, error) {
	e.state.mu.RLock()
	defer e.state.mu.RUnlock()

	if _, ok := e.state.markets[marketID]; !ok {
		return 0, fmt.Errorf("engine: market %d: %w", marketID, domain.ErrNotFound)
	}
	id, ok := e.state.accepted[marketID]
	if !ok {
		return 0, fmt.Errorf("engine: market %d not graduated: %w", marketID, domain.ErrStateConflict)
	}
	return id, nil
}

// Tracker returns a copy of the market's graduation tracker, or nil when no
// price has been observed yet.
func (e *Engine) Tracker(marketID uint64) *domain.PriceRecord {
	e.state.mu.RLock()
	defer e.state.mu.RUnlock()

	t, ok := e.state.trackers[marketID]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// DepositBalance returns a participant's unallocated deposit in a market.
func (e *Engine) DepositBalance(marketID uint64, holder common.Address) uint64 {
	return e.deposits.Balance(marketID, holder)
}

// ClaimBalance returns a holder's balance of one claim side of a proposal.
func (e *Engine) ClaimBalance(proposalID uint64, side domain.Side, holder common.Address) uint64 {
	return e.claims.BalanceOf(proposalID, side, holder)
}

// DollarBalance returns a holder's synthetic-dollar balance for a market.
func (e *Engine) DollarBalance(marketID uint64, holder common.Address) uint64 {
	return e.dollars.BalanceOf(marketID, holder)
}

// Instances returns the claim-instance pair provisioned for a proposal.
func (e *Engine) Instances(proposalID uint64) (domain.InstancePair, error) {
	pair, ok := e.registry.Instances(proposalID)
	if !ok {
		return domain.InstancePair{}, fmt.Errorf("engine: proposal %d instances: %w", proposalID, domain.ErrNotFound)
	}
	return pair, nil
}

// PoolBinding resolves a venue pool key to its proposal and side.
func (e *Engine) PoolBinding(pool common.Hash) (domain.PoolBinding, error) {
	b, ok := e.registry.Lookup(pool)
	if !ok {
		return domain.PoolBinding{}, fmt.Errorf("engine: pool %s: %w", pool, domain.ErrNotFound)
	}
	return b, nil
}

// Snapshot assembles the full ledger state of a market, used by the snapshot
// archiver once the market resolves.
func (e *Engine) Snapshot(marketID uint64) (domain.MarketSnapshot, error) {
	e.state.mu.RLock()
	defer e.state.mu.RUnlock()

	m, ok := e.state.markets[marketID]
	if !ok {
		return domain.MarketSnapshot{}, fmt.Errorf("engine: market %d: %w", marketID, domain.ErrNotFound)
	}

	snap := domain.MarketSnapshot{
		Market:           *m,
		AcceptedProposal: e.state.accepted[marketID],
		Deposits:         e.deposits.BalancesForMarket(marketID),
		DollarSupply:     e.dollars.Supply(marketID),
	}
	if t, ok := e.state.trackers[marketID]; ok {
		cp := *t
		snap.Tracker = &cp
	}

	var ids []uint64
	for id, p := range e.state.proposals {
		if p.MarketID == marketID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		snap.Proposals = append(snap.Proposals, domain.ProposalSnapshot{
			Proposal: *e.state.proposals[id],
			Claims:   e.claims.BalancesForProposal(id),
		})
	}
	return snap, nil
}
