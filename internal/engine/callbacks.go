package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/venue"
)

// ValidateSwap is the venue's pre-trade check. It fails closed: an unknown
// pool key or an owning market that is no longer open rejects the trade. It
// is a pure read and gates every external trade, so it stays cheap and
// side-effect free.
func (e *Engine) ValidateSwap(pool common.Hash) error {
	binding, ok := e.registry.Lookup(pool)
	if !ok {
		return fmt.Errorf("engine: validate swap on pool %s: %w", pool, domain.ErrNotFound)
	}

	e.state.mu.RLock()
	defer e.state.mu.RUnlock()

	p, ok := e.state.proposals[binding.ProposalID]
	if !ok {
		return fmt.Errorf("engine: validate swap: proposal %d: %w", binding.ProposalID, domain.ErrNotFound)
	}
	m := e.state.markets[p.MarketID]
	if m.Status != domain.MarketStatusOpen {
		return fmt.Errorf("engine: validate swap: market %d in status %s: %w", m.ID, m.Status, domain.ErrStateConflict)
	}
	return nil
}

// RecordPostSwap is the venue's post-trade price report, carrying the
// average tick over the batch window. Only accept-side pools feed the
// graduation tracker; the accept price alone decides the winner. The tracker
// is replaced only by a strictly higher canonical price, and the first
// observation wins ties.
func (e *Engine) RecordPostSwap(ctx context.Context, caller common.Address, pool common.Hash, avgTick int64) error {
	if caller != e.venueAddr {
		return fmt.Errorf("engine: record post swap by %s: %w", caller, domain.ErrUnauthorized)
	}

	binding, ok := e.registry.Lookup(pool)
	if !ok {
		return fmt.Errorf("engine: record post swap on pool %s: %w", pool, domain.ErrNotFound)
	}

	price := venue.TickToPrice(avgTick)
	now := e.now()
	e.setCachedPrice(ctx, pool, price, avgTick)

	if binding.Side != domain.SideAccept {
		return nil
	}

	e.state.mu.Lock()
	p, ok := e.state.proposals[binding.ProposalID]
	if !ok {
		e.state.mu.Unlock()
		return fmt.Errorf("engine: record post swap: proposal %d: %w", binding.ProposalID, domain.ErrNotFound)
	}
	m := e.state.markets[p.MarketID]
	if m.Status != domain.MarketStatusOpen {
		// Graduation already froze the tracker; late reports are ignored.
		e.state.mu.Unlock()
		return nil
	}

	t, seen := e.state.trackers[m.ID]
	if seen && price <= t.MaxPrice {
		e.state.mu.Unlock()
		return nil
	}
	e.state.trackers[m.ID] = &domain.PriceRecord{
		ProposalID: binding.ProposalID,
		MaxPrice:   price,
		RawTick:    avgTick,
	}
	marketID := m.ID
	e.state.mu.Unlock()

	e.logger.DebugContext(ctx, "engine: tracker price updated",
		slog.Uint64("market_id", marketID),
		slog.Uint64("proposal_id", binding.ProposalID),
		slog.Uint64("price", price),
	)
	e.emit(ctx, domain.NewEvent(domain.EventPriceUpdated, marketID, now, domain.PriceUpdatedPayload{
		ProposalID: binding.ProposalID,
		Pool:       pool,
		Price:      price,
		RawTick:    avgTick,
	}))
	return nil
}

// setCachedPrice refreshes the display price cache. Cache failures are not
// fatal to the callback.
func (e *Engine) setCachedPrice(ctx context.Context, pool common.Hash, price uint64, tick int64) {
	if e.prices == nil {
		return
	}
	if err := e.prices.SetPrice(ctx, pool, price, tick, e.now()); err != nil {
		e.logger.WarnContext(ctx, "engine: price cache set failed",
			slog.String("pool", pool.Hex()),
			slog.String("error", err.Error()),
		)
	}
}
