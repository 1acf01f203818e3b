// Package projector maintains the postgres read projections from the engine
// event feed and archives terminal-market snapshots.
package projector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/useQlick/qlickd/internal/domain"
)

// SnapshotSource provides full ledger snapshots for archival. The engine
// satisfies this.
type SnapshotSource interface {
	Snapshot(marketID uint64) (domain.MarketSnapshot, error)
}

// Projector consumes the engine event feed and keeps the market and proposal
// projections current. When a market reaches a terminal state it also
// archives the full ledger snapshot.
type Projector struct {
	bus       domain.SignalBus
	markets   domain.MarketStore
	proposals domain.ProposalStore
	snapshots SnapshotSource
	archiver  domain.SnapshotArchiver
	logger    *slog.Logger
}

// New creates a Projector. archiver may be nil, in which case terminal
// snapshots are not archived.
func New(
	bus domain.SignalBus,
	markets domain.MarketStore,
	proposals domain.ProposalStore,
	snapshots SnapshotSource,
	archiver domain.SnapshotArchiver,
	logger *slog.Logger,
) *Projector {
	return &Projector{
		bus:       bus,
		markets:   markets,
		proposals: proposals,
		snapshots: snapshots,
		archiver:  archiver,
		logger:    logger,
	}
}

// Run subscribes to the event feed and applies events until the context is
// cancelled. Individual event failures are logged and skipped so one bad
// envelope cannot wedge the projection.
func (p *Projector) Run(ctx context.Context) error {
	msgs, err := p.bus.Subscribe(ctx, "ch:*")
	if err != nil {
		return fmt.Errorf("projector: subscribe: %w", err)
	}

	p.logger.Info("projector started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("projector stopped", slog.String("reason", ctx.Err().Error()))
			return nil
		case payload, ok := <-msgs:
			if !ok {
				p.logger.Info("projector feed closed")
				return nil
			}
			if err := p.apply(ctx, payload); err != nil {
				p.logger.Warn("projector: apply event failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// envelope mirrors domain.Event with the payload left raw so it can be
// decoded per kind.
type envelope struct {
	Kind     domain.EventKind `json:"kind"`
	MarketID uint64           `json:"market_id"`
	At       time.Time        `json:"at"`
	Payload  json.RawMessage  `json:"payload"`
}

// apply decodes one event envelope and updates the projections.
func (p *Projector) apply(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Kind {
	case domain.EventMarketCreated:
		var pl domain.MarketCreatedPayload
		if err := json.Unmarshal(env.Payload, &pl); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		return p.markets.Upsert(ctx, pl.Market, nil)

	case domain.EventDepositRecorded:
		var pl domain.DepositRecordedPayload
		if err := json.Unmarshal(env.Payload, &pl); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		return p.markets.Upsert(ctx, pl.Market, nil)

	case domain.EventProposalCreated:
		var pl domain.ProposalCreatedPayload
		if err := json.Unmarshal(env.Payload, &pl); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		if err := p.markets.Upsert(ctx, pl.Market, nil); err != nil {
			return err
		}
		return p.proposals.Upsert(ctx, pl.Proposal)

	case domain.EventMarketGraduated:
		var pl domain.MarketGraduatedPayload
		if err := json.Unmarshal(env.Payload, &pl); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		accepted := pl.AcceptedProposal
		return p.markets.Upsert(ctx, pl.Market, &accepted)

	case domain.EventMarketResolved:
		var pl domain.MarketResolvedPayload
		if err := json.Unmarshal(env.Payload, &pl); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		accepted := pl.AcceptedProposal
		if err := p.markets.Upsert(ctx, pl.Market, &accepted); err != nil {
			return err
		}
		p.archive(ctx, pl.Market.ID)
		return nil

	case domain.EventClaimsMinted, domain.EventClaimsRedeemed,
		domain.EventPriceUpdated, domain.EventRewardsRedeemed:
		// Balance and price movements live in the engine ledgers and the
		// price cache; no projection row to update.
		return nil

	default:
		p.logger.Debug("projector: unknown event kind", slog.String("kind", string(env.Kind)))
		return nil
	}
}

// archive uploads the terminal snapshot for a market. Archival is best
// effort; a failure is logged but never blocks the projection.
func (p *Projector) archive(ctx context.Context, marketID uint64) {
	if p.archiver == nil || p.snapshots == nil {
		return
	}

	snap, err := p.snapshots.Snapshot(marketID)
	if err != nil {
		p.logger.Warn("projector: snapshot for archive failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}

	key, err := p.archiver.ArchiveSnapshot(ctx, snap)
	if err != nil {
		p.logger.Warn("projector: archive snapshot failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.Info("archived market snapshot",
		slog.Uint64("market_id", marketID),
		slog.String("key", key),
	)
}
