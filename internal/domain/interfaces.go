package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VerificationGateway is the trusted collaborator that finalises resolution.
// Verify must return a non-nil error when the proof is invalid or the outcome
// mismatched; a nil return finalises the claimed outcome. The engine performs
// no validation of proof contents itself.
type VerificationGateway interface {
	Verify(ctx context.Context, gateway common.Address, proposalID uint64, outcome Outcome, proof []byte) error
}

// Venue is the capability surface the engine consumes from the external AMM.
// Pool keys are the claim-instance identifiers from the registry. Trading
// itself happens entirely inside the venue; the engine only seeds pools and
// reads ticks.
type Venue interface {
	InitializePool(ctx context.Context, key common.Hash, claimReserve, dollarReserve uint64) error
	CurrentTick(ctx context.Context, key common.Hash) (int64, error)
}

// EventSink receives the engine's change notifications after an operation
// commits. Sink failures must not undo the committed operation; callers log
// and move on.
type EventSink interface {
	Record(ctx context.Context, ev Event) error
}

// EventStore persists the append-only engine event log.
type EventStore interface {
	Append(ctx context.Context, ev Event) error
	ListByMarket(ctx context.Context, marketID uint64, limit int) ([]Event, error)
}

// MarketStore persists the market projection maintained from events.
type MarketStore interface {
	Upsert(ctx context.Context, m Market, accepted *uint64) error
	GetByID(ctx context.Context, id uint64) (Market, error)
	ListByStatus(ctx context.Context, status MarketStatus, limit, offset int) ([]Market, error)
}

// ProposalStore persists the proposal projection maintained from events.
type ProposalStore interface {
	Upsert(ctx context.Context, p Proposal) error
	GetByID(ctx context.Context, id uint64) (Proposal, error)
	ListByMarket(ctx context.Context, marketID uint64) ([]Proposal, error)
}

// PriceCache caches the latest canonical price per venue pool for display.
type PriceCache interface {
	SetPrice(ctx context.Context, pool common.Hash, price uint64, tick int64, ts time.Time) error
	GetPrice(ctx context.Context, pool common.Hash) (uint64, int64, time.Time, error)
}

// StreamMessage is a single durable message read back from the signal bus.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus publishes engine events for live consumers (websocket hub,
// projector) and appends them to a durable stream for catch-up reads.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// SnapshotArchiver stores terminal-market ledger snapshots for audit.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snap MarketSnapshot) (string, error)
}
