package projector_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/projector"
)

type busStub struct {
	ch chan []byte
}

func (b *busStub) Publish(ctx context.Context, channel string, payload []byte) error { return nil }

func (b *busStub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return b.ch, nil
}

func (b *busStub) StreamAppend(ctx context.Context, stream string, payload []byte) error { return nil }

func (b *busStub) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type marketUpsert struct {
	market   domain.Market
	accepted *uint64
}

type marketStoreStub struct {
	upserts []marketUpsert
}

func (s *marketStoreStub) Upsert(ctx context.Context, m domain.Market, accepted *uint64) error {
	s.upserts = append(s.upserts, marketUpsert{m, accepted})
	return nil
}

func (s *marketStoreStub) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (s *marketStoreStub) ListByStatus(ctx context.Context, status domain.MarketStatus, limit, offset int) ([]domain.Market, error) {
	return nil, nil
}

type proposalStoreStub struct {
	upserts []domain.Proposal
}

func (s *proposalStoreStub) Upsert(ctx context.Context, p domain.Proposal) error {
	s.upserts = append(s.upserts, p)
	return nil
}

func (s *proposalStoreStub) GetByID(ctx context.Context, id uint64) (domain.Proposal, error) {
	return domain.Proposal{}, domain.ErrNotFound
}

func (s *proposalStoreStub) ListByMarket(ctx context.Context, marketID uint64) ([]domain.Proposal, error) {
	return nil, nil
}

type snapshotSourceStub struct {
	snap domain.MarketSnapshot
	err  error
}

func (s *snapshotSourceStub) Snapshot(marketID uint64) (domain.MarketSnapshot, error) {
	return s.snap, s.err
}

type archiverStub struct {
	archived []domain.MarketSnapshot
	err      error
}

func (a *archiverStub) ArchiveSnapshot(ctx context.Context, snap domain.MarketSnapshot) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.archived = append(a.archived, snap)
	return "snapshots/test.json", nil
}

func marshal(t *testing.T, ev domain.Event) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

// runProjector feeds the given payloads through a projector and returns once
// it has drained them.
func runProjector(t *testing.T, markets *marketStoreStub, proposals *proposalStoreStub, snaps projector.SnapshotSource, arch domain.SnapshotArchiver, payloads ...[]byte) {
	t.Helper()

	bus := &busStub{ch: make(chan []byte, len(payloads))}
	for _, p := range payloads {
		bus.ch <- p
	}
	close(bus.ch)

	p := projector.New(bus, markets, proposals, snaps, arch,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, p.Run(context.Background()))
}

func TestProjectorUpsertsMarkets(t *testing.T) {
	markets := &marketStoreStub{}
	proposals := &proposalStoreStub{}

	m := domain.Market{ID: 1, Status: domain.MarketStatusOpen, MinDeposit: 100}
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	runProjector(t, markets, proposals, nil, nil,
		marshal(t, domain.NewEvent(domain.EventMarketCreated, 1, at, domain.MarketCreatedPayload{Market: m})),
		marshal(t, domain.NewEvent(domain.EventDepositRecorded, 1, at, domain.DepositRecordedPayload{Market: m, Amount: 50})),
	)

	require.Len(t, markets.upserts, 2)
	require.Equal(t, uint64(1), markets.upserts[0].market.ID)
	require.Nil(t, markets.upserts[0].accepted)
	require.Empty(t, proposals.upserts)
}

func TestProjectorUpsertsProposals(t *testing.T) {
	markets := &marketStoreStub{}
	proposals := &proposalStoreStub{}

	m := domain.Market{ID: 1, Status: domain.MarketStatusOpen, ProposalCount: 1}
	pr := domain.Proposal{ID: 3, MarketID: 1, Description: "p"}
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	runProjector(t, markets, proposals, nil, nil,
		marshal(t, domain.NewEvent(domain.EventProposalCreated, 1, at, domain.ProposalCreatedPayload{Market: m, Proposal: pr})),
	)

	require.Len(t, markets.upserts, 1)
	require.Len(t, proposals.upserts, 1)
	require.Equal(t, uint64(3), proposals.upserts[0].ID)
}

func TestProjectorRecordsGraduation(t *testing.T) {
	markets := &marketStoreStub{}

	m := domain.Market{ID: 1, Status: domain.MarketStatusProposalAccepted}
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	runProjector(t, markets, &proposalStoreStub{}, nil, nil,
		marshal(t, domain.NewEvent(domain.EventMarketGraduated, 1, at, domain.MarketGraduatedPayload{Market: m, AcceptedProposal: 7})),
	)

	require.Len(t, markets.upserts, 1)
	require.NotNil(t, markets.upserts[0].accepted)
	require.Equal(t, uint64(7), *markets.upserts[0].accepted)
}

func TestProjectorArchivesOnResolution(t *testing.T) {
	markets := &marketStoreStub{}
	snaps := &snapshotSourceStub{snap: domain.MarketSnapshot{
		Market: domain.Market{ID: 1, Status: domain.MarketStatusResolvedAccept},
	}}
	arch := &archiverStub{}

	m := domain.Market{ID: 1, Status: domain.MarketStatusResolvedAccept}
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	runProjector(t, markets, &proposalStoreStub{}, snaps, arch,
		marshal(t, domain.NewEvent(domain.EventMarketResolved, 1, at, domain.MarketResolvedPayload{Market: m, AcceptedProposal: 7, Outcome: domain.OutcomeAccept})),
	)

	require.Len(t, markets.upserts, 1)
	require.Len(t, arch.archived, 1)
	require.Equal(t, uint64(1), arch.archived[0].Market.ID)
}

func TestProjectorArchiveFailureDoesNotStop(t *testing.T) {
	markets := &marketStoreStub{}
	snaps := &snapshotSourceStub{err: errors.New("gone")}
	arch := &archiverStub{}

	m := domain.Market{ID: 1, Status: domain.MarketStatusResolvedReject}
	m2 := domain.Market{ID: 2, Status: domain.MarketStatusOpen}
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	runProjector(t, markets, &proposalStoreStub{}, snaps, arch,
		marshal(t, domain.NewEvent(domain.EventMarketResolved, 1, at, domain.MarketResolvedPayload{Market: m, Outcome: domain.OutcomeReject})),
		marshal(t, domain.NewEvent(domain.EventMarketCreated, 2, at, domain.MarketCreatedPayload{Market: m2})),
	)

	require.Len(t, markets.upserts, 2)
	require.Empty(t, arch.archived)
}

func TestProjectorSkipsMalformedPayloads(t *testing.T) {
	markets := &marketStoreStub{}

	m := domain.Market{ID: 1, Status: domain.MarketStatusOpen}
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	runProjector(t, markets, &proposalStoreStub{}, nil, nil,
		[]byte("not json"),
		marshal(t, domain.NewEvent(domain.EventMarketCreated, 1, at, domain.MarketCreatedPayload{Market: m})),
	)

	require.Len(t, markets.upserts, 1)
}
