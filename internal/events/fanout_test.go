package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/events"
)

type storeStub struct {
	err      error
	appended []domain.Event
}

func (s *storeStub) Append(ctx context.Context, ev domain.Event) error {
	if s.err != nil {
		return s.err
	}
	s.appended = append(s.appended, ev)
	return nil
}

func (s *storeStub) ListByMarket(ctx context.Context, marketID uint64, limit int) ([]domain.Event, error) {
	return s.appended, nil
}

type busStub struct {
	publishErr error
	published  map[string][][]byte
	streamed   [][]byte
}

func (b *busStub) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *busStub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *busStub) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.streamed = append(b.streamed, payload)
	return nil
}

func (b *busStub) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func sampleEvent(kind domain.EventKind) domain.Event {
	return domain.NewEvent(kind, 1, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), domain.ClaimsMintedPayload{
		ProposalID: 2,
		Amount:     100,
	})
}

func TestChannelFor(t *testing.T) {
	cases := map[domain.EventKind]string{
		domain.EventMarketCreated:   "ch:market",
		domain.EventDepositRecorded: "ch:market",
		domain.EventMarketGraduated: "ch:market",
		domain.EventMarketResolved:  "ch:market",
		domain.EventProposalCreated: "ch:proposal",
		domain.EventClaimsMinted:    "ch:claim",
		domain.EventClaimsRedeemed:  "ch:claim",
		domain.EventPriceUpdated:    "ch:price",
		domain.EventRewardsRedeemed: "ch:reward",
		domain.EventKind("unknown"): "ch:event",
	}
	for kind, want := range cases {
		require.Equal(t, want, events.ChannelFor(kind), "kind %s", kind)
		require.Contains(t, events.Channels, want)
	}
}

func TestFanoutRecordsEverywhere(t *testing.T) {
	store := &storeStub{}
	bus := &busStub{}
	f := &events.Fanout{Store: store, Bus: bus}

	ev := sampleEvent(domain.EventClaimsMinted)
	require.NoError(t, f.Record(context.Background(), ev))

	require.Len(t, store.appended, 1)
	require.Equal(t, ev.ID, store.appended[0].ID)
	require.Len(t, bus.published["ch:claim"], 1)
	require.Len(t, bus.streamed, 1)
	require.Equal(t, bus.published["ch:claim"][0], bus.streamed[0])
}

func TestFanoutPartialFailure(t *testing.T) {
	// A store failure is reported but does not stop the bus publish.
	store := &storeStub{err: errors.New("db down")}
	bus := &busStub{}
	f := &events.Fanout{Store: store, Bus: bus}

	err := f.Record(context.Background(), sampleEvent(domain.EventClaimsMinted))
	require.Error(t, err)
	require.Len(t, bus.published["ch:claim"], 1)
	require.Len(t, bus.streamed, 1)
}

func TestFanoutOptionalTargets(t *testing.T) {
	f := &events.Fanout{}
	require.NoError(t, f.Record(context.Background(), sampleEvent(domain.EventMarketCreated)))

	bus := &busStub{}
	f = &events.Fanout{Bus: bus}
	require.NoError(t, f.Record(context.Background(), sampleEvent(domain.EventMarketCreated)))
	require.Len(t, bus.published["ch:market"], 1)
}
