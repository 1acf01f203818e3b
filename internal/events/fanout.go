// Package events routes the engine's change notifications to their
// consumers: the durable postgres event log, the redis signal bus for live
// subscribers, and the catch-up stream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/useQlick/qlickd/internal/domain"
)

// Stream is the durable redis stream every event is appended to.
const Stream = "qlick:events"

// ChannelFor maps an event kind to its pub/sub channel.
func ChannelFor(kind domain.EventKind) string {
	switch kind {
	case domain.EventMarketCreated, domain.EventDepositRecorded,
		domain.EventMarketGraduated, domain.EventMarketResolved:
		return "ch:market"
	case domain.EventProposalCreated:
		return "ch:proposal"
	case domain.EventClaimsMinted, domain.EventClaimsRedeemed:
		return "ch:claim"
	case domain.EventPriceUpdated:
		return "ch:price"
	case domain.EventRewardsRedeemed:
		return "ch:reward"
	default:
		return "ch:event"
	}
}

// Channels enumerates every channel the fanout publishes to, for consumers
// that subscribe to all of them.
var Channels = []string{"ch:market", "ch:proposal", "ch:claim", "ch:price", "ch:reward", "ch:event"}

// Fanout implements domain.EventSink over an optional event store and an
// optional signal bus. Failures of one target do not stop the others; all
// are reported joined so the caller can log them.
type Fanout struct {
	Store domain.EventStore
	Bus   domain.SignalBus
}

// Record persists and publishes one event envelope.
func (f *Fanout) Record(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", ev.Kind, err)
	}

	var errs []error
	if f.Store != nil {
		if err := f.Store.Append(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("events: append %s: %w", ev.Kind, err))
		}
	}
	if f.Bus != nil {
		if err := f.Bus.Publish(ctx, ChannelFor(ev.Kind), payload); err != nil {
			errs = append(errs, fmt.Errorf("events: publish %s: %w", ev.Kind, err))
		}
		if err := f.Bus.StreamAppend(ctx, Stream, payload); err != nil {
			errs = append(errs, fmt.Errorf("events: stream append %s: %w", ev.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// Compile-time interface check.
var _ domain.EventSink = (*Fanout)(nil)
