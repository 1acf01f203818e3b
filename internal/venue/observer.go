package venue

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Recorder is the slice of the lifecycle engine the observation hook talks
// to: the fail-closed pre-trade check and the post-trade price report.
type Recorder interface {
	ValidateSwap(pool common.Hash) error
	RecordPostSwap(ctx context.Context, caller common.Address, pool common.Hash, avgTick int64) error
}

// window accumulates the ticks of trades executed between two post-trade
// callback points.
type window struct {
	sum   int64
	count int64
}

// Observer is the price-observation adapter between the venue and the
// engine. It batches the ticks of every trade executed in a pool since the
// last post-trade callback and reports their average, so graduation reacts
// to an average over the batch window rather than the instantaneous
// post-trade tick.
type Observer struct {
	self     common.Address
	recorder Recorder

	mu      sync.Mutex
	windows map[common.Hash]*window
}

// NewObserver creates an observer reporting to the recorder under the
// venue's caller address.
func NewObserver(self common.Address, recorder Recorder) *Observer {
	return &Observer{
		self:     self,
		recorder: recorder,
		windows:  make(map[common.Hash]*window),
	}
}

// BeforeSwap gates a trade on the engine's validation. A non-nil error means
// the trade must not execute.
func (o *Observer) BeforeSwap(pool common.Hash) error {
	return o.recorder.ValidateSwap(pool)
}

// OnTick records the post-execution tick of one trade into the pool's
// current batch window.
func (o *Observer) OnTick(pool common.Hash, tick int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	w, ok := o.windows[pool]
	if !ok {
		w = &window{}
		o.windows[pool] = w
	}
	w.sum += tick
	w.count++
}

// AfterSwap closes the pool's batch window: it reports the average tick of
// the window to the engine and resets the accumulator. A window with no
// recorded ticks is a no-op. Integer division truncates toward zero, which
// is deterministic for a fixed trade sequence.
func (o *Observer) AfterSwap(ctx context.Context, pool common.Hash) error {
	o.mu.Lock()
	w, ok := o.windows[pool]
	if !ok || w.count == 0 {
		o.mu.Unlock()
		return nil
	}
	avg := w.sum / w.count
	delete(o.windows, pool)
	o.mu.Unlock()

	return o.recorder.RecordPostSwap(ctx, o.self, pool, avg)
}
