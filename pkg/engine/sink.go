package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/stats"
)

// DefaultSinkBuffer is the dispatch queue size used when Options leaves it
// unset.
const DefaultSinkBuffer = 256

// EventSink receives performance events and closed epoch windows. Calls are
// made from the dispatcher goroutine, concurrently across sinks but never
// concurrently on one sink.
type EventSink interface {
	Name() string
	HandleEvent(ctx context.Context, ev detector.Event) error
	HandleEpochClosed(ctx context.Context, w epoch.Window) error
}

// VoteSink is implemented by sinks that also want every processed vote.
type VoteSink interface {
	HandleVote(ctx context.Context, v stats.VoteSample) error
}

type dispatchItem struct {
	event  *detector.Event
	window *epoch.Window
	vote   *stats.VoteSample
}

func (it dispatchItem) kind() string {
	switch {
	case it.event != nil:
		return "event"
	case it.window != nil:
		return "epoch"
	default:
		return "vote"
	}
}

func (it dispatchItem) deliver(ctx context.Context, s EventSink) error {
	switch {
	case it.event != nil:
		return s.HandleEvent(ctx, *it.event)
	case it.window != nil:
		return s.HandleEpochClosed(ctx, *it.window)
	case it.vote != nil:
		if vs, ok := s.(VoteSink); ok {
			return vs.HandleVote(ctx, *it.vote)
		}
	}
	return nil
}

// dispatcher decouples sinks from the ingestion loop. Enqueue never blocks;
// a full queue drops the item.
type dispatcher struct {
	sinks  []EventSink
	logger zerolog.Logger
	queue  chan dispatchItem

	dropped   atomic.Uint64
	closeOnce sync.Once
	done      chan struct{}
}

func newDispatcher(sinks []EventSink, size int, logger zerolog.Logger) *dispatcher {
	if size <= 0 {
		size = DefaultSinkBuffer
	}
	return &dispatcher{
		sinks:  sinks,
		logger: logger,
		queue:  make(chan dispatchItem, size),
		done:   make(chan struct{}),
	}
}

func (d *dispatcher) start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for it := range d.queue {
			d.fanOut(ctx, it)
		}
	}()
}

// enqueue reports false when the item was dropped.
func (d *dispatcher) enqueue(it dispatchItem) bool {
	if len(d.sinks) == 0 {
		return true
	}
	select {
	case d.queue <- it:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

func (d *dispatcher) fanOut(ctx context.Context, it dispatchItem) {
	p := pool.New().WithContext(ctx).WithMaxGoroutines(len(d.sinks))
	for _, s := range d.sinks {
		s := s
		p.Go(func(ctx context.Context) error {
			if err := it.deliver(ctx, s); err != nil {
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		d.logger.Warn().Err(err).Str("kind", it.kind()).Msg("sink delivery failed")
	}
}

// stop drains queued items and waits for the dispatcher goroutine.
func (d *dispatcher) stop() {
	d.closeOnce.Do(func() { close(d.queue) })
	<-d.done
}

func (d *dispatcher) Dropped() uint64 { return d.dropped.Load() }
