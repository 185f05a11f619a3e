package engine

import (
	"context"
	"sync"
	"time"

	"github.com/1000xsh/voteperfx/pkg/telemetry"
)

// telemetryEmitter is a buffered adapter around TelemetryPublisher that
// provides typed emit helpers and manages its own publishing goroutine.
type telemetryEmitter struct {
	pub    telemetry.TelemetryPublisher
	ch     chan telemetry.TelemetryEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newTelemetryEmitter(pub telemetry.TelemetryPublisher) *telemetryEmitter {
	if pub == nil {
		pub = telemetry.NewNoopPublisher()
	}
	return &telemetryEmitter{
		pub: pub,
		ch:  make(chan telemetry.TelemetryEvent, 200),
	}
}

func (t *telemetryEmitter) Start() {
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case ev := <-t.ch:
				t.pub.Publish(ev)
			case <-ctx.Done():
				t.flush()
				return
			}
		}
	}()
}

func (t *telemetryEmitter) flush() {
	for {
		select {
		case ev := <-t.ch:
			t.pub.Publish(ev)
		default:
			return
		}
	}
}

func (t *telemetryEmitter) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.wg.Wait()
	t.cancel = nil
}

func (t *telemetryEmitter) emit(event telemetry.TelemetryEvent) {
	select {
	case t.ch <- event:
	default:
		// drop on full to avoid blocking
	}
}

func (t *telemetryEmitter) EmitConnection(endpoint string, connected bool) {
	t.emit(telemetry.NewStreamStatusChanged(endpoint, connected))
}

func (t *telemetryEmitter) EmitReconnecting(attempt int, delay time.Duration) {
	t.emit(telemetry.NewReconnecting(attempt, delay))
}

func (t *telemetryEmitter) EmitUpdate(kind string, slot uint64) {
	t.emit(telemetry.NewUpdateReceived(kind, slot))
}

func (t *telemetryEmitter) EmitVote(latency uint64, credit uint8) {
	t.emit(telemetry.NewVoteProcessed(latency, credit))
}

func (t *telemetryEmitter) EmitGap(from, to uint64) {
	t.emit(telemetry.NewSlotGapDetected(from, to))
}

func (t *telemetryEmitter) EmitEpochClosed(epoch uint64, efficiency float64) {
	t.emit(telemetry.NewEpochClosed(epoch, efficiency))
}

func (t *telemetryEmitter) EmitDropped(reason string) {
	t.emit(telemetry.NewEventDropped(reason))
}

func (t *telemetryEmitter) EmitError(err error, where string, severity telemetry.ErrorSeverity) {
	t.emit(telemetry.NewIngestError(err, where, severity))
}
