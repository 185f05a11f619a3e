// Package engine runs the ingestion loop: it decodes vote account updates,
// scores each vote, tracks epochs and rolling efficiency, raises performance
// events and publishes a snapshot after every update.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/stats"
	"github.com/1000xsh/voteperfx/pkg/stream"
	"github.com/1000xsh/voteperfx/pkg/telemetry"
	"github.com/1000xsh/voteperfx/pkg/tvc"
	"github.com/1000xsh/voteperfx/pkg/vote"
)

var (
	// ErrRetryBudgetExhausted is returned by Run when the stream could not be
	// re-established within Backoff.MaxRetries attempts.
	ErrRetryBudgetExhausted = errors.New("stream retry budget exhausted")
	ErrAlreadyRunning       = errors.New("engine already running")
)

// Engine owns all monitoring state. Only the Run goroutine mutates it; other
// goroutines read published snapshots.
type Engine struct {
	account  solana.PublicKey
	source   stream.Source
	endpoint string
	retry    *stream.Retrier
	logger   zerolog.Logger
	now      func() time.Time

	decoder  *vote.Decoder
	tracker  *epoch.Tracker
	agg      *stats.Aggregator
	detector *detector.Detector
	events   *stats.Ring[detector.Event]

	dispatch *dispatcher
	tel      *telemetryEmitter

	connected   bool
	currentSlot uint64
	rootSlot    uint64
	onChain     *vote.EpochCredits
	counters    Counters

	running  atomic.Bool
	seq      uint64
	snapshot atomic.Pointer[Snapshot]
	notify   notifier
}

func New(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: stream source is required", config.ErrConfigInvalid)
	}
	if opts.VoteAccount.IsZero() {
		return nil, fmt.Errorf("%w: vote account is required", config.ErrConfigInvalid)
	}
	if opts.RecentEvents < 1 {
		return nil, fmt.Errorf("%w: recent events must be at least 1, got %d", config.ErrConfigInvalid, opts.RecentEvents)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	dec, err := vote.NewDecoder(opts.VoteAccount, opts.DedupCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
	}
	tracker, err := epoch.NewTracker(opts.EpochLength, opts.EpochRetention)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
	}
	agg, err := stats.NewAggregator(opts.RollingWindow, opts.RollingMaxAge, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
	}
	det, err := detector.New(opts.Policy, opts.VoteAccount.String(), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
	}

	e := &Engine{
		account:  opts.VoteAccount,
		source:   opts.Source,
		endpoint: opts.Endpoint,
		retry:    opts.Backoff.NewRetrier(),
		logger:   opts.Logger,
		now:      now,
		decoder:  dec,
		tracker:  tracker,
		agg:      agg,
		detector: det,
		events:   stats.NewRing[detector.Event](opts.RecentEvents),
		dispatch: newDispatcher(opts.Sinks, opts.SinkBuffer, opts.Logger),
		tel:      newTelemetryEmitter(opts.Telemetry),
	}
	e.publish()
	return e, nil
}

// Snapshot returns the latest published view. It never returns nil.
func (e *Engine) Snapshot() *Snapshot { return e.snapshot.Load() }

// Subscribe returns a channel signalled after each publish.
func (e *Engine) Subscribe() <-chan struct{} { return e.notify.subscribe() }

// Run consumes the stream until ctx is cancelled, resubscribing with backoff
// after every disconnect. It returns nil on cancellation and
// ErrRetryBudgetExhausted when the retry budget runs out. Run may be called
// only once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.tel.Start()
	defer e.tel.Stop()
	e.dispatch.start(context.WithoutCancel(ctx))
	defer e.dispatch.stop()

	e.logger.Info().
		Str("vote_account", e.account.String()).
		Str("endpoint", e.endpoint).
		Msg("starting vote monitor")

	attempt := 0
	resumed := false
	for {
		if ctx.Err() != nil {
			return nil
		}

		st, err := e.source.Subscribe(ctx, e.account)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempt++
			e.logger.Warn().Err(err).Int("attempt", attempt).Msg("subscribe failed")
			e.tel.EmitError(err, "subscribe", telemetry.ErrorSeverityError)
			if err := e.waitRetry(ctx, attempt, err); err != nil {
				return err
			}
			continue
		}

		e.setConnected(true)
		err = e.consume(ctx, st, &attempt, resumed)
		_ = st.Close()
		e.setConnected(false)
		if ctx.Err() != nil {
			e.logger.Info().Msg("vote monitor stopped")
			return nil
		}

		e.logger.Warn().Err(err).Uint64("last_slot", e.currentSlot).Msg("stream disconnected")
		e.tel.EmitError(err, "stream", telemetry.ErrorSeverityWarning)
		e.counters.Reconnects++
		e.decoder.Resume()
		resumed = true
		attempt++
		if err := e.waitRetry(ctx, attempt, err); err != nil {
			return err
		}
	}
}

// waitRetry sleeps before attempt. It returns nil when the caller should
// retry, or the terminal error for Run.
func (e *Engine) waitRetry(ctx context.Context, attempt int, cause error) error {
	delay, ok := e.retry.Next()
	if !ok {
		e.logger.Error().Err(cause).Int("attempts", attempt).Msg("giving up on stream")
		return fmt.Errorf("%w after %d attempts: %v", ErrRetryBudgetExhausted, attempt, cause)
	}
	e.tel.EmitReconnecting(attempt, delay)
	e.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")
	e.publish()
	// cancellation is picked up by the caller's loop
	_ = stream.Sleep(ctx, delay)
	return nil
}

func (e *Engine) consume(ctx context.Context, st stream.Stream, attempt *int, resumed bool) error {
	first := true
	for {
		upd, err := st.Recv(ctx)
		if err != nil {
			return err
		}
		if *attempt > 0 {
			*attempt = 0
			e.retry.Reset()
		}
		if first && resumed {
			e.checkGap(upd.UpdateSlot())
		}
		first = false
		e.handle(upd)
		e.publish()
	}
}

func (e *Engine) checkGap(slot uint64) {
	if slot == 0 || e.currentSlot == 0 || slot <= e.currentSlot+1 {
		return
	}
	e.counters.SlotGaps++
	e.logger.Info().
		Uint64("from", e.currentSlot).
		Uint64("to", slot).
		Uint64("missed", slot-e.currentSlot-1).
		Msg("slot gap across reconnect")
	e.tel.EmitGap(e.currentSlot, slot)
}

func (e *Engine) handle(upd stream.Update) {
	e.counters.Updates++
	e.tel.EmitUpdate(upd.UpdateType(), upd.UpdateSlot())

	switch u := upd.(type) {
	case stream.SlotUpdate:
		e.counters.SlotUpdates++
		e.decoder.ObserveSlot(u.Slot)
		e.advanceSlot(u.Slot)
		if u.Root > e.rootSlot {
			e.rootSlot = u.Root
		}
	case stream.AccountUpdate:
		e.counters.AccountUpdates++
		e.handleAccount(u)
	}
}

func (e *Engine) handleAccount(u stream.AccountUpdate) {
	res, err := e.decoder.Decode(u)
	if err != nil {
		e.counters.DecodeErrors++
		e.logger.Warn().Err(err).Uint64("slot", u.Slot).Msg("skipping undecodable account update")
		e.tel.EmitError(err, "decode", telemetry.ErrorSeverityWarning)
		return
	}
	e.advanceSlot(u.Slot)
	if res.RootSlot != nil {
		e.rootSlot = *res.RootSlot
	}
	if ec, ok := res.State.CurrentEpochCredits(); ok {
		e.onChain = &ec
	}
	if res.Baseline {
		e.logger.Info().
			Int("tower", len(res.State.Votes)).
			Uint64("slot", u.Slot).
			Msg("vote tower baseline recorded")
		return
	}
	if res.Untimed > 0 {
		e.counters.UntimedVotes += uint64(res.Untimed)
		e.logger.Info().
			Int("votes", res.Untimed).
			Uint64("slot", u.Slot).
			Msg("votes landed while disconnected left unscored")
	}
	for _, v := range res.Votes {
		e.processVote(v)
	}
}

func (e *Engine) processVote(v vote.Record) {
	cr, err := tvc.Compute(v.VotedSlot, v.LandingSlot)
	if err != nil {
		e.counters.InvalidLatency++
		e.logger.Warn().Err(err).
			Uint64("voted_slot", v.VotedSlot).
			Uint64("landing_slot", v.LandingSlot).
			Msg("dropping vote with invalid latency")
		e.tel.EmitError(err, "invalid_latency", telemetry.ErrorSeverityWarning)
		return
	}
	e.advanceSlot(v.LandingSlot)

	attr, tr := e.tracker.Record(v.LandingSlot, cr)
	if tr != nil {
		e.closeEpoch(*tr)
	}
	switch attr {
	case epoch.AttributionDropped:
		e.counters.DroppedLateVotes++
		e.logger.Warn().
			Uint64("voted_slot", v.VotedSlot).
			Uint64("landing_slot", v.LandingSlot).
			Msg("late vote predates retained epochs")
		return
	case epoch.AttributedArchived:
		e.counters.ArchivedLateVotes++
		if w, ok := e.tracker.Archived(e.tracker.EpochOf(v.LandingSlot)); ok {
			e.logger.Info().
				Uint64("epoch", w.Epoch).
				Uint64("voted_slot", v.VotedSlot).
				Uint64("credits", w.CreditsEarned).
				Msg("late vote updated closed epoch")
			e.enqueue(dispatchItem{window: &w})
		}
	}

	ep := e.tracker.EpochOf(v.LandingSlot)
	sample := e.agg.Update(v, ep, cr)
	e.tel.EmitVote(cr.Latency, cr.Credit)
	e.enqueue(dispatchItem{vote: &sample})

	ev := e.detector.Evaluate(v, ep, cr, e.agg.Rolling())
	e.counters.SuppressedEvents = e.detector.Suppressed()
	if ev == nil {
		return
	}
	e.events.Push(*ev)
	e.logger.Warn().
		Str("reason", string(ev.Reason)).
		Uint64("voted_slot", ev.VotedSlot).
		Uint64("latency", ev.Latency).
		Uint8("credit", ev.Credit).
		Float64("efficiency", ev.Efficiency).
		Msg("poor vote performance")
	e.enqueue(dispatchItem{event: ev})
}

func (e *Engine) closeEpoch(tr epoch.Transition) {
	w := tr.Closed
	e.logger.Info().
		Uint64("epoch", w.Epoch).
		Uint64("credits", w.CreditsEarned).
		Uint64("possible", w.CreditsPossible).
		Uint64("votes", w.VotesSeen).
		Float64("efficiency", w.Efficiency()).
		Uint64("next", tr.Opened).
		Msg("epoch closed")
	if tr.Skipped > 0 {
		e.logger.Warn().Uint64("skipped", tr.Skipped).Msg("epochs passed without observed votes")
	}
	e.tel.EmitEpochClosed(w.Epoch, w.Efficiency())
	e.enqueue(dispatchItem{window: &w})
}

func (e *Engine) enqueue(it dispatchItem) {
	if !e.dispatch.enqueue(it) {
		e.tel.EmitDropped("sink buffer full")
	}
}

func (e *Engine) advanceSlot(slot uint64) {
	if slot > e.currentSlot {
		e.currentSlot = slot
	}
}

func (e *Engine) setConnected(connected bool) {
	if connected {
		e.logger.Info().Str("endpoint", e.endpoint).Msg("stream connected")
	}
	e.connected = connected
	e.tel.EmitConnection(e.endpoint, connected)
	e.publish()
}

func (e *Engine) publish() {
	e.agg.Rolling().Expire()
	e.seq++

	snap := &Snapshot{
		Seq:          e.seq,
		PublishedAt:  e.now(),
		VoteAccount:  e.account.String(),
		Connected:    e.connected,
		CurrentSlot:  e.currentSlot,
		RootSlot:     e.rootSlot,
		EpochLength:  e.tracker.Length(),
		EpochHistory: e.tracker.History(),
		Rolling:      e.agg.Rolling().View(),
		Lifetime:     e.agg.Lifetime(),
		RecentVotes:  e.agg.RecentVotes(),
		PoorVotes:    e.agg.PoorVotes(),
		RecentEvents: e.events.Newest(),
		Counters:     e.counters,
		Policy:       e.detector.Policy(),
	}
	snap.Epoch, snap.HasEpoch = e.tracker.Current()
	snap.Counters.SinkDrops = e.dispatch.Dropped()
	if e.onChain != nil {
		ec := *e.onChain
		snap.OnChainCredits = &ec
	}

	e.snapshot.Store(snap)
	e.notify.broadcast()
}
