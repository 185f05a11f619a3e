package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Clock interface allows for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Config for telemetry settings
type Config struct {
	BufferSize        int
	MaxRecentErrors   int
	RateWindowSeconds int
	LatencySamples    int
}

func DefaultConfig() Config {
	return Config{
		BufferSize:        1000,
		MaxRecentErrors:   50,
		RateWindowSeconds: 10,
		LatencySamples:    256,
	}
}

// Aggregator is the core stateful component that processes telemetry events
type Aggregator struct {
	mu    sync.RWMutex
	clock Clock
	cfg   Config

	// Core counters
	updatesReceived uint64
	accountUpdates  uint64
	slotUpdates     uint64
	votesProcessed  uint64
	errorsTotal     uint64
	eventsDropped   uint64

	// Error breakdown
	errorsByType     map[string]uint64
	errorsBySeverity map[ErrorSeverity]uint64

	// Rate calculations
	updateTimes []time.Time
	voteTimes   []time.Time

	// Stream state
	streamConnected bool
	streamEndpoint  string
	reconnects      uint64
	backoff         time.Duration
	lastSlot        uint64
	slotGaps        uint64
	slotsMissed     uint64

	epochsClosed    uint64
	lastClosedEpoch uint64

	// Recent errors (ring buffer)
	recentErrors []string
	errorIndex   int

	// Latency tracking, in slots
	latencies    []uint64
	latencyIndex int
	latencyCount int

	// Control channels
	eventCh  chan TelemetryEvent
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Startup time
	startTime time.Time
}

// NewAggregator creates a new telemetry aggregator
func NewAggregator(clock Clock, cfg Config) *Aggregator {
	if clock == nil {
		clock = RealClock{}
	}

	return &Aggregator{
		clock:            clock,
		cfg:              cfg,
		errorsByType:     make(map[string]uint64),
		errorsBySeverity: make(map[ErrorSeverity]uint64),
		updateTimes:      make([]time.Time, 0, cfg.RateWindowSeconds*10),
		voteTimes:        make([]time.Time, 0, cfg.RateWindowSeconds*4),
		recentErrors:     make([]string, cfg.MaxRecentErrors),
		latencies:        make([]uint64, cfg.LatencySamples),
		eventCh:          make(chan TelemetryEvent, cfg.BufferSize),
		done:             make(chan struct{}),
		startTime:        clock.Now(),
	}
}

// Start begins processing telemetry events
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.processEvents(ctx)
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
	a.wg.Wait()
}

// Publish implements TelemetryPublisher interface
func (a *Aggregator) Publish(event TelemetryEvent) {
	select {
	case a.eventCh <- event:
	default:
		// Non-blocking send - drop if channel is full
		// This protects the hot path from being blocked
	}
}

// Snapshot implements TelemetryReader interface
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.clock.Now()

	avgLatency, p95Latency := a.calculateLatencyMetrics()

	channelUtilization := float64(len(a.eventCh)) / float64(cap(a.eventCh)) * 100

	// Copy maps to prevent data races
	errorsByTypeCopy := make(map[string]uint64, len(a.errorsByType))
	for k, v := range a.errorsByType {
		errorsByTypeCopy[k] = v
	}

	errorsBySeverityCopy := make(map[ErrorSeverity]uint64, len(a.errorsBySeverity))
	for k, v := range a.errorsBySeverity {
		errorsBySeverityCopy[k] = v
	}

	// Copy recent errors, newest first
	recentErrors := make([]string, 0)
	for i := 0; i < len(a.recentErrors); i++ {
		idx := (a.errorIndex - i - 1 + len(a.recentErrors)) % len(a.recentErrors)
		if a.recentErrors[idx] != "" {
			recentErrors = append(recentErrors, a.recentErrors[idx])
		}
	}

	return Snapshot{
		UpdatesReceived:    a.updatesReceived,
		AccountUpdates:     a.accountUpdates,
		SlotUpdates:        a.slotUpdates,
		VotesProcessed:     a.votesProcessed,
		ErrorsTotal:        a.errorsTotal,
		EventsDropped:      a.eventsDropped,
		StreamConnected:    a.streamConnected,
		StreamEndpoint:     a.streamEndpoint,
		Reconnects:         a.reconnects,
		BackoffSeconds:     a.backoff.Seconds(),
		LastSlot:           a.lastSlot,
		SlotGaps:           a.slotGaps,
		SlotsMissed:        a.slotsMissed,
		EpochsClosed:       a.epochsClosed,
		LastClosedEpoch:    a.lastClosedEpoch,
		UpdatesPerSecond:   a.calculateRate(a.updateTimes, now),
		VotesPerSecond:     a.calculateRate(a.voteTimes, now),
		AvgLatencySlots:    avgLatency,
		P95LatencySlots:    p95Latency,
		UptimeSeconds:      now.Sub(a.startTime).Seconds(),
		ChannelUtilization: channelUtilization,
		ErrorsByType:       errorsByTypeCopy,
		ErrorsBySeverity:   errorsBySeverityCopy,
		RecentErrors:       recentErrors,
	}
}

func (a *Aggregator) processEvents(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case event := <-a.eventCh:
			a.handleEvent(event)
		}
	}
}

func (a *Aggregator) handleEvent(event TelemetryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()

	switch e := event.(type) {
	case UpdateReceived:
		a.updatesReceived++
		if e.Kind == "slot" {
			a.slotUpdates++
		} else {
			a.accountUpdates++
		}
		if e.Slot > a.lastSlot {
			a.lastSlot = e.Slot
		}
		a.updateTimes = appendWindowed(a.updateTimes, now, a.rateWindow())

	case VoteProcessed:
		a.votesProcessed++
		a.voteTimes = appendWindowed(a.voteTimes, now, a.rateWindow())
		a.addLatency(e.Latency)

	case StreamStatusChanged:
		a.streamConnected = e.Connected
		a.streamEndpoint = e.Endpoint
		if e.Connected {
			a.backoff = 0
		}

	case Reconnecting:
		a.reconnects++
		a.backoff = e.Delay

	case SlotGapDetected:
		a.slotGaps++
		a.slotsMissed += e.Missed()

	case EpochClosed:
		a.epochsClosed++
		a.lastClosedEpoch = e.Epoch

	case EventDropped:
		a.eventsDropped++

	case IngestError:
		a.errorsTotal++
		a.errorsByType[e.Context]++
		a.errorsBySeverity[e.Severity]++
		if e.Err != nil {
			a.addRecentError(e.Err.Error())
		}
	}
}

func (a *Aggregator) rateWindow() time.Duration {
	return time.Duration(a.cfg.RateWindowSeconds) * time.Second
}

func appendWindowed(times []time.Time, t time.Time, window time.Duration) []time.Time {
	cutoff := t.Add(-window)

	// Remove old entries
	for len(times) > 0 && times[0].Before(cutoff) {
		times = times[1:]
	}

	return append(times, t)
}

func (a *Aggregator) addLatency(latency uint64) {
	if len(a.latencies) == 0 {
		return
	}
	a.latencies[a.latencyIndex] = latency
	a.latencyIndex = (a.latencyIndex + 1) % len(a.latencies)
	if a.latencyCount < len(a.latencies) {
		a.latencyCount++
	}
}

func (a *Aggregator) addRecentError(err string) {
	if len(a.recentErrors) == 0 {
		return
	}
	a.recentErrors[a.errorIndex] = err
	a.errorIndex = (a.errorIndex + 1) % len(a.recentErrors)
}

func (a *Aggregator) calculateRate(times []time.Time, now time.Time) float64 {
	if len(times) == 0 || a.cfg.RateWindowSeconds <= 0 {
		return 0.0
	}

	cutoff := now.Add(-a.rateWindow())
	count := 0

	for _, t := range times {
		if t.After(cutoff) {
			count++
		}
	}

	return float64(count) / float64(a.cfg.RateWindowSeconds)
}

func (a *Aggregator) calculateLatencyMetrics() (float64, float64) {
	if a.latencyCount == 0 {
		return 0.0, 0.0
	}

	samples := make([]uint64, a.latencyCount)
	copy(samples, a.latencies[:a.latencyCount])

	var sum uint64
	for _, lat := range samples {
		sum += lat
	}
	avg := float64(sum) / float64(len(samples))

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	p95Index := int(float64(len(samples)) * 0.95)
	if p95Index >= len(samples) {
		p95Index = len(samples) - 1
	}

	return avg, float64(samples[p95Index])
}
