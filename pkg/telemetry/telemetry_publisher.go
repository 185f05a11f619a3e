package telemetry

import "time"

type TelemetryEvent interface {
	Timestamp() time.Time // When the event occurred
	EventType() string    // For categorization/filtering
}

type StreamStatusChanged struct {
	timestamp time.Time
	Endpoint  string
	Connected bool
}

func (e StreamStatusChanged) Timestamp() time.Time { return e.timestamp }
func (e StreamStatusChanged) EventType() string    { return "stream_status_changed" }

func NewStreamStatusChanged(endpoint string, connected bool) StreamStatusChanged {
	return StreamStatusChanged{
		timestamp: time.Now(),
		Endpoint:  endpoint,
		Connected: connected,
	}
}

type Reconnecting struct {
	timestamp time.Time
	Attempt   int
	Delay     time.Duration
}

func (e Reconnecting) Timestamp() time.Time { return e.timestamp }
func (e Reconnecting) EventType() string    { return "reconnecting" }

func NewReconnecting(attempt int, delay time.Duration) Reconnecting {
	return Reconnecting{
		timestamp: time.Now(),
		Attempt:   attempt,
		Delay:     delay,
	}
}

type UpdateReceived struct {
	timestamp time.Time
	Kind      string // "account" or "slot"
	Slot      uint64
}

func (e UpdateReceived) Timestamp() time.Time { return e.timestamp }
func (e UpdateReceived) EventType() string    { return "update_received" }

func NewUpdateReceived(kind string, slot uint64) UpdateReceived {
	return UpdateReceived{
		timestamp: time.Now(),
		Kind:      kind,
		Slot:      slot,
	}
}

type VoteProcessed struct {
	timestamp time.Time
	Latency   uint64
	Credit    uint8
}

func (e VoteProcessed) Timestamp() time.Time { return e.timestamp }
func (e VoteProcessed) EventType() string    { return "vote_processed" }

func NewVoteProcessed(latency uint64, credit uint8) VoteProcessed {
	return VoteProcessed{
		timestamp: time.Now(),
		Latency:   latency,
		Credit:    credit,
	}
}

type SlotGapDetected struct {
	timestamp time.Time
	From      uint64 // last slot seen before the gap
	To        uint64 // first slot seen after it
}

func (e SlotGapDetected) Timestamp() time.Time { return e.timestamp }
func (e SlotGapDetected) EventType() string    { return "slot_gap_detected" }

// Missed is the number of slots never observed.
func (e SlotGapDetected) Missed() uint64 {
	if e.To <= e.From+1 {
		return 0
	}
	return e.To - e.From - 1
}

func NewSlotGapDetected(from, to uint64) SlotGapDetected {
	return SlotGapDetected{
		timestamp: time.Now(),
		From:      from,
		To:        to,
	}
}

type EpochClosed struct {
	timestamp  time.Time
	Epoch      uint64
	Efficiency float64
}

func (e EpochClosed) Timestamp() time.Time { return e.timestamp }
func (e EpochClosed) EventType() string    { return "epoch_closed" }

func NewEpochClosed(epoch uint64, efficiency float64) EpochClosed {
	return EpochClosed{
		timestamp:  time.Now(),
		Epoch:      epoch,
		Efficiency: efficiency,
	}
}

type EventDropped struct {
	timestamp time.Time
	Reason    string
}

func (e EventDropped) Timestamp() time.Time { return e.timestamp }
func (e EventDropped) EventType() string    { return "event_dropped" }

func NewEventDropped(reason string) EventDropped {
	return EventDropped{
		timestamp: time.Now(),
		Reason:    reason,
	}
}

type IngestError struct {
	timestamp time.Time
	Err       error
	Context   string // e.g. "decode", "invalid_latency", "subscribe"
	Severity  ErrorSeverity
}

func (e IngestError) Timestamp() time.Time { return e.timestamp }
func (e IngestError) EventType() string    { return "ingest_error" }

func NewIngestError(err error, context string, severity ErrorSeverity) IngestError {
	return IngestError{
		timestamp: time.Now(),
		Err:       err,
		Context:   context,
		Severity:  severity,
	}
}

type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

type TelemetryPublisher interface {
	// Publish sends a telemetry event to the aggregator.
	// This is a non-blocking, fire-and-forget call.
	Publish(event TelemetryEvent)
}
