package telemetry

type Snapshot struct {
	// Ingestion counters
	UpdatesReceived uint64
	AccountUpdates  uint64
	SlotUpdates     uint64
	VotesProcessed  uint64
	ErrorsTotal     uint64
	EventsDropped   uint64

	// Stream state
	StreamConnected bool
	StreamEndpoint  string
	Reconnects      uint64
	BackoffSeconds  float64
	LastSlot        uint64
	SlotGaps        uint64
	SlotsMissed     uint64

	// Epochs
	EpochsClosed    uint64
	LastClosedEpoch uint64

	// Rate metrics
	UpdatesPerSecond float64
	VotesPerSecond   float64

	// Latency metrics, in slots
	AvgLatencySlots float64
	P95LatencySlots float64

	// System metrics
	UptimeSeconds      float64
	ChannelUtilization float64

	// Error breakdown
	ErrorsByType     map[string]uint64
	ErrorsBySeverity map[ErrorSeverity]uint64
	RecentErrors     []string
}

type TelemetryReader interface {
	Snapshot() Snapshot
}
