package engine

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/stream"
	"github.com/1000xsh/voteperfx/pkg/telemetry"
)

// Options configures an Engine.
type Options struct {
	VoteAccount solana.PublicKey
	Source      stream.Source
	// Endpoint labels connection telemetry.
	Endpoint string

	EpochLength    uint64
	EpochRetention int
	RollingWindow  int
	RollingMaxAge  time.Duration
	DedupCapacity  int
	RecentEvents   int
	Policy         detector.Policy
	Backoff        stream.Backoff

	Sinks      []EventSink
	SinkBuffer int

	Logger    zerolog.Logger
	Telemetry telemetry.TelemetryPublisher
	Now       func() time.Time
}

// OptionsFromConfig maps a validated Config onto Options. Source, sinks and
// telemetry are left for the caller to wire.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	account, err := solana.PublicKeyFromBase58(cfg.VoteAccount)
	if err != nil {
		return Options{}, fmt.Errorf("%w: vote account: %v", config.ErrConfigInvalid, err)
	}
	e := cfg.Engine
	n := cfg.Network
	return Options{
		VoteAccount:    account,
		Endpoint:       cfg.RPCWSURL,
		EpochLength:    uint64(e.EpochLength),
		EpochRetention: e.EpochRetention,
		RollingWindow:  e.RollingWindow,
		RollingMaxAge:  time.Duration(e.RollingMaxAgeSeconds) * time.Second,
		DedupCapacity:  e.DedupCapacity,
		RecentEvents:   e.RecentEvents,
		Policy: detector.Policy{
			HardLatency:    uint64(e.HardLatencyThreshold),
			SoftEfficiency: e.SoftEfficiencyThreshold,
			Cooldown:       time.Duration(e.CooldownSeconds) * time.Second,
		},
		Backoff: stream.Backoff{
			Initial:    time.Duration(n.InitialBackoffSeconds) * time.Second,
			Max:        time.Duration(n.MaxBackoffSeconds) * time.Second,
			Jitter:     n.BackoffJitter,
			MaxRetries: n.MaxRetries,
		},
	}, nil
}
