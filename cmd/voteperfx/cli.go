package main

import (
	"context"
	"time"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/logging"
	"github.com/1000xsh/voteperfx/pkg/telemetry"
	"github.com/1000xsh/voteperfx/pkg/utils"
)

const statusInterval = 10 * time.Second

// snapshotReader is the engine view the status printers need.
type snapshotReader interface {
	Snapshot() *engine.Snapshot
}

// CLI represents the simple mode runner: votes are logged by the log sink,
// and CLI adds a periodic status line.
type CLI struct {
	engine    snapshotReader
	telemetry telemetry.TelemetryReader
	config    *config.Config
	logger    logging.Logger

	lastSnapshot  engine.Snapshot
	lastTelemetry telemetry.Snapshot
	printed       bool
}

// NewCLI creates a new command-line interface runner
func NewCLI(eng snapshotReader, telemetryReader telemetry.TelemetryReader, cfg *config.Config, logger logging.Logger) *CLI {
	return &CLI{
		engine:    eng,
		telemetry: telemetryReader,
		config:    cfg,
		logger:    logger,
	}
}

// Run prints status updates until ctx is cancelled
func (c *CLI) Run(ctx context.Context) {
	c.logger.Info().
		Str(logging.FieldVoteAccount, c.config.VoteAccount).
		Str("endpoint", c.config.RPCWSURL).
		Str("commitment", c.config.Commitment).
		Msg("starting in simple mode")

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("shutting down")
			return
		case <-ticker.C:
			c.printStatus()
		}
	}
}

// printStatus logs the current engine and telemetry state
func (c *CLI) printStatus() {
	snap := c.engine.Snapshot()
	tel := c.telemetry.Snapshot()

	if c.shouldPrintStatus(snap, tel) {
		c.logger.Info().
			Bool("connected", snap.Connected).
			Uint64(logging.FieldSlot, snap.CurrentSlot).
			Uint64("votes", snap.Lifetime.Votes).
			Str("rolling_efficiency", utils.FormatPercent(snap.Rolling.Efficiency)).
			Float64("rolling_avg_latency", snap.Rolling.AvgLatency).
			Str("lifetime_efficiency", utils.FormatPercent(snap.Lifetime.Efficiency)).
			Float64("votes_per_sec", tel.VotesPerSecond).
			Uint64("reconnects", snap.Counters.Reconnects).
			Uint64("errors", tel.ErrorsTotal).
			Str("uptime", utils.FormatDuration(time.Duration(tel.UptimeSeconds*float64(time.Second)))).
			Msg("status")

		if snap.HasEpoch {
			c.logger.Info().
				Uint64(logging.FieldEpoch, snap.Epoch.Epoch).
				Uint64("credits", snap.Epoch.CreditsEarned).
				Uint64("possible", snap.Epoch.CreditsPossible).
				Str("efficiency", utils.FormatPercent(snap.Epoch.Efficiency())).
				Str("progress", utils.FormatPercent(snap.EpochProgress())).
				Msg("epoch")
		}
	}

	c.lastSnapshot = *snap
	c.lastTelemetry = tel
	c.printed = true
}

// shouldPrintStatus determines if we should print a status update
func (c *CLI) shouldPrintStatus(snap *engine.Snapshot, tel telemetry.Snapshot) bool {
	if !c.printed {
		return true
	}

	if snap.Lifetime.Votes != c.lastSnapshot.Lifetime.Votes {
		return true
	}

	if tel.ErrorsTotal > c.lastTelemetry.ErrorsTotal {
		return true
	}

	return snap.Connected != c.lastSnapshot.Connected
}
