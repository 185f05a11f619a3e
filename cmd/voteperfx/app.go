package main

import (
	"context"
	"errors"
	"time"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/crypto"
	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/exporter"
	"github.com/1000xsh/voteperfx/pkg/logging"
	"github.com/1000xsh/voteperfx/pkg/notify"
	"github.com/1000xsh/voteperfx/pkg/server"
	"github.com/1000xsh/voteperfx/pkg/sink"
	"github.com/1000xsh/voteperfx/pkg/stream"
	"github.com/1000xsh/voteperfx/pkg/stream/solanaws"
	"github.com/1000xsh/voteperfx/pkg/telemetry"
)

const startupTimeout = 10 * time.Second

// app holds the wired components of one monitor run.
type app struct {
	engine    *engine.Engine
	telemetry *telemetry.Aggregator
	sinks     *sink.Set
	server    *server.Server
	logger    logging.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	src, err := solanaws.NewSource(cfg.RPCWSURL, cfg.Commitment, logging.ForComponent(logger, logging.ComponentStream))
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, cfg, logger, src)
}

// buildApp wires the engine, sinks and HTTP server around src.
func buildApp(ctx context.Context, cfg *config.Config, logger logging.Logger, src stream.Source) (*app, error) {
	opts, err := engine.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	set, err := sink.FromConfig(startCtx, cfg, logging.ForComponent(logger, logging.ComponentSink), cfg.Mode == config.ModeSimple)
	if err != nil {
		return nil, err
	}

	if cfg.Sinks.NostrRelayURL != "" {
		n, err := connectNotifier(startCtx, cfg, logger)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		set.Add(n)
	}

	if set.Archive != nil {
		if windows, err := set.Archive.Epochs(startCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to read epoch archive")
		} else if len(windows) > 0 {
			last := windows[len(windows)-1]
			logger.Info().
				Uint64(logging.FieldEpoch, last.Epoch).
				Float64("efficiency", last.Efficiency()).
				Int("archived_epochs", len(windows)).
				Msg("resuming with archived epochs")
		}
	}

	// The exporter reads engine snapshots, but the engine needs its sinks at
	// construction; the closure is only called after New returns.
	var eng *engine.Engine
	var exp *exporter.Exporter
	if cfg.Sinks.HTTPAddr != "" {
		exp = exporter.New(func() *engine.Snapshot {
			if eng == nil {
				return nil
			}
			return eng.Snapshot()
		})
		set.Add(exp)
	}

	agg := telemetry.NewAggregator(telemetry.RealClock{}, telemetry.DefaultConfig())

	opts.Source = src
	opts.Sinks = set.Sinks
	opts.Logger = logging.ForComponent(logger, logging.ComponentEngine)
	opts.Telemetry = agg
	eng, err = engine.New(opts)
	if err != nil {
		_ = set.Close()
		return nil, err
	}

	a := &app{engine: eng, telemetry: agg, sinks: set, logger: logger}
	if cfg.Sinks.HTTPAddr != "" {
		srvCfg := server.Config{
			Addr:    cfg.Sinks.HTTPAddr,
			Metrics: exp.Handler(),
			Logger:  logging.ForComponent(logger, logging.ComponentServer),
		}
		if set.Archive != nil {
			srvCfg.Archive = set.Archive
		}
		a.server = server.New(eng, srvCfg)
	}
	return a, nil
}

func connectNotifier(ctx context.Context, cfg *config.Config, logger logging.Logger) (*notify.Notifier, error) {
	keys, err := crypto.ParseKeyPair(cfg.Sinks.NostrSecretKey)
	if err != nil {
		return nil, err
	}
	nlog := logging.ForComponent(logger, logging.ComponentNotify)
	n, err := notify.Connect(ctx, cfg.Sinks.NostrRelayURL, keys, notify.Config{
		VoteAccount: cfg.VoteAccount,
		Logger:      nlog,
	})
	if err != nil {
		return nil, err
	}

	summary, err := n.LastSummary(ctx)
	switch {
	case err != nil:
		nlog.Warn().Err(err).Msg("failed to fetch last published summary")
	case summary != nil:
		nlog.Info().
			Uint64(logging.FieldEpoch, summary.Epoch).
			Float64("efficiency", summary.Efficiency()).
			Time("published_at", summary.PublishedAt).
			Msg("last published epoch summary")
	}
	nlog.Info().Str("relay", cfg.Sinks.NostrRelayURL).Str("pubkey", keys.PublicKeyBech32).Msg("nostr notifier enabled")
	return n, nil
}

// Run runs the telemetry aggregator, the HTTP server and the engine until ctx
// is cancelled or the engine stops.
func (a *app) Run(ctx context.Context) error {
	a.telemetry.Start(ctx)
	defer a.telemetry.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	if a.server != nil {
		go func() { srvErr <- a.server.Run(ctx) }()
	} else {
		close(srvErr)
	}

	err := a.engine.Run(ctx)
	cancel()
	if serr := <-srvErr; serr != nil {
		err = errors.Join(err, serr)
	}
	return err
}

// Close flushes and releases every sink.
func (a *app) Close() {
	if err := a.sinks.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close sinks")
	}
}
