// Package exporter exposes vote performance as Prometheus metrics.
package exporter

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/stats"
	"github.com/1000xsh/voteperfx/pkg/tvc"
)

const (
	metricsNamespace = "voteperfx"

	subsystemVotes  = "votes"
	subsystemEpoch  = "epoch"
	subsystemStream = "stream"
)

// Exporter owns a private registry. Per-vote metrics are fed through the sink
// methods; state gauges and engine counters are read from the latest snapshot
// at scrape time.
type Exporter struct {
	registry *prometheus.Registry

	votes       *prometheus.CounterVec
	latency     prometheus.Histogram
	credits     prometheus.Counter
	missed      prometheus.Counter
	events      *prometheus.CounterVec
	epochCloses prometheus.Counter
	epochEff    prometheus.Gauge
	epochEarned prometheus.Gauge

	// newest closed epoch seen; late votes resend archived windows
	lastClosed uint64
	closedAny  bool
}

func New(snapshot func() *engine.Snapshot) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newSnapshotCollector(snapshot),
	)
	factory := promauto.With(reg)

	return &Exporter{
		registry: reg,
		votes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemVotes,
				Name:      "total",
				Help:      "Processed votes by performance level",
			},
			[]string{"level"},
		),
		latency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemVotes,
				Name:      "latency_slots",
				Help:      "Vote landing latency in slots",
				Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 32, 64},
			},
		),
		credits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemVotes,
				Name:      "credits_earned_total",
				Help:      "Timely vote credits earned",
			},
		),
		missed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemVotes,
				Name:      "credits_missed_total",
				Help:      "Timely vote credits lost to latency",
			},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "performance_events_total",
				Help:      "Performance events by reason",
			},
			[]string{"reason"},
		),
		epochCloses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemEpoch,
				Name:      "closed_total",
				Help:      "Epochs closed while monitoring",
			},
		),
		epochEff: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemEpoch,
				Name:      "last_closed_efficiency",
				Help:      "Credit efficiency of the last closed epoch",
			},
		),
		epochEarned: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemEpoch,
				Name:      "last_closed_credits",
				Help:      "Credits earned in the last closed epoch",
			},
		),
	}
}

func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

func (e *Exporter) Name() string { return "prometheus" }

func (e *Exporter) HandleVote(ctx context.Context, v stats.VoteSample) error {
	e.votes.WithLabelValues(v.Level.String()).Inc()
	e.latency.Observe(float64(v.Latency))
	e.credits.Add(float64(v.Credit))
	e.missed.Add(float64(tvc.MaxCredit - v.Credit))
	return nil
}

func (e *Exporter) HandleEvent(ctx context.Context, ev detector.Event) error {
	e.events.WithLabelValues(string(ev.Reason)).Inc()
	return nil
}

func (e *Exporter) HandleEpochClosed(ctx context.Context, w epoch.Window) error {
	if e.closedAny && w.Epoch < e.lastClosed {
		return nil
	}
	if !e.closedAny || w.Epoch > e.lastClosed {
		e.epochCloses.Inc()
	}
	e.lastClosed, e.closedAny = w.Epoch, true
	e.epochEff.Set(w.Efficiency())
	e.epochEarned.Set(float64(w.CreditsEarned))
	return nil
}
