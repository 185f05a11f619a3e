package exporter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/1000xsh/voteperfx/pkg/engine"
)

type snapshotMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(s *engine.Snapshot) float64
}

// snapshotCollector reports engine state from the latest snapshot.
type snapshotCollector struct {
	snapshot func() *engine.Snapshot
	metrics  []snapshotMetric
}

func desc(subsystem, name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, subsystem, name), help, nil, nil)
}

func gauge(subsystem, name, help string, value func(s *engine.Snapshot) float64) snapshotMetric {
	return snapshotMetric{desc: desc(subsystem, name, help), valueType: prometheus.GaugeValue, value: value}
}

func counter(subsystem, name, help string, value func(s *engine.Snapshot) uint64) snapshotMetric {
	return snapshotMetric{
		desc:      desc(subsystem, name, help),
		valueType: prometheus.CounterValue,
		value:     func(s *engine.Snapshot) float64 { return float64(value(s)) },
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func newSnapshotCollector(snapshot func() *engine.Snapshot) *snapshotCollector {
	return &snapshotCollector{
		snapshot: snapshot,
		metrics: []snapshotMetric{
			gauge(subsystemStream, "connected", "Whether the account stream is connected",
				func(s *engine.Snapshot) float64 { return boolValue(s.Connected) }),
			gauge(subsystemStream, "current_slot", "Highest slot observed",
				func(s *engine.Snapshot) float64 { return float64(s.CurrentSlot) }),
			gauge(subsystemStream, "root_slot", "Latest root slot observed",
				func(s *engine.Snapshot) float64 { return float64(s.RootSlot) }),
			counter(subsystemStream, "updates_total", "Stream updates received",
				func(s *engine.Snapshot) uint64 { return s.Counters.Updates }),
			counter(subsystemStream, "reconnects_total", "Stream reconnects",
				func(s *engine.Snapshot) uint64 { return s.Counters.Reconnects }),
			counter(subsystemStream, "slot_gaps_total", "Slot gaps detected across reconnects",
				func(s *engine.Snapshot) uint64 { return s.Counters.SlotGaps }),
			counter(subsystemStream, "decode_errors_total", "Account updates that failed to decode",
				func(s *engine.Snapshot) uint64 { return s.Counters.DecodeErrors }),
			counter(subsystemVotes, "invalid_latency_total", "Votes dropped for landing before their slot",
				func(s *engine.Snapshot) uint64 { return s.Counters.InvalidLatency }),
			counter(subsystemVotes, "late_dropped_total", "Votes landing in epochs no longer retained",
				func(s *engine.Snapshot) uint64 { return s.Counters.DroppedLateVotes }),
			counter(subsystemVotes, "untimed_total", "Votes without latency left unscored after a reconnect",
				func(s *engine.Snapshot) uint64 { return s.Counters.UntimedVotes }),
			counter("", "suppressed_events_total", "Efficiency events suppressed by cooldown",
				func(s *engine.Snapshot) uint64 { return s.Counters.SuppressedEvents }),
			counter("", "sink_drops_total", "Items dropped because the sink queue was full",
				func(s *engine.Snapshot) uint64 { return s.Counters.SinkDrops }),
			gauge("rolling", "efficiency", "Credit efficiency over the rolling window",
				func(s *engine.Snapshot) float64 { return s.Rolling.Efficiency }),
			gauge("rolling", "avg_latency_slots", "Mean latency over the rolling window",
				func(s *engine.Snapshot) float64 { return s.Rolling.AvgLatency }),
			gauge("rolling", "votes", "Votes in the rolling window",
				func(s *engine.Snapshot) float64 { return float64(s.Rolling.Count) }),
			gauge("lifetime", "efficiency", "Credit efficiency since start",
				func(s *engine.Snapshot) float64 { return s.Lifetime.Efficiency }),
			gauge(subsystemEpoch, "current", "Epoch of the latest vote",
				func(s *engine.Snapshot) float64 { return float64(s.Epoch.Epoch) }),
			gauge(subsystemEpoch, "credits", "Credits earned in the current epoch",
				func(s *engine.Snapshot) float64 { return float64(s.Epoch.CreditsEarned) }),
			gauge(subsystemEpoch, "credits_possible", "Credits possible in the current epoch",
				func(s *engine.Snapshot) float64 { return float64(s.Epoch.CreditsPossible) }),
			gauge(subsystemEpoch, "progress", "Fraction of the current epoch elapsed",
				func(s *engine.Snapshot) float64 { return s.EpochProgress() }),
			gauge(subsystemEpoch, "onchain_credits", "Epoch credits reported by the vote account",
				func(s *engine.Snapshot) float64 {
					if s.OnChainCredits == nil {
						return 0
					}
					return float64(s.OnChainCredits.Earned())
				}),
		},
	}
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	if s == nil {
		return
	}
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(s))
	}
}
