package exporter

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/stats"
	"github.com/1000xsh/voteperfx/pkg/tvc"
	"github.com/1000xsh/voteperfx/pkg/vote"
)

var (
	_ engine.EventSink = (*Exporter)(nil)
	_ engine.VoteSink  = (*Exporter)(nil)
)

func testSnapshot() *engine.Snapshot {
	return &engine.Snapshot{
		Connected:      true,
		CurrentSlot:    1234,
		EpochLength:    100,
		HasEpoch:       true,
		Epoch:          epoch.Window{Epoch: 12, StartSlot: 1200, EndSlot: 1299, CreditsEarned: 30, CreditsPossible: 32, VotesSeen: 2},
		Rolling:        stats.RollingView{Count: 2, Efficiency: 0.9375, AvgLatency: 1.5},
		Counters:       engine.Counters{Updates: 40, Reconnects: 2, DecodeErrors: 1},
		OnChainCredits: &vote.EpochCredits{Epoch: 12, Credits: 1030, PrevCredits: 1000},
	}
}

func voteSample(latency uint64) stats.VoteSample {
	credit := tvc.CreditFor(latency)
	return stats.VoteSample{Latency: latency, Credit: credit, Level: tvc.LevelFor(credit)}
}

func TestExporter_VoteMetrics(t *testing.T) {
	e := New(testSnapshot)
	ctx := context.Background()

	require.NoError(t, e.HandleVote(ctx, voteSample(1)))
	require.NoError(t, e.HandleVote(ctx, voteSample(1)))
	require.NoError(t, e.HandleVote(ctx, voteSample(20)))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.votes.WithLabelValues("optimal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.votes.WithLabelValues("critical")))
	assert.Equal(t, 33.0, testutil.ToFloat64(e.credits))
	assert.Equal(t, 15.0, testutil.ToFloat64(e.missed))
	assert.Equal(t, 1, testutil.CollectAndCount(e.latency))
}

func TestExporter_EventAndEpochMetrics(t *testing.T) {
	e := New(testSnapshot)
	ctx := context.Background()

	require.NoError(t, e.HandleEvent(ctx, detector.Event{Reason: detector.ReasonLatencyExceeded}))
	require.NoError(t, e.HandleEvent(ctx, detector.Event{Reason: detector.ReasonLatencyExceeded}))
	require.NoError(t, e.HandleEvent(ctx, detector.Event{Reason: detector.ReasonEfficiencyBelow}))
	require.NoError(t, e.HandleEpochClosed(ctx, epoch.Window{Epoch: 11, CreditsEarned: 24, CreditsPossible: 32, VotesSeen: 2}))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.events.WithLabelValues("latency_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.events.WithLabelValues("efficiency_below_threshold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.epochCloses))
	assert.Equal(t, 0.75, testutil.ToFloat64(e.epochEff))
	assert.Equal(t, 24.0, testutil.ToFloat64(e.epochEarned))
}

func TestExporter_ResentEpochCountsOnce(t *testing.T) {
	e := New(testSnapshot)
	ctx := context.Background()

	require.NoError(t, e.HandleEpochClosed(ctx, epoch.Window{Epoch: 11, CreditsEarned: 16, CreditsPossible: 32, VotesSeen: 1}))
	require.NoError(t, e.HandleEpochClosed(ctx, epoch.Window{Epoch: 12, CreditsEarned: 16, CreditsPossible: 16, VotesSeen: 1}))
	// late vote updates the newest closed epoch
	require.NoError(t, e.HandleEpochClosed(ctx, epoch.Window{Epoch: 12, CreditsEarned: 24, CreditsPossible: 32, VotesSeen: 2}))
	// and an older one, which must not move the gauges back
	require.NoError(t, e.HandleEpochClosed(ctx, epoch.Window{Epoch: 11, CreditsEarned: 30, CreditsPossible: 32, VotesSeen: 2}))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.epochCloses))
	assert.Equal(t, 0.75, testutil.ToFloat64(e.epochEff))
	assert.Equal(t, 24.0, testutil.ToFloat64(e.epochEarned))
}

func TestSnapshotCollector(t *testing.T) {
	c := newSnapshotCollector(testSnapshot)
	expected := `
# HELP voteperfx_stream_connected Whether the account stream is connected
# TYPE voteperfx_stream_connected gauge
voteperfx_stream_connected 1
# HELP voteperfx_stream_reconnects_total Stream reconnects
# TYPE voteperfx_stream_reconnects_total counter
voteperfx_stream_reconnects_total 2
# HELP voteperfx_epoch_progress Fraction of the current epoch elapsed
# TYPE voteperfx_epoch_progress gauge
voteperfx_epoch_progress 0.35
# HELP voteperfx_epoch_onchain_credits Epoch credits reported by the vote account
# TYPE voteperfx_epoch_onchain_credits gauge
voteperfx_epoch_onchain_credits 30
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"voteperfx_stream_connected",
		"voteperfx_stream_reconnects_total",
		"voteperfx_epoch_progress",
		"voteperfx_epoch_onchain_credits",
	)
	require.NoError(t, err)
	assert.Equal(t, len(c.metrics), testutil.CollectAndCount(c))
}

func TestSnapshotCollector_NilSnapshot(t *testing.T) {
	c := newSnapshotCollector(func() *engine.Snapshot { return nil })
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestExporter_Handler(t *testing.T) {
	e := New(testSnapshot)
	require.NoError(t, e.HandleVote(context.Background(), voteSample(2)))

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `voteperfx_votes_total{level="good"} 1`)
	assert.Contains(t, string(body), "voteperfx_rolling_efficiency 0.9375")
	assert.Contains(t, string(body), "go_goroutines")
}
