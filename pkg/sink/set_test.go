package sink

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/testutil"
)

var (
	_ engine.EventSink = (*LogSink)(nil)
	_ engine.VoteSink  = (*LogSink)(nil)
	_ engine.EventSink = (*IssueLog)(nil)
	_ engine.VoteSink  = (*IssueLog)(nil)
	_ engine.EventSink = (*RedisArchive)(nil)
	_ engine.EventSink = (*ClickHouseSink)(nil)
	_ engine.VoteSink  = (*ClickHouseSink)(nil)
	_ engine.EventSink = (*KafkaSink)(nil)
)

func TestFromConfig_LogSinkOnly(t *testing.T) {
	cfg := &config.Config{VoteAccount: "vote111"}
	set, err := FromConfig(context.Background(), cfg, zerolog.Nop(), false)
	require.NoError(t, err)
	require.Len(t, set.Sinks, 1)
	assert.Equal(t, "log", set.Sinks[0].Name())
	assert.Nil(t, set.IssueLog)
	assert.Nil(t, set.Archive)
	require.NoError(t, set.Close())
}

func TestFromConfig_OptionalSinks(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		VoteAccount: "vote111",
		IssueLog: config.IssueLogConfig{
			Enabled: true,
			Dir:     t.TempDir(),
			Filter:  config.FilterConfig{MaxTVC: 15, Levels: []string{"poor"}},
		},
		Sinks: config.SinkConfig{
			RedisAddr:    mr.Addr(),
			KafkaBrokers: []string{"localhost:9092"},
			KafkaTopic:   "voteperfx.events",
		},
	}
	set, err := FromConfig(context.Background(), cfg, zerolog.Nop(), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	names := make([]string, len(set.Sinks))
	for i, s := range set.Sinks {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"log", "issue_log", "redis", "kafka"}, names)
	require.NotNil(t, set.IssueLog)
	require.NotNil(t, set.Archive)

	require.NoError(t, set.Archive.HandleEvent(context.Background(), detector.Event{ID: "ev-1"}))
	events, err := set.Archive.RecentEvents(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestFromConfig_RedisUnavailable(t *testing.T) {
	cfg := &config.Config{
		VoteAccount: "vote111",
		IssueLog:    config.IssueLogConfig{Enabled: true, Dir: t.TempDir()},
		Sinks:       config.SinkConfig{RedisAddr: "127.0.0.1:1"},
	}
	_, err := FromConfig(context.Background(), cfg, zerolog.Nop(), false)
	require.Error(t, err)
}

func TestSet_AddIncludesExternalSinks(t *testing.T) {
	set := &Set{}
	set.Add(testutil.NewCapturingSink())
	require.Len(t, set.Sinks, 1)
	require.NoError(t, set.Close())
}
