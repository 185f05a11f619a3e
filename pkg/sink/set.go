package sink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/logging"
)

// Set is the sinks built from configuration. Close releases them in reverse
// order of construction.
type Set struct {
	Sinks    []engine.EventSink
	IssueLog *IssueLog
	Archive  *RedisArchive

	closers []io.Closer
}

func (s *Set) add(sink engine.EventSink) {
	s.Sinks = append(s.Sinks, sink)
	if c, ok := sink.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
}

// Add appends a sink built elsewhere, such as the nostr notifier.
func (s *Set) Add(sink engine.EventSink) { s.add(sink) }

// FromConfig builds the log sink plus every optional sink whose address is
// configured. simple adds a log line per vote.
func FromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger, simple bool) (*Set, error) {
	set := &Set{}
	set.add(NewLogSink(logger, simple))

	if cfg.IssueLog.Enabled {
		filter, err := NewFilter(cfg.IssueLog.Filter)
		if err != nil {
			return nil, err
		}
		issues, err := NewIssueLog(IssueLogConfig{
			Dir:         cfg.IssueLog.Dir,
			VoteAccount: cfg.VoteAccount,
			Filter:      filter,
			Logger:      logging.ForComponent(logger, logging.ComponentIssueLog),
		})
		if err != nil {
			return nil, err
		}
		issues.Start()
		set.IssueLog = issues
		set.add(issues)
		logger.Info().Str("dir", cfg.IssueLog.Dir).Str("filter", filter.Describe()).Msg("issue log enabled")
	}

	s := cfg.Sinks
	if s.RedisAddr != "" {
		archive, err := NewRedisArchive(ctx, NewRedisClient(s.RedisAddr, s.RedisPassword, s.RedisDB), cfg.VoteAccount, DefaultRedisEventLimit)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		set.Archive = archive
		set.add(archive)
		logger.Info().Str("addr", s.RedisAddr).Msg("redis archive enabled")
	}
	if s.ClickHouseAddr != "" {
		ch, err := NewClickHouseSink(ctx, ClickHouseConfig{
			Addr:     s.ClickHouseAddr,
			Database: s.ClickHouseDatabase,
			Username: s.ClickHouseUser,
			Password: s.ClickHousePassword,
		}, cfg.VoteAccount)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		set.add(ch)
		logger.Info().Str("addr", s.ClickHouseAddr).Msg("clickhouse sink enabled")
	}
	if len(s.KafkaBrokers) > 0 {
		set.add(NewKafkaSink(KafkaConfig{Brokers: s.KafkaBrokers, Topic: s.KafkaTopic}, cfg.VoteAccount))
		logger.Info().Strs("brokers", s.KafkaBrokers).Str("topic", s.KafkaTopic).Msg("kafka sink enabled")
	}
	return set, nil
}

// Close closes every sink, joining their errors.
func (s *Set) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	return errors.Join(errs...)
}
