package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/stats"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// clickhouseConn is the subset of driver.Conn the sink uses.
type clickhouseConn interface {
	Exec(ctx context.Context, query string, args ...any) error
	AsyncInsert(ctx context.Context, query string, wait bool, args ...any) error
	Close() error
}

// ClickHouseSink stores votes, performance events and closed epochs in
// MergeTree tables for later analysis.
type ClickHouseSink struct {
	conn        clickhouseConn
	voteAccount string
}

func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig, voteAccount string) (*ClickHouseSink, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.Timeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return newClickHouseSink(ctx, conn, voteAccount)
}

func newClickHouseSink(ctx context.Context, conn clickhouseConn, voteAccount string) (*ClickHouseSink, error) {
	if err := createTablesIfNotExist(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &ClickHouseSink{conn: conn, voteAccount: voteAccount}, nil
}

var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS vote_latency (
		vote_account String,
		epoch UInt64,
		voted_slot UInt64,
		landing_slot UInt64,
		latency UInt64,
		credit UInt8,
		level LowCardinality(String),
		observed_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (vote_account, voted_slot)`,
	`CREATE TABLE IF NOT EXISTS performance_events (
		id String,
		vote_account String,
		epoch UInt64,
		voted_slot UInt64,
		landing_slot UInt64,
		latency UInt64,
		credit UInt8,
		reason LowCardinality(String),
		efficiency Float64,
		created_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (vote_account, created_at)`,
	`CREATE TABLE IF NOT EXISTS epoch_credits (
		vote_account String,
		epoch UInt64,
		start_slot UInt64,
		end_slot UInt64,
		credits_earned UInt64,
		credits_possible UInt64,
		votes_seen UInt64,
		efficiency Float64,
		closed_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(closed_at)
	ORDER BY (vote_account, epoch)`,
}

func createTablesIfNotExist(ctx context.Context, conn clickhouseConn) error {
	for _, ddl := range clickhouseSchema {
		if err := conn.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) HandleVote(ctx context.Context, v stats.VoteSample) error {
	query := `
		INSERT INTO vote_latency (
			vote_account, epoch, voted_slot, landing_slot, latency, credit, level, observed_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?
		)
	`
	return s.conn.AsyncInsert(ctx, query, false,
		s.voteAccount,
		v.Epoch,
		v.VotedSlot,
		v.LandingSlot,
		v.Latency,
		v.Credit,
		v.Level.String(),
		v.At,
	)
}

func (s *ClickHouseSink) HandleEvent(ctx context.Context, ev detector.Event) error {
	query := `
		INSERT INTO performance_events (
			id, vote_account, epoch, voted_slot, landing_slot, latency, credit, reason, efficiency, created_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
	`
	return s.conn.AsyncInsert(ctx, query, false,
		ev.ID,
		ev.VoteAccount,
		ev.Epoch,
		ev.VotedSlot,
		ev.LandingSlot,
		ev.Latency,
		ev.Credit,
		string(ev.Reason),
		ev.Efficiency,
		ev.Timestamp,
	)
}

// HandleEpochClosed waits for the server to acknowledge the insert.
func (s *ClickHouseSink) HandleEpochClosed(ctx context.Context, w epoch.Window) error {
	query := `
		INSERT INTO epoch_credits (
			vote_account, epoch, start_slot, end_slot, credits_earned, credits_possible, votes_seen, efficiency
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?
		)
	`
	return s.conn.AsyncInsert(ctx, query, true,
		s.voteAccount,
		w.Epoch,
		w.StartSlot,
		w.EndSlot,
		w.CreditsEarned,
		w.CreditsPossible,
		w.VotesSeen,
		w.Efficiency(),
	)
}

func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
