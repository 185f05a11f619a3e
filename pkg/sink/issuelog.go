package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/stats"
	"github.com/1000xsh/voteperfx/pkg/tvc"
)

const (
	IssueFilePrefix      = "performance_issues_"
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
)

// IssueEntry is one line of the daily issue file.
type IssueEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	VoteAccount   string    `json:"vote_account"`
	Epoch         uint64    `json:"epoch"`
	LandedSlot    uint64    `json:"landed_slot"`
	VotedSlot     uint64    `json:"voted_slot"`
	Latency       uint64    `json:"latency"`
	TVCCredits    uint8     `json:"tvc_credits"`
	Level         tvc.Level `json:"level"`
	TVCMultiplier float64   `json:"tvc_multiplier"`
}

type IssueLogConfig struct {
	Dir         string
	VoteAccount string
	Filter      Filter
	// BatchSize and FlushInterval default to DefaultBatchSize and
	// DefaultFlushInterval.
	BatchSize     int
	FlushInterval time.Duration
	Logger        zerolog.Logger
	Now           func() time.Time
}

// IssueLog appends every vote matching its filter to a daily JSONL file named
// performance_issues_YYYY-MM-DD.json. Entries are buffered and written when
// the batch fills, when the flush interval passes, or on Close.
type IssueLog struct {
	dir       string
	account   string
	filter    Filter
	batchSize int
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	mu        sync.Mutex
	buf       []IssueEntry
	lastFlush time.Time
	day       string
	file      *os.File
	writer    *bufio.Writer
	written   uint64

	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
}

func NewIssueLog(cfg IssueLogConfig) (*IssueLog, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("issue log directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create issue log directory: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &IssueLog{
		dir:       cfg.Dir,
		account:   cfg.VoteAccount,
		filter:    cfg.Filter,
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		logger:    cfg.Logger,
		now:       cfg.Now,
		buf:       make([]IssueEntry, 0, cfg.BatchSize),
		lastFlush: cfg.Now(),
	}, nil
}

func (l *IssueLog) Name() string { return "issue_log" }

// Start flushes the buffer every flush interval until Close.
func (l *IssueLog) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.waitGroup.Add(1)
	go func() {
		defer l.waitGroup.Done()
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.Flush(); err != nil {
					l.logger.Error().Err(err).Msg("issue log flush failed")
				}
			}
		}
	}()
}

func (l *IssueLog) HandleVote(ctx context.Context, v stats.VoteSample) error {
	if !l.filter.Matches(v) {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, IssueEntry{
		Timestamp:     v.At.UTC(),
		VoteAccount:   l.account,
		Epoch:         v.Epoch,
		LandedSlot:    v.LandingSlot,
		VotedSlot:     v.VotedSlot,
		Latency:       v.Latency,
		TVCCredits:    v.Credit,
		Level:         v.Level,
		TVCMultiplier: float64(v.Credit) / tvc.MaxCredit,
	})
	if len(l.buf) >= l.batchSize || l.now().Sub(l.lastFlush) >= l.interval {
		return l.flushLocked()
	}
	return nil
}

// HandleEvent is a no-op: the votes behind events reach the file through
// HandleVote when they match the filter.
func (l *IssueLog) HandleEvent(ctx context.Context, ev detector.Event) error { return nil }

func (l *IssueLog) HandleEpochClosed(ctx context.Context, w epoch.Window) error { return nil }

func (l *IssueLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

// Written returns how many entries reached disk.
func (l *IssueLog) Written() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

func (l *IssueLog) flushLocked() error {
	l.lastFlush = l.now()
	if len(l.buf) == 0 {
		return nil
	}
	for i, entry := range l.buf {
		if err := l.rotate(entry.Timestamp); err != nil {
			l.buf = l.buf[i:]
			return err
		}
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode issue entry: %w", err)
		}
		if _, err := l.writer.Write(append(line, '\n')); err != nil {
			l.buf = l.buf[i:]
			return fmt.Errorf("write issue entry: %w", err)
		}
		l.written++
	}
	l.buf = l.buf[:0]
	return l.writer.Flush()
}

// rotate makes the open file the one for ts's date.
func (l *IssueLog) rotate(ts time.Time) error {
	day := ts.UTC().Format(time.DateOnly)
	if l.file != nil && day == l.day {
		return nil
	}
	if err := l.closeFile(); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(ts), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open issue log: %w", err)
	}
	l.logger.Debug().Str("file", f.Name()).Msg("issue log opened")
	l.file = f
	l.writer = bufio.NewWriter(f)
	l.day = day
	return nil
}

// Path returns the issue file holding entries from ts's UTC date.
func (l *IssueLog) Path(ts time.Time) string {
	return filepath.Join(l.dir, IssueFilePrefix+ts.UTC().Format(time.DateOnly)+".json")
}

func (l *IssueLog) closeFile() error {
	if l.file == nil {
		return nil
	}
	flushErr := l.writer.Flush()
	closeErr := l.file.Close()
	l.file, l.writer = nil, nil
	if flushErr != nil {
		return fmt.Errorf("flush issue log: %w", flushErr)
	}
	return closeErr
}

// Close stops the flush loop and writes out anything still buffered.
func (l *IssueLog) Close() error {
	if l.cancel != nil {
		l.cancel()
		l.waitGroup.Wait()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.flushLocked(); err != nil {
		return err
	}
	return l.closeFile()
}
