// Package notify publishes performance alerts and epoch summaries to a nostr
// relay.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/crypto"
	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
)

// Relay is the subset of *nostr.Relay the notifier needs.
type Relay interface {
	QuerySync(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
	Publish(ctx context.Context, event nostr.Event) error
	Close() error
}

const (
	AlertKind   = nostr.KindTextNote
	SummaryKind = 30078

	// DefaultAlertInterval is the minimum spacing between alert notes.
	DefaultAlertInterval = time.Minute
)

type Config struct {
	VoteAccount   string
	AlertInterval time.Duration
	Logger        zerolog.Logger
	Now           func() time.Time
}

// Notifier posts a kind-1 note per performance event, at most one per alert
// interval, and keeps the latest closed epoch in a replaceable kind-30078
// event addressed by the vote account.
type Notifier struct {
	relay    Relay
	keys     *crypto.KeyPair
	account  string
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastAlert  time.Time
	suppressed uint64

	// newest epoch summarised; the summary is replaceable per account
	lastEpoch  uint64
	summarised bool
}

func New(relay Relay, keys *crypto.KeyPair, cfg Config) *Notifier {
	if cfg.AlertInterval <= 0 {
		cfg.AlertInterval = DefaultAlertInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Notifier{
		relay:    relay,
		keys:     keys,
		account:  cfg.VoteAccount,
		interval: cfg.AlertInterval,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Connect dials url and returns a Notifier publishing to it.
func Connect(ctx context.Context, url string, keys *crypto.KeyPair, cfg Config) (*Notifier, error) {
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay %s: %w", url, err)
	}
	return New(relay, keys, cfg), nil
}

func (n *Notifier) Name() string { return "nostr" }

// DTag addresses the replaceable summary event.
func (n *Notifier) DTag() string { return "voteperfx:" + n.account }

func (n *Notifier) HandleEvent(ctx context.Context, ev detector.Event) error {
	n.mu.Lock()
	now := n.now()
	if !n.lastAlert.IsZero() && now.Sub(n.lastAlert) < n.interval {
		n.suppressed++
		n.mu.Unlock()
		return nil
	}
	n.lastAlert = now
	suppressed := n.suppressed
	n.suppressed = 0
	n.mu.Unlock()

	content := fmt.Sprintf("vote account %s: %s", n.account, ev.String())
	if suppressed > 0 {
		content += fmt.Sprintf(" (+%d more since last alert)", suppressed)
	}
	note := nostr.Event{
		CreatedAt: nostr.Timestamp(now.Unix()),
		Kind:      AlertKind,
		Tags: nostr.Tags{
			{"t", "voteperfx"},
			{"vote_account", n.account},
			{"reason", string(ev.Reason)},
			{"epoch", strconv.FormatUint(ev.Epoch, 10)},
			{"slot", strconv.FormatUint(ev.VotedSlot, 10)},
		},
		Content: content,
	}
	if err := n.keys.Sign(&note); err != nil {
		return fmt.Errorf("failed to sign alert: %w", err)
	}
	if err := n.relay.Publish(ctx, note); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	n.logger.Debug().Str("event_id", ev.ID).Str("note", note.ID).Msg("alert published")
	return nil
}

// HandleEpochClosed publishes w as the account's summary. A window older than
// the last one published is ignored so a late correction never replaces a
// newer summary.
func (n *Notifier) HandleEpochClosed(ctx context.Context, w epoch.Window) error {
	n.mu.Lock()
	stale := n.summarised && w.Epoch < n.lastEpoch
	n.mu.Unlock()
	if stale {
		n.logger.Debug().Uint64("epoch", w.Epoch).Msg("skipping summary for older epoch")
		return nil
	}

	body, err := json.Marshal(w)
	if err != nil {
		return err
	}
	ev := nostr.Event{
		CreatedAt: nostr.Timestamp(n.now().Unix()),
		Kind:      SummaryKind,
		Tags: nostr.Tags{
			{"d", n.DTag()},
			{"epoch", strconv.FormatUint(w.Epoch, 10)},
			{"credits", strconv.FormatUint(w.CreditsEarned, 10)},
			{"possible", strconv.FormatUint(w.CreditsPossible, 10)},
			{"votes", strconv.FormatUint(w.VotesSeen, 10)},
			{"efficiency", strconv.FormatFloat(w.Efficiency(), 'f', 4, 64)},
		},
		Content: string(body),
	}
	if err := n.keys.Sign(&ev); err != nil {
		return fmt.Errorf("failed to sign epoch summary: %w", err)
	}
	if err := n.relay.Publish(ctx, ev); err != nil {
		return fmt.Errorf("failed to publish epoch summary: %w", err)
	}
	n.mu.Lock()
	n.lastEpoch, n.summarised = w.Epoch, true
	n.mu.Unlock()
	return nil
}

// LastSummary fetches the most recent epoch summary this identity published
// for the vote account. It returns nil when there is none.
func (n *Notifier) LastSummary(ctx context.Context) (*Summary, error) {
	filter := nostr.Filter{
		Kinds:   []int{SummaryKind},
		Authors: []string{n.keys.PublicKeyHex},
		Tags:    nostr.TagMap{"d": []string{n.DTag()}},
		Limit:   1,
	}
	events, err := n.relay.QuerySync(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query epoch summaries: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return parseSummary(events[0])
}

func (n *Notifier) Close() error {
	return n.relay.Close()
}
