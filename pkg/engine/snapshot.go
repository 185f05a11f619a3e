package engine

import (
	"sync"
	"time"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/stats"
	"github.com/1000xsh/voteperfx/pkg/vote"
)

// Counters are the loop's anomaly and connection counts.
type Counters struct {
	Updates           uint64 `json:"updates"`
	AccountUpdates    uint64 `json:"account_updates"`
	SlotUpdates       uint64 `json:"slot_updates"`
	DecodeErrors      uint64 `json:"decode_errors"`
	InvalidLatency    uint64 `json:"invalid_latency"`
	DroppedLateVotes  uint64 `json:"dropped_late_votes"`
	ArchivedLateVotes uint64 `json:"archived_late_votes"`
	UntimedVotes      uint64 `json:"untimed_votes"`
	Reconnects        uint64 `json:"reconnects"`
	SlotGaps          uint64 `json:"slot_gaps"`
	SuppressedEvents  uint64 `json:"suppressed_events"`
	SinkDrops         uint64 `json:"sink_drops"`
}

// Snapshot is a read-only view of the engine published after every update.
// Its slices are owned by the snapshot and must not be modified.
type Snapshot struct {
	Seq         uint64    `json:"seq"`
	PublishedAt time.Time `json:"published_at"`
	VoteAccount string    `json:"vote_account"`
	Connected   bool      `json:"connected"`
	CurrentSlot uint64    `json:"current_slot"`
	RootSlot    uint64    `json:"root_slot"`

	HasEpoch     bool           `json:"has_epoch"`
	Epoch        epoch.Window   `json:"epoch"`
	EpochLength  uint64         `json:"epoch_length"`
	EpochHistory []epoch.Window `json:"epoch_history"`

	Rolling  stats.RollingView `json:"rolling"`
	Lifetime stats.Lifetime    `json:"lifetime"`

	RecentVotes  []stats.VoteSample `json:"recent_votes"`
	PoorVotes    []stats.VoteSample `json:"poor_votes"`
	RecentEvents []detector.Event   `json:"recent_events"`

	// OnChainCredits is the vote program's own counter for the newest epoch.
	OnChainCredits *vote.EpochCredits `json:"on_chain_credits,omitempty"`

	Counters Counters        `json:"counters"`
	Policy   detector.Policy `json:"policy"`
}

// EpochProgress is the share of the live epoch's slots already passed.
func (s *Snapshot) EpochProgress() float64 {
	if !s.HasEpoch || s.EpochLength == 0 || s.CurrentSlot < s.Epoch.StartSlot {
		return 0
	}
	done := s.CurrentSlot - s.Epoch.StartSlot + 1
	if done > s.EpochLength {
		return 1
	}
	return float64(done) / float64(s.EpochLength)
}

// notifier wakes subscribers after each publish. Each subscriber holds a
// single-slot channel, so a slow reader sees one pending signal.
type notifier struct {
	mu   sync.Mutex
	subs []chan struct{}
}

func (n *notifier) subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

func (n *notifier) broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
