// Package epoch tracks per-epoch credit accumulation.
package epoch

import (
	"fmt"

	"github.com/1000xsh/voteperfx/pkg/tvc"
)

// DefaultLength is the mainnet slots-per-epoch.
const DefaultLength = 432000

// Window accumulates the credits of votes landing in [StartSlot, EndSlot].
type Window struct {
	Epoch           uint64 `json:"epoch"`
	StartSlot       uint64 `json:"start_slot"`
	EndSlot         uint64 `json:"end_slot"`
	CreditsEarned   uint64 `json:"credits_earned"`
	CreditsPossible uint64 `json:"credits_possible"`
	VotesSeen       uint64 `json:"votes_seen"`
}

// Contains reports whether slot falls inside the window.
func (w Window) Contains(slot uint64) bool {
	return slot >= w.StartSlot && slot <= w.EndSlot
}

// Efficiency is earned over possible credits, 1 when nothing was seen.
func (w Window) Efficiency() float64 {
	if w.CreditsPossible == 0 {
		return 1
	}
	return float64(w.CreditsEarned) / float64(w.CreditsPossible)
}

// Missed is the credits lost to latency.
func (w Window) Missed() uint64 {
	return w.CreditsPossible - w.CreditsEarned
}

func (w *Window) add(cr tvc.CreditResult) {
	w.CreditsEarned += uint64(cr.Credit)
	w.CreditsPossible += uint64(cr.MaxCredit)
	w.VotesSeen++
}

// Transition is emitted when a vote lands past the current window.
type Transition struct {
	Closed Window `json:"closed"`
	Opened uint64 `json:"opened"`
	// Skipped counts epochs with no observed vote between Closed and Opened.
	Skipped uint64 `json:"skipped"`
}

// Attribution says where Accumulate put a vote.
type Attribution int

const (
	AttributedCurrent Attribution = iota
	AttributedArchived
	AttributionDropped
)

func (a Attribution) String() string {
	switch a {
	case AttributedCurrent:
		return "current"
	case AttributedArchived:
		return "archived"
	default:
		return "dropped"
	}
}

// Tracker owns the live window and a bounded archive of closed ones. It is not
// safe for concurrent use.
type Tracker struct {
	length    uint64
	retention int

	current *Window
	history []Window // oldest first
}

func NewTracker(length uint64, retention int) (*Tracker, error) {
	if length == 0 {
		return nil, fmt.Errorf("epoch length must be positive")
	}
	if retention < 1 {
		return nil, fmt.Errorf("epoch retention must be at least 1, got %d", retention)
	}
	return &Tracker{length: length, retention: retention}, nil
}

// EpochOf returns the epoch containing slot.
func (t *Tracker) EpochOf(slot uint64) uint64 {
	return slot / t.length
}

func (t *Tracker) windowFor(epoch uint64) *Window {
	start := epoch * t.length
	return &Window{Epoch: epoch, StartSlot: start, EndSlot: start + t.length - 1}
}

// Observe moves the live window forward when landing is past its end. The
// first call opens the window containing landing.
func (t *Tracker) Observe(landing uint64) *Transition {
	if t.current == nil {
		t.current = t.windowFor(t.EpochOf(landing))
		return nil
	}
	if landing <= t.current.EndSlot {
		return nil
	}

	closed := *t.current
	next := t.EpochOf(landing)
	t.archive(closed)
	t.current = t.windowFor(next)

	return &Transition{
		Closed:  closed,
		Opened:  next,
		Skipped: next - closed.Epoch - 1,
	}
}

func (t *Tracker) archive(w Window) {
	t.history = append(t.history, w)
	if len(t.history) > t.retention {
		t.history = append(t.history[:0:0], t.history[len(t.history)-t.retention:]...)
	}
}

// Accumulate attributes a credit to the window covering landing. Votes older
// than the live window go to the matching archived window or are dropped.
// Callers Observe landing first so later votes never reach here.
func (t *Tracker) Accumulate(landing uint64, cr tvc.CreditResult) Attribution {
	if t.current == nil {
		t.Observe(landing)
	}
	if t.current.Contains(landing) {
		t.current.add(cr)
		return AttributedCurrent
	}
	for i := len(t.history) - 1; i >= 0; i-- {
		if t.history[i].Contains(landing) {
			t.history[i].add(cr)
			return AttributedArchived
		}
	}
	return AttributionDropped
}

// Record observes landing and then accumulates cr against it.
func (t *Tracker) Record(landing uint64, cr tvc.CreditResult) (Attribution, *Transition) {
	tr := t.Observe(landing)
	return t.Accumulate(landing, cr), tr
}

// Current returns a copy of the live window. ok is false before the first
// observation.
func (t *Tracker) Current() (w Window, ok bool) {
	if t.current == nil {
		return Window{}, false
	}
	return *t.current, true
}

// Archived returns a copy of the retained window for epoch.
func (t *Tracker) Archived(epoch uint64) (w Window, ok bool) {
	for i := len(t.history) - 1; i >= 0; i-- {
		if t.history[i].Epoch == epoch {
			return t.history[i], true
		}
	}
	return Window{}, false
}

// History returns a copy of the archived windows, oldest first.
func (t *Tracker) History() []Window {
	out := make([]Window, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Tracker) Length() uint64 { return t.length }
