// Package detector flags late votes and sustained efficiency drops.
package detector

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/1000xsh/voteperfx/pkg/tvc"
	"github.com/1000xsh/voteperfx/pkg/vote"
)

// Reason names the condition that produced an event.
type Reason string

const (
	ReasonLatencyExceeded      Reason = "latency_exceeded"
	ReasonEfficiencyBelow      Reason = "efficiency_below_threshold"
	ReasonLatencyAndEfficiency Reason = "latency_and_efficiency"
)

// Policy holds the detection thresholds. It is fixed for a Detector's lifetime.
type Policy struct {
	// HardLatency reports every vote whose latency exceeds it.
	HardLatency uint64
	// SoftEfficiency reports when rolling efficiency drops below it.
	SoftEfficiency float64
	// Cooldown suppresses repeated efficiency reports.
	Cooldown time.Duration
}

func (p Policy) Validate() error {
	if p.HardLatency < 1 {
		return fmt.Errorf("hard latency threshold must be at least 1")
	}
	if p.SoftEfficiency <= 0 || p.SoftEfficiency > 1 {
		return fmt.Errorf("soft efficiency threshold must be in (0, 1], got %v", p.SoftEfficiency)
	}
	if p.Cooldown < 0 {
		return fmt.Errorf("cooldown cannot be negative")
	}
	return nil
}

// Event is a poor performance report for one vote.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	VoteAccount string    `json:"vote_account"`
	Epoch       uint64    `json:"epoch"`
	VotedSlot   uint64    `json:"voted_slot"`
	LandingSlot uint64    `json:"landing_slot"`
	Latency     uint64    `json:"latency"`
	Credit      uint8     `json:"credit"`
	MaxCredit   uint8     `json:"max_credit"`
	Reason      Reason    `json:"reason"`
	Efficiency  float64   `json:"efficiency"`
	Level       tvc.Level `json:"level"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s epoch=%d slot=%d latency=%d credit=%d/%d efficiency=%.1f%%",
		e.Reason, e.Epoch, e.LandingSlot, e.Latency, e.Credit, e.MaxCredit, e.Efficiency*100)
}

// EfficiencySource is the rolling window view the detector reads.
type EfficiencySource interface {
	Efficiency() float64
}

// Detector evaluates processed votes. It is not safe for concurrent use.
type Detector struct {
	policy      Policy
	voteAccount string
	now         func() time.Time

	lastEfficiencyEvent time.Time
	suppressed          uint64
}

func New(policy Policy, voteAccount string, now func() time.Time) (*Detector, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Detector{policy: policy, voteAccount: voteAccount, now: now}, nil
}

// Evaluate returns an event when the vote breaches the hard latency threshold
// or the window's efficiency is below the soft threshold outside the cooldown.
func (d *Detector) Evaluate(v vote.Record, epoch uint64, cr tvc.CreditResult, window EfficiencySource) *Event {
	now := d.now()
	efficiency := window.Efficiency()

	late := cr.Latency > d.policy.HardLatency
	low := false
	if efficiency < d.policy.SoftEfficiency {
		if d.lastEfficiencyEvent.IsZero() || now.Sub(d.lastEfficiencyEvent) >= d.policy.Cooldown {
			low = true
			d.lastEfficiencyEvent = now
		} else {
			d.suppressed++
		}
	}

	var reason Reason
	switch {
	case late && low:
		reason = ReasonLatencyAndEfficiency
	case late:
		reason = ReasonLatencyExceeded
	case low:
		reason = ReasonEfficiencyBelow
	default:
		return nil
	}

	return &Event{
		ID:          uuid.NewString(),
		Timestamp:   now,
		VoteAccount: d.voteAccount,
		Epoch:       epoch,
		VotedSlot:   v.VotedSlot,
		LandingSlot: v.LandingSlot,
		Latency:     cr.Latency,
		Credit:      cr.Credit,
		MaxCredit:   cr.MaxCredit,
		Reason:      reason,
		Efficiency:  efficiency,
		Level:       tvc.LevelFor(cr.Credit),
	}
}

// Suppressed counts efficiency triggers swallowed by the cooldown.
func (d *Detector) Suppressed() uint64 { return d.suppressed }

func (d *Detector) Policy() Policy { return d.policy }
