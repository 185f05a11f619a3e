package stats

import (
	"time"

	"github.com/1000xsh/voteperfx/pkg/tvc"
	"github.com/1000xsh/voteperfx/pkg/vote"
)

const (
	// LowLatencySlots is the latency counted as low latency.
	LowLatencySlots = 2
	recentVotesSize = 20
	poorVotesSize   = 50
)

// VoteSample is a processed vote kept for display.
type VoteSample struct {
	Seq         uint64    `json:"seq"`
	Epoch       uint64    `json:"epoch"`
	VotedSlot   uint64    `json:"voted_slot"`
	LandingSlot uint64    `json:"landing_slot"`
	Latency     uint64    `json:"latency"`
	Credit      uint8     `json:"credit"`
	Level       tvc.Level `json:"level"`
	At          time.Time `json:"at"`
}

// Lifetime holds session-wide totals.
type Lifetime struct {
	Votes           uint64               `json:"votes"`
	CreditsEarned   uint64               `json:"credits_earned"`
	CreditsPossible uint64               `json:"credits_possible"`
	MissedCredits   uint64               `json:"missed_credits"`
	Efficiency      float64              `json:"efficiency"`
	AvgLatency      float64              `json:"avg_latency"`
	MinLatency      uint64               `json:"min_latency"`
	MaxLatency      uint64               `json:"max_latency"`
	LowLatencyVotes uint64               `json:"low_latency_votes"`
	LowLatencyPct   float64              `json:"low_latency_pct"`
	VotesPerMinute  float64              `json:"votes_per_minute"`
	Histogram       Histogram            `json:"histogram"`
	Levels          map[tvc.Level]uint64 `json:"levels"`
	StartedAt       time.Time            `json:"started_at"`
	LastVoteAt      time.Time            `json:"last_vote_at"`
	UptimeSeconds   float64              `json:"uptime_seconds"`
}

// Aggregator feeds every processed vote into the rolling window and the
// session totals. It is not safe for concurrent use.
type Aggregator struct {
	rolling *RollingStats
	now     func() time.Time
	start   time.Time

	seq           uint64
	creditsEarned uint64
	sumLatency    uint64
	minLatency    uint64
	maxLatency    uint64
	lowLatency    uint64
	hist          Histogram
	levels        [tvc.LevelOptimal + 1]uint64
	lastVoteAt    time.Time

	recent *Ring[VoteSample]
	poor   *Ring[VoteSample]
}

func NewAggregator(capacity int, maxAge time.Duration, now func() time.Time) (*Aggregator, error) {
	if now == nil {
		now = time.Now
	}
	rolling, err := NewRollingStats(capacity, maxAge, now)
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		rolling: rolling,
		now:     now,
		start:   now(),
		recent:  NewRing[VoteSample](recentVotesSize),
		poor:    NewRing[VoteSample](poorVotesSize),
	}, nil
}

// Update records one vote and returns its display sample.
func (a *Aggregator) Update(v vote.Record, epoch uint64, cr tvc.CreditResult) VoteSample {
	a.rolling.Update(cr)

	a.seq++
	if a.seq == 1 || cr.Latency < a.minLatency {
		a.minLatency = cr.Latency
	}
	if cr.Latency > a.maxLatency {
		a.maxLatency = cr.Latency
	}
	a.creditsEarned += uint64(cr.Credit)
	a.sumLatency += cr.Latency
	if cr.Latency <= LowLatencySlots {
		a.lowLatency++
	}
	a.hist.adjust(cr.Latency, 1)
	level := tvc.LevelFor(cr.Credit)
	a.levels[level]++

	sample := VoteSample{
		Seq:         a.seq,
		Epoch:       epoch,
		VotedSlot:   v.VotedSlot,
		LandingSlot: v.LandingSlot,
		Latency:     cr.Latency,
		Credit:      cr.Credit,
		Level:       level,
		At:          a.now(),
	}
	a.lastVoteAt = sample.At
	a.recent.Push(sample)
	if cr.Credit < tvc.MaxCredit {
		a.poor.Push(sample)
	}
	return sample
}

func (a *Aggregator) Rolling() *RollingStats { return a.rolling }

func (a *Aggregator) Efficiency() float64 { return a.rolling.Efficiency() }

func (a *Aggregator) Histogram() Histogram { return a.rolling.Histogram() }

// RecentVotes returns the last votes, newest first.
func (a *Aggregator) RecentVotes() []VoteSample { return a.recent.Newest() }

// PoorVotes returns the last votes below maximum credit, newest first.
func (a *Aggregator) PoorVotes() []VoteSample { return a.poor.Newest() }

func (a *Aggregator) Lifetime() Lifetime {
	now := a.now()
	lt := Lifetime{
		Votes:           a.seq,
		CreditsEarned:   a.creditsEarned,
		CreditsPossible: a.seq * tvc.MaxCredit,
		MinLatency:      a.minLatency,
		MaxLatency:      a.maxLatency,
		LowLatencyVotes: a.lowLatency,
		Histogram:       a.hist,
		Levels:          make(map[tvc.Level]uint64, len(a.levels)),
		StartedAt:       a.start,
		LastVoteAt:      a.lastVoteAt,
		UptimeSeconds:   now.Sub(a.start).Seconds(),
		Efficiency:      1,
	}
	lt.MissedCredits = lt.CreditsPossible - lt.CreditsEarned
	for l, n := range a.levels {
		lt.Levels[tvc.Level(l)] = n
	}
	if a.seq > 0 {
		lt.Efficiency = float64(lt.CreditsEarned) / float64(lt.CreditsPossible)
		lt.AvgLatency = float64(a.sumLatency) / float64(a.seq)
		lt.LowLatencyPct = float64(a.lowLatency) / float64(a.seq) * 100
	}
	if minutes := now.Sub(a.start).Minutes(); minutes > 0 {
		lt.VotesPerMinute = float64(a.seq) / minutes
	}
	return lt
}
