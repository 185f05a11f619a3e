// Package stats aggregates vote credits over a rolling window and the session.
package stats

import (
	"fmt"
	"time"

	"github.com/1000xsh/voteperfx/pkg/tvc"
)

// Histogram counts votes by the latency bands of the credit curve.
type Histogram struct {
	Instant uint64 `json:"instant"` // latency <= 1
	Delayed uint64 `json:"delayed"` // 2..16
	Late    uint64 `json:"late"`    // > 16
}

func (h *Histogram) adjust(latency uint64, delta int64) {
	var bucket *uint64
	switch {
	case latency <= tvc.GraceSlots:
		bucket = &h.Instant
	case latency <= tvc.MaxCredit:
		bucket = &h.Delayed
	default:
		bucket = &h.Late
	}
	*bucket = uint64(int64(*bucket) + delta)
}

func (h Histogram) Total() uint64 { return h.Instant + h.Delayed + h.Late }

type entry struct {
	latency uint64
	credit  uint8
	at      time.Time
}

// RollingStats keeps the most recent votes in a fixed-capacity circular
// buffer, optionally also bounded by age. Running sums always equal the totals
// over the buffered entries.
type RollingStats struct {
	buf    []entry
	head   int // oldest entry
	count  int
	maxAge time.Duration
	now    func() time.Time

	sumLatency uint64
	sumCredit  uint64
	hist       Histogram
}

// NewRollingStats returns an empty window. maxAge of zero disables age
// eviction.
func NewRollingStats(capacity int, maxAge time.Duration, now func() time.Time) (*RollingStats, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("rolling window capacity must be positive, got %d", capacity)
	}
	if now == nil {
		now = time.Now
	}
	return &RollingStats{
		buf:    make([]entry, capacity),
		maxAge: maxAge,
		now:    now,
	}, nil
}

// Update pushes cr, evicting the oldest entry when full.
func (r *RollingStats) Update(cr tvc.CreditResult) {
	now := r.now()
	r.expire(now)
	if r.count == len(r.buf) {
		r.evict()
	}
	tail := (r.head + r.count) % len(r.buf)
	r.buf[tail] = entry{latency: cr.Latency, credit: cr.Credit, at: now}
	r.count++
	r.sumLatency += cr.Latency
	r.sumCredit += uint64(cr.Credit)
	r.hist.adjust(cr.Latency, 1)
}

// Expire drops entries older than the max age.
func (r *RollingStats) Expire() {
	r.expire(r.now())
}

func (r *RollingStats) expire(now time.Time) {
	if r.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-r.maxAge)
	for r.count > 0 && r.buf[r.head].at.Before(cutoff) {
		r.evict()
	}
}

func (r *RollingStats) evict() {
	old := r.buf[r.head]
	r.sumLatency -= old.latency
	r.sumCredit -= uint64(old.credit)
	r.hist.adjust(old.latency, -1)
	r.buf[r.head] = entry{}
	r.head = (r.head + 1) % len(r.buf)
	r.count--
}

// Efficiency is sumCredit / (count * MaxCredit). An empty window reports 1,
// meaning no evidence of degradation.
func (r *RollingStats) Efficiency() float64 {
	if r.count == 0 {
		return 1
	}
	return float64(r.sumCredit) / float64(uint64(r.count)*tvc.MaxCredit)
}

func (r *RollingStats) AvgLatency() float64 {
	if r.count == 0 {
		return 0
	}
	return float64(r.sumLatency) / float64(r.count)
}

func (r *RollingStats) Histogram() Histogram { return r.hist }
func (r *RollingStats) Count() int           { return r.count }
func (r *RollingStats) Capacity() int        { return len(r.buf) }
func (r *RollingStats) SumCredit() uint64    { return r.sumCredit }
func (r *RollingStats) SumLatency() uint64   { return r.sumLatency }

// Credits returns the buffered credits, oldest first.
func (r *RollingStats) Credits() []int {
	out := make([]int, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = int(r.buf[(r.head+i)%len(r.buf)].credit)
	}
	return out
}

// RollingView is an immutable copy of the window's aggregates.
type RollingView struct {
	Count      int       `json:"count"`
	Capacity   int       `json:"capacity"`
	SumLatency uint64    `json:"sum_latency"`
	SumCredit  uint64    `json:"sum_credit"`
	Efficiency float64   `json:"efficiency"`
	AvgLatency float64   `json:"avg_latency"`
	Histogram  Histogram `json:"histogram"`
	Credits    []int     `json:"credits"`
}

func (r *RollingStats) View() RollingView {
	return RollingView{
		Count:      r.count,
		Capacity:   len(r.buf),
		SumLatency: r.sumLatency,
		SumCredit:  r.sumCredit,
		Efficiency: r.Efficiency(),
		AvgLatency: r.AvgLatency(),
		Histogram:  r.hist,
		Credits:    r.Credits(),
	}
}
