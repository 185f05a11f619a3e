// Package sink holds the engine's outbound event sinks: the daily issue log,
// the structured log sink and the optional Redis, ClickHouse and Kafka
// archives.
package sink

import (
	"fmt"
	"strings"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/stats"
	"github.com/1000xsh/voteperfx/pkg/tvc"
)

// Filter selects votes for the issue log. Zero thresholds are unset and an
// empty level list matches every level.
type Filter struct {
	MinLatency uint64
	MaxLatency uint64
	MinTVC     uint8
	MaxTVC     uint8
	Levels     []tvc.Level
}

func NewFilter(cfg config.FilterConfig) (Filter, error) {
	f := Filter{
		MinLatency: uint64(cfg.MinLatency),
		MaxLatency: uint64(cfg.MaxLatency),
		MinTVC:     uint8(cfg.MinTVC),
		MaxTVC:     uint8(cfg.MaxTVC),
	}
	for _, name := range cfg.Levels {
		level, err := tvc.ParseLevel(name)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
		}
		f.Levels = append(f.Levels, level)
	}
	return f, nil
}

func (f Filter) Matches(v stats.VoteSample) bool {
	if f.MinLatency > 0 && v.Latency < f.MinLatency {
		return false
	}
	if f.MaxLatency > 0 && v.Latency > f.MaxLatency {
		return false
	}
	if f.MinTVC > 0 && v.Credit < f.MinTVC {
		return false
	}
	if f.MaxTVC > 0 && v.Credit > f.MaxTVC {
		return false
	}
	if len(f.Levels) == 0 {
		return true
	}
	for _, level := range f.Levels {
		if level == v.Level {
			return true
		}
	}
	return false
}

// Describe renders the active criteria, e.g. "latency >= 2, levels: [poor]".
func (f Filter) Describe() string {
	var parts []string
	if f.MinLatency > 0 {
		parts = append(parts, fmt.Sprintf("latency >= %d", f.MinLatency))
	}
	if f.MaxLatency > 0 {
		parts = append(parts, fmt.Sprintf("latency <= %d", f.MaxLatency))
	}
	if f.MinTVC > 0 {
		parts = append(parts, fmt.Sprintf("tvc >= %d", f.MinTVC))
	}
	if f.MaxTVC > 0 {
		parts = append(parts, fmt.Sprintf("tvc <= %d", f.MaxTVC))
	}
	if len(f.Levels) > 0 {
		names := make([]string, len(f.Levels))
		for i, l := range f.Levels {
			names[i] = l.String()
		}
		parts = append(parts, fmt.Sprintf("levels: [%s]", strings.Join(names, ", ")))
	}
	if len(parts) == 0 {
		return "all votes"
	}
	return strings.Join(parts, ", ")
}
