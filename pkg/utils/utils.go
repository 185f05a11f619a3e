package utils

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/1000xsh/voteperfx/pkg/tvc"
)

type LevelCount struct {
	Level tvc.Level
	Count uint64
}

// SortLevelsByCount sorts levels by count (descending), then from best to worst
func SortLevelsByCount(levels map[tvc.Level]uint64) []LevelCount {
	var counts []LevelCount
	for level, count := range levels {
		counts = append(counts, LevelCount{Level: level, Count: count})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count == counts[j].Count {
			return counts[i].Level > counts[j].Level
		}
		return counts[i].Count > counts[j].Count
	})

	return counts
}

// FormatNumber formats a number with comma separators for readability
func FormatNumber(n uint64) string {
	str := strconv.FormatUint(n, 10)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// FormatCompact abbreviates large counts, e.g. 1500 -> 1.5K
func FormatCompact(n uint64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatUint(n, 10)
	}
}

// FormatDuration renders whole seconds as "1h 2m 3s", dropping leading zero units
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatPercent renders a 0..1 ratio as a percentage with one decimal
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// LevelColor returns the terminal color name used for a performance level
func LevelColor(level tvc.Level) string {
	switch level {
	case tvc.LevelOptimal:
		return "green"
	case tvc.LevelGood:
		return "lime"
	case tvc.LevelFair:
		return "yellow"
	case tvc.LevelPoor:
		return "orange"
	default:
		return "red"
	}
}
