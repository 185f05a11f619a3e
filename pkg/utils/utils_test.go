package utils

import (
	"testing"
	"time"

	"github.com/1000xsh/voteperfx/pkg/tvc"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    uint64
		expected string
	}{
		{0, "0"},
		{123, "123"},
		{1234, "1,234"},
		{1234567, "1,234,567"},
	}

	for _, test := range tests {
		result := FormatNumber(test.input)
		if result != test.expected {
			t.Errorf("FormatNumber(%d) = %s; expected %s", test.input, result, test.expected)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		input    uint64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{2_400_000, "2.4M"},
	}

	for _, test := range tests {
		result := FormatCompact(test.input)
		if result != test.expected {
			t.Errorf("FormatCompact(%d) = %s; expected %s", test.input, result, test.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{90*time.Second + 500*time.Millisecond, "1m 30s"},
		{3*time.Hour + 5*time.Second, "3h 0m 5s"},
		{-time.Second, "0s"},
	}

	for _, test := range tests {
		result := FormatDuration(test.input)
		if result != test.expected {
			t.Errorf("FormatDuration(%v) = %s; expected %s", test.input, result, test.expected)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(0.9375); got != "93.8%" {
		t.Errorf("FormatPercent(0.9375) = %s; expected 93.8%%", got)
	}
}

func TestSortLevelsByCount(t *testing.T) {
	input := map[tvc.Level]uint64{
		tvc.LevelOptimal:  100,
		tvc.LevelGood:     50,
		tvc.LevelFair:     50,
		tvc.LevelCritical: 200,
	}

	result := SortLevelsByCount(input)

	expected := []LevelCount{
		{tvc.LevelCritical, 200},
		{tvc.LevelOptimal, 100},
		{tvc.LevelGood, 50},
		{tvc.LevelFair, 50},
	}

	if len(result) != len(expected) {
		t.Fatalf("expected %d results, got %d", len(expected), len(result))
	}

	for i, exp := range expected {
		if result[i] != exp {
			t.Errorf("at index %d: expected %+v, got %+v", i, exp, result[i])
		}
	}
}

func TestLevelColor(t *testing.T) {
	if LevelColor(tvc.LevelOptimal) != "green" {
		t.Errorf("optimal should be green")
	}
	if LevelColor(tvc.LevelCritical) != "red" {
		t.Errorf("critical should be red")
	}
}
