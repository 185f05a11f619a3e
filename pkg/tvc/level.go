package tvc

import (
	"fmt"
	"strings"
)

// Level buckets a vote's credit for display and filtering.
type Level int

const (
	LevelCritical Level = iota
	LevelPoor
	LevelFair
	LevelGood
	LevelOptimal
)

var levelNames = [...]string{
	LevelCritical: "critical",
	LevelPoor:     "poor",
	LevelFair:     "fair",
	LevelGood:     "good",
	LevelOptimal:  "optimal",
}

// Levels lists every level from best to worst.
var Levels = []Level{LevelOptimal, LevelGood, LevelFair, LevelPoor, LevelCritical}

// LevelFor classifies credit: optimal 16, good 12-15, fair 8-11, poor 4-7,
// critical below 4.
func LevelFor(credit uint8) Level {
	switch {
	case credit >= MaxCredit:
		return LevelOptimal
	case credit >= 12:
		return LevelGood
	case credit >= 8:
		return LevelFair
	case credit >= 4:
		return LevelPoor
	default:
		return LevelCritical
	}
}

func (l Level) String() string {
	if l < LevelCritical || l > LevelOptimal {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel accepts a level name in any case.
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for l, n := range levelNames {
		if n == name {
			return Level(l), nil
		}
	}
	return 0, fmt.Errorf("unknown performance level %q, valid levels: optimal, good, fair, poor, critical", name)
}
