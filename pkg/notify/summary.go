package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/1000xsh/voteperfx/pkg/tvc"
)

// Summary is a published epoch summary read back from a relay.
type Summary struct {
	Epoch           uint64
	CreditsEarned   uint64
	CreditsPossible uint64
	VotesSeen       uint64
	PublishedAt     time.Time
}

// SummaryValidationError reports an inconsistent summary event.
type SummaryValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e SummaryValidationError) Error() string {
	return fmt.Sprintf("summary validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (s Summary) Efficiency() float64 {
	if s.CreditsPossible == 0 {
		return 1
	}
	return float64(s.CreditsEarned) / float64(s.CreditsPossible)
}

// Validate checks the credit totals agree with the vote count.
func (s Summary) Validate() error {
	if s.CreditsEarned > s.CreditsPossible {
		return SummaryValidationError{
			Field:   "credits",
			Value:   s.CreditsEarned,
			Message: fmt.Sprintf("earned exceeds possible %d", s.CreditsPossible),
		}
	}
	if s.CreditsPossible != s.VotesSeen*tvc.MaxCredit {
		return SummaryValidationError{
			Field:   "possible",
			Value:   s.CreditsPossible,
			Message: fmt.Sprintf("expected %d for %d votes", s.VotesSeen*tvc.MaxCredit, s.VotesSeen),
		}
	}
	if s.CreditsEarned < s.VotesSeen*tvc.MinCredit {
		return SummaryValidationError{
			Field:   "credits",
			Value:   s.CreditsEarned,
			Message: fmt.Sprintf("every vote earns at least %d", tvc.MinCredit),
		}
	}
	return nil
}

func parseSummary(ev *nostr.Event) (*Summary, error) {
	fields := map[string]*uint64{}
	s := &Summary{PublishedAt: ev.CreatedAt.Time().UTC()}
	fields["epoch"] = &s.Epoch
	fields["credits"] = &s.CreditsEarned
	fields["possible"] = &s.CreditsPossible
	fields["votes"] = &s.VotesSeen

	seen := map[string]bool{}
	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		dst, ok := fields[tag[0]]
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(tag[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s tag: %w", tag[0], err)
		}
		*dst = v
		seen[tag[0]] = true
	}
	for name := range fields {
		if !seen[name] {
			return nil, fmt.Errorf("missing %s tag in epoch summary", name)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
