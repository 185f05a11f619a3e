package sink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/logging"
	"github.com/1000xsh/voteperfx/pkg/stats"
)

// LogSink writes one structured line per event and closed epoch, and per vote
// when built with votes enabled.
type LogSink struct {
	logger zerolog.Logger
	votes  bool
}

func NewLogSink(logger zerolog.Logger, votes bool) *LogSink {
	return &LogSink{logger: logging.ForComponent(logger, logging.ComponentSink), votes: votes}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) HandleEvent(ctx context.Context, ev detector.Event) error {
	s.logger.Warn().
		Str("event_id", ev.ID).
		Str("reason", string(ev.Reason)).
		Uint64(logging.FieldEpoch, ev.Epoch).
		Uint64("voted_slot", ev.VotedSlot).
		Uint64("landing_slot", ev.LandingSlot).
		Uint64("latency", ev.Latency).
		Uint8("credit", ev.Credit).
		Stringer("level", ev.Level).
		Float64("efficiency", ev.Efficiency).
		Msg("performance event")
	return nil
}

func (s *LogSink) HandleEpochClosed(ctx context.Context, w epoch.Window) error {
	s.logger.Info().
		Uint64(logging.FieldEpoch, w.Epoch).
		Uint64("credits", w.CreditsEarned).
		Uint64("possible", w.CreditsPossible).
		Uint64("missed", w.Missed()).
		Uint64("votes", w.VotesSeen).
		Float64("efficiency", w.Efficiency()).
		Msg("epoch summary")
	return nil
}

func (s *LogSink) HandleVote(ctx context.Context, v stats.VoteSample) error {
	if !s.votes {
		return nil
	}
	s.logger.Info().
		Uint64("seq", v.Seq).
		Uint64(logging.FieldEpoch, v.Epoch).
		Uint64("voted_slot", v.VotedSlot).
		Uint64("landing_slot", v.LandingSlot).
		Uint64("latency", v.Latency).
		Uint8("credit", v.Credit).
		Stringer("level", v.Level).
		Msg("vote")
	return nil
}
