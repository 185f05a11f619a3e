// Package logging builds the zerolog loggers shared by every component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger passed to every component by value.
type Logger = zerolog.Logger

// Log field names.
const (
	FieldComponent   = "component"
	FieldVoteAccount = "vote_account"
	FieldEpoch       = "epoch"
	FieldSlot        = "slot"
	FieldSink        = "sink"
)

// Component names.
const (
	ComponentEngine    = "engine"
	ComponentStream    = "stream"
	ComponentSink      = "sink"
	ComponentIssueLog  = "issue_log"
	ComponentNotify    = "notify"
	ComponentServer    = "server"
	ComponentExporter  = "exporter"
	ComponentDashboard = "dashboard"
)

// Formats accepted by Config.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatNop     = "nop"
)

type Config struct {
	Level  string
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatConsole}
}

// NewLoggerFromConfig returns a timestamped logger. An unknown level falls
// back to info.
func NewLoggerFromConfig(cfg Config) Logger {
	if strings.EqualFold(cfg.Format, FormatNop) {
		return zerolog.Nop()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !strings.EqualFold(cfg.Format, FormatJSON) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ForComponent tags logger with the component name.
func ForComponent(logger Logger, component string) Logger {
	return logger.With().Str(FieldComponent, component).Logger()
}

// ValidLevel reports whether name parses as a zerolog level.
func ValidLevel(name string) bool {
	_, err := zerolog.ParseLevel(strings.ToLower(name))
	return err == nil && name != ""
}
