package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/gagliardetto/solana-go"

	"github.com/1000xsh/voteperfx/pkg/crypto"
	"github.com/1000xsh/voteperfx/pkg/logging"
	"github.com/1000xsh/voteperfx/pkg/tvc"
)

// ErrConfigInvalid is wrapped by every validation failure.
var ErrConfigInvalid = errors.New("config invalid")

// ValidationError represents a configuration value that is out of range.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s (%v): %s", ErrConfigInvalid, e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrConfigInvalid }

func invalid(field string, value interface{}, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every field and returns the first violation.
func (c *Config) Validate() error {
	if c.VoteAccount == "" {
		return invalid(KeyVoteAccount, c.VoteAccount, "is required")
	}
	if n := len(c.VoteAccount); n < 32 || n > 44 {
		return invalid(KeyVoteAccount, c.VoteAccount, "should be 32-44 characters, got %d", n)
	}
	if _, err := solana.PublicKeyFromBase58(c.VoteAccount); err != nil {
		return invalid(KeyVoteAccount, c.VoteAccount, "not a base58 public key: %v", err)
	}

	if c.RPCWSURL == "" {
		return invalid(KeyRPCWSURL, c.RPCWSURL, "is required")
	}
	u, err := url.Parse(c.RPCWSURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return invalid(KeyRPCWSURL, c.RPCWSURL, "must be a ws:// or wss:// URL")
	}

	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return invalid(KeyCommitment, c.Commitment, "must be processed, confirmed or finalized")
	}
	switch c.Mode {
	case ModeDashboard, ModeSimple:
	default:
		return invalid(KeyMode, c.Mode, "must be %s or %s", ModeDashboard, ModeSimple)
	}

	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Network.validate(); err != nil {
		return err
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return invalid(KeyLogLevel, c.Logging.Level, "not a log level")
	}
	switch c.Logging.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return invalid(KeyLogFormat, c.Logging.Format, "must be console or json")
	}
	if err := c.Sinks.validate(); err != nil {
		return err
	}
	return c.IssueLog.Filter.validate()
}

func (s SinkConfig) validate() error {
	if s.NostrRelayURL != "" {
		u, err := url.Parse(s.NostrRelayURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return invalid(KeyNostrRelayURL, s.NostrRelayURL, "must be a ws:// or wss:// URL")
		}
		if s.NostrSecretKey == "" {
			return invalid(KeyNostrSecretKey, "", "is required when a nostr relay is set")
		}
		if _, err := crypto.ParseKeyPair(s.NostrSecretKey); err != nil {
			return invalid(KeyNostrSecretKey, "<redacted>", "%v", err)
		}
	}
	if s.RedisDB < 0 {
		return invalid(KeyRedisDB, s.RedisDB, "cannot be negative")
	}
	if len(s.KafkaBrokers) > 0 && s.KafkaTopic == "" {
		return invalid(KeyKafkaTopic, s.KafkaTopic, "is required when kafka brokers are set")
	}
	return nil
}

func (e EngineConfig) validate() error {
	if e.EpochLength <= 0 {
		return invalid(KeyEpochLength, e.EpochLength, "must be positive")
	}
	if e.HardLatencyThreshold < 1 {
		return invalid(KeyHardLatencyThreshold, e.HardLatencyThreshold, "must be at least 1")
	}
	if e.SoftEfficiencyThreshold <= 0 || e.SoftEfficiencyThreshold > 1 {
		return invalid(KeySoftEfficiencyThreshold, e.SoftEfficiencyThreshold, "must be in (0, 1]")
	}
	if e.CooldownSeconds < 0 {
		return invalid(KeyCooldownSeconds, e.CooldownSeconds, "cannot be negative")
	}
	if e.RollingWindow <= 0 {
		return invalid(KeyRollingWindow, e.RollingWindow, "must be positive")
	}
	if e.RollingMaxAgeSeconds < 0 {
		return invalid(KeyRollingMaxAgeSeconds, e.RollingMaxAgeSeconds, "cannot be negative")
	}
	if e.EpochRetention < 1 {
		return invalid(KeyEpochRetention, e.EpochRetention, "must be at least 1")
	}
	if e.RecentEvents < 1 {
		return invalid(KeyRecentEvents, e.RecentEvents, "must be at least 1")
	}
	if e.DedupCapacity < 64 {
		return invalid(KeyDedupCapacity, e.DedupCapacity, "must be at least 64")
	}
	return nil
}

func (n NetworkConfig) validate() error {
	if n.InitialBackoffSeconds <= 0 {
		return invalid(KeyNetworkInitialBackoffSeconds, n.InitialBackoffSeconds, "must be positive")
	}
	if n.MaxBackoffSeconds < n.InitialBackoffSeconds {
		return invalid(KeyNetworkMaxBackoffSeconds, n.MaxBackoffSeconds, "must not be below the initial backoff (%d)", n.InitialBackoffSeconds)
	}
	if n.BackoffJitter < 0 || n.BackoffJitter > 1 {
		return invalid(KeyNetworkBackoffJitter, n.BackoffJitter, "must be in [0, 1]")
	}
	if n.MaxRetries < 0 {
		return invalid(KeyNetworkMaxRetries, n.MaxRetries, "cannot be negative")
	}
	return nil
}

func (f FilterConfig) validate() error {
	if f.MinLatency < 0 || f.MaxLatency < 0 || f.MinTVC < 0 || f.MaxTVC < 0 {
		return invalid("filter", f, "thresholds cannot be negative")
	}
	if f.MinLatency > 0 && f.MaxLatency > 0 && f.MinLatency > f.MaxLatency {
		return invalid(KeyFilterMinLatency, f.MinLatency, "greater than max latency %d", f.MaxLatency)
	}
	if f.MaxTVC > tvc.MaxCredit {
		return invalid(KeyFilterMaxTVC, f.MaxTVC, "cannot exceed %d", tvc.MaxCredit)
	}
	if f.MinTVC > 0 && f.MaxTVC > 0 && f.MinTVC > f.MaxTVC {
		return invalid(KeyFilterMinTVC, f.MinTVC, "greater than max tvc %d", f.MaxTVC)
	}
	for _, level := range f.Levels {
		if _, err := tvc.ParseLevel(level); err != nil {
			return invalid(KeyFilterLevels, level, "%v", err)
		}
	}
	return nil
}
