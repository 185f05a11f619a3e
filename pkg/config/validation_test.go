package config

import (
	"errors"
	"testing"

	"github.com/1000xsh/voteperfx/pkg/testutil"
)

func validConfig() *Config {
	return Resolve(NewConfigResolver(mapSource{
		KeyVoteAccount: testutil.TestVoteAccount.String(),
		KeyRPCWSURL:    "wss://rpc.example",
	}))
}

// mapSource serves string values only; everything else falls through to
// defaults.
type mapSource map[string]string

func (m mapSource) GetString(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
func (m mapSource) GetInt(string) (int, bool)       { return 0, false }
func (m mapSource) GetFloat(string) (float64, bool) { return 0, false }
func (m mapSource) GetBool(string) (bool, bool)     { return false, false }

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		if err := validConfig().Validate(); err != nil {
			t.Fatalf("expected no error for valid config, got %v", err)
		}
	})

	testCases := []struct {
		name   string
		field  string
		mutate func(*Config)
	}{
		{"empty config", KeyVoteAccount, func(c *Config) { *c = Config{} }},
		{"short vote account", KeyVoteAccount, func(c *Config) { c.VoteAccount = "abc" }},
		{"vote account not base58", KeyVoteAccount, func(c *Config) { c.VoteAccount = "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl" }},
		{"missing rpc url", KeyRPCWSURL, func(c *Config) { c.RPCWSURL = "" }},
		{"http rpc url", KeyRPCWSURL, func(c *Config) { c.RPCWSURL = "https://rpc.example" }},
		{"bad commitment", KeyCommitment, func(c *Config) { c.Commitment = "rooted" }},
		{"bad mode", KeyMode, func(c *Config) { c.Mode = "web" }},
		{"zero epoch length", KeyEpochLength, func(c *Config) { c.Engine.EpochLength = 0 }},
		{"zero hard latency", KeyHardLatencyThreshold, func(c *Config) { c.Engine.HardLatencyThreshold = 0 }},
		{"soft efficiency above one", KeySoftEfficiencyThreshold, func(c *Config) { c.Engine.SoftEfficiencyThreshold = 1.2 }},
		{"negative cooldown", KeyCooldownSeconds, func(c *Config) { c.Engine.CooldownSeconds = -1 }},
		{"zero rolling window", KeyRollingWindow, func(c *Config) { c.Engine.RollingWindow = 0 }},
		{"small dedup capacity", KeyDedupCapacity, func(c *Config) { c.Engine.DedupCapacity = 10 }},
		{"max backoff below initial", KeyNetworkMaxBackoffSeconds, func(c *Config) { c.Network.MaxBackoffSeconds = 0 }},
		{"jitter above one", KeyNetworkBackoffJitter, func(c *Config) { c.Network.BackoffJitter = 2 }},
		{"bad log level", KeyLogLevel, func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", KeyLogFormat, func(c *Config) { c.Logging.Format = "xml" }},
		{"max tvc above 16", KeyFilterMaxTVC, func(c *Config) { c.IssueLog.Filter.MaxTVC = 17 }},
		{"min latency above max", KeyFilterMinLatency, func(c *Config) {
			c.IssueLog.Filter.MinLatency = 9
			c.IssueLog.Filter.MaxLatency = 3
		}},
		{"unknown level", KeyFilterLevels, func(c *Config) { c.IssueLog.Filter.Levels = []string{"awful"} }},
		{"nostr relay without key", KeyNostrSecretKey, func(c *Config) { c.Sinks.NostrRelayURL = "wss://relay.example" }},
		{"nostr bad key", KeyNostrSecretKey, func(c *Config) {
			c.Sinks.NostrRelayURL = "wss://relay.example"
			c.Sinks.NostrSecretKey = "nope"
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, ve.Field)
			}
		})
	}

	t.Run("nostr with nsec", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sinks.NostrRelayURL = "wss://relay.example"
		cfg.Sinks.NostrSecretKey = testutil.TestSK
		if err := cfg.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}
