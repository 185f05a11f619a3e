package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	VoteAccount string
	RPCWSURL    string
	Commitment  string
	Mode        string
	Engine      EngineConfig
	Network     NetworkConfig
	Logging     LoggingConfig
	IssueLog    IssueLogConfig
	Sinks       SinkConfig
}

// EngineConfig is the detection and aggregation policy.
type EngineConfig struct {
	EpochLength             int
	HardLatencyThreshold    int
	SoftEfficiencyThreshold float64
	CooldownSeconds         int
	RollingWindow           int
	RollingMaxAgeSeconds    int
	EpochRetention          int
	RecentEvents            int
	DedupCapacity           int
}

type NetworkConfig struct {
	InitialBackoffSeconds int
	MaxBackoffSeconds     int
	BackoffJitter         float64
	MaxRetries            int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type IssueLogConfig struct {
	Enabled bool
	Dir     string
	Filter  FilterConfig
}

// FilterConfig selects which votes land in the issue log. Zero means unset.
type FilterConfig struct {
	MinLatency int
	MaxLatency int
	MinTVC     int
	MaxTVC     int
	Levels     []string
}

type SinkConfig struct {
	HTTPAddr           string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	KafkaBrokers       []string
	KafkaTopic         string
	NostrRelayURL      string
	NostrSecretKey     string
}

// Load builds the configuration from CLI flags, the environment (including an
// optional .env file) and the TOML config file, in that order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	flagSource := flagSourceFrom(fs)
	env := &EnvSource{}

	path := DefaultConfigFile
	if fs != nil && fs.Changed(FlagConfigFile) {
		path, _ = fs.GetString(FlagConfigFile)
	} else if p, ok := env.GetString(KeyConfigFile); ok {
		path = p
	}
	fileSource, err := NewFileSource(path)
	if err != nil {
		return nil, err
	}

	cfg := Resolve(NewConfigResolver(flagSource, env, fileSource))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds a Config from resolver without validating it.
func Resolve(resolver *ConfigResolver) *Config {
	return &Config{
		VoteAccount: resolver.ResolveString(KeyVoteAccount, ""),
		RPCWSURL:    resolver.ResolveString(KeyRPCWSURL, ""),
		Commitment:  resolver.ResolveString(KeyCommitment, DefaultCommitment),
		Mode:        resolver.ResolveString(KeyMode, DefaultMode),
		Engine: EngineConfig{
			EpochLength:             resolver.ResolveInt(KeyEpochLength, DefaultEpochLength),
			HardLatencyThreshold:    resolver.ResolveInt(KeyHardLatencyThreshold, DefaultHardLatencyThreshold),
			SoftEfficiencyThreshold: resolver.ResolveFloat(KeySoftEfficiencyThreshold, DefaultSoftEfficiencyThreshold),
			CooldownSeconds:         resolver.ResolveInt(KeyCooldownSeconds, DefaultCooldownSeconds),
			RollingWindow:           resolver.ResolveInt(KeyRollingWindow, DefaultRollingWindow),
			RollingMaxAgeSeconds:    resolver.ResolveInt(KeyRollingMaxAgeSeconds, DefaultRollingMaxAgeSeconds),
			EpochRetention:          resolver.ResolveInt(KeyEpochRetention, DefaultEpochRetention),
			RecentEvents:            resolver.ResolveInt(KeyRecentEvents, DefaultRecentEvents),
			DedupCapacity:           resolver.ResolveInt(KeyDedupCapacity, DefaultDedupCapacity),
		},
		Network: NetworkConfig{
			InitialBackoffSeconds: resolver.ResolveInt(KeyNetworkInitialBackoffSeconds, DefaultNetworkInitialBackoffSeconds),
			MaxBackoffSeconds:     resolver.ResolveInt(KeyNetworkMaxBackoffSeconds, DefaultNetworkMaxBackoffSeconds),
			BackoffJitter:         resolver.ResolveFloat(KeyNetworkBackoffJitter, DefaultNetworkBackoffJitter),
			MaxRetries:            resolver.ResolveInt(KeyNetworkMaxRetries, DefaultNetworkMaxRetries),
		},
		Logging: LoggingConfig{
			Level:  resolver.ResolveString(KeyLogLevel, DefaultLogLevel),
			Format: resolver.ResolveString(KeyLogFormat, DefaultLogFormat),
		},
		IssueLog: IssueLogConfig{
			Enabled: resolver.ResolveBool(KeyIssueLogEnabled, DefaultIssueLogEnabled),
			Dir:     resolver.ResolveString(KeyIssueLogDir, DefaultIssueLogDir),
			Filter: FilterConfig{
				MinLatency: resolver.ResolveInt(KeyFilterMinLatency, DefaultFilterMinLatency),
				MaxLatency: resolver.ResolveInt(KeyFilterMaxLatency, DefaultFilterMaxLatency),
				MinTVC:     resolver.ResolveInt(KeyFilterMinTVC, DefaultFilterMinTVC),
				MaxTVC:     resolver.ResolveInt(KeyFilterMaxTVC, DefaultFilterMaxTVC),
				Levels:     resolver.ResolveStringSlice(KeyFilterLevels, DefaultFilterLevels),
			},
		},
		Sinks: SinkConfig{
			HTTPAddr:           resolver.ResolveString(KeyHTTPAddr, ""),
			RedisAddr:          resolver.ResolveString(KeyRedisAddr, ""),
			RedisPassword:      resolver.ResolveString(KeyRedisPassword, ""),
			RedisDB:            resolver.ResolveInt(KeyRedisDB, DefaultRedisDB),
			ClickHouseAddr:     resolver.ResolveString(KeyClickHouseAddr, ""),
			ClickHouseDatabase: resolver.ResolveString(KeyClickHouseDatabase, DefaultClickHouseDatabase),
			ClickHouseUser:     resolver.ResolveString(KeyClickHouseUser, DefaultClickHouseUser),
			ClickHousePassword: resolver.ResolveString(KeyClickHousePassword, ""),
			KafkaBrokers:       resolver.ResolveStringSlice(KeyKafkaBrokers, ""),
			KafkaTopic:         resolver.ResolveString(KeyKafkaTopic, DefaultKafkaTopic),
			NostrRelayURL:      resolver.ResolveString(KeyNostrRelayURL, ""),
			NostrSecretKey:     resolver.ResolveString(KeyNostrSecretKey, ""),
		},
	}
}
