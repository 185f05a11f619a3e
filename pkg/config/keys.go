package config

// Configuration key constants
// Keys double as environment variable names. The file source maps them to
// lower-case TOML keys by stripping EnvPrefix.

const EnvPrefix = "VOTEPERFX_"

const (
	// Core keys
	KeyVoteAccount = "VOTEPERFX_VOTE_ACCOUNT"
	KeyRPCWSURL    = "VOTEPERFX_RPC_WS_URL"
	KeyCommitment  = "VOTEPERFX_COMMITMENT"
	KeyMode        = "VOTEPERFX_MODE"
	KeyConfigFile  = "VOTEPERFX_CONFIG"

	// Engine policy keys
	KeyEpochLength             = "VOTEPERFX_EPOCH_LENGTH"
	KeyHardLatencyThreshold    = "VOTEPERFX_HARD_LATENCY_THRESHOLD"
	KeySoftEfficiencyThreshold = "VOTEPERFX_SOFT_EFFICIENCY_THRESHOLD"
	KeyCooldownSeconds         = "VOTEPERFX_COOLDOWN_SECONDS"
	KeyRollingWindow           = "VOTEPERFX_ROLLING_WINDOW"
	KeyRollingMaxAgeSeconds    = "VOTEPERFX_ROLLING_MAX_AGE_SECONDS"
	KeyEpochRetention          = "VOTEPERFX_EPOCH_RETENTION"
	KeyRecentEvents            = "VOTEPERFX_RECENT_EVENTS"
	KeyDedupCapacity           = "VOTEPERFX_DEDUP_CAPACITY"

	// Network configuration keys
	KeyNetworkInitialBackoffSeconds = "VOTEPERFX_INITIAL_BACKOFF_SECONDS"
	KeyNetworkMaxBackoffSeconds     = "VOTEPERFX_MAX_BACKOFF_SECONDS"
	KeyNetworkBackoffJitter         = "VOTEPERFX_BACKOFF_JITTER"
	KeyNetworkMaxRetries            = "VOTEPERFX_MAX_RETRIES"

	// Logging keys
	KeyLogLevel  = "VOTEPERFX_LOG_LEVEL"
	KeyLogFormat = "VOTEPERFX_LOG_FORMAT"

	// Issue log keys
	KeyIssueLogEnabled  = "VOTEPERFX_ISSUE_LOG_ENABLED"
	KeyIssueLogDir      = "VOTEPERFX_ISSUE_LOG_DIR"
	KeyFilterMinLatency = "VOTEPERFX_FILTER_MIN_LATENCY"
	KeyFilterMaxLatency = "VOTEPERFX_FILTER_MAX_LATENCY"
	KeyFilterMinTVC     = "VOTEPERFX_FILTER_MIN_TVC"
	KeyFilterMaxTVC     = "VOTEPERFX_FILTER_MAX_TVC"
	KeyFilterLevels     = "VOTEPERFX_FILTER_LEVELS"

	// Sink keys
	KeyHTTPAddr           = "VOTEPERFX_HTTP_ADDR"
	KeyRedisAddr          = "VOTEPERFX_REDIS_ADDR"
	KeyRedisPassword      = "VOTEPERFX_REDIS_PASSWORD"
	KeyRedisDB            = "VOTEPERFX_REDIS_DB"
	KeyClickHouseAddr     = "VOTEPERFX_CLICKHOUSE_ADDR"
	KeyClickHouseDatabase = "VOTEPERFX_CLICKHOUSE_DATABASE"
	KeyClickHouseUser     = "VOTEPERFX_CLICKHOUSE_USER"
	KeyClickHousePassword = "VOTEPERFX_CLICKHOUSE_PASSWORD"
	KeyKafkaBrokers       = "VOTEPERFX_KAFKA_BROKERS"
	KeyKafkaTopic         = "VOTEPERFX_KAFKA_TOPIC"
	KeyNostrRelayURL      = "VOTEPERFX_NOSTR_RELAY_URL"
	KeyNostrSecretKey     = "VOTEPERFX_NOSTR_SECRET_KEY"
)

// fileAliases maps legacy config.toml keys onto current ones.
var fileAliases = map[string]string{
	KeyRPCWSURL: "grpc_url",
}

// Default values for configuration
const (
	DefaultCommitment = "confirmed"
	DefaultMode       = ModeDashboard
	DefaultConfigFile = "config.toml"

	// Engine defaults
	DefaultEpochLength             = 432000
	DefaultHardLatencyThreshold    = 8
	DefaultSoftEfficiencyThreshold = 0.90
	DefaultCooldownSeconds         = 300
	DefaultRollingWindow           = 128
	DefaultRollingMaxAgeSeconds    = 0
	DefaultEpochRetention          = 5
	DefaultRecentEvents            = 50
	DefaultDedupCapacity           = 4096

	// Network defaults
	DefaultNetworkInitialBackoffSeconds = 1
	DefaultNetworkMaxBackoffSeconds     = 60
	DefaultNetworkBackoffJitter         = 0.2
	DefaultNetworkMaxRetries            = 0

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultIssueLogEnabled  = true
	DefaultIssueLogDir      = "./performance_issues"
	DefaultFilterMinLatency = 1
	DefaultFilterMaxLatency = 0
	DefaultFilterMinTVC     = 0
	DefaultFilterMaxTVC     = 15
	DefaultFilterLevels     = "poor,critical"

	DefaultRedisDB            = 0
	DefaultClickHouseDatabase = "voteperfx"
	DefaultClickHouseUser     = "default"
	DefaultKafkaTopic         = "voteperfx.events"
)

// Run modes
const (
	ModeDashboard = "dashboard"
	ModeSimple    = "simple"
)

// CLI flag name constants
const (
	FlagConfigFile                   = "config"
	FlagVoteAccount                  = "vote-account"
	FlagRPCWSURL                     = "rpc-ws-url"
	FlagCommitment                   = "commitment"
	FlagSimple                       = "simple"
	FlagDashboard                    = "dashboard"
	FlagEpochLength                  = "epoch-length"
	FlagHardLatencyThreshold         = "hard-latency"
	FlagSoftEfficiencyThreshold      = "soft-efficiency"
	FlagCooldownSeconds              = "cooldown"
	FlagRollingWindow                = "rolling-window"
	FlagRollingMaxAgeSeconds         = "rolling-max-age"
	FlagEpochRetention               = "epoch-retention"
	FlagRecentEvents                 = "recent-events"
	FlagDedupCapacity                = "dedup-capacity"
	FlagNetworkInitialBackoffSeconds = "initial-backoff"
	FlagNetworkMaxBackoffSeconds     = "max-backoff"
	FlagNetworkBackoffJitter         = "backoff-jitter"
	FlagNetworkMaxRetries            = "max-retries"
	FlagLogLevel                     = "log-level"
	FlagLogFormat                    = "log-format"
	FlagIssueLogEnabled              = "issue-log"
	FlagIssueLogDir                  = "issue-log-dir"
	FlagHTTPAddr                     = "http-addr"
	FlagRedisAddr                    = "redis-addr"
	FlagClickHouseAddr               = "clickhouse-addr"
	FlagKafkaBrokers                 = "kafka-brokers"
	FlagNostrRelayURL                = "nostr-relay-url"
)

// Help message constants
const (
	AppName        = "voteperfx"
	AppDescription = "Track timely vote credits and vote landing latency for a Solana validator"

	HelpConfigFile                   = "Path to a TOML config file"
	HelpVoteAccount                  = "Vote account to monitor (required)"
	HelpRPCWSURL                     = "RPC websocket endpoint (required)"
	HelpCommitment                   = "Subscription commitment level"
	HelpSimple                       = "Log one line per vote instead of the dashboard"
	HelpDashboard                    = "Run the terminal dashboard"
	HelpEpochLength                  = "Slots per epoch"
	HelpHardLatencyThreshold         = "Report every vote with latency above this many slots"
	HelpSoftEfficiencyThreshold      = "Report when rolling efficiency drops below this ratio"
	HelpCooldownSeconds              = "Seconds between efficiency reports"
	HelpRollingWindow                = "Votes kept in the rolling window"
	HelpRollingMaxAgeSeconds         = "Max age of rolling window entries in seconds (0 disables)"
	HelpEpochRetention               = "Closed epochs kept in history"
	HelpRecentEvents                 = "Performance events kept for display"
	HelpDedupCapacity                = "Vote slots remembered for deduplication"
	HelpNetworkInitialBackoffSeconds = "Initial reconnect backoff in seconds"
	HelpNetworkMaxBackoffSeconds     = "Max reconnect backoff in seconds"
	HelpNetworkBackoffJitter         = "Reconnect backoff jitter"
	HelpNetworkMaxRetries            = "Reconnect attempts before giving up (0 retries forever)"
	HelpLogLevel                     = "Log level (debug, info, warn, error)"
	HelpLogFormat                    = "Log format (console, json)"
	HelpIssueLogEnabled              = "Write matching votes to the daily issue log"
	HelpIssueLogDir                  = "Directory for daily issue logs"
	HelpHTTPAddr                     = "Serve snapshot, metrics and websocket on this address"
	HelpRedisAddr                    = "Redis address for the epoch archive"
	HelpClickHouseAddr               = "ClickHouse address for the analytics archive"
	HelpKafkaBrokers                 = "Comma separated Kafka brokers for the event stream"
	HelpNostrRelayURL                = "Nostr relay for alerts and epoch summaries"

	HelpNote = "CLI options override environment variables, which override the config file"
)
