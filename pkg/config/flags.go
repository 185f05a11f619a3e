package config

import (
	"github.com/spf13/pflag"
)

// RegisterFlags defines the CLI flags on fs. Zero values mean "unset" so
// lower precedence sources still apply.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfigFile, "", HelpConfigFile)
	fs.String(FlagVoteAccount, "", HelpVoteAccount)
	fs.String(FlagRPCWSURL, "", HelpRPCWSURL)
	fs.String(FlagCommitment, "", HelpCommitment)
	fs.Bool(FlagSimple, false, HelpSimple)
	fs.Bool(FlagDashboard, false, HelpDashboard)

	fs.Int(FlagEpochLength, 0, HelpEpochLength)
	fs.Int(FlagHardLatencyThreshold, 0, HelpHardLatencyThreshold)
	fs.Float64(FlagSoftEfficiencyThreshold, 0, HelpSoftEfficiencyThreshold)
	fs.Int(FlagCooldownSeconds, 0, HelpCooldownSeconds)
	fs.Int(FlagRollingWindow, 0, HelpRollingWindow)
	fs.Int(FlagRollingMaxAgeSeconds, 0, HelpRollingMaxAgeSeconds)
	fs.Int(FlagEpochRetention, 0, HelpEpochRetention)
	fs.Int(FlagRecentEvents, 0, HelpRecentEvents)
	fs.Int(FlagDedupCapacity, 0, HelpDedupCapacity)

	fs.Int(FlagNetworkInitialBackoffSeconds, 0, HelpNetworkInitialBackoffSeconds)
	fs.Int(FlagNetworkMaxBackoffSeconds, 0, HelpNetworkMaxBackoffSeconds)
	fs.Float64(FlagNetworkBackoffJitter, 0, HelpNetworkBackoffJitter)
	fs.Int(FlagNetworkMaxRetries, 0, HelpNetworkMaxRetries)

	fs.String(FlagLogLevel, "", HelpLogLevel)
	fs.String(FlagLogFormat, "", HelpLogFormat)
	fs.Bool(FlagIssueLogEnabled, DefaultIssueLogEnabled, HelpIssueLogEnabled)
	fs.String(FlagIssueLogDir, "", HelpIssueLogDir)

	fs.String(FlagHTTPAddr, "", HelpHTTPAddr)
	fs.String(FlagRedisAddr, "", HelpRedisAddr)
	fs.String(FlagClickHouseAddr, "", HelpClickHouseAddr)
	fs.String(FlagKafkaBrokers, "", HelpKafkaBrokers)
	fs.String(FlagNostrRelayURL, "", HelpNostrRelayURL)
}

var stringFlags = map[string]string{
	FlagVoteAccount:    KeyVoteAccount,
	FlagRPCWSURL:       KeyRPCWSURL,
	FlagCommitment:     KeyCommitment,
	FlagLogLevel:       KeyLogLevel,
	FlagLogFormat:      KeyLogFormat,
	FlagIssueLogDir:    KeyIssueLogDir,
	FlagHTTPAddr:       KeyHTTPAddr,
	FlagRedisAddr:      KeyRedisAddr,
	FlagClickHouseAddr: KeyClickHouseAddr,
	FlagKafkaBrokers:   KeyKafkaBrokers,
	FlagNostrRelayURL:  KeyNostrRelayURL,
}

var intFlags = map[string]string{
	FlagEpochLength:                  KeyEpochLength,
	FlagHardLatencyThreshold:         KeyHardLatencyThreshold,
	FlagCooldownSeconds:              KeyCooldownSeconds,
	FlagRollingWindow:                KeyRollingWindow,
	FlagRollingMaxAgeSeconds:         KeyRollingMaxAgeSeconds,
	FlagEpochRetention:               KeyEpochRetention,
	FlagRecentEvents:                 KeyRecentEvents,
	FlagDedupCapacity:                KeyDedupCapacity,
	FlagNetworkInitialBackoffSeconds: KeyNetworkInitialBackoffSeconds,
	FlagNetworkMaxBackoffSeconds:     KeyNetworkMaxBackoffSeconds,
	FlagNetworkMaxRetries:            KeyNetworkMaxRetries,
}

var floatFlags = map[string]string{
	FlagSoftEfficiencyThreshold: KeySoftEfficiencyThreshold,
	FlagNetworkBackoffJitter:    KeyNetworkBackoffJitter,
}

// flagSourceFrom collects the flags the user actually set.
func flagSourceFrom(fs *pflag.FlagSet) *FlagSource {
	flagSource := NewFlagSource()
	if fs == nil {
		return flagSource
	}

	for name, key := range stringFlags {
		if fs.Changed(name) {
			if v, err := fs.GetString(name); err == nil {
				flagSource.Set(key, v)
			}
		}
	}
	for name, key := range intFlags {
		if fs.Changed(name) {
			if v, err := fs.GetInt(name); err == nil {
				flagSource.Set(key, v)
			}
		}
	}
	for name, key := range floatFlags {
		if fs.Changed(name) {
			if v, err := fs.GetFloat64(name); err == nil {
				flagSource.Set(key, v)
			}
		}
	}
	if fs.Changed(FlagIssueLogEnabled) {
		if v, err := fs.GetBool(FlagIssueLogEnabled); err == nil {
			flagSource.Set(KeyIssueLogEnabled, v)
		}
	}

	// --simple wins over --dashboard when both are given
	if simple, _ := fs.GetBool(FlagSimple); simple {
		flagSource.Set(KeyMode, ModeSimple)
	} else if dashboard, _ := fs.GetBool(FlagDashboard); dashboard {
		flagSource.Set(KeyMode, ModeDashboard)
	}

	return flagSource
}
