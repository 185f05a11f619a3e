package config

import (
	"os"
	"reflect"
	"testing"

	"github.com/1000xsh/voteperfx/pkg/testutil"
)

func setenv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults from env", func(t *testing.T) {
		setenv(t, map[string]string{
			KeyVoteAccount: testutil.TestVoteAccount.String(),
			KeyRPCWSURL:    "wss://rpc.example",
			KeyConfigFile:  "absent.toml",
		})

		cfg, err := Load(nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.RPCWSURL != "wss://rpc.example" {
			t.Errorf("expected RPCWSURL 'wss://rpc.example', got %s", cfg.RPCWSURL)
		}
		if cfg.Mode != ModeDashboard {
			t.Errorf("expected mode %s, got %s", ModeDashboard, cfg.Mode)
		}
		if cfg.Engine.EpochLength != DefaultEpochLength {
			t.Errorf("expected epoch length %d, got %d", DefaultEpochLength, cfg.Engine.EpochLength)
		}
		if !reflect.DeepEqual(cfg.IssueLog.Filter.Levels, []string{"poor", "critical"}) {
			t.Errorf("expected default filter levels, got %v", cfg.IssueLog.Filter.Levels)
		}
		if !cfg.IssueLog.Enabled {
			t.Error("expected issue log enabled by default")
		}
	})

	t.Run("missing required values", func(t *testing.T) {
		setenv(t, map[string]string{KeyConfigFile: "absent.toml"})
		os.Unsetenv(KeyVoteAccount)
		os.Unsetenv(KeyRPCWSURL)

		if _, err := Load(nil); err == nil {
			t.Fatal("expected error for missing vote account, got nil")
		}
	})

	t.Run("flag over env over file", func(t *testing.T) {
		path := writeConfigFile(t, `
grpc_url = "wss://file.example"
vote_account = "`+testutil.TestVoteAccount.String()+`"
hard_latency_threshold = 6
rolling_window = 64
cooldown_seconds = 30
`)
		setenv(t, map[string]string{
			KeyHardLatencyThreshold: "7",
			KeyRollingWindow:        "96",
		})

		fs := newFlagSet(t, "--config="+path, "--hard-latency=4", "--simple")
		cfg, err := Load(fs)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.RPCWSURL != "wss://file.example" {
			t.Errorf("expected file url, got %s", cfg.RPCWSURL)
		}
		if cfg.Engine.HardLatencyThreshold != 4 {
			t.Errorf("expected flag value 4, got %d", cfg.Engine.HardLatencyThreshold)
		}
		if cfg.Engine.RollingWindow != 96 {
			t.Errorf("expected env value 96, got %d", cfg.Engine.RollingWindow)
		}
		if cfg.Engine.CooldownSeconds != 30 {
			t.Errorf("expected file value 30, got %d", cfg.Engine.CooldownSeconds)
		}
		if cfg.Mode != ModeSimple {
			t.Errorf("expected mode %s, got %s", ModeSimple, cfg.Mode)
		}
	})

	t.Run("config path from env", func(t *testing.T) {
		path := writeConfigFile(t, `
rpc_ws_url = "ws://localhost:8900"
vote_account = "`+testutil.TestVoteAccount.String()+`"
`)
		setenv(t, map[string]string{KeyConfigFile: path})
		os.Unsetenv(KeyVoteAccount)
		os.Unsetenv(KeyRPCWSURL)

		cfg, err := Load(nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.RPCWSURL != "ws://localhost:8900" {
			t.Errorf("expected file url, got %s", cfg.RPCWSURL)
		}
	})
}
