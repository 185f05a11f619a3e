package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/epoch"
	"github.com/1000xsh/voteperfx/pkg/sink"
	"github.com/1000xsh/voteperfx/pkg/stats"
	"github.com/1000xsh/voteperfx/pkg/telemetry"
	"github.com/1000xsh/voteperfx/pkg/testutil"
	"github.com/1000xsh/voteperfx/pkg/tvc"
	"github.com/1000xsh/voteperfx/pkg/vote"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	// nil args make cobra fall back to os.Args
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMainVersionCommand(t *testing.T) {
	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(output, "voteperfx version dev") {
		t.Errorf("expected version output to contain 'voteperfx version dev', got: %s", output)
	}
}

func TestMainVersionFlag(t *testing.T) {
	output, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if output != "voteperfx version dev\n" {
		t.Errorf("unexpected version output: %q", output)
	}
}

func TestMainMissingConfig(t *testing.T) {
	t.Setenv(config.KeyVoteAccount, "")
	t.Setenv(config.KeyRPCWSURL, "")
	t.Setenv(config.KeyConfigFile, "absent.toml")

	output, err := execute(t)
	if err == nil {
		t.Fatalf("expected error for missing config, but command succeeded")
	}
	if !strings.Contains(output, "Error loading configuration") {
		t.Errorf("expected error message about configuration, got: %s", output)
	}
	if !strings.Contains(output, config.KeyVoteAccount) {
		t.Errorf("expected error to name %s, got: %s", config.KeyVoteAccount, output)
	}
}

func TestMainHelp(t *testing.T) {
	output, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("--help failed: %v", err)
	}
	for _, want := range []string{"--vote-account", "--rpc-ws-url", "--simple", "--issue-log-dir", config.HelpNote} {
		if !strings.Contains(output, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		VoteAccount: testutil.TestVoteAccount.String(),
		RPCWSURL:    "ws://test",
		Commitment:  "confirmed",
		Mode:        config.ModeSimple,
		Engine: config.EngineConfig{
			EpochLength:             1000,
			HardLatencyThreshold:    8,
			SoftEfficiencyThreshold: 0.5,
			CooldownSeconds:         60,
			RollingWindow:           32,
			EpochRetention:          3,
			RecentEvents:            10,
			DedupCapacity:           128,
		},
		Network: config.NetworkConfig{InitialBackoffSeconds: 1, MaxBackoffSeconds: 2},
		IssueLog: config.IssueLogConfig{
			Enabled: true,
			Dir:     dir,
			Filter:  config.FilterConfig{Levels: []string{"good"}},
		},
		Sinks: config.SinkConfig{HTTPAddr: "127.0.0.1:0"},
	}
}

func TestBuildAppRunsEngineAndSinks(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	baseline := testutil.NewVoteState().WithVotes(90, 91).Build()
	landed := testutil.NewVoteState().WithVotes(90, 91).
		WithLandedVote(100, 1).
		WithLandedVote(101, 3).
		Build()
	src := testutil.NewMockSource([]testutil.Step{
		testutil.AccountStep(100, baseline),
		testutil.AccountStep(104, landed),
	})

	a, err := buildApp(context.Background(), cfg, zerolog.Nop(), src)
	if err != nil {
		t.Fatalf("buildApp failed: %v", err)
	}
	if a.server == nil {
		t.Fatal("expected http server to be built")
	}

	names := make([]string, 0, len(a.sinks.Sinks))
	for _, s := range a.sinks.Sinks {
		names = append(names, s.Name())
	}
	if got := strings.Join(names, ","); got != "log,issue_log,prometheus" {
		t.Errorf("unexpected sinks: %s", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for a.engine.Snapshot().Lifetime.Votes < 2 {
		if time.Now().After(deadline) {
			t.Fatal("engine did not process votes")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	a.Close()

	if got := a.engine.Snapshot().Lifetime.CreditsEarned; got != 30 {
		t.Errorf("expected 30 credits, got %d", got)
	}

	files, err := filepath.Glob(filepath.Join(dir, sink.IssueFilePrefix+"*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one issue file, got %v (%v)", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one issue entry, got %d", len(lines))
	}
	var entry sink.IssueEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.VotedSlot != 101 || entry.Latency != 3 {
		t.Errorf("unexpected issue entry: %+v", entry)
	}
}

func TestBuildAppInvalidFilter(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.IssueLog.Filter.Levels = []string{"superb"}

	if _, err := buildApp(context.Background(), cfg, zerolog.Nop(), testutil.NewMockSource()); err == nil {
		t.Fatal("expected error for unknown filter level")
	}
}

type staticReader struct{ snap *engine.Snapshot }

func (r *staticReader) Snapshot() *engine.Snapshot { return r.snap }

type staticTelemetry struct{ snap telemetry.Snapshot }

func (r *staticTelemetry) Snapshot() telemetry.Snapshot { return r.snap }

func TestCLIShouldPrintStatus(t *testing.T) {
	reader := &staticReader{snap: &engine.Snapshot{Connected: true}}
	tel := &staticTelemetry{}
	c := NewCLI(reader, tel, testConfig(""), zerolog.Nop())

	if !c.shouldPrintStatus(reader.snap, tel.snap) {
		t.Error("expected first status to print")
	}
	c.printStatus()

	if c.shouldPrintStatus(reader.snap, tel.snap) {
		t.Error("expected unchanged status to be skipped")
	}

	next := &engine.Snapshot{Connected: true, Lifetime: stats.Lifetime{Votes: 1}}
	if !c.shouldPrintStatus(next, tel.snap) {
		t.Error("expected new votes to print")
	}
	if !c.shouldPrintStatus(reader.snap, telemetry.Snapshot{ErrorsTotal: 1}) {
		t.Error("expected new errors to print")
	}
	if !c.shouldPrintStatus(&engine.Snapshot{Connected: false}, tel.snap) {
		t.Error("expected connection change to print")
	}
}

func TestRenderEpoch(t *testing.T) {
	if got := renderEpoch(&engine.Snapshot{}); !strings.Contains(got, "waiting") {
		t.Errorf("expected waiting text, got %q", got)
	}

	snap := &engine.Snapshot{
		HasEpoch:       true,
		CurrentSlot:    1249,
		EpochLength:    100,
		Epoch:          epoch.Window{Epoch: 12, StartSlot: 1200, EndSlot: 1299, CreditsEarned: 30, CreditsPossible: 32, VotesSeen: 2},
		EpochHistory:   []epoch.Window{{Epoch: 11, CreditsEarned: 16, CreditsPossible: 16, VotesSeen: 1}},
		OnChainCredits: &vote.EpochCredits{Epoch: 12, Credits: 1030, PrevCredits: 1000},
	}
	got := renderEpoch(snap)
	for _, want := range []string{"12", "1,200 - 1,299", "50.0%", "30 / 32", "93.8%", "On-chain   30", "Previous   11 at 100.0%"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected epoch panel to contain %q, got:\n%s", want, got)
		}
	}
}

func TestRenderVotesAndEvents(t *testing.T) {
	if got := renderVotes(nil, 5); got != "no votes yet" {
		t.Errorf("unexpected empty votes text %q", got)
	}
	votes := []stats.VoteSample{
		{VotedSlot: 1000, LandingSlot: 1001, Latency: 1, Credit: 16, Level: tvc.LevelOptimal},
		{VotedSlot: 1001, LandingSlot: 1010, Latency: 9, Credit: 8, Level: tvc.LevelFair},
		{VotedSlot: 1002, LandingSlot: 1030, Latency: 28, Credit: 1, Level: tvc.LevelCritical},
	}
	got := renderVotes(votes, 2)
	if !strings.Contains(got, "[green]optimal[-]") || !strings.Contains(got, "8/16") {
		t.Errorf("unexpected votes panel:\n%s", got)
	}
	if strings.Contains(got, "critical") {
		t.Errorf("expected votes beyond the limit to be hidden:\n%s", got)
	}

	if got := renderEvents(&engine.Snapshot{}, 5); !strings.Contains(got, "no performance events") {
		t.Errorf("unexpected empty events text %q", got)
	}
	snap := &engine.Snapshot{
		RecentEvents: []detector.Event{{Reason: detector.ReasonLatencyExceeded, Latency: 28, Credit: 1, MaxCredit: 16, Level: tvc.LevelCritical}},
		Counters:     engine.Counters{SuppressedEvents: 3},
	}
	got = renderEvents(snap, 5)
	if !strings.Contains(got, "latency_exceeded") || !strings.Contains(got, "3 suppressed") {
		t.Errorf("unexpected events panel:\n%s", got)
	}
}

func TestBarAndSparkline(t *testing.T) {
	if got := bar(0.5, 4); got != "██░░" {
		t.Errorf("bar(0.5, 4) = %q", got)
	}
	if got := bar(2, 2); got != "██" {
		t.Errorf("bar(2, 2) = %q", got)
	}
	if got := sparkline([]int{0, 16}); got != "▁█" {
		t.Errorf("sparkline = %q", got)
	}
}
