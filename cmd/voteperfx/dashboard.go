package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/engine"
	"github.com/1000xsh/voteperfx/pkg/stats"
	"github.com/1000xsh/voteperfx/pkg/telemetry"
	"github.com/1000xsh/voteperfx/pkg/tvc"
	"github.com/1000xsh/voteperfx/pkg/utils"
)

const (
	refreshInterval = 500 * time.Millisecond
	barWidth        = 30
	logLines        = 200
	shownVotes      = 15
	shownEvents     = 8
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Dashboard is the terminal UI shown in dashboard mode.
type Dashboard struct {
	app    *tview.Application
	cfg    *config.Config
	engine snapshotReader
	tel    telemetry.TelemetryReader

	header  *tview.TextView
	epoch   *tview.TextView
	stats   *tview.TextView
	hist    *tview.TextView
	votes   *tview.TextView
	events  *tview.TextView
	conn    *tview.TextView
	logView *tview.TextView
}

func panel(title string) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetDynamicColors(true)
	tv.SetWrap(false)
	tv.SetBorder(true)
	tv.SetTitle(" " + title + " ")
	return tv
}

func NewDashboard(cfg *config.Config) *Dashboard {
	d := &Dashboard{
		app:     tview.NewApplication(),
		cfg:     cfg,
		header:  tview.NewTextView(),
		epoch:   panel("Epoch"),
		stats:   panel("Performance"),
		hist:    panel("Latency"),
		votes:   panel("Recent votes"),
		events:  panel("Performance events"),
		conn:    panel("Connection"),
		logView: panel("Log"),
	}
	d.header.SetDynamicColors(true)
	d.logView.SetMaxLines(logLines)
	d.logView.SetScrollable(true)

	top := tview.NewFlex().
		AddItem(d.epoch, 0, 1, false).
		AddItem(d.stats, 0, 1, false).
		AddItem(d.hist, 0, 1, false)
	middle := tview.NewFlex().
		AddItem(d.votes, 0, 2, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(d.events, 0, 2, false).
			AddItem(d.conn, 0, 1, false), 0, 1, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.header, 1, 0, false).
		AddItem(top, 11, 0, false).
		AddItem(middle, 0, 2, false).
		AddItem(d.logView, 8, 0, false)

	d.app.SetRoot(root, true)
	d.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
			d.app.Stop()
			return nil
		}
		return ev
	})
	return d
}

// LogWriter returns a writer that appends to the log panel.
func (d *Dashboard) LogWriter() io.Writer {
	return tview.ANSIWriter(d.logView)
}

// Attach sets the sources rendered on each refresh.
func (d *Dashboard) Attach(eng snapshotReader, tel telemetry.TelemetryReader) {
	d.engine = eng
	d.tel = tel
}

// Run draws the dashboard until the user quits or ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				d.app.QueueUpdate(d.app.Stop)
				return
			case <-ticker.C:
				d.app.QueueUpdateDraw(d.render)
			}
		}
	}()

	d.render()
	return d.app.Run()
}

func (d *Dashboard) render() {
	if d.engine == nil {
		return
	}
	snap := d.engine.Snapshot()
	var tel telemetry.Snapshot
	if d.tel != nil {
		tel = d.tel.Snapshot()
	}
	d.header.SetText(renderHeader(snap, d.cfg))
	d.epoch.SetText(renderEpoch(snap))
	d.stats.SetText(renderStats(snap))
	d.hist.SetText(renderHistogram(snap))
	d.votes.SetText(renderVotes(snap.RecentVotes, shownVotes))
	d.events.SetText(renderEvents(snap, shownEvents))
	d.conn.SetText(renderConnection(snap, tel))
}

func renderHeader(s *engine.Snapshot, cfg *config.Config) string {
	status := "[green]connected[-]"
	if !s.Connected {
		status = "[red]disconnected[-]"
	}
	return fmt.Sprintf(" [::b]%s[::-]  %s  %s  %s  slot %s  [gray](q to quit)[-]",
		config.AppName, s.VoteAccount, status, cfg.Commitment, utils.FormatNumber(s.CurrentSlot))
}

func bar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func efficiencyColor(eff float64) string {
	switch {
	case eff >= 0.95:
		return "green"
	case eff >= 0.85:
		return "yellow"
	default:
		return "red"
	}
}

func renderEpoch(s *engine.Snapshot) string {
	if !s.HasEpoch {
		return "waiting for the first vote..."
	}
	w := s.Epoch
	var b strings.Builder
	fmt.Fprintf(&b, "Epoch      [::b]%d[::-]\n", w.Epoch)
	fmt.Fprintf(&b, "Slots      %s - %s\n", utils.FormatNumber(w.StartSlot), utils.FormatNumber(w.EndSlot))
	fmt.Fprintf(&b, "Progress   %s %s\n", bar(s.EpochProgress(), barWidth/2), utils.FormatPercent(s.EpochProgress()))
	fmt.Fprintf(&b, "Credits    %s / %s\n", utils.FormatNumber(w.CreditsEarned), utils.FormatNumber(w.CreditsPossible))
	fmt.Fprintf(&b, "Efficiency [%s]%s[-]\n", efficiencyColor(w.Efficiency()), utils.FormatPercent(w.Efficiency()))
	fmt.Fprintf(&b, "Votes      %s\n", utils.FormatNumber(w.VotesSeen))
	if s.OnChainCredits != nil {
		fmt.Fprintf(&b, "On-chain   %s (epoch %d)\n", utils.FormatNumber(s.OnChainCredits.Earned()), s.OnChainCredits.Epoch)
	}
	if n := len(s.EpochHistory); n > 0 {
		prev := s.EpochHistory[n-1]
		fmt.Fprintf(&b, "Previous   %d at %s", prev.Epoch, utils.FormatPercent(prev.Efficiency()))
	}
	return b.String()
}

func sparkline(credits []int) string {
	var b strings.Builder
	for _, c := range credits {
		i := c * (len(sparkRunes) - 1) / tvc.MaxCredit
		if i < 0 {
			i = 0
		}
		if i >= len(sparkRunes) {
			i = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[i])
	}
	return b.String()
}

func renderStats(s *engine.Snapshot) string {
	r := s.Rolling
	lt := s.Lifetime
	var b strings.Builder
	fmt.Fprintf(&b, "Rolling    [%s]%s[-] over %d/%d votes\n", efficiencyColor(r.Efficiency), utils.FormatPercent(r.Efficiency), r.Count, r.Capacity)
	fmt.Fprintf(&b, "Avg lat    %.2f slots\n", r.AvgLatency)
	credits := r.Credits
	if len(credits) > barWidth {
		credits = credits[len(credits)-barWidth:]
	}
	fmt.Fprintf(&b, "Credits    %s\n", sparkline(credits))
	fmt.Fprintf(&b, "Lifetime   [%s]%s[-] of %s votes\n", efficiencyColor(lt.Efficiency), utils.FormatPercent(lt.Efficiency), utils.FormatCompact(lt.Votes))
	fmt.Fprintf(&b, "Earned     %s / %s (missed %s)\n", utils.FormatCompact(lt.CreditsEarned), utils.FormatCompact(lt.CreditsPossible), utils.FormatCompact(lt.MissedCredits))
	fmt.Fprintf(&b, "Latency    avg %.2f  min %d  max %d\n", lt.AvgLatency, lt.MinLatency, lt.MaxLatency)
	fmt.Fprintf(&b, "Low lat    %s\n", utils.FormatPercent(lt.LowLatencyPct))
	fmt.Fprintf(&b, "Rate       %.1f votes/min", lt.VotesPerMinute)
	return b.String()
}

func renderHistogram(s *engine.Snapshot) string {
	h := s.Lifetime.Histogram
	total := h.Total()
	row := func(label, color string, n uint64) string {
		ratio := 0.0
		if total > 0 {
			ratio = float64(n) / float64(total)
		}
		return fmt.Sprintf("%-8s [%s]%s[-] %s\n", label, color, bar(ratio, barWidth/2), utils.FormatCompact(n))
	}
	var b strings.Builder
	b.WriteString(row("<= 1", "green", h.Instant))
	b.WriteString(row("2-16", "yellow", h.Delayed))
	b.WriteString(row("> 16", "red", h.Late))
	b.WriteString("\n")
	for _, lc := range utils.SortLevelsByCount(s.Lifetime.Levels) {
		fmt.Fprintf(&b, "[%s]%-8s[-] %s\n", utils.LevelColor(lc.Level), lc.Level, utils.FormatCompact(lc.Count))
	}
	return b.String()
}

func renderVotes(votes []stats.VoteSample, limit int) string {
	if len(votes) == 0 {
		return "no votes yet"
	}
	if len(votes) > limit {
		votes = votes[:limit]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]%-10s %-13s %-13s %7s %6s  %s[::-]\n", "time", "voted", "landed", "latency", "tvc", "level")
	for _, v := range votes {
		fmt.Fprintf(&b, "%-10s %-13s %-13s %7d %6s  [%s]%s[-]\n",
			v.At.Format(time.TimeOnly),
			utils.FormatNumber(v.VotedSlot),
			utils.FormatNumber(v.LandingSlot),
			v.Latency,
			fmt.Sprintf("%d/%d", v.Credit, tvc.MaxCredit),
			utils.LevelColor(v.Level), v.Level)
	}
	return b.String()
}

func renderEvents(s *engine.Snapshot, limit int) string {
	if len(s.RecentEvents) == 0 {
		return "[green]no performance events[-]"
	}
	events := s.RecentEvents
	if len(events) > limit {
		events = events[:limit]
	}
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "%s [%s]%s[-]\n", ev.Timestamp.Format(time.TimeOnly), utils.LevelColor(ev.Level), ev)
	}
	if s.Counters.SuppressedEvents > 0 {
		fmt.Fprintf(&b, "[gray]%d suppressed by cooldown[-]", s.Counters.SuppressedEvents)
	}
	return b.String()
}

func renderConnection(s *engine.Snapshot, tel telemetry.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Updates    %s (%.1f/s)\n", utils.FormatCompact(s.Counters.Updates), tel.UpdatesPerSecond)
	fmt.Fprintf(&b, "Reconnects %d  gaps %d\n", s.Counters.Reconnects, s.Counters.SlotGaps)
	fmt.Fprintf(&b, "Decode err %d  invalid %d\n", s.Counters.DecodeErrors, s.Counters.InvalidLatency)
	fmt.Fprintf(&b, "Dropped    %d sink, %d late\n", s.Counters.SinkDrops, s.Counters.DroppedLateVotes)
	fmt.Fprintf(&b, "Uptime     %s", utils.FormatDuration(time.Duration(tel.UptimeSeconds*float64(time.Second))))
	return b.String()
}
