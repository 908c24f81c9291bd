package dialogs

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/usage-bar/internal/db"
	"github.com/zsprackett/usage-bar/internal/usage"
)

const sparkChars = "▁▂▃▄▅▆▇█"

// HistorySource is the read side of the usage database.
type HistorySource interface {
	Snapshots(since time.Time, limit int) ([]db.Snapshot, error)
	RecentErrors(limit int) ([]db.PollError, error)
	Summarize(since time.Time) (db.Summary, error)
	LastModified() int64
}

// HistoryDialog shows recent usage as sparklines plus the latest failures.
type HistoryDialog struct {
	*tview.TextView
	store  HistorySource
	window time.Duration
	seen   int64
}

// NewHistoryDialog creates a history dialog over the last window of polls.
// onClose is called on Q or Escape; onRefresh on R, after which the caller
// should call Reload once the poll lands.
func NewHistoryDialog(store HistorySource, window time.Duration, onClose func(), onRefresh func()) *HistoryDialog {
	d := &HistoryDialog{
		TextView: tview.NewTextView(),
		store:    store,
		window:   window,
	}
	d.SetBorder(true).SetTitle(" Usage History ").SetTitleAlign(tview.AlignLeft)
	d.SetDynamicColors(true)
	d.SetBackgroundColor(tcell.ColorDefault)

	d.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'q', event.Rune() == 'Q':
			onClose()
			return nil
		case event.Rune() == 'r', event.Rune() == 'R':
			d.SetText(d.text() + "\n\n  [yellow]Refreshing...[-]")
			onRefresh()
			return nil
		}
		return event
	})

	d.Reload()
	return d
}

// Reload re-reads the DB and updates the displayed text. It does nothing
// when the history has not changed since the last load.
func (d *HistoryDialog) Reload() {
	m := d.store.LastModified()
	if m != 0 && m == d.seen {
		return
	}
	d.seen = m
	d.SetText(d.text())
}

func (d *HistoryDialog) text() string {
	now := time.Now()
	since := now.Add(-d.window)
	snaps, err := d.store.Snapshots(since, 120)
	if err != nil {
		return fmt.Sprintf("\n  [red]Could not load history: %s[-]", tview.Escape(err.Error()))
	}
	errs, _ := d.store.RecentErrors(5)
	sum, _ := d.store.Summarize(since)
	return BuildHistoryText(snaps, errs, sum, now)
}

// BuildHistoryText renders snapshots (oldest first) and errors (newest first).
func BuildHistoryText(snaps []db.Snapshot, errs []db.PollError, sum db.Summary, now time.Time) string {
	var sb strings.Builder

	if len(snaps) == 0 && len(errs) == 0 {
		sb.WriteString("\n  [yellow]No usage data yet.[-]\n\n")
		sb.WriteString("  Press [green]R[-] to poll now.\n")
		sb.WriteString("\n  [dim]Press Q or Esc to close.[-]")
		return sb.String()
	}

	sb.WriteString("\n")
	if len(snaps) > 0 {
		latest := snaps[len(snaps)-1].Record
		sb.WriteString("  [yellow]Session[-]\n")
		sb.WriteString(fmt.Sprintf("  %s  %s\n", progressBar(latest.Session, 30), formatPercent(latest.Session)))
		if latest.HasSessionResets() {
			sb.WriteString(fmt.Sprintf("  Resets %s\n", tview.Escape(latest.SessionResets)))
		}
		sb.WriteString("\n")
		sb.WriteString("  [yellow]Weekly[-]\n")
		sb.WriteString(fmt.Sprintf("  %s  %s\n\n", progressBar(latest.Weekly, 30), formatPercent(latest.Weekly)))
	}

	if len(snaps) > 1 {
		sb.WriteString("  [yellow]History (newest right)[-]\n")
		sb.WriteString(fmt.Sprintf("  session %s\n", buildSparkline(snaps, func(r usage.Record) usage.Percent { return r.Session })))
		sb.WriteString(fmt.Sprintf("  weekly  %s\n", buildSparkline(snaps, func(r usage.Record) usage.Percent { return r.Weekly })))
		oldest := snaps[0].At
		newest := snaps[len(snaps)-1].At
		sb.WriteString(fmt.Sprintf("  [dim]%s  →  %s[-]\n\n",
			oldest.Local().Format("Jan 2 15:04"),
			newest.Local().Format("Jan 2 15:04")))
	}

	sb.WriteString(fmt.Sprintf("  [dim]%s ok, %s failed since %s[-]\n",
		humanize.Comma(int64(sum.OK)), humanize.Comma(int64(sum.Failed)),
		humanize.RelTime(sum.Since, now, "ago", "from now")))

	if len(errs) > 0 {
		sb.WriteString("\n  [yellow]Recent failures[-]\n")
		for _, e := range errs {
			sb.WriteString(fmt.Sprintf("  [red]%s[-] %s [dim](%s)[-]\n",
				e.Kind, tview.Escape(e.Message), humanize.RelTime(e.At, now, "ago", "from now")))
		}
	}

	sb.WriteString("\n  [green]R[-] refresh  [green]Q/Esc[-] close")
	return sb.String()
}

func formatPercent(p usage.Percent) string {
	if !p.Known {
		return "[dim]" + usage.Placeholder + "[-]"
	}
	if p.Value > 100 {
		return fmt.Sprintf("[red]%s (OVER)[-]", p)
	}
	return fmt.Sprintf("[%s]%s[-]", colorFor(p.Clamped()/100), p)
}

func colorFor(frac float64) string {
	switch {
	case frac >= 0.8:
		return "red"
	case frac >= 0.6:
		return "yellow"
	default:
		return "green"
	}
}

// progressBar renders a simple text progress bar for a percent.
func progressBar(p usage.Percent, width int) string {
	frac := p.Clamped() / 100
	filled := int(frac * float64(width))
	return fmt.Sprintf("[%s][%s%s][-]", colorFor(frac),
		strings.Repeat("█", filled), strings.Repeat("░", width-filled))
}

// buildSparkline builds a sparkline from snapshots ordered oldest first.
// Unknown readings show as a space.
func buildSparkline(snaps []db.Snapshot, val func(usage.Record) usage.Percent) string {
	runes := []rune(sparkChars)
	var sb strings.Builder
	for _, s := range snaps {
		p := val(s.Record)
		if !p.Known {
			sb.WriteRune(' ')
			continue
		}
		idx := int(p.Clamped() / 100 * float64(len(runes)-1))
		sb.WriteRune(runes[idx])
	}
	return sb.String()
}
