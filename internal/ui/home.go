package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/render"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

// View is everything the home screen draws.
type View struct {
	Spec       render.Spec
	Status     usagepoller.State
	Interval   time.Duration
	LastUpdate time.Time
	Settings   config.Settings
}

// Home is the main screen: the status line, the menu lines and a key bar.
type Home struct {
	*tview.Flex
	header *tview.TextView
	body   *tview.TextView
	footer *tview.TextView

	view View

	onRefresh  func()
	onSettings func()
	onHistory  func()
	onCycle    func()
	onQuit     func()
}

func NewHome() *Home {
	h := &Home{}

	h.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.header.SetBackgroundColor(ColorBackgroundPanel)

	h.body = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	h.body.SetBackgroundColor(ColorBackground)
	h.body.SetBorder(true).SetBorderColor(ColorBorder)

	h.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.footer.SetBackgroundColor(ColorBackgroundPanel)
	h.footer.SetText(
		"[green]r[-] refresh  [green]m[-] display mode  [green]s[-] settings  " +
			"[green]h[-] history  [green]?[-] help  [green]q[-] quit")

	h.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(h.header, 1, 0, false).
		AddItem(h.body, 0, 1, true).
		AddItem(h.footer, 1, 0, false)

	h.setupInput()
	h.Update(View{Spec: render.Decide(usage.StateUnknown(), config.DisplayText)})
	return h
}

func (h *Home) SetCallbacks(onRefresh, onSettings, onHistory, onCycle, onQuit func()) {
	h.onRefresh = onRefresh
	h.onSettings = onSettings
	h.onHistory = onHistory
	h.onCycle = onCycle
	h.onQuit = onQuit
}

// Update redraws from v. Call it on the tview goroutine.
func (h *Home) Update(v View) {
	h.view = v
	h.header.SetTextColor(TitleColor(v.Spec.Kind))
	h.header.SetText(headerText(v))
	h.body.SetText(bodyText(v, time.Now()))
}

func headerText(v View) string {
	icon, _ := StatusIcon(v.Status)
	line := tview.Escape(render.Line(v.Spec))
	if v.Spec.Kind == render.KindWarning {
		line = "[yellow]" + line + "[-]"
	}
	return fmt.Sprintf(" %s %s   [::d]%s[::-]", icon, line, v.Settings.DisplayMode.Label())
}

func bodyText(v View, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("\n")
	if v.Spec.Menu.Error != "" {
		sb.WriteString(fmt.Sprintf("  [red]%s[-]\n\n", tview.Escape(v.Spec.Menu.Error)))
	}
	sb.WriteString("  " + tview.Escape(v.Spec.Menu.Session) + "\n")
	if v.Spec.IsIcon() && v.Spec.Kind != render.KindWarning {
		sb.WriteString("  " + progressBar(v.Spec.Session, 30) + "\n")
	}
	sb.WriteString("  " + tview.Escape(v.Spec.Menu.Weekly) + "\n")
	if v.Spec.IsIcon() && v.Spec.Kind != render.KindWarning {
		sb.WriteString("  " + progressBar(v.Spec.Weekly, 30) + "\n")
	}
	sb.WriteString("\n")

	if v.LastUpdate.IsZero() {
		sb.WriteString("  [::d]Waiting for first update...[::-]\n")
	} else {
		sb.WriteString(fmt.Sprintf("  [::d]Updated %s[::-]\n", humanize.RelTime(v.LastUpdate, now, "ago", "from now")))
	}
	if v.Interval > 0 {
		sb.WriteString(fmt.Sprintf("  [::d]Refreshing every %s (%s)[::-]\n",
			config.RefreshInterval(v.Interval).Label(), v.Status))
	}
	if w := config.PathWarning(v.Settings.ExecutablePath); w != "" {
		sb.WriteString(fmt.Sprintf("\n  [yellow]%s: %s[-]\n", w, tview.Escape(v.Settings.ExecutablePath)))
	}
	return sb.String()
}

// progressBar renders a text bar for a fill in [0,1].
func progressBar(fill float64, width int) string {
	if fill < 0 {
		fill = 0
	}
	if fill > 1 {
		fill = 1
	}
	filled := int(fill * float64(width))
	return fmt.Sprintf("[%s]%s%s[-] %3.0f%%", UsageColorName(fill),
		strings.Repeat("█", filled), strings.Repeat("░", width-filled), fill*100)
}

func (h *Home) setupInput() {
	h.body.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		var fn func()
		switch event.Rune() {
		case 'r':
			fn = h.onRefresh
		case 's':
			fn = h.onSettings
		case 'h':
			fn = h.onHistory
		case 'm':
			fn = h.onCycle
		case 'q':
			fn = h.onQuit
		default:
			return event
		}
		if fn != nil {
			fn()
		}
		return nil
	})
}
