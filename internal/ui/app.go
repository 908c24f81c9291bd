package ui

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/render"
	"github.com/zsprackett/usage-bar/internal/ui/dialogs"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

// HistorySource is the read side of the usage database.
type HistorySource = dialogs.HistorySource

type App struct {
	tapp    *tview.Application
	pages   *tview.Pages
	home    *Home
	poller  *usagepoller.Poller
	store   *config.Store
	history HistorySource
	logger  *slog.Logger

	mu         sync.Mutex
	lastUpdate time.Time

	historyDialog *dialogs.HistoryDialog
}

// NewApp builds the TUI. history may be nil, which disables the history dialog.
func NewApp(poller *usagepoller.Poller, store *config.Store, history HistorySource, logger *slog.Logger) *App {
	a := &App{
		poller:  poller,
		store:   store,
		history: history,
		logger:  logger,
	}

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.home = NewHome()

	a.pages.AddPage("home", a.home, true, true)
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == '?' && !a.dialogOpen() {
			a.showHelp()
			return nil
		}
		return event
	})

	a.home.SetCallbacks(
		a.onRefresh,
		a.onSettings,
		a.onHistory,
		a.onCycleMode,
		func() { a.tapp.Stop() },
	)

	return a
}

// Run starts polling and blocks until the user quits.
func (a *App) Run() error {
	unsubPoll := a.poller.Subscribe(a.onPoll)
	defer unsubPoll()
	unsubSettings := a.store.Subscribe(func(config.Change) {
		go a.tapp.QueueUpdateDraw(a.redraw)
	})
	defer unsubSettings()

	unfollow := a.poller.FollowSettings(a.store)
	defer unfollow()

	a.redraw()
	a.poller.Start()
	defer a.poller.Stop()

	done := make(chan struct{})
	defer close(done)
	go a.tick(done)

	return a.tapp.Run()
}

// onPoll runs on the poller goroutine; drawing is handed to tview.
func (a *App) onPoll(ev usagepoller.Event) {
	a.mu.Lock()
	a.lastUpdate = ev.At
	a.mu.Unlock()
	go a.tapp.QueueUpdateDraw(func() {
		a.redraw()
		if a.historyDialog != nil {
			a.historyDialog.Reload()
		}
	})
}

func (a *App) tick(done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			a.tapp.QueueUpdateDraw(a.redraw)
		}
	}
}

func (a *App) view() View {
	a.mu.Lock()
	last := a.lastUpdate
	a.mu.Unlock()
	settings := a.store.Settings()
	return View{
		Spec:       render.Decide(a.poller.Current(), settings.DisplayMode),
		Status:     a.poller.Status(),
		Interval:   a.poller.Interval(),
		LastUpdate: last,
		Settings:   settings,
	}
}

func (a *App) redraw() {
	a.home.Update(a.view())
}

func (a *App) dialogOpen() bool {
	name, _ := a.pages.GetFrontPage()
	return name != "home"
}

func (a *App) showDialog(name string, widget tview.Primitive, width, height int) {
	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(widget, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(widget)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	a.tapp.SetFocus(a.home.body)
}

func (a *App) showHelp() {
	help := dialogs.HelpDialog(func() {
		a.closeDialog("help")
	})
	a.showDialog("help", help, 64, 22)
}

func (a *App) onRefresh() {
	if !a.poller.Refresh() {
		a.logger.Debug("ui: refresh coalesced into running poll")
	}
}

func (a *App) onCycleMode() {
	modes := config.DisplayModes
	current := a.store.Settings().DisplayMode
	next := modes[0]
	for i, m := range modes {
		if m == current {
			next = modes[(i+1)%len(modes)]
			break
		}
	}
	if err := a.store.SetDisplayMode(next); err != nil {
		a.showError("Could not save display mode: " + err.Error())
	}
}

func (a *App) onSettings() {
	form := dialogs.SettingsDialog(a.store.Settings(),
		func(next config.Settings) {
			a.closeDialog("settings")
			if w := config.PathWarning(next.ExecutablePath); w != "" {
				a.confirmSave(next, w)
				return
			}
			a.saveSettings(next)
		},
		func() { a.closeDialog("settings") },
	)
	a.showDialog("settings", form, 62, 15)
}

func (a *App) confirmSave(next config.Settings, warning string) {
	modal := dialogs.ConfirmDialog(warning+":\n"+next.ExecutablePath+"\n\nSave anyway?", "Save", "Cancel",
		func() {
			a.closeDialog("confirm")
			a.saveSettings(next)
		},
		func() { a.closeDialog("confirm") },
	)
	a.pages.AddPage("confirm", modal, true, true)
	a.tapp.SetFocus(modal)
}

func (a *App) saveSettings(next config.Settings) {
	err := a.store.Update(func(s *config.Settings) { *s = next })
	if err != nil {
		a.logger.Error("ui: save settings", "err", err)
		a.showError("Could not save settings: " + err.Error())
	}
}

func (a *App) onHistory() {
	if a.history == nil {
		a.showError("History is not available.")
		return
	}
	a.historyDialog = dialogs.NewHistoryDialog(a.history, 24*time.Hour,
		func() {
			a.historyDialog = nil
			a.closeDialog("history")
		},
		a.onRefresh,
	)
	a.showDialog("history", a.historyDialog, 72, 26)
}

func (a *App) showError(msg string) {
	modal := tview.NewModal().
		SetText(msg).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(_ int, _ string) {
			a.closeDialog("error")
		})
	a.pages.AddPage("error", modal, true, true)
	a.tapp.SetFocus(modal)
}
