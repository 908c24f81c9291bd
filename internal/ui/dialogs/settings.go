package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/usage-bar/internal/config"
)

const (
	labelDisplayMode = "Display Mode"
	labelInterval    = "Refresh Interval"
	labelPath        = "Claude Path"
)

// SettingsDialog edits display mode, refresh interval and executable path.
// The path warning updates as the user types; it never blocks saving.
func SettingsDialog(current config.Settings, onSubmit func(config.Settings), onCancel func()) *tview.Form {
	form := tview.NewForm()
	form.SetBorder(true).SetTitle(" Settings ").SetTitleAlign(tview.AlignLeft)
	form.SetBackgroundColor(tcell.ColorDefault)
	form.SetFieldBackgroundColor(tcell.ColorDefault)

	modeLabels := make([]string, len(config.DisplayModes))
	modeIdx := 0
	for i, m := range config.DisplayModes {
		modeLabels[i] = m.Label()
		if m == current.DisplayMode {
			modeIdx = i
		}
	}

	intervalLabels := make([]string, len(config.RefreshIntervals))
	intervalIdx := 0
	for i, r := range config.RefreshIntervals {
		intervalLabels[i] = r.Label()
		if r == current.RefreshInterval {
			intervalIdx = i
		}
	}

	form.AddDropDown(labelDisplayMode, modeLabels, modeIdx, nil)
	form.AddDropDown(labelInterval, intervalLabels, intervalIdx, nil)
	form.AddInputField(labelPath, current.ExecutablePath, 40, nil, nil)
	form.AddTextView("", warningText(current.ExecutablePath), 40, 1, true, false)
	warning := form.GetFormItem(form.GetFormItemCount() - 1).(*tview.TextView)

	pathField := form.GetFormItemByLabel(labelPath).(*tview.InputField)
	pathField.SetChangedFunc(func(text string) {
		warning.SetText(warningText(text))
	})

	form.AddButton("Save", func() {
		modeI, _ := form.GetFormItemByLabel(labelDisplayMode).(*tview.DropDown).GetCurrentOption()
		intervalI, _ := form.GetFormItemByLabel(labelInterval).(*tview.DropDown).GetCurrentOption()
		next := current
		if modeI >= 0 {
			next.DisplayMode = config.DisplayModes[modeI]
		}
		if intervalI >= 0 {
			next.RefreshInterval = config.RefreshIntervals[intervalI]
		}
		next.ExecutablePath = pathField.GetText()
		onSubmit(next)
	})
	form.AddButton("Reset to Default", func() {
		pathField.SetText(config.DefaultExecutablePath)
	})
	form.AddButton("Cancel", onCancel)

	form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			onCancel()
			return nil
		}
		return event
	})

	return form
}

func warningText(path string) string {
	if w := config.PathWarning(path); w != "" {
		return "[yellow]" + w + "[-]"
	}
	return ""
}
