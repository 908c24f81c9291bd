package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `[yellow]Keys[-]

  [green]r[-]        Refresh now
  [green]m[-]        Cycle display mode (Text, Pie Charts, Bar Chart)
  [green]s[-]        Settings
  [green]h[-]        Usage history
  [green]?[-]        This help
  [green]q[-]        Quit

[yellow]Status Line[-]

  [green]CC: 42% / 7%[-]  session / weekly usage
  [green]CC: ◑◔[-]       pie charts, session then weekly
  [green]CC: ▄▂[-]       bar chart, session then weekly
  [green]CC: ⚠[-]        usage could not be read
  [green]CC: --[-]       no data yet

Press [green]Escape[-] or [green]?[-] to close.`

func HelpDialog(onClose func()) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" Help ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText(helpText)
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == '?' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
