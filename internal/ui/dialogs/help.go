package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `[yellow]Dashboard Keys[-]

  [green]s[-]        Start capture
  [green]x[-]        Stop capture
  [green]f[-]        Toggle focus mode
  [green]d[-]        Dismiss the alert
  [green]/[-]        Ask about recent activity
  [green]r[-]        Refresh now
  [green]h[-]        History
  [green]?[-]        This help
  [green]q[-]        Quit

[yellow]Focus Mode[-]

  Only high priority alerts are raised while
  focus mode is on.

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
