package dialogs

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// QueryDialog returns a form asking a free-text question about recent
// activity. onSubmit receives the trimmed question; empty input is ignored.
func QueryDialog(onSubmit func(question string), onCancel func()) *tview.Form {
	form := tview.NewForm()
	form.SetBorder(true).
		SetTitle(" Ask NEXUS ").
		SetTitleAlign(tview.AlignLeft)
	form.SetBackgroundColor(tcell.ColorDefault)
	form.SetFieldBackgroundColor(tcell.ColorDefault)

	form.AddInputField("Question", "", 50, nil, nil)

	submit := func() {
		q := strings.TrimSpace(form.GetFormItemByLabel("Question").(*tview.InputField).GetText())
		if q == "" {
			return
		}
		onSubmit(q)
	}
	form.AddButton("Ask", submit)
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

// AnswerDialog shows the answer to a question. Pending is shown until
// SetAnswer is called.
func AnswerDialog(question string, onClose func()) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" " + question + " ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetWordWrap(true)
	tv.SetScrollable(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText("[::d]Thinking...[::-]")
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyEnter || event.Rune() == 'q' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
