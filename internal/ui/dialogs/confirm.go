package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ConfirmDialog shows a modal with a message and two buttons. onConfirm is
// called for the action button; onCancel for Cancel or Escape.
func ConfirmDialog(message, action string, onConfirm func(), onCancel func()) *tview.Modal {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{action, "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			if label == action {
				onConfirm()
			} else {
				onCancel()
			}
		})
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			onCancel()
			return nil
		}
		return event
	})
	return modal
}
