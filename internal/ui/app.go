package ui

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/nexus-console/internal/monitor"
	"github.com/zsprackett/nexus-console/internal/ui/dialogs"
)

// Controller is what the dashboard drives. *monitor.Monitor implements it.
type Controller interface {
	Start()
	Stop()
	StartCapture()
	StopCapture()
	ToggleFocus()
	DismissAlert()
	Refresh()
	Query(question string, done func(answer string, err error))
	Snapshot() monitor.View
}

type Options struct {
	Locale    string
	ServerURL string
	// Journal backs the history dialog. Optional.
	Journal dialogs.Journal
}

type App struct {
	tapp    *tview.Application
	pages   *tview.Pages
	home    *Home
	ctrl    Controller
	journal dialogs.Journal
	logger  *slog.Logger
}

func NewApp(opts Options, logger *slog.Logger) *App {
	a := &App{
		journal: opts.Journal,
		logger:  logger,
	}

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.home = NewHome(a.tapp, opts.Locale, opts.ServerURL)

	a.pages.AddPage("home", a.home, true, true)
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if front, _ := a.pages.GetFrontPage(); front != "home" {
			return event
		}
		if event.Rune() == '?' {
			a.showHelp()
			return nil
		}
		return event
	})

	a.home.SetCallbacks(
		a.onStart,
		a.onStop,
		a.onFocus,
		a.onDismiss,
		a.onQuery,
		a.onRefresh,
		a.onHistory,
		func() { a.tapp.Stop() },
	)

	return a
}

// OnUpdate is the monitor callback. It hands the view to the tview goroutine.
func (a *App) OnUpdate(v monitor.View) {
	a.tapp.QueueUpdateDraw(func() {
		a.home.Update(v)
	})
}

func (a *App) SetController(c Controller) {
	a.ctrl = c
}

func (a *App) Run() error {
	if a.ctrl == nil {
		return errors.New("ui: no controller")
	}
	a.home.Update(a.ctrl.Snapshot())
	a.ctrl.Start()
	defer a.ctrl.Stop()

	a.logger.Info("ui: dashboard started")
	return a.tapp.Run()
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
	a.tapp.SetFocus(a.home.table)
}

func (a *App) showHelp() {
	help := dialogs.HelpDialog(func() {
		a.closeDialog("help")
	})
	a.showDialog("help", help, 52, 22)
}

func (a *App) showError(msg string) {
	modal := tview.NewModal().
		SetText(msg).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(_ int, _ string) {
			a.closeDialog("error")
		})
	a.pages.AddPage("error", modal, true, true)
}

func (a *App) onStart() {
	a.ctrl.StartCapture()
}

func (a *App) onStop() {
	if !a.ctrl.Snapshot().Running {
		return
	}
	modal := dialogs.ConfirmDialog("Stop capturing activity?", "Stop",
		func() {
			a.closeDialog("confirm-stop")
			a.ctrl.StopCapture()
		},
		func() { a.closeDialog("confirm-stop") },
	)
	a.pages.AddPage("confirm-stop", modal, true, true)
	a.tapp.SetFocus(modal)
}

func (a *App) onFocus() {
	a.ctrl.ToggleFocus()
}

func (a *App) onDismiss() {
	a.ctrl.DismissAlert()
}

func (a *App) onRefresh() {
	a.ctrl.Refresh()
}

func (a *App) onQuery() {
	form := dialogs.QueryDialog(
		func(question string) {
			a.closeDialog("query")
			a.ask(question)
		},
		func() { a.closeDialog("query") },
	)
	a.showDialog("query", form, 64, 7)
}

func (a *App) ask(question string) {
	tv := dialogs.AnswerDialog(question, func() {
		a.closeDialog("answer")
	})
	a.showDialog("answer", tv, 72, 16)

	a.ctrl.Query(question, func(answer string, err error) {
		a.tapp.QueueUpdateDraw(func() {
			if err != nil {
				tv.SetText(fmt.Sprintf("[red]Query failed: %s[-]", tview.Escape(err.Error())))
				return
			}
			tv.SetText(tview.Escape(answer))
		})
	})
}

func (a *App) onHistory() {
	if a.journal == nil {
		a.showError("History is unavailable: the journal could not be opened.")
		return
	}
	d := dialogs.NewHistoryDialog(a.journal, func() {
		a.closeDialog("history")
	})
	a.showDialog("history", d, 76, 26)
}
