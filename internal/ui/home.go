package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zsprackett/nexus-console/internal/activity"
	"github.com/zsprackett/nexus-console/internal/monitor"
	"github.com/zsprackett/nexus-console/internal/nexus"
)

const appColumnWidth = 14

// Home is the dashboard: header, alert banner, activity list, chart and
// insights.
type Home struct {
	*tview.Flex
	app      *tview.Application
	header   *tview.TextView
	banner   *tview.TextView
	table    *tview.Table
	chart    *tview.TextView
	insights *tview.TextView
	footer   *tview.TextView
	content  *tview.Flex
	body     *tview.Flex

	printer   *message.Printer
	serverURL string
	view      monitor.View
	bannerOn  bool
	now       func() time.Time

	onStart   func()
	onStop    func()
	onFocus   func()
	onDismiss func()
	onQuery   func()
	onRefresh func()
	onHistory func()
	onQuit    func()
}

func NewHome(app *tview.Application, locale, serverURL string) *Home {
	h := &Home{
		app:       app,
		printer:   newPrinter(locale),
		serverURL: serverURL,
		now:       time.Now,
	}

	h.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.header.SetBackgroundColor(ColorBackgroundPanel)

	h.banner = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.banner.SetBackgroundColor(ColorBackgroundElem)

	h.table = tview.NewTable().
		SetSelectable(false, false)
	h.table.SetBackgroundColor(ColorBackground)
	h.table.SetBorder(true).
		SetTitle(" Recent activity ").
		SetTitleAlign(tview.AlignLeft).
		SetBorderColor(ColorBorder)

	h.chart = tview.NewTextView().
		SetDynamicColors(true)
	h.chart.SetBackgroundColor(ColorBackground)
	h.chart.SetBorder(true).
		SetTitle(" Priority ").
		SetTitleAlign(tview.AlignLeft).
		SetBorderColor(ColorBorder)

	h.insights = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	h.insights.SetBackgroundColor(ColorBackground)
	h.insights.SetBorder(true).
		SetTitle(" Insights ").
		SetTitleAlign(tview.AlignLeft).
		SetBorderColor(ColorBorder)
	h.insights.SetText("[::d]Waiting for synthesis...")

	h.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.footer.SetBackgroundColor(ColorBackgroundPanel)

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(h.chart, 4, 0, false).
		AddItem(h.insights, 0, 1, false)

	h.content = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(h.table, 0, 60, true).
		AddItem(side, 0, 40, false)

	h.body = tview.NewFlex().SetDirection(tview.FlexRow)
	h.Flex = h.body
	h.layout()

	h.setupInput()
	h.Update(monitor.View{Uptime: "--"})
	return h
}

func newPrinter(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

func (h *Home) SetCallbacks(onStart, onStop, onFocus, onDismiss, onQuery, onRefresh, onHistory, onQuit func()) {
	h.onStart = onStart
	h.onStop = onStop
	h.onFocus = onFocus
	h.onDismiss = onDismiss
	h.onQuery = onQuery
	h.onRefresh = onRefresh
	h.onHistory = onHistory
	h.onQuit = onQuit
}

// Update redraws every panel from v. The caller must be on the tview
// goroutine (QueueUpdateDraw) once the application is running.
func (h *Home) Update(v monitor.View) {
	h.view = v
	h.updateHeader()
	h.updateBanner()
	h.renderTable()
	h.updateChart()
	h.updateInsights()
	h.updateFooter()
}

func (h *Home) updateHeader() {
	v := h.view
	icon, color := RunIcon(v.Running)
	state := "STOPPED"
	if v.Running {
		state = "RUNNING"
	}
	focus := ""
	if v.Focus {
		focus = fmt.Sprintf("  %s%s focus[-]", colorTag(ColorAccent), IconFocus)
	}
	h.header.SetText(fmt.Sprintf(
		"[#89b4fa]NEXUS[-]   %s%s %s[-]%s  uptime %s  %s  [::d]%s[::-]",
		colorTag(color), icon, state, focus, v.Uptime,
		h.printer.Sprintf("%d activities", v.ActivityCount),
		h.serverURL))
}

// layout rebuilds the rows. The banner row exists only while an alert is
// visible.
func (h *Home) layout() {
	h.body.Clear().AddItem(h.header, 1, 0, false)
	if h.bannerOn {
		h.body.AddItem(h.banner, 1, 0, false)
	}
	h.body.AddItem(h.content, 0, 1, true).
		AddItem(h.footer, 1, 0, false)
}

func (h *Home) updateBanner() {
	a := h.view.Alert
	visible := !a.Empty()
	if visible {
		h.banner.SetText(h.alertText(*a))
	} else {
		h.banner.SetText("")
	}
	if visible != h.bannerOn {
		h.bannerOn = visible
		h.layout()
	}
}

// BannerVisible reports whether the alert row is shown.
func (h *Home) BannerVisible() bool {
	return h.bannerOn
}

func (h *Home) alertText(a nexus.Alert) string {
	priority := strings.ToUpper(a.Priority)
	if priority == "" {
		priority = "ALERT"
	}
	text := fmt.Sprintf(" %s%s %s[-]  %s", colorTag(PriorityColor(a.Priority)), IconAlert, priority, tview.Escape(a.Message))
	if ts := nexus.ParseTimestamp(a.Timestamp); !ts.IsZero() {
		text += fmt.Sprintf("  [::d](%s)[::-]", humanize.RelTime(ts, h.now(), "ago", "from now"))
	}
	return text + "  [::d]d to dismiss[::-]"
}

func (h *Home) renderTable() {
	h.table.Clear()
	lines := h.view.Activities
	if len(lines) == 0 {
		h.table.SetCell(0, 0, tview.NewTableCell(" No activity yet").
			SetTextColor(ColorTextMuted).
			SetSelectable(false))
		return
	}
	for row, l := range lines {
		h.table.SetCell(row, 0, tview.NewTableCell(" "+l.Time).
			SetTextColor(ColorTextMuted).
			SetSelectable(false))
		h.table.SetCell(row, 1, tview.NewTableCell(activity.PadApp(l.AppName, appColumnWidth)).
			SetTextColor(PriorityColor(l.Priority)).
			SetSelectable(false))
		h.table.SetCell(row, 2, tview.NewTableCell(l.Description).
			SetTextColor(ColorText).
			SetExpansion(1).
			SetSelectable(false))
	}
}

func (h *Home) updateChart() {
	pts := h.view.Chart
	if len(pts) == 0 {
		h.chart.SetText("[::d] no data")
		return
	}
	h.chart.SetText(fmt.Sprintf(" %s%s[-]\n [::d]%s .. %s[::-]",
		colorTag(ColorPrimary), activity.Sparkline(pts), pts[0].Label, pts[len(pts)-1].Label))
}

func (h *Home) updateInsights() {
	if len(h.view.Insights) == 0 {
		return
	}
	var b strings.Builder
	for _, in := range h.view.Insights {
		fmt.Fprintf(&b, "%s•[-] %s\n", colorTag(ColorAccent), tview.Escape(in))
	}
	h.insights.SetText(b.String())
}

func (h *Home) updateFooter() {
	if h.view.Notice != "" {
		h.footer.SetText(fmt.Sprintf("%s%s %s[-]", colorTag(ColorError), IconAlert, tview.Escape(h.view.Notice)))
		return
	}
	h.footer.SetText(
		"[green]s[-] start  [green]x[-] stop  [green]f[-] focus  [green]d[-] dismiss  " +
			"[green]/[-] ask  [green]r[-] refresh  [green]h[-] history  [green]?[-] help  [green]q[-] quit")
}

func (h *Home) setupInput() {
	h.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		call := func(fn func()) *tcell.EventKey {
			if fn != nil {
				fn()
			}
			return nil
		}
		switch event.Rune() {
		case 's':
			return call(h.onStart)
		case 'x':
			return call(h.onStop)
		case 'f':
			return call(h.onFocus)
		case 'd':
			return call(h.onDismiss)
		case '/':
			return call(h.onQuery)
		case 'r':
			return call(h.onRefresh)
		case 'h':
			return call(h.onHistory)
		case 'q':
			return call(h.onQuit)
		}
		return event
	})
}
