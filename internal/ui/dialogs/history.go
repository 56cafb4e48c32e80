package dialogs

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/nexus-console/internal/db"
)

// Journal is the read side of the local journal.
type Journal interface {
	RecentEvents(limit int) ([]db.Event, error)
	RecentQueries(limit int) ([]db.QueryRecord, error)
	LastPoll() time.Time
}

// HistoryDialog is a tview.TextView-based dialog listing journaled state
// changes and past questions.
type HistoryDialog struct {
	*tview.TextView
	journal Journal
	now     func() time.Time
}

// NewHistoryDialog creates a history dialog that loads from the journal.
// onClose is called when the user presses Q or Escape.
func NewHistoryDialog(journal Journal, onClose func()) *HistoryDialog {
	d := &HistoryDialog{
		TextView: tview.NewTextView(),
		journal:  journal,
		now:      time.Now,
	}
	d.SetBorder(true).SetTitle(" History ").SetTitleAlign(tview.AlignLeft)
	d.SetDynamicColors(true)
	d.SetScrollable(true)
	d.SetBackgroundColor(tcell.ColorDefault)

	d.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'q', event.Rune() == 'Q':
			onClose()
			return nil
		case event.Rune() == 'r', event.Rune() == 'R':
			d.Reload()
			return nil
		}
		return event
	})

	d.Reload()
	return d
}

// Reload re-reads the journal and updates the displayed text.
func (d *HistoryDialog) Reload() {
	evts, err := d.journal.RecentEvents(15)
	if err != nil {
		d.SetText(fmt.Sprintf("\n  [red]Journal unavailable: %v[-]", err))
		return
	}
	queries, _ := d.journal.RecentQueries(5)
	d.SetText(d.buildText(evts, queries, d.journal.LastPoll()))
}

func (d *HistoryDialog) buildText(evts []db.Event, queries []db.QueryRecord, lastPoll time.Time) string {
	var sb strings.Builder
	now := d.now()

	sb.WriteString("\n  [yellow]State changes[-]\n")
	if len(evts) == 0 {
		sb.WriteString("  [::d]Nothing recorded yet.[::-]\n")
	}
	for _, e := range evts {
		fmt.Fprintf(&sb, "  %-14s %-16s %s\n",
			humanize.RelTime(e.Ts, now, "ago", "from now"), e.EventType, tview.Escape(e.Detail))
	}

	if len(queries) > 0 {
		sb.WriteString("\n  [yellow]Questions[-]\n")
		for _, q := range queries {
			fmt.Fprintf(&sb, "  [green]%s[-] [::d](%s)[::-]\n  %s\n",
				tview.Escape(q.Question),
				humanize.RelTime(q.Ts, now, "ago", "from now"),
				tview.Escape(firstLine(q.Answer)))
		}
	}

	if !lastPoll.IsZero() {
		fmt.Fprintf(&sb, "\n  [::d]Last successful poll %s[::-]\n", humanize.RelTime(lastPoll, now, "ago", "from now"))
	}
	sb.WriteString("\n  [green]R[-] reload  [green]Q/Esc[-] close")
	return sb.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
