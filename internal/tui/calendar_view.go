package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pagecal/internal/calendar"
)

type weekGrid struct {
	start  time.Time
	days   [7][]calendar.Event
	now    time.Time
	curDay int
	curIdx int
	label  func(*int64) string
}

func (g weekGrid) selected() (calendar.Event, bool) {
	evs := g.days[g.curDay]
	if g.curIdx < 0 || g.curIdx >= len(evs) {
		return calendar.Event{}, false
	}
	return evs[g.curIdx], true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (g weekGrid) view(width, height int) string {
	if width < 7*8 {
		width = 7 * 8
	}
	colW := width / 7

	cols := make([]string, 0, 7)
	for d := 0; d < 7; d++ {
		day := g.start.AddDate(0, 0, d)
		head := day.Format("Mon 02 Jan")
		hs := styleHeading()
		if sameDay(day, g.now) {
			hs = hs.Foreground(colorAccent).Underline(true)
		}
		lines := []string{
			hs.Render(fitLine(head, colW-1)),
			styleMuted().Render(strings.Repeat(glyphHRule(), colW-1)),
		}
		if len(g.days[d]) == 0 {
			empty := " "
			if d == g.curDay {
				empty = lipgloss.NewStyle().Foreground(colorAccent).Render("·")
			}
			lines = append(lines, empty)
		}
		for i, ev := range g.days[d] {
			sel := d == g.curDay && i == g.curIdx
			lines = append(lines, g.eventLines(ev, sel, colW-1)...)
		}
		cols = append(cols, normalizePane(strings.Join(lines, "\n"), colW, height))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (g weekGrid) eventLines(ev calendar.Event, selected bool, w int) []string {
	edge, body := eventStyle(ev, selected)
	inner := w - 1
	if inner < 1 {
		inner = 1
	}
	loc := g.start.Location()
	span := ev.Start.In(loc).Format("15:04") + "-" + ev.End.In(loc).Format("15:04")
	title := ev.Title
	if ev.Pending {
		title += " …"
	}
	who := ""
	if g.label != nil {
		who = g.label(ev.AssigneeID)
	}
	return []string{
		edge.Render(glyphEdge()) + body.Render(fitLine(span, inner)),
		edge.Render(glyphEdge()) + body.Render(fitLine(title, inner)),
		edge.Render(glyphEdge()) + body.Render(fitLine(fmt.Sprintf("%s %s", ev.Category, who), inner)),
	}
}

// eventDetail is the one-line summary under the grid for the selection.
func eventDetail(ev calendar.Event, loc *time.Location, label func(*int64) string) string {
	parts := []string{
		ev.Title,
		ev.Start.In(loc).Format("Mon 15:04") + " to " + ev.End.In(loc).Format("15:04"),
		statusStyle(ev.Status).Render(string(ev.Status)),
		string(ev.Category),
		string(ev.Priority),
	}
	if label != nil {
		parts = append(parts, label(ev.AssigneeID))
	}
	return strings.Join(parts, "  "+glyphBullet()+"  ")
}
