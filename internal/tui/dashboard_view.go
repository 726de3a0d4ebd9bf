package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pagecal/internal/dashboard"
)

func renderDashboard(ws []*dashboard.Widget, notice string, loaded bool, width int) string {
	if width < 30 {
		width = 30
	}
	var blocks []string
	if notice != "" {
		blocks = append(blocks, styleError().Render(notice))
	}
	if !loaded {
		blocks = append(blocks, styleMuted().Render("loading metrics…"))
	}
	for _, w := range ws {
		blocks = append(blocks, renderWidget(w, width))
	}
	if len(ws) == 0 {
		blocks = append(blocks, styleMuted().Render("no widgets for this role"))
	}
	return strings.Join(blocks, "\n\n")
}

func renderWidget(w *dashboard.Widget, width int) string {
	var b strings.Builder
	b.WriteString(styleHeading().Render(w.Title))
	b.WriteString("\n")
	c := w.Chart
	switch {
	case c.Unavailable != "":
		b.WriteString(styleMuted().Render(c.Unavailable))
	case len(c.Data) == 0 && c.Kind != dashboard.KindCounter:
		b.WriteString(styleMuted().Render("no data"))
	default:
		switch c.Kind {
		case dashboard.KindBar:
			b.WriteString(renderBars(c.Data, width, false))
		case dashboard.KindShare:
			b.WriteString(renderBars(c.Data, width, true))
		case dashboard.KindCounter:
			b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render(strconv.Itoa(c.Total())))
		case dashboard.KindList:
			lines := make([]string, 0, len(c.Data))
			for _, p := range c.Data {
				lines = append(lines, fitLine(fmt.Sprintf("%s #%d %s", glyphBullet(), p.Ref, p.Label), width))
			}
			b.WriteString(strings.Join(lines, "\n"))
		}
	}
	return b.String()
}

func renderBars(points []dashboard.Point, width int, share bool) string {
	labelW := 0
	peak, total := 0, 0
	for _, p := range points {
		if n := len(p.Label); n > labelW {
			labelW = n
		}
		if p.Value > peak {
			peak = p.Value
		}
		total += p.Value
	}
	barW := width - labelW - 10
	if barW < 5 {
		barW = 5
	}
	lines := make([]string, 0, len(points))
	for _, p := range points {
		n := 0
		if peak > 0 {
			n = p.Value * barW / peak
		}
		val := strconv.Itoa(p.Value)
		if share {
			pct := 0
			if total > 0 {
				pct = p.Value * 100 / total
			}
			val = strconv.Itoa(pct) + "%"
		}
		bar := lipgloss.NewStyle().Foreground(colorAccent).Render(strings.Repeat(glyphBar(), n))
		lines = append(lines, fmt.Sprintf("%-*s %s %s", labelW, p.Label, bar, val))
	}
	return strings.Join(lines, "\n")
}
