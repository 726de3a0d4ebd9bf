package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane returns s clipped or padded to exactly height lines, each
// exactly width cells wide, so panes line up under lipgloss.JoinHorizontal.
// A height of zero keeps the line count as is.
func normalizePane(s string, width, height int) string {
	width, height = max(width, 0), max(height, 0)
	lines := strings.Split(s, "\n")
	if height > 0 {
		lines = append(lines[:min(len(lines), height)], make([]string, max(height-len(lines), 0))...)
	}
	for i, ln := range lines {
		lines[i] = fitLine(ln, width)
	}
	return strings.Join(lines, "\n")
}

// fitLine pads ln to width cells, or cuts it and ends it with an ellipsis.
// Escape sequences do not count toward the width.
func fitLine(ln string, width int) string {
	if width <= 0 {
		return ""
	}
	// Cut very long lines first so measuring stays cheap.
	if len(ln) > 8192 {
		ln = xansi.Cut(ln, 0, width)
	}
	if w := xansi.StringWidth(ln); w <= width {
		return ln + strings.Repeat(" ", width-w)
	}
	if width == 1 {
		return xansi.Cut(ln, 0, 1)
	}
	ln = xansi.Cut(ln, 0, width-1) + "…"
	return ln + strings.Repeat(" ", max(width-xansi.StringWidth(ln), 0))
}
