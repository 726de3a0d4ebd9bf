package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// confirmDialog is a two-button yes/no overlay. Focus starts on the
// cancel button so a stray enter never confirms.
type confirmDialog struct {
	title        string
	body         string
	confirmLabel string
	cancelLabel  string
	onConfirm    bool
}

func newDeleteDialog(title string) confirmDialog {
	return confirmDialog{
		title:        "Delete page?",
		body:         "This removes \"" + title + "\" for everyone.",
		confirmLabel: "Delete",
		cancelLabel:  "Cancel",
	}
}

func (d *confirmDialog) toggle() { d.onConfirm = !d.onConfirm }

func (d confirmDialog) view(width int) string {
	bodyW := min(max(width-8, 20), 60)

	// Plain padded buttons: nested borders leave background artifacts
	// in some terminals.
	idle := lipgloss.NewStyle().Padding(0, 1).Foreground(colorSurfaceFg).Background(colorControlBg)
	active := idle.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	yes, no := idle, active
	if d.onConfirm {
		yes, no = active, idle
	}
	gap := lipgloss.NewStyle().Background(colorControlBg).Render(" ")
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, yes.Render(d.confirmLabel), gap, no.Render(d.cancelLabel))

	header := lipgloss.NewStyle().Bold(true).
		Foreground(colorSurfaceFg).Background(colorControlBg).
		Width(bodyW).Padding(0, 1).
		Render(d.title)
	hint := styleMuted().Width(bodyW).Render("tab: focus   enter/y: select   esc/n: cancel")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorPanelBorder).
		Padding(0, 1).
		Width(bodyW + 2).
		Render(strings.Join([]string{header, "", d.body, "", buttons, "", hint}, "\n"))
}
