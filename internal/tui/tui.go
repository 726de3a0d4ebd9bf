// Package tui is the interactive week calendar, editor panel and dashboard.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"pagecal/internal/app"
)

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, a *app.App) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference()

	a.ServeMetrics(ctx)
	m := newAppModel(ctx, a)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
