package cli

import (
	"github.com/spf13/cobra"

	"pagecal/internal/dashboard"
)

func newMetricsCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:     "metrics",
		Aliases: []string{"dashboard"},
		Short:   "Show the dashboard widgets for your role",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			if raw {
				m, err := a.Gateway.Metrics(ctx)
				if err != nil {
					return writeErr(cmd, userErr(err))
				}
				return writeOut(cmd, app, map[string]any{"data": m})
			}

			d := a.Dashboard
			if _, err := d.FinishRefresh(d.PrepareRefresh().Run(ctx, a.Gateway)); err != nil {
				return writeErr(cmd, userErr(err))
			}
			// The recent list comes from the calendar feed, not the metrics payload.
			if pages, err := a.Gateway.ListPages(ctx, nil, nil); err == nil {
				d.SetRecent(pages)
			} else {
				a.Logger.Warn("list pages for recent widget", "err", err)
			}

			widgets := d.Visible()
			if widgets == nil {
				widgets = []*dashboard.Widget{}
			}
			out := map[string]any{"role": a.Session.Role, "widgets": widgets}
			if n := d.Notice(); n != "" {
				out["notice"] = n
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the metrics payload as the API returns it")
	return cmd
}
