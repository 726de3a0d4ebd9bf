package cli

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	core "pagecal/internal/app"
	"pagecal/internal/ics"
	"pagecal/internal/publish"
)

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export pages to other formats",
	}
	cmd.AddCommand(newExportICSCmd(app))
	cmd.AddCommand(newExportMarkdownCmd(app))
	return cmd
}

func newExportICSCmd(app *App) *cobra.Command {
	var from, to, output, name string

	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Write visible pages as an iCalendar feed (default: this week)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(from, to)
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := loadApp(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			start, end = defaultWeek(a, start, end)
			pages, err := a.Gateway.ListPages(ctx, start, end)
			if err != nil {
				return writeErr(cmd, userErr(err))
			}
			if _, err := a.LoadDirectory(ctx); err != nil {
				a.Logger.Warn("load users", "err", err)
			}

			host := "pagecal"
			if u, err := url.Parse(a.Gateway.BaseURL()); err == nil && u.Host != "" {
				host = u.Host
			}
			opts := ics.Options{
				Name: name,
				Host: host,
				PageURL: func(id int64) string {
					return a.Gateway.ResolveURL(fmt.Sprintf("/api/pages/%d", id))
				},
				Assignee: a.AssigneeLabel,
				Now:      time.Now(),
			}

			var w io.Writer = cmd.OutOrStdout()
			if p := strings.TrimSpace(output); p != "" && p != "-" {
				f, err := os.Create(p)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer f.Close()
				w = f
			}
			if err := ics.Write(w, pages, opts); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Range start")
	cmd.Flags().StringVar(&to, "to", "", "Range end")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&name, "name", "pagecal", "Calendar display name")
	return cmd
}

// defaultWeek fills a missing range with the week shown by the TUI today.
func defaultWeek(a *core.App, start, end *time.Time) (*time.Time, *time.Time) {
	if start != nil || end != nil {
		return start, end
	}
	ws := a.ShowWeek(time.Now())
	we := ws.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return &ws, &we
}

func newExportMarkdownCmd(app *App) *cobra.Command {
	var from, to, dir, title string
	var overwrite, withHTML bool

	cmd := &cobra.Command{
		Use:   "markdown",
		Short: "Write visible pages as a markdown tree: index.md plus pages/<id>.md (default: this week)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(from, to)
			if err != nil {
				return writeErr(cmd, err)
			}
			if start != nil && end == nil || start == nil && end != nil {
				return writeErr(cmd, errors.New("markdown export needs both --from and --to, or neither"))
			}
			a, err := loadApp(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			start, end = defaultWeek(a, start, end)
			pages, err := a.Gateway.ListPages(ctx, start, end)
			if err != nil {
				return writeErr(cmd, userErr(err))
			}
			if _, err := a.LoadDirectory(ctx); err != nil {
				a.Logger.Warn("load users", "err", err)
			}

			res, err := publish.WriteRange(pages, *start, *end, dir, publish.WriteOptions{
				RenderOptions: publish.RenderOptions{
					Location:   start.Location(),
					Assignee:   a.AssigneeLabel,
					ResolveURL: a.Gateway.ResolveURL,
				},
				Title:     title,
				Overwrite: overwrite,
				HTML:      withHTML,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Range start")
	cmd.Flags().StringVar(&to, "to", "", "Range end")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory")
	cmd.Flags().StringVar(&title, "title", "", "Index heading (default: Week of <start>)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	cmd.Flags().BoolVar(&withHTML, "html", false, "Also write rendered HTML next to the markdown")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
