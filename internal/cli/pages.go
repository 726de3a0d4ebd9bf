package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	core "pagecal/internal/app"
	"pagecal/internal/calendar"
	"pagecal/internal/editor"
	"pagecal/internal/gateway"
	"pagecal/internal/model"
	"pagecal/internal/perm"
	"pagecal/internal/statusutil"
)

func newPagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pages",
		Aliases: []string{"page"},
		Short:   "Calendar page commands",
	}
	cmd.AddCommand(newPagesListCmd(app))
	cmd.AddCommand(newPagesShowCmd(app))
	cmd.AddCommand(newPagesCreateCmd(app))
	cmd.AddCommand(newPagesUpdateCmd(app))
	cmd.AddCommand(newPagesSetStatusCmd(app))
	cmd.AddCommand(newPagesMoveCmd(app))
	cmd.AddCommand(newPagesDeleteCmd(app))
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid page id %q", s)
	}
	return id, nil
}

func newPagesListCmd(app *App) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pages visible to you (optionally within a time range)",
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

			pages, err := a.Gateway.ListPages(a.Context(cmd.Context()), start, end)
			if err != nil {
				return writeErr(cmd, userErr(err))
			}
			if pages == nil {
				pages = []model.Page{}
			}
			return writeOut(cmd, app, map[string]any{"data": pages})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Range start (YYYY-MM-DD, YYYY-MM-DD HH:MM, or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (a date-only value includes the whole day)")
	return cmd
}

func newPagesShowCmd(app *App) *cobra.Command {
	var withPolicy bool

	cmd := &cobra.Command{
		Use:     "show <page-id>",
		Aliases: []string{"get"},
		Short:   "Show one page",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := loadApp(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()

			p, err := getPage(a.Context(cmd.Context()), a, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := map[string]any{"data": p}
			if withPolicy {
				out["policy"] = perm.ForPage(a.Session, p)
			}
			return writeOut(cmd, app, out)
		},
	}

	cmd.Flags().BoolVar(&withPolicy, "policy", false, "Include the field policy for this page and viewer")
	return cmd
}

// pageFields holds the editable-field flags shared by create and update.
type pageFields struct {
	title       string
	content     string
	contentFile string
	category    string
	priority    string
	status      string
	assignee    string
}

func (f *pageFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Title")
	cmd.Flags().StringVar(&f.content, "content", "", "Content (markup or markdown, stored verbatim)")
	cmd.Flags().StringVar(&f.contentFile, "content-file", "", "Read content from a file (- for stdin)")
	cmd.Flags().StringVar(&f.category, "category", "", "Category (feature|bug|devops|meeting|other)")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Priority (low|medium|high|critical)")
	cmd.Flags().StringVar(&f.status, "status", "", "Status (todo|in_progress|done)")
	cmd.Flags().StringVar(&f.assignee, "assignee", "", "Assignee user id (none to unassign)")
}

func sameAssignee(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// apply overlays the changed flags onto the view. Setting a read-only field to
// a different value is an error rather than a silent no-op.
func (f *pageFields) apply(cmd *cobra.Command, v *headlessView) error {
	changed := cmd.Flags().Changed
	set := func(field perm.Field, differs bool, assign func()) error {
		if !differs {
			return nil
		}
		if !v.policy.Access(field).Editable {
			return readOnlyFieldError{field: field}
		}
		assign()
		return nil
	}

	if changed("title") {
		if err := set(perm.FieldTitle, f.title != v.vals.Title, func() { v.vals.Title = f.title }); err != nil {
			return err
		}
	}
	if changed("content") || changed("content-file") {
		content := f.content
		if changed("content-file") {
			b, err := readContentFile(cmd, f.contentFile)
			if err != nil {
				return err
			}
			content = b
		}
		if err := set(perm.FieldContent, content != v.vals.Content, func() { v.vals.Content = content }); err != nil {
			return err
		}
	}
	if changed("category") {
		c, err := statusutil.NormalizeCategory(f.category)
		if err != nil {
			return err
		}
		if err := set(perm.FieldCategory, c != v.vals.Category, func() { v.vals.Category = c }); err != nil {
			return err
		}
	}
	if changed("priority") {
		p, err := statusutil.NormalizePriority(f.priority)
		if err != nil {
			return err
		}
		if err := set(perm.FieldPriority, p != v.vals.Priority, func() { v.vals.Priority = p }); err != nil {
			return err
		}
	}
	if changed("status") {
		s, err := statusutil.NormalizeStatus(f.status)
		if err != nil {
			return err
		}
		if err := set(perm.FieldStatus, s != v.vals.Status, func() { v.vals.Status = s }); err != nil {
			return err
		}
	}
	if changed("assignee") {
		var id *int64
		if a := strings.ToLower(strings.TrimSpace(f.assignee)); a != "" && a != "none" {
			n, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid --assignee %q", f.assignee)
			}
			id = &n
		}
		if id != nil && !v.policy.ForceSelfAssignee && !assignable(v.assignees, *id) {
			return fmt.Errorf("user %d is not assignable by you", *id)
		}
		if err := set(perm.FieldAssignee, !sameAssignee(id, v.vals.AssigneeID), func() { v.vals.AssigneeID = id }); err != nil {
			return err
		}
	}
	return nil
}

func assignable(users []model.User, id int64) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func readContentFile(cmd *cobra.Command, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if strings.TrimSpace(path) == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// savePage runs a prepared editor save to completion.
func savePage(ctx context.Context, a *core.App, ed *editor.Controller) (editor.SaveOutcome, error) {
	op, err := ed.PrepareSave()
	if err != nil {
		return editor.SaveOutcome{}, err
	}
	out := ed.FinishSave(op.Run(ctx, a.Gateway))
	if out.Err != nil {
		return out, userErr(out.Err)
	}
	return out, nil
}

// openEditor loads the assignee directory so --assignee can be checked. A
// directory failure is not fatal; the server still validates.
func openEditor(cmd *cobra.Command, a *core.App) (*editor.Controller, *headlessView) {
	if _, err := a.LoadDirectory(cmd.Context()); err != nil {
		a.Logger.Warn("load users", "err", err)
	}
	v := &headlessView{}
	return a.NewEditor(v), v
}

func newPagesCreateCmd(app *App) *cobra.Command {
	var fields pageFields
	var start, end string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a page (members are always the assignee)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseTime(start, time.Local)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("--start: %w", err))
			}
			var et time.Time
			if strings.TrimSpace(end) != "" {
				if et, err = parseTime(end, time.Local); err != nil {
					return writeErr(cmd, fmt.Errorf("--end: %w", err))
				}
			}

			a, err := loadApp(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			ed, v := openEditor(cmd, a)
			ed.OpenNew(st, et)
			if !ed.Policy().CanSave {
				return writeErr(cmd, errPermission(a.Session.Role, "create pages", 0))
			}
			if err := fields.apply(cmd, v); err != nil {
				return writeErr(cmd, err)
			}
			out, err := savePage(ctx, a, ed)
			if err != nil {
				return writeErr(cmd, err)
			}
			touchRecent(ctx, a, out.Page)
			return writeOut(cmd, app, map[string]any{"data": out.Page})
		},
	}

	fields.register(cmd)
	cmd.Flags().StringVar(&start, "start", "", "Start time (required)")
	cmd.Flags().StringVar(&end, "end", "", "End time (default: none, the page ends when it starts)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

// getPage maps a 404 onto notFoundError.
func getPage(ctx context.Context, a *core.App, id int64) (model.Page, error) {
	p, err := a.Gateway.GetPage(ctx, id)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return model.Page{}, errNotFound("page", id)
		}
		return model.Page{}, userErr(err)
	}
	return p, nil
}

// loadForEdit fetches the page fresh and seeds the calendar with it, so the
// editor reads live times from the same place the TUI does.
func loadForEdit(ctx context.Context, a *core.App, id int64) (model.Page, error) {
	p, err := getPage(ctx, a, id)
	if err != nil {
		return model.Page{}, err
	}
	a.Calendar.Upsert(p)
	return p, nil
}

func newPagesUpdateCmd(app *App) *cobra.Command {
	var fields pageFields

	cmd := &cobra.Command{
		Use:   "update <page-id>",
		Short: "Update page fields you are allowed to edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := loadApp(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			p, err := loadForEdit(ctx, a, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			ed, v := openEditor(cmd, a)
			ed.OpenExisting(p)
			if !ed.Policy().CanSave {
				return writeErr(cmd, errPermission(a.Session.Role, "edit", id))
			}
			if err := fields.apply(cmd, v); err != nil {
				return writeErr(cmd, err)
			}
			out, err := savePage(ctx, a, ed)
			if err != nil {
				return writeErr(cmd, err)
			}
			touchRecent(ctx, a, out.Page)
			return writeOut(cmd, app, map[string]any{"data": out.Page})
		},
	}

	fields.register(cmd)
	return cmd
}

func newPagesSetStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <page-id> <status>",
		Short: "Change only the status of a page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			status, err := statusutil.NormalizeStatus(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := loadApp(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			p, err := getPage(ctx, a, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !perm.ForPage(a.Session, p).Status.Editable {
				return writeErr(cmd, errPermission(a.Session.Role, "change the status of", id))
			}
			updated, err := a.Gateway.SetStatus(ctx, id, status)
			if err != nil {
				return writeErr(cmd, userErr(err))
			}
			touchRecent(ctx, a, updated)
			return writeOut(cmd, app, map[string]any{"data": updated})
		},
	}
	return cmd
}

func newPagesMoveCmd(app *App) *cobra.Command {
	var by, extend, start, end string

	cmd := &cobra.Command{
		Use:   "move <page-id>",
		Short: "Reschedule a page (shift by a duration, resize, or set times)",
		Example: strings.TrimSpace(`
  pagecal pages move 12 --by 24h
  pagecal pages move 12 --extend 30m
  pagecal pages move 12 --start "2025-06-03 14:00" --end "2025-06-03 15:30"
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := loadApp(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			p, err := loadForEdit(ctx, a, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !perm.ForPage(a.Session, p).CanSave {
				return writeErr(cmd, errPermission(a.Session.Role, "reschedule", id))
			}

			op, err := moveOp(a.Calendar, p, by, extend, start, end)
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, err := a.Calendar.FinishUpdate(op.Run(ctx, a.Gateway)); err != nil {
				return writeErr(cmd, userErr(err))
			}
			confirmed, _ := a.Calendar.Page(id)
			return writeOut(cmd, app, map[string]any{"data": confirmed})
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "Shift start and end by a duration (e.g. 30m, -24h)")
	cmd.Flags().StringVar(&extend, "extend", "", "Move only the end by a duration")
	cmd.Flags().StringVar(&start, "start", "", "New start time")
	cmd.Flags().StringVar(&end, "end", "", "New end time")
	return cmd
}

func moveOp(cal *calendar.Controller, p model.Page, by, extend, start, end string) (*calendar.UpdateOp, error) {
	switch {
	case by != "":
		d, err := time.ParseDuration(by)
		if err != nil {
			return nil, fmt.Errorf("--by: %w", err)
		}
		return cal.Move(p.ID, d)
	case extend != "":
		d, err := time.ParseDuration(extend)
		if err != nil {
			return nil, fmt.Errorf("--extend: %w", err)
		}
		return cal.Resize(p.ID, d)
	case start != "" || end != "":
		st, et := p.StartTime.Time, p.End()
		var err error
		if start != "" {
			dur := et.Sub(st)
			if st, err = parseTime(start, time.Local); err != nil {
				return nil, fmt.Errorf("--start: %w", err)
			}
			et = st.Add(dur)
		}
		if end != "" {
			if et, err = parseTime(end, time.Local); err != nil {
				return nil, fmt.Errorf("--end: %w", err)
			}
		}
		return cal.Reschedule(p.ID, st, et)
	default:
		return nil, errors.New("provide one of --by, --extend, or --start/--end")
	}
}

func newPagesDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <page-id>",
		Short: "Delete a page (admins and managers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				return writeErr(cmd, errors.New("refusing to delete without --yes"))
			}
			a, err := loadApp(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			p, err := loadForEdit(ctx, a, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			v := &headlessView{}
			ed := a.NewEditor(v)
			ed.OpenExisting(p)
			if err := ed.RequestDelete(); err != nil {
				if errors.Is(err, editor.ErrReadOnly) {
					return writeErr(cmd, errPermission(a.Session.Role, "delete", id))
				}
				return writeErr(cmd, err)
			}
			op, err := ed.ConfirmDelete()
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, err := ed.FinishDelete(op.Run(ctx, a.Gateway)); err != nil {
				return writeErr(cmd, userErr(err))
			}
			if a.State != nil {
				if err := a.State.ForgetRecent(ctx, id); err != nil {
					a.Logger.Warn("forget recent", "page_id", id, "err", err)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "deleted": true}})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func touchRecent(ctx context.Context, a *core.App, p model.Page) {
	if a.State == nil || p.ID == 0 {
		return
	}
	if err := a.State.TouchRecent(ctx, p.ID, p.Title, time.Now()); err != nil {
		a.Logger.Warn("touch recent", "page_id", p.ID, "err", err)
	}
}
