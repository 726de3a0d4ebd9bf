// Package app wires the session, gateway and controllers into one owner that
// the TUI and CLI share.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pagecal/internal/calendar"
	"pagecal/internal/config"
	"pagecal/internal/dashboard"
	"pagecal/internal/directory"
	"pagecal/internal/editor"
	"pagecal/internal/gateway"
	"pagecal/internal/logging"
	"pagecal/internal/metrics"
	"pagecal/internal/model"
	"pagecal/internal/store"
)

type Options struct {
	Config     *config.Config
	ConfigPath string
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
	// WithState opens the sqlite UI state store.
	WithState bool
	// Logger replaces the configured log file.
	Logger *slog.Logger
}

type App struct {
	Config     *config.Config
	ConfigPath string
	Session    model.Session
	Logger     *slog.Logger

	Gateway   *gateway.Client
	Calendar  *calendar.Controller
	Dashboard *dashboard.Controller
	State     *store.Store

	dir     *directory.Directory
	closers []io.Closer
}

func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is nil")
	}
	session, err := opts.Config.BuildSession()
	if err != nil {
		return nil, err
	}

	a := &App{Config: opts.Config, ConfigPath: opts.ConfigPath, Session: session}

	a.Logger = opts.Logger
	if a.Logger == nil {
		logger, closer, err := logging.Open(opts.Config.LogPath(opts.ConfigPath), opts.Config.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		a.Logger = logger
		a.closers = append(a.closers, closer)
	}
	a.Logger = a.Logger.With("user_id", session.UserID, "role", string(session.Role))

	a.Gateway, err = gateway.New(gateway.Options{
		BaseURL:   opts.Config.API.BaseURL,
		Token:     opts.Config.API.Token,
		Transport: opts.Transport,
		Logger:    a.Logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Calendar = calendar.New()
	a.Dashboard = dashboard.New(session)

	if opts.WithState {
		st, err := store.Open(ctx, opts.Config.StatePath(opts.ConfigPath))
		if err != nil {
			// UI state is a convenience; run without it.
			a.Logger.Warn("state store unavailable", "err", err)
		} else {
			a.State = st
			a.closers = append(a.closers, st)
		}
	}
	return a, nil
}

// Context attaches the app logger to ctx.
func (a *App) Context(ctx context.Context) context.Context {
	return logging.ContextWithLogger(ctx, a.Logger)
}

// LoadDirectory fetches the user list and rebuilds the assignee directory.
func (a *App) LoadDirectory(ctx context.Context) (*directory.Directory, error) {
	d, err := directory.Load(a.Context(ctx), a.Gateway, a.Session)
	if err != nil {
		return nil, err
	}
	a.dir = d
	return d, nil
}

// SetDirectory installs a directory loaded elsewhere (e.g. by a tea.Cmd).
func (a *App) SetDirectory(d *directory.Directory) { a.dir = d }

func (a *App) Directory() *directory.Directory { return a.dir }

// Assignable satisfies editor.Assignees. Until the directory is loaded only
// the viewer is offered, and only to roles that may assign at all.
func (a *App) Assignable() []model.User {
	if a.dir != nil {
		return a.dir.Assignable()
	}
	switch a.Session.Role {
	case model.RoleAdmin, model.RoleManager, model.RoleMember:
		return []model.User{{ID: a.Session.UserID, Username: fmt.Sprintf("#%d", a.Session.UserID), Role: a.Session.Role}}
	default:
		return nil
	}
}

// AssigneeLabel names an assignee for display.
func (a *App) AssigneeLabel(id *int64) string {
	if id == nil {
		return "unassigned"
	}
	if a.dir != nil {
		return a.dir.Label(*id)
	}
	return fmt.Sprintf("#%d", *id)
}

// NewEditor binds an editor controller to view.
func (a *App) NewEditor(view editor.View) *editor.Controller {
	return editor.New(a.Session, view, a.Calendar, a)
}

// ShowWeek points the calendar at the week containing t.
func (a *App) ShowWeek(t time.Time) time.Time {
	start := calendar.WeekStart(t, a.Config.WeekStartDay())
	a.Calendar.SetRange(start, start.AddDate(0, 0, 7).Add(-time.Nanosecond))
	return start
}

// ServeMetrics starts the /metrics listener when configured. It returns
// immediately; the listener stops with ctx.
func (a *App) ServeMetrics(ctx context.Context) {
	addr := strings.TrimSpace(a.Config.Metrics.Listen)
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr); err != nil {
			a.Logger.Warn("metrics listener stopped", "addr", addr, "err", err)
		}
	}()
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
