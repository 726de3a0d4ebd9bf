package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"pagecal/internal/config"
	"pagecal/internal/fakeapi"
	"pagecal/internal/logging"
)

func newTestApp(t *testing.T, userID int64, role, token string) *App {
	t.Helper()
	api := fakeapi.New()
	fakeapi.Seed(api, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.API.Token = token
	cfg.Session = config.SessionConfig{UserID: userID, Role: role}
	a, err := New(context.Background(), Options{
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.yaml"),
		WithState:  true,
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_RequiresSession(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Options{Config: config.Default()}); err == nil {
		t.Fatalf("expected error without a session user")
	}
}

func TestAssignable_BeforeAndAfterDirectory(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, 7, "member", fakeapi.TokenMember)
	if got := a.Assignable(); len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("before load: %+v", got)
	}
	if _, err := a.LoadDirectory(context.Background()); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if got := a.Assignable(); len(got) != 1 || got[0].Username != "chloe" {
		t.Fatalf("after load: %+v", got)
	}
	if got := a.AssigneeLabel(nil); got != "unassigned" {
		t.Fatalf("AssigneeLabel(nil) = %q", got)
	}
	if a.State == nil {
		t.Fatalf("expected state store to open")
	}
}

func TestShowWeek_SetsCalendarRange(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, 1, "admin", fakeapi.TokenAdmin)
	start := a.ShowWeek(time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC))
	if !start.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start = %v", start)
	}
	op := a.Calendar.PrepareFetch()
	if _, err := a.Calendar.FinishFetch(op.Run(a.Context(context.Background()), a.Gateway)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n := len(a.Calendar.Events()); n != 5 {
		t.Fatalf("expected the seeded week, got %d events", n)
	}
}

func TestEditorSaveRefetch_EndToEnd(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, 2, "manager", fakeapi.TokenManager)
	a.ShowWeek(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	ctx := a.Context(context.Background())
	op := a.Calendar.PrepareFetch()
	if _, err := a.Calendar.FinishFetch(op.Run(ctx, a.Gateway)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n := len(a.Calendar.Events()); n != 4 {
		t.Fatalf("manager should see the team's 4 pages, got %d", n)
	}

	// Drag page 2 then change its status; the save must keep the drag.
	if _, err := a.Calendar.Move(2, time.Hour); err != nil {
		t.Fatalf("Move: %v", err)
	}
	liveStart, _, _ := a.Calendar.EventTimes(2)

	v := &recordingView{}
	ed := a.NewEditor(v)
	p, _ := a.Calendar.Page(2)
	ed.OpenExisting(p)
	v.vals.Status = "done"
	save, err := ed.PrepareSave()
	if err != nil {
		t.Fatalf("PrepareSave: %v", err)
	}
	out := ed.FinishSave(save.Run(ctx, a.Gateway))
	if out.Err != nil || !out.Applied {
		t.Fatalf("save: %+v", out)
	}
	if !out.Page.StartTime.Equal(liveStart) {
		t.Fatalf("saved start %v, want dragged %v", out.Page.StartTime, liveStart)
	}
}
