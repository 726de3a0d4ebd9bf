package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pagecal/internal/app"
	"pagecal/internal/config"
	"pagecal/internal/editor"
	"pagecal/internal/fakeapi"
	"pagecal/internal/logging"
	"pagecal/internal/model"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, userID int64, role, token string) (*appModel, *fakeapi.Server) {
	t.Helper()
	api := fakeapi.New()
	fakeapi.Seed(api, testNow)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.API.Token = token
	cfg.Session = config.SessionConfig{UserID: userID, Role: role}
	a, err := app.New(context.Background(), app.Options{
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.yaml"),
		WithState:  true,
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	m := newAppModel(context.Background(), a)
	m.now = func() time.Time { return testNow }
	// Deliver delayed messages immediately.
	m.after = func(_ time.Duration, msg tea.Msg) tea.Cmd { return func() tea.Msg { return msg } }
	m.showWeek(testNow)
	m.curDay, m.curIdx = 0, 0
	m.width, m.height = 160, 50
	drain(t, m, m.Init())
	return m, api
}

// drain runs cmd and feeds every resulting message back into m.
func drain(t *testing.T, m *appModel, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		_, next := m.Update(msg)
		queue = append(queue, next)
	}
}

func press(m *appModel, k tea.KeyMsg) tea.Cmd {
	_, cmd := m.Update(k)
	return cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestModel_InitLoadsWeekDirectoryAndDashboard(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t, 2, "manager", fakeapi.TokenManager)
	if got := len(m.app.Calendar.Events()); got != 4 {
		t.Fatalf("expected 4 events for the manager's team, got %d", got)
	}
	if m.app.Directory() == nil {
		t.Fatalf("expected directory to be loaded")
	}
	if !m.app.Dashboard.Loaded() {
		t.Fatalf("expected dashboard metrics to be loaded")
	}
	if ev, ok := m.selected(); !ok || ev.Title != "Sprint planning" {
		t.Fatalf("expected cursor on the first event of the day; got %+v ok=%v", ev, ok)
	}
	if v := m.View(); v == "" {
		t.Fatalf("expected a rendered view")
	}
}

func TestModel_MemberNewPageIsAssignedToSelf(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t, 7, "member", fakeapi.TokenMember)
	press(m, runes("n"))
	if m.ed.State() != editor.StateNew {
		t.Fatalf("expected new page panel; got %s", m.ed.State())
	}
	for _, r := range "Pair review" {
		press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatalf("expected a save command")
	}
	drain(t, m, cmd)

	if m.ed.State() != editor.StateClosed {
		t.Fatalf("expected panel to close after save; got %s", m.ed.State())
	}
	var found *model.Page
	for _, p := range m.app.Calendar.Pages() {
		if p.Title == "Pair review" {
			p := p
			found = &p
		}
	}
	if found == nil {
		t.Fatalf("expected the new page after refetch")
	}
	if found.AssigneeID == nil || *found.AssigneeID != 7 || found.Status != model.StatusTodo {
		t.Fatalf("unexpected page: %+v", found)
	}
}

func TestModel_EmptyTitleDoesNotSave(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, 2, "manager", fakeapi.TokenManager)
	press(m, runes("n"))
	if cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlS}); cmd != nil {
		t.Fatalf("expected no save command for an empty title")
	}
	if m.panel.errMsg != "Title is required" {
		t.Fatalf("errMsg = %q", m.panel.errMsg)
	}
	if m.ed.State() != editor.StateNew {
		t.Fatalf("state changed to %s", m.ed.State())
	}
	if n := api.Requests("POST /api/pages"); n != 0 {
		t.Fatalf("expected no POST, got %d", n)
	}
}

func TestModel_RejectedMoveRollsBack(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, 2, "manager", fakeapi.TokenManager)
	ev, _ := m.selected()
	orig := ev.Start

	api.FailNext(http.MethodPut, "/api/pages/", http.StatusConflict, "Page is locked")
	cmd := press(m, runes("L"))
	moved, _ := m.app.Calendar.Event(ev.ID)
	if !moved.Start.Equal(orig.Add(24*time.Hour)) || !moved.Pending {
		t.Fatalf("expected optimistic move; got %v pending=%v", moved.Start, moved.Pending)
	}
	if m.curDay != 1 {
		t.Fatalf("expected cursor to follow the event; day=%d", m.curDay)
	}

	drain(t, m, cmd)
	back, _ := m.app.Calendar.Event(ev.ID)
	if !back.Start.Equal(orig) || back.Pending {
		t.Fatalf("expected rollback to %v; got %v", orig, back.Start)
	}
	if m.flash != "Page is locked" || !m.flashErr {
		t.Fatalf("flash = %q", m.flash)
	}
}

func TestModel_MemberCannotRescheduleOthersPage(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, 8, "member", fakeapi.TokenOtherMember)
	// dmitri sees only the CI upgrade, on day 1.
	press(m, runes("l"))
	if _, ok := m.selected(); !ok {
		t.Fatalf("expected a selection on day 1")
	}
	// Owned page: status can be cycled.
	drain(t, m, press(m, runes("s")))
	ev, _ := m.selected()
	if ev.Status != model.StatusInProgress {
		t.Fatalf("expected todo -> in_progress; got %s", ev.Status)
	}
	if n := api.Requests("PUT /api/pages/{id}"); n != 1 {
		t.Fatalf("expected one PUT, got %d", n)
	}
}

func TestModel_DeleteConfirmRemovesEvent(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t, 2, "manager", fakeapi.TokenManager)
	ev, _ := m.selected()
	drain(t, m, press(m, tea.KeyMsg{Type: tea.KeyEnter}))
	if m.ed.State() != editor.StateExisting {
		t.Fatalf("expected the panel open; got %s", m.ed.State())
	}

	press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if !m.ed.ConfirmingDelete() {
		t.Fatalf("expected delete confirmation")
	}
	// n cancels.
	press(m, runes("n"))
	if m.ed.ConfirmingDelete() {
		t.Fatalf("expected confirmation to be dismissed")
	}

	// Focus starts on cancel, so enter dismisses too.
	press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.ed.ConfirmingDelete() {
		t.Fatalf("expected enter on cancel to dismiss")
	}
	if _, ok := m.app.Calendar.Event(ev.ID); !ok {
		t.Fatalf("event %d removed without confirmation", ev.ID)
	}

	press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	drain(t, m, press(m, runes("y")))
	if _, ok := m.app.Calendar.Event(ev.ID); ok {
		t.Fatalf("expected event %d removed", ev.ID)
	}
	if m.ed.State() != editor.StateClosed {
		t.Fatalf("expected panel closed after delete")
	}
}

func TestModel_WeekNavigationRefetches(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, 1, "admin", fakeapi.TokenAdmin)
	before := api.Requests("GET /api/pages")
	drain(t, m, press(m, runes("]")))
	if !m.weekStart.Equal(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("weekStart = %v", m.weekStart)
	}
	if api.Requests("GET /api/pages") != before+1 {
		t.Fatalf("expected a refetch")
	}
	if n := len(m.app.Calendar.Events()); n != 0 {
		t.Fatalf("expected an empty next week, got %d", n)
	}
	drain(t, m, press(m, runes("t")))
	if n := len(m.app.Calendar.Events()); n != 5 {
		t.Fatalf("expected 5 events back on today, got %d", n)
	}
}

func TestModel_StateSurvivesRestart(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t, 1, "admin", fakeapi.TokenAdmin)
	press(m, runes("d"))
	m.saveState()

	st, err := m.app.State.LoadTUIState(context.Background())
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if st.View != "dashboard" || st.WeekAnchor != "2025-06-02" {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestConfirmDialog_ToggleAndView(t *testing.T) {
	t.Parallel()

	d := newDeleteDialog("Retro notes")
	if d.onConfirm {
		t.Fatalf("expected focus on cancel initially")
	}
	d.toggle()
	if !d.onConfirm {
		t.Fatalf("expected focus on confirm after toggle")
	}
	out := d.view(80)
	for _, want := range []string{"Delete page?", "Retro notes", "Delete", "Cancel"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dialog view missing %q:\n%s", want, out)
		}
	}
}
