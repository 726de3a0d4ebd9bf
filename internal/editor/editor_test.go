package editor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pagecal/internal/gateway"
	"pagecal/internal/model"
	"pagecal/internal/perm"
)

type fakeView struct {
	open      bool
	heading   string
	vals      Values
	policy    perm.FieldPolicy
	options   []model.User
	canSave   bool
	canDelete bool
	busy      bool
	confirm   bool
	errMsg    string
	saved     bool
}

func (v *fakeView) Open(h string)                     { v.open, v.heading, v.errMsg, v.saved = true, h, "", false }
func (v *fakeView) Close()                            { v.open = false }
func (v *fakeView) SetValues(vals Values)             { v.vals = vals }
func (v *fakeView) Values() Values                    { return v.vals }
func (v *fakeView) SetFieldAccess(p perm.FieldPolicy) { v.policy = p }
func (v *fakeView) SetAssigneeOptions(u []model.User) { v.options = u }
func (v *fakeView) SetActions(save, del bool)         { v.canSave, v.canDelete = save, del }
func (v *fakeView) SetBusy(b bool)                    { v.busy = b }
func (v *fakeView) ShowDeleteConfirm(b bool)          { v.confirm = b }
func (v *fakeView) ShowError(msg string)              { v.errMsg = msg }
func (v *fakeView) ShowSaved()                        { v.saved = true }

type fakeCalendar struct {
	times   map[int64][2]time.Time
	removed []int64
}

func (f *fakeCalendar) EventTimes(id int64) (time.Time, time.Time, bool) {
	t, ok := f.times[id]
	return t[0], t[1], ok
}

func (f *fakeCalendar) Remove(id int64) { f.removed = append(f.removed, id) }

type fakeDir []model.User

func (d fakeDir) Assignable() []model.User { return d }

type fakeGateway struct {
	created []model.PagePayload
	updated []model.PagePayload
	deleted []int64
	err     error
}

func (g *fakeGateway) CreatePage(_ context.Context, in model.PagePayload) (model.Page, error) {
	g.created = append(g.created, in)
	if g.err != nil {
		return model.Page{}, g.err
	}
	return pageFrom(100, in), nil
}

func (g *fakeGateway) UpdatePage(_ context.Context, id int64, in model.PagePayload) (model.Page, error) {
	g.updated = append(g.updated, in)
	if g.err != nil {
		return model.Page{}, g.err
	}
	return pageFrom(id, in), nil
}

func (g *fakeGateway) DeletePage(_ context.Context, id int64) error {
	g.deleted = append(g.deleted, id)
	return g.err
}

func pageFrom(id int64, in model.PagePayload) model.Page {
	return model.Page{
		ID: id, Title: in.Title, Content: in.Content, Category: in.Category, Priority: in.Priority,
		Status: in.Status, AssigneeID: in.AssigneeID, StartTime: in.StartTime, EndTime: in.EndTime,
	}
}

func i64(v int64) *int64 { return &v }

var (
	t0     = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	member = model.Session{UserID: 7, Role: model.RoleMember, TeamID: i64(10)}
	admin  = model.Session{UserID: 1, Role: model.RoleAdmin}
)

func existing() model.Page {
	return model.Page{
		ID: 2, Title: "Fix login redirect", Content: "<p>twice</p>", Category: model.CategoryBug,
		Priority: model.PriorityHigh, Status: model.StatusInProgress, AssigneeID: i64(7),
		StartTime: model.NewTimestamp(t0), EndTime: model.TimestampPtr(t0.Add(time.Hour)),
	}
}

func newController(s model.Session) (*Controller, *fakeView, *fakeCalendar) {
	v := &fakeView{}
	cal := &fakeCalendar{times: map[int64][2]time.Time{}}
	return New(s, v, cal, fakeDir{{ID: 7, Username: "chloe"}}), v, cal
}

func TestMemberNew_AssigneeForcedToSelf(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(member)
	c.OpenNew(t0, t0.Add(time.Hour))
	if v.policy.Assignee.Editable || !v.policy.Title.Editable {
		t.Fatalf("unexpected field access: %+v", v.policy)
	}
	if v.vals.AssigneeID == nil || *v.vals.AssigneeID != 7 {
		t.Fatalf("assignee should default to the viewer")
	}

	// A tampered view claims someone else is the assignee.
	v.vals.Title = "Write tests"
	v.vals.AssigneeID = i64(8)

	op, err := c.PrepareSave()
	if err != nil {
		t.Fatalf("PrepareSave: %v", err)
	}
	if op.Payload.AssigneeID == nil || *op.Payload.AssigneeID != 7 {
		t.Fatalf("assignee = %v, want 7", op.Payload.AssigneeID)
	}
	if op.Payload.Status != model.StatusTodo {
		t.Fatalf("status = %q, want todo", op.Payload.Status)
	}
	if !op.Payload.StartTime.Equal(t0) || op.Payload.EndTime == nil || !op.Payload.EndTime.Equal(t0.Add(time.Hour)) {
		t.Fatalf("times not taken from the selected slot")
	}
}

func TestEmptyTitle_NoRequestStateUnchanged(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(admin)
	c.OpenNew(t0, time.Time{})
	v.vals.Title = "   "
	v.vals.Content = "draft body"

	op, err := c.PrepareSave()
	if !errors.Is(err, ErrTitleRequired) || op != nil {
		t.Fatalf("expected ErrTitleRequired and no op, got %v %v", op, err)
	}
	if c.State() != StateNew || c.Busy() || v.busy {
		t.Fatalf("state changed: state=%v busy=%v", c.State(), c.Busy())
	}
	if v.errMsg == "" || v.vals.Content != "draft body" {
		t.Fatalf("expected inline error with content kept; got %q %q", v.errMsg, v.vals.Content)
	}
}

func TestMemberOwned_OnlyStatusFromView(t *testing.T) {
	t.Parallel()

	c, v, cal := newController(member)
	p := existing()
	c.OpenExisting(p)
	cal.times[p.ID] = [2]time.Time{t0.Add(2 * time.Hour), t0.Add(3 * time.Hour)}

	v.vals.Title = "hijacked"
	v.vals.Content = "gone"
	v.vals.Status = model.StatusDone
	v.vals.AssigneeID = nil

	op, err := c.PrepareSave()
	if err != nil {
		t.Fatalf("PrepareSave: %v", err)
	}
	got := op.Payload
	if got.Title != p.Title || got.Content != p.Content || got.AssigneeID == nil || *got.AssigneeID != 7 {
		t.Fatalf("read-only fields leaked from the view: %+v", got)
	}
	if got.Status != model.StatusDone || !op.StatusChanged {
		t.Fatalf("status change missing: %+v", got)
	}
	if !got.StartTime.Equal(t0.Add(2 * time.Hour)) {
		t.Fatalf("save must use the live calendar times, got %v", got.StartTime)
	}
}

func TestSave_AbsentEndStaysAbsent(t *testing.T) {
	t.Parallel()

	c, v, cal := newController(member)
	p := existing()
	p.EndTime = nil
	c.OpenExisting(p)
	// The calendar shows a missing end at the start time.
	cal.times[p.ID] = [2]time.Time{t0, t0}
	v.vals.Status = model.StatusDone

	op, err := c.PrepareSave()
	if err != nil {
		t.Fatalf("PrepareSave: %v", err)
	}
	if op.Payload.EndTime != nil {
		t.Fatalf("end = %v, want absent", op.Payload.EndTime.Time)
	}
	if !op.Payload.StartTime.Equal(t0) {
		t.Fatalf("start = %v, want %v", op.Payload.StartTime.Time, t0)
	}
}

func TestSave_RescheduledEventSendsBothTimes(t *testing.T) {
	t.Parallel()

	c, _, cal := newController(admin)
	p := existing()
	p.EndTime = nil
	c.OpenExisting(p)
	cal.times[p.ID] = [2]time.Time{t0.Add(time.Hour), t0.Add(time.Hour)}

	op, err := c.PrepareSave()
	if err != nil {
		t.Fatalf("PrepareSave: %v", err)
	}
	if !op.Payload.StartTime.Equal(t0.Add(time.Hour)) || op.Payload.EndTime == nil || !op.Payload.EndTime.Equal(t0.Add(time.Hour)) {
		t.Fatalf("moved times not sent: start=%v end=%v", op.Payload.StartTime.Time, op.Payload.EndTime)
	}
}

func TestSave_TitleSentAsTyped(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(admin)
	c.OpenExisting(existing())
	v.vals.Title = "  Fix login redirect "

	op, err := c.PrepareSave()
	if err != nil {
		t.Fatalf("PrepareSave: %v", err)
	}
	if op.Payload.Title != "  Fix login redirect " {
		t.Fatalf("title = %q", op.Payload.Title)
	}

	c.Close()
	c.OpenExisting(existing())
	v.vals.Title = " \t "
	if _, err := c.PrepareSave(); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("blank title: got %v", err)
	}
}

func TestReload(t *testing.T) {
	t.Parallel()

	fresh := existing()
	fresh.Title = "Fix login redirect (server)"
	fresh.Status = model.StatusDone

	tests := []struct {
		name  string
		setup func(t *testing.T, c *Controller, v *fakeView)
		page  model.Page
		want  bool
		title string
	}{
		{
			name:  "untouched panel takes the fresh copy",
			page:  fresh,
			want:  true,
			title: fresh.Title,
		},
		{
			name:  "typed edit is kept",
			setup: func(_ *testing.T, _ *Controller, v *fakeView) { v.vals.Title = "user typed this" },
			page:  fresh,
			title: "user typed this",
		},
		{
			name:  "assignee change is kept",
			setup: func(_ *testing.T, _ *Controller, v *fakeView) { v.vals.AssigneeID = i64(8) },
			page:  fresh,
			title: existing().Title,
		},
		{
			name:  "other page ignored",
			page:  model.Page{ID: 99, Title: "other"},
			title: existing().Title,
		},
		{
			name: "busy panel ignored",
			setup: func(t *testing.T, c *Controller, _ *fakeView) {
				if _, err := c.PrepareSave(); err != nil {
					t.Fatalf("PrepareSave: %v", err)
				}
			},
			page:  fresh,
			title: existing().Title,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, v, _ := newController(admin)
			c.OpenExisting(existing())
			if tt.setup != nil {
				tt.setup(t, c, v)
			}
			if got := c.Reload(tt.page); got != tt.want {
				t.Fatalf("Reload = %v, want %v", got, tt.want)
			}
			if v.vals.Title != tt.title {
				t.Fatalf("panel title = %q, want %q", v.vals.Title, tt.title)
			}
			if tt.want && c.Snapshot().Status != model.StatusDone {
				t.Fatalf("snapshot not replaced: %+v", c.Snapshot())
			}
		})
	}
}

func TestMemberNotOwned_ReadOnly(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(member)
	p := existing()
	p.AssigneeID = i64(8)
	c.OpenExisting(p)
	if v.canSave || v.canDelete {
		t.Fatalf("actions should be hidden: save=%v delete=%v", v.canSave, v.canDelete)
	}
	if _, err := c.PrepareSave(); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := c.RequestDelete(); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestSave_SuccessShowsSavedThenCloses(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(admin)
	c.OpenExisting(existing())
	v.vals.Title = "Fix login redirect loop"

	op, err := c.PrepareSave()
	if err != nil {
		t.Fatalf("PrepareSave: %v", err)
	}
	if !v.busy {
		t.Fatalf("inputs should be disabled while saving")
	}
	if _, err := c.PrepareSave(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second save while in flight: got %v", err)
	}

	gw := &fakeGateway{}
	out := c.FinishSave(op.Run(context.Background(), gw))
	if !out.Applied || out.Err != nil || out.CloseToken == 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(gw.updated) != 1 || gw.updated[0].Title != "Fix login redirect loop" {
		t.Fatalf("unexpected update calls: %+v", gw.updated)
	}
	if !v.saved || v.busy || !v.open {
		t.Fatalf("expected saved indicator on an open, idle panel")
	}
	if !c.CloseIfSaved(out.CloseToken) || v.open || c.State() != StateClosed {
		t.Fatalf("panel should close after the saved indicator")
	}
}

func TestSave_ReopenCancelsPendingClose(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(admin)
	c.OpenExisting(existing())
	op, _ := c.PrepareSave()
	out := c.FinishSave(op.Run(context.Background(), &fakeGateway{}))

	c.OpenNew(t0, time.Time{})
	if c.CloseIfSaved(out.CloseToken) || !v.open {
		t.Fatalf("a reopened panel must not be closed by an old save")
	}
}

func TestSave_ServerDetailShownVerbatim(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(admin)
	c.OpenExisting(existing())
	op, _ := c.PrepareSave()
	err := &gateway.APIError{StatusCode: 403, Detail: "Permission denied"}
	out := c.FinishSave(op.Run(context.Background(), &fakeGateway{err: err}))
	if !out.Applied || out.Err == nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if v.errMsg != "Permission denied" || !v.open || c.State() != StateExisting {
		t.Fatalf("panel should stay open with detail; got %q open=%v", v.errMsg, v.open)
	}
}

func TestSave_StaleResultIgnored(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(admin)
	c.OpenExisting(existing())
	op, _ := c.PrepareSave()
	c.Close()
	c.OpenExisting(existing())

	out := c.FinishSave(op.Run(context.Background(), &fakeGateway{}))
	if out.Applied || !out.Persisted {
		t.Fatalf("stale save should be persisted but not applied: %+v", out)
	}
	if v.saved {
		t.Fatalf("stale save must not touch the reopened panel")
	}
}

func TestDelete_ConfirmRemovesFromCalendar(t *testing.T) {
	t.Parallel()

	c, v, cal := newController(admin)
	c.OpenExisting(existing())
	if _, err := c.ConfirmDelete(); !errors.Is(err, ErrNotArmed) {
		t.Fatalf("confirm without request: %v", err)
	}
	if err := c.RequestDelete(); err != nil || !v.confirm {
		t.Fatalf("RequestDelete: %v confirm=%v", err, v.confirm)
	}
	op, err := c.ConfirmDelete()
	if err != nil || op == nil {
		t.Fatalf("ConfirmDelete: %v %v", op, err)
	}
	gw := &fakeGateway{}
	if applied, err := c.FinishDelete(op.Run(context.Background(), gw)); !applied || err != nil {
		t.Fatalf("FinishDelete: %v %v", applied, err)
	}
	if len(cal.removed) != 1 || cal.removed[0] != 2 || c.State() != StateClosed {
		t.Fatalf("expected event removed and panel closed")
	}
}

func TestDelete_FailureKeepsPanelOpen(t *testing.T) {
	t.Parallel()

	c, v, cal := newController(admin)
	c.OpenExisting(existing())
	_ = c.RequestDelete()
	op, _ := c.ConfirmDelete()
	_, err := c.FinishDelete(op.Run(context.Background(), &fakeGateway{err: &gateway.TransportError{Op: "DELETE", Err: errors.New("refused")}}))
	if err == nil || len(cal.removed) != 0 || !v.open {
		t.Fatalf("failure should keep the page and the panel")
	}
	if v.errMsg != gateway.NetworkAlert {
		t.Fatalf("errMsg = %q", v.errMsg)
	}
}

func TestDelete_NewDraftAdminDiscards(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(admin)
	c.OpenNew(t0, time.Time{})
	if !v.canDelete {
		t.Fatalf("admin delete should be offered on new pages")
	}
	_ = c.RequestDelete()
	op, err := c.ConfirmDelete()
	if op != nil || err != nil || c.State() != StateClosed {
		t.Fatalf("draft discard: op=%v err=%v state=%v", op, err, c.State())
	}
}

func TestManagerNew_NoDelete(t *testing.T) {
	t.Parallel()

	c, _, _ := newController(model.Session{UserID: 2, Role: model.RoleManager, TeamID: i64(10)})
	c.OpenNew(t0, time.Time{})
	if err := c.RequestDelete(); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestInsertImage(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(admin)
	c.OpenExisting(existing())
	if err := c.InsertImage("/static/uploads/a.png"); err != nil {
		t.Fatalf("InsertImage: %v", err)
	}
	if !strings.HasSuffix(v.vals.Content, `<p><img src="/static/uploads/a.png"></p>`) {
		t.Fatalf("content = %q", v.vals.Content)
	}

	if got := AppendImage("# Notes", "/x.png"); got != "# Notes\n\n![](/x.png)" {
		t.Fatalf("AppendImage markdown = %q", got)
	}

	m, _, _ := newController(member)
	m.OpenExisting(existing())
	if err := m.InsertImage("/x.png"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("member owned page content is read-only; got %v", err)
	}
}

func TestUnknownRole_FailsClosed(t *testing.T) {
	t.Parallel()

	c, v, _ := newController(model.Session{UserID: 7, Role: "auditor"})
	c.OpenExisting(existing())
	if len(v.policy.EditableFields()) != 0 || v.canSave || v.canDelete {
		t.Fatalf("unknown role should be read-only: %+v", v.policy)
	}
	if !v.policy.Title.Visible {
		t.Fatalf("fields should stay visible")
	}
}
