// Package editor drives the side-panel page editor: which fields are live for
// the viewer, what gets sent on save, and the delete confirmation.
//
// The controller owns no widgets. It talks to the panel through View, and
// like the calendar it splits every network operation into a prepare step,
// an op whose Run does the I/O, and a finish step. Prepare and Finish must be
// called from the UI loop.
package editor

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"pagecal/internal/gateway"
	"pagecal/internal/model"
	"pagecal/internal/perm"
)

// SavedIndicatorDelay is how long the "saved" state shows before the panel closes.
const SavedIndicatorDelay = 500 * time.Millisecond

var (
	ErrTitleRequired = errors.New("title is required")
	ErrBusy          = errors.New("a save or delete is already in progress")
	ErrClosed        = errors.New("editor is closed")
	ErrReadOnly      = errors.New("not permitted for this page")
	ErrNotArmed      = errors.New("delete was not requested")
)

type State int

const (
	StateClosed State = iota
	StateNew
	StateExisting
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateExisting:
		return "existing"
	default:
		return "closed"
	}
}

// Values are the panel's field contents.
type Values struct {
	Title      string
	Content    string
	Category   model.Category
	Priority   model.Priority
	Status     model.Status
	AssigneeID *int64
}

type View interface {
	Open(heading string)
	Close()
	SetValues(Values)
	Values() Values
	SetFieldAccess(perm.FieldPolicy)
	SetAssigneeOptions([]model.User)
	SetActions(canSave, canDelete bool)
	SetBusy(bool)
	ShowDeleteConfirm(bool)
	ShowError(msg string)
	ShowSaved()
}

// Calendar is the editor's view of the calendar: live times for an event that
// may have been dragged, and removal after a delete.
type Calendar interface {
	EventTimes(id int64) (start, end time.Time, ok bool)
	Remove(id int64)
}

type Assignees interface {
	Assignable() []model.User
}

type Saver interface {
	CreatePage(ctx context.Context, in model.PagePayload) (model.Page, error)
	UpdatePage(ctx context.Context, id int64, in model.PagePayload) (model.Page, error)
}

type Deleter interface {
	DeletePage(ctx context.Context, id int64) error
}

type Controller struct {
	session model.Session
	view    View
	cal     Calendar
	dir     Assignees

	state    State
	policy   perm.FieldPolicy
	snapshot model.Page

	pendingStart time.Time
	pendingEnd   time.Time

	nextToken  uint64
	inflight   uint64
	savedToken uint64
	confirming bool
}

func New(s model.Session, v View, cal Calendar, dir Assignees) *Controller {
	return &Controller{session: s, view: v, cal: cal, dir: dir}
}

func (c *Controller) State() State             { return c.state }
func (c *Controller) Policy() perm.FieldPolicy { return c.policy }
func (c *Controller) Snapshot() model.Page     { return c.snapshot }
func (c *Controller) Busy() bool               { return c.inflight != 0 }
func (c *Controller) ConfirmingDelete() bool   { return c.confirming }

func (c *Controller) PendingRange() (time.Time, time.Time) {
	return c.pendingStart, c.pendingEnd
}

func (c *Controller) token() uint64 {
	c.nextToken++
	return c.nextToken
}

func (c *Controller) reset() {
	c.inflight = 0
	c.savedToken = 0
	c.confirming = false
}

func (c *Controller) assignees() []model.User {
	if c.dir == nil {
		return nil
	}
	return c.dir.Assignable()
}

func (c *Controller) push(heading string, vals Values) {
	c.view.Open(heading)
	c.view.SetFieldAccess(c.policy)
	c.view.SetAssigneeOptions(c.assignees())
	c.view.SetValues(vals)
	c.view.SetActions(c.policy.CanSave, c.policy.CanDelete)
	c.view.ShowDeleteConfirm(false)
	c.view.SetBusy(false)
}

// OpenNew opens a blank page for the selected time slot.
func (c *Controller) OpenNew(start, end time.Time) {
	c.reset()
	c.state = StateNew
	c.snapshot = model.Page{}
	c.pendingStart, c.pendingEnd = start, end
	c.policy = perm.ForNew(c.session)

	vals := Values{Category: model.CategoryOther, Priority: model.PriorityMedium, Status: model.StatusTodo}
	if c.policy.ForceSelfAssignee {
		id := c.session.UserID
		vals.AssigneeID = &id
	}
	c.push("New page", vals)
}

// OpenExisting opens p as the calendar last saw it.
func (c *Controller) OpenExisting(p model.Page) {
	c.reset()
	c.state = StateExisting
	c.snapshot = p
	c.pendingStart, c.pendingEnd = time.Time{}, time.Time{}
	c.policy = perm.ForPage(c.session, p)
	c.push(p.Title, valuesOf(p))
}

// Reload replaces the snapshot with a fresher copy of the open page. It is
// ignored when a different page is open, an operation is in flight, or the
// user has already changed a field.
func (c *Controller) Reload(p model.Page) bool {
	if c.state != StateExisting || p.ID != c.snapshot.ID || c.Busy() {
		return false
	}
	if !c.view.Values().equal(valuesOf(c.snapshot)) {
		return false
	}
	c.snapshot = p
	c.policy = perm.ForPage(c.session, p)
	c.view.SetFieldAccess(c.policy)
	c.view.SetValues(valuesOf(p))
	c.view.SetActions(c.policy.CanSave, c.policy.CanDelete)
	return true
}

func (c *Controller) Close() {
	c.reset()
	c.state = StateClosed
	c.snapshot = model.Page{}
	c.view.Close()
}

func (v Values) equal(o Values) bool {
	if v.Title != o.Title || v.Content != o.Content || v.Category != o.Category ||
		v.Priority != o.Priority || v.Status != o.Status {
		return false
	}
	if v.AssigneeID == nil || o.AssigneeID == nil {
		return v.AssigneeID == o.AssigneeID
	}
	return *v.AssigneeID == *o.AssigneeID
}

func valuesOf(p model.Page) Values {
	v := Values{
		Title:    p.Title,
		Content:  p.Content,
		Category: p.Category,
		Priority: p.Priority,
		Status:   p.Status,
	}
	if p.AssigneeID != nil {
		id := *p.AssigneeID
		v.AssigneeID = &id
	}
	return v
}

// payload merges the view's editable fields over the snapshot.
func (c *Controller) payload(vals Values) model.PagePayload {
	var out model.PagePayload
	if c.state == StateExisting {
		out = c.snapshot.Payload()
	} else {
		out = model.PagePayload{Category: model.CategoryOther, Priority: model.PriorityMedium, Status: model.StatusTodo}
	}

	if c.policy.Title.Editable {
		out.Title = vals.Title
	}
	if c.policy.Content.Editable {
		out.Content = vals.Content
	}
	if c.policy.Category.Editable && vals.Category != "" {
		out.Category = vals.Category
	}
	if c.policy.Priority.Editable && vals.Priority != "" {
		out.Priority = vals.Priority
	}
	if c.policy.Status.Editable && vals.Status != "" {
		out.Status = vals.Status
	}
	if c.policy.Assignee.Editable {
		out.AssigneeID = nil
		if vals.AssigneeID != nil {
			id := *vals.AssigneeID
			out.AssigneeID = &id
		}
	}
	if c.policy.ForceSelfAssignee {
		id := c.session.UserID
		out.AssigneeID = &id
	}
	if out.Status == "" {
		out.Status = model.StatusTodo
	}

	switch c.state {
	case StateNew:
		out.StartTime = model.NewTimestamp(c.pendingStart)
		out.EndTime = nil
		if !c.pendingEnd.IsZero() {
			out.EndTime = model.TimestampPtr(c.pendingEnd)
		}
	case StateExisting:
		// Untouched times are sent as loaded, so an absent end stays absent.
		if c.cal != nil {
			start, end, ok := c.cal.EventTimes(c.snapshot.ID)
			if ok && (!start.Equal(c.snapshot.StartTime.Time) || !end.Equal(c.snapshot.End())) {
				out.StartTime = model.NewTimestamp(start)
				out.EndTime = model.TimestampPtr(end)
			}
		}
	}
	return out
}

// SaveOp creates or updates one page.
type SaveOp struct {
	ID      int64
	Payload model.PagePayload
	// StatusChanged is set when the save moves the page to a new status.
	StatusChanged bool
	token         uint64
}

type SaveResult struct {
	token   uint64
	op      *SaveOp
	Page    model.Page
	Err     error
	Created bool
}

// PrepareSave validates and builds the save. An empty title fails with
// ErrTitleRequired before any request is built and leaves the panel as it was.
func (c *Controller) PrepareSave() (*SaveOp, error) {
	if c.state == StateClosed {
		return nil, ErrClosed
	}
	if c.Busy() {
		return nil, ErrBusy
	}
	if !c.policy.CanSave {
		return nil, ErrReadOnly
	}
	p := c.payload(c.view.Values())
	if strings.TrimSpace(p.Title) == "" {
		c.view.ShowError("Title is required")
		return nil, ErrTitleRequired
	}

	op := &SaveOp{Payload: p, token: c.token()}
	if c.state == StateExisting {
		op.ID = c.snapshot.ID
		op.StatusChanged = p.Status != c.snapshot.Status
	} else {
		op.StatusChanged = true
	}
	c.inflight = op.token
	c.confirming = false
	c.view.ShowDeleteConfirm(false)
	c.view.SetBusy(true)
	return op, nil
}

func (op *SaveOp) Run(ctx context.Context, gw Saver) SaveResult {
	res := SaveResult{token: op.token, op: op}
	if op.ID == 0 {
		res.Page, res.Err = gw.CreatePage(ctx, op.Payload)
		res.Created = res.Err == nil
	} else {
		res.Page, res.Err = gw.UpdatePage(ctx, op.ID, op.Payload)
	}
	return res
}

type SaveOutcome struct {
	// Applied is false when the panel moved on before the result arrived.
	Applied bool
	// Persisted is true whenever the server accepted the write, applied or not.
	Persisted     bool
	Page          model.Page
	StatusChanged bool
	Err           error
	// CloseToken is passed back to CloseIfSaved after SavedIndicatorDelay.
	CloseToken uint64
}

func (c *Controller) FinishSave(res SaveResult) SaveOutcome {
	out := SaveOutcome{Persisted: res.Err == nil, Page: res.Page, Err: res.Err}
	if res.op != nil {
		out.StatusChanged = res.op.StatusChanged
	}
	if res.token == 0 || res.token != c.inflight {
		return out
	}
	out.Applied = true
	c.inflight = 0
	c.view.SetBusy(false)

	if res.Err != nil {
		c.view.ShowError(gateway.UserMessage(res.Err))
		return out
	}
	c.state = StateExisting
	c.snapshot = res.Page
	c.policy = perm.ForPage(c.session, res.Page)
	c.savedToken = c.token()
	out.CloseToken = c.savedToken
	c.view.ShowSaved()
	return out
}

// CloseIfSaved closes the panel unless it was reopened or edited into a new
// operation since the save that produced token.
func (c *Controller) CloseIfSaved(token uint64) bool {
	if token == 0 || token != c.savedToken || c.Busy() {
		return false
	}
	c.Close()
	return true
}

// RequestDelete arms the delete confirmation.
func (c *Controller) RequestDelete() error {
	if c.state == StateClosed {
		return ErrClosed
	}
	if !c.policy.CanDelete {
		return ErrReadOnly
	}
	if c.Busy() {
		return ErrBusy
	}
	c.confirming = true
	c.view.ShowDeleteConfirm(true)
	return nil
}

func (c *Controller) CancelDelete() {
	if !c.confirming {
		return
	}
	c.confirming = false
	c.view.ShowDeleteConfirm(false)
}

type DeleteOp struct {
	ID    int64
	token uint64
}

type DeleteResult struct {
	token uint64
	ID    int64
	Err   error
}

// ConfirmDelete returns the op for an armed delete. Confirming on a page that
// was never created discards the draft and returns a nil op.
func (c *Controller) ConfirmDelete() (*DeleteOp, error) {
	if !c.confirming {
		return nil, ErrNotArmed
	}
	if c.Busy() {
		return nil, ErrBusy
	}
	c.confirming = false
	if c.state == StateNew {
		c.Close()
		return nil, nil
	}
	op := &DeleteOp{ID: c.snapshot.ID, token: c.token()}
	c.inflight = op.token
	c.view.ShowDeleteConfirm(false)
	c.view.SetBusy(true)
	return op, nil
}

func (op *DeleteOp) Run(ctx context.Context, gw Deleter) DeleteResult {
	return DeleteResult{token: op.token, ID: op.ID, Err: gw.DeletePage(ctx, op.ID)}
}

// FinishDelete removes the event from the calendar and closes on success. A
// failure keeps the panel open with the server's message.
func (c *Controller) FinishDelete(res DeleteResult) (bool, error) {
	if res.Err == nil && c.cal != nil {
		c.cal.Remove(res.ID)
	}
	if res.token == 0 || res.token != c.inflight {
		return false, res.Err
	}
	c.inflight = 0
	c.view.SetBusy(false)
	if res.Err != nil {
		c.view.ShowError(gateway.UserMessage(res.Err))
		return true, res.Err
	}
	c.Close()
	return true, nil
}

// InsertImage appends an image reference to the content field.
func (c *Controller) InsertImage(url string) error {
	if c.state == StateClosed {
		return ErrClosed
	}
	if !c.policy.Content.Editable || c.Busy() {
		return ErrReadOnly
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("image url is empty")
	}
	vals := c.view.Values()
	vals.Content = AppendImage(vals.Content, url)
	c.view.SetValues(vals)
	return nil
}

// AppendImage adds an image reference in the content's own dialect.
func AppendImage(content, url string) string {
	var ref string
	if LooksLikeMarkup(content) {
		ref = `<p><img src="` + html.EscapeString(url) + `"></p>`
	} else {
		ref = "![](" + url + ")"
	}
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return ref
	}
	if LooksLikeMarkup(content) {
		return trimmed + ref
	}
	return trimmed + "\n\n" + ref
}

// LooksLikeMarkup reports whether content is HTML rather than markdown/plain text.
func LooksLikeMarkup(content string) bool {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "<") {
		return false
	}
	i := strings.IndexAny(s[1:], "> ")
	return i > 0
}
