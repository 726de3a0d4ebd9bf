// Package calendar holds the calendar's event set and keeps it in step with the
// API. Drags and resizes apply locally at once and are reverted when the server
// refuses them.
//
// Controller methods are not safe for concurrent use. They are meant to be
// called from the UI loop; the network half of each operation lives on an op
// value whose Run touches no controller state.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pagecal/internal/metrics"
	"pagecal/internal/model"
)

// MinDuration is the shortest event a resize can produce.
const MinDuration = 15 * time.Minute

var ErrUnknownEvent = errors.New("unknown event")

// Lister is what a fetch needs from the gateway.
type Lister interface {
	ListPages(ctx context.Context, start, end *time.Time) ([]model.Page, error)
}

// Updater is what a drag or resize needs from the gateway.
type Updater interface {
	UpdatePage(ctx context.Context, id int64, in model.PagePayload) (model.Page, error)
}

// Event is the display form of a page.
type Event struct {
	ID         int64
	Title      string
	Start      time.Time
	End        time.Time
	Status     model.Status
	Category   model.Category
	Priority   model.Priority
	AssigneeID *int64
	Fill       string
	Border     string
	// Pending is set while a gesture on this event awaits the server.
	Pending bool
}

// ToEvent maps a page onto its display event.
func ToEvent(p model.Page) Event {
	return Event{
		ID:         p.ID,
		Title:      p.Title,
		Start:      p.StartTime.Time,
		End:        p.End(),
		Status:     p.Status,
		Category:   p.Category,
		Priority:   p.Priority,
		AssigneeID: p.AssigneeID,
		Fill:       FillColor(p.Status),
		Border:     BorderColor(p.Category),
	}
}

type entry struct {
	// page is the last server-confirmed copy.
	page  model.Page
	start time.Time
	end   time.Time
	// token identifies the newest gesture on this entry; zero when idle.
	token uint64
	// confirmed is the token of the gesture whose result page holds.
	confirmed uint64
}

type Controller struct {
	rangeStart time.Time
	rangeEnd   time.Time

	entries    map[int64]*entry
	fetchToken uint64
	nextToken  uint64
	loaded     bool
}

func New() *Controller {
	return &Controller{entries: map[int64]*entry{}}
}

// SetRange sets the visible window. Zero times leave that side open.
func (c *Controller) SetRange(start, end time.Time) {
	c.rangeStart, c.rangeEnd = start, end
}

func (c *Controller) Range() (time.Time, time.Time) {
	return c.rangeStart, c.rangeEnd
}

// Loaded reports whether at least one fetch has completed.
func (c *Controller) Loaded() bool { return c.loaded }

func (c *Controller) token() uint64 {
	c.nextToken++
	return c.nextToken
}

// FetchOp lists pages for the range captured when it was prepared.
type FetchOp struct {
	token uint64
	start *time.Time
	end   *time.Time
}

type FetchResult struct {
	token uint64
	Pages []model.Page
	Err   error
}

func (c *Controller) PrepareFetch() *FetchOp {
	op := &FetchOp{token: c.token()}
	c.fetchToken = op.token
	if !c.rangeStart.IsZero() {
		s := c.rangeStart
		op.start = &s
	}
	if !c.rangeEnd.IsZero() {
		e := c.rangeEnd
		op.end = &e
	}
	return op
}

func (op *FetchOp) Run(ctx context.Context, gw Lister) FetchResult {
	pages, err := gw.ListPages(ctx, op.start, op.end)
	return FetchResult{token: op.token, Pages: pages, Err: err}
}

// FinishFetch replaces the event set. Results from a superseded fetch are
// dropped and reported as not applied. Events with a gesture in flight keep
// their live times.
func (c *Controller) FinishFetch(res FetchResult) (bool, error) {
	if res.token != c.fetchToken {
		return false, nil
	}
	c.fetchToken = 0
	if res.Err != nil {
		return true, res.Err
	}
	next := make(map[int64]*entry, len(res.Pages))
	for _, p := range res.Pages {
		e := &entry{page: p, start: p.StartTime.Time, end: p.End()}
		if old, ok := c.entries[p.ID]; ok && old.token != 0 {
			e.start, e.end, e.token, e.confirmed = old.start, old.end, old.token, old.confirmed
		}
		next[p.ID] = e
	}
	c.entries = next
	c.loaded = true
	return true, nil
}

// Upsert records a page the server just returned, e.g. after an editor save.
func (c *Controller) Upsert(p model.Page) {
	e, ok := c.entries[p.ID]
	if !ok {
		c.entries[p.ID] = &entry{page: p, start: p.StartTime.Time, end: p.End()}
		return
	}
	e.page = p
	if e.token == 0 {
		e.start, e.end = p.StartTime.Time, p.End()
	}
}

func (c *Controller) Remove(id int64) {
	delete(c.entries, id)
}

func (c *Controller) event(e *entry) Event {
	ev := ToEvent(e.page)
	ev.Start, ev.End = e.start, e.end
	ev.Pending = e.token != 0
	return ev
}

func (c *Controller) Event(id int64) (Event, bool) {
	e, ok := c.entries[id]
	if !ok {
		return Event{}, false
	}
	return c.event(e), true
}

// Page returns the last confirmed page for id.
func (c *Controller) Page(id int64) (model.Page, bool) {
	e, ok := c.entries[id]
	if !ok {
		return model.Page{}, false
	}
	return e.page, true
}

// Pages returns the confirmed pages in start order.
func (c *Controller) Pages() []model.Page {
	out := make([]model.Page, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.page)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime.Time) {
			return out[i].StartTime.Before(out[j].StartTime.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// EventTimes returns the live (possibly dragged) times for id.
func (c *Controller) EventTimes(id int64) (time.Time, time.Time, bool) {
	e, ok := c.entries[id]
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return e.start, e.end, true
}

// Events returns every event ordered by start, then id.
func (c *Controller) Events() []Event {
	out := make([]Event, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, c.event(e))
	}
	sortEvents(out)
	return out
}

// Day returns the events starting on the calendar day of t in t's location.
func (c *Controller) Day(t time.Time) []Event {
	y, m, d := t.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	to := from.AddDate(0, 0, 1)
	var out []Event
	for _, e := range c.entries {
		s := e.start.In(t.Location())
		if !s.Before(from) && s.Before(to) {
			out = append(out, c.event(e))
		}
	}
	sortEvents(out)
	return out
}

func sortEvents(evs []Event) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}

// UpdateOp persists one gesture: the confirmed page with only start/end changed.
type UpdateOp struct {
	ID      int64
	Payload model.PagePayload
	token   uint64
}

type UpdateResult struct {
	ID    int64
	token uint64
	Page  model.Page
	Err   error
}

func (op *UpdateOp) Run(ctx context.Context, gw Updater) UpdateResult {
	p, err := gw.UpdatePage(ctx, op.ID, op.Payload)
	return UpdateResult{ID: op.ID, token: op.token, Page: p, Err: err}
}

// Move shifts the event by delta, keeping its duration.
func (c *Controller) Move(id int64, delta time.Duration) (*UpdateOp, error) {
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("move %d: %w", id, ErrUnknownEvent)
	}
	return c.Reschedule(id, e.start.Add(delta), e.end.Add(delta))
}

// Resize moves the end by delta. The event never gets shorter than MinDuration.
func (c *Controller) Resize(id int64, delta time.Duration) (*UpdateOp, error) {
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("resize %d: %w", id, ErrUnknownEvent)
	}
	end := e.end.Add(delta)
	if end.Before(e.start.Add(MinDuration)) {
		end = e.start.Add(MinDuration)
	}
	return c.Reschedule(id, e.start, end)
}

// Reschedule applies new times immediately and returns the op that persists them.
func (c *Controller) Reschedule(id int64, start, end time.Time) (*UpdateOp, error) {
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("reschedule %d: %w", id, ErrUnknownEvent)
	}
	e.start, e.end = start, end
	e.token = c.token()

	payload := e.page.Payload()
	payload.StartTime = model.NewTimestamp(start)
	payload.EndTime = model.TimestampPtr(end)
	return &UpdateOp{ID: id, Payload: payload, token: e.token}, nil
}

// FinishUpdate applies a gesture result. A result superseded by a newer
// gesture on the same event is not applied to the live times. A superseded
// success still becomes the confirmed copy unless a newer gesture was
// confirmed first. On failure the event reverts to the last confirmed times
// and the error is returned for display.
func (c *Controller) FinishUpdate(res UpdateResult) (bool, error) {
	e, ok := c.entries[res.ID]
	if !ok {
		return false, nil
	}
	if res.token != e.token {
		if res.Err == nil && res.token > e.confirmed {
			e.page, e.confirmed = res.Page, res.token
		}
		return false, nil
	}
	e.token = 0
	if res.Err != nil {
		e.start, e.end = e.page.StartTime.Time, e.page.End()
		metrics.ObserveRollback()
		return true, res.Err
	}
	e.page, e.confirmed = res.Page, res.token
	e.start, e.end = res.Page.StartTime.Time, res.Page.End()
	return true, nil
}

// WeekStart returns midnight of the first day of t's week.
func WeekStart(t time.Time, first time.Weekday) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) - int(first) + 7) % 7
	return day.AddDate(0, 0, -offset)
}
