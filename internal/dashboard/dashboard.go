// Package dashboard builds the role-scoped metrics widgets.
//
// Widgets are created once per session and their charts are updated in place
// on every refresh, so a renderer holding a *Chart keeps the same value.
package dashboard

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"pagecal/internal/model"
	"pagecal/internal/statusutil"
)

// RecentLimit is how many recently updated pages the recent widget lists.
const RecentLimit = 5

type WidgetID string

const (
	WidgetMyStatus     WidgetID = "my_status"
	WidgetMyProportion WidgetID = "my_proportion"
	WidgetTeamStatus   WidgetID = "team_status"
	WidgetTeamWorkload WidgetID = "team_workload"
	WidgetNewThisWeek  WidgetID = "new_this_week"
	WidgetCategories   WidgetID = "categories"
	WidgetRecent       WidgetID = "recent"
)

type ChartKind string

const (
	KindBar     ChartKind = "bar"
	KindShare   ChartKind = "share"
	KindCounter ChartKind = "counter"
	KindList    ChartKind = "list"
)

type Point struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	// Ref links the point back to a record, e.g. a page id in the recent list.
	Ref int64 `json:"ref,omitempty"`
}

type Chart struct {
	Kind ChartKind `json:"kind"`
	Data []Point   `json:"data"`
	// Version counts data updates since the chart was created.
	Version int `json:"version"`
	// Unavailable holds why the chart has no data, if it has none.
	Unavailable string `json:"unavailable,omitempty"`
}

// SetData replaces the chart's data in place.
func (c *Chart) SetData(points []Point) {
	c.Data = append(c.Data[:0], points...)
	c.Unavailable = ""
	c.Version++
}

func (c *Chart) SetUnavailable(reason string) {
	c.Data = c.Data[:0]
	c.Unavailable = reason
	c.Version++
}

func (c *Chart) Total() int {
	n := 0
	for _, p := range c.Data {
		n += p.Value
	}
	return n
}

type Widget struct {
	ID    WidgetID `json:"id"`
	Title string   `json:"title"`
	Chart *Chart   `json:"chart"`
	// Hidden widgets belong to the role but have nothing to show this refresh.
	Hidden bool `json:"hidden,omitempty"`
}

// MetricsSource is the slice of the gateway a refresh needs.
type MetricsSource interface {
	Metrics(ctx context.Context) (model.Metrics, error)
}

type Controller struct {
	session model.Session
	widgets []*Widget
	byID    map[WidgetID]*Widget

	notice   string
	inflight uint64
	next     uint64
	loaded   bool
}

// WidgetsFor lists the widget ids offered to role, in display order.
func WidgetsFor(role model.Role) []WidgetID {
	var ids []WidgetID
	switch role {
	case model.RoleAdmin:
		ids = []WidgetID{WidgetNewThisWeek, WidgetCategories}
	case model.RoleManager:
		ids = []WidgetID{WidgetMyStatus, WidgetMyProportion, WidgetTeamStatus, WidgetTeamWorkload}
	case model.RoleMember:
		ids = []WidgetID{WidgetMyStatus, WidgetMyProportion}
	}
	return append(ids, WidgetRecent)
}

var widgetMeta = map[WidgetID]struct {
	title string
	kind  ChartKind
}{
	WidgetMyStatus:     {"My tasks by status", KindBar},
	WidgetMyProportion: {"My task mix", KindShare},
	WidgetTeamStatus:   {"Team tasks by status", KindBar},
	WidgetTeamWorkload: {"Active tasks per member", KindBar},
	WidgetNewThisWeek:  {"New pages this week", KindCounter},
	WidgetCategories:   {"Pages by category", KindShare},
	WidgetRecent:       {"Recently updated", KindList},
}

func New(s model.Session) *Controller {
	c := &Controller{session: s, byID: map[WidgetID]*Widget{}}
	for _, id := range WidgetsFor(s.Role) {
		meta := widgetMeta[id]
		w := &Widget{ID: id, Title: meta.title, Chart: &Chart{Kind: meta.kind}}
		c.widgets = append(c.widgets, w)
		c.byID[id] = w
	}
	return c
}

// Widgets returns every widget for the session's role, hidden ones included.
func (c *Controller) Widgets() []*Widget {
	return append([]*Widget(nil), c.widgets...)
}

// Visible returns the widgets with something to draw.
func (c *Controller) Visible() []*Widget {
	out := make([]*Widget, 0, len(c.widgets))
	for _, w := range c.widgets {
		if !w.Hidden {
			out = append(out, w)
		}
	}
	return out
}

func (c *Controller) Widget(id WidgetID) (*Widget, bool) {
	w, ok := c.byID[id]
	return w, ok
}

// Notice is the server's context error from the last refresh, if any.
func (c *Controller) Notice() string { return c.notice }

func (c *Controller) Loaded() bool { return c.loaded }
func (c *Controller) Busy() bool   { return c.inflight != 0 }

type RefreshOp struct {
	token uint64
}

type RefreshResult struct {
	token   uint64
	Metrics model.Metrics
	Err     error
}

func (c *Controller) PrepareRefresh() *RefreshOp {
	c.next++
	c.inflight = c.next
	return &RefreshOp{token: c.next}
}

// Run fetches metrics. The gateway adds the cache-busting parameter.
func (op *RefreshOp) Run(ctx context.Context, gw MetricsSource) RefreshResult {
	m, err := gw.Metrics(ctx)
	return RefreshResult{token: op.token, Metrics: m, Err: err}
}

// FinishRefresh applies a metrics response. A failed fetch marks every
// metrics widget unavailable but leaves the recent list alone.
func (c *Controller) FinishRefresh(res RefreshResult) (bool, error) {
	if res.token != c.inflight {
		return false, nil
	}
	c.inflight = 0
	if res.Err != nil {
		for _, w := range c.widgets {
			if w.ID != WidgetRecent {
				w.Chart.SetUnavailable("metrics unavailable")
			}
		}
		return true, res.Err
	}
	c.apply(res.Metrics.Context)
	c.loaded = true
	return true, nil
}

func statusPoints(sc model.StatusCounts) []Point {
	return []Point{
		{Label: statusutil.StatusLabel(model.StatusTodo), Value: sc.Todo},
		{Label: statusutil.StatusLabel(model.StatusInProgress), Value: sc.InProgress},
		{Label: statusutil.StatusLabel(model.StatusDone), Value: sc.Done},
	}
}

func (c *Controller) set(id WidgetID, present bool, reason string, points func() []Point) {
	w, ok := c.byID[id]
	if !ok {
		return
	}
	if !present {
		w.Hidden = reason == ""
		w.Chart.SetUnavailable(reason)
		return
	}
	w.Hidden = false
	w.Chart.SetData(points())
}

func (c *Controller) apply(mc model.MetricsContext) {
	c.notice = strings.TrimSpace(mc.Error)

	mine := mc.MyTasks != nil
	c.set(WidgetMyStatus, mine, "no data", func() []Point { return statusPoints(*mc.MyTasks) })
	c.set(WidgetMyProportion, mine, "no data", func() []Point { return statusPoints(*mc.MyTasks) })

	// A context error means the team section does not apply: hide it.
	teamReason := "no data"
	if c.notice != "" {
		teamReason = ""
	}
	c.set(WidgetTeamStatus, c.notice == "" && mc.TeamTasks != nil, teamReason, func() []Point { return statusPoints(*mc.TeamTasks) })
	c.set(WidgetTeamWorkload, c.notice == "" && mc.Workload != nil, teamReason, func() []Point {
		pts := make([]Point, 0, len(mc.Workload))
		for _, e := range mc.Workload {
			label := e.Username
			if label == "" {
				label = "#" + strconv.FormatInt(e.UserID, 10)
			}
			pts = append(pts, Point{Label: label, Value: e.Active, Ref: e.UserID})
		}
		return pts
	})

	c.set(WidgetNewThisWeek, mc.NewPagesWeek != nil, "no data", func() []Point {
		return []Point{{Label: "new", Value: *mc.NewPagesWeek}}
	})
	c.set(WidgetCategories, mc.Categories != nil, "no data", func() []Point {
		pts := make([]Point, 0, len(model.Categories))
		seen := map[string]bool{}
		for _, cat := range model.Categories {
			seen[string(cat)] = true
			pts = append(pts, Point{Label: string(cat), Value: mc.Categories[string(cat)]})
		}
		var extra []string
		for k := range mc.Categories {
			if !seen[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			pts = append(pts, Point{Label: k, Value: mc.Categories[k]})
		}
		return pts
	})
}

// SetRecent feeds the recent widget from the calendar's pages.
func (c *Controller) SetRecent(pages []model.Page) {
	w, ok := c.byID[WidgetRecent]
	if !ok {
		return
	}
	w.Chart.SetData(recentPoints(pages))
}

// Recent returns up to RecentLimit pages, most recently updated first.
func Recent(pages []model.Page) []model.Page {
	out := append([]model.Page(nil), pages...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := touched(out[i]), touched(out[j])
		if !ti.Equal(tj.Time) {
			return ti.After(tj.Time)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > RecentLimit {
		out = out[:RecentLimit]
	}
	return out
}

func recentPoints(pages []model.Page) []Point {
	recent := Recent(pages)
	pts := make([]Point, 0, len(recent))
	for _, p := range recent {
		pts = append(pts, Point{Label: p.Title, Ref: p.ID})
	}
	return pts
}

func touched(p model.Page) model.Timestamp {
	switch {
	case p.UpdatedAt != nil && !p.UpdatedAt.IsZero():
		return *p.UpdatedAt
	case p.CreatedAt != nil && !p.CreatedAt.IsZero():
		return *p.CreatedAt
	default:
		return p.StartTime
	}
}
