package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"pagecal/internal/model"
)

type fakeMetrics struct {
	m   model.Metrics
	err error
}

func (f fakeMetrics) Metrics(context.Context) (model.Metrics, error) { return f.m, f.err }

func i64(v int64) *int64 { return &v }

func refresh(t *testing.T, c *Controller, src MetricsSource) error {
	t.Helper()
	op := c.PrepareRefresh()
	applied, err := c.FinishRefresh(op.Run(context.Background(), src))
	if !applied {
		t.Fatalf("refresh not applied")
	}
	return err
}

func visibleIDs(c *Controller) []WidgetID {
	var out []WidgetID
	for _, w := range c.Visible() {
		out = append(out, w.ID)
	}
	return out
}

func TestWidgetsFor(t *testing.T) {
	t.Parallel()

	cases := map[model.Role]int{
		model.RoleAdmin:   3,
		model.RoleManager: 5,
		model.RoleMember:  3,
		"auditor":         1,
	}
	for role, want := range cases {
		if got := len(WidgetsFor(role)); got != want {
			t.Fatalf("%s: %d widgets, want %d", role, got, want)
		}
	}
}

func TestManagerWithoutTeam_OmitsTeamWidgets(t *testing.T) {
	t.Parallel()

	c := New(model.Session{UserID: 9, Role: model.RoleManager})
	err := refresh(t, c, fakeMetrics{m: model.Metrics{Role: model.RoleManager, Context: model.MetricsContext{
		MyTasks: &model.StatusCounts{Todo: 1, Done: 2},
		Error:   "Manager has no team assigned",
	}}})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got := visibleIDs(c)
	want := []WidgetID{WidgetMyStatus, WidgetMyProportion, WidgetRecent}
	if len(got) != len(want) {
		t.Fatalf("visible = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visible = %v, want %v", got, want)
		}
	}
	if c.Notice() == "" {
		t.Fatalf("expected notice to carry the context error")
	}
	w, _ := c.Widget(WidgetMyStatus)
	if w.Chart.Total() != 3 {
		t.Fatalf("my_status total = %d", w.Chart.Total())
	}
}

func TestRefresh_UpdatesChartsInPlace(t *testing.T) {
	t.Parallel()

	c := New(model.Session{UserID: 2, Role: model.RoleManager, TeamID: i64(10)})
	before, _ := c.Widget(WidgetTeamWorkload)
	chart := before.Chart

	m := model.Metrics{Context: model.MetricsContext{
		MyTasks:   &model.StatusCounts{Todo: 1},
		TeamTasks: &model.StatusCounts{Todo: 2, InProgress: 1},
		Workload:  []model.WorkloadEntry{{UserID: 7, Username: "chloe", Active: 2}},
	}}
	if err := refresh(t, c, fakeMetrics{m: m}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	m.Context.Workload[0].Active = 5
	if err := refresh(t, c, fakeMetrics{m: m}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	after, _ := c.Widget(WidgetTeamWorkload)
	if after.Chart != chart {
		t.Fatalf("chart was re-created")
	}
	if chart.Version != 2 || chart.Data[0].Value != 5 {
		t.Fatalf("chart not updated in place: version=%d data=%+v", chart.Version, chart.Data)
	}
}

func TestAdminWidgets(t *testing.T) {
	t.Parallel()

	c := New(model.Session{UserID: 1, Role: model.RoleAdmin})
	n := 4
	err := refresh(t, c, fakeMetrics{m: model.Metrics{Context: model.MetricsContext{
		NewPagesWeek: &n,
		Categories:   map[string]int{"bug": 2, "meeting": 1, "legacy": 1},
	}}})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	w, _ := c.Widget(WidgetNewThisWeek)
	if w.Chart.Data[0].Value != 4 {
		t.Fatalf("new_this_week = %+v", w.Chart.Data)
	}
	cats, _ := c.Widget(WidgetCategories)
	if cats.Chart.Total() != 4 || cats.Chart.Data[len(cats.Chart.Data)-1].Label != "legacy" {
		t.Fatalf("categories = %+v", cats.Chart.Data)
	}
}

func TestMissingAggregate_DegradesOnlyItsWidget(t *testing.T) {
	t.Parallel()

	c := New(model.Session{UserID: 1, Role: model.RoleAdmin})
	n := 1
	if err := refresh(t, c, fakeMetrics{m: model.Metrics{Context: model.MetricsContext{NewPagesWeek: &n}}}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	cats, _ := c.Widget(WidgetCategories)
	if cats.Chart.Unavailable == "" || cats.Hidden {
		t.Fatalf("categories should render as unavailable: %+v", cats)
	}
	if w, _ := c.Widget(WidgetNewThisWeek); w.Chart.Unavailable != "" {
		t.Fatalf("new_this_week should be unaffected")
	}
}

func TestRefresh_FailureAndStale(t *testing.T) {
	t.Parallel()

	c := New(model.Session{UserID: 7, Role: model.RoleMember})
	stale := c.PrepareRefresh()
	cur := c.PrepareRefresh()
	if applied, _ := c.FinishRefresh(stale.Run(context.Background(), fakeMetrics{})); applied {
		t.Fatalf("stale refresh applied")
	}
	boom := errors.New("boom")
	if _, err := c.FinishRefresh(cur.Run(context.Background(), fakeMetrics{err: boom})); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if w, _ := c.Widget(WidgetMyStatus); w.Chart.Unavailable == "" {
		t.Fatalf("failed refresh should mark widgets unavailable")
	}
}

func TestRecent(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var pages []model.Page
	for i := 1; i <= 7; i++ {
		pages = append(pages, model.Page{ID: int64(i), Title: "p", StartTime: model.NewTimestamp(base),
			UpdatedAt: model.TimestampPtr(base.Add(time.Duration(i) * time.Hour))})
	}
	got := Recent(pages)
	if len(got) != RecentLimit || got[0].ID != 7 || got[4].ID != 3 {
		t.Fatalf("Recent = %+v", got)
	}

	c := New(model.Session{UserID: 7, Role: model.RoleMember})
	c.SetRecent(pages)
	w, _ := c.Widget(WidgetRecent)
	if len(w.Chart.Data) != RecentLimit || w.Chart.Data[0].Ref != 7 {
		t.Fatalf("recent widget = %+v", w.Chart.Data)
	}
}
