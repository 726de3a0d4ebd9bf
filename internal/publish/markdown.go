package publish

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"pagecal/internal/model"
	"pagecal/internal/statusutil"
)

type RenderOptions struct {
	// Location for displayed times; nil means UTC.
	Location *time.Location
	Assignee func(*int64) string
	// ResolveURL makes upload paths absolute.
	ResolveURL func(string) string
	// PageLink is the index's link target for a page; default PageFileName.
	PageLink func(int64) string
}

func (o RenderOptions) pageLink(id int64) string {
	if o.PageLink != nil {
		return o.PageLink(id)
	}
	return PageFileName(id)
}

func (o RenderOptions) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o RenderOptions) assignee(id *int64) string {
	if o.Assignee != nil {
		return o.Assignee(id)
	}
	if id == nil {
		return "unassigned"
	}
	return fmt.Sprintf("#%d", *id)
}

// PageFileName is the index-relative path of a page's file.
func PageFileName(id int64) string {
	return fmt.Sprintf("pages/%d.md", id)
}

func RenderPageMarkdown(p model.Page, opt RenderOptions) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "(untitled)"
	}
	writeLn("# " + title)
	writeLn("")
	writeLn("## Meta")
	writeLn("")
	writeLn(fmt.Sprintf("- ID: %d", p.ID))
	writeLn("- Status: " + statusutil.StatusLabel(p.Status))
	writeLn("- Category: " + string(p.Category))
	writeLn("- Priority: " + string(p.Priority))
	writeLn("- Assignee: " + opt.assignee(p.AssigneeID))
	if p.AuthorID != nil {
		writeLn("- Author: " + opt.assignee(p.AuthorID))
	}
	writeLn("- When: " + timeRange(p, opt.loc(), "2006-01-02 15:04"))
	if p.UpdatedAt != nil && !p.UpdatedAt.IsZero() {
		writeLn("- Updated: " + p.UpdatedAt.UTC().Format(time.RFC3339))
	}

	if body := resolveImages(ContentMarkdown(p.Content), opt.ResolveURL); body != "" {
		writeLn("")
		writeLn("## Content")
		writeLn("")
		writeLn(body)
	}
	return buf.String()
}

// RenderIndexMarkdown lists pages by day between start and end, linking each
// to its page file. Days without pages are listed so gaps stay visible.
func RenderIndexMarkdown(title string, start, end time.Time, pages []model.Page, opt RenderOptions) string {
	loc := opt.loc()
	sorted := sortedPages(pages)

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + title)
	day := dayStart(start.In(loc))
	last := end.In(loc)
	i := 0
	for !day.After(last) {
		next := day.AddDate(0, 0, 1)
		writeLn("")
		writeLn("## " + day.Format("Monday 2 January"))
		writeLn("")
		n := 0
		for ; i < len(sorted) && sorted[i].StartTime.Before(next); i++ {
			p := sorted[i]
			if p.StartTime.Before(day) {
				continue
			}
			writeLn(fmt.Sprintf("- %s [%s](%s) · %s · %s",
				timeRange(p, loc, "15:04"), strings.TrimSpace(p.Title), opt.pageLink(p.ID),
				statusutil.StatusLabel(p.Status), opt.assignee(p.AssigneeID)))
			n++
		}
		if n == 0 {
			writeLn("_Nothing scheduled._")
		}
		day = next
	}
	return buf.String()
}

func timeRange(p model.Page, loc *time.Location, layout string) string {
	start := p.StartTime.In(loc)
	if p.EndTime == nil || !p.End().After(p.StartTime.Time) {
		return start.Format(layout)
	}
	end := p.End().In(loc)
	endLayout := layout
	if sameDay(start, end) {
		endLayout = "15:04"
	}
	return start.Format(layout) + "–" + end.Format(endLayout)
}

func sortedPages(pages []model.Page) []model.Page {
	out := append([]model.Page(nil), pages...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime.Time) {
			return out[i].StartTime.Before(out[j].StartTime.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
