// Package ics renders pages as an iCalendar feed.
package ics

import (
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"pagecal/internal/model"
)

const productID = "-//pagecal//pagecal export//EN"

type Options struct {
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// Host scopes event UIDs, e.g. the API host.
	Host string
	// PageURL, when set, builds a URL for each page.
	PageURL func(id int64) string
	// Assignee resolves assignee ids to names for the description footer.
	Assignee func(id *int64) string
	Now      time.Time
}

// priorityValue maps onto RFC 5545 PRIORITY (1 highest, 9 lowest).
func priorityValue(p model.Priority) string {
	switch p {
	case model.PriorityCritical:
		return "1"
	case model.PriorityHigh:
		return "3"
	case model.PriorityLow:
		return "9"
	default:
		return "5"
	}
}

// statusValue maps page status onto VEVENT STATUS. done pages stay CONFIRMED;
// the page status is also carried in X-PAGECAL-STATUS.
func statusValue(s model.Status) string {
	if s == model.StatusTodo {
		return "TENTATIVE"
	}
	return "CONFIRMED"
}

func UID(id int64, host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "pagecal"
	}
	return "page-" + strconv.FormatInt(id, 10) + "@" + host
}

// Build converts pages into a calendar.
func Build(pages []model.Page, opts Options) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	for _, p := range pages {
		ev := cal.AddEvent(UID(p.ID, opts.Host))
		ev.SetDtStampTime(now.UTC())
		if p.CreatedAt != nil && !p.CreatedAt.IsZero() {
			ev.SetCreatedTime(p.CreatedAt.UTC())
		}
		if p.UpdatedAt != nil && !p.UpdatedAt.IsZero() {
			ev.SetModifiedAt(p.UpdatedAt.UTC())
		}
		ev.SetStartAt(p.StartTime.UTC())
		ev.SetEndAt(p.End().UTC())
		ev.SetSummary(p.Title)
		if desc := description(p, opts); desc != "" {
			ev.SetDescription(desc)
		}
		ev.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(p.Category)))
		ev.SetProperty(ical.ComponentPropertyPriority, priorityValue(p.Priority))
		ev.SetProperty(ical.ComponentPropertyStatus, statusValue(p.Status))
		ev.SetProperty(ical.ComponentProperty("X-PAGECAL-STATUS"), string(p.Status))
		if opts.PageURL != nil {
			ev.SetURL(opts.PageURL(p.ID))
		}
	}
	return cal
}

func description(p model.Page, opts Options) string {
	body := strings.TrimSpace(p.Content)
	if opts.Assignee == nil {
		return body
	}
	footer := "Assignee: " + opts.Assignee(p.AssigneeID)
	if body == "" {
		return footer
	}
	return body + "\n\n" + footer
}

// Write serializes pages to w.
func Write(w io.Writer, pages []model.Page, opts Options) error {
	_, err := io.WriteString(w, Build(pages, opts).Serialize())
	return err
}
