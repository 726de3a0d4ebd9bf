package fakeapi

import (
	"context"
	"time"

	"pagecal/internal/model"
)

func withUser(ctx context.Context, a authedRequest) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, a)
}

func userFrom(ctx context.Context) authedRequest {
	a, _ := ctx.Value(ctxUserKey{}).(authedRequest)
	return a
}

func i64(v int64) *int64 { return &v }

// Seed tokens for the demo directory.
const (
	TokenAdmin        = "admin-token"
	TokenManager      = "manager-token"
	TokenMember       = "member-token"
	TokenOtherMember  = "other-member-token"
	TokenTeamlessLead = "teamless-manager-token"
)

// Seed fills s with a small team and a week of pages around now.
func Seed(s *Server, now time.Time) {
	s.AddUser(model.User{ID: 1, Username: "alice", Role: model.RoleAdmin}, TokenAdmin)
	s.AddUser(model.User{ID: 2, Username: "bruno", Role: model.RoleManager, TeamID: i64(10)}, TokenManager)
	s.AddUser(model.User{ID: 7, Username: "chloe", Role: model.RoleMember, TeamID: i64(10)}, TokenMember)
	s.AddUser(model.User{ID: 8, Username: "dmitri", Role: model.RoleMember, TeamID: i64(20)}, TokenOtherMember)
	s.AddUser(model.User{ID: 9, Username: "eva", Role: model.RoleManager}, TokenTeamlessLead)

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	at := func(d, h int) model.Timestamp { return model.NewTimestamp(day.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)) }
	end := func(d, h int) *model.Timestamp { ts := at(d, h); return &ts }

	s.AddPage(model.Page{Title: "Sprint planning", Content: "<p>Agenda: <strong>scope</strong>, estimates.</p>",
		Category: model.CategoryMeeting, Priority: model.PriorityMedium, Status: model.StatusTodo,
		StartTime: at(0, 9), EndTime: end(0, 10), AuthorID: i64(2), AssigneeID: i64(2)})
	s.AddPage(model.Page{Title: "Fix login redirect", Content: "Users land on /dashboard twice.",
		Category: model.CategoryBug, Priority: model.PriorityHigh, Status: model.StatusInProgress,
		StartTime: at(0, 13), EndTime: end(0, 15), AuthorID: i64(2), AssigneeID: i64(7)})
	s.AddPage(model.Page{Title: "Upgrade CI runners", Content: "",
		Category: model.CategoryDevops, Priority: model.PriorityLow, Status: model.StatusTodo,
		StartTime: at(1, 10), AuthorID: i64(1), AssigneeID: i64(8)})
	s.AddPage(model.Page{Title: "Calendar export", Content: "# Export\n\nShip the **ics** export.",
		Category: model.CategoryFeature, Priority: model.PriorityCritical, Status: model.StatusDone,
		StartTime: at(2, 11), EndTime: end(2, 12), AuthorID: i64(7), AssigneeID: i64(7)})
	s.AddPage(model.Page{Title: "Retro notes", Content: "",
		Category: model.CategoryOther, Priority: model.PriorityMedium, Status: model.StatusTodo,
		StartTime: at(4, 16), EndTime: end(4, 17), AuthorID: i64(2)})
}
