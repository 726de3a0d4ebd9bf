package model

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses lists the canonical statuses in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

type Category string

const (
	CategoryFeature Category = "feature"
	CategoryBug     Category = "bug"
	CategoryDevops  Category = "devops"
	CategoryMeeting Category = "meeting"
	CategoryOther   Category = "other"
)

var Categories = []Category{CategoryFeature, CategoryBug, CategoryDevops, CategoryMeeting, CategoryOther}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Page is a calendar event with documentation content.
type Page struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Category   Category   `json:"category"`
	Priority   Priority   `json:"priority"`
	Status     Status     `json:"status"`
	StartTime  Timestamp  `json:"start_time"`
	EndTime    *Timestamp `json:"end_time,omitempty"`
	AuthorID   *int64     `json:"author_id,omitempty"`
	AssigneeID *int64     `json:"assignee_id"`
	CreatedAt  *Timestamp `json:"created_at,omitempty"`
	UpdatedAt  *Timestamp `json:"updated_at,omitempty"`
}

// End returns the end time, defaulting to the start when the page has none.
func (p Page) End() time.Time {
	if p.EndTime == nil || p.EndTime.IsZero() {
		return p.StartTime.Time
	}
	return p.EndTime.Time
}

// AssignedTo reports whether the page is assigned to userID.
func (p Page) AssignedTo(userID int64) bool {
	return p.AssigneeID != nil && *p.AssigneeID == userID
}

// Payload returns the full write body for p.
func (p Page) Payload() PagePayload {
	out := PagePayload{
		Title:     p.Title,
		Content:   p.Content,
		Category:  p.Category,
		Priority:  p.Priority,
		Status:    p.Status,
		StartTime: p.StartTime,
	}
	if p.AssigneeID != nil {
		id := *p.AssigneeID
		out.AssigneeID = &id
	}
	if p.EndTime != nil {
		end := *p.EndTime
		out.EndTime = &end
	}
	return out
}

// PagePayload is the body of POST /api/pages and PUT /api/pages/{id}.
type PagePayload struct {
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Category   Category   `json:"category"`
	Priority   Priority   `json:"priority"`
	Status     Status     `json:"status"`
	AssigneeID *int64     `json:"assignee_id"`
	StartTime  Timestamp  `json:"start_time"`
	EndTime    *Timestamp `json:"end_time"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role,omitempty"`
	TeamID   *int64 `json:"team_id,omitempty"`
}

// InTeam reports whether the user belongs to teamID.
func (u User) InTeam(teamID *int64) bool {
	return teamID != nil && u.TeamID != nil && *u.TeamID == *teamID
}

// Session is the signed-in viewer. It is fixed for the lifetime of the process.
type Session struct {
	UserID int64  `json:"userId" yaml:"user_id"`
	Role   Role   `json:"role" yaml:"role"`
	TeamID *int64 `json:"teamId,omitempty" yaml:"team_id,omitempty"`
}

func (s Session) HasTeam() bool { return s.TeamID != nil }

type StatusCounts struct {
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
}

func (c StatusCounts) Total() int { return c.Todo + c.InProgress + c.Done }

type WorkloadEntry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Active   int    `json:"active"`
}

// MetricsContext holds the role-specific aggregates. Every field is optional;
// the server omits what the viewer's role does not get.
type MetricsContext struct {
	MyTasks      *StatusCounts   `json:"my_tasks,omitempty"`
	TeamTasks    *StatusCounts   `json:"team_tasks,omitempty"`
	Workload     []WorkloadEntry `json:"workload,omitempty"`
	NewPagesWeek *int            `json:"new_pages_week,omitempty"`
	Categories   map[string]int  `json:"categories,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type Metrics struct {
	Role    Role           `json:"role"`
	Context MetricsContext `json:"context"`
}

type Upload struct {
	URL string `json:"url"`
}
