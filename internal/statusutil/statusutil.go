package statusutil

import (
	"fmt"
	"strings"

	"pagecal/internal/model"
)

// NormalizeStatus maps user input and legacy API values onto the canonical statuses.
func NormalizeStatus(s string) (model.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "to_do", "to-do", "draft":
		return model.StatusTodo, nil
	case "in_progress", "in-progress", "inprogress", "doing":
		return model.StatusInProgress, nil
	case "done", "published":
		return model.StatusDone, nil
	case "":
		return "", fmt.Errorf("invalid status: empty")
	default:
		return "", fmt.Errorf("invalid status: %q", s)
	}
}

func NormalizeCategory(s string) (model.Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "feature", "project":
		return model.CategoryFeature, nil
	case "bug", "incident":
		return model.CategoryBug, nil
	case "devops", "ops":
		return model.CategoryDevops, nil
	case "meeting":
		return model.CategoryMeeting, nil
	case "other", "personal":
		return model.CategoryOther, nil
	case "":
		return "", fmt.Errorf("invalid category: empty")
	default:
		return "", fmt.Errorf("invalid category: %q", s)
	}
}

func NormalizePriority(s string) (model.Priority, error) {
	switch p := model.Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityCritical:
		return p, nil
	case "":
		return "", fmt.Errorf("invalid priority: empty")
	default:
		return "", fmt.Errorf("invalid priority: %q", s)
	}
}

// NormalizeRole maps legacy role names. Unknown values come back unchanged and
// ok=false; callers must treat them as the most restricted viewer.
func NormalizeRole(s string) (model.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return model.RoleAdmin, true
	case "manager", "editor":
		return model.RoleManager, true
	case "member", "viewer":
		return model.RoleMember, true
	default:
		return model.Role(strings.TrimSpace(s)), false
	}
}

// NormalizePage rewrites legacy enum values in place. Unrecognised values fall
// back to the defaults a new page would get.
func NormalizePage(p *model.Page) {
	if p == nil {
		return
	}
	if st, err := NormalizeStatus(string(p.Status)); err == nil {
		p.Status = st
	} else {
		p.Status = model.StatusTodo
	}
	if c, err := NormalizeCategory(string(p.Category)); err == nil {
		p.Category = c
	} else {
		p.Category = model.CategoryOther
	}
	if pr, err := NormalizePriority(string(p.Priority)); err == nil {
		p.Priority = pr
	} else {
		p.Priority = model.PriorityMedium
	}
}

func IsEndState(s model.Status) bool { return s == model.StatusDone }

// StatusLabel is the human label used in lists and charts.
func StatusLabel(s model.Status) string {
	switch s {
	case model.StatusTodo:
		return "To do"
	case model.StatusInProgress:
		return "In progress"
	case model.StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// NextStatus cycles todo -> in_progress -> done -> todo.
func NextStatus(s model.Status) model.Status {
	for i, v := range model.Statuses {
		if v == s {
			return model.Statuses[(i+1)%len(model.Statuses)]
		}
	}
	return model.StatusTodo
}
