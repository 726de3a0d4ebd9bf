package calendar

import "pagecal/internal/model"

// Fill colours are keyed by status only.
const (
	FillTodo       = "#6b7280"
	FillInProgress = "#3b82f6"
	FillDone       = "#10b981"
)

var borderByCategory = map[model.Category]string{
	model.CategoryFeature: "#8b5cf6",
	model.CategoryBug:     "#ef4444",
	model.CategoryDevops:  "#f59e0b",
	model.CategoryMeeting: "#06b6d4",
	model.CategoryOther:   "#9ca3af",
}

func FillColor(s model.Status) string {
	switch s {
	case model.StatusInProgress:
		return FillInProgress
	case model.StatusDone:
		return FillDone
	default:
		return FillTodo
	}
}

// BorderColor is keyed by category; unknown categories get the "other" border.
func BorderColor(c model.Category) string {
	if v, ok := borderByCategory[c]; ok {
		return v
	}
	return borderByCategory[model.CategoryOther]
}
