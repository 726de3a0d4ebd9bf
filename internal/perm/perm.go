package perm

import (
	"pagecal/internal/model"
)

type Field string

const (
	FieldTitle    Field = "title"
	FieldContent  Field = "content"
	FieldCategory Field = "category"
	FieldPriority Field = "priority"
	FieldStatus   Field = "status"
	FieldAssignee Field = "assignee"
)

// Fields lists the editor fields in panel order.
var Fields = []Field{FieldTitle, FieldContent, FieldCategory, FieldPriority, FieldStatus, FieldAssignee}

type FieldAccess struct {
	Editable bool `json:"editable"`
	Visible  bool `json:"visible"`
}

var (
	editable = FieldAccess{Editable: true, Visible: true}
	readOnly = FieldAccess{Editable: false, Visible: true}
)

// FieldPolicy is the editor panel's per-field gating for one viewer and one page.
type FieldPolicy struct {
	Title    FieldAccess `json:"title"`
	Content  FieldAccess `json:"content"`
	Category FieldAccess `json:"category"`
	Priority FieldAccess `json:"priority"`
	Status   FieldAccess `json:"status"`
	Assignee FieldAccess `json:"assignee"`

	CanSave   bool `json:"canSave"`
	CanDelete bool `json:"canDelete"`

	// ForceSelfAssignee pins the assignee to the viewer regardless of what the
	// assignee widget holds.
	ForceSelfAssignee bool `json:"forceSelfAssignee"`
}

func (p FieldPolicy) Access(f Field) FieldAccess {
	switch f {
	case FieldTitle:
		return p.Title
	case FieldContent:
		return p.Content
	case FieldCategory:
		return p.Category
	case FieldPriority:
		return p.Priority
	case FieldStatus:
		return p.Status
	case FieldAssignee:
		return p.Assignee
	default:
		return FieldAccess{}
	}
}

func (p *FieldPolicy) set(f Field, a FieldAccess) {
	switch f {
	case FieldTitle:
		p.Title = a
	case FieldContent:
		p.Content = a
	case FieldCategory:
		p.Category = a
	case FieldPriority:
		p.Priority = a
	case FieldStatus:
		p.Status = a
	case FieldAssignee:
		p.Assignee = a
	}
}

// EditableFields returns the editable fields in panel order.
func (p FieldPolicy) EditableFields() []Field {
	out := make([]Field, 0, len(Fields))
	for _, f := range Fields {
		if p.Access(f).Editable {
			out = append(out, f)
		}
	}
	return out
}

func uniform(a FieldAccess) FieldPolicy {
	var p FieldPolicy
	for _, f := range Fields {
		p.set(f, a)
	}
	return p
}

// ComputePolicy maps (role, new-ness, ownership) to the editor field policy.
//
// Rules:
//   - admin: everything editable; save and delete offered for new and existing pages.
//   - manager: everything editable; delete offered for existing pages only.
//   - member, new page: everything editable except the assignee, which is pinned to the viewer.
//   - member, existing page assigned to them: only status is editable; save offered.
//   - member, existing page not assigned to them: read-only, no save, no delete.
//   - any other role (including empty): read-only, no save, no delete.
func ComputePolicy(role model.Role, isNew, isOwned bool) FieldPolicy {
	switch role {
	case model.RoleAdmin:
		p := uniform(editable)
		p.CanSave = true
		p.CanDelete = true
		return p

	case model.RoleManager:
		p := uniform(editable)
		p.CanSave = true
		p.CanDelete = !isNew
		return p

	case model.RoleMember:
		if isNew {
			p := uniform(editable)
			p.Assignee = readOnly
			p.ForceSelfAssignee = true
			p.CanSave = true
			return p
		}
		p := uniform(readOnly)
		if isOwned {
			p.Status = editable
			p.CanSave = true
		}
		return p

	default:
		return uniform(readOnly)
	}
}

// IsOwned reports whether the viewer is the page's assignee.
func IsOwned(s model.Session, p model.Page) bool {
	return p.AssignedTo(s.UserID)
}

// ForPage computes the policy for an existing page as seen by s.
func ForPage(s model.Session, p model.Page) FieldPolicy {
	return ComputePolicy(s.Role, false, IsOwned(s, p))
}

// ForNew computes the policy for a page s is about to create.
func ForNew(s model.Session) FieldPolicy {
	return ComputePolicy(s.Role, true, false)
}
