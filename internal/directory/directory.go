// Package directory resolves which users a viewer may assign pages to.
package directory

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"pagecal/internal/model"
)

// UserSource is the slice of the gateway the directory reads from.
type UserSource interface {
	Users(ctx context.Context) ([]model.User, error)
}

type Directory struct {
	session model.Session
	all     []model.User
	byID    map[int64]model.User
}

// Load fetches the user list once and builds a directory for s.
func Load(ctx context.Context, src UserSource, s model.Session) (*Directory, error) {
	users, err := src.Users(ctx)
	if err != nil {
		return nil, err
	}
	return New(users, s), nil
}

func New(users []model.User, s model.Session) *Directory {
	d := &Directory{
		session: s,
		all:     append([]model.User(nil), users...),
		byID:    make(map[int64]model.User, len(users)),
	}
	for _, u := range users {
		d.byID[u.ID] = u
	}
	return d
}

// Assignable returns the users the viewer may pick as assignee, by username.
//
// admin sees everyone; a manager sees their team plus themselves (only
// themselves without a team); a member sees only themselves. Any other role
// gets nothing.
func (d *Directory) Assignable() []model.User {
	var out []model.User
	switch d.session.Role {
	case model.RoleAdmin:
		out = append(out, d.all...)
	case model.RoleManager:
		for _, u := range d.all {
			if u.ID == d.session.UserID || u.InTeam(d.session.TeamID) {
				out = append(out, u)
			}
		}
	case model.RoleMember:
		for _, u := range d.all {
			if u.ID == d.session.UserID {
				out = append(out, u)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Username), strings.ToLower(out[j].Username)
		if a == b {
			return out[i].ID < out[j].ID
		}
		return a < b
	})
	return out
}

// CanAssign reports whether id is one of Assignable.
func (d *Directory) CanAssign(id int64) bool {
	for _, u := range d.Assignable() {
		if u.ID == id {
			return true
		}
	}
	return false
}

// Lookup finds a user in the full directory regardless of role filtering.
func (d *Directory) Lookup(id int64) (model.User, bool) {
	u, ok := d.byID[id]
	return u, ok
}

// Label is the display name for id, or "#id" when the user is unknown.
func (d *Directory) Label(id int64) string {
	if u, ok := d.byID[id]; ok && strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	return "#" + strconv.FormatInt(id, 10)
}

// LabelPtr is Label for nullable assignee ids.
func (d *Directory) LabelPtr(id *int64) string {
	if id == nil {
		return "unassigned"
	}
	return d.Label(*id)
}

// Users returns every known user, including ones the viewer cannot assign.
func (d *Directory) Users() []model.User {
	return append([]model.User(nil), d.all...)
}
