package cli

import (
	"pagecal/internal/editor"
	"pagecal/internal/model"
	"pagecal/internal/perm"
)

// headlessView lets CLI commands drive editor.Controller so field gating and
// payload rules match the TUI exactly.
type headlessView struct {
	vals      editor.Values
	policy    perm.FieldPolicy
	assignees []model.User
	errMsg    string
	saved     bool
}

var _ editor.View = (*headlessView)(nil)

func (v *headlessView) Open(string)                           {}
func (v *headlessView) Close()                                {}
func (v *headlessView) SetValues(vals editor.Values)          { v.vals = vals }
func (v *headlessView) Values() editor.Values                 { return v.vals }
func (v *headlessView) SetFieldAccess(p perm.FieldPolicy)     { v.policy = p }
func (v *headlessView) SetAssigneeOptions(users []model.User) { v.assignees = users }
func (v *headlessView) SetActions(bool, bool)                 {}
func (v *headlessView) SetBusy(bool)                          {}
func (v *headlessView) ShowDeleteConfirm(bool)                {}
func (v *headlessView) ShowError(msg string)                  { v.errMsg = msg }
func (v *headlessView) ShowSaved()                            { v.saved = true }
