package app

import (
	"pagecal/internal/editor"
	"pagecal/internal/model"
	"pagecal/internal/perm"
)

type recordingView struct {
	vals editor.Values
	err  string
}

func (v *recordingView) Open(string)                      {}
func (v *recordingView) Close()                           {}
func (v *recordingView) SetValues(vals editor.Values) { v.vals = vals }
func (v *recordingView) Values() editor.Values        { return v.vals }
func (v *recordingView) SetFieldAccess(perm.FieldPolicy)  {}
func (v *recordingView) SetAssigneeOptions([]model.User)  {}
func (v *recordingView) SetActions(bool, bool)            {}
func (v *recordingView) SetBusy(bool)                     {}
func (v *recordingView) ShowDeleteConfirm(bool)           {}
func (v *recordingView) ShowError(msg string)             { v.err = msg }
func (v *recordingView) ShowSaved()                       {}
