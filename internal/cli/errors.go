package cli

import (
	"fmt"

	"pagecal/internal/gateway"
	"pagecal/internal/model"
	"pagecal/internal/perm"
)

type notFoundError struct {
	kind string
	id   int64
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.kind, e.id)
}

func errNotFound(kind string, id int64) error {
	return notFoundError{kind: kind, id: id}
}

type permissionError struct {
	role   model.Role
	action string
	pageID int64
}

func (e permissionError) Error() string {
	if e.pageID == 0 {
		return fmt.Sprintf("permission denied: role %q may not %s", e.role, e.action)
	}
	return fmt.Sprintf("permission denied: role %q may not %s page %d", e.role, e.action, e.pageID)
}

func errPermission(role model.Role, action string, pageID int64) error {
	return permissionError{role: role, action: action, pageID: pageID}
}

type readOnlyFieldError struct {
	field perm.Field
}

func (e readOnlyFieldError) Error() string {
	return fmt.Sprintf("field %s is read-only for this page", e.field)
}

// apiErr maps a gateway failure onto the message the user should see, keeping
// the original error for errors.As.
type apiErr struct{ err error }

func (e apiErr) Error() string { return gateway.UserMessage(e.err) }
func (e apiErr) Unwrap() error { return e.err }

func userErr(err error) error {
	if err == nil {
		return nil
	}
	return apiErr{err: err}
}
