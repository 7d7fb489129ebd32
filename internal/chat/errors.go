package chat

import "fmt"

// ValidationError covers input the caller can correct and resend: empty
// text, messaging yourself, malformed peer email.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// RoleError is the cross-role constraint: only builder/labourer pairs may
// exchange messages, never two users of the same role.
type RoleError struct {
	Reason string
}

func (e *RoleError) Error() string { return e.Reason }

// NotFoundError means the named peer has no directory entry.
type NotFoundError struct {
	Email string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("no such user: %s", e.Email) }
