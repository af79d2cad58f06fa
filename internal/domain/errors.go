package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidation        = errors.New("validation failed")

	// ErrStatusConflict is returned by storage when a status-guarded write
	// finds the row in a different status than expected.
	ErrStatusConflict = errors.New("status changed concurrently")
)

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransitionError reports an action that the table does not allow from Current.
type TransitionError struct {
	Action  Action
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("action %s is not allowed from status %s", e.Action, e.Current)
}
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type StateError struct {
	Current Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("listing in status %s cannot be edited", e.Current)
}
func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type StatusConflictError struct {
	Current Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("status changed concurrently (now %s)", e.Current)
}
func (e *StatusConflictError) Is(target error) bool { return target == ErrStatusConflict }

func Forbidden(msg string) error { return fmt.Errorf("%w: %s", ErrForbidden, msg) }
