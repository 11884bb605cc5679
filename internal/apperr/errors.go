// Package apperr holds the error kinds shared by the scheduling and adoption
// services. Domain packages build their own sentinels on top of these kinds so
// callers can match either the specific error or its kind with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrOwnership        = errors.New("ownership")
	ErrPermission       = errors.New("permission denied")
	ErrSlotConflict     = errors.New("slot conflict")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrNotAvailable     = errors.New("not available")
	ErrPastDate         = errors.New("past date")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidInput     = errors.New("invalid input")
)

var kinds = []error{
	ErrNotFound,
	ErrOwnership,
	ErrPermission,
	ErrSlotConflict,
	ErrDuplicateRequest,
	ErrNotAvailable,
	ErrPastDate,
	ErrInvalidState,
	ErrInvalidInput,
}

// Error is a domain error carrying a human readable message and its kind.
type Error struct {
	kind error
	msg  string
}

func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the kind err belongs to, or nil for infrastructure errors.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Invalid builds an ErrInvalidInput error for boundary validation failures.
func Invalid(msg string) error {
	return New(ErrInvalidInput, msg)
}
