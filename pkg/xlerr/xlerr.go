package xlerr

import (
	"errors"
	"fmt"
)

// Kind is the canonical error classification shared by the engine and the
// tool surface. The set is closed; every public operation fails with exactly
// one of these kinds.
type Kind string

const (
	// Path marks an unauthorized or invalid filesystem path.
	Path Kind = "PATH_ERROR"
	// NotFound marks a missing sheet, table, chart, pivot, or field.
	NotFound Kind = "NOT_FOUND"
	// Range marks a malformed or out-of-extent address.
	Range Kind = "RANGE_ERROR"
	// Validation marks a rule or formula-syntax violation.
	Validation Kind = "VALIDATION_ERROR"
	// Format marks a container parse/serialize failure or a structural
	// invariant breach caught before write.
	Format Kind = "FORMAT_ERROR"
	// Conflict marks a name collision or an overlapping range.
	Conflict Kind = "CONFLICT"
)

// Error carries a Kind alongside a message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes two *Error values match when their kinds match, so callers can
// test errors.Is(err, xlerr.New(xlerr.Range, "")) style sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain. Unclassified errors report
// Format, the catch-all for unexpected container-level failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Format
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
