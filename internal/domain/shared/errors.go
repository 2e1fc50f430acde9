// Package shared holds the error taxonomy used across the domain packages.
// It has no dependencies outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is or the Is* helpers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidID     = fmt.Errorf("invalid id: %w", ErrInvalidInput)

	// ErrNotApplicable marks an operation that is undefined for its receiver.
	ErrNotApplicable = errors.New("not applicable")

	// ErrUnavailable marks a dependency that failed after partial progress.
	// Retrying the operation is safe.
	ErrUnavailable = errors.New("unavailable")
)

// DomainError is a kind plus a stable code that callers can show to
// clients, such as "student_not_found".
type DomainError struct {
	Op      string // operation that failed, e.g. "RequiredHours"
	Code    string
	Message string
	Kind    error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("student.%s: %s", e.Op, e.Message)
}

// Unwrap exposes the kind, so errors.Is(err, ErrNotFound) works.
func (e *DomainError) Unwrap() error {
	return e.Kind
}

func newError(op, code string, kind error, message string) *DomainError {
	return &DomainError{Op: op, Code: code, Message: message, Kind: kind}
}

// Student errors.
var (
	ErrStudentNotFound            = newError("Find", "student_not_found", ErrNotFound, "student not found")
	ErrStudentAlreadyExists       = newError("Create", "already_exists", ErrAlreadyExists, "student already exists")
	ErrInvalidStudentID           = newError("Validate", "invalid_student_id", ErrInvalidID, "student ID must be 1-64 characters without surrounding whitespace")
	ErrInvalidCategory            = newError("Validate", "invalid_category", ErrInvalidInput, "category must be one of full_time, part_time, visitor")
	ErrInvalidDisplayName         = newError("Validate", "invalid_display_name", ErrInvalidInput, "display name must be 1-100 characters")
	ErrRequiredHoursNotApplicable = newError("RequiredHours", "not_applicable", ErrNotApplicable, "visitor students have no required hours")
	ErrCacheRefreshFailed         = newError("ChangeCategory", "cache_unavailable", ErrUnavailable, "category saved but the cached copy could not be refreshed, retry the request")
)

// AsDomainError returns the first DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var derr *DomainError
	if errors.As(err, &derr) {
		return derr, true
	}
	return nil, false
}

// IsNotFound reports a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyExists reports a duplicate entity.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidation reports rejected input, including invalid IDs.
func IsValidation(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsNotApplicable reports an operation undefined for its receiver.
func IsNotApplicable(err error) bool { return errors.Is(err, ErrNotApplicable) }

// IsUnavailable reports a dependency failure the caller should retry.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
