package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores enrollments.
type Repository interface {
	// Create stores a new enrollment.
	// Returns ErrStudentAlreadyExists if the ID is taken.
	Create(ctx context.Context, e *Enrollment) error

	// GetByID returns the enrollment by ID.
	// Returns ErrStudentNotFound if it does not exist.
	GetByID(ctx context.Context, id StudentID) (*Enrollment, error)

	// Update persists category and display name changes.
	// Returns ErrStudentNotFound if it does not exist.
	Update(ctx context.Context, e *Enrollment) error

	// List returns enrollments ordered by EnrolledAt.
	List(ctx context.Context, opts ListOptions) ([]*Enrollment, error)

	// CountByCategory returns the number of enrollments per category.
	CountByCategory(ctx context.Context) (map[Category]int, error)
}

// ListOptions holds pagination and filtering for List.
type ListOptions struct {
	Category Category // empty means all categories
	Limit    int
	Offset   int
}

// DefaultListOptions returns the default pagination.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50}
}

// Cache is a read-through cache in front of Repository.
type Cache interface {
	// Get returns the cached enrollment or an error on miss.
	Get(ctx context.Context, id StudentID) (*Enrollment, error)

	// Set caches the enrollment, replacing any cached copy.
	Set(ctx context.Context, e *Enrollment, ttl time.Duration) error

	// Add caches the enrollment only when no copy is cached. Read-through
	// fills use it so they cannot overwrite a newer write.
	Add(ctx context.Context, e *Enrollment, ttl time.Duration) error

	// Delete drops the cached enrollment.
	Delete(ctx context.Context, id StudentID) error
}
