// Package memory implements student.Repository in process memory.
// Used in development when no DATABASE_URL is configured, and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
)

// StudentRepository is a map-backed student.Repository. Safe for concurrent use.
type StudentRepository struct {
	mu   sync.RWMutex
	byID map[student.StudentID]student.Enrollment
}

var _ student.Repository = (*StudentRepository)(nil)

// NewStudentRepository creates an empty repository.
func NewStudentRepository() *StudentRepository {
	return &StudentRepository{byID: make(map[student.StudentID]student.Enrollment)}
}

// Create stores a copy of e.
func (r *StudentRepository) Create(_ context.Context, e *student.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[e.ID]; ok {
		return shared.ErrStudentAlreadyExists
	}
	r.byID[e.ID] = *e
	return nil
}

// GetByID returns a copy of the stored enrollment.
func (r *StudentRepository) GetByID(_ context.Context, id student.StudentID) (*student.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return &e, nil
}

// Update replaces the stored enrollment.
func (r *StudentRepository) Update(_ context.Context, e *student.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[e.ID]; !ok {
		return shared.ErrStudentNotFound
	}
	r.byID[e.ID] = *e
	return nil
}

// List returns enrollments ordered by EnrolledAt, then ID.
func (r *StudentRepository) List(_ context.Context, opts student.ListOptions) ([]*student.Enrollment, error) {
	r.mu.RLock()
	all := make([]*student.Enrollment, 0, len(r.byID))
	for _, e := range r.byID {
		if opts.Category != "" && e.Category != opts.Category {
			continue
		}
		e := e
		all = append(all, &e)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].EnrolledAt.Equal(all[j].EnrolledAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].EnrolledAt.Before(all[j].EnrolledAt)
	})

	if opts.Offset >= len(all) {
		return []*student.Enrollment{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

// CountByCategory counts enrollments per category.
func (r *StudentRepository) CountByCategory(_ context.Context) (map[student.Category]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[student.Category]int, len(student.Categories()))
	for _, e := range r.byID {
		counts[e.Category]++
	}
	return counts, nil
}
