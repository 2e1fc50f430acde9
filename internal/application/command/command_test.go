package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
	"github.com/alem-hub/study-hours/internal/infrastructure/persistence/memory"
)

var errBreakerOpen = errors.New("circuit breaker is open")

// recordingCache stores copies and records writes. setErr and deleteErr
// make the matching calls fail without touching the stored copies.
type recordingCache struct {
	mu        sync.Mutex
	items     map[student.StudentID]student.Enrollment
	set       []student.StudentID
	deleted   []student.StudentID
	setErr    error
	deleteErr error
}

func (c *recordingCache) Get(_ context.Context, id student.StudentID) (*student.Enrollment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return &e, nil
}

func (c *recordingCache) Set(_ context.Context, e *student.Enrollment, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	if c.items == nil {
		c.items = make(map[student.StudentID]student.Enrollment)
	}
	c.items[e.ID] = *e
	c.set = append(c.set, e.ID)
	return nil
}

func (c *recordingCache) Add(ctx context.Context, e *student.Enrollment, ttl time.Duration) error {
	if cached, _ := c.Get(ctx, e.ID); cached != nil {
		return nil
	}
	return c.Set(ctx, e, ttl)
}

func (c *recordingCache) Delete(_ context.Context, id student.StudentID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	delete(c.items, id)
	c.deleted = append(c.deleted, id)
	return nil
}

func TestEnrollStudent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStudentRepository()
	cache := &recordingCache{}
	h := NewEnrollStudentHandler(repo, cache, time.Minute, nil)

	e, err := h.Handle(ctx, EnrollStudentCommand{DisplayName: "  Madina ", Category: "Part-Time"})
	require.NoError(t, err)
	assert.Equal(t, "Madina", e.DisplayName)
	assert.Equal(t, student.CategoryPartTime, e.Category)

	_, err = uuid.Parse(e.ID.String())
	assert.NoError(t, err)

	stored, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Category, stored.Category)
	assert.Equal(t, []student.StudentID{e.ID}, cache.set)
}

func TestEnrollStudent_Validation(t *testing.T) {
	h := NewEnrollStudentHandler(memory.NewStudentRepository(), nil, 0, nil)

	_, err := h.Handle(context.Background(), EnrollStudentCommand{DisplayName: "X", Category: "alumni"})
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)

	_, err = h.Handle(context.Background(), EnrollStudentCommand{DisplayName: "   ", Category: "visitor"})
	assert.ErrorIs(t, err, shared.ErrInvalidDisplayName)
}

func TestEnrollStudent_DuplicateID(t *testing.T) {
	h := NewEnrollStudentHandler(memory.NewStudentRepository(), nil, 0, nil)
	h.newID = func() string { return "fixed" }

	_, err := h.Handle(context.Background(), EnrollStudentCommand{DisplayName: "A", Category: "visitor"})
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), EnrollStudentCommand{DisplayName: "B", Category: "visitor"})
	assert.ErrorIs(t, err, shared.ErrStudentAlreadyExists)
}

func TestChangeCategory(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStudentRepository()
	cache := &recordingCache{}

	enrolled, err := NewEnrollStudentHandler(repo, nil, 0, nil).
		Handle(ctx, EnrollStudentCommand{DisplayName: "Nurlan", Category: "visitor"})
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, enrolled, 0))
	h := NewChangeCategoryHandler(repo, cache, time.Minute, nil)

	e, err := h.Handle(ctx, ChangeCategoryCommand{StudentID: enrolled.ID.String(), Category: "full_time"})
	require.NoError(t, err)
	assert.Equal(t, student.CategoryFullTime, e.Category)

	cached, err := cache.Get(ctx, enrolled.ID)
	require.NoError(t, err)
	assert.Equal(t, student.CategoryFullTime, cached.Category)
	assert.Empty(t, cache.deleted)

	stored, err := repo.GetByID(ctx, enrolled.ID)
	require.NoError(t, err)
	s, err := stored.Student()
	require.NoError(t, err)
	hours, err := s.RequiredHours(stored.ID)
	require.NoError(t, err)
	assert.Equal(t, student.FullTimeHours, hours)

	// Same category: the repository is untouched, the cache is refreshed.
	before := stored.UpdatedAt
	_, err = h.Handle(ctx, ChangeCategoryCommand{StudentID: enrolled.ID.String(), Category: "full_time"})
	require.NoError(t, err)
	stored, err = repo.GetByID(ctx, enrolled.ID)
	require.NoError(t, err)
	assert.Equal(t, before, stored.UpdatedAt)
	assert.Len(t, cache.set, 3)
}

func TestChangeCategory_CacheWriteFailsFallsBackToDelete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStudentRepository()
	cache := &recordingCache{}

	enrolled, err := NewEnrollStudentHandler(repo, cache, 0, nil).
		Handle(ctx, EnrollStudentCommand{DisplayName: "Aigerim", Category: "visitor"})
	require.NoError(t, err)

	cache.setErr = errBreakerOpen
	_, err = NewChangeCategoryHandler(repo, cache, 0, nil).
		Handle(ctx, ChangeCategoryCommand{StudentID: enrolled.ID.String(), Category: "full_time"})
	require.NoError(t, err)

	assert.Equal(t, []student.StudentID{enrolled.ID}, cache.deleted)
	_, err = cache.Get(ctx, enrolled.ID)
	assert.Error(t, err, "stale visitor copy must be gone")
}

func TestChangeCategory_StaleCacheIsReported(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStudentRepository()
	cache := &recordingCache{}

	enrolled, err := NewEnrollStudentHandler(repo, cache, 0, nil).
		Handle(ctx, EnrollStudentCommand{DisplayName: "Aigerim", Category: "visitor"})
	require.NoError(t, err)

	cache.setErr = errBreakerOpen
	cache.deleteErr = errBreakerOpen
	h := NewChangeCategoryHandler(repo, cache, 0, nil)

	_, err = h.Handle(ctx, ChangeCategoryCommand{StudentID: enrolled.ID.String(), Category: "full_time"})
	require.ErrorIs(t, err, shared.ErrCacheRefreshFailed)
	assert.ErrorIs(t, err, errBreakerOpen)

	// The category is saved even though the response is an error.
	stored, err := repo.GetByID(ctx, enrolled.ID)
	require.NoError(t, err)
	assert.Equal(t, student.CategoryFullTime, stored.Category)

	// Once the cache recovers, a retry repairs the cached copy.
	cache.setErr, cache.deleteErr = nil, nil
	_, err = h.Handle(ctx, ChangeCategoryCommand{StudentID: enrolled.ID.String(), Category: "full_time"})
	require.NoError(t, err)

	cached, err := cache.Get(ctx, enrolled.ID)
	require.NoError(t, err)
	assert.Equal(t, student.CategoryFullTime, cached.Category)
}

func TestChangeCategory_Errors(t *testing.T) {
	h := NewChangeCategoryHandler(memory.NewStudentRepository(), nil, 0, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, ChangeCategoryCommand{StudentID: "", Category: "visitor"})
	assert.ErrorIs(t, err, shared.ErrInvalidStudentID)

	_, err = h.Handle(ctx, ChangeCategoryCommand{StudentID: "x", Category: "nope"})
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)

	_, err = h.Handle(ctx, ChangeCategoryCommand{StudentID: "x", Category: "visitor"})
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
}
