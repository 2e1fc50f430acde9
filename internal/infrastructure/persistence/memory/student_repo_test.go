package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
)

func seed(t *testing.T, repo *StudentRepository, n int) {
	t.Helper()
	base := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	categories := student.Categories()
	for i := 0; i < n; i++ {
		e := &student.Enrollment{
			ID:          student.StudentID(fmt.Sprintf("s-%02d", i)),
			DisplayName: fmt.Sprintf("Student %d", i),
			Category:    categories[i%len(categories)],
			EnrolledAt:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Create(context.Background(), e))
	}
}

func TestStudentRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentRepository()

	e := &student.Enrollment{ID: "s-1", DisplayName: "Aruzhan", Category: student.CategoryFullTime}
	require.NoError(t, repo.Create(ctx, e))
	assert.ErrorIs(t, repo.Create(ctx, e), shared.ErrAlreadyExists)

	got, err := repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Aruzhan", got.DisplayName)

	// Returned values are copies.
	got.Category = student.CategoryVisitor
	again, err := repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, student.CategoryFullTime, again.Category)

	require.NoError(t, repo.Update(ctx, got))
	again, err = repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, student.CategoryVisitor, again.Category)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
	assert.ErrorIs(t, repo.Update(ctx, &student.Enrollment{ID: "missing"}), shared.ErrNotFound)
}

func TestStudentRepository_ListAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentRepository()
	seed(t, repo, 7)

	all, err := repo.List(ctx, student.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 7)
	assert.Equal(t, student.StudentID("s-00"), all[0].ID)
	assert.Equal(t, student.StudentID("s-06"), all[6].ID)

	page, err := repo.List(ctx, student.ListOptions{Limit: 2, Offset: 5})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, student.StudentID("s-05"), page[0].ID)

	empty, err := repo.List(ctx, student.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	visitors, err := repo.List(ctx, student.ListOptions{Category: student.CategoryVisitor})
	require.NoError(t, err)
	assert.Len(t, visitors, 2)

	counts, err := repo.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[student.CategoryFullTime])
	assert.Equal(t, 2, counts[student.CategoryPartTime])
	assert.Equal(t, 2, counts[student.CategoryVisitor])
}
