package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
	"github.com/alem-hub/study-hours/internal/infrastructure/persistence/memory"
)

func seedRepo(t *testing.T, categories ...student.Category) *memory.StudentRepository {
	t.Helper()
	repo := memory.NewStudentRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range categories {
		e, err := student.NewEnrollment(student.NewEnrollmentParams{
			ID:          student.StudentID(fmt.Sprintf("s-%02d", i)),
			DisplayName: fmt.Sprintf("Student %d", i),
			Category:    c,
		})
		require.NoError(t, err)
		e.EnrolledAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(context.Background(), e))
	}
	return repo
}

func TestListStudents_Paging(t *testing.T) {
	repo := seedRepo(t,
		student.CategoryFullTime,
		student.CategoryVisitor,
		student.CategoryPartTime,
	)
	h := NewListStudentsHandler(repo)

	page, err := h.Handle(context.Background(), ListStudentsQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Students, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "s-00", page.Students[0].StudentID)
	assert.Equal(t, 15, page.Students[0].RequiredHours)
	assert.False(t, page.Students[1].Applicable)
	assert.Equal(t, 0, page.Students[1].RequiredHours)

	page, err = h.Handle(context.Background(), ListStudentsQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page.Students, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, 10, page.Students[0].RequiredHours)
}

func TestListStudents_CategoryFilter(t *testing.T) {
	repo := seedRepo(t,
		student.CategoryFullTime,
		student.CategoryVisitor,
		student.CategoryFullTime,
	)
	h := NewListStudentsHandler(repo)

	page, err := h.Handle(context.Background(), ListStudentsQuery{Category: "full-time"})
	require.NoError(t, err)
	assert.Len(t, page.Students, 2)
	assert.Equal(t, student.DefaultListOptions().Limit, page.Limit)

	_, err = h.Handle(context.Background(), ListStudentsQuery{Category: "alumni"})
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)
}

func TestListStudents_LimitCapped(t *testing.T) {
	h := NewListStudentsHandler(seedRepo(t))
	page, err := h.Handle(context.Background(), ListStudentsQuery{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, page.Limit)
	assert.Empty(t, page.Students)
}

func TestCategoryStats(t *testing.T) {
	repo := seedRepo(t,
		student.CategoryFullTime,
		student.CategoryFullTime,
		student.CategoryVisitor,
	)

	stats, err := NewGetCategoryStatsHandler(repo).Handle(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.Categories, 3)
	assert.Equal(t, 3, stats.TotalStudents)

	byName := map[string]CategoryStatDTO{}
	for _, s := range stats.Categories {
		byName[s.Category] = s
	}
	assert.Equal(t, 2, byName["full_time"].Students)
	require.NotNil(t, byName["full_time"].RequiredHours)
	assert.Equal(t, 15, *byName["full_time"].RequiredHours)
	assert.Equal(t, 0, byName["part_time"].Students)
	assert.Nil(t, byName["visitor"].RequiredHours)
}
