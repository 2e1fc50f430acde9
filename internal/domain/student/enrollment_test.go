package student

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-hours/internal/domain/shared"
)

func TestNewEnrollment(t *testing.T) {
	e, err := NewEnrollment(NewEnrollmentParams{
		ID:          "s-1",
		DisplayName: "Aigerim",
		Category:    CategoryPartTime,
	})
	require.NoError(t, err)
	assert.Equal(t, StudentID("s-1"), e.ID)
	assert.Equal(t, CategoryPartTime, e.Category)
	assert.False(t, e.EnrolledAt.IsZero())
	assert.Equal(t, e.EnrolledAt, e.UpdatedAt)

	s, err := e.Student()
	require.NoError(t, err)
	hours, err := s.RequiredHours(e.ID)
	require.NoError(t, err)
	assert.Equal(t, PartTimeHours, hours)
}

func TestNewEnrollment_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params NewEnrollmentParams
		want   error
	}{
		{"empty id", NewEnrollmentParams{DisplayName: "A", Category: CategoryVisitor}, shared.ErrInvalidStudentID},
		{"empty name", NewEnrollmentParams{ID: "x", Category: CategoryVisitor}, shared.ErrInvalidDisplayName},
		{"long name", NewEnrollmentParams{ID: "x", DisplayName: strings.Repeat("й", 101), Category: CategoryVisitor}, shared.ErrInvalidDisplayName},
		{"bad category", NewEnrollmentParams{ID: "x", DisplayName: "A", Category: "alumni"}, shared.ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnrollment(tt.params)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestEnrollment_ChangeCategory(t *testing.T) {
	e, err := NewEnrollment(NewEnrollmentParams{ID: "s-2", DisplayName: "Dias", Category: CategoryFullTime})
	require.NoError(t, err)

	changed, err := e.ChangeCategory(CategoryFullTime)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = e.ChangeCategory(CategoryVisitor)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, CategoryVisitor, e.Category)

	s, err := e.Student()
	require.NoError(t, err)
	assert.False(t, Applies(s))

	_, err = e.ChangeCategory("")
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)
}
