package student

import (
	"time"
	"unicode/utf8"

	"github.com/alem-hub/study-hours/internal/domain/shared"
)

// Enrollment is the persisted record of a student and their category.
type Enrollment struct {
	ID          StudentID `json:"id"`
	DisplayName string    `json:"display_name"`
	Category    Category  `json:"category"`
	EnrolledAt  time.Time `json:"enrolled_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewEnrollmentParams holds the parameters for NewEnrollment.
type NewEnrollmentParams struct {
	ID          StudentID
	DisplayName string
	Category    Category
}

// NewEnrollment validates params and creates an Enrollment.
func NewEnrollment(params NewEnrollmentParams) (*Enrollment, error) {
	if !params.ID.IsValid() {
		return nil, shared.ErrInvalidStudentID
	}
	if n := utf8.RuneCountInString(params.DisplayName); n == 0 || n > 100 {
		return nil, shared.ErrInvalidDisplayName
	}
	if !params.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}

	now := time.Now().UTC()
	return &Enrollment{
		ID:          params.ID,
		DisplayName: params.DisplayName,
		Category:    params.Category,
		EnrolledAt:  now,
		UpdatedAt:   now,
	}, nil
}

// Student returns the variant matching the enrollment category.
func (e *Enrollment) Student() (Student, error) {
	return New(e.Category)
}

// ChangeCategory moves the enrollment to another category.
// Returns false when the category is unchanged.
func (e *Enrollment) ChangeCategory(c Category) (bool, error) {
	if !c.IsValid() {
		return false, shared.ErrInvalidCategory
	}
	if e.Category == c {
		return false, nil
	}
	e.Category = c
	e.UpdatedAt = time.Now().UTC()
	return true, nil
}
