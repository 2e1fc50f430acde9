package query

import (
	"context"

	"github.com/alem-hub/study-hours/internal/domain/student"
)

// GetCategoryHoursQuery asks a category directly, without an enrollment.
type GetCategoryHoursQuery struct {
	Category  string
	StudentID string
}

// GetCategoryHoursHandler evaluates the variant for a category.
type GetCategoryHoursHandler struct {
	policy VisitorPolicy
}

// NewGetCategoryHoursHandler creates the handler.
func NewGetCategoryHoursHandler(policy VisitorPolicy) *GetCategoryHoursHandler {
	if policy == "" {
		policy = VisitorPolicyError
	}
	return &GetCategoryHoursHandler{policy: policy}
}

// Handle executes the query. The identifier is opaque and may be empty.
func (h *GetCategoryHoursHandler) Handle(_ context.Context, q GetCategoryHoursQuery) (*RequiredHoursDTO, error) {
	c, err := student.ParseCategory(q.Category)
	if err != nil {
		return nil, err
	}
	variant, err := student.New(c)
	if err != nil {
		return nil, err
	}
	return evaluate(variant, student.StudentID(q.StudentID), h.policy)
}
