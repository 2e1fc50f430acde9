package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/study-hours/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// MaxListLimit caps the page size of ListStudentsQuery.
const MaxListLimit = 200

// ListStudentsQuery pages through enrollments.
type ListStudentsQuery struct {
	Category string // optional
	Limit    int
	Offset   int
}

// ListStudentsResult is a page of enrollments with their required hours.
type ListStudentsResult struct {
	Students []RequiredHoursDTO `json:"students"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
	HasMore  bool               `json:"has_more"`
}

// ListStudentsHandler lists enrollments.
type ListStudentsHandler struct {
	repo student.Repository
}

// NewListStudentsHandler creates the handler.
func NewListStudentsHandler(repo student.Repository) *ListStudentsHandler {
	return &ListStudentsHandler{repo: repo}
}

// Handle executes the query. Visitors are listed with Applicable=false
// whatever the visitor policy, so one visitor never fails a whole page.
func (h *ListStudentsHandler) Handle(ctx context.Context, q ListStudentsQuery) (*ListStudentsResult, error) {
	opts := student.DefaultListOptions()
	if q.Category != "" {
		c, err := student.ParseCategory(q.Category)
		if err != nil {
			return nil, err
		}
		opts.Category = c
	}
	if q.Limit > 0 {
		opts.Limit = min(q.Limit, MaxListLimit)
	}
	if q.Offset > 0 {
		opts.Offset = q.Offset
	}

	// One extra row tells whether another page exists.
	opts.Limit++
	enrollments, err := h.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	opts.Limit--

	result := &ListStudentsResult{
		Students: make([]RequiredHoursDTO, 0, len(enrollments)),
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	}
	if len(enrollments) > opts.Limit {
		result.HasMore = true
		enrollments = enrollments[:opts.Limit]
	}

	for _, e := range enrollments {
		variant, err := e.Student()
		if err != nil {
			return nil, fmt.Errorf("enrollment %s: %w", e.ID, err)
		}
		dto, err := evaluate(variant, e.ID, VisitorPolicySentinel)
		if err != nil {
			return nil, err
		}
		dto.DisplayName = e.DisplayName
		result.Students = append(result.Students, *dto)
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY STATS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// CategoryStatDTO summarizes one category.
type CategoryStatDTO struct {
	Category      string `json:"category"`
	Students      int    `json:"students"`
	RequiredHours *int   `json:"required_hours"` // nil for visitors
}

// CategoryStatsResult lists every category, including empty ones.
type CategoryStatsResult struct {
	Categories    []CategoryStatDTO `json:"categories"`
	TotalStudents int               `json:"total_students"`
}

// GetCategoryStatsHandler counts enrollments per category.
type GetCategoryStatsHandler struct {
	repo student.Repository
}

// NewGetCategoryStatsHandler creates the handler.
func NewGetCategoryStatsHandler(repo student.Repository) *GetCategoryStatsHandler {
	return &GetCategoryStatsHandler{repo: repo}
}

// Handle executes the query.
func (h *GetCategoryStatsHandler) Handle(ctx context.Context) (*CategoryStatsResult, error) {
	counts, err := h.repo.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}

	result := &CategoryStatsResult{}
	for _, c := range student.Categories() {
		variant, err := student.New(c)
		if err != nil {
			return nil, err
		}
		stat := CategoryStatDTO{Category: c.String(), Students: counts[c]}
		if hours, err := variant.RequiredHours(""); err == nil {
			n := int(hours)
			stat.RequiredHours = &n
		}
		result.Categories = append(result.Categories, stat)
		result.TotalStudents += counts[c]
	}
	return result, nil
}
