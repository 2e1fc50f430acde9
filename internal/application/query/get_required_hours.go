// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
	"github.com/alem-hub/study-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// VISITOR POLICY
// ══════════════════════════════════════════════════════════════════════════════

// VisitorPolicy decides how a not-applicable result reaches the caller.
type VisitorPolicy string

const (
	// VisitorPolicyError returns shared.ErrRequiredHoursNotApplicable.
	VisitorPolicyError VisitorPolicy = "error"
	// VisitorPolicySentinel returns zero hours with Applicable=false.
	VisitorPolicySentinel VisitorPolicy = "sentinel"
)

// ParseVisitorPolicy parses "error" or "sentinel".
func ParseVisitorPolicy(s string) (VisitorPolicy, error) {
	switch p := VisitorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case VisitorPolicyError, VisitorPolicySentinel:
		return p, nil
	default:
		return "", fmt.Errorf("unknown visitor policy %q", s)
	}
}

// RequiredHoursDTO is the result of a required-hours lookup.
type RequiredHoursDTO struct {
	StudentID     string `json:"student_id"`
	DisplayName   string `json:"display_name,omitempty"`
	Category      string `json:"category"`
	RequiredHours int    `json:"required_hours"`
	Applicable    bool   `json:"applicable"`
}

// evaluate calls the capability and applies the visitor policy.
func evaluate(s student.Student, id student.StudentID, policy VisitorPolicy) (*RequiredHoursDTO, error) {
	dto := &RequiredHoursDTO{
		StudentID: id.String(),
		Category:  s.Category().String(),
	}

	hours, err := s.RequiredHours(id)
	switch {
	case err == nil:
		dto.RequiredHours = int(hours)
		dto.Applicable = true
		return dto, nil
	case shared.IsNotApplicable(err) && policy == VisitorPolicySentinel:
		return dto, nil
	default:
		return nil, err
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GET REQUIRED HOURS QUERY
// Looks up an enrollment and asks its variant for the required hours.
// ══════════════════════════════════════════════════════════════════════════════

// GetRequiredHoursQuery holds the query parameters.
type GetRequiredHoursQuery struct {
	StudentID string
}

// Validate checks the query parameters.
func (q GetRequiredHoursQuery) Validate() error {
	if !student.StudentID(q.StudentID).IsValid() {
		return shared.ErrInvalidStudentID
	}
	return nil
}

// GetRequiredHoursHandler resolves required hours for an enrolled student.
type GetRequiredHoursHandler struct {
	repo     student.Repository
	cache    student.Cache
	cacheTTL time.Duration
	policy   VisitorPolicy
	log      *logger.Logger
}

// GetRequiredHoursConfig configures GetRequiredHoursHandler.
type GetRequiredHoursConfig struct {
	CacheTTL      time.Duration
	VisitorPolicy VisitorPolicy
}

// DefaultGetRequiredHoursConfig returns the default configuration.
func DefaultGetRequiredHoursConfig() GetRequiredHoursConfig {
	return GetRequiredHoursConfig{
		CacheTTL:      10 * time.Minute,
		VisitorPolicy: VisitorPolicyError,
	}
}

// NewGetRequiredHoursHandler creates the handler. cache and log may be nil.
func NewGetRequiredHoursHandler(
	repo student.Repository,
	cache student.Cache,
	cfg GetRequiredHoursConfig,
	log *logger.Logger,
) *GetRequiredHoursHandler {
	if cfg.VisitorPolicy == "" {
		cfg.VisitorPolicy = VisitorPolicyError
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetRequiredHoursHandler{
		repo:     repo,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		policy:   cfg.VisitorPolicy,
		log:      log.With(logger.Component("query.get_required_hours")),
	}
}

// Handle executes the query.
func (h *GetRequiredHoursHandler) Handle(ctx context.Context, q GetRequiredHoursQuery) (*RequiredHoursDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	id := student.StudentID(q.StudentID)

	enrollment, err := h.load(ctx, id)
	if err != nil {
		return nil, err
	}

	variant, err := enrollment.Student()
	if err != nil {
		return nil, fmt.Errorf("enrollment %s: %w", id, err)
	}

	dto, err := evaluate(variant, id, h.policy)
	if err != nil {
		if shared.IsNotApplicable(err) {
			h.log.Debug("required hours not applicable",
				logger.StudentID(id.String()),
				logger.Category(variant.Category().String()),
			)
		}
		return nil, err
	}
	dto.DisplayName = enrollment.DisplayName

	h.log.Debug("required hours resolved",
		logger.StudentID(dto.StudentID),
		logger.Category(dto.Category),
		logger.Hours(dto.RequiredHours),
	)
	return dto, nil
}

// load reads through the cache. Cache failures are logged and ignored.
func (h *GetRequiredHoursHandler) load(ctx context.Context, id student.StudentID) (*student.Enrollment, error) {
	if h.cache != nil {
		if e, err := h.cache.Get(ctx, id); err == nil && e != nil {
			return e, nil
		}
	}

	e, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("get enrollment %s: %w", id, err)
	}

	// Add, not Set: a category change that lands between the read above and
	// this fill has already cached the newer copy.
	if h.cache != nil {
		if err := h.cache.Add(ctx, e, h.cacheTTL); err != nil {
			h.log.Warn("failed to cache enrollment", logger.StudentID(id.String()), logger.Err(err))
		}
	}
	return e, nil
}
