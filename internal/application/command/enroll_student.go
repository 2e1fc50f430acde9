// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
	"github.com/alem-hub/study-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentCommand holds the data for a new enrollment.
type EnrollStudentCommand struct {
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
}

// EnrollStudentHandler creates enrollments.
type EnrollStudentHandler struct {
	repo     student.Repository
	cache    student.Cache
	cacheTTL time.Duration
	newID    func() string
	log      *logger.Logger
}

// NewEnrollStudentHandler creates the handler. cache and log may be nil.
func NewEnrollStudentHandler(repo student.Repository, cache student.Cache, cacheTTL time.Duration, log *logger.Logger) *EnrollStudentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &EnrollStudentHandler{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		newID:    uuid.NewString,
		log:      log.With(logger.Component("command.enroll_student")),
	}
}

// Handle validates the command, stores the enrollment and warms the cache.
func (h *EnrollStudentHandler) Handle(ctx context.Context, cmd EnrollStudentCommand) (*student.Enrollment, error) {
	category, err := student.ParseCategory(cmd.Category)
	if err != nil {
		return nil, err
	}

	e, err := student.NewEnrollment(student.NewEnrollmentParams{
		ID:          student.StudentID(h.newID()),
		DisplayName: strings.TrimSpace(cmd.DisplayName),
		Category:    category,
	})
	if err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, e); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, shared.ErrStudentAlreadyExists
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, e, h.cacheTTL); err != nil {
			h.log.Warn("failed to cache enrollment", logger.StudentID(e.ID.String()), logger.Err(err))
		}
	}

	h.log.Info("student enrolled",
		logger.StudentID(e.ID.String()),
		logger.Category(e.Category.String()),
	)
	return e, nil
}
