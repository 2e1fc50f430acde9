package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
	"github.com/alem-hub/study-hours/pkg/logger"
)

// ChangeCategoryCommand moves a student to another category.
type ChangeCategoryCommand struct {
	StudentID string `json:"student_id"`
	Category  string `json:"category"`
}

// ChangeCategoryHandler updates enrollments and writes the new state through
// to the cache.
type ChangeCategoryHandler struct {
	repo     student.Repository
	cache    student.Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewChangeCategoryHandler creates the handler. cache and log may be nil.
func NewChangeCategoryHandler(repo student.Repository, cache student.Cache, cacheTTL time.Duration, log *logger.Logger) *ChangeCategoryHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ChangeCategoryHandler{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log.With(logger.Component("command.change_category")),
	}
}

// Handle applies the change. An unchanged category skips the repository but
// still refreshes the cache, so retrying after ErrCacheRefreshFailed repairs
// the cached copy.
func (h *ChangeCategoryHandler) Handle(ctx context.Context, cmd ChangeCategoryCommand) (*student.Enrollment, error) {
	id := student.StudentID(cmd.StudentID)
	if !id.IsValid() {
		return nil, shared.ErrInvalidStudentID
	}
	category, err := student.ParseCategory(cmd.Category)
	if err != nil {
		return nil, err
	}

	e, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("get enrollment %s: %w", id, err)
	}

	previous := e.Category
	changed, err := e.ChangeCategory(category)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := h.repo.Update(ctx, e); err != nil {
			return nil, fmt.Errorf("update enrollment %s: %w", id, err)
		}
	}

	if err := h.refreshCache(ctx, e); err != nil {
		return nil, err
	}
	if !changed {
		return e, nil
	}

	h.log.Info("student category changed",
		logger.StudentID(id.String()),
		logger.String("from", previous.String()),
		logger.Category(category.String()),
	)
	return e, nil
}

// refreshCache overwrites the cached copy with e. When the write fails the
// copy is dropped instead; when both fail a stale copy may be served, so the
// caller gets ErrCacheRefreshFailed.
func (h *ChangeCategoryHandler) refreshCache(ctx context.Context, e *student.Enrollment) error {
	if h.cache == nil {
		return nil
	}
	setErr := h.cache.Set(ctx, e, h.cacheTTL)
	if setErr == nil {
		return nil
	}
	delErr := h.cache.Delete(ctx, e.ID)
	if delErr == nil {
		h.log.Warn("failed to refresh enrollment cache, dropped it",
			logger.StudentID(e.ID.String()),
			logger.Err(setErr),
		)
		return nil
	}

	cause := errors.Join(setErr, delErr)
	h.log.Error("enrollment cache may be stale",
		logger.StudentID(e.ID.String()),
		logger.Err(cause),
	)
	return fmt.Errorf("%w: %w", shared.ErrCacheRefreshFailed, cause)
}
