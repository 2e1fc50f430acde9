package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alem-hub/study-hours/internal/application/command"
	"github.com/alem-hub/study-hours/internal/application/query"
	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			s.writeJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		s.writeJSON(w, r, http.StatusOK, status)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"healthy": true,
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUIRED HOURS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetRequiredHours handles GET /api/v1/students/{id}/required-hours.
func (s *Server) handleGetRequiredHours(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetRequiredHours == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "service_unavailable", "Required hours lookup is not configured")
		return
	}

	dto, err := s.deps.GetRequiredHours.Handle(r.Context(), query.GetRequiredHoursQuery{
		StudentID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, dto)
}

// handleGetCategoryHours handles GET /api/v1/categories/{category}/required-hours?id=...
func (s *Server) handleGetCategoryHours(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCategoryHours == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "service_unavailable", "Category lookup is not configured")
		return
	}

	dto, err := s.deps.GetCategoryHours.Handle(r.Context(), query.GetCategoryHoursQuery{
		Category:  r.PathValue("category"),
		StudentID: r.URL.Query().Get("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, dto)
}

// handleListStudents handles GET /api/v1/students?category=&limit=&offset=
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListStudents == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "service_unavailable", "Listing is not configured")
		return
	}

	params := r.URL.Query()
	limit, ok := queryInt(w, r, params.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, params.Get("offset"), "offset")
	if !ok {
		return
	}

	result, err := s.deps.ListStudents.Handle(r.Context(), query.ListStudentsQuery{
		Category: params.Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

// handleGetStats handles GET /api/v1/stats.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCategoryStats == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "service_unavailable", "Statistics are not configured")
		return
	}

	result, err := s.deps.GetCategoryStats.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_input", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// handleEnrollStudent handles POST /api/v1/students.
func (s *Server) handleEnrollStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.EnrollStudent == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "service_unavailable", "Enrollment is not configured")
		return
	}

	var cmd command.EnrollStudentCommand
	if !decodeBody(w, r, &cmd) {
		return
	}

	e, err := s.deps.EnrollStudent.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/students/"+e.ID.String()+"/required-hours")
	s.writeJSON(w, r, http.StatusCreated, e)
}

type changeCategoryRequest struct {
	Category string `json:"category"`
}

// handleChangeCategory handles PUT /api/v1/students/{id}/category.
func (s *Server) handleChangeCategory(w http.ResponseWriter, r *http.Request) {
	if s.deps.ChangeCategory == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "service_unavailable", "Category change is not configured")
		return
	}

	var req changeCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	e, err := s.deps.ChangeCategory.Handle(r.Context(), command.ChangeCategoryCommand{
		StudentID: r.PathValue("id"),
		Category:  req.Category,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, e)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body and writes 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_body", "Request body must be a JSON object")
		return false
	}
	return true
}

// writeDomainError answers with the error's code. Anything that is not a
// domain error is logged and reported as internal.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	derr, ok := shared.AsDomainError(err)
	if !ok {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	writeJSONError(w, r, statusFor(derr), derr.Code, derr.Message)
}

func statusFor(err error) int {
	switch {
	case shared.IsNotApplicable(err):
		return http.StatusUnprocessableEntity
	case shared.IsValidation(err):
		return http.StatusBadRequest
	case shared.IsNotFound(err):
		return http.StatusNotFound
	case shared.IsAlreadyExists(err):
		return http.StatusConflict
	case shared.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
