package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/AndresFMC/Canvas-Users-Manager/internal/core"
	"github.com/AndresFMC/Canvas-Users-Manager/internal/logging"
)

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Users   int    `json:"users"`
	Courses int    `json:"courses"`
}

// handleHealth reports liveness and the size of the loaded dataset.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	store := s.service.Store()
	writeJSON(w, HealthResponse{
		Status:  "ok",
		Users:   store.Len(),
		Courses: len(store.Courses()),
	})
}

// handleListCourses returns the course catalog, marker first.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ListCourses())
}

// handleListUsers returns one page of users matching the courses filter.
//
//	GET /api/users?page=2&per_page=25&courses=Sin%20curso,MAT101
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseListUsersQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	filter := core.ParseFilterSpec(q.Courses)
	result, err := s.service.ListUsers(r.Context(), filter, core.PageSpec{
		Page:    q.Page,
		PerPage: q.PerPage,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Debug("listed users",
		"courses", filter.Len(),
		"no_course", filter.IncludesNoCourse(),
		"page", q.Page,
		"returned", len(result.Users),
		"total", result.Pagination.Total,
	)
	writeJSON(w, result)
}

// parseListUsersQuery reads page, per_page and courses, applying defaults
// and clamping per_page to the configured maximum.
func (s *Server) parseListUsersQuery(r *http.Request) (listUsersQuery, error) {
	values := r.URL.Query()

	page, err := parseIntParam(values.Get("page"), 1)
	if err != nil {
		return listUsersQuery{}, fmt.Errorf("%w: page: %v", core.ErrInvalidPage, err)
	}

	defaultPerPage := s.cfg.Query.DefaultPerPage
	if defaultPerPage < 1 {
		defaultPerPage = core.DefaultPerPage
	}
	perPage, err := parseIntParam(values.Get("per_page"), defaultPerPage)
	if err != nil {
		return listUsersQuery{}, fmt.Errorf("%w: per_page: %v", core.ErrInvalidPerPage, err)
	}

	q := listUsersQuery{Page: page, PerPage: perPage, Courses: values.Get("courses")}
	if err := s.validate.Check(q); err != nil {
		return listUsersQuery{}, err
	}

	if maxPerPage := s.cfg.Query.MaxPerPage; maxPerPage > 0 && q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	return q, nil
}

// parseIntParam parses an integer query parameter with a default value.
// Unlike a lenient parse, garbage is an error rather than the default.
func parseIntParam(val string, defaultVal int) (int, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", val)
	}
	return i, nil
}

// handleBackup serializes the selected users to a CSV attachment.
//
//	POST /api/backup {"user_ids": [101, 102]}
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if maxBytes := s.cfg.Export.MaxBodyBytes; maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err))
		return
	}
	if err := s.validate.Check(req); err != nil {
		s.fail(w, r, err)
		return
	}

	exp, err := s.service.ExportByIDs(r.Context(), req.UserIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "backup_id", exp.ID).Info("backup exported",
		"requested", len(req.UserIDs),
		"rows", exp.Rows,
		"bytes", len(exp.Data),
		"filename", exp.Filename,
	)

	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.Header().Set("X-Backup-ID", exp.ID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(exp.Data); err != nil {
		logging.FromContext(r.Context()).Warn("backup write failed", "backup_id", exp.ID, "error", err)
	}
}

// handleStatus returns the current state of the export limiter.
// Used for monitoring and to check if the system can accept more backups.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Limiter().Status())
}
