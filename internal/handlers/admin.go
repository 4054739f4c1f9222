package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"campus-locator/internal/models"
	"campus-locator/internal/services"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.accounts.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := s.accounts.PendingApprovals(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if pending == nil {
		pending = []models.Account{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := services.UserQuery{
		Tab:    q.Get("tab"),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}
	switch query.Tab {
	case "", "all", string(models.RoleStudent), string(models.RoleTeacher):
	default:
		writeError(w, http.StatusBadRequest, "invalid_tab", "Invalid tab")
		return
	}

	rows, err := s.accounts.ListUsers(r.Context(), query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []models.UserRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	var req models.StatusChangeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	if err := s.accounts.SetStatus(r.Context(), role, chi.URLParam(r, "id"), req.Status); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	if err := s.accounts.DeleteUser(r.Context(), role, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func roleParam(w http.ResponseWriter, r *http.Request) (models.Role, bool) {
	role := models.Role(chi.URLParam(r, "role"))
	if role != models.RoleStudent && role != models.RoleTeacher {
		writeError(w, http.StatusBadRequest, "invalid_role", "Invalid role")
		return "", false
	}
	return role, true
}
