package handler

import (
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/gorilla/mux"
)

// ActivityLogHandler exposes the audit trail
type ActivityLogHandler struct {
	repos repository.RepositoryManager
}

// NewActivityLogHandler creates a new activity log handler
func NewActivityLogHandler(repos repository.RepositoryManager) *ActivityLogHandler {
	return &ActivityLogHandler{repos: repos}
}

// SetupActivityLogRoutes sets up activity log routes
func (h *ActivityLogHandler) SetupActivityLogRoutes(router *mux.Router) {
	router.HandleFunc("/activity-logs", h.ListActivityLogs).Methods("GET")
}

// ListActivityLogs godoc
// @Summary List audit entries, newest first
// @Tags activity-logs
// @Produce json
// @Param resource_type query string false "Resource type"
// @Param action query string false "Action"
// @Param user_id query string false "Acting user"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/activity-logs [get]
func (h *ActivityLogHandler) ListActivityLogs(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpActivityLogView); err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := domain.ActivityLogFilter{
		ResourceType: q.Get("resource_type"),
		Action:       q.Get("action"),
		UserID:       q.Get("user_id"),
	}

	page := pageRequest(r)
	logs, total, err := h.repos.ActivityLog().List(r.Context(), p.CustomerID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "activity_logs", logs, page, total)
}
