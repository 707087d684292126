package handler

import (
	"net/http"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/gorilla/mux"
)

const (
	reportDateLayout    = "2006-01-02"
	defaultReportPeriod = 30 * 24 * time.Hour
)

// ReportHandler serves read-only aggregates
type ReportHandler struct {
	repos repository.RepositoryManager
	now   func() time.Time
}

// NewReportHandler creates a new report handler
func NewReportHandler(repos repository.RepositoryManager) *ReportHandler {
	return &ReportHandler{repos: repos, now: time.Now}
}

// SetupReportRoutes sets up report routes
func (h *ReportHandler) SetupReportRoutes(router *mux.Router) {
	router.HandleFunc("/reports/dashboard", h.Dashboard).Methods("GET")
	router.HandleFunc("/reports/conversations", h.Conversations).Methods("GET")
	router.HandleFunc("/reports/messages", h.Messages).Methods("GET")
	router.HandleFunc("/reports/tickets", h.Tickets).Methods("GET")
	router.HandleFunc("/reports/agents", h.Agents).Methods("GET")
}

// period reads start_date and end_date (YYYY-MM-DD, both inclusive) and
// defaults to the last 30 days.
func (h *ReportHandler) period(r *http.Request) (domain.DateRange, error) {
	q := r.URL.Query()
	now := h.now().UTC()

	period := domain.DateRange{Start: now.Add(-defaultReportPeriod), End: now}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(reportDateLayout, v)
		if err != nil {
			return period, domain.InvalidInput("invalid start_date, expected YYYY-MM-DD")
		}
		period.Start = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(reportDateLayout, v)
		if err != nil {
			return period, domain.InvalidInput("invalid end_date, expected YYYY-MM-DD")
		}
		period.End = t.AddDate(0, 0, 1)
	}
	if !period.End.After(period.Start) {
		return period, domain.InvalidInput("end_date must not be before start_date")
	}
	return period, nil
}

func periodEnvelope(p domain.DateRange) envelope {
	return envelope{
		"start_date": p.Start.Format(reportDateLayout),
		"end_date":   p.End.Add(-time.Nanosecond).Format(reportDateLayout),
	}
}

// Dashboard godoc
// @Summary Dashboard overview
// @Tags reports
// @Produce json
// @Success 200 {object} domain.Dashboard
// @Router /api/reports/dashboard [get]
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.repos.Report().Dashboard(r.Context(), principal(r).CustomerID, h.now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// Conversations godoc
// @Summary Conversation report
// @Tags reports
// @Produce json
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Param channel query string false "Channel type"
// @Success 200 {object} domain.ConversationReport
// @Failure 400 {object} map[string]string
// @Router /api/reports/conversations [get]
func (h *ReportHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	period, err := h.period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	channel := domain.ChannelType(r.URL.Query().Get("channel"))

	report, err := h.repos.Report().Conversations(r.Context(), principal(r).CustomerID, period, channel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"period": periodEnvelope(period), "report": report})
}

// Messages godoc
// @Summary Message report
// @Tags reports
// @Produce json
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Success 200 {object} domain.MessageReport
// @Failure 400 {object} map[string]string
// @Router /api/reports/messages [get]
func (h *ReportHandler) Messages(w http.ResponseWriter, r *http.Request) {
	period, err := h.period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.repos.Report().Messages(r.Context(), principal(r).CustomerID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"period": periodEnvelope(period), "report": report})
}

// Tickets godoc
// @Summary Ticket report
// @Tags reports
// @Produce json
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Success 200 {object} domain.TicketReport
// @Failure 400 {object} map[string]string
// @Router /api/reports/tickets [get]
func (h *ReportHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	period, err := h.period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.repos.Report().Tickets(r.Context(), principal(r).CustomerID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"period": periodEnvelope(period), "report": report})
}

// Agents godoc
// @Summary Per-agent performance
// @Tags reports
// @Produce json
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Success 200 {array} domain.AgentPerformance
// @Failure 400 {object} map[string]string
// @Router /api/reports/agents [get]
func (h *ReportHandler) Agents(w http.ResponseWriter, r *http.Request) {
	period, err := h.period(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	agents, err := h.repos.Report().Agents(r.Context(), principal(r).CustomerID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"period": periodEnvelope(period), "agents": agents})
}
