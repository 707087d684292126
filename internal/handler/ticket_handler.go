package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/gorilla/mux"
)

// TicketHandler handles HTTP requests for support tickets
type TicketHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(repos repository.RepositoryManager, committer *Committer) *TicketHandler {
	return &TicketHandler{repos: repos, committer: committer}
}

// SetupTicketRoutes sets up ticket routes
func (h *TicketHandler) SetupTicketRoutes(router *mux.Router) {
	router.HandleFunc("/tickets", h.ListTickets).Methods("GET")
	router.HandleFunc("/tickets", h.CreateTicket).Methods("POST")
	router.HandleFunc("/tickets/stats", h.GetStats).Methods("GET")
	router.HandleFunc("/tickets/{id}", h.GetTicket).Methods("GET")
	router.HandleFunc("/tickets/{id}", h.UpdateTicket).Methods("PUT")
	router.HandleFunc("/tickets/{id}/assign", h.AssignTicket).Methods("POST")
	router.HandleFunc("/tickets/{id}/status", h.UpdateStatus).Methods("PUT")
}

// ListTickets godoc
// @Summary List tickets
// @Tags tickets
// @Produce json
// @Param status query string false "open, in_progress, resolved or closed"
// @Param priority query string false "low, normal, high or urgent"
// @Param category query string false "Category"
// @Param assigned_to query string false "me, unassigned or a user id"
// @Param search query string false "Title substring"
// @Success 200 {object} map[string]interface{}
// @Router /api/tickets [get]
func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	q := r.URL.Query()

	filter := domain.TicketFilter{
		Status:   domain.TicketStatus(q.Get("status")),
		Priority: domain.Priority(q.Get("priority")),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	filter.AssignedTo, filter.Unassigned = assigneeFilter(q.Get("assigned_to"), p)

	page := pageRequest(r)
	tickets, total, err := h.repos.Ticket().List(r.Context(), p.CustomerID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "tickets", tickets, page, total)
}

// GetStats godoc
// @Summary Ticket board counters
// @Tags tickets
// @Produce json
// @Success 200 {object} domain.TicketStats
// @Router /api/tickets/stats [get]
func (h *TicketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	stats, err := h.repos.Ticket().Stats(r.Context(), p.CustomerID, p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"stats": stats})
}

// GetTicket godoc
// @Summary Get a ticket
// @Tags tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} domain.Ticket
// @Failure 404 {object} map[string]string
// @Router /api/tickets/{id} [get]
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.repos.Ticket().Get(r.Context(), principal(r).CustomerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"ticket": ticket})
}

// CreateTicket godoc
// @Summary Open a ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Param ticket body domain.CreateTicketRequest true "Ticket"
// @Success 201 {object} domain.Ticket
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string "Referenced contact or conversation not found"
// @Router /api/tickets [post]
func (h *TicketHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var ticket *domain.Ticket
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		ticket, err = u.Ticket().Create(ctx, u.Principal.CustomerID, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionCreate, "ticket", ticket.ID, map[string]interface{}{"title": ticket.Title})
		u.Emit(ticketEvent(domain.EventTicketCreated, ticket))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "ticket created successfully", "ticket": ticket})
}

// UpdateTicket godoc
// @Summary Update a ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param ticket body domain.UpdateTicketRequest true "Fields to change"
// @Success 200 {object} domain.Ticket
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/tickets/{id} [put]
func (h *TicketHandler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var ticket *domain.Ticket
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		ticket, err = u.Ticket().Update(ctx, u.Principal.CustomerID, id, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "ticket", ticket.ID, nil)
		u.Emit(ticketEvent(domain.EventTicketUpdated, ticket))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "ticket updated successfully", "ticket": ticket})
}

// AssignTicket godoc
// @Summary Assign or unassign a ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param body body domain.AssignRequest true "agent_id, null to unassign"
// @Success 200 {object} domain.Ticket
// @Failure 404 {object} map[string]string "Ticket or agent not found"
// @Router /api/tickets/{id}/assign [post]
func (h *TicketHandler) AssignTicket(w http.ResponseWriter, r *http.Request) {
	var req domain.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.AgentID != nil && *req.AgentID == "" {
		req.AgentID = nil
	}

	id := mux.Vars(r)["id"]
	var ticket *domain.Ticket
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		ticket, err = u.Ticket().Assign(ctx, u.Principal.CustomerID, id, req.AgentID)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionAssign, "ticket", ticket.ID, map[string]interface{}{"agent_id": domain.Deref(req.AgentID)})
		u.Emit(ticketEvent(domain.EventTicketUpdated, ticket))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "ticket assigned successfully", "ticket": ticket})
}

// UpdateStatus godoc
// @Summary Change a ticket's status
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param body body domain.TicketStatusRequest true "Status and optional resolution"
// @Success 200 {object} domain.Ticket
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 404 {object} map[string]string
// @Router /api/tickets/{id}/status [put]
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.TicketStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var ticket *domain.Ticket
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		ticket, err = u.Ticket().SetStatus(ctx, u.Principal.CustomerID, id, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionStatusChange, "ticket", ticket.ID, map[string]interface{}{"status": string(req.Status)})
		if ticket.Status.Terminal() {
			u.Emit(ticketEvent(domain.EventTicketClosed, ticket))
		} else {
			u.Emit(ticketEvent(domain.EventTicketUpdated, ticket))
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "status updated successfully", "ticket": ticket})
}

func ticketEvent(name string, t *domain.Ticket) *domain.Event {
	e := domain.NewEvent(name, t.CustomerID, t)
	if t.ConversationID != nil {
		e = e.ForConversation(*t.ConversationID)
	}
	return e
}
