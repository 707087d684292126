package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/gorilla/mux"
)

// ConversationHandler handles HTTP requests for conversations
type ConversationHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(repos repository.RepositoryManager, committer *Committer) *ConversationHandler {
	return &ConversationHandler{repos: repos, committer: committer}
}

// SetupConversationRoutes sets up conversation routes
func (h *ConversationHandler) SetupConversationRoutes(router *mux.Router) {
	router.HandleFunc("/conversations", h.ListConversations).Methods("GET")
	router.HandleFunc("/conversations", h.CreateConversation).Methods("POST")
	router.HandleFunc("/conversations/stats", h.GetStats).Methods("GET")
	router.HandleFunc("/conversations/{id}", h.GetConversation).Methods("GET")
	router.HandleFunc("/conversations/{id}/assign", h.AssignConversation).Methods("POST")
	router.HandleFunc("/conversations/{id}/status", h.UpdateStatus).Methods("PUT")
	router.HandleFunc("/conversations/{id}/tags", h.UpdateTags).Methods("PUT")
}

// assigneeFilter resolves "me" and "unassigned" in an assigned_to query value.
func assigneeFilter(value string, p domain.Principal) (assignedTo string, unassigned bool) {
	switch value {
	case "":
		return "", false
	case "me":
		return p.UserID, false
	case "unassigned":
		return "", true
	default:
		return value, false
	}
}

// ListConversations godoc
// @Summary List conversations, most recent activity first
// @Tags conversations
// @Produce json
// @Param status query string false "open, assigned, closed or archived"
// @Param channel query string false "Channel type"
// @Param assigned_to query string false "me, unassigned or a user id"
// @Param search query string false "Contact name, phone or email"
// @Param page query int false "Page"
// @Param per_page query int false "Page size (max 100)"
// @Success 200 {object} map[string]interface{}
// @Router /api/conversations [get]
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	q := r.URL.Query()

	filter := domain.ConversationFilter{
		Status:      domain.ConversationStatus(q.Get("status")),
		ChannelType: domain.ChannelType(q.Get("channel")),
		Search:      q.Get("search"),
	}
	filter.AssignedTo, filter.Unassigned = assigneeFilter(q.Get("assigned_to"), p)

	page := pageRequest(r)
	conversations, total, err := h.repos.Conversation().List(r.Context(), p.CustomerID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "conversations", conversations, page, total)
}

// GetStats godoc
// @Summary Inbox counters
// @Tags conversations
// @Produce json
// @Success 200 {object} domain.ConversationStats
// @Router /api/conversations/stats [get]
func (h *ConversationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	stats, err := h.repos.Conversation().Stats(r.Context(), p.CustomerID, p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"stats": stats})
}

// GetConversation godoc
// @Summary Get a conversation with its messages
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/conversations/{id} [get]
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	customerID := principal(r).CustomerID
	id := mux.Vars(r)["id"]

	conversation, err := h.repos.Conversation().Get(r.Context(), customerID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	messages, err := h.repos.Message().ListByConversation(r.Context(), customerID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var contact *domain.Contact
	if c, err := h.repos.Contact().Get(r.Context(), customerID, conversation.ContactID); err == nil {
		contact = c
	}

	writeJSON(w, http.StatusOK, envelope{
		"conversation": conversation,
		"contact":      contact,
		"messages":     messages,
	})
}

// CreateConversation godoc
// @Summary Open a conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Param conversation body domain.CreateConversationRequest true "Conversation"
// @Success 201 {object} domain.Conversation
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string "Contact or channel not found"
// @Router /api/conversations [post]
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var conversation *domain.Conversation
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		conversation, err = u.Conversation().Create(ctx, u.Principal.CustomerID, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionCreate, "conversation", conversation.ID, nil)
		u.Emit(domain.NewEvent(domain.EventConversationCreated, u.Principal.CustomerID, conversation).ForConversation(conversation.ID))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "conversation created successfully", "conversation": conversation})
}

// AssignConversation godoc
// @Summary Assign or unassign a conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param body body domain.AssignRequest true "agent_id, null to unassign"
// @Success 200 {object} domain.Conversation
// @Failure 404 {object} map[string]string "Conversation or agent not found"
// @Router /api/conversations/{id}/assign [post]
func (h *ConversationHandler) AssignConversation(w http.ResponseWriter, r *http.Request) {
	var req domain.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.AgentID != nil && *req.AgentID == "" {
		req.AgentID = nil
	}

	id := mux.Vars(r)["id"]
	var conversation *domain.Conversation
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		conversation, err = u.Conversation().Assign(ctx, u.Principal.CustomerID, id, req.AgentID)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionAssign, "conversation", conversation.ID, map[string]interface{}{"agent_id": domain.Deref(req.AgentID)})
		u.Emit(domain.NewEvent(domain.EventConversationAssigned, u.Principal.CustomerID, conversation).ForConversation(conversation.ID))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "conversation assigned successfully"
	if req.AgentID == nil {
		message = "conversation unassigned successfully"
	}
	writeJSON(w, http.StatusOK, envelope{"message": message, "conversation": conversation})
}

// UpdateStatus godoc
// @Summary Change a conversation's status
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param body body domain.ConversationStatusRequest true "Status"
// @Success 200 {object} domain.Conversation
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 404 {object} map[string]string
// @Router /api/conversations/{id}/status [put]
func (h *ConversationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.ConversationStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var conversation *domain.Conversation
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		conversation, err = u.Conversation().SetStatus(ctx, u.Principal.CustomerID, id, req.Status)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionStatusChange, "conversation", conversation.ID, map[string]interface{}{"status": string(req.Status)})
		if req.Status == domain.ConversationStatusClosed {
			u.Emit(domain.NewEvent(domain.EventConversationClosed, u.Principal.CustomerID, conversation).ForConversation(conversation.ID))
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "status updated successfully", "conversation": conversation})
}

// UpdateTags godoc
// @Summary Replace a conversation's tags
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param body body domain.TagsRequest true "Tags"
// @Success 200 {object} domain.Conversation
// @Failure 404 {object} map[string]string
// @Router /api/conversations/{id}/tags [put]
func (h *ConversationHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	var req domain.TagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var conversation *domain.Conversation
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		conversation, err = u.Conversation().SetTags(ctx, u.Principal.CustomerID, id, req.Tags)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "conversation", conversation.ID, map[string]interface{}{"tags": req.Tags})
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "tags updated successfully", "conversation": conversation})
}
