package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// WebhookTypeHeader names the channel an inbound provider webhook comes from.
const WebhookTypeHeader = "X-Webhook-Type"

// MessageHandler handles HTTP requests for messages
type MessageHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(repos repository.RepositoryManager, committer *Committer) *MessageHandler {
	return &MessageHandler{repos: repos, committer: committer}
}

// SetupMessageRoutes sets up the authenticated message routes
func (h *MessageHandler) SetupMessageRoutes(router *mux.Router) {
	router.HandleFunc("/messages", h.SendMessage).Methods("POST")
	router.HandleFunc("/messages/search", h.SearchMessages).Methods("GET")
	router.HandleFunc("/messages/{id}/status", h.UpdateStatus).Methods("PUT")
}

// SetupPublicMessageRoutes registers the provider webhook receiver, which has no session.
func (h *MessageHandler) SetupPublicMessageRoutes(router *mux.Router) {
	router.HandleFunc("/messages/webhook", h.ReceiveWebhook).Methods("POST")
}

// SendMessage godoc
// @Summary Send an outbound message
// @Tags messages
// @Accept json
// @Produce json
// @Param message body domain.SendMessageRequest true "Message"
// @Success 201 {object} domain.Message
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string "Conversation not found"
// @Router /api/messages [post]
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req domain.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var message *domain.Message
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		message, err = u.Message().Send(ctx, u.Principal.CustomerID, u.Principal.UserID, &req)
		if err != nil {
			return err
		}
		u.Emit(domain.NewEvent(domain.EventMessageSent, u.Principal.CustomerID, message).ForConversation(message.ConversationID))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": message})
}

// UpdateStatus godoc
// @Summary Update a message's delivery status
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param body body domain.MessageStatusRequest true "Status"
// @Success 200 {object} domain.Message
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 404 {object} map[string]string
// @Router /api/messages/{id}/status [put]
func (h *MessageHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.MessageStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var message *domain.Message
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		message, err = u.Message().UpdateStatus(ctx, u.Principal.CustomerID, id, req.Status)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message":    "status updated successfully",
		"message_id": message.ID,
		"status":     message.Status,
	})
}

// SearchMessages godoc
// @Summary Search message text within the tenant
// @Tags messages
// @Produce json
// @Param q query string true "Search text"
// @Param conversation_id query string false "Restrict to one conversation"
// @Param page query int false "Page"
// @Param per_page query int false "Page size (max 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Missing q"
// @Router /api/messages/search [get]
func (h *MessageHandler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	q := r.URL.Query()

	page := pageRequest(r)
	results, total, err := h.repos.Message().Search(r.Context(), p.CustomerID, strings.TrimSpace(q.Get("q")), q.Get("conversation_id"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "messages", results, page, total)
}

// ReceiveWebhook godoc
// @Summary Receive a channel provider webhook
// @Description Acknowledges inbound provider callbacks. Provider payload parsing is not performed.
// @Tags messages
// @Accept json
// @Produce json
// @Param X-Webhook-Type header string false "whatsapp, instagram or messenger"
// @Success 200 {object} map[string]string
// @Router /api/messages/webhook [post]
func (h *MessageHandler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	source := strings.ToLower(r.Header.Get(WebhookTypeHeader))

	switch domain.ChannelType(source) {
	case domain.ChannelTypeWhatsApp, domain.ChannelTypeInstagram, domain.ChannelTypeMessenger:
		logger.Info(r.Context(), "provider webhook received", zap.String("type", source))
		writeJSON(w, http.StatusOK, envelope{"status": "processed", "type": source})
	default:
		logger.Debug(r.Context(), "unrecognized webhook received", zap.String("type", source))
		writeJSON(w, http.StatusOK, envelope{"status": "received"})
	}
}
