package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/internal/services/webhook"
	"github.com/gorilla/mux"
)

// WebhookHandler handles HTTP requests for outbound webhook subscriptions
type WebhookHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
	service   *webhook.Service
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(repos repository.RepositoryManager, committer *Committer, service *webhook.Service) *WebhookHandler {
	return &WebhookHandler{repos: repos, committer: committer, service: service}
}

// SetupWebhookRoutes sets up webhook routes
func (h *WebhookHandler) SetupWebhookRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks", h.ListWebhooks).Methods("GET")
	router.HandleFunc("/webhooks", h.CreateWebhook).Methods("POST")
	router.HandleFunc("/webhooks/events", h.ListEvents).Methods("GET")
	router.HandleFunc("/webhooks/{id}", h.GetWebhook).Methods("GET")
	router.HandleFunc("/webhooks/{id}", h.UpdateWebhook).Methods("PUT")
	router.HandleFunc("/webhooks/{id}", h.DeleteWebhook).Methods("DELETE")
	router.HandleFunc("/webhooks/{id}/test", h.TestWebhook).Methods("POST")
}

// ListWebhooks godoc
// @Summary List webhooks
// @Tags webhooks
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/webhooks [get]
func (h *WebhookHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	page := pageRequest(r)
	webhooks, total, err := h.repos.Webhook().List(r.Context(), principal(r).CustomerID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "webhooks", webhooks, page, total)
}

// ListEvents godoc
// @Summary Subscribable webhook events
// @Tags webhooks
// @Produce json
// @Success 200 {array} domain.WebhookEventInfo
// @Router /api/webhooks/events [get]
func (h *WebhookHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"events": domain.WebhookEventCatalog()})
}

// GetWebhook godoc
// @Summary Get a webhook
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} domain.Webhook
// @Failure 404 {object} map[string]string
// @Router /api/webhooks/{id} [get]
func (h *WebhookHandler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := h.repos.Webhook().Get(r.Context(), principal(r).CustomerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"webhook": hook})
}

// CreateWebhook godoc
// @Summary Register a webhook
// @Description The signing secret is returned once, in this response.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param webhook body domain.CreateWebhookRequest true "Webhook"
// @Success 201 {object} domain.WebhookCreated
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/webhooks [post]
func (h *WebhookHandler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	if err := domain.Authorize(principal(r).Role, domain.OpWebhookWrite); err != nil {
		writeError(w, r, err)
		return
	}

	var req domain.CreateWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	secret, err := webhook.GenerateSecret()
	if err != nil {
		writeError(w, r, domain.Internal(err, "generate webhook secret"))
		return
	}

	var hook *domain.Webhook
	err = h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		hook, err = u.Webhook().Create(ctx, u.Principal.CustomerID, &req, secret)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionCreate, "webhook", hook.ID, map[string]interface{}{"url": hook.URL})
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "webhook created successfully",
		"webhook": domain.WebhookCreated{Webhook: *hook, Secret: secret},
	})
}

// UpdateWebhook godoc
// @Summary Update a webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param id path string true "Webhook ID"
// @Param webhook body domain.UpdateWebhookRequest true "Fields to change"
// @Success 200 {object} domain.Webhook
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/webhooks/{id} [put]
func (h *WebhookHandler) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	if err := domain.Authorize(principal(r).Role, domain.OpWebhookWrite); err != nil {
		writeError(w, r, err)
		return
	}

	var req domain.UpdateWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var hook *domain.Webhook
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		hook, err = u.Webhook().Update(ctx, u.Principal.CustomerID, id, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "webhook", hook.ID, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "webhook updated successfully", "webhook": hook})
}

// DeleteWebhook godoc
// @Summary Delete a webhook
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/webhooks/{id} [delete]
func (h *WebhookHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := domain.Authorize(principal(r).Role, domain.OpWebhookDelete); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		if err := u.Webhook().Delete(ctx, u.Principal.CustomerID, id); err != nil {
			return err
		}
		u.Audit(domain.ActionDelete, "webhook", id, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "webhook deleted successfully"})
}

// TestWebhook godoc
// @Summary Send a signed test delivery
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} domain.WebhookTestResult
// @Failure 404 {object} map[string]string
// @Router /api/webhooks/{id}/test [post]
func (h *WebhookHandler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Test(r.Context(), principal(r).CustomerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"test_result": result})
}
