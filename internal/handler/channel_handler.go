package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/gorilla/mux"
)

// ChannelHandler handles HTTP requests for messaging channels
type ChannelHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(repos repository.RepositoryManager, committer *Committer) *ChannelHandler {
	return &ChannelHandler{repos: repos, committer: committer}
}

// SetupChannelRoutes sets up channel routes
func (h *ChannelHandler) SetupChannelRoutes(router *mux.Router) {
	router.HandleFunc("/channels", h.ListChannels).Methods("GET")
	router.HandleFunc("/channels", h.CreateChannel).Methods("POST")
	router.HandleFunc("/channels/types", h.ListChannelTypes).Methods("GET")
	router.HandleFunc("/channels/{id}", h.GetChannel).Methods("GET")
	router.HandleFunc("/channels/{id}", h.UpdateChannel).Methods("PUT")
	router.HandleFunc("/channels/{id}", h.DeleteChannel).Methods("DELETE")
	router.HandleFunc("/channels/{id}/test", h.TestChannel).Methods("POST")
	router.HandleFunc("/channels/{id}/sync", h.SyncChannel).Methods("POST")
}

// redacted returns a copy of c safe to echo: secret and token config values are masked.
func redacted(c *domain.Channel) *domain.Channel {
	out := *c
	out.Config = c.RedactedConfig()
	return &out
}

// ListChannels godoc
// @Summary List channels
// @Tags channels
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/channels [get]
func (h *ChannelHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	page := pageRequest(r)
	channels, total, err := h.repos.Channel().List(r.Context(), principal(r).CustomerID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]*domain.Channel, len(channels))
	for i, c := range channels {
		out[i] = redacted(c)
	}
	writePage(w, "channels", out, page, total)
}

// ListChannelTypes godoc
// @Summary Supported channel types and their required config
// @Tags channels
// @Produce json
// @Success 200 {array} domain.ChannelTypeInfo
// @Router /api/channels/types [get]
func (h *ChannelHandler) ListChannelTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"channel_types": domain.ChannelTypeCatalog()})
}

// GetChannel godoc
// @Summary Get a channel
// @Tags channels
// @Produce json
// @Param id path string true "Channel ID"
// @Success 200 {object} domain.Channel
// @Failure 404 {object} map[string]string
// @Router /api/channels/{id} [get]
func (h *ChannelHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := h.repos.Channel().Get(r.Context(), principal(r).CustomerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"channel": redacted(channel)})
}

// CreateChannel godoc
// @Summary Create a channel (admin, manager)
// @Tags channels
// @Accept json
// @Produce json
// @Param channel body domain.CreateChannelRequest true "Channel"
// @Success 201 {object} domain.Channel
// @Failure 400 {object} map[string]string "Invalid type"
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string "Channel type already configured"
// @Router /api/channels [post]
func (h *ChannelHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpChannelWrite); err != nil {
		writeError(w, r, err)
		return
	}

	var req domain.CreateChannelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var channel *domain.Channel
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		channel, err = u.Channel().Create(ctx, p.CustomerID, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionCreate, "channel", channel.ID, map[string]interface{}{"type": string(channel.Type)})
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "channel created successfully", "channel": redacted(channel)})
}

// UpdateChannel godoc
// @Summary Update a channel (admin, manager)
// @Tags channels
// @Accept json
// @Produce json
// @Param id path string true "Channel ID"
// @Param channel body domain.UpdateChannelRequest true "Fields to change"
// @Success 200 {object} domain.Channel
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/channels/{id} [put]
func (h *ChannelHandler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpChannelWrite); err != nil {
		writeError(w, r, err)
		return
	}

	var req domain.UpdateChannelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var channel *domain.Channel
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		channel, err = u.Channel().Update(ctx, p.CustomerID, id, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "channel", channel.ID, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "channel updated successfully", "channel": redacted(channel)})
}

// DeleteChannel godoc
// @Summary Delete a channel without conversations (admin)
// @Tags channels
// @Param id path string true "Channel ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "Conversations reference the channel"
// @Router /api/channels/{id} [delete]
func (h *ChannelHandler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpChannelDelete); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		if err := u.Channel().Delete(ctx, p.CustomerID, id); err != nil {
			return err
		}
		u.Audit(domain.ActionDelete, "channel", id, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "channel deleted successfully"})
}

// TestChannel godoc
// @Summary Test a channel connection
// @Description Channel adapters are stubs: the test always succeeds and marks the channel connected.
// @Tags channels
// @Param id path string true "Channel ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/channels/{id}/test [post]
func (h *ChannelHandler) TestChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var channel *domain.Channel
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		channel, err = u.Channel().MarkConnected(ctx, u.Principal.CustomerID, id, time.Now().UTC())
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message":   "connection test successful",
		"connected": true,
		"channel":   redacted(channel),
	})
}

// SyncChannel godoc
// @Summary Sync an active channel
// @Tags channels
// @Param id path string true "Channel ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Channel inactive"
// @Failure 404 {object} map[string]string
// @Router /api/channels/{id}/sync [post]
func (h *ChannelHandler) SyncChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var channel *domain.Channel
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		channel, err = u.Channel().MarkSynced(ctx, u.Principal.CustomerID, id, time.Now().UTC())
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message":   "channel synced successfully",
		"last_sync": channel.LastSync,
	})
}
