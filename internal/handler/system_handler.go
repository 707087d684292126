package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/realtime"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const healthCheckTimeout = 3 * time.Second

// SystemHandler serves health, metrics and the realtime websocket
type SystemHandler struct {
	repos    repository.RepositoryManager
	auth     Authenticator
	hub      *realtime.Hub
	upgrader *websocket.Upgrader
	metrics  http.Handler
}

// NewSystemHandler creates a new system handler. metrics may be nil.
func NewSystemHandler(repos repository.RepositoryManager, auth Authenticator, hub *realtime.Hub, upgrader *websocket.Upgrader, metrics http.Handler) *SystemHandler {
	return &SystemHandler{
		repos:    repos,
		auth:     auth,
		hub:      hub,
		upgrader: upgrader,
		metrics:  metrics,
	}
}

// SetupSystemRoutes sets up the unprefixed infrastructure routes
func (h *SystemHandler) SetupSystemRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
	if h.metrics != nil {
		router.Handle("/metrics", h.metrics).Methods("GET")
	}
	router.HandleFunc("/ws", h.ServeWS).Methods("GET")
}

// Health godoc
// @Summary Health check
// @Description Pings the database
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string "Service is healthy"
// @Failure 503 {object} map[string]string "Database unreachable"
// @Router /health [get]
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.repos.Ping(ctx); err != nil {
		logger.Warn(r.Context(), "health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, envelope{"status": "unhealthy", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{"status": "healthy", "database": "ok"})
}

// ServeWS godoc
// @Summary Realtime event stream
// @Description Upgrades to a websocket. The token comes from the token query parameter or the Authorization header.
// @Tags system
// @Param token query string false "Access token"
// @Success 101
// @Failure 401 {object} map[string]string
// @Router /ws [get]
func (h *SystemHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeError(w, r, domain.Unauthorized("missing token"))
		return
	}

	p, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		logger.Base().Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := h.hub.Register(*p)
	logger.Base().Info("websocket client connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", p.UserID),
		zap.String("customer_id", p.CustomerID))

	// The request context ends with the handler; the connection outlives neither.
	h.hub.Serve(r.Context(), conn, client)
}
