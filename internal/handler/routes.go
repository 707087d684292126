package handler

import (
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/config"
	"github.com/ClareAI/astra-crm-service/internal/core/event"
	"github.com/ClareAI/astra-crm-service/internal/realtime"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/internal/services/auth"
	"github.com/ClareAI/astra-crm-service/internal/services/webhook"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/ClareAI/astra-crm-service/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Dependencies are the services the handlers are built from. Metrics and
// Publisher may be nil.
type Dependencies struct {
	Config    *config.Config
	Repos     repository.RepositoryManager
	Auth      *auth.Service
	Publisher event.Publisher
	Webhooks  *webhook.Service
	Hub       *realtime.Hub
	Metrics   *metrics.Metrics
}

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	deps        Dependencies
	committer   *Committer
	rateLimiter *RateLimiter
	upgrader    *websocket.Upgrader
}

// NewHandlerManager creates the shared handler infrastructure
func NewHandlerManager(deps Dependencies) *HandlerManager {
	hm := &HandlerManager{
		deps:      deps,
		committer: NewCommitter(deps.Repos, deps.Publisher),
		upgrader:  realtime.NewUpgrader(deps.Config.CORSAllowedOrigins),
	}
	if deps.Config.RateLimitRPS > 0 {
		hm.rateLimiter = NewRateLimiter(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst)
	}
	return hm
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	// Apply global middleware
	router.Use(CORSMiddleware(hm.deps.Config.CORSAllowedOrigins))
	router.Use(GlobalLoggingMiddleware)
	if hm.deps.Metrics != nil {
		router.Use(hm.deps.Metrics.Middleware)
	}
	if hm.rateLimiter != nil {
		router.Use(hm.rateLimiter.Middleware)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{"error": "resource not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{"error": "method not allowed"})
	})

	hm.SetupSystemRoutes(router)
	hm.SetupAPIRoutes(router)

	// Preflight requests only need to reach the CORS middleware. A MatcherFunc
	// rather than Methods keeps unknown paths answering 404 instead of 405.
	router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Base().Info("all application routes registered")
}

// SetupSystemRoutes sets up health, metrics and websocket routes
func (hm *HandlerManager) SetupSystemRoutes(router *mux.Router) {
	var metricsHandler http.Handler
	if hm.deps.Metrics != nil {
		metricsHandler = hm.deps.Metrics.Handler()
	}
	systemHandler := NewSystemHandler(hm.deps.Repos, hm.deps.Auth, hm.deps.Hub, hm.upgrader, metricsHandler)
	systemHandler.SetupSystemRoutes(router)
}

// SetupAPIRoutes sets up all /api routes and middleware
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	// Create API subrouter with middleware
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(LoggingMiddleware)
	apiRouter.Use(ValidationMiddleware)

	authMW := AuthMiddleware(hm.deps.Auth)
	repos := hm.deps.Repos

	// Public routes first so the protected subrouter never shadows them
	var recorder LoginRecorder
	if hm.deps.Metrics != nil {
		recorder = hm.deps.Metrics
	}
	authHandler := NewAuthHandler(hm.deps.Auth, hm.committer, recorder)
	authHandler.SetupAuthRoutes(apiRouter, authMW)

	messageHandler := NewMessageHandler(repos, hm.committer)
	messageHandler.SetupPublicMessageRoutes(apiRouter)

	protected := apiRouter.NewRoute().Subrouter()
	protected.Use(authMW)

	NewCustomerHandler(repos, hm.committer).SetupCustomerRoutes(protected)
	NewContactHandler(repos, hm.committer).SetupContactRoutes(protected)
	NewChannelHandler(repos, hm.committer).SetupChannelRoutes(protected)
	NewConversationHandler(repos, hm.committer).SetupConversationRoutes(protected)
	messageHandler.SetupMessageRoutes(protected)
	NewTicketHandler(repos, hm.committer).SetupTicketRoutes(protected)
	NewAutomationHandler(repos, hm.committer).SetupAutomationRoutes(protected)
	NewTemplateHandler(repos, hm.committer).SetupTemplateRoutes(protected)
	NewWebhookHandler(repos, hm.committer, hm.deps.Webhooks).SetupWebhookRoutes(protected)
	NewReportHandler(repos).SetupReportRoutes(protected)
	NewActivityLogHandler(repos).SetupActivityLogRoutes(protected)

	logger.Base().Info("api routes registered", zap.Bool("rate_limited", hm.rateLimiter != nil))
}

// RepoManager returns the repository manager
func (hm *HandlerManager) RepoManager() repository.RepositoryManager {
	return hm.deps.Repos
}
