package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/config"
	"github.com/ClareAI/astra-crm-service/internal/core/event"
	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/handler"
	"github.com/ClareAI/astra-crm-service/internal/realtime"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/internal/services/auth"
	"github.com/ClareAI/astra-crm-service/internal/services/webhook"
	"github.com/ClareAI/astra-crm-service/pkg/jwtutil"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/ClareAI/astra-crm-service/pkg/metrics"
	"github.com/ClareAI/astra-crm-service/pkg/pubsub"
	"github.com/ClareAI/astra-crm-service/pkg/redis"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const pubsubPublishTimeout = 10 * time.Second

// Server represents the CRM API server
type Server struct {
	config  *config.Config
	router  *mux.Router
	repos   repository.RepositoryManager
	bus     *event.DefaultEventBus
	hub     *realtime.Hub
	closers []func() error
	cancel  context.CancelFunc
}

// NewServer wires the repositories, event fan-out and HTTP handlers
func NewServer(cfg *config.Config) (*Server, error) {
	repos, err := repository.NewRepositoryManager()
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	tokens, err := jwtutil.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("create token manager: %w", err)
	}

	m := metrics.New(cfg.MetricsNamespace)

	// Middleware must be installed before the subscriptions it should wrap.
	bus := event.NewEventBus()
	for _, mw := range event.CreateProductionMiddlewareChain(m) {
		bus.Use(mw)
	}

	hub := realtime.NewHub(
		realtime.WithClientGauge(m.WebsocketClients),
		realtime.WithJoinAuthorizer(realtime.JoinAuthorizerFunc(func(ctx context.Context, customerID, conversationID string) error {
			_, err := repos.Conversation().Get(ctx, customerID, conversationID)
			return err
		})),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: cfg,
		router: mux.NewRouter(),
		repos:  repos,
		bus:    bus,
		hub:    hub,
		cancel: cancel,
	}

	if err := s.setupRealtime(ctx); err != nil {
		s.close()
		return nil, err
	}
	if err := s.setupPubSub(ctx); err != nil {
		s.close()
		return nil, err
	}

	webhooks := webhook.NewService(repos, cfg.WebhookTestTimeout, m)
	if cfg.WebhookDispatchEnabled {
		if err := bus.Subscribe(event.AllEvents, webhooks.HandleEvent); err != nil {
			s.close()
			return nil, fmt.Errorf("subscribe webhook dispatcher: %w", err)
		}
		logger.Base().Info("webhook dispatch enabled")
	}

	handlerManager := handler.NewHandlerManager(handler.Dependencies{
		Config:    cfg,
		Repos:     repos,
		Auth:      auth.NewService(repos, tokens),
		Publisher: bus,
		Webhooks:  webhooks,
		Hub:       hub,
		Metrics:   m,
	})
	handlerManager.SetupAllRoutes(s.router)

	return s, nil
}

// setupRealtime delivers bus events to websocket clients, through redis when
// several instances share the load.
func (s *Server) setupRealtime(ctx context.Context) error {
	if !s.config.RedisEnabled {
		return s.bus.SubscribeOrdered(event.AllEvents, s.hub.HandleEvent)
	}

	redisSvc, err := redis.NewRedisService(&redis.RedisConfig{
		Host:     s.config.RedisHost,
		Port:     s.config.RedisPort,
		Password: s.config.RedisPassword,
		DB:       s.config.RedisDB,
	})
	if err != nil {
		logger.Base().Warn("failed to initialize redis, realtime events stay local", zap.Error(err))
		return s.bus.SubscribeOrdered(event.AllEvents, s.hub.HandleEvent)
	}
	s.closers = append(s.closers, redisSvc.Close)

	bridge := realtime.NewBridge(s.hub, redisSvc)
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("start realtime bridge: %w", err)
	}
	logger.Base().Info("realtime events relayed through redis")
	return s.bus.SubscribeOrdered(event.AllEvents, bridge.HandleEvent)
}

// setupPubSub forwards every committed event to the external topic.
func (s *Server) setupPubSub(ctx context.Context) error {
	if !s.config.PubSubEnabled {
		return nil
	}

	svc, err := pubsub.NewPubSubService(ctx, &pubsub.PubSubConfig{
		ProjectID: s.config.PubSubProjectID,
		TopicName: s.config.PubSubTopic,
		PubID:     s.config.PubSubPubID,
	})
	if err != nil {
		return fmt.Errorf("initialize pubsub: %w", err)
	}
	s.closers = append(s.closers, svc.Close)

	logger.Base().Info("pubsub event forwarding enabled", zap.String("topic", s.config.PubSubTopic))
	return s.bus.Subscribe(event.AllEvents, func(e *domain.Event) {
		pctx, cancel := context.WithTimeout(ctx, pubsubPublishTimeout)
		defer cancel()
		if err := svc.PublishEvent(pctx, e); err != nil {
			logger.Base().Error("failed to forward event to pubsub",
				zap.String("event_id", e.ID),
				zap.String("event_type", e.Type),
				zap.Error(err))
		}
	})
}

// Start serves HTTP until SIGINT or SIGTERM, then drains and shuts down
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("Starting server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		s.close()
		if ok {
			return err
		}
		return nil
	case sig := <-stop:
		logger.Base().Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	// Websocket connections are hijacked and not drained by Shutdown.
	s.hub.Shutdown()
	err := server.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	s.cancel()
	if err := s.bus.Close(); err != nil {
		logger.Base().Warn("failed to close event bus", zap.Error(err))
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Base().Warn("failed to close dependency", zap.Error(err))
		}
	}
	if err := s.repos.Close(); err != nil {
		logger.Base().Warn("failed to close database", zap.Error(err))
	}
}

func main() {
	// Load .env file for local development if it exists.
	// This will not override environment variables set by Helm/Docker.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	cfg := config.LoadConfig()

	if _, err := logger.Init(cfg.Env); err != nil {
		log.Printf("failed to initialize zap logger, falling back to std log: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Base().Fatal("invalid configuration", zap.Error(err))
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Base().Fatal("failed to create server", zap.Error(err))
	}
	logger.Base().Info("server initialized", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	if err := server.Start(); err != nil {
		logger.Base().Fatal("server stopped with error", zap.Error(err))
	}
	logger.Base().Info("server stopped")
}
