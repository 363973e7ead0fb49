package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/stripe-ledger-recon/internal/api/handlers"
	"github.com/eshaffer321/stripe-ledger-recon/internal/api/middleware"
	"github.com/eshaffer321/stripe-ledger-recon/internal/application/service"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: middleware.DefaultCORSConfig().AllowedOrigins,
	}
}

// Server is the HTTP API server.
type Server struct {
	config           Config
	router           *gin.Engine
	httpServer       *http.Server
	logger           *slog.Logger
	repo             storage.Repository
	reconcileService *service.ReconcileService
}

// NewServer creates a new API server.
// If reconcileService is nil, the reconcile endpoints are not registered.
func NewServer(cfg Config, repo storage.Repository, reconcileService *service.ReconcileService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		config:           cfg,
		router:           gin.New(),
		logger:           logger,
		repo:             repo,
		reconcileService: reconcileService,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger, "/health"))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	s.router.GET("/health", handlers.NewHealthHandler().Get)

	api := s.router.Group("/api")
	{
		summaryHandler := handlers.NewSummaryHandler(s.repo)
		api.GET("/summary", summaryHandler.Get)

		matchesHandler := handlers.NewMatchesHandler(s.repo)
		api.GET("/matches", matchesHandler.List)

		balancesHandler := handlers.NewBalancesHandler(s.repo)
		api.GET("/balances", balancesHandler.List)

		// Reconciliation runs (historical)
		runsHandler := handlers.NewRunsHandler(s.repo)
		api.GET("/runs", runsHandler.List)
		api.GET("/runs/:id", runsHandler.Get)

		// Reconciliation jobs (live)
		if s.reconcileService != nil {
			reconcileHandler := handlers.NewReconcileHandler(s.reconcileService)
			api.POST("/reconcile", reconcileHandler.Start)
			api.GET("/reconcile", reconcileHandler.ListAll)
			api.GET("/reconcile/active", reconcileHandler.ListActive)
			api.GET("/reconcile/:jobId", reconcileHandler.Get)
			api.DELETE("/reconcile/:jobId", reconcileHandler.Cancel)
		}
	}
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the HTTP handler for testing.
func (s *Server) Router() http.Handler {
	return s.router
}
