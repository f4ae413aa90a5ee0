// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/verdict-labs/verdict/internal/admin"
	"github.com/verdict-labs/verdict/internal/analytics"
	"github.com/verdict-labs/verdict/internal/cache"
	"github.com/verdict-labs/verdict/internal/config"
	"github.com/verdict-labs/verdict/internal/gateway"
	"github.com/verdict-labs/verdict/internal/health"
	"github.com/verdict-labs/verdict/internal/logging"
	"github.com/verdict-labs/verdict/internal/metrics"
	"github.com/verdict-labs/verdict/internal/model"
	"github.com/verdict-labs/verdict/internal/partner"
	"github.com/verdict-labs/verdict/internal/ratelimit"
	"github.com/verdict-labs/verdict/internal/realtime"
	"github.com/verdict-labs/verdict/internal/risk"
	"github.com/verdict-labs/verdict/internal/security"
	"github.com/verdict-labs/verdict/internal/traces"
	"github.com/verdict-labs/verdict/internal/trust"
	"github.com/verdict-labs/verdict/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	cache       cache.Cache
	partners    *partner.Manager
	trust       *trust.Service
	engine      *risk.Engine
	models      *model.Provider
	modelStore  model.Store
	samples     model.SampleStore
	worker      *model.Worker
	limiter     *ratelimit.Limiter
	hub         *realtime.Hub
	gateway     *gateway.Service
	analytics   *analytics.Service
	checks      *health.Registry
	db          *sql.DB // nil if using in-memory
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger
	shutdownTrc func(context.Context) error

	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Cache (Redis if REDIS_URL set, otherwise in-process)
	if cfg.RedisURL != "" {
		c, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.cache = c
		s.logger.Info("using Redis cache", "addr", cfg.RedisURL)
	} else {
		s.cache = cache.NewMemory()
		s.logger.Info("using in-process cache")
	}

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		partnerStore partner.Store
		trustStore   trust.Store
		scoreStore   risk.Store
		logStore     analytics.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		ps := partner.NewPostgresStore(db)
		if err := ps.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate partner store", "error", err)
		}
		partnerStore = ps

		ts := trust.NewPostgresStore(db)
		if err := ts.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate trust store", "error", err)
		}
		trustStore = ts

		rs := risk.NewPostgresStore(db)
		if err := rs.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate risk store", "error", err)
		}
		scoreStore = rs

		ms := model.NewPostgresStore(db)
		if err := ms.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate model store", "error", err)
		}
		s.modelStore = ms

		ss := model.NewPostgresSampleStore(db)
		if err := ss.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate sample store", "error", err)
		}
		s.samples = ss

		ls := analytics.NewPostgresStore(db)
		if err := ls.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate analytics store", "error", err)
		}
		logStore = ls
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
		partnerStore = partner.NewMemoryStore()
		trustStore = trust.NewMemoryStore()
		scoreStore = risk.NewMemoryStore()
		s.modelStore = model.NewMemoryStore()
		s.samples = model.NewMemorySampleStore()
		logStore = analytics.NewMemoryStore()
	}

	// Core services
	s.partners = partner.NewManager(partnerStore, s.cache)
	s.trust = trust.NewService(trustStore, s.cache)
	s.models = model.NewProvider(s.modelStore, s.cache)
	s.analytics = analytics.NewService(logStore, s.cache, logging.Component(s.logger, "analytics"))

	s.engine = risk.NewEngine(s.trust).
		WithBlockThreshold(cfg.BlockThreshold).
		WithReviewThreshold(cfg.ReviewThreshold)

	trainer := model.NewTrainer().
		WithEpochs(cfg.TrainingEpochs).
		WithLearningRate(cfg.LearningRate)
	s.worker = model.NewWorker(s.samples, s.modelStore, s.models, trainer,
		cfg.TrainingMinRows, cfg.TrainingInterval, logging.Component(s.logger, "training"))

	s.limiter = ratelimit.New(s.cache, cfg.RateLimitWindow)
	s.hub = realtime.NewHub(logging.Component(s.logger, "feed"))
	s.gateway = gateway.NewService(s.limiter, s.engine, s.models, scoreStore,
		s.samples, s.hub, logging.Component(s.logger, "gateway"))

	// Health checks
	s.checks = health.NewRegistry()
	if s.db != nil {
		s.checks.Register("database", health.Database(s.db))
	}
	s.checks.Register("cache", health.Cache(s.cache))
	s.checks.Register("model", health.Model(s.models))

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/", s.infoHandler)

	// Partner auth runs on everything under /v1, including the feed
	gatewayHandler := gateway.NewHandler(s.gateway, s.analytics, s.hub)

	v1 := s.router.Group("/v1")
	v1.Use(partner.Middleware(s.partners))

	protected := v1.Group("")
	protected.Use(partner.RequireAuth())
	gatewayHandler.RegisterRoutes(protected)
	gatewayHandler.RegisterFeedRoute(protected)

	// Admin routes (operator-only, shared secret)
	adminHandler := admin.NewHandler(s.partners, s.trust, s.worker, s.models, s.hub)
	adminGroup := s.router.Group("/admin")
	adminGroup.Use(partner.RequireAdmin(s.cfg.AdminSecret))
	adminHandler.RegisterRoutes(adminGroup)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Verdict",
		"description": "Transaction fraud-risk scoring for payment platforms",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when OTLP endpoint is unset)
	shutdownTrc, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTrc = shutdownTrc
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start websocket hub
	go s.hub.Run(runCtx)

	// Start training scheduler
	go s.worker.Start(runCtx)

	// Collect DB pool metrics
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, training worker)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop the training worker's own ticker loop
	s.worker.Stop()
	s.logger.Info("training worker stopped")

	// Flush traces
	if s.shutdownTrc != nil {
		if err := s.shutdownTrc(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	// Close cache connection (no-op for in-process cache)
	if closer, ok := s.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("cache close error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
