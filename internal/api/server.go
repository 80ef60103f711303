// Package api exposes analysis results, scans and stored signals over HTTP
// and streams signal events over a websocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/auth"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/scanner"
	"smc-signal-engine/internal/signals"
	"smc-signal-engine/internal/strategy"
)

// Scanner is the part of the scanner the API drives
type Scanner interface {
	ScanSymbols(ctx context.Context, symbols []string) *scanner.ScanReport
	LastReport() *scanner.ScanReport
	AnalyzeSymbol(ctx context.Context, symbol string) (*strategy.Evaluation, error)
}

// HealthCheck reports the state of one dependency
type HealthCheck func(ctx context.Context) error

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ProductionMode bool
	// ScanRate limits on-demand scans per second; zero disables the limit
	ScanRate  float64
	ScanBurst int
}

// ServerConfigFromApp maps the application configuration onto the server
func ServerConfigFromApp(cfg config.ServerConfig) ServerConfig {
	var origins []string
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return ServerConfig{
		Port:           cfg.Port,
		Host:           cfg.Host,
		AllowedOrigins: origins,
		ReadTimeout:    time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.WriteTimeout) * time.Second,
		ProductionMode: true,
		ScanRate:       0.2,
		ScanBurst:      1,
	}
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	scanner     Scanner
	store       signals.Store
	eventBus    *events.EventBus
	hub         *WSHub
	jwtManager  *auth.JWTManager
	gatherer    prometheus.Gatherer
	config      ServerConfig
	logger      zerolog.Logger
	scanLimiter *rate.Limiter
	startedAt   time.Time

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// NewServer creates a new API server. jwtManager may be nil to leave the
// mutating routes open; gatherer may be nil to use the default registry.
func NewServer(
	config ServerConfig,
	sc Scanner,
	store signals.Store,
	eventBus *events.EventBus,
	jwtManager *auth.JWTManager,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 0 || (len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Trace-ID"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:     router,
		scanner:    sc,
		store:      store,
		eventBus:   eventBus,
		jwtManager: jwtManager,
		gatherer:   gatherer,
		config:     config,
		logger:     logging.WithComponent(logger, "api"),
		startedAt:  time.Now(),
		checks:     make(map[string]HealthCheck),
	}
	if config.ScanRate > 0 {
		burst := config.ScanBurst
		if burst <= 0 {
			burst = 1
		}
		s.scanLimiter = rate.NewLimiter(rate.Limit(config.ScanRate), burst)
	}
	if eventBus != nil {
		s.hub = NewWSHub(s.logger)
		go s.hub.Run()
		eventBus.SubscribeAll(s.hub.BroadcastEvent)
	}

	s.setupRoutes()
	return s
}

// AddHealthCheck registers a dependency probed by /health
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	{
		api.GET("/analysis/:symbol", s.handleAnalyze)
		api.GET("/scan/last", s.handleLastScan)
		api.GET("/signals", s.handleListSignals)
		api.GET("/signals/:id", s.handleGetSignal)
	}

	guarded := api.Group("")
	if s.jwtManager != nil {
		guarded.Use(auth.Middleware(s.jwtManager), auth.RequireWrite())
	}
	{
		guarded.POST("/scan", s.rateLimitMiddleware(), s.handleScan)
		guarded.PATCH("/signals/:id/status", s.handleUpdateSignalStatus)
	}

	if s.hub != nil {
		s.router.GET("/ws/signals", s.handleWebSocket)
	}
}

// rateLimitMiddleware limits on-demand scans, each of which hits the
// exchange for every symbol
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.scanLimiter != nil && !s.scanLimiter.Allow() {
			c.Header("Retry-After", "5")
			errorResponse(c, http.StatusTooManyRequests, "scan rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving and blocks until the server stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and disconnects websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
