package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/handlers"
	"github.com/stbhakita/parish/internal/api/middleware"
	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/auth"
	"github.com/stbhakita/parish/internal/config"
	"github.com/stbhakita/parish/internal/db/repository"
	"github.com/stbhakita/parish/internal/ratelimit"
)

// Limiters holds the two rate limiter instances. A nil limiter disables
// throttling for its path prefix.
type Limiters struct {
	// Auth guards /api/auth and runs before API
	Auth *ratelimit.Limiter
	// API guards every path under /api, matched or not
	API *ratelimit.Limiter
}

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
	http   *http.Server
}

type serverOptions struct {
	now func() time.Time
}

// ServerOption configures NewServer
type ServerOption func(*serverOptions)

// WithClock replaces time.Now when picking the current Sunday reading
func WithClock(now func() time.Time) ServerOption {
	return func(o *serverOptions) { o.now = now }
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	authService *auth.Service,
	userRepo *repository.UserRepository,
	announcementRepo *repository.AnnouncementRepository,
	readingRepo *repository.ReadingRepository,
	auditRepo *repository.AuditRepository,
	limiters Limiters,
	opts ...ServerOption,
) (*Server, error) {
	o := serverOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	origins := cfg.AllowedOrigins()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(origins, cfg.IsDevelopment()))
	router.Use(middleware.ValidateOrigin(origins, !cfg.IsDevelopment()))
	router.Use(middleware.Sanitize(cfg.Server.MaxBodyBytes))

	// Rate limits run globally so unmatched /api paths are counted too.
	// Auth first, then the general limit.
	if limiters.Auth != nil {
		router.Use(middleware.RateLimitPrefix("/api/auth", limiters.Auth))
	}
	if limiters.API != nil {
		router.Use(middleware.RateLimitPrefix("/api", limiters.API))
	}

	router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Not found")
	})

	// Create handlers
	authHandler := handlers.NewAuthHandler(authService, auditRepo)
	announcementHandler := handlers.NewAnnouncementHandler(announcementRepo)
	readingHandler := handlers.NewReadingHandler(readingRepo, o.now)
	adminHandler := handlers.NewAdminHandler(authService, userRepo, auditRepo)

	authenticate := middleware.Authenticate(authService)
	requireAdmin := middleware.RequireAdmin()

	authRoutes := router.Group("/api/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.GET("/user", authHandler.GetUser)
	}

	apiRoutes := router.Group("/api")
	{
		apiRoutes.GET("/ping", handlers.Ping(cfg.Server.PingMessage))

		announcements := apiRoutes.Group("/announcements")
		{
			announcements.GET("", announcementHandler.List)
			announcements.GET("/:id", announcementHandler.Get)
			announcements.POST("", authenticate, requireAdmin, announcementHandler.Create)
			announcements.PUT("/:id", authenticate, requireAdmin, announcementHandler.Update)
			announcements.DELETE("/:id", authenticate, requireAdmin, announcementHandler.Delete)
		}

		readings := apiRoutes.Group("/readings")
		{
			readings.GET("", readingHandler.List)
			readings.GET("/current", readingHandler.Current)
			readings.GET("/:id", readingHandler.Get)
			readings.POST("", authenticate, requireAdmin, readingHandler.Create)
			readings.PUT("/:id", authenticate, requireAdmin, readingHandler.Update)
			readings.DELETE("/:id", authenticate, requireAdmin, readingHandler.Delete)
		}

		// Admin endpoints (require an admin session)
		admin := apiRoutes.Group("/admin", authenticate, requireAdmin)
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/audit", adminHandler.ListAudit)
		}
	}

	// Health check
	router.GET("/health", handlers.Health)

	return &Server{
		router: router,
		config: cfg,
		http: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}, nil
}

// Run starts the HTTP server and blocks until it stops.
// A server stopped by Shutdown returns nil.
func (s *Server) Run() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
