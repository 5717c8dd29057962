// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"

	"SoilMonitorAPI/internal/config"
	"SoilMonitorAPI/internal/handler"
	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/middleware"
	"SoilMonitorAPI/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	router     *mux.Router
	cfg        *config.Config
	log        *logger.Logger
	stop       chan struct{}
}

func New(cfg *config.Config, log *logger.Logger) *Server {
	router := mux.NewRouter()

	// CORS wraps the router so preflight requests reach it for GET-only routes too.
	cors := middleware.CORS(cfg.Security.CORSAllowedOrigins, cfg.Security.CORSAllowedMethods, cfg.Security.APIKeyHeader)

	server := &Server{
		router: router,
		cfg:    cfg,
		log:    log,
		stop:   make(chan struct{}),
		httpServer: &http.Server{
			Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:        cors(router),
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
	}

	return server
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) RegisterHandlers(
	readingHandler *handler.ReadingHandler,
	alertHandler *handler.AlertHandler,
	exportHandler *handler.ExportHandler,
	healthHandler *handler.HealthHandler,
	hub *live.Hub,
) {
	s.router.Use(middleware.RequestLogger(s.log))
	s.router.Use(middleware.Recovery(s.log))

	api := s.router.PathPrefix("/api/v1").Subrouter()

	if s.cfg.Security.EnableRateLimit {
		api.Use(middleware.RateLimit(s.cfg.Security.RateLimitPerMinute, s.stop))
	}
	api.Use(s.authenticate)

	readingHandler.RegisterRoutes(api)
	readingHandler.RegisterIngestRoutes(api)
	alertHandler.RegisterRoutes(api)
	exportHandler.RegisterRoutes(api)
	healthHandler.RegisterRoutes(s.router)

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.Handle("/ws", s.userAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, w, r, s.log)
	}))).Methods("GET")

	if s.cfg.Security.JWTSecret == "" {
		s.log.Warn("JWT_SECRET not set, dashboard routes are unauthenticated")
	}
	if len(s.cfg.Security.DeviceAPIKeys) == 0 {
		s.log.Warn("DEVICE_API_KEYS not set, reading ingestion is unauthenticated")
	}

	s.log.Info("All handlers registered")
}

func passthrough(next http.Handler) http.Handler { return next }

func (s *Server) userAuth() mux.MiddlewareFunc {
	if s.cfg.Security.JWTSecret == "" {
		return passthrough
	}
	return middleware.JWTAuth(s.cfg.Security.JWTSecret)
}

func (s *Server) deviceAuth() mux.MiddlewareFunc {
	if len(s.cfg.Security.DeviceAPIKeys) == 0 {
		return passthrough
	}
	return middleware.APIKey(s.cfg.Security.APIKeyHeader, s.cfg.Security.DeviceAPIKeys)
}

// authenticate sends device ingestion through the API key check and everything else
// through bearer tokens.
func (s *Server) authenticate(next http.Handler) http.Handler {
	users := s.userAuth()(next)
	devices := s.deviceAuth()(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil && route.GetName() == handler.RouteIngestReading {
			devices.ServeHTTP(w, r)
			return
		}
		users.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server...")
	close(s.stop)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}
