package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/noot-app/foodscan-mcp-server/internal/app"
	"github.com/noot-app/foodscan-mcp-server/internal/auth"
	"github.com/noot-app/foodscan-mcp-server/internal/mcpgo"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string     `json:"status"`
	Error   string     `json:"error,omitempty"`
	Details app.Status `json:"details"`
}

// Server serves the REST API and the MCP endpoint
type Server struct {
	app  *app.App
	mcp  *mcpgo.Server
	auth *auth.BearerTokenAuth
	log  *slog.Logger
}

// New creates a new server instance
func New(a *app.App, logger *slog.Logger) *Server {
	return &Server{
		app:  a,
		mcp:  mcpgo.NewServer(a, logger),
		auth: auth.NewBearerTokenAuth(a.Config.AuthToken),
		log:  logger,
	}
}

// Router builds the HTTP routes. Everything except /health requires a bearer
// token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/v1", func(r chi.Router) {
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/analyze/labels", s.handleAnalyzeLabels)
			r.Get("/nutrition/{name}", s.handleGetNutrition)
			r.Put("/nutrition/{name}", s.handlePutNutrition)
			r.Post("/feedback", s.handleSubmitFeedback)
			r.Get("/feedback", s.handleListFeedback)
		})

		r.Handle("/mcp", s.mcp.Handler())
	})

	return r
}

// writeTimeout lets the slowest analysis finish and still write its response
func (s *Server) writeTimeout() time.Duration {
	return max(HTTPWriteTimeout, s.app.Orchestrator.MaxDuration()+HTTPWriteSlack)
}

// Start serves HTTP until SIGINT/SIGTERM or ctx is cancelled, then shuts down
// gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.app.Config
	s.log.Info("Starting Food Scan MCP Server", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.app.HasDataset() && cfg.RefreshIntervalHours > 0 {
		s.startRefreshLoop(ctx)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", "error", err)
	}

	if err := s.app.Close(); err != nil {
		s.log.Error("Failed to close query engine", "error", err)
	}

	s.log.Info("Server stopped")
	return nil
}

// startRefreshLoop re-checks the Open Food Facts dataset on the configured
// interval
func (s *Server) startRefreshLoop(ctx context.Context) {
	interval := s.app.Config.RefreshInterval()
	s.log.Info("Starting refresh loop", "interval", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.log.Info("Refresh loop stopping due to context cancellation")
				return
			case <-ticker.C:
				s.log.Info("Refresh tick: checking dataset")
				if err := s.app.RefreshDataset(ctx); err != nil {
					s.log.Error("Refresh failed", "error", err)
				} else {
					s.log.Info("Refresh completed successfully")
				}
			}
		}
	}()
}

// requestLogger logs one line per request through slog
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
			"duration", time.Since(start))
	})
}

// handleHealth reports provider health, cached for app.HealthCacheDuration
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "healthy", Details: s.app.Status()}
	statusCode := http.StatusOK

	if err := s.app.CheckHealth(r.Context()); err != nil {
		s.log.Error("Health check failed", "error", err)
		response.Status = "unhealthy"
		response.Error = err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, response)
}

// sendErrorResponse sends an error response, with detailed error in development mode
func (s *Server) sendErrorResponse(w http.ResponseWriter, err error, message string, statusCode int) {
	if s.app.Config.IsDevelopment() && err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
