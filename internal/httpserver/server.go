package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/config"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/models"
)

// Route paths
const (
	RouteClinicalTrials = "/api/search/clinicaltrials"
	RouteBrave          = "/api/search/brave"
	RouteSynthesize     = "/api/podcast/synthesize"
	RouteJobs           = "/api/podcast/jobs"
	RouteJob            = "/api/podcast/jobs/{id}"
	RouteJobAudio       = "/api/podcast/jobs/{id}/audio"
	RouteHealth         = "/health"
	RouteMetrics        = "/metrics"
)

// Options wires the HTTP server. A nil service leaves its routes
// unregistered.
type Options struct {
	Config         config.ServerConfig
	ClinicalTrials interfaces.Searcher
	Brave          interfaces.Searcher
	Synthesizer    interfaces.Synthesizer
	Jobs           interfaces.JobService
	CacheBackend   models.CacheBackend

	// Caches are reported by /health, keyed by endpoint
	Caches map[string]interfaces.Sizer
}

// Server represents the HTTP proxy server
type Server struct {
	opts   Options
	logger *zap.Logger
	router *mux.Router
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(opts Options, logger *zap.Logger) *Server {
	s := &Server{
		opts:   opts,
		logger: logger,
	}
	s.router = s.createRouter()
	return s
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server on a TCP address
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", listener.Addr().String()))
	return s.serve(listener)
}

// StartUnixSocket starts the HTTP server on a Unix socket
func (s *Server) StartUnixSocket(socketPath string) error {
	// Remove existing socket file
	if err := os.RemoveAll(socketPath); err != nil {
		s.logger.Warn("Failed to remove existing socket file", zap.String("path", socketPath), zap.Error(err))
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}

	// Set socket permissions (readable/writable by owner and group)
	if err := os.Chmod(socketPath, 0660); err != nil {
		s.logger.Warn("Failed to set socket permissions", zap.String("path", socketPath), zap.Error(err))
	}

	s.logger.Info("Starting HTTP server on Unix socket", zap.String("socket_path", socketPath))
	return s.serve(listener)
}

func (s *Server) serve(listener net.Listener) error {
	cfg := s.opts.Config
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	err := s.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// createRouter creates and configures the HTTP router
func (s *Server) createRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.metricsMiddleware, s.corsMiddleware)

	// Every API route also answers OPTIONS so the CORS middleware can
	// reply to preflight requests
	if s.opts.ClinicalTrials != nil {
		router.HandleFunc(RouteClinicalTrials, s.handleSearch(s.opts.ClinicalTrials)).Methods(http.MethodPost, http.MethodOptions)
	}
	if s.opts.Brave != nil {
		router.HandleFunc(RouteBrave, s.handleSearch(s.opts.Brave)).Methods(http.MethodPost, http.MethodOptions)
	}
	if s.opts.Synthesizer != nil {
		router.HandleFunc(RouteSynthesize, s.handleSynthesize).Methods(http.MethodPost, http.MethodOptions)
	}
	if s.opts.Jobs != nil {
		router.HandleFunc(RouteJobs, s.handleSubmitJob).Methods(http.MethodPost, http.MethodOptions)
		router.HandleFunc(RouteJobAudio, s.handleJobAudio).Methods(http.MethodGet, http.MethodOptions)
		router.HandleFunc(RouteJob, s.handleJob).Methods(http.MethodGet, http.MethodOptions)
	}

	// Health check
	router.HandleFunc(RouteHealth, s.handleHealth).Methods(http.MethodGet)

	// Prometheus metrics endpoint
	router.Handle(RouteMetrics, promhttp.Handler()).Methods(http.MethodGet)

	router.MethodNotAllowedHandler = s.corsMiddleware(http.HandlerFunc(s.handleMethodNotAllowed))
	router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	return router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	entries := make(map[string]int, len(s.opts.Caches))
	for name, sizer := range s.opts.Caches {
		entries[name] = sizer.Len()
	}

	s.writeJSON(w, http.StatusOK, &HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC(),
		Cache: HealthCache{
			Backend: s.opts.CacheBackend,
			Entries: entries,
		},
		Routes: map[string]bool{
			RouteClinicalTrials: s.opts.ClinicalTrials != nil,
			RouteBrave:          s.opts.Brave != nil,
			RouteSynthesize:     s.opts.Synthesizer != nil,
			RouteJobs:           s.opts.Jobs != nil,
		},
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeErrorCategory(w, apperrors.MethodNotAllowed, "Method "+r.Method+" is not allowed")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeErrorCategory(w, apperrors.NotFound, "The requested resource was not found")
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError maps err to its status and writes the error envelope. Details
// of unknown errors are logged, never sent.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	category := apperrors.CategoryOf(err)
	status := apperrors.HTTPStatus(category)

	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("category", string(category)),
		zap.Int("status", status),
		zap.Error(err),
	}
	switch {
	case category == apperrors.ClientClosed:
		s.logger.Debug("Client closed request", fields...)
	case status >= http.StatusInternalServerError && category != apperrors.UpstreamFailure && category != apperrors.UpstreamTimeout:
		s.logger.Error("Request failed", fields...)
	default:
		s.logger.Warn("Request failed", fields...)
	}

	s.writeErrorCategory(w, category, apperrors.PublicMessage(err))
}

func (s *Server) writeErrorCategory(w http.ResponseWriter, category apperrors.Category, message string) {
	s.writeJSON(w, apperrors.HTTPStatus(category), &ErrorResponse{
		Error:     string(category),
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}
