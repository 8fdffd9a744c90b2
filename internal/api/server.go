package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"staysync/internal/cache"
	"staysync/internal/models"
	"staysync/internal/storage"
)

// SyncStatusReporter exposes the sync engine's per-contract state to the
// operational API without coupling the server to the engine itself.
type SyncStatusReporter interface {
	Status() []models.ContractSyncStatus
}

// Server is the HTTP surface of the sync service. It serves read-only
// property and booking views, on-read integrity verification,
// availability queries, and the operational endpoints (health, metrics,
// sync status).
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	store      storage.Store
	cache      cache.Cache
	reporter   SyncStatusReporter
	cacheTTL   int
	port       int
}

// NewServer creates the API server and registers all routes. A nil cache
// disables the verified-property cache.
func NewServer(port int, store storage.Store, c cache.Cache, reporter SyncStatusReporter, cacheTTLSec int) *Server {
	if c == nil {
		c = cache.Noop{}
	}

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:      mux,
		store:    store,
		cache:    c,
		reporter: reporter,
		cacheTTL: cacheTTLSec,
		port:     port,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	// Operational endpoints
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())
	s.mux.HandleFunc("/sync/status", s.handleSyncStatus)

	// Domain endpoints
	s.mux.HandleFunc("/properties/", s.handlePropertyRoutes)
	s.mux.HandleFunc("/bookings/", s.handleBookingRoutes)
}

// handlePropertyRoutes dispatches property sub-endpoints.
func (s *Server) handlePropertyRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/properties/")
	parts := strings.Split(path, "/")

	// GET /properties/{id}
	if len(parts) == 1 && parts[0] != "" {
		s.handleGetProperty(w, r, parts[0])
		return
	}

	if len(parts) == 2 && parts[0] != "" {
		switch parts[1] {
		// GET /properties/{id}/verify
		case "verify":
			s.handleVerifyProperty(w, r, parts[0])
			return
		// GET /properties/{id}/availability?start=...&end=...
		case "availability":
			s.handleAvailability(w, r, parts[0])
			return
		}
	}

	s.sendError(w, "Endpoint not found", http.StatusNotFound)
}

// handleBookingRoutes dispatches booking sub-endpoints.
func (s *Server) handleBookingRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/bookings/")
	parts := strings.Split(path, "/")

	// GET /bookings/{id}
	if len(parts) == 1 && parts[0] != "" {
		s.handleGetBooking(w, r, parts[0])
		return
	}

	// GET /bookings/{id}/verify
	if len(parts) == 2 && parts[0] != "" && parts[1] == "verify" {
		s.handleVerifyBooking(w, r, parts[0])
		return
	}

	s.sendError(w, "Endpoint not found", http.StatusNotFound)
}

// Start starts the HTTP server in a goroutine and returns immediately.
func (s *Server) Start() error {
	go func() {
		slog.Info("API server starting",
			"port", s.port,
			"endpoints", []string{"/", "/health", "/metrics", "/sync/status"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	// Give the server a moment to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}
