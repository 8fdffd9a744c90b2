package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"staysync/internal/availability"
	"staysync/internal/integrity"
	"staysync/internal/metrics"
	"staysync/internal/models"
	"staysync/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	info := map[string]interface{}{
		"service":     "StaySync",
		"version":     "1.0.0",
		"description": "Ledger synchronization and integrity verification for rental listings",
		"endpoints": map[string]string{
			"GET /":                                  "This page - Service information",
			"GET /health":                            "Health check endpoint",
			"GET /metrics":                           "Prometheus metrics for monitoring",
			"GET /sync/status":                       "Per-contract sync state and cursors",
			"GET /properties/{id}":                   "Get a synced property",
			"GET /properties/{id}/verify":            "Recompute and compare the property's integrity hash",
			"GET /properties/{id}/availability":      "Check a date range (?start=YYYY-MM-DD&end=YYYY-MM-DD)",
			"GET /bookings/{id}":                     "Get a synced booking",
			"GET /bookings/{id}/verify":              "Recompute and compare the booking's integrity hash",
		},
	}

	s.sendJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		slog.Error("Health check failed", "error", err)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"service":   "staysync",
	}

	s.sendJSON(w, code, health)
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// handleSyncStatus reports the poll state of every tracked contract
// GET /sync/status
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.reporter == nil {
		s.sendError(w, "Sync engine not running", http.StatusServiceUnavailable)
		return
	}

	s.sendData(w, map[string]interface{}{
		"contracts": s.reporter.Status(),
	})
}

// =============================================================================
// PROPERTY ENDPOINTS
// =============================================================================

// handleGetProperty returns a synced property. Cache freshness is owned
// by the sync engine, which invalidates the key whenever an applied
// event changes the property; /verify is the hash-checking read path.
// GET /properties/{id}
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	cacheKey := "property:" + id

	var cached models.Property
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		s.sendData(w, cached)
		return
	}

	property, err := s.store.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.sendError(w, "Property not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get property", "property_id", id, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := s.cache.Set(ctx, cacheKey, property, s.cacheTTL); err != nil {
		slog.Warn("Failed to cache property", "property_id", id, "error", err)
	}

	s.sendData(w, property)
}

// handleVerifyProperty recomputes the canonical hash and compares it to
// the stored one. A mismatch is reported in the response body, not as an
// HTTP error.
// GET /properties/{id}/verify
func (s *Server) handleVerifyProperty(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	property, err := s.store.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.sendError(w, "Property not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get property", "property_id", id, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	computed, err := integrity.HashProperty(*property)
	if err != nil {
		slog.Error("Failed to canonicalize property", "property_id", id, "error", err)
		s.sendError(w, "Property record is not canonicalizable", http.StatusUnprocessableEntity)
		return
	}

	verified := computed == property.IntegrityHash
	if verified {
		metrics.IntegrityChecks.WithLabelValues("match").Inc()
	} else {
		metrics.IntegrityChecks.WithLabelValues("mismatch").Inc()
		slog.Warn("Integrity mismatch on read",
			"property_id", id,
			"stored_hash", property.IntegrityHash,
			"computed_hash", computed,
		)
	}

	s.sendData(w, models.VerifyResponse{
		PropertyID:   id,
		StoredHash:   property.IntegrityHash,
		ComputedHash: computed,
		Verified:     verified,
	})
}

// handleAvailability answers whether a candidate date range is free of
// conflicting bookings. Ranges are half-open: checkout day is bookable.
// GET /properties/{id}/availability?start=2024-01-01&end=2024-01-10
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	start, err := parseDateParam(r, "start")
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.store.GetProperty(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.sendError(w, "Property not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get property", "property_id", id, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	existing, err := s.store.FindBookingsByProperty(ctx, id)
	if err != nil {
		slog.Error("Failed to load bookings", "property_id", id, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	available, err := availability.IsAvailable(id, start, end, existing)
	if err != nil {
		var rangeErr *availability.InvalidRangeError
		if errors.As(err, &rangeErr) {
			s.sendError(w, rangeErr.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Availability check failed", "property_id", id, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.sendData(w, models.AvailabilityResponse{
		PropertyID: id,
		Start:      start,
		End:        end,
		Available:  available,
	})
}

// =============================================================================
// BOOKING ENDPOINTS
// =============================================================================

// handleGetBooking returns a synced booking
// GET /bookings/{id}
func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request, id string) {
	booking, err := s.store.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.sendError(w, "Booking not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get booking", "booking_id", id, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.sendData(w, booking)
}

// handleVerifyBooking recomputes the booking's canonical hash
// GET /bookings/{id}/verify
func (s *Server) handleVerifyBooking(w http.ResponseWriter, r *http.Request, id string) {
	booking, err := s.store.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.sendError(w, "Booking not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get booking", "booking_id", id, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	computed, err := integrity.HashBooking(*booking)
	if err != nil {
		slog.Error("Failed to canonicalize booking", "booking_id", id, "error", err)
		s.sendError(w, "Booking record is not canonicalizable", http.StatusUnprocessableEntity)
		return
	}

	verified := computed == booking.IntegrityHash
	if verified {
		metrics.IntegrityChecks.WithLabelValues("match").Inc()
	} else {
		metrics.IntegrityChecks.WithLabelValues("mismatch").Inc()
		slog.Warn("Integrity mismatch on read",
			"booking_id", id,
			"stored_hash", booking.IntegrityHash,
			"computed_hash", computed,
		)
	}

	s.sendData(w, models.VerifyResponse{
		PropertyID:   booking.PropertyID,
		StoredHash:   booking.IntegrityHash,
		ComputedHash: computed,
		Verified:     verified,
	})
}
