// Package api exposes the facility and reservation engine over HTTP for
// the stable-management app and partner integrations.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"stablebook/internal/cache"
	"stablebook/internal/config"
	"stablebook/internal/db"
	"stablebook/internal/slots"
)

// HTTPServer serves the JSON API. All state-changing validation happens in
// the db layer; handlers only translate wire requests and verdicts.
type HTTPServer struct {
	server *http.Server
	db     *db.DB
	cache  *cache.SlotCache
	gen    slots.Generator
	log    *zerolog.Logger

	// defaultTZ applies to facilities created without a timezone.
	defaultTZ string

	apiKeys map[string]bool

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHTTPServer wires handlers, auth and rate limiting from config.
func NewHTTPServer(cfg *config.Config, database *db.DB, slotCache *cache.SlotCache, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		db:        database,
		cache:     slotCache,
		gen:       slots.Generator{Granularity: cfg.SlotGranularity()},
		log:       logger,
		defaultTZ: cfg.Booking.DefaultTimezone,
		apiKeys:   make(map[string]bool),
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Limit(cfg.Server.RateLimitPerSec),
		burst:     cfg.Server.RateLimitBurst,
	}
	for _, key := range cfg.Server.APIKeys {
		s.apiKeys[key] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/facilities", s.withAuth(s.handleFacilities))
	mux.HandleFunc("/api/facilities/", s.withAuth(s.handleFacilitySubtree))
	mux.HandleFunc("/api/facility-reservations", s.withAuth(s.handleCreateReservation))
	mux.HandleFunc("/api/facility-reservations/check-conflicts", s.withAuth(s.handleCheckConflicts))
	mux.HandleFunc("/api/facility-reservations/", s.withAuth(s.handleReservationByID))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until the server stops.
func (s *HTTPServer) ListenAndServe() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// withAuth enforces the X-Api-Key header and per-key rate limits. With no
// keys configured auth is open (local development) and limits apply per
// remote address.
func (s *HTTPServer) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Api-Key")
		if len(s.apiKeys) > 0 {
			if !s.apiKeys[key] {
				writeError(w, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
		} else if key == "" {
			key = r.RemoteAddr
		}

		if !s.limiter(key).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = l
	}
	return l
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeStrict(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
