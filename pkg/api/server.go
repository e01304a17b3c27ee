package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/venuekit/usher/pkg/log"
	"github.com/venuekit/usher/pkg/metrics"
	"github.com/venuekit/usher/pkg/store"
	"github.com/venuekit/usher/pkg/types"
)

// Server is the record-store HTTP API plus the liveness and health
// endpoints the sync engine probes.
type Server struct {
	repo   *BookingRepo
	router chi.Router
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer creates a record-store server over the given repo
func NewServer(repo *BookingRepo) *Server {
	s := &Server{
		repo:   repo,
		logger: log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(s.observe)

	// Liveness is deliberately free of any database dependency; it exists
	// purely for latency measurement.
	r.Head("/health", s.healthHandler)
	r.Get("/health", s.healthHandler)

	r.Get("/ready", s.readyHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/bookings", func(r chi.Router) {
		r.Get("/", s.findBookings)
		r.Post("/", s.createBooking)
		r.Get("/{id}", s.getBooking)
		r.Patch("/{id}/attendance", s.updateAttendance)
	})

	s.router = r
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("record-store API listening")
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// healthHandler implements the zero-body liveness endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// ReadyResponse reports downstream-store health for operational dashboards
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// readyHandler implements the heavier health variant that also checks the
// booking database
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "ready"
	code := http.StatusOK

	if err := s.repo.Ping(r.Context()); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "not ready"
		code = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	writeJSON(w, code, ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}

// findBookings handles lookup by exact code and prefix search
func (s *Server) findBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if code := q.Get("code"); code != "" {
		booking, err := s.repo.FindByCode(r.Context(), code)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
		return
	}

	prefix := q.Get("prefix")
	if prefix == "" {
		writeJSONError(w, http.StatusBadRequest, "code or prefix query parameter is required")
		return
	}
	limit := 10
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 50 {
		limit = 50
	}

	bookings, err := s.repo.SearchPrefix(r.Context(), prefix, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) getBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	booking, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request) {
	var booking types.Booking
	if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid booking payload")
		return
	}
	if booking.Code == "" || booking.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "code and name are required")
		return
	}

	if err := s.repo.Create(r.Context(), &booking); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) updateAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	var upd store.AttendanceUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid attendance payload")
		return
	}
	if upd.ActualGuests < 0 || upd.ActualGuests > types.MaxActualGuests {
		writeJSONError(w, http.StatusBadRequest, "actual_guests out of range")
		return
	}
	if upd.AttendedAt.IsZero() {
		writeJSONError(w, http.StatusBadRequest, "attended_at is required")
		return
	}

	booking, err := s.repo.UpdateAttendance(r.Context(), id, upd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, ErrAlreadyApplied):
		writeJSONError(w, http.StatusConflict, "attendance update already applied")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// observe records per-route request metrics
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
