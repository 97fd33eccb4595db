package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/christopherklint97/travelpal/internal/calendar"
	"github.com/christopherklint97/travelpal/internal/planner"
	"github.com/christopherklint97/travelpal/internal/store"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "travelpal",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by method and status code.",
}, []string{"method", "code"})

type Options struct {
	// PublicURL is the base of share links and QR codes.
	PublicURL      string
	AllowedOrigins []string
	RatePerSecond  float64
	Burst          int
	SessionTTL     time.Duration
	HistoryLimit   int
	Calendar       calendar.Options
}

// Server exposes the planner over a JSON API.
type Server struct {
	planner  *planner.Planner
	db       *store.DB
	opts     Options
	sessions *sessionStore
	limiter  *rateLimiter
	logger   *slog.Logger
}

// New builds a server. db may be nil, in which case trips live only as
// long as their session.
func New(p *planner.Planner, db *store.DB, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = store.DefaultHistoryLimit
	}
	return &Server{
		planner:  p,
		db:       db,
		opts:     opts,
		sessions: newSessionStore(opts.SessionTTL),
		limiter:  newRateLimiter(opts.RatePerSecond, opts.Burst),
		logger:   logger,
	}
}

// Handler returns the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(recoverPanics(s.logger))
	router.Use(logRequests(s.logger))
	router.Use(countRequests)

	router.HandleFunc("/api/health", s.health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Limit)
	api.HandleFunc("/trips", s.createTrip).Methods("POST")
	api.HandleFunc("/trips/{id}", s.getTrip).Methods("GET")
	api.HandleFunc("/trips/{id}/chat", s.chat).Methods("POST")
	api.HandleFunc("/trips/{id}/events/{eventId}/reject", s.rejectEvent).Methods("POST")
	api.HandleFunc("/trips/{id}/events/{eventId}/restore", s.restoreEvent).Methods("POST")
	api.HandleFunc("/trips/{id}/events/{eventId}/calendar-link", s.calendarLink).Methods("GET")
	api.HandleFunc("/trips/{id}/regenerate", s.regenerate).Methods("POST")
	api.HandleFunc("/trips/{id}/calendar.ics", s.calendarICS).Methods("GET")
	api.HandleFunc("/trips/{id}/plan.pdf", s.planPDF).Methods("GET")
	api.HandleFunc("/trips/{id}/share.png", s.shareQR).Methods("GET")
	api.HandleFunc("/history", s.history).Methods("GET")

	return cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		// Generation can take well over a minute.
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.cleanup(10 * time.Minute)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
