package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"consultdesk/internal/config"
	"consultdesk/internal/export"
	"consultdesk/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// HealthCheck is one dependency checked by GET /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HTTPServer exposes the booking and chat widgets as a JSON API.
type HTTPServer struct {
	cfg      config.APIConfig
	sessions *service.SessionService
	exporter *export.Exporter
	checks   []HealthCheck
	limiter  *rateLimiter
	logger   *zerolog.Logger
	server   *http.Server
}

func NewHTTPServer(
	cfg config.APIConfig,
	sessions *service.SessionService,
	exporter *export.Exporter,
	logger *zerolog.Logger,
	checks ...HealthCheck,
) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		sessions: sessions,
		exporter: exporter,
		checks:   checks,
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleConfig)
		r.Get("/services", s.handleServices)
		r.Get("/availability/export", s.handleExport)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Post("/", s.handleCreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)

				r.Route("/booking", func(r chi.Router) {
					r.Post("/open", s.handleOpenBooking)
					r.Post("/close", s.handleCloseBooking)
					r.Get("/calendar", s.handleCalendar)
					r.Post("/calendar/next", s.handleShiftMonth(1))
					r.Post("/calendar/prev", s.handleShiftMonth(-1))
					r.Post("/date", s.handleSelectDate)
					r.Post("/time", s.handleSelectTime)
					r.Post("/submit", s.handleSubmit)
				})

				r.Route("/chat", func(r chi.Router) {
					r.Get("/", s.handleChat)
					r.Post("/open", s.handleOpenChat)
					r.Post("/close", s.handleCloseChat)
					r.Post("/messages", s.handleSendMessage)
					r.Post("/services/{key}", s.handleSelectService)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// decodeJSON reads a JSON body. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
