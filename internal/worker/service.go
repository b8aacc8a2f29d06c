// Package worker provides the HTTP API of the FAQ learning service.
package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/thebtf/faqlearn/internal/audit"
	"github.com/thebtf/faqlearn/internal/config"
	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/feedback"
	"github.com/thebtf/faqlearn/internal/jobs"
	"github.com/thebtf/faqlearn/internal/realtime"
	"github.com/thebtf/faqlearn/internal/review"
	"github.com/thebtf/faqlearn/internal/worker/docs"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// MaxRequestBody bounds request bodies. Interaction snapshots are the largest payloads.
	MaxRequestBody = 4 << 20

	// DefaultImprovementLimit is the number of entries /api/faqs/improvement returns by default.
	DefaultImprovementLimit = 20
)

// Deps are the components the API exposes.
type Deps struct {
	Review       *review.Queue
	Feedback     *feedback.Processor
	Realtime     *realtime.Processor
	Jobs         *jobs.Orchestrator
	Audit        *audit.Recorder
	Interactions db.InteractionStore
	// Database is optional; without it /health reports the process only.
	Database db.HealthChecker
}

// Service is the HTTP API server.
type Service struct {
	version string
	config  *config.Config
	deps    Deps
	logger  zerolog.Logger

	router    *chi.Mux
	server    *http.Server
	startTime time.Time
}

// NewService creates the API service. cfg may be nil to use defaults.
func NewService(version string, cfg *config.Config, deps Deps, logger zerolog.Logger) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	svc := &Service{
		version:   version,
		config:    cfg,
		deps:      deps,
		logger:    logger.With().Str("component", "worker").Logger(),
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}

	if version != "" {
		docs.SwaggerInfo.Version = version
	}

	svc.setupMiddleware()
	svc.setupRoutes()
	svc.server = &http.Server{
		Addr:              cfg.WorkerAddr(),
		Handler:           svc.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return svc
}

// Handler returns the routed handler, for tests and embedding.
func (s *Service) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(timeout))
	s.router.Use(SecurityHeaders)
	s.router.Use(MaxBodySize(MaxRequestBody))
	s.router.Use(RequireJSONContentType)
	s.router.Use(NewPerClientRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst).Middleware)
	s.router.Use(NewTokenAuth(s.config.AuthToken).Middleware)
}

// accessLog writes one zerolog line per request.
func (s *Service) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := s.logger.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", GetRequestID(r.Context())).
			Msg("HTTP request")
	})
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/faqs", func(r chi.Router) {
		r.Get("/", s.handleListFaqs)
		r.Get("/stats", s.handleReviewStats)
		r.Get("/improvement", s.handleImprovement)
		r.Post("/bulk-review", s.handleBulkReview)
		r.Post("/auto-publish", s.handleAutoPublish)
		r.Get("/{id}/history", s.handleReviewHistory)
		r.Post("/{id}/review", s.handleReview)
		r.Post("/{id}/feedback", s.handleFeedback)
		r.Get("/{id}/performance", s.handlePerformance)
	})

	s.router.Route("/api/triggers", func(r chi.Router) {
		r.Get("/", s.handleTriggerStatus)
		r.Delete("/", s.handleClearTriggers)
		r.Post("/chat", s.handleChatTrigger)
		r.Post("/ticket", s.handleTicketTrigger)
	})

	s.router.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/history", s.handleJobHistory)
		r.Post("/{name}/enable", s.handleEnableJob)
		r.Post("/{name}/disable", s.handleDisableJob)
		r.Post("/{name}/run", s.handleRunJob)
		r.Put("/{name}/schedule", s.handleScheduleJob)
	})

	s.router.Get("/api/audit/export", s.handleAuditExport)

	s.router.Get("/swagger/*", swaggerUI(httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))))
}

// swaggerUI loosens the content security policy so the bundled UI can load its own assets.
func swaggerUI(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		next.ServeHTTP(w, r)
	}
}

// ListenAndServe serves until Shutdown. It returns nil after a clean shutdown.
func (s *Service) ListenAndServe() error {
	s.logger.Info().Str("addr", s.server.Addr).Str("version", s.version).Msg("Worker listening")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, or for ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}
	s.logger.Info().Msg("Worker service shutdown complete")
	return nil
}
