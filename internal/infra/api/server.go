// Package api exposes the offer service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"offer-ai-service/internal/infra/queue"
	"offer-ai-service/internal/usecase"
)

// Generator runs the pipeline synchronously for the direct endpoints.
type Generator interface {
	Run(ctx context.Context, description string, obs usecase.Observer) (*usecase.PipelineResult, error)
	Config() usecase.PipelineConfig
}

// Check reports whether one dependency is healthy.
type Check func(ctx context.Context) bool

type Options struct {
	AllowedOrigins []string
	SubmitLimit    int
	SubmitWindow   time.Duration
	Version        string
	Environment    string
	// KeyFn names the rate limit bucket for a client address.
	KeyFn func(clientID string) string
}

type Server struct {
	jobs     usecase.OfferJobUseCase
	gen      Generator
	limiter  RateLimiter
	checks   map[string]Check
	opts     Options
	validate *validator.Validate
	log      *zerolog.Logger
	now      func() time.Time
}

func NewServer(jobs usecase.OfferJobUseCase, gen Generator, limiter RateLimiter, checks map[string]Check, opts Options, log *zerolog.Logger) *Server {
	if log == nil {
		l := zerolog.Nop()
		log = &l
	}
	if opts.KeyFn == nil {
		opts.KeyFn = func(id string) string { return "rate_limit:submit:" + id }
	}
	return &Server{
		jobs:     jobs,
		gen:      gen,
		limiter:  limiter,
		checks:   checks,
		opts:     opts,
		validate: validator.New(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Router builds the full route table. CORS runs first so preflight
// requests are answered before any handler logic.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", queue.JobSecretHeader},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         86400,
		}),
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
	)

	r.Route("/api/ai", func(r chi.Router) {
		r.With(
			Timeout(15*time.Second),
			RateLimit(s.limiter, s.opts.KeyFn, s.opts.SubmitLimit, s.opts.SubmitWindow, s.log),
		).Post("/create-offer-job", s.handleCreateJob)
		r.With(Timeout(10*time.Second)).Get("/job-status/{jobId}", s.handleJobStatus)
		r.With(Timeout(30*time.Second)).Get("/job-status/{jobId}/offer.xlsx", s.handleJobExport)
		r.Post("/process-offer-job", s.handleProcessJob)
	})
	r.Post("/api/generate-offer", s.handleGenerate)
	r.Post("/api/generate-offer-stream", s.handleGenerateStream)
	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}
