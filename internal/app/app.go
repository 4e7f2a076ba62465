// Package app assembles the service from configuration. Every collaborator an
// enabled stage needs is built here, and construction fails before the
// listener opens if any of them cannot be created.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"offer-ai-service/internal/config"
	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/domain/ports/repository"
	aiAdapters "offer-ai-service/internal/infra/adapters/ai"
	tele "offer-ai-service/internal/infra/adapters/telegram"
	"offer-ai-service/internal/infra/analyzer"
	"offer-ai-service/internal/infra/api"
	"offer-ai-service/internal/infra/catalog"
	"offer-ai-service/internal/infra/db/memory"
	pg "offer-ai-service/internal/infra/db/postgres"
	"offer-ai-service/internal/infra/ontology"
	"offer-ai-service/internal/infra/policy"
	"offer-ai-service/internal/infra/queue"
	red "offer-ai-service/internal/infra/redis"
	"offer-ai-service/internal/infra/worker"
	"offer-ai-service/internal/twopass"
	"offer-ai-service/internal/usecase"
)

const (
	queuePrefix      = "offer_jobs"
	dispatchTimeout  = 10 * time.Second
	shutdownTimeout  = 20 * time.Second
	poolStatInterval = 15 * time.Second
)

type App struct {
	cfg *config.Config
	log *zerolog.Logger

	Jobs     usecase.OfferJobUseCase
	Pipeline *usecase.Pipeline
	Provider adapter.GenerationProvider

	router   http.Handler
	consumer *queue.Consumer
	pool     *worker.Pool
	pgPool   *pgxpool.Pool
	closers  []func() error
}

// New builds the full object graph. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ---- Job store ----
	var (
		jobs     repository.OfferJobRepository
		learning adapter.LearningRecorder
	)
	if cfg.Database.URL != "" {
		a.pgPool, err = pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { a.pgPool.Close(); return nil })
		jobs = pg.NewOfferJobRepo(a.pgPool)
		learning = pg.NewLearningRepo(a.pgPool)
	} else {
		log.Warn().Msg("database.url not set; using in-memory job store")
		jobs = memory.NewOfferJobRepo()
		learning = memory.NewLearningLog()
	}

	// ---- Redis ----
	var (
		rc       red.RedisClient
		jobQueue *red.JobQueue
	)
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		rc = c
		jobQueue = red.NewJobQueue(c, queuePrefix)
	}

	// ---- Generation provider ----
	provider, err := NewProvider(ctx, cfg.AI, log)
	if err != nil {
		return nil, err
	}
	a.Provider = aiAdapters.NewLimitedAI(provider, cfg.AI.ConcurrentLimit)
	log.Info().Str("provider", provider.Name()).Int("concurrency", cfg.AI.ConcurrentLimit).Msg("generation provider ready")

	// ---- Knowledge and quality ----
	enricher, err := ontology.New()
	if err != nil {
		return nil, fmt.Errorf("ontology: %w", err)
	}
	cat, err := catalog.New(cfg.Pipeline.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	var searcher adapter.CatalogSearcher = cat
	if rc != nil {
		searcher = red.NewSearchCache(cat, rc, cfg.Redis.TTL, log)
	}
	validator, err := policy.New(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	gen, err := twopass.NewGenerator(a.Provider, twopass.Config{
		Pass1Temperature: cfg.Pipeline.Pass1Temperature,
		Pass1MaxTokens:   cfg.Pipeline.Pass1MaxTokens,
		Pass2Temperature: cfg.Pipeline.Pass2Temperature,
		Pass2MaxTokens:   cfg.Pipeline.Pass2MaxTokens,
	}, log)
	if err != nil {
		return nil, err
	}

	a.Pipeline, err = usecase.NewPipeline(StageFlags(cfg.Pipeline), usecase.Collaborators{
		Ontology:  enricher,
		Search:    searcher,
		Examples:  cat,
		Generator: gen,
		Validator: validator,
		Analyzer:  analyzer.New(),
		Learning:  learning,
	}, log)
	if err != nil {
		return nil, err
	}

	// ---- Dispatch ----
	var (
		dispatcher adapter.Dispatcher
		broker     queue.Broker
	)
	switch cfg.Dispatch.Mode {
	case "http":
		dispatcher = queue.NewHTTPDispatcher(cfg.Dispatch.ProcessURL, cfg.Pipeline.JobSecret, dispatchTimeout, log)
	default:
		broker, err = newBroker(cfg.Dispatch.Broker, jobQueue)
		if err != nil {
			return nil, err
		}
		dispatcher = queue.NewDispatcher(broker)
	}

	// ---- Notifier ----
	var notifier adapter.Notifier = tele.NoopNotifier{}
	if cfg.Notify.TelegramToken != "" {
		n, err := tele.NewNotifier(cfg.Notify.TelegramToken, cfg.Notify.ChatID, log)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		notifier = n
	}

	a.Jobs = usecase.NewOfferJobUseCase(jobs, a.Pipeline, dispatcher, notifier, cfg.Pipeline.JobSecret, log)

	if broker != nil {
		a.pool = worker.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, log)
		a.consumer = queue.NewConsumer(broker, a.pool, JobHandler(a.Jobs, cfg.Pipeline.JobSecret), queue.ConsumerConfig{
			MaxAttempts:   cfg.Dispatch.MaxAttempts,
			BaseBackoff:   cfg.Dispatch.BaseBackoff,
			MaxBackoff:    cfg.Dispatch.MaxBackoff,
			SweepInterval: cfg.Dispatch.SweepInterval,
			PopTimeout:    cfg.Dispatch.PopTimeout,
		}, log)
	}

	// ---- HTTP ----
	var limiter api.RateLimiter
	if rc != nil {
		limiter = red.NewRateLimiter(rc)
	}
	server := api.NewServer(a.Jobs, a.Pipeline, limiter, healthChecks(jobs, rc, broker, a.Provider, cfg), api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SubmitLimit:    cfg.Server.SubmitLimit,
		SubmitWindow:   cfg.Server.SubmitWindow,
		Version:        cfg.Server.Version,
		Environment:    cfg.Server.Environment,
		KeyFn:          red.SubmitKey,
	}, log)
	a.router = server.Router()
	return a, nil
}

// NewProvider selects the generation backend named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.AIConfig, log *zerolog.Logger) (adapter.GenerationProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, 0, log)
	case "gemini":
		return aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, "", cfg.GeminiModel)
	case "offline":
		return aiAdapters.NewOfflineAdapter(), nil
	case "multi":
		byProvider := map[string]adapter.GenerationProvider{}
		def := ""
		if cfg.OpenAIKey != "" {
			p, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, 0, log)
			if err != nil {
				return nil, err
			}
			byProvider["openai"] = p
			def = "openai"
		}
		if cfg.GeminiKey != "" {
			p, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, "", cfg.GeminiModel)
			if err != nil {
				return nil, err
			}
			byProvider["gemini"] = p
			if def == "" {
				def = "gemini"
			}
		}
		if len(byProvider) == 0 {
			return nil, errors.New("ai.provider multi needs at least one of openai_key or gemini_key")
		}
		return aiAdapters.NewMultiAdapter(def, byProvider, nil), nil
	default:
		return nil, fmt.Errorf("ai.provider %q is not supported", cfg.Provider)
	}
}

// StageFlags maps configuration onto the pipeline switches.
func StageFlags(p config.PipelineConfig) usecase.PipelineConfig {
	return usecase.PipelineConfig{
		Ontology:  p.UseOntology,
		Search:    p.UseSearch,
		FewShot:   p.UseFewShot,
		TwoPass:   p.UseTwoPass,
		Validator: p.UseValidator,
		Analyzer:  p.UseAnalyzer,
		Learning:  p.UseLearning,
	}
}

func newBroker(kind string, jobQueue *red.JobQueue) (queue.Broker, error) {
	switch kind {
	case "memory":
		return queue.NewMemoryBroker(), nil
	case "redis":
		if jobQueue == nil {
			return nil, errors.New("redis broker needs redis.url")
		}
		return jobQueue, nil
	default:
		return nil, fmt.Errorf("dispatch.broker %q is not supported", kind)
	}
}

// JobHandler runs one queued job. Outcomes that a retry cannot change are
// marked permanent.
func JobHandler(jobs usecase.OfferJobUseCase, secret string) queue.Handler {
	return func(ctx context.Context, jobID string) error {
		_, err := jobs.Process(ctx, secret, jobID)
		if err == nil {
			return nil
		}
		var failed *usecase.JobFailedError
		switch {
		case errors.As(err, &failed),
			errors.Is(err, domain.ErrNotFound),
			errors.Is(err, domain.ErrUnauthorized),
			errors.Is(err, domain.ErrInvalidArgument):
			return queue.Permanent(err)
		}
		return err
	}
}

func healthChecks(jobs repository.OfferJobRepository, rc red.RedisClient, broker queue.Broker, provider adapter.GenerationProvider, cfg *config.Config) map[string]api.Check {
	checks := map[string]api.Check{
		"database":   func(ctx context.Context) bool { return jobs.Ping(ctx) == nil },
		"generation": func(context.Context) bool { return provider != nil },
		"jobSecret":  func(context.Context) bool { return cfg.Pipeline.JobSecret != "" },
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) bool { return rc.Ping(ctx) == nil }
	}
	if broker != nil {
		checks["queue"] = func(ctx context.Context) bool { return broker.Ping(ctx) == nil }
	}
	return checks
}

func (a *App) Handler() http.Handler { return a.router }

// Run serves HTTP and consumes the queue until ctx is done, then drains.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.pgPool != nil {
		go pg.ReportPoolStats(ctx, a.pgPool, poolStatInterval)
	}

	consumerDone := make(chan struct{})
	if a.consumer != nil {
		// In-flight jobs finish on shutdown; Stop waits for them.
		a.pool.Start(context.WithoutCancel(ctx))
		go func() {
			defer close(consumerDone)
			if err := a.consumer.Run(ctx); err != nil {
				a.log.Error().Err(err).Msg("queue consumer stopped")
				cancel()
			}
		}()
	} else {
		close(consumerDone)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("env", a.cfg.Server.Environment).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	a.log.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("http shutdown")
	}
	<-consumerDone
	if a.pool != nil {
		a.pool.Stop()
	}
	return runErr
}

// Close releases connections. Safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
	a.closers = nil
}
