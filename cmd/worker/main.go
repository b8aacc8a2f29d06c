// Package main provides the entry point for the FAQ learning worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thebtf/faqlearn/internal/audit"
	"github.com/thebtf/faqlearn/internal/config"
	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/db/gorm"
	"github.com/thebtf/faqlearn/internal/db/memory"
	"github.com/thebtf/faqlearn/internal/dedup"
	"github.com/thebtf/faqlearn/internal/feedback"
	"github.com/thebtf/faqlearn/internal/generative"
	"github.com/thebtf/faqlearn/internal/generator"
	"github.com/thebtf/faqlearn/internal/jobs"
	"github.com/thebtf/faqlearn/internal/kb"
	"github.com/thebtf/faqlearn/internal/logging"
	"github.com/thebtf/faqlearn/internal/normalizer"
	"github.com/thebtf/faqlearn/internal/pattern"
	"github.com/thebtf/faqlearn/internal/pipeline"
	"github.com/thebtf/faqlearn/internal/realtime"
	"github.com/thebtf/faqlearn/internal/review"
	"github.com/thebtf/faqlearn/internal/scoring"
	"github.com/thebtf/faqlearn/internal/settings"
	"github.com/thebtf/faqlearn/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create logger")
	}
	log.Logger = logger

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Worker failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("Starting faqlearn worker")

	repos, closeRepos, err := openRepositories(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepos()

	g, gctx := errgroup.WithContext(ctx)

	sp, err := openSettings(gctx, cfg, repos, g, logger)
	if err != nil {
		return err
	}

	provider, err := openProvider(cfg, logger)
	if err != nil {
		return err
	}

	recorder := audit.NewRecorder(repos.Audit, logger)
	scorer := scoring.NewCalculator(sp)
	recognizer := pattern.NewRecognizer(repos.Patterns, pattern.DefaultConfig(), logger)
	detector := dedup.NewDetector(repos.Faqs, provider, sp, logger)
	gen := generator.New(repos.Faqs, detector, scorer, provider, sp, logger)
	pipe := pipeline.New(normalizer.New(), recognizer, gen, repos.Interactions, pipeline.NewStoreSource(repos.Interactions), logger)

	queue := review.NewQueue(repos.Faqs, nil, recorder, sp, logger)
	rt := realtime.NewProcessor(pipe, sp, logger)
	defer rt.Stop()

	orch, err := jobs.New(jobs.Deps{
		Pipeline:     pipe,
		Review:       queue,
		KB:           kb.NewSyncer(repos.Faqs, repos.KB, logger),
		Recognizer:   recognizer,
		Interactions: repos.Interactions,
		Patterns:     repos.Patterns,
		Audit:        repos.Audit,
	}, sp, recorder, logger, jobs.WithLocation(cfg.Location()))
	if err != nil {
		return fmt.Errorf("build job table: %w", err)
	}
	orch.Start()

	svc := worker.NewService(Version, cfg, worker.Deps{
		Review:       queue,
		Feedback:     feedback.NewProcessor(repos.Faqs, scorer, logger),
		Realtime:     rt,
		Jobs:         orch,
		Audit:        recorder,
		Interactions: repos.Interactions,
		Database:     repos.Health,
	}, logger)

	g.Go(svc.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return orch.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Worker shutdown complete")
	return nil
}

// openRepositories connects to PostgreSQL when a DSN is configured and falls back to memory.
func openRepositories(cfg *config.Config, logger zerolog.Logger) (*db.Repositories, func(), error) {
	if cfg.DatabaseDSN == "" {
		logger.Warn().Msg("No database configured, using in-memory repositories")
		return memory.New(), func() {}, nil
	}

	store, err := gorm.NewStore(gorm.Config{
		DSN:      cfg.DatabaseDSN,
		MaxConns: cfg.MaxConns,
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store.Repositories(), func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Database close error")
		}
	}, nil
}

// openSettings builds the settings loader over the configured backend. The file backend is
// watched for changes until ctx is done.
func openSettings(ctx context.Context, cfg *config.Config, repos *db.Repositories, g *errgroup.Group, logger zerolog.Logger) (settings.Provider, error) {
	var store db.SettingsStore
	var file *settings.FileStore
	switch cfg.SettingsBackend {
	case config.SettingsBackendDB:
		store = repos.Settings
	case config.SettingsBackendFile:
		file = settings.NewFileStore(cfg.SettingsPath)
		store = file
	default:
		store = memory.NewSettingsRepo()
	}

	loader, err := settings.NewLoader(store, logger)
	if err != nil {
		return nil, fmt.Errorf("settings schemas: %w", err)
	}
	if _, err := loader.Load(ctx); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if file != nil {
		g.Go(func() error { return loader.WatchFile(ctx, file) })
	}
	return loader, nil
}

// openProvider returns the Anthropic provider when a key is configured, else the offline one.
func openProvider(cfg *config.Config, logger zerolog.Logger) (generative.Provider, error) {
	if cfg.AnthropicAPIKey == "" {
		logger.Info().Msg("No generative provider configured, using template answers")
		return generative.Static{}, nil
	}

	pc := generative.DefaultAnthropicConfig()
	pc.APIKey = cfg.AnthropicAPIKey
	pc.Model = cfg.Model
	pc.RequestsPerSecond = cfg.ProviderRPS
	pc.MaxConcurrent = cfg.ProviderConcurrent
	pc.MaxTokens = cfg.ProviderMaxTokens
	pc.ContextTokens = cfg.ProviderContextMax
	pc.Timeout = cfg.ProviderTimeout

	p, err := generative.NewAnthropic(pc, logger)
	if err != nil {
		return nil, fmt.Errorf("generative provider: %w", err)
	}
	return p, nil
}
