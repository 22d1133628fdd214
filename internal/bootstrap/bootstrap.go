package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/fill-pattern-engine/internal/config"
	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/ports"
	"github.com/kirillkom/fill-pattern-engine/internal/core/usecase"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/repository/patternfile"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source/snapshotjson"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source/workbookxlsx"
)

// App holds everything a service binary needs: configuration, the wired
// ports, and the shared scoring knobs.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Store      ports.PatternStoreRepository
	Queue      ports.TrainingQueue
	Source     ports.SnapshotSource
	Trainer    ports.PatternTrainer
	Identifier ports.ColumnIdentifier

	Scoring    domain.ScoringConfig
	Vocabulary domain.Vocabulary

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scoring, vocabulary, err := config.LoadScoring(cfg.ScoringConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load scoring config: %w", err)
	}

	var closers []func()

	var store ports.PatternStoreRepository
	switch cfg.StoreBackend {
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewStoreRepository(db, cfg.StoreName)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = repo
		closers = append(closers, func() { _ = db.Close() })
	case "file", "":
		repo, err := patternfile.New(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("init pattern file store: %w", err)
		}
		store = repo
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		for _, closeOne := range closers {
			closeOne()
		}
		return nil, fmt.Errorf("init training queue: %w", err)
	}
	closers = append(closers, queue.Close)

	var oracle ports.HeaderOracle
	switch cfg.OracleProvider {
	case "ollama":
		oracle = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
			RequestTimeout: time.Duration(cfg.OracleTimeoutSeconds) * time.Second,
			Executor:       executor,
		})
	case "off", "none", "":
		// Offline verification only; the vocabulary tier still runs.
		oracle = nil
	default:
		for _, closeOne := range closers {
			closeOne()
		}
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.OracleProvider)
	}

	documentSource := source.NewResolver(snapshotjson.New(), workbookxlsx.New())

	trainer := usecase.NewTrainUseCase(oracle, vocabulary, scoring, logger)
	identifier := usecase.NewIdentifyUseCase(oracle, scoring, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Store:      store,
		Queue:      queue,
		Source:     documentSource,
		Trainer:    trainer,
		Identifier: identifier,

		Scoring:    scoring,
		Vocabulary: vocabulary,

		closeFn: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
