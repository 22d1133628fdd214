package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/fill-pattern-engine/internal/config"
	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/ports"
	"github.com/kirillkom/fill-pattern-engine/internal/core/usecase"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/repository/patternfile"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source/pairs"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source/snapshotjson"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source/workbookxlsx"
	"github.com/kirillkom/fill-pattern-engine/internal/observability/logging"
)

func trainCmd() *cobra.Command {
	var (
		dataDir     string
		storePath   string
		beforeGlob  string
		scoringPath string
		withOracle  bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Learn fill patterns from before/after snapshot pairs",
		Long: `Scans a directory for before/after document pairs, folds every
aligned column into the pattern store, and writes the store back. Files
pair up when their names share a stem and carry opposite side markers,
e.g. rates_before.json / rates_after.json.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd.Context(), dataDir, storePath, beforeGlob, scoringPath, withOracle)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", ".", "Directory scanned for snapshot pairs")
	cmd.Flags().StringVar(&storePath, "store", "./data/patterns.json", "Pattern store file")
	cmd.Flags().StringVar(&beforeGlob, "before-glob", pairs.DefaultBeforeGlob, "Doublestar glob selecting candidate documents")
	cmd.Flags().StringVar(&scoringPath, "scoring", "", "Scoring config YAML (built-in defaults when empty)")
	cmd.Flags().BoolVar(&withOracle, "oracle", false, "Verify headers through the configured AI oracle")
	return cmd
}

func runTrain(ctx context.Context, dataDir, storePath, beforeGlob, scoringPath string, withOracle bool) error {
	logger := logging.NewTextLogger(logLevel)

	scoring, vocabulary, err := config.LoadScoring(scoringPath)
	if err != nil {
		return err
	}

	report, err := pairs.Discover(dataDir, beforeGlob)
	if err != nil {
		return err
	}
	for _, stray := range report.UnpairedBefore {
		logger.Warn("unpaired before-side file", "path", stray)
	}
	for _, stray := range report.UnpairedAfter {
		logger.Warn("unpaired after-side file", "path", stray)
	}
	if len(report.Pairs) == 0 {
		return fmt.Errorf("no before/after pairs found under %s", dataDir)
	}

	resolver := source.NewResolver(snapshotjson.New(), workbookxlsx.New())
	trainingPairs := make([]domain.TrainingPair, 0, len(report.Pairs))
	for _, pair := range report.Pairs {
		before, err := resolver.LoadDocument(ctx, pair.BeforePath)
		if err != nil {
			return fmt.Errorf("load %s: %w", pair.BeforePath, err)
		}
		after, err := resolver.LoadDocument(ctx, pair.AfterPath)
		if err != nil {
			return fmt.Errorf("load %s: %w", pair.AfterPath, err)
		}
		trainingPairs = append(trainingPairs, domain.TrainingPair{
			Key:    pair.Key,
			Before: before,
			After:  after,
		})
	}

	var oracle ports.HeaderOracle
	if withOracle {
		cfg := config.Load()
		executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
		oracle = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
			RequestTimeout: time.Duration(cfg.OracleTimeoutSeconds) * time.Second,
			Executor:       executor,
		})
	}

	repo, err := patternfile.New(storePath)
	if err != nil {
		return err
	}
	store, err := repo.Load(ctx)
	if err != nil {
		return err
	}

	trainer := usecase.NewTrainUseCase(oracle, vocabulary, scoring, logger)
	summary, err := trainer.Train(ctx, store, trainingPairs)
	if err != nil {
		return err
	}
	if err := repo.Save(ctx, store); err != nil {
		return err
	}

	fmt.Printf("trained on %d pair(s): %d sheet(s), %d column(s), %d fillable\n",
		summary.PairsProcessed, summary.SheetsTouched, summary.ColumnsLearned, summary.FillableColumns)
	for _, warning := range summary.Warnings {
		logger.Warn("training warning", "pair", warning.PairKey, "sheet", warning.Sheet, "reason", warning.Reason)
	}
	if summary.OracleDegraded {
		logger.Warn("oracle degraded during the run, offline verification used")
	}
	fmt.Printf("store %s now at version %d\n", storePath, store.Version)
	return nil
}
