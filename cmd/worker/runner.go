package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/ports"
	"github.com/kirillkom/fill-pattern-engine/internal/observability/metrics"
)

const trainingTimeout = 5 * time.Minute

// trainingRunner executes one queued training job: load both documents,
// fold the pair into the store, persist. The mutex serializes the
// load-merge-save critical section so concurrent jobs cannot drop each
// other's merges.
type trainingRunner struct {
	store   ports.PatternStoreRepository
	source  ports.SnapshotSource
	trainer ports.PatternTrainer
	metrics *metrics.WorkerMetrics
	logger  *slog.Logger

	mu sync.Mutex
}

func newTrainingRunner(
	store ports.PatternStoreRepository,
	source ports.SnapshotSource,
	trainer ports.PatternTrainer,
	m *metrics.WorkerMetrics,
	logger *slog.Logger,
) *trainingRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &trainingRunner{
		store:   store,
		source:  source,
		trainer: trainer,
		metrics: m,
		logger:  logger,
	}
}

func (r *trainingRunner) handle(ctx context.Context, job domain.TrainingJob) error {
	jobCtx, cancel := context.WithTimeout(ctx, trainingTimeout)
	defer cancel()

	if !job.EnqueuedAt.IsZero() {
		r.metrics.ObserveQueueLag(workerServiceName, time.Since(job.EnqueuedAt))
	}

	r.metrics.StartJob()
	start := time.Now()
	summary, err := r.train(jobCtx, job)
	r.metrics.FinishJob(workerServiceName, time.Since(start), err)

	if err != nil {
		r.logger.Error("training job failed", "job_id", job.ID, "error", err)
		return err
	}

	r.metrics.AddColumnsLearned(workerServiceName, summary.ColumnsLearned)
	r.metrics.AddSheetsSkipped(workerServiceName, len(summary.Warnings))
	r.logger.Info("training job complete",
		"job_id", job.ID,
		"pairs", summary.PairsProcessed,
		"sheets", summary.SheetsTouched,
		"columns", summary.ColumnsLearned,
		"fillable", summary.FillableColumns,
		"warnings", len(summary.Warnings),
		"oracle_degraded", summary.OracleDegraded,
	)
	return nil
}

func (r *trainingRunner) train(ctx context.Context, job domain.TrainingJob) (domain.TrainingSummary, error) {
	before, err := r.source.LoadDocument(ctx, job.BeforePath)
	if err != nil {
		return domain.TrainingSummary{}, fmt.Errorf("load before document: %w", err)
	}
	after, err := r.source.LoadDocument(ctx, job.AfterPath)
	if err != nil {
		return domain.TrainingSummary{}, fmt.Errorf("load after document: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	store, err := r.store.Load(ctx)
	if err != nil {
		return domain.TrainingSummary{}, fmt.Errorf("load pattern store: %w", err)
	}

	pair := domain.TrainingPair{Key: job.ID, Before: before, After: after}
	summary, err := r.trainer.Train(ctx, store, []domain.TrainingPair{pair})
	if err != nil {
		return summary, fmt.Errorf("train on pair: %w", err)
	}

	if err := r.store.Save(ctx, store); err != nil {
		return summary, fmt.Errorf("save pattern store: %w", err)
	}
	return summary, nil
}
