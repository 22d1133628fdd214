package ports

import (
	"context"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// HeaderOracle is the external AI classifier that maps a raw header to a
// canonical business label. Unavailability (network failure, timeout, open
// circuit, missing credentials) is reported as an
// domain.ErrOracleUnavailable-kind error; callers degrade, never crash.
type HeaderOracle interface {
	Enhance(ctx context.Context, rawHeader string, octx domain.OracleContext) (domain.Enhancement, error)
}

// PatternStoreRepository persists the pattern store. Load returns an empty
// store when none exists yet and a domain.ErrCorruptStore-kind error when
// the stored payload violates the schema.
type PatternStoreRepository interface {
	Load(ctx context.Context) (*domain.PatternStore, error)
	Save(ctx context.Context, store *domain.PatternStore) error
}

// SnapshotSource materializes a document file into sheet snapshots.
type SnapshotSource interface {
	LoadDocument(ctx context.Context, path string) (*domain.DocumentSnapshot, error)
}

// TrainingQueue transports training jobs between the API and workers.
type TrainingQueue interface {
	PublishTrainingJob(ctx context.Context, job domain.TrainingJob) error
	SubscribeTrainingJobs(ctx context.Context, handler func(context.Context, domain.TrainingJob) error) error
}
