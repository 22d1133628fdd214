package ports

import (
	"context"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// PatternTrainer is the inbound contract for learning from before/after
// pairs. The caller owns the store handle: loaded before the call, saved
// after it, never mutated concurrently.
type PatternTrainer interface {
	Train(ctx context.Context, store *domain.PatternStore, pairs []domain.TrainingPair) (domain.TrainingSummary, error)
}

// ColumnIdentifier is the inbound contract for identifying fillable
// columns of one sheet against a read-only store view.
type ColumnIdentifier interface {
	IdentifySheet(ctx context.Context, store *domain.PatternStore, sheet domain.SheetSnapshot, threshold float64) (domain.SheetIdentification, error)
}
