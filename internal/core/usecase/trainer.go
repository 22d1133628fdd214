package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/ports"
)

const oracleSampleLimit = 5

// TrainUseCase folds before/after snapshot pairs into a pattern store.
// The oracle is optional; when it fails mid-run the remaining columns fall
// back to offline verification and the degradation is reported once.
type TrainUseCase struct {
	oracle ports.HeaderOracle
	vocab  domain.Vocabulary
	cfg    domain.ScoringConfig
	logger *slog.Logger
}

// NewTrainUseCase wires the trainer. A nil oracle disables enhancement
// entirely; verification then starts at the offline vocabulary.
func NewTrainUseCase(oracle ports.HeaderOracle, vocab domain.Vocabulary, cfg domain.ScoringConfig, logger *slog.Logger) *TrainUseCase {
	return &TrainUseCase{oracle: oracle, vocab: vocab, cfg: cfg, logger: logger}
}

// Train merges every aligned column of every pair into the store. Sheet
// pairs that cannot be aligned become warnings, never failures. The store
// version is bumped once iff anything was merged.
func (uc *TrainUseCase) Train(ctx context.Context, store *domain.PatternStore, pairs []domain.TrainingPair) (domain.TrainingSummary, error) {
	var summary domain.TrainingSummary
	touched := make(map[string]struct{})
	oracleDegraded := false
	merged := 0

	for _, pair := range pairs {
		if pair.Before == nil || pair.After == nil {
			summary.Warnings = append(summary.Warnings, domain.TrainingWarning{
				PairKey: pair.Key,
				Reason:  "missing before or after snapshot",
			})
			continue
		}
		summary.PairsProcessed++

		for _, afterSheet := range pair.After.Sheets {
			sheetKey := strings.TrimSpace(afterSheet.Name)
			if sheetKey == "" {
				summary.Warnings = append(summary.Warnings, domain.TrainingWarning{
					PairKey: pair.Key,
					Reason:  "unnamed sheet in after snapshot",
				})
				continue
			}
			beforeSheet, ok := pair.Before.Sheet(afterSheet.Name)
			if !ok {
				summary.Warnings = append(summary.Warnings, domain.TrainingWarning{
					PairKey: pair.Key,
					Sheet:   afterSheet.Name,
					Reason:  "sheet missing from before snapshot",
				})
				uc.logger.Warn("skipping incompatible sheet pair",
					"pair", pair.Key, "sheet", afterSheet.Name, "kind", domain.ErrIncompatiblePair.Error())
				continue
			}

			var onlyAfter []string
			for _, columnKey := range afterSheet.ValueColumns() {
				// Columns match positionally; one the before side never had
				// carries no before/after evidence, only an absent column.
				if !beforeSheet.HasColumn(columnKey) {
					onlyAfter = append(onlyAfter, columnKey)
					continue
				}
				header := afterSheet.Header(columnKey)
				fingerprint := Fingerprint(beforeSheet.ColumnValues(columnKey), afterSheet.ColumnValues(columnKey), uc.cfg)
				verification := uc.verifyColumn(ctx, store, afterSheet, columnKey, header, &oracleDegraded)
				if err := store.Merge(sheetKey, columnKey, header, fingerprint, &verification, uc.cfg); err != nil {
					return summary, err
				}
				merged++
				summary.ColumnsLearned++
			}
			if len(onlyAfter) > 0 {
				summary.Warnings = append(summary.Warnings, domain.TrainingWarning{
					PairKey: pair.Key,
					Sheet:   afterSheet.Name,
					Reason:  "columns missing from before sheet: " + strings.Join(onlyAfter, " "),
				})
			}
			touched[sheetKey] = struct{}{}
		}

		for _, beforeSheet := range pair.Before.Sheets {
			if _, ok := pair.After.Sheet(beforeSheet.Name); !ok {
				summary.Warnings = append(summary.Warnings, domain.TrainingWarning{
					PairKey: pair.Key,
					Sheet:   beforeSheet.Name,
					Reason:  "sheet missing from after snapshot",
				})
			}
		}
	}

	if merged > 0 {
		store.BumpVersion()
	}
	summary.SheetsTouched = len(touched)
	for sheetKey := range touched {
		if record, ok := store.Sheets[sheetKey]; ok {
			summary.FillableColumns += len(record.FillableColumns)
		}
	}
	summary.OracleDegraded = oracleDegraded

	uc.logger.Info("training run complete",
		"pairs", summary.PairsProcessed,
		"sheets", summary.SheetsTouched,
		"columns", summary.ColumnsLearned,
		"fillable", summary.FillableColumns,
		"warnings", len(summary.Warnings),
		"store_version", store.Version,
	)
	return summary, nil
}

// verifyColumn walks the verification ladder: a confident label already
// stored for the same header anywhere in the store, then the oracle, then
// the offline vocabulary.
func (uc *TrainUseCase) verifyColumn(ctx context.Context, store *domain.PatternStore, sheet domain.SheetSnapshot, columnKey, rawHeader string, oracleDegraded *bool) domain.VerifiedLabel {
	if verification, ok := historicalVerification(store, rawHeader, uc.cfg); ok {
		return verification
	}

	if uc.oracle != nil && !*oracleDegraded {
		enhancement, err := uc.oracle.Enhance(ctx, rawHeader, domain.OracleContext{
			SheetName:      sheet.Name,
			SampleValues:   sampleColumnValues(sheet, columnKey, oracleSampleLimit),
			SiblingHeaders: sheet.SiblingHeaders(columnKey),
		})
		switch {
		case err != nil:
			*oracleDegraded = true
			uc.logger.Warn("oracle unavailable, verifying offline for the rest of the run", "error", err)
		case strings.TrimSpace(enhancement.Label) != "":
			return domain.VerifiedLabel{
				Label:      enhancement.Label,
				Confidence: clamp01(enhancement.Confidence),
				Method:     domain.MethodAIOracle,
			}
		}
	}

	return verifyHeader(rawHeader, uc.vocab, uc.cfg)
}

// historicalVerification reuses the label of any stored column whose raw
// header normalizes to the same form, provided it was verified at least at
// variant confidence. Records are scanned in key order, so the answer is
// stable.
func historicalVerification(store *domain.PatternStore, rawHeader string, cfg domain.ScoringConfig) (domain.VerifiedLabel, bool) {
	normalized := domain.NormalizeHeader(rawHeader)
	if normalized == "" {
		return domain.VerifiedLabel{}, false
	}
	for _, record := range store.Records() {
		for _, columnKey := range record.ColumnKeys() {
			verification, ok := record.Verifications[columnKey]
			if !ok || verification.Confidence < cfg.Verification.Variant {
				continue
			}
			if domain.NormalizeHeader(record.Header(columnKey)) != normalized {
				continue
			}
			return domain.VerifiedLabel{
				Label:      verification.Label,
				Confidence: verification.Confidence,
				Method:     domain.MethodHistorical,
			}, true
		}
	}
	return domain.VerifiedLabel{}, false
}

func sampleColumnValues(sheet domain.SheetSnapshot, columnKey string, limit int) []string {
	values := make([]string, 0, limit)
	for _, value := range sheet.ColumnValues(columnKey) {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
		if len(values) == limit {
			break
		}
	}
	return values
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
