package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/ports"
)

// IdentifyUseCase labels the columns of an unseen sheet against a trained
// pattern store. The store is a read-only borrow for the duration of the
// run; nothing here mutates it.
type IdentifyUseCase struct {
	oracle ports.HeaderOracle
	cfg    domain.ScoringConfig
	logger *slog.Logger
}

// NewIdentifyUseCase wires the identifier. A nil oracle disables the
// canonical-label tier; all other tiers work unchanged.
func NewIdentifyUseCase(oracle ports.HeaderOracle, cfg domain.ScoringConfig, logger *slog.Logger) *IdentifyUseCase {
	return &IdentifyUseCase{oracle: oracle, cfg: cfg, logger: logger}
}

// IdentifySheet scores every value column of the sheet against the whole
// store and decides fill/unknown per column at the given threshold. Oracle
// failure mid-run downgrades the remaining columns to offline tiers and is
// reported once in the result, never as an error.
func (uc *IdentifyUseCase) IdentifySheet(ctx context.Context, store *domain.PatternStore, sheet domain.SheetSnapshot, threshold float64) (domain.SheetIdentification, error) {
	if threshold < 0 || threshold > 1 {
		return domain.SheetIdentification{}, domain.WrapError(domain.ErrInvalidConfig, "identify sheet",
			fmt.Errorf("threshold %v outside [0,1]", threshold))
	}

	out := domain.SheetIdentification{SheetName: sheet.Name, Threshold: threshold}
	oracleDegraded := false

	for i, columnKey := range sheet.ValueColumns() {
		header := sheet.Header(columnKey)
		values := sheet.ColumnValues(columnKey)
		target := Fingerprint(values, values, uc.cfg)

		var enhancement *domain.Enhancement
		if uc.oracle != nil && !oracleDegraded && strings.TrimSpace(header) != "" {
			enhanced, err := uc.oracle.Enhance(ctx, header, domain.OracleContext{
				SheetName:      sheet.Name,
				SampleValues:   sampleColumnValues(sheet, columnKey, oracleSampleLimit),
				SiblingHeaders: sheet.SiblingHeaders(columnKey),
			})
			switch {
			case err != nil:
				oracleDegraded = true
				uc.logger.Warn("oracle unavailable, canonical tier disabled for this run", "error", err)
			case strings.TrimSpace(enhanced.Label) != "":
				enhanced.Confidence = clamp01(enhanced.Confidence)
				enhancement = &enhanced
			}
		}

		candidates := collectCandidates(store, header, target, enhancement, uc.cfg)
		result, err := Decide(candidates, threshold, uc.cfg.NoiseFloor)
		if err != nil {
			return domain.SheetIdentification{}, err
		}
		result.Position = i + 1
		result.SourceHeader = header
		if result.Decision == domain.DecisionFill {
			out.FillColumns++
		}
		out.Results = append(out.Results, result)
	}

	out.OracleDegraded = oracleDegraded
	uc.logger.Info("sheet identified",
		"sheet", sheet.Name,
		"columns", len(out.Results),
		"fill", out.FillColumns,
		"threshold", threshold,
		"oracle_degraded", oracleDegraded,
	)
	return out, nil
}
