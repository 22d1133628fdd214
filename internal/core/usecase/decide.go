package usecase

import (
	"fmt"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// methodNone marks results where no stored column qualified at any tier.
const methodNone = "none"

// Decide converts a ranked candidate list into the final verdict for one
// column. The top candidate wins; an empty list is the normal unknown
// outcome, not an error. Stateless and re-entrant.
func Decide(candidates []domain.Candidate, threshold, noiseFloor float64) (domain.IdentificationResult, error) {
	if threshold < 0 || threshold > 1 {
		return domain.IdentificationResult{}, domain.WrapError(domain.ErrInvalidConfig, "decide column",
			fmt.Errorf("threshold %v outside [0,1]", threshold))
	}

	result := domain.IdentificationResult{
		Decision:            domain.DecisionUnknown,
		Method:              methodNone,
		ContributingSources: contributingSources(candidates, noiseFloor),
	}
	if len(candidates) == 0 {
		return result, nil
	}

	top := candidates[0]
	result.MatchedLabel = top.Label
	result.MatchedSheet = top.SheetKey
	result.MatchedColumn = top.ColumnKey
	result.Confidence = top.Score
	result.Method = string(top.Basis)
	if top.OracleAssisted {
		result.Method += "+ai"
	}
	if top.Score >= threshold {
		result.Decision = domain.DecisionFill
	}
	return result, nil
}

// contributingSources counts distinct sheets proposing a candidate above
// the noise floor. Attribution only; it never affects scores.
func contributingSources(candidates []domain.Candidate, noiseFloor float64) int {
	sheets := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if candidate.Score >= noiseFloor {
			sheets[candidate.SheetKey] = struct{}{}
		}
	}
	return len(sheets)
}
