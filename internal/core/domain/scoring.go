package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FillSignalWeights blends the fill-signal features into one fillability
// score. Weights are relative; they do not need to sum to 1.
type FillSignalWeights struct {
	MostlyEmptyBefore float64 `json:"mostly_empty_before"`
	DiversityIncrease float64 `json:"diversity_increase"`
	BecameStructured  float64 `json:"became_structured"`
}

// TierScores are the base scores of the four candidate-generation tiers.
type TierScores struct {
	Exact      float64 `json:"exact"`
	Canonical  float64 `json:"canonical"`
	Fuzzy      float64 `json:"fuzzy"`
	Structural float64 `json:"structural"`
}

// VerificationConfidences are assigned by the offline vocabulary verifier
// depending on how a header matched the controlled vocabulary.
type VerificationConfidences struct {
	Exact    float64 `json:"exact"`
	Variant  float64 `json:"variant"`
	Fuzzy    float64 `json:"fuzzy"`
	Fallback float64 `json:"fallback"`
}

// ScoringConfig carries every threshold and weight used by the fingerprinter,
// the pattern store, the matcher and the decision policy. All knobs are
// explicit so no scoring behavior hides behind literals.
type ScoringConfig struct {
	FillWeights       FillSignalWeights
	FillableThreshold float64
	DecisionThreshold float64

	Tiers           TierScores
	FuzzyFloor      float64
	StructuralFloor float64
	NoiseFloor      float64

	AffixLength int
	AffixTopK   int

	// A value set counts as structured when one value type dominates at
	// StructuredTypeRatio or a single affix covers StructuredAffixCoverage
	// of the non-empty values.
	StructuredTypeRatio     float64
	StructuredAffixCoverage float64

	Verification VerificationConfidences
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		FillWeights: FillSignalWeights{
			MostlyEmptyBefore: 0.5,
			DiversityIncrease: 0.3,
			BecameStructured:  0.2,
		},
		FillableThreshold: 0.5,
		DecisionThreshold: 0.7,

		Tiers: TierScores{
			Exact:      0.95,
			Canonical:  0.9,
			Fuzzy:      0.8,
			Structural: 0.5,
		},
		FuzzyFloor:      0.6,
		StructuralFloor: 0.7,
		NoiseFloor:      0.3,

		AffixLength: 2,
		AffixTopK:   5,

		StructuredTypeRatio:     0.7,
		StructuredAffixCoverage: 0.5,

		Verification: VerificationConfidences{
			Exact:    0.95,
			Variant:  0.9,
			Fuzzy:    0.6,
			Fallback: 0.3,
		},
	}
}

func (c ScoringConfig) Validate() error {
	unitChecks := []struct {
		name  string
		value float64
	}{
		{"fillable_threshold", c.FillableThreshold},
		{"decision_threshold", c.DecisionThreshold},
		{"tiers.exact", c.Tiers.Exact},
		{"tiers.canonical", c.Tiers.Canonical},
		{"tiers.fuzzy", c.Tiers.Fuzzy},
		{"tiers.structural", c.Tiers.Structural},
		{"fuzzy_floor", c.FuzzyFloor},
		{"structural_floor", c.StructuralFloor},
		{"noise_floor", c.NoiseFloor},
		{"structured_type_ratio", c.StructuredTypeRatio},
		{"structured_affix_coverage", c.StructuredAffixCoverage},
		{"verification.exact", c.Verification.Exact},
		{"verification.variant", c.Verification.Variant},
		{"verification.fuzzy", c.Verification.Fuzzy},
		{"verification.fallback", c.Verification.Fallback},
	}
	for _, check := range unitChecks {
		if check.value < 0 || check.value > 1 {
			return WrapError(ErrInvalidConfig, "validate scoring config",
				fmt.Errorf("%s = %v outside [0,1]", check.name, check.value))
		}
	}

	if c.FillWeights.MostlyEmptyBefore < 0 || c.FillWeights.DiversityIncrease < 0 || c.FillWeights.BecameStructured < 0 {
		return WrapError(ErrInvalidConfig, "validate scoring config",
			errors.New("fill-signal weights must be non-negative"))
	}
	weightSum := c.FillWeights.MostlyEmptyBefore + c.FillWeights.DiversityIncrease + c.FillWeights.BecameStructured
	if weightSum <= 0 {
		return WrapError(ErrInvalidConfig, "validate scoring config",
			errors.New("fill-signal weights sum to zero"))
	}
	if c.AffixLength <= 0 {
		return WrapError(ErrInvalidConfig, "validate scoring config",
			fmt.Errorf("affix_length = %d, want > 0", c.AffixLength))
	}
	if c.AffixTopK <= 0 {
		return WrapError(ErrInvalidConfig, "validate scoring config",
			fmt.Errorf("affix_top_k = %d, want > 0", c.AffixTopK))
	}
	return nil
}

// FillScore blends a fill signal into [0,1] using the configured weights.
func (c ScoringConfig) FillScore(signal FillSignal) float64 {
	total := c.FillWeights.MostlyEmptyBefore + c.FillWeights.DiversityIncrease + c.FillWeights.BecameStructured
	if total <= 0 {
		return 0
	}
	structured := 0.0
	if signal.BecameStructured {
		structured = 1.0
	}
	score := c.FillWeights.MostlyEmptyBefore*signal.WasMostlyEmptyBefore +
		c.FillWeights.DiversityIncrease*signal.DiversityIncrease +
		c.FillWeights.BecameStructured*structured
	return score / total
}

// Vocabulary is the controlled set of canonical business labels, each with
// the raw header variants known to map onto it.
type Vocabulary map[string][]string

// DefaultVocabulary ships the label set the offline verifier starts from.
// Deployments extend or replace it through the scoring configuration file.
func DefaultVocabulary() Vocabulary {
	vocab := Vocabulary{}
	add := func(label string, variants ...string) {
		vocab[label] = variants
	}
	add("charge_code", "code", "charge code", "tariff code")
	add("charge_name", "charge", "charge description", "service name")
	add("currency", "curr", "ccy", "currency code")
	add("destination", "dest", "to", "discharge port", "pod")
	add("effective_date", "valid from", "start date", "effective")
	add("expiry_date", "valid to", "end date", "expiration")
	add("max_charge", "max", "maximum", "max amount", "cap")
	add("min_charge", "min", "minimum", "min amount")
	add("origin", "from", "load port", "pol")
	add("rate", "price", "amount", "unit rate", "tariff")
	add("remarks", "notes", "comment", "comments", "remark")
	add("unit", "uom", "per", "basis", "unit of measure")
	return vocab
}

// NormalizeHeader folds case and whitespace so header comparisons are
// stable across sources. Underscores and dashes count as separators.
func NormalizeHeader(raw string) string {
	replaced := strings.NewReplacer("_", " ", "-", " ").Replace(raw)
	return strings.Join(strings.Fields(strings.ToLower(replaced)), " ")
}
