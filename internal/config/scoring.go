package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// ScoringFile is the YAML form of the scoring configuration plus the
// controlled vocabulary. Files are overlays: the struct is pre-populated
// with defaults before parsing, so absent keys keep their default values
// and vocabulary entries merge over the shipped label set.
type ScoringFile struct {
	FillWeights       fileWeights      `yaml:"fill_weights"`
	FillableThreshold float64          `yaml:"fillable_threshold"`
	DecisionThreshold float64          `yaml:"decision_threshold"`
	Tiers             fileTiers        `yaml:"tiers"`
	FuzzyFloor        float64          `yaml:"fuzzy_floor"`
	StructuralFloor   float64          `yaml:"structural_floor"`
	NoiseFloor        float64          `yaml:"noise_floor"`
	AffixLength       int              `yaml:"affix_length"`
	AffixTopK         int              `yaml:"affix_top_k"`
	TypeRatio         float64          `yaml:"structured_type_ratio"`
	AffixCoverage     float64          `yaml:"structured_affix_coverage"`
	Verification      fileVerification `yaml:"verification"`

	Vocabulary domain.Vocabulary `yaml:"vocabulary"`
}

type fileWeights struct {
	MostlyEmptyBefore float64 `yaml:"mostly_empty_before"`
	DiversityIncrease float64 `yaml:"diversity_increase"`
	BecameStructured  float64 `yaml:"became_structured"`
}

type fileTiers struct {
	Exact      float64 `yaml:"exact"`
	Canonical  float64 `yaml:"canonical"`
	Fuzzy      float64 `yaml:"fuzzy"`
	Structural float64 `yaml:"structural"`
}

type fileVerification struct {
	Exact    float64 `yaml:"exact"`
	Variant  float64 `yaml:"variant"`
	Fuzzy    float64 `yaml:"fuzzy"`
	Fallback float64 `yaml:"fallback"`
}

// LoadScoring returns the scoring configuration and vocabulary, overlaid
// with the YAML file at path when one exists. An empty or missing path
// yields the defaults; a malformed or out-of-range file is an
// invalid-config error, never a silent fallback.
func LoadScoring(path string) (domain.ScoringConfig, domain.Vocabulary, error) {
	file := defaultScoringFile()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// keep defaults
		case err != nil:
			return domain.ScoringConfig{}, nil, fmt.Errorf("read scoring config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &file); err != nil {
				return domain.ScoringConfig{}, nil, domain.WrapError(domain.ErrInvalidConfig, "parse scoring config", err)
			}
		}
	}

	cfg := file.toDomain()
	if err := cfg.Validate(); err != nil {
		return domain.ScoringConfig{}, nil, err
	}
	return cfg, file.Vocabulary, nil
}

func defaultScoringFile() ScoringFile {
	d := domain.DefaultScoringConfig()
	return ScoringFile{
		FillWeights: fileWeights{
			MostlyEmptyBefore: d.FillWeights.MostlyEmptyBefore,
			DiversityIncrease: d.FillWeights.DiversityIncrease,
			BecameStructured:  d.FillWeights.BecameStructured,
		},
		FillableThreshold: d.FillableThreshold,
		DecisionThreshold: d.DecisionThreshold,
		Tiers: fileTiers{
			Exact:      d.Tiers.Exact,
			Canonical:  d.Tiers.Canonical,
			Fuzzy:      d.Tiers.Fuzzy,
			Structural: d.Tiers.Structural,
		},
		FuzzyFloor:      d.FuzzyFloor,
		StructuralFloor: d.StructuralFloor,
		NoiseFloor:      d.NoiseFloor,
		AffixLength:     d.AffixLength,
		AffixTopK:       d.AffixTopK,
		TypeRatio:       d.StructuredTypeRatio,
		AffixCoverage:   d.StructuredAffixCoverage,
		Verification: fileVerification{
			Exact:    d.Verification.Exact,
			Variant:  d.Verification.Variant,
			Fuzzy:    d.Verification.Fuzzy,
			Fallback: d.Verification.Fallback,
		},
		Vocabulary: domain.DefaultVocabulary(),
	}
}

func (f ScoringFile) toDomain() domain.ScoringConfig {
	return domain.ScoringConfig{
		FillWeights: domain.FillSignalWeights{
			MostlyEmptyBefore: f.FillWeights.MostlyEmptyBefore,
			DiversityIncrease: f.FillWeights.DiversityIncrease,
			BecameStructured:  f.FillWeights.BecameStructured,
		},
		FillableThreshold: f.FillableThreshold,
		DecisionThreshold: f.DecisionThreshold,
		Tiers: domain.TierScores{
			Exact:      f.Tiers.Exact,
			Canonical:  f.Tiers.Canonical,
			Fuzzy:      f.Tiers.Fuzzy,
			Structural: f.Tiers.Structural,
		},
		FuzzyFloor:      f.FuzzyFloor,
		StructuralFloor: f.StructuralFloor,
		NoiseFloor:      f.NoiseFloor,
		AffixLength:     f.AffixLength,
		AffixTopK:       f.AffixTopK,

		StructuredTypeRatio:     f.TypeRatio,
		StructuredAffixCoverage: f.AffixCoverage,

		Verification: domain.VerificationConfidences{
			Exact:    f.Verification.Exact,
			Variant:  f.Verification.Variant,
			Fuzzy:    f.Verification.Fuzzy,
			Fallback: f.Verification.Fallback,
		},
	}
}
