package usecase

import (
	"math"
	"sort"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// Structural compatibility blends type-distribution closeness with length
// closeness; the gate itself comes from ScoringConfig.StructuralFloor.
const (
	structuralTypeWeight   = 0.6
	structuralLengthWeight = 0.4
)

// collectCandidates scans every stored column and scores it against one
// target header. Each column contributes at most one candidate, on the
// strongest basis it qualifies for: exact beats canonical beats fuzzy beats
// structural. The result is sorted by score, then basis priority, then
// sheet and column key, so equal scores always resolve the same way.
func collectCandidates(store *domain.PatternStore, rawHeader string, target domain.ColumnFingerprint, enhancement *domain.Enhancement, cfg domain.ScoringConfig) []domain.Candidate {
	normalizedTarget := domain.NormalizeHeader(rawHeader)

	var candidates []domain.Candidate
	for _, sheetKey := range store.SheetKeys() {
		record := store.Sheets[sheetKey]
		for _, columnKey := range record.ColumnKeys() {
			candidate, ok := bestTierCandidate(record, columnKey, rawHeader, normalizedTarget, target, enhancement, cfg)
			if !ok {
				continue
			}
			candidate.SheetKey = sheetKey
			candidate.ColumnKey = columnKey
			candidates = append(candidates, candidate)
		}
	}
	sortCandidates(candidates)
	return candidates
}

func bestTierCandidate(record *domain.SheetRecord, columnKey, rawHeader, normalizedTarget string, target domain.ColumnFingerprint, enhancement *domain.Enhancement, cfg domain.ScoringConfig) (domain.Candidate, bool) {
	storedHeader := record.Header(columnKey)
	variants := record.HeaderVariants(columnKey)
	verification, verified := record.Verifications[columnKey]

	candidate := domain.Candidate{StoredHeader: storedHeader, Label: storedHeader}
	if verified {
		candidate.Label = verification.Label
	}

	if normalizedTarget != "" {
		for _, variant := range variants {
			if variant == normalizedTarget {
				candidate.Score = cfg.Tiers.Exact
				candidate.Basis = domain.BasisExact
				return candidate, true
			}
		}
	}

	if enhancement != nil && verified &&
		domain.NormalizeHeader(enhancement.Label) == domain.NormalizeHeader(verification.Label) {
		candidate.Score = enhancement.Confidence * cfg.Tiers.Canonical
		candidate.Basis = domain.BasisCanonical
		candidate.OracleAssisted = true
		return candidate, true
	}

	similarity := HeaderSimilarity(rawHeader, storedHeader)
	for _, variant := range variants {
		if s := HeaderSimilarity(rawHeader, variant); s > similarity {
			similarity = s
		}
	}
	if verified {
		if s := HeaderSimilarity(rawHeader, verification.Label); s > similarity {
			similarity = s
		}
	}
	if similarity >= cfg.FuzzyFloor {
		candidate.Score = similarity * cfg.Tiers.Fuzzy
		candidate.Basis = domain.BasisFuzzy
		return candidate, true
	}

	if compat := structuralCompatibility(target, record.Fingerprints[columnKey]); compat >= cfg.StructuralFloor {
		candidate.Score = compat * cfg.Tiers.Structural
		candidate.Basis = domain.BasisStructural
		return candidate, true
	}
	return domain.Candidate{}, false
}

// structuralCompatibility compares two fingerprints by value shape alone.
// Columns with no observed non-empty values never match structurally.
func structuralCompatibility(a, b domain.ColumnFingerprint) float64 {
	if a.LengthStats.Max == 0 || b.LengthStats.Max == 0 {
		return 0
	}
	closeness := 1 - totalVariation(a.TypeDistribution, b.TypeDistribution)

	lengthSimilarity := 0.0
	if a.LengthStats.Mean > 0 && b.LengthStats.Mean > 0 {
		lengthSimilarity = math.Min(a.LengthStats.Mean, b.LengthStats.Mean) /
			math.Max(a.LengthStats.Mean, b.LengthStats.Mean)
	}
	return structuralTypeWeight*closeness + structuralLengthWeight*lengthSimilarity
}

func totalVariation(a, b domain.TypeDistribution) float64 {
	sum := math.Abs(a.Numeric-b.Numeric) +
		math.Abs(a.Alphabetic-b.Alphabetic) +
		math.Abs(a.Mixed-b.Mixed) +
		math.Abs(a.Empty-b.Empty)
	return sum / 2
}

func sortCandidates(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Basis.Priority() != candidates[j].Basis.Priority() {
			return candidates[i].Basis.Priority() < candidates[j].Basis.Priority()
		}
		if candidates[i].SheetKey != candidates[j].SheetKey {
			return candidates[i].SheetKey < candidates[j].SheetKey
		}
		return candidates[i].ColumnKey < candidates[j].ColumnKey
	})
}
