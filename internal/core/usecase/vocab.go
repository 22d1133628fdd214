package usecase

import (
	"sort"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// verifyHeader resolves a raw header to a canonical label without the
// oracle. Exact canonical term, then a listed variant, then the closest
// fuzzy hit over the whole vocabulary, then a low-confidence fallback to
// the normalized header itself. Vocabulary iteration is sorted so equal
// similarities always resolve to the same label.
func verifyHeader(rawHeader string, vocab domain.Vocabulary, cfg domain.ScoringConfig) domain.VerifiedLabel {
	normalized := domain.NormalizeHeader(rawHeader)
	confidences := cfg.Verification
	if normalized == "" {
		return domain.VerifiedLabel{Label: rawHeader, Confidence: confidences.Fallback, Method: domain.MethodFallback}
	}

	labels := sortedVocabularyLabels(vocab)
	for _, label := range labels {
		if domain.NormalizeHeader(label) == normalized {
			return domain.VerifiedLabel{Label: label, Confidence: confidences.Exact, Method: domain.MethodExact}
		}
	}

	for _, label := range labels {
		for _, variant := range vocab[label] {
			if domain.NormalizeHeader(variant) == normalized {
				return domain.VerifiedLabel{Label: label, Confidence: confidences.Variant, Method: domain.MethodTemplate}
			}
		}
	}

	bestLabel := ""
	bestSimilarity := 0.0
	for _, label := range labels {
		if s := HeaderSimilarity(rawHeader, label); s > bestSimilarity {
			bestLabel, bestSimilarity = label, s
		}
		for _, variant := range vocab[label] {
			if s := HeaderSimilarity(rawHeader, variant); s > bestSimilarity {
				bestLabel, bestSimilarity = label, s
			}
		}
	}
	if bestLabel != "" && bestSimilarity >= cfg.FuzzyFloor {
		return domain.VerifiedLabel{Label: bestLabel, Confidence: confidences.Fuzzy, Method: domain.MethodFuzzy}
	}

	return domain.VerifiedLabel{Label: normalized, Confidence: confidences.Fallback, Method: domain.MethodFallback}
}

func sortedVocabularyLabels(vocab domain.Vocabulary) []string {
	labels := make([]string, 0, len(vocab))
	for label := range vocab {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
