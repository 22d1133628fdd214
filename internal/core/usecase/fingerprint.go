package usecase

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// Fingerprint computes the statistical signature of one column from
// positionally aligned before/after value samples. Sides of unequal length
// are truncated to the common length; if either side is empty the fill
// signal stays neutral and the after side is summarized as-is. Pure and
// deterministic.
func Fingerprint(before, after []string, cfg domain.ScoringConfig) domain.ColumnFingerprint {
	if len(before) > 0 && len(after) > 0 {
		common := min(len(before), len(after))
		before = before[:common]
		after = after[:common]
	}

	fp := domain.ColumnFingerprint{
		TypeDistribution: typeDistribution(after),
		CommonPrefixes:   topAffixes(after, cfg.AffixLength, cfg.AffixTopK, prefixOf),
		CommonSuffixes:   topAffixes(after, cfg.AffixLength, cfg.AffixTopK, suffixOf),
		LengthStats:      lengthStats(after),
		Observations:     1,
	}

	if len(before) == 0 || len(after) == 0 {
		return fp
	}

	fp.FillSignal = domain.FillSignal{
		WasMostlyEmptyBefore: emptyFraction(before),
		DiversityIncrease:    diversityIncrease(before, after),
		BecameStructured:     isStructured(after, cfg) && !isStructured(before, cfg),
	}
	return fp
}

type valueClass int

const (
	classEmpty valueClass = iota
	classNumeric
	classAlphabetic
	classMixed
)

func classifyValue(raw string) valueClass {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return classEmpty
	case isNumericValue(trimmed):
		return classNumeric
	case isAlphabeticValue(trimmed):
		return classAlphabetic
	default:
		return classMixed
	}
}

// isNumericValue accepts values that parse fully as a number once common
// thousand/decimal separators are folded: "1 234,56", "1,234.56", "7,5".
func isNumericValue(value string) bool {
	normalized := strings.ReplaceAll(value, " ", "")
	hasComma := strings.Contains(normalized, ",")
	hasDot := strings.Contains(normalized, ".")
	switch {
	case hasComma && hasDot:
		normalized = strings.ReplaceAll(normalized, ",", "")
	case hasComma && strings.Count(normalized, ",") == 1:
		normalized = strings.Replace(normalized, ",", ".", 1)
	case hasComma:
		normalized = strings.ReplaceAll(normalized, ",", "")
	}
	if normalized == "" {
		return false
	}
	// ParseFloat also accepts inf/nan/hex spellings; only plain decimal and
	// scientific notation count as numeric cell values.
	if strings.ContainsAny(strings.ToLower(normalized), "abcdfghijklmnopqrstuvwxyz") {
		return false
	}
	_, err := strconv.ParseFloat(normalized, 64)
	return err == nil
}

func isAlphabeticValue(value string) bool {
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func typeDistribution(values []string) domain.TypeDistribution {
	if len(values) == 0 {
		return domain.TypeDistribution{}
	}
	var numeric, alphabetic, mixed, empty int
	for _, value := range values {
		switch classifyValue(value) {
		case classNumeric:
			numeric++
		case classAlphabetic:
			alphabetic++
		case classMixed:
			mixed++
		default:
			empty++
		}
	}
	total := float64(len(values))
	return domain.TypeDistribution{
		Numeric:    float64(numeric) / total,
		Alphabetic: float64(alphabetic) / total,
		Mixed:      float64(mixed) / total,
		Empty:      float64(empty) / total,
	}
}

func prefixOf(runes []rune, length int) string {
	return string(runes[:length])
}

func suffixOf(runes []rune, length int) string {
	return string(runes[len(runes)-length:])
}

// topAffixes counts affixLength-rune affixes of non-empty values and keeps
// the topK seen at least twice, ordered by count then lexically.
func topAffixes(values []string, affixLength, topK int, affix func([]rune, int) string) []domain.AffixCount {
	if affixLength <= 0 || topK <= 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		runes := []rune(strings.ToLower(trimmed))
		if len(runes) < affixLength {
			continue
		}
		counts[affix(runes, affixLength)]++
	}

	ranked := make([]domain.AffixCount, 0, len(counts))
	for affixText, count := range counts {
		if count < 2 {
			continue
		}
		ranked = append(ranked, domain.AffixCount{Affix: affixText, Count: count})
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Affix < ranked[j].Affix
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

func lengthStats(values []string) domain.LengthStats {
	lengths := make([]int, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		lengths = append(lengths, len([]rune(trimmed)))
	}
	if len(lengths) == 0 {
		return domain.LengthStats{}
	}
	sort.Ints(lengths)

	sum := 0
	for _, length := range lengths {
		sum += length
	}
	mid := len(lengths) / 2
	median := float64(lengths[mid])
	if len(lengths)%2 == 0 {
		median = (float64(lengths[mid-1]) + float64(lengths[mid])) / 2
	}
	return domain.LengthStats{
		Min:    lengths[0],
		Max:    lengths[len(lengths)-1],
		Mean:   float64(sum) / float64(len(lengths)),
		Median: median,
	}
}

func emptyFraction(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	empty := 0
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			empty++
		}
	}
	return float64(empty) / float64(len(values))
}

func distinctNonEmpty(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		seen[trimmed] = struct{}{}
	}
	return len(seen)
}

// diversityIncrease is the after/before cardinality ratio minus one,
// clamped to [0,inf) and saturated into [0,1) via x/(1+x).
func diversityIncrease(before, after []string) float64 {
	ratio := float64(distinctNonEmpty(after)) / float64(max(distinctNonEmpty(before), 1))
	raw := ratio - 1
	if raw <= 0 {
		return 0
	}
	return raw / (1 + raw)
}

// isStructured reports whether a value set shows a consistent shape: one
// non-empty type dominating, or a shared affix covering most values.
func isStructured(values []string, cfg domain.ScoringConfig) bool {
	nonEmpty := 0
	var numeric, alphabetic int
	for _, value := range values {
		switch classifyValue(value) {
		case classEmpty:
			continue
		case classNumeric:
			numeric++
		case classAlphabetic:
			alphabetic++
		}
		nonEmpty++
	}
	if nonEmpty < 2 {
		return false
	}
	dominant := float64(max(numeric, alphabetic)) / float64(nonEmpty)
	if dominant >= cfg.StructuredTypeRatio {
		return true
	}

	for _, pick := range []func([]rune, int) string{prefixOf, suffixOf} {
		for _, affix := range topAffixes(values, cfg.AffixLength, 1, pick) {
			if float64(affix.Count)/float64(nonEmpty) >= cfg.StructuredAffixCoverage {
				return true
			}
		}
	}
	return false
}
