package domain

import (
	"fmt"
	"sort"
)

// TypeDistribution is the fractional membership of a column's observed
// values across the four value classes. Fractions sum to 1 when any value
// was observed.
type TypeDistribution struct {
	Numeric    float64 `json:"numeric"`
	Alphabetic float64 `json:"alphabetic"`
	Mixed      float64 `json:"mixed"`
	Empty      float64 `json:"empty"`
}

// LengthStats summarizes string lengths of non-empty values. A zero Max
// means no non-empty value was observed.
type LengthStats struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// FillSignal carries the fillability evidence derived from a before/after
// value pair. DiversityIncrease is already normalized into [0,1].
type FillSignal struct {
	WasMostlyEmptyBefore float64 `json:"was_mostly_empty_before"`
	DiversityIncrease    float64 `json:"diversity_increase"`
	BecameStructured     bool    `json:"became_structured"`
}

// AffixCount is a leading or trailing substring with its observation count.
// Counts survive merging so re-truncation stays frequency-ordered.
type AffixCount struct {
	Affix string `json:"affix"`
	Count int    `json:"count"`
}

// ColumnFingerprint is the statistical signature of one column, computed
// from a single training observation and merged across re-trainings.
type ColumnFingerprint struct {
	TypeDistribution TypeDistribution `json:"type_distribution"`
	CommonPrefixes   []AffixCount     `json:"common_prefixes,omitempty"`
	CommonSuffixes   []AffixCount     `json:"common_suffixes,omitempty"`
	LengthStats      LengthStats      `json:"length_stats"`
	FillSignal       FillSignal       `json:"fill_signal"`
	Observations     int              `json:"observations"`
}

// MergeFingerprints combines two fingerprints of the same column. Numeric
// fields are averaged weighted by observation count, affix sets are united
// and re-truncated to topK by combined frequency, and structure evidence is
// kept once either side saw it.
func MergeFingerprints(a, b ColumnFingerprint, topK int) ColumnFingerprint {
	wa := float64(max(a.Observations, 1))
	wb := float64(max(b.Observations, 1))
	total := wa + wb
	avg := func(x, y float64) float64 {
		return (x*wa + y*wb) / total
	}

	return ColumnFingerprint{
		TypeDistribution: TypeDistribution{
			Numeric:    avg(a.TypeDistribution.Numeric, b.TypeDistribution.Numeric),
			Alphabetic: avg(a.TypeDistribution.Alphabetic, b.TypeDistribution.Alphabetic),
			Mixed:      avg(a.TypeDistribution.Mixed, b.TypeDistribution.Mixed),
			Empty:      avg(a.TypeDistribution.Empty, b.TypeDistribution.Empty),
		},
		CommonPrefixes: mergeAffixCounts(a.CommonPrefixes, b.CommonPrefixes, topK),
		CommonSuffixes: mergeAffixCounts(a.CommonSuffixes, b.CommonSuffixes, topK),
		LengthStats:    mergeLengthStats(a.LengthStats, b.LengthStats, avg),
		FillSignal: FillSignal{
			WasMostlyEmptyBefore: avg(a.FillSignal.WasMostlyEmptyBefore, b.FillSignal.WasMostlyEmptyBefore),
			DiversityIncrease:    avg(a.FillSignal.DiversityIncrease, b.FillSignal.DiversityIncrease),
			BecameStructured:     a.FillSignal.BecameStructured || b.FillSignal.BecameStructured,
		},
		Observations: a.Observations + b.Observations,
	}
}

func mergeLengthStats(a, b LengthStats, avg func(x, y float64) float64) LengthStats {
	// Max == 0 means the side never observed a non-empty value.
	if a.Max == 0 {
		return b
	}
	if b.Max == 0 {
		return a
	}
	return LengthStats{
		Min:    min(a.Min, b.Min),
		Max:    max(a.Max, b.Max),
		Mean:   avg(a.Mean, b.Mean),
		Median: avg(a.Median, b.Median),
	}
}

func mergeAffixCounts(a, b []AffixCount, topK int) []AffixCount {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	combined := make(map[string]int, len(a)+len(b))
	for _, affix := range a {
		combined[affix.Affix] += affix.Count
	}
	for _, affix := range b {
		combined[affix.Affix] += affix.Count
	}

	merged := make([]AffixCount, 0, len(combined))
	for affix, count := range combined {
		merged = append(merged, AffixCount{Affix: affix, Count: count})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Count != merged[j].Count {
			return merged[i].Count > merged[j].Count
		}
		return merged[i].Affix < merged[j].Affix
	})
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

func (f ColumnFingerprint) validate() error {
	fractions := []struct {
		name  string
		value float64
	}{
		{"numeric", f.TypeDistribution.Numeric},
		{"alphabetic", f.TypeDistribution.Alphabetic},
		{"mixed", f.TypeDistribution.Mixed},
		{"empty", f.TypeDistribution.Empty},
		{"was_mostly_empty_before", f.FillSignal.WasMostlyEmptyBefore},
		{"diversity_increase", f.FillSignal.DiversityIncrease},
	}
	for _, fraction := range fractions {
		if fraction.value < 0 || fraction.value > 1 {
			return fmt.Errorf("%s = %v outside [0,1]", fraction.name, fraction.value)
		}
	}

	sum := f.TypeDistribution.Numeric + f.TypeDistribution.Alphabetic + f.TypeDistribution.Mixed + f.TypeDistribution.Empty
	if sum != 0 && (sum < 1-distributionTolerance || sum > 1+distributionTolerance) {
		return fmt.Errorf("type distribution sums to %v, want 1", sum)
	}
	if f.LengthStats.Min < 0 || f.LengthStats.Max < 0 {
		return fmt.Errorf("negative length stats: min=%d max=%d", f.LengthStats.Min, f.LengthStats.Max)
	}
	if f.LengthStats.Min > f.LengthStats.Max {
		return fmt.Errorf("length min %d exceeds max %d", f.LengthStats.Min, f.LengthStats.Max)
	}
	for _, stat := range []struct {
		name  string
		value float64
	}{
		{"mean", f.LengthStats.Mean},
		{"median", f.LengthStats.Median},
	} {
		if stat.value < float64(f.LengthStats.Min) || stat.value > float64(f.LengthStats.Max) {
			return fmt.Errorf("length %s %v outside [%d,%d]",
				stat.name, stat.value, f.LengthStats.Min, f.LengthStats.Max)
		}
	}
	if f.Observations < 1 {
		return fmt.Errorf("observations = %d, want >= 1", f.Observations)
	}
	for _, affix := range f.CommonPrefixes {
		if affix.Affix == "" || affix.Count < 1 {
			return fmt.Errorf("malformed prefix entry %q (count %d)", affix.Affix, affix.Count)
		}
	}
	for _, affix := range f.CommonSuffixes {
		if affix.Affix == "" || affix.Count < 1 {
			return fmt.Errorf("malformed suffix entry %q (count %d)", affix.Affix, affix.Count)
		}
	}
	return nil
}

const distributionTolerance = 1e-6
