package usecase

import (
	"math"
	"reflect"
	"testing"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

func TestFingerprintFilledColumn(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	before := []string{"", "", "100"}
	after := []string{"50", "75", "100"}

	fp := Fingerprint(before, after, cfg)

	if math.Abs(fp.FillSignal.WasMostlyEmptyBefore-2.0/3.0) > 1e-9 {
		t.Fatalf("WasMostlyEmptyBefore = %v, want 2/3", fp.FillSignal.WasMostlyEmptyBefore)
	}
	if fp.FillSignal.DiversityIncrease <= 0 {
		t.Fatalf("DiversityIncrease = %v, want > 0", fp.FillSignal.DiversityIncrease)
	}
	if !fp.FillSignal.BecameStructured {
		t.Fatalf("BecameStructured = false, want true for a column that became all-numeric")
	}
	if fp.TypeDistribution.Numeric != 1 {
		t.Fatalf("Numeric fraction = %v, want 1", fp.TypeDistribution.Numeric)
	}
	if fp.LengthStats.Min != 2 || fp.LengthStats.Max != 3 || fp.LengthStats.Median != 2 {
		t.Fatalf("unexpected length stats: %+v", fp.LengthStats)
	}

	if score := cfg.FillScore(fp.FillSignal); score < cfg.FillableThreshold {
		t.Fatalf("fill score = %v, want >= %v", score, cfg.FillableThreshold)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	before := []string{"", "abc", "", "A-12"}
	after := []string{"10", "abc", "7,5", "A-12"}

	first := Fingerprint(before, after, cfg)
	second := Fingerprint(before, after, cfg)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("fingerprints differ across identical calls:\n%+v\n%+v", first, second)
	}
}

func TestFingerprintEmptySideKeepsNeutralSignal(t *testing.T) {
	cfg := domain.DefaultScoringConfig()

	fp := Fingerprint(nil, []string{"50", "75"}, cfg)
	if fp.FillSignal != (domain.FillSignal{}) {
		t.Fatalf("expected neutral fill signal for empty before side, got %+v", fp.FillSignal)
	}
	if fp.TypeDistribution.Numeric != 1 {
		t.Fatalf("after-side stats should survive: %+v", fp.TypeDistribution)
	}

	fp = Fingerprint([]string{"a"}, nil, cfg)
	if fp.FillSignal != (domain.FillSignal{}) {
		t.Fatalf("expected neutral fill signal for empty after side, got %+v", fp.FillSignal)
	}
}

func TestFingerprintTruncatesToCommonLength(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	before := []string{"", "", "", "x", "y"}
	after := []string{"a", "b", "c"}

	fp := Fingerprint(before, after, cfg)
	if fp.FillSignal.WasMostlyEmptyBefore != 1 {
		t.Fatalf("WasMostlyEmptyBefore = %v, want 1 after truncating before to 3 rows", fp.FillSignal.WasMostlyEmptyBefore)
	}
}

func TestClassifyValue(t *testing.T) {
	cases := []struct {
		value string
		want  valueClass
	}{
		{"", classEmpty},
		{"   ", classEmpty},
		{"100", classNumeric},
		{"1,234.56", classNumeric},
		{"7,5", classNumeric},
		{"1 000", classNumeric},
		{"-3.2e4", classNumeric},
		{"Hamburg", classAlphabetic},
		{"per unit", classAlphabetic},
		{"A-12", classMixed},
		{"inf", classAlphabetic},
		{"0x1f", classMixed},
	}
	for _, c := range cases {
		if got := classifyValue(c.value); got != c.want {
			t.Fatalf("classifyValue(%q) = %d, want %d", c.value, got, c.want)
		}
	}
}

func TestFingerprintAffixCounting(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	after := []string{"EUR 100", "EUR 200", "EUR 300", "USD 50"}

	fp := Fingerprint(after, after, cfg)
	if len(fp.CommonPrefixes) != 1 || fp.CommonPrefixes[0].Affix != "eu" || fp.CommonPrefixes[0].Count != 3 {
		t.Fatalf("unexpected prefixes: %+v", fp.CommonPrefixes)
	}
	if len(fp.CommonSuffixes) != 1 || fp.CommonSuffixes[0].Affix != "00" || fp.CommonSuffixes[0].Count != 3 {
		t.Fatalf("unexpected suffixes: %+v", fp.CommonSuffixes)
	}
}

func TestFingerprintAffixTopKTruncation(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	after := []string{
		"aa1", "aa2", "bb1", "bb2", "cc1", "cc2", "dd1", "dd2",
		"ee1", "ee2", "ff1", "ff2", "gg1", "gg2",
	}

	fp := Fingerprint(after, after, cfg)
	if len(fp.CommonPrefixes) != cfg.AffixTopK {
		t.Fatalf("expected %d prefixes, got %d", cfg.AffixTopK, len(fp.CommonPrefixes))
	}
	if fp.CommonPrefixes[0].Affix != "aa" || fp.CommonPrefixes[4].Affix != "ee" {
		t.Fatalf("equal counts must order lexically: %+v", fp.CommonPrefixes)
	}
}

func TestFingerprintDiversitySaturation(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	before := []string{"x", "x", "x", "x"}
	after := []string{"a", "b", "c", "d"}

	fp := Fingerprint(before, after, cfg)
	// ratio 4/1 - 1 = 3, saturated to 3/4.
	if math.Abs(fp.FillSignal.DiversityIncrease-0.75) > 1e-9 {
		t.Fatalf("DiversityIncrease = %v, want 0.75", fp.FillSignal.DiversityIncrease)
	}

	shrunk := Fingerprint(after, before, cfg)
	if shrunk.FillSignal.DiversityIncrease != 0 {
		t.Fatalf("shrinking diversity must clamp to 0, got %v", shrunk.FillSignal.DiversityIncrease)
	}
}
