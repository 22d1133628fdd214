package pairs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

func seedFiles(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

func TestDiscoverPairsByMarkers(t *testing.T) {
	root := seedFiles(t,
		"rates_before.json",
		"rates_after.json",
		"Carrier Empty_structured.json",
		"Carrier Filled_structured.json",
	)

	report, err := Discover(root, "")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %+v", report)
	}
	if report.Pairs[0].Key != "carrier structured" || report.Pairs[1].Key != "rates" {
		t.Fatalf("unexpected pair keys: %+v", report.Pairs)
	}
	if filepath.Base(report.Pairs[1].BeforePath) != "rates_before.json" {
		t.Fatalf("unexpected before path %s", report.Pairs[1].BeforePath)
	}
	if filepath.Base(report.Pairs[1].AfterPath) != "rates_after.json" {
		t.Fatalf("unexpected after path %s", report.Pairs[1].AfterPath)
	}
}

func TestDiscoverWalksSubdirectories(t *testing.T) {
	root := seedFiles(t,
		"2026/q1/tariff_blank.xlsx",
		"2026/q1/tariff_filled.xlsx",
	)

	report, err := Discover(root, "")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Pairs) != 1 || report.Pairs[0].Key != "tariff" {
		t.Fatalf("expected nested pair, got %+v", report)
	}
}

func TestDiscoverReportsUnpairedFiles(t *testing.T) {
	root := seedFiles(t,
		"rates_before.json",
		"orphan_after.json",
		"notes.json",
	)

	report, err := Discover(root, "")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Pairs) != 0 {
		t.Fatalf("expected no pairs, got %+v", report.Pairs)
	}
	if len(report.UnpairedBefore) != 1 || filepath.Base(report.UnpairedBefore[0]) != "rates_before.json" {
		t.Fatalf("unexpected unpaired before: %v", report.UnpairedBefore)
	}
	if len(report.UnpairedAfter) != 1 || filepath.Base(report.UnpairedAfter[0]) != "orphan_after.json" {
		t.Fatalf("unexpected unpaired after: %v", report.UnpairedAfter)
	}
}

func TestDiscoverCustomGlobNarrowsScope(t *testing.T) {
	root := seedFiles(t,
		"keep/rates_before.json",
		"keep/rates_after.json",
		"skip/other_before.json",
		"skip/other_after.json",
	)

	report, err := Discover(root, "keep/*.json")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Pairs) != 1 || report.Pairs[0].Key != "rates" {
		t.Fatalf("expected only the keep/ pair, got %+v", report.Pairs)
	}
}

func TestDiscoverBadGlobIsInvalidConfig(t *testing.T) {
	_, err := Discover(t.TempDir(), "[")
	if !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid-config kind, got %v", err)
	}
}
