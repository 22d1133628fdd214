package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type oracleFake struct {
	enhancement domain.Enhancement
	err         error
	calls       int
}

func (f *oracleFake) Enhance(context.Context, string, domain.OracleContext) (domain.Enhancement, error) {
	f.calls++
	if f.err != nil {
		return domain.Enhancement{}, f.err
	}
	return f.enhancement, nil
}

func snapshot(name, sheet string, headers map[string]string, columns []string, rows []map[string]string) *domain.DocumentSnapshot {
	return &domain.DocumentSnapshot{Name: name, Sheets: []domain.SheetSnapshot{{
		Name:    sheet,
		Columns: columns,
		Headers: headers,
		Rows:    rows,
	}}}
}

func minChargePair(sheet string) domain.TrainingPair {
	columns := []string{"col_0", "col_1"}
	headers := map[string]string{"col_0": "service", "col_1": "min_charge"}
	before := snapshot("q1_before", sheet, headers, columns, []map[string]string{
		{"col_0": "haulage", "col_1": ""},
		{"col_0": "customs", "col_1": ""},
		{"col_0": "storage", "col_1": "100"},
	})
	after := snapshot("q1_filled", sheet, headers, columns, []map[string]string{
		{"col_0": "haulage", "col_1": "50"},
		{"col_0": "customs", "col_1": "75"},
		{"col_0": "storage", "col_1": "100"},
	})
	return domain.TrainingPair{Key: "q1", Before: before, After: after}
}

func TestTrainLearnsFillableColumn(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	store := domain.NewPatternStore()
	uc := NewTrainUseCase(nil, domain.DefaultVocabulary(), cfg, testLogger())

	summary, err := uc.Train(context.Background(), store, []domain.TrainingPair{minChargePair("tariff")})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if summary.PairsProcessed != 1 || summary.SheetsTouched != 1 || summary.ColumnsLearned != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.FillableColumns != 1 || len(summary.Warnings) != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	record, err := store.Sheet("tariff")
	if err != nil {
		t.Fatalf("Sheet() error = %v", err)
	}
	if !record.IsFillable("col_1") {
		t.Fatalf("col_1 should be fillable: %+v", record)
	}
	verification := record.Verifications["col_1"]
	if verification.Label != "min_charge" || verification.Method != domain.MethodExact {
		t.Fatalf("unexpected verification: %+v", verification)
	}
	if store.Version != 1 {
		t.Fatalf("store version = %d, want 1 after one merged run", store.Version)
	}
}

func TestTrainIdempotentAcrossRuns(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	store := domain.NewPatternStore()
	uc := NewTrainUseCase(nil, domain.DefaultVocabulary(), cfg, testLogger())
	pairs := []domain.TrainingPair{minChargePair("tariff")}

	if _, err := uc.Train(context.Background(), store, pairs); err != nil {
		t.Fatalf("first Train() error = %v", err)
	}
	record, _ := store.Sheet("tariff")
	fillableBefore := append([]string(nil), record.FillableColumns...)
	candidatesBefore := collectCandidates(store, "min", domain.ColumnFingerprint{}, nil, cfg)

	if _, err := uc.Train(context.Background(), store, pairs); err != nil {
		t.Fatalf("second Train() error = %v", err)
	}
	record, _ = store.Sheet("tariff")
	if !reflect.DeepEqual(fillableBefore, record.FillableColumns) {
		t.Fatalf("fillable set changed on retraining: %v -> %v", fillableBefore, record.FillableColumns)
	}
	if got := record.Fingerprints["col_1"].Observations; got != 2 {
		t.Fatalf("Observations = %d, want 2 after re-training", got)
	}
	candidatesAfter := collectCandidates(store, "min", domain.ColumnFingerprint{}, nil, cfg)
	if !reflect.DeepEqual(candidatesBefore, candidatesAfter) {
		t.Fatalf("retraining moved candidates:\n%+v\n%+v", candidatesBefore, candidatesAfter)
	}
	if store.Version != 2 {
		t.Fatalf("store version = %d, want one bump per run", store.Version)
	}
}

func TestTrainSkipsOneSidedSheets(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	store := domain.NewPatternStore()
	uc := NewTrainUseCase(nil, domain.DefaultVocabulary(), cfg, testLogger())

	pair := minChargePair("tariff")
	pair.Before.Sheets = append(pair.Before.Sheets, domain.SheetSnapshot{Name: "extras", Columns: []string{"col_0", "col_1"}})
	pair.After.Sheets = append(pair.After.Sheets, domain.SheetSnapshot{Name: "summary_page", Columns: []string{"col_0", "col_1"}})

	summary, err := uc.Train(context.Background(), store, []domain.TrainingPair{pair})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if len(summary.Warnings) != 2 {
		t.Fatalf("expected 2 one-sided sheet warnings, got %+v", summary.Warnings)
	}
	if summary.ColumnsLearned != 1 {
		t.Fatalf("only the shared sheet should be learned, got %+v", summary)
	}
	if _, err := store.Sheet("extras"); !domain.IsKind(err, domain.ErrSheetNotFound) {
		t.Fatalf("one-sided sheet must not enter the store, got err = %v", err)
	}
}

func TestTrainSkipsColumnsMissingFromBeforeSheet(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	store := domain.NewPatternStore()
	uc := NewTrainUseCase(nil, domain.DefaultVocabulary(), cfg, testLogger())

	pair := minChargePair("tariff")
	after := &pair.After.Sheets[0]
	after.Columns = append(after.Columns, "col_2")
	after.Headers["col_2"] = "remarks"
	for i := range after.Rows {
		after.Rows[i]["col_2"] = "urgent"
	}

	summary, err := uc.Train(context.Background(), store, []domain.TrainingPair{pair})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if summary.ColumnsLearned != 1 {
		t.Fatalf("only columns present on both sides should be learned, got %+v", summary)
	}
	if len(summary.Warnings) != 1 || !strings.Contains(summary.Warnings[0].Reason, "col_2") {
		t.Fatalf("expected a warning naming the after-only column, got %+v", summary.Warnings)
	}

	record, err := store.Sheet("tariff")
	if err != nil {
		t.Fatalf("Sheet() error = %v", err)
	}
	if _, ok := record.Fingerprints["col_2"]; ok {
		t.Fatalf("after-only column must not be fingerprinted: an absent before side reads as fully empty")
	}
	if record.IsFillable("col_2") {
		t.Fatalf("after-only column must not be marked fillable")
	}
}

func TestTrainMissingSnapshotIsWarning(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	store := domain.NewPatternStore()
	uc := NewTrainUseCase(nil, domain.DefaultVocabulary(), cfg, testLogger())

	summary, err := uc.Train(context.Background(), store, []domain.TrainingPair{{Key: "broken"}})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if summary.PairsProcessed != 0 || len(summary.Warnings) != 1 {
		t.Fatalf("expected skipped pair with warning, got %+v", summary)
	}
	if store.Version != 0 {
		t.Fatalf("nothing merged, version must stay 0, got %d", store.Version)
	}
}

func TestTrainOracleUnavailableDegradesOnce(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	store := domain.NewPatternStore()
	oracle := &oracleFake{err: domain.WrapError(domain.ErrOracleUnavailable, "enhance header", errors.New("connection refused"))}
	uc := NewTrainUseCase(oracle, domain.DefaultVocabulary(), cfg, testLogger())

	columns := []string{"col_0", "col_1", "col_2"}
	headers := map[string]string{"col_0": "pos", "col_1": "foo bar", "col_2": "lorem ipsum"}
	rows := []map[string]string{{"col_0": "1", "col_1": "x", "col_2": "y"}}
	pair := domain.TrainingPair{
		Key:    "p",
		Before: snapshot("b", "sheet1", headers, columns, rows),
		After:  snapshot("a", "sheet1", headers, columns, rows),
	}

	summary, err := uc.Train(context.Background(), store, []domain.TrainingPair{pair})
	if err != nil {
		t.Fatalf("Train() error = %v, oracle loss must not abort training", err)
	}
	if oracle.calls != 1 {
		t.Fatalf("oracle called %d times, want 1 before degrading for the run", oracle.calls)
	}
	if !summary.OracleDegraded {
		t.Fatalf("summary must report oracle degradation: %+v", summary)
	}
	record, _ := store.Sheet("sheet1")
	for _, column := range []string{"col_1", "col_2"} {
		if method := record.Verifications[column].Method; method != domain.MethodFallback {
			t.Fatalf("column %s verified via %q, want offline fallback", column, method)
		}
	}
}

func TestTrainOracleEnhancesUnknownHeader(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	store := domain.NewPatternStore()
	oracle := &oracleFake{enhancement: domain.Enhancement{Label: "destination", Confidence: 0.85}}
	uc := NewTrainUseCase(oracle, domain.DefaultVocabulary(), cfg, testLogger())

	columns := []string{"col_0", "col_1"}
	headers := map[string]string{"col_0": "pos", "col_1": "dst"}
	rows := []map[string]string{{"col_0": "1", "col_1": "Hamburg"}}
	pair := domain.TrainingPair{
		Key:    "p",
		Before: snapshot("b", "ports", headers, columns, rows),
		After:  snapshot("a", "ports", headers, columns, rows),
	}

	if _, err := uc.Train(context.Background(), store, []domain.TrainingPair{pair}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	record, _ := store.Sheet("ports")
	verification := record.Verifications["col_1"]
	if verification.Method != domain.MethodAIOracle || verification.Label != "destination" {
		t.Fatalf("unexpected verification: %+v", verification)
	}
	if verification.Confidence != 0.85 {
		t.Fatalf("confidence = %v, want oracle confidence", verification.Confidence)
	}
}

func TestTrainReusesHistoricalVerification(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	store := domain.NewPatternStore()

	offline := NewTrainUseCase(nil, domain.DefaultVocabulary(), cfg, testLogger())
	if _, err := offline.Train(context.Background(), store, []domain.TrainingPair{minChargePair("a_sheet")}); err != nil {
		t.Fatalf("seed Train() error = %v", err)
	}

	oracle := &oracleFake{err: domain.WrapError(domain.ErrOracleUnavailable, "enhance header", errors.New("down"))}
	uc := NewTrainUseCase(oracle, domain.DefaultVocabulary(), cfg, testLogger())
	if _, err := uc.Train(context.Background(), store, []domain.TrainingPair{minChargePair("b_sheet")}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if oracle.calls != 0 {
		t.Fatalf("known header must reuse the stored verification, oracle called %d times", oracle.calls)
	}
	record, _ := store.Sheet("b_sheet")
	verification := record.Verifications["col_1"]
	if verification.Method != domain.MethodHistorical || verification.Label != "min_charge" {
		t.Fatalf("unexpected verification: %+v", verification)
	}
}
