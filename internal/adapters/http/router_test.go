package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/fill-pattern-engine/internal/config"
	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/ports"
	"github.com/kirillkom/fill-pattern-engine/internal/core/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubStoreRepo struct {
	store   *domain.PatternStore
	loadErr error
}

func (s *stubStoreRepo) Load(context.Context) (*domain.PatternStore, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.store == nil {
		return domain.NewPatternStore(), nil
	}
	return s.store, nil
}

func (s *stubStoreRepo) Save(context.Context, *domain.PatternStore) error { return nil }

type stubQueue struct {
	jobs       []domain.TrainingJob
	publishErr error
}

func (q *stubQueue) PublishTrainingJob(_ context.Context, job domain.TrainingJob) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) SubscribeTrainingJobs(context.Context, func(context.Context, domain.TrainingJob) error) error {
	return nil
}

type stubSnapshotSource struct {
	doc      *domain.DocumentSnapshot
	err      error
	lastPath string
}

func (s *stubSnapshotSource) LoadDocument(_ context.Context, path string) (*domain.DocumentSnapshot, error) {
	s.lastPath = path
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

// trainedStore seeds one verified min_charge column so the exact tier has
// something to hit.
func trainedStore(t *testing.T, cfg domain.ScoringConfig) *domain.PatternStore {
	t.Helper()
	store := domain.NewPatternStore()
	fp := usecase.Fingerprint([]string{"", "", "100"}, []string{"50", "75", "100"}, cfg)
	label := &domain.VerifiedLabel{Label: "min_charge", Confidence: 0.95, Method: domain.MethodExact}
	if err := store.Merge("tariff_2024", "col_1", "Min Charge", fp, label, cfg); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	store.BumpVersion()
	return store
}

func incomingDocument() *domain.DocumentSnapshot {
	return &domain.DocumentSnapshot{
		Name: "incoming",
		Sheets: []domain.SheetSnapshot{{
			Name:    "pricing",
			Columns: []string{"col_0", "col_1"},
			Headers: map[string]string{"col_0": "Service", "col_1": "Min Charge"},
			Rows: []map[string]string{
				{"col_0": "haulage", "col_1": ""},
				{"col_0": "customs", "col_1": ""},
			},
		}},
	}
}

func newTestRouter(cfg config.Config, repo ports.PatternStoreRepository, queue ports.TrainingQueue, src ports.SnapshotSource) *Router {
	scoring := domain.DefaultScoringConfig()
	if repo == nil {
		repo = &stubStoreRepo{}
	}
	if queue == nil {
		queue = &stubQueue{}
	}
	if src == nil {
		src = &stubSnapshotSource{}
	}
	identifier := usecase.NewIdentifyUseCase(nil, scoring, testLogger())
	return NewRouter(cfg, identifier, repo, queue, src, scoring, nil, testLogger())
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestRouter(cfg, nil, nil, nil).Handler()
}

func testConfig() config.Config {
	return config.Config{DecisionThreshold: -1}
}

func postJSONRequest(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected %s header on every response", requestIDHeader)
	}
}

func TestIdentifyInlineDocument(t *testing.T) {
	scoring := domain.DefaultScoringConfig()
	repo := &stubStoreRepo{store: trainedStore(t, scoring)}
	handler := newTestRouter(testConfig(), repo, nil, nil).Handler()

	res := postJSONRequest(t, handler, "/v1/identify", map[string]any{
		"document": incomingDocument(),
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp identifyResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.StoreVersion != 1 {
		t.Fatalf("store_version = %d, want 1", resp.StoreVersion)
	}
	if resp.RequestID == "" {
		t.Fatalf("expected request id in response")
	}
	if len(resp.Sheets) != 1 || len(resp.Sheets[0].Results) != 1 {
		t.Fatalf("unexpected identification shape: %+v", resp.Sheets)
	}
	got := resp.Sheets[0].Results[0]
	if got.MatchedLabel != "min_charge" || got.Decision != domain.DecisionFill {
		t.Fatalf("expected exact fill on min_charge, got %+v", got)
	}
	if got.Method != "exact" {
		t.Fatalf("expected exact method, got %q", got.Method)
	}
}

func TestIdentifyFromStoredPath(t *testing.T) {
	scoring := domain.DefaultScoringConfig()
	repo := &stubStoreRepo{store: trainedStore(t, scoring)}
	src := &stubSnapshotSource{doc: incomingDocument()}
	handler := newTestRouter(testConfig(), repo, nil, src).Handler()

	res := postJSONRequest(t, handler, "/v1/identify", map[string]any{
		"path": "/data/incoming.json",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if src.lastPath != "/data/incoming.json" {
		t.Fatalf("source loaded %q, want /data/incoming.json", src.lastPath)
	}
}

func TestIdentifyRequiresExactlyOneInput(t *testing.T) {
	handler := newTestHandler(testConfig())

	res := postJSONRequest(t, handler, "/v1/identify", map[string]any{
		"document": incomingDocument(),
		"path":     "/data/incoming.json",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("document+path expected 400, got %d", res.Code)
	}

	res = postJSONRequest(t, handler, "/v1/identify", map[string]any{
		"threshold": 0.5,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("neither input expected 400, got %d", res.Code)
	}
}

func TestIdentifyNamedSheetMissing(t *testing.T) {
	handler := newTestHandler(testConfig())

	res := postJSONRequest(t, handler, "/v1/identify", map[string]any{
		"document": incomingDocument(),
		"sheet":    "summary",
	})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for sheet not in document, got %d", res.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected error message in payload")
	}
}

func TestIdentifyThresholdOutOfRange(t *testing.T) {
	handler := newTestHandler(testConfig())

	res := postJSONRequest(t, handler, "/v1/identify", map[string]any{
		"document":  incomingDocument(),
		"threshold": 1.5,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for threshold 1.5, got %d", res.Code)
	}
}

func TestTrainEnqueuesJob(t *testing.T) {
	queue := &stubQueue{}
	handler := newTestRouter(testConfig(), nil, queue, nil).Handler()

	res := postJSONRequest(t, handler, "/v1/train", map[string]string{
		"before_path": "/data/rates_before.json",
		"after_path":  "/data/rates_after.json",
	})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["job_id"] == "" || resp["status"] != "queued" {
		t.Fatalf("unexpected accept payload: %v", resp)
	}

	if len(queue.jobs) != 1 {
		t.Fatalf("expected one published job, got %d", len(queue.jobs))
	}
	job := queue.jobs[0]
	if job.ID != resp["job_id"] {
		t.Fatalf("published job id %q, response job id %q", job.ID, resp["job_id"])
	}
	if job.BeforePath != "/data/rates_before.json" || job.AfterPath != "/data/rates_after.json" {
		t.Fatalf("unexpected job paths: %+v", job)
	}
	if job.EnqueuedAt.IsZero() {
		t.Fatalf("expected enqueue timestamp on job")
	}
}

func TestTrainRejectsMissingPaths(t *testing.T) {
	handler := newTestHandler(testConfig())

	res := postJSONRequest(t, handler, "/v1/train", map[string]string{
		"before_path": "/data/rates_before.json",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without after_path, got %d", res.Code)
	}
}

func TestTrainQueueUnavailable(t *testing.T) {
	queue := &stubQueue{
		publishErr: domain.WrapError(domain.ErrTemporary, "publish training job",
			context.DeadlineExceeded),
	}
	handler := newTestRouter(testConfig(), nil, queue, nil).Handler()

	res := postJSONRequest(t, handler, "/v1/train", map[string]string{
		"before_path": "/data/rates_before.json",
		"after_path":  "/data/rates_after.json",
	})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the queue is down, got %d", res.Code)
	}
}

func TestStoreStatsEndpoint(t *testing.T) {
	scoring := domain.DefaultScoringConfig()
	repo := &stubStoreRepo{store: trainedStore(t, scoring)}
	handler := newTestRouter(testConfig(), repo, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/store", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var stats domain.StoreStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Version != 1 || stats.Sheets != 1 || stats.Columns != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSheetRecordEndpoint(t *testing.T) {
	scoring := domain.DefaultScoringConfig()
	repo := &stubStoreRepo{store: trainedStore(t, scoring)}
	handler := newTestRouter(testConfig(), repo, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/store/sheets/tariff_2024", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var record domain.SheetRecord
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.SheetKey != "tariff_2024" {
		t.Fatalf("sheet_key = %q, want tariff_2024", record.SheetKey)
	}
	if _, ok := record.Fingerprints["col_1"]; !ok {
		t.Fatalf("expected col_1 fingerprint in record: %+v", record)
	}

	reqMissing := httptest.NewRequest(http.MethodGet, "/v1/store/sheets/unknown", nil)
	resMissing := httptest.NewRecorder()
	handler.ServeHTTP(resMissing, reqMissing)
	if resMissing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sheet, got %d", resMissing.Code)
	}
}

func TestCorruptStoreMapsToInternalError(t *testing.T) {
	repo := &stubStoreRepo{
		loadErr: domain.WrapError(domain.ErrCorruptStore, "load store",
			io.ErrUnexpectedEOF),
	}
	handler := newTestRouter(testConfig(), repo, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/store", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for corrupt store, got %d", res.Code)
	}
}

func TestContractServed(t *testing.T) {
	handler := newTestHandler(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Fatalf("content type = %q, want application/yaml", ct)
	}
	if !strings.HasPrefix(res.Body.String(), "openapi:") {
		t.Fatalf("expected yaml contract body, got %q", res.Body.String()[:32])
	}
}
