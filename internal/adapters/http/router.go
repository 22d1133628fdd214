package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fill-pattern-engine/api"
	"github.com/kirillkom/fill-pattern-engine/internal/config"
	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/ports"
	"github.com/kirillkom/fill-pattern-engine/internal/observability/metrics"
)

const (
	apiServiceName   = "api"
	backpressureWait = 250 * time.Millisecond
)

type Router struct {
	cfg        config.Config
	identifier ports.ColumnIdentifier
	store      ports.PatternStoreRepository
	queue      ports.TrainingQueue
	source     ports.SnapshotSource
	scoring    domain.ScoringConfig
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
}

func NewRouter(
	cfg config.Config,
	identifier ports.ColumnIdentifier,
	store ports.PatternStoreRepository,
	queue ports.TrainingQueue,
	source ports.SnapshotSource,
	scoring domain.ScoringConfig,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:        cfg,
		identifier: identifier,
		store:      store,
		queue:      queue,
		source:     source,
		scoring:    scoring,
		metrics:    m,
		logger:     logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/identify", rt.identify)
	mux.HandleFunc("/v1/train", rt.enqueueTraining)
	mux.HandleFunc("/v1/store", rt.storeStats)
	mux.HandleFunc("/v1/store/sheets/", rt.sheetRecord)
	mux.HandleFunc("/openapi.yaml", rt.contract)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = contractValidator(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(apiServiceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type identifyRequest struct {
	Document  *domain.DocumentSnapshot `json:"document,omitempty"`
	Path      string                   `json:"path,omitempty"`
	Sheet     string                   `json:"sheet,omitempty"`
	Threshold *float64                 `json:"threshold,omitempty"`
}

type identifyResponse struct {
	RequestID    string                       `json:"request_id,omitempty"`
	StoreVersion int                          `json:"store_version"`
	Sheets       []domain.SheetIdentification `json:"sheets"`
}

func (rt *Router) identify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.Path = strings.TrimSpace(req.Path)
	if (req.Document == nil) == (req.Path == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "exactly one of 'document' or 'path' is required",
		})
		return
	}

	threshold, err := rt.resolveThreshold(req.Threshold)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	doc := req.Document
	if req.Path != "" {
		doc, err = rt.source.LoadDocument(r.Context(), req.Path)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
	}
	if len(doc.Sheets) == 0 {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "identify document",
			fmt.Errorf("document has no sheets")))
		return
	}

	sheets := doc.Sheets
	if req.Sheet != "" {
		sheet, ok := doc.Sheet(req.Sheet)
		if !ok {
			rt.writeError(w, r, domain.WrapError(domain.ErrSheetNotFound, "identify document",
				fmt.Errorf("sheet %q not in document", req.Sheet)))
			return
		}
		sheets = []domain.SheetSnapshot{sheet}
	}

	store, err := rt.store.Load(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordStoreSnapshot(apiServiceName, store.Stats())
	}

	identifications := make([]domain.SheetIdentification, 0, len(sheets))
	for _, sheet := range sheets {
		start := time.Now()
		identification, err := rt.identifier.IdentifySheet(r.Context(), store, sheet, threshold)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordIdentification(apiServiceName, identification, time.Since(start))
		}
		identifications = append(identifications, identification)
	}

	writeJSON(w, http.StatusOK, identifyResponse{
		RequestID:    requestIDFromContext(r.Context()),
		StoreVersion: store.Version,
		Sheets:       identifications,
	})
}

// resolveThreshold picks the decision threshold: request override first,
// then the environment override, then the scoring config default.
func (rt *Router) resolveThreshold(override *float64) (float64, error) {
	threshold := rt.scoring.DecisionThreshold
	if rt.cfg.DecisionThreshold >= 0 {
		threshold = rt.cfg.DecisionThreshold
	}
	if override != nil {
		threshold = *override
	}
	if threshold < 0 || threshold > 1 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "resolve threshold",
			fmt.Errorf("threshold %.2f outside [0,1]", threshold))
	}
	return threshold, nil
}

type trainRequest struct {
	BeforePath string `json:"before_path"`
	AfterPath  string `json:"after_path"`
}

func (rt *Router) enqueueTraining(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.BeforePath = strings.TrimSpace(req.BeforePath)
	req.AfterPath = strings.TrimSpace(req.AfterPath)
	if req.BeforePath == "" || req.AfterPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "before_path and after_path are required",
		})
		return
	}

	job := domain.TrainingJob{
		ID:         uuid.NewString(),
		BeforePath: req.BeforePath,
		AfterPath:  req.AfterPath,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := rt.queue.PublishTrainingJob(r.Context(), job); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordTrainingEnqueued(apiServiceName)
	}

	rt.logger.Info("training job enqueued",
		"request_id", requestIDFromContext(r.Context()),
		"job_id", job.ID,
		"before", job.BeforePath,
		"after", job.AfterPath,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "status": "queued"})
}

func (rt *Router) storeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	store, err := rt.store.Load(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	stats := store.Stats()
	if rt.metrics != nil {
		rt.metrics.RecordStoreSnapshot(apiServiceName, stats)
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) sheetRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sheetKey := strings.TrimPrefix(r.URL.Path, "/v1/store/sheets/")
	if sheetKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sheet key is required"})
		return
	}

	store, err := rt.store.Load(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	record, err := store.Sheet(sheetKey)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) contract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(api.Contract)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
