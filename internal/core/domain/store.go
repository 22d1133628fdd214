package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// VerificationMethod names how a column's canonical label was produced.
type VerificationMethod string

const (
	MethodExact      VerificationMethod = "exact"
	MethodFuzzy      VerificationMethod = "fuzzy"
	MethodTemplate   VerificationMethod = "template"
	MethodHistorical VerificationMethod = "historical"
	MethodAIOracle   VerificationMethod = "ai-oracle"
	MethodFallback   VerificationMethod = "fallback"
)

func (m VerificationMethod) Known() bool {
	switch m {
	case MethodExact, MethodFuzzy, MethodTemplate, MethodHistorical, MethodAIOracle, MethodFallback:
		return true
	default:
		return false
	}
}

// VerifiedLabel is a column's canonical business meaning with the
// confidence and method of the verification that produced it.
type VerifiedLabel struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Method     VerificationMethod `json:"method"`
}

// SheetRecord is everything learned about one sheet: raw headers with their
// canonical variants, fingerprints and verifications per column key, and
// the set of columns judged fillable.
type SheetRecord struct {
	SheetKey        string                       `json:"sheet_key"`
	Headers         map[string]string            `json:"headers"`
	HeaderMap       map[string][]string          `json:"header_map"`
	FillableColumns []string                     `json:"fillable_columns"`
	Fingerprints    map[string]ColumnFingerprint `json:"fingerprints"`
	Verifications   map[string]VerifiedLabel     `json:"verifications"`
}

// Header returns the raw header last observed for a column key.
func (r *SheetRecord) Header(column string) string {
	return r.Headers[column]
}

// ColumnKeys lists fingerprinted column keys in deterministic order.
func (r *SheetRecord) ColumnKeys() []string {
	keys := make([]string, 0, len(r.Fingerprints))
	for key := range r.Fingerprints {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// HeaderVariants returns the canonical variants recorded for a column's
// header, including the normalized header itself.
func (r *SheetRecord) HeaderVariants(column string) []string {
	header, ok := r.Headers[column]
	if !ok {
		return nil
	}
	return r.HeaderMap[header]
}

// IsFillable reports whether a column key is in the fillable set.
func (r *SheetRecord) IsFillable(column string) bool {
	for _, key := range r.FillableColumns {
		if key == column {
			return true
		}
	}
	return false
}

// PatternStore is the learned knowledge base: one record per sheet key.
// The trainer is the sole writer; identification borrows a read-only view.
type PatternStore struct {
	Version   int                     `json:"version"`
	UpdatedAt time.Time               `json:"updated_at"`
	Sheets    map[string]*SheetRecord `json:"sheets"`
}

func NewPatternStore() *PatternStore {
	return &PatternStore{Sheets: make(map[string]*SheetRecord)}
}

// Merge folds one training observation into the store. Re-training the
// same column averages fingerprints weighted by observation count instead
// of overwriting, and fillable membership is recomputed from the merged
// signal so repeated identical observations are stable.
func (s *PatternStore) Merge(sheetKey, columnKey, rawHeader string, fp ColumnFingerprint, label *VerifiedLabel, cfg ScoringConfig) error {
	sheetKey = strings.TrimSpace(sheetKey)
	columnKey = strings.TrimSpace(columnKey)
	if sheetKey == "" || columnKey == "" {
		return WrapError(ErrInvalidInput, "merge pattern",
			fmt.Errorf("empty sheet or column key (sheet=%q column=%q)", sheetKey, columnKey))
	}
	if fp.Observations < 1 {
		fp.Observations = 1
	}

	record, ok := s.Sheets[sheetKey]
	if !ok {
		record = &SheetRecord{
			SheetKey:      sheetKey,
			Headers:       make(map[string]string),
			HeaderMap:     make(map[string][]string),
			Fingerprints:  make(map[string]ColumnFingerprint),
			Verifications: make(map[string]VerifiedLabel),
		}
		s.Sheets[sheetKey] = record
	}

	merged := fp
	if existing, ok := record.Fingerprints[columnKey]; ok {
		merged = MergeFingerprints(existing, fp, cfg.AffixTopK)
	}
	record.Fingerprints[columnKey] = merged

	if header := strings.TrimSpace(rawHeader); header != "" {
		record.Headers[columnKey] = header
		variants := record.HeaderMap[header]
		variants = appendVariant(variants, NormalizeHeader(header))
		if label != nil {
			variants = appendVariant(variants, NormalizeHeader(label.Label))
		}
		record.HeaderMap[header] = variants
	}

	if label != nil {
		existing, ok := record.Verifications[columnKey]
		if !ok || label.Confidence > existing.Confidence {
			record.Verifications[columnKey] = *label
		}
	}

	fillable := cfg.FillScore(merged.FillSignal) >= cfg.FillableThreshold
	record.setFillable(columnKey, fillable)
	return nil
}

func (r *SheetRecord) setFillable(columnKey string, fillable bool) {
	idx := sort.SearchStrings(r.FillableColumns, columnKey)
	present := idx < len(r.FillableColumns) && r.FillableColumns[idx] == columnKey
	switch {
	case fillable && !present:
		r.FillableColumns = append(r.FillableColumns, "")
		copy(r.FillableColumns[idx+1:], r.FillableColumns[idx:])
		r.FillableColumns[idx] = columnKey
	case !fillable && present:
		r.FillableColumns = append(r.FillableColumns[:idx], r.FillableColumns[idx+1:]...)
	}
}

// normalizeColumnSet sorts and dedupes a column-key list in place, so it
// behaves as the set setFillable's binary search expects.
func normalizeColumnSet(columns []string) []string {
	if len(columns) < 2 {
		return columns
	}
	sort.Strings(columns)
	out := columns[:1]
	for _, column := range columns[1:] {
		if column != out[len(out)-1] {
			out = append(out, column)
		}
	}
	return out
}

func appendVariant(variants []string, variant string) []string {
	if variant == "" {
		return variants
	}
	for _, existing := range variants {
		if existing == variant {
			return variants
		}
	}
	variants = append(variants, variant)
	sort.Strings(variants)
	return variants
}

// Sheet returns the record for a sheet key.
func (s *PatternStore) Sheet(sheetKey string) (*SheetRecord, error) {
	record, ok := s.Sheets[sheetKey]
	if !ok {
		return nil, fmt.Errorf("get sheet %q: %w", sheetKey, ErrSheetNotFound)
	}
	return record, nil
}

// SheetKeys lists sheet keys in deterministic order.
func (s *PatternStore) SheetKeys() []string {
	keys := make([]string, 0, len(s.Sheets))
	for key := range s.Sheets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Records lists all sheet records ordered by sheet key.
func (s *PatternStore) Records() []*SheetRecord {
	records := make([]*SheetRecord, 0, len(s.Sheets))
	for _, key := range s.SheetKeys() {
		records = append(records, s.Sheets[key])
	}
	return records
}

// BumpVersion marks one committed training run.
func (s *PatternStore) BumpVersion() {
	s.Version++
	s.UpdatedAt = time.Now().UTC()
}

// MergeStore folds every record of other into s. Columns present on both
// sides get their fingerprints merged the same way repeated training does;
// header variants are unioned. Versions do not add up; the caller bumps
// once to mark the merge commit.
func (s *PatternStore) MergeStore(other *PatternStore, cfg ScoringConfig) error {
	if other == nil {
		return nil
	}
	for _, sheetKey := range other.SheetKeys() {
		record := other.Sheets[sheetKey]
		for _, columnKey := range record.ColumnKeys() {
			fp := record.Fingerprints[columnKey]
			var label *VerifiedLabel
			if verification, ok := record.Verifications[columnKey]; ok {
				label = &verification
			}
			if err := s.Merge(sheetKey, columnKey, record.Headers[columnKey], fp, label, cfg); err != nil {
				return err
			}
		}

		merged, ok := s.Sheets[sheetKey]
		if !ok {
			continue
		}
		for header, variants := range record.HeaderMap {
			union := merged.HeaderMap[header]
			for _, variant := range variants {
				union = appendVariant(union, variant)
			}
			merged.HeaderMap[header] = union
		}
	}
	return nil
}

// Validate checks the schema invariants of loaded store data. Any
// violation is a corrupt-store condition naming the offending sheet and
// column.
func (s *PatternStore) Validate() error {
	if s.Version < 0 {
		return WrapError(ErrCorruptStore, "validate store", fmt.Errorf("negative version %d", s.Version))
	}
	for _, key := range s.SheetKeys() {
		record := s.Sheets[key]
		if record == nil {
			return WrapError(ErrCorruptStore, "validate store", fmt.Errorf("sheet %q: nil record", key))
		}
		if record.SheetKey != "" && record.SheetKey != key {
			return WrapError(ErrCorruptStore, "validate store",
				fmt.Errorf("sheet %q: record claims key %q", key, record.SheetKey))
		}
		for column, fp := range record.Fingerprints {
			if err := fp.validate(); err != nil {
				return WrapError(ErrCorruptStore, "validate store",
					fmt.Errorf("sheet %q column %q: %w", key, column, err))
			}
		}
		for _, column := range record.FillableColumns {
			if _, ok := record.Fingerprints[column]; !ok {
				return WrapError(ErrCorruptStore, "validate store",
					fmt.Errorf("sheet %q: fillable column %q has no fingerprint", key, column))
			}
		}
		for column, verification := range record.Verifications {
			if verification.Confidence < 0 || verification.Confidence > 1 {
				return WrapError(ErrCorruptStore, "validate store",
					fmt.Errorf("sheet %q column %q: confidence %v outside [0,1]", key, column, verification.Confidence))
			}
			if !verification.Method.Known() {
				return WrapError(ErrCorruptStore, "validate store",
					fmt.Errorf("sheet %q column %q: unknown verification method %q", key, column, verification.Method))
			}
		}
	}
	return nil
}

// Serialize renders the store as stable, human-diffable JSON.
func (s *PatternStore) Serialize() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize pattern store: %w", err)
	}
	return data, nil
}

// DeserializePatternStore parses and validates a serialized store.
// Malformed payloads surface as corrupt-store errors, never as silently
// coerced records.
func DeserializePatternStore(data []byte) (*PatternStore, error) {
	if len(data) == 0 {
		return nil, WrapError(ErrCorruptStore, "deserialize pattern store", errors.New("empty payload"))
	}
	var store PatternStore
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, WrapError(ErrCorruptStore, "deserialize pattern store", err)
	}
	if store.Sheets == nil {
		store.Sheets = make(map[string]*SheetRecord)
	}
	for _, record := range store.Sheets {
		if record == nil {
			continue
		}
		if record.Headers == nil {
			record.Headers = make(map[string]string)
		}
		if record.HeaderMap == nil {
			record.HeaderMap = make(map[string][]string)
		}
		if record.Fingerprints == nil {
			record.Fingerprints = make(map[string]ColumnFingerprint)
		}
		if record.Verifications == nil {
			record.Verifications = make(map[string]VerifiedLabel)
		}
		// Writers emit the set sorted, but the schema does not promise an
		// order and hand-edited stores carry duplicates.
		record.FillableColumns = normalizeColumnSet(record.FillableColumns)
	}
	if err := store.Validate(); err != nil {
		return nil, err
	}
	return &store, nil
}

// StoreStats is the aggregate view surfaced by the API, CLI and MCP tools.
type StoreStats struct {
	Version         int       `json:"version"`
	UpdatedAt       time.Time `json:"updated_at"`
	Sheets          int       `json:"sheets"`
	Columns         int       `json:"columns"`
	FillableColumns int       `json:"fillable_columns"`
	Verifications   int       `json:"verifications"`
}

func (s *PatternStore) Stats() StoreStats {
	stats := StoreStats{
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
		Sheets:    len(s.Sheets),
	}
	for _, record := range s.Sheets {
		stats.Columns += len(record.Fingerprints)
		stats.FillableColumns += len(record.FillableColumns)
		stats.Verifications += len(record.Verifications)
	}
	return stats
}
