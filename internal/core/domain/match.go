package domain

// MatchBasis names the matcher tier that produced a candidate.
type MatchBasis string

const (
	BasisExact      MatchBasis = "exact"
	BasisCanonical  MatchBasis = "canonical"
	BasisFuzzy      MatchBasis = "fuzzy"
	BasisStructural MatchBasis = "structural"
)

// Priority orders tiers for tie-breaking; lower wins.
func (b MatchBasis) Priority() int {
	switch b {
	case BasisExact:
		return 0
	case BasisCanonical:
		return 1
	case BasisFuzzy:
		return 2
	case BasisStructural:
		return 3
	default:
		return 4
	}
}

// Candidate is one scored match proposal from the pattern store.
type Candidate struct {
	SheetKey       string     `json:"sheet_key"`
	ColumnKey      string     `json:"column_key"`
	StoredHeader   string     `json:"stored_header,omitempty"`
	Label          string     `json:"label,omitempty"`
	Score          float64    `json:"score"`
	Basis          MatchBasis `json:"basis"`
	OracleAssisted bool       `json:"oracle_assisted,omitempty"`
}

// Decision is the per-column verdict of the decision policy.
type Decision string

const (
	DecisionFill    Decision = "fill"
	DecisionUnknown Decision = "unknown"
)

// IdentificationResult is the final per-column outcome, with enough source
// attribution to audit why the engine decided what it decided.
type IdentificationResult struct {
	Position            int      `json:"position"`
	SourceHeader        string   `json:"source_header"`
	MatchedLabel        string   `json:"matched_label,omitempty"`
	MatchedSheet        string   `json:"matched_sheet,omitempty"`
	MatchedColumn       string   `json:"matched_column,omitempty"`
	Confidence          float64  `json:"confidence"`
	Method              string   `json:"method,omitempty"`
	Decision            Decision `json:"decision"`
	ContributingSources int      `json:"contributing_sources"`
}

// SheetIdentification groups one sheet's per-column results.
type SheetIdentification struct {
	SheetName      string                 `json:"sheet_name"`
	Threshold      float64                `json:"threshold"`
	Results        []IdentificationResult `json:"results"`
	FillColumns    int                    `json:"fill_columns"`
	OracleDegraded bool                   `json:"oracle_degraded,omitempty"`
}

// Enhancement is the oracle's canonical reading of a raw header. The
// (Enhancement, error) pair is the tagged Enhanced/Unavailable result:
// unavailability travels as an ErrOracleUnavailable-kind error.
type Enhancement struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// OracleContext gives the oracle the surroundings of the header being
// classified.
type OracleContext struct {
	SheetName      string   `json:"sheet_name,omitempty"`
	SampleValues   []string `json:"sample_values,omitempty"`
	SiblingHeaders []string `json:"sibling_headers,omitempty"`
}
