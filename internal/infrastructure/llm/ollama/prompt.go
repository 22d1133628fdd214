package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

const (
	maxPromptSamples  = 5
	maxPromptSiblings = 12
)

func buildEnhancementPrompt(rawHeader string, octx domain.OracleContext) string {
	var b strings.Builder

	b.WriteString(`You are a spreadsheet header classifier for tariff and pricing sheets.
Map the header to one canonical business label in snake_case, for example:
min_charge, max_charge, rate, currency, unit, origin, destination, charge_code, effective_date, remarks.
Return strict JSON object with keys:
label (string, snake_case), confidence (number from 0 to 1).
No markdown, no extra keys.

Header:
`)
	b.WriteString(rawHeader)
	b.WriteString("\n")

	if octx.SheetName != "" {
		fmt.Fprintf(&b, "\nSheet name:\n%s\n", octx.SheetName)
	}
	if samples := truncateList(octx.SampleValues, maxPromptSamples); len(samples) > 0 {
		fmt.Fprintf(&b, "\nSample values from the column:\n%s\n", strings.Join(samples, ", "))
	}
	if siblings := truncateList(octx.SiblingHeaders, maxPromptSiblings); len(siblings) > 0 {
		fmt.Fprintf(&b, "\nNeighboring headers on the sheet:\n%s\n", strings.Join(siblings, ", "))
	}
	return b.String()
}

func truncateList(values []string, limit int) []string {
	if len(values) <= limit {
		return values
	}
	return values[:limit]
}
