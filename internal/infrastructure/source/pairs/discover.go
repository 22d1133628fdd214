package pairs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// Pair is one before/after document pair found on disk, keyed by the
// normalized file stem both sides share.
type Pair struct {
	Key        string
	BeforePath string
	AfterPath  string
}

// Report lists what discovery found. Unpaired files are reported so the
// operator can fix naming; they never fail the run.
type Report struct {
	Pairs          []Pair
	UnpairedBefore []string
	UnpairedAfter  []string
}

// DefaultBeforeGlob matches every supported document under the root; the
// before/after split then comes from filename markers.
const DefaultBeforeGlob = "**/*.{json,xlsx}"

var (
	beforeMarkers = []string{"before", "empty", "blank"}
	afterMarkers  = []string{"after", "filled", "fill"}
)

// Discover walks root with the given doublestar glob and pairs before-side
// files with after-side files whose normalized stems match. An empty glob
// uses DefaultBeforeGlob.
func Discover(root, glob string) (Report, error) {
	if glob == "" {
		glob = DefaultBeforeGlob
	}

	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, glob)
	if err != nil {
		return Report{}, domain.WrapError(domain.ErrInvalidConfig, "pair discovery glob",
			fmt.Errorf("glob %q: %w", glob, err))
	}

	befores := make(map[string]string)
	afters := make(map[string]string)
	var report Report

	for _, match := range matches {
		info, err := fs.Stat(fsys, match)
		if err != nil || info.IsDir() {
			continue
		}

		path := filepath.Join(root, filepath.FromSlash(match))
		side := classifySide(match)
		key := pairKey(match)
		switch side {
		case sideBefore:
			befores[key] = path
		case sideAfter:
			afters[key] = path
		}
	}

	for key, beforePath := range befores {
		afterPath, ok := afters[key]
		if !ok {
			report.UnpairedBefore = append(report.UnpairedBefore, beforePath)
			continue
		}
		report.Pairs = append(report.Pairs, Pair{Key: key, BeforePath: beforePath, AfterPath: afterPath})
		delete(afters, key)
	}
	for _, afterPath := range afters {
		report.UnpairedAfter = append(report.UnpairedAfter, afterPath)
	}

	sort.Slice(report.Pairs, func(i, j int) bool { return report.Pairs[i].Key < report.Pairs[j].Key })
	sort.Strings(report.UnpairedBefore)
	sort.Strings(report.UnpairedAfter)
	return report, nil
}

type side int

const (
	sideNone side = iota
	sideBefore
	sideAfter
)

func classifySide(path string) side {
	tokens := stemTokens(path)
	isBefore := containsAny(tokens, beforeMarkers)
	isAfter := containsAny(tokens, afterMarkers)
	switch {
	case isBefore && !isAfter:
		return sideBefore
	case isAfter && !isBefore:
		return sideAfter
	default:
		return sideNone
	}
}

// pairKey strips the side markers from the stem so "rates_before" and
// "rates_after" collapse onto the same key.
func pairKey(path string) string {
	var kept []string
	for _, token := range stemTokens(path) {
		if containsAny([]string{token}, beforeMarkers) || containsAny([]string{token}, afterMarkers) {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

func stemTokens(path string) []string {
	base := filepath.Base(filepath.FromSlash(path))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	for _, r := range stem {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func containsAny(tokens, markers []string) bool {
	for _, token := range tokens {
		for _, marker := range markers {
			if token == marker {
				return true
			}
		}
	}
	return false
}
