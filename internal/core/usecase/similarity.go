package usecase

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// HeaderSimilarity scores two raw headers in [0,1]. It blends character
// level edit distance with stemmed token overlap and keeps whichever reads
// the pair as closer, so "min" still resembles "min_charge" while "rate"
// and "rote" stay close on spelling alone.
func HeaderSimilarity(a, b string) float64 {
	na := domain.NormalizeHeader(a)
	nb := domain.NormalizeHeader(b)
	if na == "" || nb == "" {
		if na == nb {
			return 1
		}
		return 0
	}
	if na == nb {
		return 1
	}
	lev := levenshteinSimilarity(na, nb)
	dice := diceCoefficient(stemmedTokenSet(na), stemmedTokenSet(nb))
	if dice > lev {
		return dice
	}
	return lev
}

// levenshteinDistance is the classic two-row edit distance over runes.
func levenshteinDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func levenshteinSimilarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(longest)
}

func diceCoefficient(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for token := range a {
		if _, ok := b[token]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}

func stemmedTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[stemToken(token)] = struct{}{}
	}
	return out
}

// stemToken folds inflected header words ("charges" vs "charge") onto one
// stem. Tokens the stemmer rejects pass through unchanged.
func stemToken(token string) string {
	stemmed, err := snowball.Stem(token, "english", true)
	if err != nil || stemmed == "" {
		return token
	}
	return stemmed
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
