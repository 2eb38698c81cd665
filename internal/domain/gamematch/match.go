// Package gamematch resolves free-form event titles to catalog games.
package gamematch

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/okian/gmassign/internal/domain/model"
)

// Confidence levels for the match precedence.
const (
	ConfidenceExact          = 100.0
	ConfidenceTitleContains  = 95.0
	ConfidencePatternContain = 90.0
	ConfidenceOverlapCeiling = 80.0

	shortWordLen = 2
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Match is the best catalog entry for a title. An empty GameID means no game
// was identified and Confidence is 0.
type Match struct {
	GameID          string  `json:"game_id"`
	GameName        string  `json:"game_name"`
	AverageDuration int     `json:"average_duration"`
	Confidence      float64 `json:"confidence"`
}

// Found reports whether a game was identified.
func (m Match) Found() bool { return m.GameID != "" }

// Normalize lowercases, strips diacritics, collapses every run of
// non-alphanumerics to one space and trims.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(stripped), " "))
}

// variants returns, without duplicates: the string itself, the string with
// words of two letters or fewer removed, that minus its last word, and the
// first word.
func variants(normalized string) []string {
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return nil
	}
	long := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > shortWordLen {
			long = append(long, w)
		}
	}
	candidates := []string{normalized, strings.Join(long, " ")}
	if len(long) > 1 {
		candidates = append(candidates, strings.Join(long[:len(long)-1], " "))
	}
	candidates = append(candidates, words[0])

	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// score rates one title variant against one pattern variant.
func score(title, pattern string) float64 {
	switch {
	case title == pattern:
		return ConfidenceExact
	case strings.Contains(title, pattern):
		return ConfidenceTitleContains
	case strings.Contains(pattern, title):
		return ConfidencePatternContain
	}
	tw := strings.Fields(title)
	pw := strings.Fields(pattern)
	if len(tw) == 0 || len(pw) == 0 {
		return 0
	}
	inPattern := make(map[string]struct{}, len(pw))
	for _, w := range pw {
		inPattern[w] = struct{}{}
	}
	overlap := 0
	for _, w := range tw {
		if _, ok := inPattern[w]; ok {
			overlap++
		}
	}
	return min(ConfidenceOverlapCeiling, float64(overlap)/float64(max(len(tw), len(pw)))*ConfidenceOverlapCeiling)
}

// bestPair is the highest score across all variant pairs, stopping at exact.
func bestPair(titleVariants, patternVariants []string) float64 {
	best := 0.0
	for _, t := range titleVariants {
		for _, p := range patternVariants {
			s := score(t, p)
			if s >= ConfidenceExact {
				return s
			}
			best = max(best, s)
		}
	}
	return best
}

// Best picks the single highest-confidence mapping for title. A mapping whose
// pattern normalizes to exactly the title always wins; otherwise ties keep
// catalog order.
func Best(title string, mappings []model.GameMapping) Match {
	normTitle := Normalize(title)
	if normTitle == "" {
		return Match{}
	}
	for _, m := range mappings {
		if Normalize(m.Pattern) == normTitle {
			return fromMapping(m, ConfidenceExact)
		}
	}

	titleVariants := variants(normTitle)
	var (
		best      model.GameMapping
		bestScore float64
	)
	for _, m := range mappings {
		s := bestPair(titleVariants, variants(Normalize(m.Pattern)))
		if s > bestScore {
			best, bestScore = m, s
			if s >= ConfidenceExact {
				break
			}
		}
	}
	if bestScore <= 0 {
		return Match{}
	}
	return fromMapping(best, bestScore)
}

func fromMapping(m model.GameMapping, confidence float64) Match {
	return Match{
		GameID:          m.GameID,
		GameName:        m.GameName,
		AverageDuration: m.AverageDuration,
		Confidence:      confidence,
	}
}
