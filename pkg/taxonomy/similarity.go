package taxonomy

import (
	"fmt"
	"strings"
)

// SimilarityGuard decides whether a proposed category name duplicates an
// existing one. It runs before any category creation so near-synonyms are
// absorbed instead of fragmenting the taxonomy.
type SimilarityGuard interface {
	// Similar returns the existing name the candidate should be absorbed
	// into, with a human-readable reason, or ok=false when the candidate
	// is genuinely new.
	Similar(candidate string, existing []string) (match string, reason string, ok bool)
}

// synonymGroups are domain word families treated as equivalent for
// similarity checks.
var synonymGroups = [][]string{
	{"hardware", "components", "parts", "pieces", "elements", "component"},
	{"equipment", "tools", "instruments", "devices", "apparatus"},
	{"fastener", "fasteners", "connector", "connectors", "fastening"},
	{"material", "materials", "substance", "substances", "matter"},
	{"medical", "healthcare", "health", "clinical", "therapeutic"},
	{"dental", "tooth", "teeth", "oral", "orthodontic"},
	{"plate", "plates", "panel", "panels", "board", "boards"},
}

type heuristicGuard struct{}

// DefaultSimilarityGuard returns the word-overlap heuristic: exact
// case-insensitive match, 50% token overlap on significant words, synonym
// group overlap, and substring containment for long single words.
func DefaultSimilarityGuard() SimilarityGuard {
	return heuristicGuard{}
}

var _ SimilarityGuard = heuristicGuard{}

func (heuristicGuard) Similar(candidate string, existing []string) (string, string, bool) {
	candNorm := strings.ToLower(strings.TrimSpace(candidate))
	candWords := significantWords(candNorm)

	for _, name := range existing {
		existingNorm := strings.ToLower(strings.TrimSpace(name))
		existingWords := significantWords(existingNorm)

		if candNorm == existingNorm {
			return name, "exact match (case insensitive)", true
		}

		var common []string
		for _, w := range candWords {
			if containsWord(existingWords, w) {
				common = append(common, w)
			}
		}
		maxLen := len(candWords)
		if len(existingWords) > maxLen {
			maxLen = len(existingWords)
		}
		if len(common) > 0 && maxLen > 0 && float64(len(common))/float64(maxLen) >= 0.5 {
			return name, fmt.Sprintf("high word overlap: %s", strings.Join(common, ", ")), true
		}

		for _, group := range synonymGroups {
			candSyn := intersect(candWords, group)
			existingSyn := intersect(existingWords, group)
			if len(candSyn) > 0 && len(existingSyn) > 0 {
				return name, fmt.Sprintf("synonym overlap: %q matches %q",
					strings.Join(candSyn, ", "), strings.Join(existingSyn, ", ")), true
			}
		}

		// Substring containment, only for long single words so "Fast"
		// does not absorb "Fastener".
		if len(candWords) == 1 && len(existingWords) == 1 {
			cw, ew := candWords[0], existingWords[0]
			if (strings.Contains(cw, ew) && len(ew) > 4) || (strings.Contains(ew, cw) && len(cw) > 4) {
				return name, fmt.Sprintf("substring match: %q and %q", cw, ew), true
			}
		}
	}

	return "", "", false
}

// significantWords splits a normalized name, dropping words of length <= 2.
func significantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func intersect(words, group []string) []string {
	var out []string
	for _, w := range words {
		if containsWord(group, w) {
			out = append(out, w)
		}
	}
	return out
}
