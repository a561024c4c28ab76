package extract

import (
	"strings"
	"unicode/utf8"
)

// DefaultWindowSize bounds how far past a label the value, unit and delta may appear
const DefaultWindowSize = 4000

// LocateLabel returns the byte index of the first case-insensitive occurrence of label.
// Multiple stations using the same label are not disambiguated.
func LocateLabel(text, label string) (int, bool) {
	label = strings.TrimSpace(label)
	n := len(label)
	if n == 0 {
		return -1, false
	}
	for i := 0; i+n <= len(text); i++ {
		if strings.EqualFold(text[i:i+n], label) {
			return i, true
		}
	}
	return -1, false
}

// Window returns up to size bytes of text starting right after the label found at idx
func Window(text string, idx int, label string, size int) string {
	start := idx + len(strings.TrimSpace(label))
	if start > len(text) {
		return ""
	}
	end := start + size
	if end >= len(text) {
		return text[start:]
	}
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return text[start:end]
}

// UnitMatch is the token span of a located unit
type UnitMatch struct {
	Start int    // Index of the first matched token
	End   int    // Index one past the last matched token
	Unit  string // Canonical unit
}

// LocateUnit finds the earliest token sequence matching any candidate unit.
// Matching is case-insensitive and whole-token, so "in" never matches "minutes".
// When several candidates match at the same position the longest wins.
func LocateUnit(tokens []Token, candidates []string) (UnitMatch, bool) {
	patterns := make([][]Token, 0, len(candidates))
	for _, c := range candidates {
		if p := Tokenize(c); len(p) > 0 {
			patterns = append(patterns, p)
		}
	}

	for i := range tokens {
		best := -1
		for pi, p := range patterns {
			if matchesAt(tokens, i, p) && (best < 0 || len(p) > len(patterns[best])) {
				best = pi
			}
		}
		if best >= 0 {
			end := i + len(patterns[best])
			var parts []string
			for _, t := range tokens[i:end] {
				parts = append(parts, t.Text)
			}
			return UnitMatch{Start: i, End: end, Unit: CanonicalUnit(strings.Join(parts, " "))}, true
		}
	}

	return UnitMatch{}, false
}

func matchesAt(tokens []Token, i int, pattern []Token) bool {
	if i+len(pattern) > len(tokens) {
		return false
	}
	for j, p := range pattern {
		t := tokens[i+j]
		if t.Kind != p.Kind || !strings.EqualFold(t.Text, p.Text) {
			return false
		}
	}
	return true
}

// CanonicalUnit maps unit synonyms onto one spelling: any acre-foot variant
// becomes "ac-ft", any cfs variant "cfs", ft/feet "ft" and in/inches "in".
func CanonicalUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	compact := strings.NewReplacer(" ", "", "-", "", ".", "", "_", "").Replace(u)

	switch {
	case compact == "":
		return ""
	case strings.HasPrefix(compact, "ac"):
		return "ac-ft"
	case strings.Contains(compact, "cfs"):
		return "cfs"
	case compact == "ft" || compact == "feet" || compact == "foot":
		return "ft"
	case compact == "in" || compact == "inch" || compact == "inches":
		return "in"
	}
	return u
}
