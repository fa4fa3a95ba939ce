package usecase

import (
	"regexp"
	"sort"
	"strings"
)

// Construction code patterns: wall/assembly types (W2A, A-2), R-values
// (R-10), STC ratings (STC 36), fire ratings (1H, 45MIN).
var labelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z]\d+[A-Z]?\b`),
	regexp.MustCompile(`\b[A-Z]-\d+\b`),
	regexp.MustCompile(`\bSTC\s*\d+\b`),
	regexp.MustCompile(`\b\d+H\b|\b\d+MIN\b`),
}

// ExtractLabels pulls construction labels out of free text so exact-label
// table-row matches can be boosted.
func ExtractLabels(text string) []string {
	if text == "" {
		return nil
	}
	upper := strings.ToUpper(text)

	seen := make(map[string]struct{})
	for _, pattern := range labelPatterns {
		for _, match := range pattern.FindAllString(upper, -1) {
			seen[match] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	out := make([]string, 0, len(seen))
	for label := range seen {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
