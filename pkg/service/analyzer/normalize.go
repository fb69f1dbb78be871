package analyzer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalize folds compatibility characters (full-width letters, ligatures) and
// collapses whitespace so that model prompts and keyword matching see the same text.
// The result is cut to maxRunes when maxRunes > 0.
func normalize(text string, maxRunes int) string {
	folded := norm.NFKC.String(text)
	out := strings.Join(strings.Fields(folded), " ")

	if maxRunes > 0 {
		runes := []rune(out)
		if len(runes) > maxRunes {
			out = string(runes[:maxRunes])
		}
	}
	return out
}

// dedupe removes empty and repeated names, keeping the first spelling
func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
