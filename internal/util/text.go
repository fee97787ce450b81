package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reQuotes     = regexp.MustCompile(`["'` + "`" + `«»]`)
	reNonAllowed = regexp.MustCompile(`[^A-Z0-9\-/\s.]`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// NormalizeText folds a description for comparison: NFKC, upper case, only
// letters, digits and the separators part numbers use.
func NormalizeText(input string) string {
	s := norm.NFKC.String(input)
	s = strings.ToUpper(s)
	repl := strings.NewReplacer("×", "X", "–", "-", "—", "-", "№", "NO ")
	s = repl.Replace(s)
	s = reQuotes.ReplaceAllString(s, " ")
	s = reNonAllowed.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func NormalizePartNumber(input string) string {
	s := strings.ToUpper(norm.NFKC.String(input))
	s = strings.NewReplacer("–", "-", "—", "-").Replace(s)
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '/' || r == '.' {
			out.WriteRune(r)
		}
	}
	return strings.Trim(out.String(), "-/.")
}

func Tokenize(input string) []string {
	parts := strings.Split(NormalizeText(input), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

func LooksLikePartNumber(input string) bool {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) < 3 || strings.Contains(trimmed, " ") {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, r := range trimmed {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			hasLetter = true
		}
		if r >= '0' && r <= '9' {
			hasDigit = true
		}
	}
	return hasDigit && (hasLetter || strings.ContainsAny(trimmed, "-/"))
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	bigrams := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := bigrams(a)
	bPairs := bigrams(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	remaining := map[string]int{}
	for _, p := range bPairs {
		remaining[p]++
	}
	shared := 0
	for _, p := range aPairs {
		if remaining[p] > 0 {
			shared++
			remaining[p]--
		}
	}

	return float64(2*shared) / float64(len(aPairs)+len(bPairs))
}
