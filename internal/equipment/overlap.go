package equipment

import "strings"

// Overlaps reports whether two equipment specs share at least one token.
// Labels compare case-insensitively. An empty side never overlaps.
func Overlaps(a, b string, max int) (bool, error) {
	left, err := foldedTokens(a, max)
	if err != nil {
		return false, err
	}
	right, err := foldedTokens(b, max)
	if err != nil {
		return false, err
	}
	if len(left) > len(right) {
		left, right = right, left
	}
	for token := range left {
		if _, ok := right[token]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Tokens lists the lower-cased tokens of spec, the form used by the
// storage search index.
func Tokens(spec string, max int) ([]string, error) {
	folded, err := foldedTokens(spec, max)
	if err != nil {
		return nil, err
	}
	return Set(folded).Sorted(), nil
}

// foldedTokens is the lower-cased token set of spec. Descriptions that
// Expand drops because they carry digits ("Boeing 737") are kept whole,
// as they read in the canonical form.
func foldedTokens(spec string, max int) (map[string]struct{}, error) {
	set, err := ExpandLimit(spec, max)
	if err != nil {
		return nil, err
	}
	folded := make(map[string]struct{}, set.Len())
	for token := range set {
		folded[strings.ToLower(token)] = struct{}{}
	}
	for _, item := range strings.Split(Normalize(spec), ", ") {
		if item == "" || expandable(item) {
			continue
		}
		folded[strings.ToLower(item)] = struct{}{}
	}
	return folded, nil
}

func expandable(item string) bool {
	return labelPattern.MatchString(item) || rangePattern.MatchString(item) || numberPattern.MatchString(item)
}
