package equipment

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	noisePattern   = regexp.MustCompile(`(?i)\bge(\d|\b)`)
	nonWordPattern = regexp.MustCompile(`[^A-Za-z0-9\s]`)
)

// run is a closed interval of equipment numbers.
type run struct {
	first, last int64
}

func (r run) String() string {
	if r.first == r.last {
		return strconv.FormatInt(r.first, 10)
	}
	return strconv.FormatInt(r.first, 10) + "-" + strconv.FormatInt(r.last, 10)
}

// Normalize renders a stored equipment list in canonical form: numbers
// collapsed into maximal ascending runs, followed by the distinct
// descriptions title-cased and sorted. The organisational "GE" prefix is
// stripped first.
func Normalize(raw string) string {
	cleaned := noisePattern.ReplaceAllString(raw, "${1}")

	var runs []run
	descriptions := map[string]struct{}{}
	for _, item := range strings.Split(cleaned, ",") {
		item = strings.TrimSpace(item)
		if r, ok := numericItem(item); ok {
			runs = append(runs, r)
			continue
		}
		if rangePattern.MatchString(item) {
			if start, end, ok := parseRange(item); ok {
				if start <= end {
					runs = append(runs, run{first: start, last: end})
				}
				continue
			}
		}
		desc := strings.TrimSpace(nonWordPattern.ReplaceAllString(item, ""))
		if desc == "" {
			continue
		}
		descriptions[strings.ToLower(desc)] = struct{}{}
	}

	segments := make([]string, 0, 2)
	if merged := mergeRuns(runs); len(merged) > 0 {
		parts := make([]string, 0, len(merged))
		for _, r := range merged {
			parts = append(parts, r.String())
		}
		segments = append(segments, strings.Join(parts, ", "))
	}
	if len(descriptions) > 0 {
		titled := make([]string, 0, len(descriptions))
		for desc := range descriptions {
			titled = append(titled, titleCase(desc))
		}
		sort.Strings(titled)
		segments = append(segments, strings.Join(titled, ", "))
	}
	return strings.Join(segments, ", ")
}

// NormalizeValue coerces v to a string the way stored values are rendered
// (slices joined with commas, nil as empty) and normalizes it.
func NormalizeValue(v any) string {
	return Normalize(coerce(v))
}

func coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, coerce(item))
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func numericItem(item string) (run, bool) {
	if !numberPattern.MatchString(item) {
		return run{}, false
	}
	n, err := strconv.ParseInt(item, 10, 64)
	if err != nil {
		return run{}, false
	}
	return run{first: n, last: n}, true
}

func mergeRuns(runs []run) []run {
	if len(runs) == 0 {
		return nil
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].first != runs[j].first {
			return runs[i].first < runs[j].first
		}
		return runs[i].last < runs[j].last
	})

	out := []run{runs[0]}
	for _, r := range runs[1:] {
		cur := &out[len(out)-1]
		if cur.last == maxInt64 || r.first <= cur.last+1 {
			if r.last > cur.last {
				cur.last = r.last
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

const maxInt64 = int64(^uint64(0) >> 1)

// titleCase upper-cases the first letter of every whitespace separated
// word, keeping the separators as they are.
func titleCase(s string) string {
	b := []byte(s)
	start := true
	for i, c := range b {
		switch {
		case c == ' ' || ('\t' <= c && c <= '\r'):
			start = true
		case start:
			if 'a' <= c && c <= 'z' {
				b[i] = c - 'a' + 'A'
			}
			start = false
		}
	}
	return string(b)
}
