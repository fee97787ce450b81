// Package equipment parses the free-form equipment number lists attached to
// stock items, requests and receipts.
package equipment

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	labelPattern  = regexp.MustCompile(`^[A-Za-z\s]+$`)
	rangePattern  = regexp.MustCompile(`^(\d+)-(\d+)$`)
	numberPattern = regexp.MustCompile(`^\d+$`)
)

var ErrTooManyTokens = errors.New("equipment spec expands to too many tokens")

type Set map[string]struct{}

func (s Set) Len() int { return len(s) }

func (s Set) Has(token string) bool {
	_, ok := s[token]
	return ok
}

func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for token := range s {
		out = append(out, token)
	}
	return out
}

// Sorted returns numeric tokens by value first, then labels in byte order.
func (s Set) Sorted() []string {
	out := s.Slice()
	sort.Slice(out, func(i, j int) bool {
		a, aNum := tokenValue(out[i])
		b, bNum := tokenValue(out[j])
		switch {
		case aNum && bNum:
			if a != b {
				return a < b
			}
			return out[i] < out[j]
		case aNum != bNum:
			return aNum
		default:
			return out[i] < out[j]
		}
	})
	return out
}

func (s Set) Join(sep string) string {
	return strings.Join(s.Sorted(), sep)
}

// Expand turns a comma separated list of labels, integers and "a-b" ranges
// into the set of individual tokens. Items that fit none of those shapes are
// dropped, as are reversed ranges.
func Expand(spec string) Set {
	out := Set{}
	for _, item := range strings.Split(spec, ",") {
		expandItem(strings.TrimSpace(item), out)
	}
	return out
}

// ExpandLimit is Expand with an upper bound on the result size, checked
// before any range is materialized. max <= 0 disables the bound.
func ExpandLimit(spec string, max int) (Set, error) {
	if max > 0 {
		total := 0
		for _, item := range strings.Split(spec, ",") {
			total += itemSize(strings.TrimSpace(item))
			if total > max {
				return nil, ErrTooManyTokens
			}
		}
	}
	return Expand(spec), nil
}

func expandItem(item string, out Set) {
	switch {
	case labelPattern.MatchString(item):
		out[item] = struct{}{}
	case rangePattern.MatchString(item):
		start, end, ok := parseRange(item)
		if !ok {
			return
		}
		for n := start; n <= end; n++ {
			out[strconv.FormatInt(n, 10)] = struct{}{}
			if n == end {
				break
			}
		}
	case numberPattern.MatchString(item):
		out[item] = struct{}{}
	}
}

func itemSize(item string) int {
	switch {
	case labelPattern.MatchString(item):
		return 1
	case rangePattern.MatchString(item):
		start, end, ok := parseRange(item)
		if !ok || start > end {
			return 0
		}
		if end-start >= int64(^uint(0)>>2) {
			return int(^uint(0) >> 2)
		}
		return int(end-start) + 1
	case numberPattern.MatchString(item):
		return 1
	}
	return 0
}

func parseRange(item string) (int64, int64, bool) {
	m := rangePattern.FindStringSubmatch(item)
	if len(m) != 3 {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

func tokenValue(token string) (int64, bool) {
	if !numberPattern.MatchString(token) {
		return 0, false
	}
	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
