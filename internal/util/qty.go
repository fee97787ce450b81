package util

import (
	"regexp"
	"strconv"
	"strings"
)

const unitAlternation = `ea|each|pcs|pc|sets?|kits?|ltrs?|l|gal|kg|m|box(?:es)?|rolls?|cans?`

var (
	unitPattern     = regexp.MustCompile(`(?i)\b(` + unitAlternation + `)\b`)
	numberPattern   = regexp.MustCompile(`(?:^|[^0-9A-Za-z.,/-])(\d{1,3}(?:[ ,]\d{3})+(?:\.\d+)?|\d+(?:[.,]\d+)?)\b`)
	withUnitPattern = regexp.MustCompile(`(?i)(?:^|[^0-9A-Za-z.,/-])(\d{1,3}(?:[ ,]\d{3})+(?:\.\d+)?|\d+(?:[.,]\d+)?)\s*(` + unitAlternation + `)\b`)
	qtyLabelPattern = regexp.MustCompile(`(?i)\bqty\s*[:=]?\s*(\d+(?:[.,]\d+)?)`)
	thousandsComma  = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	thousandsSpace  = regexp.MustCompile(`^\d{1,3}(?: \d{3})+(?:\.\d+)?$`)
)

type ParsedQty struct {
	Qty    *float64
	Unit   *string
	QtyRaw *string
}

// ParseQty finds the quantity in a request line: an explicit "qty: N" wins,
// then the last number followed by a unit, then the last free-standing number.
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, "\u00A0", " ")

	qtyRaw := ""
	qtyToken := ""

	if m := qtyLabelPattern.FindStringSubmatch(line); len(m) > 1 {
		qtyRaw = strings.TrimSpace(m[0])
		qtyToken = m[1]
	} else if wm := withUnitPattern.FindAllStringSubmatch(line, -1); len(wm) > 0 {
		last := wm[len(wm)-1]
		qtyRaw = strings.TrimSpace(last[1] + " " + last[2])
		qtyToken = strings.TrimSpace(last[1])
	} else if nm := numberPattern.FindAllStringSubmatch(line, -1); len(nm) > 0 {
		last := nm[len(nm)-1]
		qtyRaw = strings.TrimSpace(last[1])
		qtyToken = qtyRaw
	}

	var qtyPtr *float64
	if qtyToken != "" {
		if parsed, err := strconv.ParseFloat(normalizeNumericToken(qtyToken), 64); err == nil {
			qtyPtr = FloatPtr(parsed)
		}
	}

	var unitPtr *string
	if um := unitPattern.FindStringSubmatch(line); len(um) > 1 {
		unitPtr = StringPtr(NormalizeUnit(um[1]))
	}

	var qtyRawPtr *string
	if qtyRaw != "" {
		qtyRawPtr = &qtyRaw
	}

	return ParsedQty{Qty: qtyPtr, Unit: unitPtr, QtyRaw: qtyRawPtr}
}

func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "ea", "each", "pcs", "pc":
		return "ea"
	case "l", "ltr", "ltrs":
		return "l"
	case "set", "sets":
		return "set"
	case "kit", "kits":
		return "kit"
	case "box", "boxes":
		return "box"
	case "roll", "rolls":
		return "roll"
	case "can", "cans":
		return "can"
	default:
		return u
	}
}

func normalizeNumericToken(token string) string {
	compact := strings.TrimSpace(token)
	if thousandsSpace.MatchString(compact) {
		return strings.ReplaceAll(compact, " ", "")
	}
	if thousandsComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func IntPtr(v int) *int { return &v }
