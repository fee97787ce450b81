package pipeline

import (
	"regexp"
	"strings"
)

type DetectResult struct {
	IsRequest bool
	Score     float64
	Reason    string
}

var (
	detectKeywords = []string{"stock request", "parts request", "requisition", "please issue", "need", "qty", "p/n", "part number", "rrp"}
	qtyLikePattern = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:ea|each|pcs|pc|sets?|kits?|x)\b|\bqty\s*[:=]?\s*\d+`)
)

func DetectStockRequest(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	qtyHits := len(qtyLikePattern.FindAllStringIndex(text, -1))
	if qtyHits >= 2 {
		score += 0.4
	} else if qtyHits == 1 {
		score += 0.2
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".xlsx") || strings.HasSuffix(ln, ".pdf") {
			score += 0.25
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isRequest := score >= 0.45
	reason := "rules_negative"
	if isRequest {
		reason = "rules_positive"
	}

	return DetectResult{IsRequest: isRequest, Score: score, Reason: reason}
}
