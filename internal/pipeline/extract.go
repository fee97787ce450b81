package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"stockroom/internal"
	"stockroom/internal/equipment"
	"stockroom/internal/util"
)

var (
	ignorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^--+$`),
		regexp.MustCompile(`(?i)^(thanks|thank you|regards|best regards|cheers)\b`),
		regexp.MustCompile(`(?i)^(tel|phone|mob|fax)[:.\s]`),
		regexp.MustCompile(`(?i)^e-?mail[:\s]`),
		regexp.MustCompile(`(?i)^https?:`),
		regexp.MustCompile(`(?i)^(from|sent|to|cc|subject):`),
	}
	equipmentSuffix = regexp.MustCompile(`(?i)\s*[;(]?\s*\b(?:eq|equip|equipment|a/c|aircraft|tails?)\s*[:#]\s*([^)]*)\)?\s*$`)
	unitWords       = regexp.MustCompile(`(?i)\b(ea|each|pcs|pc|sets?|kits?|ltrs?|l|gal|kg|m|box(?:es)?|rolls?|cans?|x)\b`)
	separatorRuns   = regexp.MustCompile(`[;|]+`)
	spaceRuns       = regexp.MustCompile(`\s+`)
	hasLetters      = regexp.MustCompile(`[A-Za-z]`)
	hasDigit        = regexp.MustCompile(`\d`)
)

var (
	partHeaders        = []string{"part no", "part number", "part #", "p/n", "pn", "part"}
	descriptionHeaders = []string{"description", "desc", "nomenclature", "item name", "name"}
	qtyHeaders         = []string{"qty", "quantity", "q-ty"}
	unitHeaders        = []string{"uom", "unit"}
	equipmentHeaders   = []string{"equipment", "equip", "a/c", "aircraft", "tail", "effectivity"}
)

func ExtractLinesFromEmailRaw(raw []byte) ([]internal.RequestLine, string, string, []string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", nil, fmt.Errorf("read envelope: %w", err)
	}

	lines := make([]internal.RequestLine, 0)
	if env.Text != "" {
		lines = append(lines, parseEmailText(env.Text)...)
	}
	if env.HTML != "" {
		lines = append(lines, parseEmailHTMLTable(env.HTML)...)
	}

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)
		lower := strings.ToLower(filename)

		var extra []internal.RequestLine
		switch {
		case strings.HasSuffix(lower, ".xlsx"):
			extra, err = parseXLSX(att.Content)
		case strings.HasSuffix(lower, ".pdf"):
			extra, err = parsePDF(att.Content)
		default:
			continue
		}
		if err != nil {
			continue
		}
		for i := range extra {
			if extra[i].Meta == nil {
				extra[i].Meta = map[string]any{}
			}
			extra[i].Meta["attachment"] = filename
		}
		lines = append(lines, extra...)
	}

	lines = dedupeLines(lines)
	for i := range lines {
		lines[i].LineNo = i + 1
	}

	return lines, env.GetHeader("Subject"), env.Text, attachmentNames, nil
}

func parseEmailText(text string) []internal.RequestLine {
	out := []internal.RequestLine{}
	lineNo := 0
	for _, raw := range splitLines(text) {
		lineNo++
		line := textToRequestLine(internal.SourceEmailText, lineNo, raw)
		if line == nil {
			continue
		}
		if !hasLetters.MatchString(line.RawLine) || (line.Qty == nil && line.PartNumber == nil) {
			continue
		}
		out = append(out, *line)
	}
	return out
}

func parseEmailHTMLTable(html string) []internal.RequestLine {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.RequestLine{}
	lineNo := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.ToLower(normalizeSpaces(cell.Text())))
		})
		cols := inferColumns(headers)
		if !cols.found() {
			return
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			line := cols.toRequestLine(internal.SourceEmailHTMLTable, cells)
			if line == nil {
				return
			}
			lineNo++
			line.LineNo = lineNo
			line.Meta = map[string]any{"row": cells}
			out = append(out, *line)
		})
	})

	return out
}

func parseXLSX(content []byte) ([]internal.RequestLine, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lineNo := 0
	out := []internal.RequestLine{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		cols := columns{part: -1, description: -1, qty: -1, unit: -1, equipment: -1}
		for i, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && !cols.found() {
				if guess := inferColumns(lowerCells(cells)); guess.found() {
					cols = guess
					continue
				}
			}
			if !cols.found() {
				cols = columns{part: 0, description: 1, qty: 2, unit: 3, equipment: 4}
			}

			line := cols.toRequestLine(internal.SourceXLSX, cells)
			if line == nil || line.Qty == nil {
				continue
			}
			lineNo++
			line.LineNo = lineNo
			line.Meta = map[string]any{"sheet": sheet, "rowNumber": i + 1}
			out = append(out, *line)
		}
	}

	return out, nil
}

func parsePDF(content []byte) ([]internal.RequestLine, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []internal.RequestLine{}
	lineNo := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, raw := range splitLines(text) {
			lineNo++
			line := textToRequestLine(internal.SourcePDF, lineNo, raw)
			if line == nil || line.Qty == nil {
				continue
			}
			if line.PartNumber == nil && line.Description == nil {
				continue
			}
			line.Meta["page"] = i
			out = append(out, *line)
		}
	}
	return out, nil
}

// textToRequestLine reads a free-text request line such as
// "MS29513-014 O-ring 25 ea eq: 101-103".
func textToRequestLine(source internal.LineSource, lineNo int, rawLine string) *internal.RequestLine {
	compact := normalizeSpaces(rawLine)
	if compact == "" || isLikelyNoise(compact) {
		return nil
	}

	body := compact
	equipmentSpec := ""
	if loc := equipmentSuffix.FindStringSubmatchIndex(body); loc != nil {
		equipmentSpec = body[loc[2]:loc[3]]
		body = strings.TrimSpace(body[:loc[0]])
	}

	parsed := util.ParseQty(body)
	rest := body
	if parsed.QtyRaw != nil {
		token := *parsed.QtyRaw
		if !strings.Contains(rest, token) {
			token = strings.Fields(token)[0]
		}
		if idx := strings.LastIndex(rest, token); idx >= 0 {
			rest = rest[:idx] + " " + rest[idx+len(token):]
		}
	}
	rest = separatorRuns.ReplaceAllString(rest, " ")

	var partNumber *string
	fields := strings.Fields(rest)
	for i, field := range fields {
		if util.LooksLikePartNumber(field) {
			partNumber = util.StringPtr(field)
			rest = strings.Join(append(fields[:i:i], fields[i+1:]...), " ")
			break
		}
	}
	rest = normalizeSpaces(unitWords.ReplaceAllString(rest, " "))

	var description *string
	if strings.TrimSpace(rest) != "" {
		description = util.StringPtr(rest)
	}
	if partNumber == nil && description == nil {
		description = util.StringPtr(compact)
	}

	line := internal.RequestLine{
		LineNo:      lineNo,
		Source:      source,
		RawLine:     compact,
		PartNumber:  partNumber,
		Description: description,
		Qty:         parsed.Qty,
		Unit:        parsed.Unit,
		Equipment:   equipment.Normalize(equipmentSpec),
		Meta:        map[string]any{},
	}
	if parsed.QtyRaw != nil {
		line.Meta["qtyRaw"] = *parsed.QtyRaw
	}
	if equipmentSpec != "" {
		line.Meta["equipmentRaw"] = equipmentSpec
	}
	return &line
}

type columns struct {
	part, description, qty, unit, equipment int
}

func (c columns) found() bool {
	return (c.part >= 0 || c.description >= 0) && c.qty >= 0
}

func inferColumns(headers []string) columns {
	c := columns{
		qty:       findHeaderIndex(headers, qtyHeaders, nil),
		unit:      findHeaderIndex(headers, unitHeaders, nil),
		equipment: findHeaderIndex(headers, equipmentHeaders, nil),
	}
	taken := map[int]bool{c.qty: true, c.unit: true, c.equipment: true}
	c.part = findHeaderIndex(headers, partHeaders, taken)
	taken[c.part] = true
	c.description = findHeaderIndex(headers, descriptionHeaders, taken)
	return c
}

func (c columns) toRequestLine(source internal.LineSource, cells []string) *internal.RequestLine {
	if len(cells) == 0 {
		return nil
	}
	part := pickCell(cells, c.part)
	desc := pickCell(cells, c.description)
	if part == "" && desc == "" {
		return nil
	}
	qtyCell := pickCell(cells, c.qty)
	parsed := util.ParseQty(qtyCell)
	rawLine := strings.Join(cells, " | ")
	if parsed.Qty == nil && !hasDigit.MatchString(rawLine) {
		return nil
	}

	line := &internal.RequestLine{
		Source:    source,
		RawLine:   rawLine,
		Qty:       parsed.Qty,
		Unit:      parsed.Unit,
		Equipment: equipment.Normalize(pickCell(cells, c.equipment)),
	}
	if part != "" {
		line.PartNumber = util.StringPtr(part)
	}
	if desc != "" {
		line.Description = util.StringPtr(desc)
	}
	if unit := pickCell(cells, c.unit); unit != "" {
		line.Unit = util.StringPtr(util.NormalizeUnit(unit))
	}
	return line
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(spaceRuns.ReplaceAllString(input, " "))
}

func isLikelyNoise(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func dedupeLines(lines []internal.RequestLine) []internal.RequestLine {
	seen := map[string]struct{}{}
	out := make([]internal.RequestLine, 0, len(lines))
	for _, line := range lines {
		qtyKey := "null"
		if line.Qty != nil {
			qtyKey = fmt.Sprintf("%g", *line.Qty)
		}
		key := string(line.Source) + "|" + line.RawLine + "|" + qtyKey
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

// findHeaderIndex returns the first header containing one of the probes,
// trying probes in order of preference and skipping taken columns.
func findHeaderIndex(headers []string, probes []string, taken map[int]bool) int {
	for _, probe := range probes {
		for i, h := range headers {
			if taken[i] {
				continue
			}
			if h == probe || strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}

func lowerCells(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, strings.ToLower(c))
	}
	return out
}
