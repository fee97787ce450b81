package pipeline

import (
	"stockroom/internal"
	"stockroom/internal/util"
)

type NormalizedLine struct {
	internal.RequestLine
	NormalizedPartNumber  string
	NormalizedDescription string
}

func NormalizeLines(lines []internal.RequestLine) []NormalizedLine {
	out := make([]NormalizedLine, 0, len(lines))
	for _, line := range lines {
		desc := line.RawLine
		if line.Description != nil {
			desc = *line.Description
		}
		pn := ""
		if line.PartNumber != nil {
			pn = util.NormalizePartNumber(*line.PartNumber)
		}
		out = append(out, NormalizedLine{
			RequestLine:           line,
			NormalizedPartNumber:  pn,
			NormalizedDescription: util.NormalizeText(desc),
		})
	}
	return out
}
