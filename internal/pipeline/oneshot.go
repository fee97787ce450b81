package pipeline

import (
	"fmt"
	"os"

	"stockroom/internal"
)

func ExtractLinesFromInput(inputType string, input string) ([]internal.RequestLine, error) {
	switch inputType {
	case "email_text":
		return parseEmailText(input), nil
	case "email_table":
		return parseEmailHTMLTable(input), nil
	case "xlsx":
		blob, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		return parseXLSX(blob)
	case "pdf":
		blob, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		return parsePDF(blob)
	case "eml":
		blob, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		lines, _, _, _, err := ExtractLinesFromEmailRaw(blob)
		return lines, err
	default:
		return nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}
