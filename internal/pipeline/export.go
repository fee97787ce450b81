package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"stockroom/internal"
)

var itemHeaders = []string{"id", "part_number", "description", "unit", "location", "on_hand", "equipment_numbers", "updated_at"}

func ExportRowsToXLSX(rows []internal.ExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{
		"input_line_no", "source", "raw_line", "parsed_part_number", "parsed_description", "parsed_qty", "parsed_unit",
		"requested_equipment", "match_status", "confidence", "match_reason", "equipment_mismatch",
		"item_id", "item_part_number", "item_description", "item_unit", "item_location", "item_on_hand", "item_equipment",
		"candidate2_description", "candidate2_score",
	}
	writeHeader(f, sheet, headers)

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.LineNo)
		set(2, row.Source)
		set(3, row.RawLine)
		set(4, derefString(row.ParsedPartNumber))
		set(5, derefString(row.ParsedDescription))
		set(6, derefFloat(row.ParsedQty))
		set(7, derefString(row.ParsedUnit))
		set(8, row.RequestedEquipment)
		set(9, row.MatchStatus)
		set(10, row.Confidence)
		set(11, row.MatchReason)
		set(12, row.EquipmentMismatch)
		set(13, derefInt(row.ItemID))
		set(14, derefString(row.ItemPartNumber))
		set(15, derefString(row.ItemDescription))
		set(16, derefString(row.ItemUnit))
		set(17, derefString(row.ItemLocation))
		set(18, derefFloat(row.ItemOnHand))
		set(19, derefString(row.ItemEquipment))
		set(20, derefString(row.Candidate2Desc))
		set(21, derefFloat(row.Candidate2Score))
	}

	return save(f, outputPath)
}

// ExportItemsToXLSX writes the items sheet in the layout ImportItemsFromXLSX reads.
func ExportItemsToXLSX(items []internal.ItemRecord, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	writeHeader(f, sheet, itemHeaders)

	for i, item := range items {
		values := []any{
			item.ID,
			item.PartNumber,
			item.Description,
			derefString(item.Unit),
			derefString(item.Location),
			derefFloat(item.OnHand),
			item.EquipmentNumbers,
			derefString(item.UpdatedAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	return save(f, outputPath)
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

// ExportRowFromMatch builds an export row for lines matched in memory, as in
// one-shot runs that never touch the request tables.
func ExportRowFromMatch(line NormalizedLine, match internal.MatchResult) internal.ExportRow {
	row := internal.ExportRow{
		LineNo:             line.LineNo,
		Source:             string(line.Source),
		RawLine:            line.RawLine,
		ParsedPartNumber:   line.PartNumber,
		ParsedDescription:  line.Description,
		ParsedQty:          line.Qty,
		ParsedUnit:         line.Unit,
		RequestedEquipment: line.Equipment,
		MatchStatus:        string(match.Status),
		Confidence:         match.Confidence,
		MatchReason:        string(match.Reason),
		EquipmentMismatch:  match.EquipmentMismatch,
	}
	if item := match.Item; item != nil {
		row.ItemID = item.ID
		row.ItemPartNumber = item.PartNumber
		row.ItemDescription = item.Description
		row.ItemUnit = item.Unit
		row.ItemLocation = item.Location
		row.ItemOnHand = item.OnHand
		eq := item.EquipmentNumbers
		row.ItemEquipment = &eq
	}
	if len(match.Candidates) > 1 {
		second := match.Candidates[1]
		row.Candidate2Desc = &second.Description
		row.Candidate2Score = &second.Score
	}
	return row
}
