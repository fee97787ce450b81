package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"stockroom/internal"
	"stockroom/internal/equipment"
	"stockroom/internal/util"
)

// ImportItemsFromXLSX reads items from the first sheet. Header names are
// matched loosely, so both exported sheets and hand-made ones load.
func ImportItemsFromXLSX(path string) ([]internal.ItemRecord, error) {
	rows, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := lowerCells(normalizeCells(rows[0]))
	idCol := findHeaderIndex(headers, []string{"id"}, nil)
	taken := map[int]bool{idCol: true}
	take := func(probes []string) int {
		i := findHeaderIndex(headers, probes, taken)
		if i >= 0 {
			taken[i] = true
		}
		return i
	}
	eqCol := take(equipmentHeaders)
	partCol := take(append([]string{"part_number"}, partHeaders...))
	descCol := take(descriptionHeaders)
	unitCol := take(unitHeaders)
	locCol := take([]string{"location", "bin", "store"})
	onHandCol := take([]string{"on_hand", "on hand", "stock", "qty", "quantity"})
	if partCol < 0 {
		return nil, fmt.Errorf("%s: no part number column in %q", path, rows[0])
	}

	out := make([]internal.ItemRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := normalizeCells(row)
		part := pickCell(cells, partCol)
		if part == "" {
			continue
		}
		item := internal.ItemRecord{
			PartNumber:       part,
			Description:      pickCell(cells, descCol),
			EquipmentNumbers: equipment.Normalize(pickCell(cells, eqCol)),
		}
		if id, err := strconv.Atoi(pickCell(cells, idCol)); err == nil {
			item.ID = id
		}
		if v := pickCell(cells, unitCol); v != "" {
			item.Unit = util.StringPtr(util.NormalizeUnit(v))
		}
		if v := pickCell(cells, locCol); v != "" {
			item.Location = util.StringPtr(v)
		}
		if v := pickCell(cells, onHandCol); v != "" {
			item.OnHand = util.ParseQty(v).Qty
		}
		out = append(out, item)
	}
	return out, nil
}

// ImportReceiptsFromXLSX reads receiving records (RRP) from the first sheet.
func ImportReceiptsFromXLSX(path string) ([]internal.ReceiptRecord, error) {
	rows, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := lowerCells(normalizeCells(rows[0]))
	rrpCol := findHeaderIndex(headers, []string{"rrp", "receipt", "grn"}, nil)
	taken := map[int]bool{rrpCol: true}
	take := func(probes []string) int {
		i := findHeaderIndex(headers, probes, taken)
		if i >= 0 {
			taken[i] = true
		}
		return i
	}
	eqCol := take(equipmentHeaders)
	partCol := take(append([]string{"part_number"}, partHeaders...))
	supplierCol := take([]string{"supplier", "vendor"})
	dateCol := take([]string{"received", "date"})
	qtyCol := take(qtyHeaders)
	if rrpCol < 0 || partCol < 0 {
		return nil, fmt.Errorf("%s: receipt sheet needs rrp and part number columns", path)
	}

	out := make([]internal.ReceiptRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := normalizeCells(row)
		rrp := pickCell(cells, rrpCol)
		part := pickCell(cells, partCol)
		if rrp == "" || part == "" {
			continue
		}
		receipt := internal.ReceiptRecord{
			RRPNumber:        rrp,
			PartNumber:       part,
			EquipmentNumbers: equipment.Normalize(pickCell(cells, eqCol)),
			Qty:              util.ParseQty(pickCell(cells, qtyCol)).Qty,
		}
		if v := pickCell(cells, supplierCol); v != "" {
			receipt.Supplier = util.StringPtr(v)
		}
		if v := pickCell(cells, dateCol); v != "" {
			receipt.ReceivedAt = util.StringPtr(v)
		}
		out = append(out, receipt)
	}
	return out, nil
}

func readFirstSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	for len(rows) > 0 && strings.TrimSpace(strings.Join(rows[0], "")) == "" {
		rows = rows[1:]
	}
	return rows, nil
}
