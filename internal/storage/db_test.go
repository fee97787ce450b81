package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"stockroom/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "stockroom.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertItemsCanonicalizesEquipment(t *testing.T) {
	db := openTestDB(t)

	skipped, err := db.UpsertItems([]internal.ItemRecord{
		{ID: 10, PartNumber: "MS29513-014", Description: "O-ring", EquipmentNumbers: "GE103, 101, 102, airbus"},
		{ID: 11, PartNumber: "65-4321", Description: "Hydraulic filter", EquipmentNumbers: "200"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 {
		t.Fatalf("skipped=%d", skipped)
	}

	item, err := db.GetItem(10)
	if err != nil {
		t.Fatal(err)
	}
	if item.EquipmentNumbers != "101-103, Airbus" {
		t.Fatalf("equipment=%q", item.EquipmentNumbers)
	}

	if _, err := db.GetItem(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestUpsertItemsWithoutIDReusesPartNumber(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.UpsertItems([]internal.ItemRecord{{PartNumber: "AN960-416L", Description: "Washer", EquipmentNumbers: "1"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertItems([]internal.ItemRecord{{PartNumber: "AN960-416L", Description: "Washer flat", EquipmentNumbers: "2"}}); err != nil {
		t.Fatal(err)
	}

	items, err := db.ListItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("len=%d", len(items))
	}
	if items[0].Description != "Washer flat" || items[0].EquipmentNumbers != "2" {
		t.Fatalf("item=%+v", items[0])
	}
}

func TestSearchItemsByEquipment(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.UpsertItems([]internal.ItemRecord{
		{ID: 1, PartNumber: "P-1", Description: "Seal", EquipmentNumbers: "100-105"},
		{ID: 2, PartNumber: "P-2", Description: "Gasket", EquipmentNumbers: "Cessna"},
		{ID: 3, PartNumber: "P-3", Description: "Bolt", EquipmentNumbers: "300"},
	}); err != nil {
		t.Fatal(err)
	}

	items, err := db.SearchItemsByEquipment("104-110, cessna")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 2 {
		t.Fatalf("items=%+v", items)
	}

	items, err = db.SearchItemsByEquipment("AB12, 9-3")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("unmatched spec should find nothing, got %d", len(items))
	}
}

func TestSearchItemsByEquipmentDescriptionWithDigits(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.UpsertItems([]internal.ItemRecord{
		{ID: 1, PartNumber: "P-1", Description: "Seal", EquipmentNumbers: "boeing 737, 12"},
		{ID: 2, PartNumber: "P-2", Description: "Gasket", EquipmentNumbers: "Boeing 747"},
	}); err != nil {
		t.Fatal(err)
	}

	items, err := db.SearchItemsByEquipment("Boeing 737")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("items=%+v", items)
	}
}

func TestSearchRespectsTokenLimit(t *testing.T) {
	db := openTestDB(t)
	db.SetEquipmentLimit(10)

	skipped, err := db.UpsertItems([]internal.ItemRecord{{ID: 1, PartNumber: "P-1", Description: "Seal", EquipmentNumbers: "1-500"}})
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 {
		t.Fatalf("skipped=%d", skipped)
	}

	if _, err := db.SearchItemsByEquipment("1-100"); err == nil {
		t.Fatal("expected token limit error")
	}
}

func TestReceiptsAndRenormalize(t *testing.T) {
	db := openTestDB(t)

	qty := 4.0
	if _, err := db.UpsertReceipts([]internal.ReceiptRecord{
		{RRPNumber: "RRP-0001", PartNumber: "P-1", Qty: &qty, EquipmentNumbers: "5, 6, 7"},
		{RRPNumber: "RRP-0002", PartNumber: "P-2", EquipmentNumbers: "9"},
	}); err != nil {
		t.Fatal(err)
	}

	receipts, err := db.SearchReceiptsByEquipment("6")
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 1 || receipts[0].RRPNumber != "RRP-0001" || receipts[0].EquipmentNumbers != "5-7" {
		t.Fatalf("receipts=%+v", receipts)
	}

	// simulate a legacy row written before canonicalization
	if _, err := db.conn.Exec(`UPDATE receipts SET equipmentNumbers = '9, 10, ge11' WHERE rrpNumber = 'RRP-0002'`); err != nil {
		t.Fatal(err)
	}
	changed, err := db.RenormalizeEquipment()
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 {
		t.Fatalf("changed=%d", changed)
	}
	receipts, err = db.SearchReceiptsByEquipment("11")
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 1 || receipts[0].EquipmentNumbers != "9-11" {
		t.Fatalf("receipts=%+v", receipts)
	}
}

func TestRenormalizeEquipmentReadsEveryRow(t *testing.T) {
	db := openTestDB(t)

	items := make([]internal.ItemRecord, 0, 50)
	for i := 1; i <= 50; i++ {
		items = append(items, internal.ItemRecord{ID: i, PartNumber: fmt.Sprintf("P-%d", i), Description: "Seal", EquipmentNumbers: "1"})
	}
	if _, err := db.UpsertItems(items); err != nil {
		t.Fatal(err)
	}
	if _, err := db.conn.Exec(`UPDATE items SET equipmentNumbers = 'ge2, 1'`); err != nil {
		t.Fatal(err)
	}

	changed, err := db.RenormalizeEquipment()
	if err != nil {
		t.Fatal(err)
	}
	if changed != 50 {
		t.Fatalf("changed=%d", changed)
	}
	found, err := db.SearchItemsByEquipment("2")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 50 {
		t.Fatalf("len=%d", len(found))
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetMetadata("inventory.last_sync")
	if err != nil || v != nil {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if err := db.SetMetadata("inventory.last_sync", "2026-10-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetMetadata("inventory.last_sync")
	if err != nil || v == nil || *v != "2026-10-01T00:00:00Z" {
		t.Fatalf("v=%v err=%v", v, err)
	}
}
