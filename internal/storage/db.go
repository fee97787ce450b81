package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"stockroom/internal"
	"stockroom/internal/equipment"
	"stockroom/internal/util"
)

var ErrNotFound = errors.New("not found")

type DB struct {
	conn      *sql.DB
	maxTokens int
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, maxTokens: 5000}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// SetEquipmentLimit caps how many tokens one equipment list may expand to
// when indexed or searched. n <= 0 removes the cap.
func (d *DB) SetEquipmentLimit(n int) {
	d.maxTokens = n
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS items (
  id INTEGER PRIMARY KEY,
  partNumber TEXT NOT NULL,
  description TEXT NOT NULL,
  unit TEXT,
  location TEXT,
  onHand REAL,
  equipmentNumbers TEXT NOT NULL DEFAULT '',
  updatedAt TEXT,
  raw_json TEXT NOT NULL DEFAULT '{}',
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_items_partNumber ON items(partNumber);
CREATE INDEX IF NOT EXISTS idx_items_description ON items(description);

CREATE TABLE IF NOT EXISTS item_equipment (
  itemId INTEGER NOT NULL,
  token TEXT NOT NULL,
  PRIMARY KEY(itemId, token),
  FOREIGN KEY(itemId) REFERENCES items(id)
);
CREATE INDEX IF NOT EXISTS idx_item_equipment_token ON item_equipment(token);

CREATE TABLE IF NOT EXISTS receipts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  rrpNumber TEXT NOT NULL,
  supplier TEXT,
  receivedAt TEXT,
  partNumber TEXT NOT NULL,
  qty REAL,
  equipmentNumbers TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(rrpNumber, partNumber)
);

CREATE TABLE IF NOT EXISTS receipt_equipment (
  receiptId INTEGER NOT NULL,
  token TEXT NOT NULL,
  PRIMARY KEY(receiptId, token),
  FOREIGN KEY(receiptId) REFERENCES receipts(id)
);
CREATE INDEX IF NOT EXISTS idx_receipt_equipment_token ON receipt_equipment(token);

CREATE TABLE IF NOT EXISTS requests (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS request_lines (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  requestId INTEGER NOT NULL,
  lineNo INTEGER NOT NULL,
  source TEXT NOT NULL,
  rawLine TEXT NOT NULL,
  partNumber TEXT,
  description TEXT,
  qty REAL,
  unit TEXT,
  equipment TEXT NOT NULL DEFAULT '',
  metaJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(requestId, lineNo, source, rawLine),
  FOREIGN KEY(requestId) REFERENCES requests(id)
);

CREATE TABLE IF NOT EXISTS matches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  lineId INTEGER NOT NULL UNIQUE,
  status TEXT NOT NULL,
  confidence REAL NOT NULL,
  reason TEXT NOT NULL,
  equipmentMismatch INTEGER NOT NULL DEFAULT 0,
  itemId INTEGER,
  candidatesJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(lineId) REFERENCES request_lines(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  requestId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(requestId) REFERENCES requests(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// UpsertItems stores items with their equipment lists in canonical form and
// refreshes the token index. It returns how many items were too broad to
// index; those are still saved.
func (d *DB) UpsertItems(items []internal.ItemRecord) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO items (id, partNumber, description, unit, location, onHand, equipmentNumbers, updatedAt, raw_json, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  partNumber=excluded.partNumber,
  description=excluded.description,
  unit=excluded.unit,
  location=excluded.location,
  onHand=excluded.onHand,
  equipmentNumbers=excluded.equipmentNumbers,
  updatedAt=excluded.updatedAt,
  raw_json=excluded.raw_json,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	skipped := 0
	for _, item := range items {
		if strings.TrimSpace(item.PartNumber) == "" {
			return 0, fmt.Errorf("item %d: empty part number", item.ID)
		}
		canonical := equipment.Normalize(item.EquipmentNumbers)
		rawJSON := item.RawJSON
		if rawJSON == "" {
			rawJSON = "{}"
		}

		var id any
		if item.ID != 0 {
			id = item.ID
		} else {
			var existing int
			err := tx.QueryRow(`SELECT id FROM items WHERE partNumber = ? ORDER BY id LIMIT 1`, item.PartNumber).Scan(&existing)
			switch {
			case err == nil:
				id = existing
			case !errors.Is(err, sql.ErrNoRows):
				return 0, err
			}
		}

		res, err := stmt.Exec(id, item.PartNumber, item.Description, item.Unit, item.Location, item.OnHand, canonical, item.UpdatedAt, rawJSON)
		if err != nil {
			return 0, err
		}
		itemID, ok := id.(int)
		if !ok {
			last, err := res.LastInsertId()
			if err != nil {
				return 0, err
			}
			itemID = int(last)
		}

		indexed, err := d.reindex(tx, "item_equipment", "itemId", itemID, canonical)
		if err != nil {
			return 0, err
		}
		if !indexed {
			skipped++
		}
	}

	return skipped, tx.Commit()
}

func (d *DB) reindex(tx *sql.Tx, table, column string, id int, canonical string) (bool, error) {
	if _, err := tx.Exec(`DELETE FROM `+table+` WHERE `+column+` = ?`, id); err != nil {
		return false, err
	}
	tokens, err := equipment.Tokens(canonical, d.maxTokens)
	if errors.Is(err, equipment.ErrTooManyTokens) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, token := range tokens {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO `+table+` (`+column+`, token) VALUES (?, ?)`, id, token); err != nil {
			return false, err
		}
	}
	return true, nil
}

const itemColumns = `id, partNumber, description, unit, location, onHand, equipmentNumbers, updatedAt, raw_json`

func scanItem(scanner interface{ Scan(...any) error }) (internal.ItemRecord, error) {
	var item internal.ItemRecord
	err := scanner.Scan(&item.ID, &item.PartNumber, &item.Description, &item.Unit, &item.Location, &item.OnHand, &item.EquipmentNumbers, &item.UpdatedAt, &item.RawJSON)
	return item, err
}

func (d *DB) ListItems() ([]internal.ItemRecord, error) {
	rows, err := d.conn.Query(`SELECT ` + itemColumns + ` FROM items ORDER BY partNumber, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ItemRecord
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DB) GetItem(id int) (internal.ItemRecord, error) {
	item, err := scanItem(d.conn.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.ItemRecord{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return item, err
}

// SearchItemsByEquipment returns items whose equipment list shares a token
// with spec. Labels match case-insensitively.
func (d *DB) SearchItemsByEquipment(spec string) ([]internal.ItemRecord, error) {
	tokens, err := equipment.Tokens(spec, d.maxTokens)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	rows, err := d.conn.Query(`
SELECT `+prefixed("i.", itemColumns)+`
FROM items i
WHERE i.id IN (SELECT itemId FROM item_equipment WHERE token IN (`+placeholders(len(tokens))+`))
ORDER BY i.partNumber, i.id`, toArgs(tokens)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ItemRecord
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DB) UpsertReceipts(receipts []internal.ReceiptRecord) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	skipped := 0
	for _, r := range receipts {
		if strings.TrimSpace(r.RRPNumber) == "" || strings.TrimSpace(r.PartNumber) == "" {
			return 0, errors.New("receipt requires rrp number and part number")
		}
		canonical := equipment.Normalize(r.EquipmentNumbers)
		var id int
		err := tx.QueryRow(`
INSERT INTO receipts (rrpNumber, supplier, receivedAt, partNumber, qty, equipmentNumbers)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(rrpNumber, partNumber) DO UPDATE SET
  supplier=excluded.supplier,
  receivedAt=excluded.receivedAt,
  qty=excluded.qty,
  equipmentNumbers=excluded.equipmentNumbers
RETURNING id
`, r.RRPNumber, r.Supplier, r.ReceivedAt, r.PartNumber, r.Qty, canonical).Scan(&id)
		if err != nil {
			return 0, err
		}
		indexed, err := d.reindex(tx, "receipt_equipment", "receiptId", id, canonical)
		if err != nil {
			return 0, err
		}
		if !indexed {
			skipped++
		}
	}

	return skipped, tx.Commit()
}

func (d *DB) SearchReceiptsByEquipment(spec string) ([]internal.ReceiptRecord, error) {
	tokens, err := equipment.Tokens(spec, d.maxTokens)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	rows, err := d.conn.Query(`
SELECT r.id, r.rrpNumber, r.supplier, r.receivedAt, r.partNumber, r.qty, r.equipmentNumbers
FROM receipts r
WHERE r.id IN (SELECT receiptId FROM receipt_equipment WHERE token IN (`+placeholders(len(tokens))+`))
ORDER BY r.receivedAt DESC, r.rrpNumber, r.partNumber`, toArgs(tokens)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReceiptRecord
	for rows.Next() {
		var r internal.ReceiptRecord
		if err := rows.Scan(&r.ID, &r.RRPNumber, &r.Supplier, &r.ReceivedAt, &r.PartNumber, &r.Qty, &r.EquipmentNumbers); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RenormalizeEquipment rewrites every stored equipment list in canonical
// form and rebuilds both token indexes. It returns how many rows changed.
func (d *DB) RenormalizeEquipment() (int, error) {
	changedItems, err := d.renormalizeTable("items", "item_equipment", "itemId")
	if err != nil {
		return 0, err
	}
	changedReceipts, err := d.renormalizeTable("receipts", "receipt_equipment", "receiptId")
	if err != nil {
		return 0, err
	}
	return changedItems + changedReceipts, nil
}

func (d *DB) renormalizeTable(table, indexTable, indexColumn string) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT id, equipmentNumbers FROM ` + table)
	if err != nil {
		return 0, err
	}
	type entry struct {
		id  int
		raw string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.raw); err != nil {
			_ = rows.Close()
			return 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	changed := 0
	for _, e := range entries {
		canonical := equipment.Normalize(e.raw)
		if canonical != e.raw {
			if _, err := tx.Exec(`UPDATE `+table+` SET equipmentNumbers = ? WHERE id = ?`, canonical, e.id); err != nil {
				return 0, err
			}
			changed++
		}
		if _, err := d.reindex(tx, indexTable, indexColumn, e.id, canonical); err != nil {
			return 0, err
		}
	}

	return changed, tx.Commit()
}

func (d *DB) UpsertRequest(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.RequestRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO requests (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.RequestRow{}, err
	}
	return d.GetRequestByProviderMessageID(provider, messageID)
}

const requestColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanRequest(scanner interface{ Scan(...any) error }) (internal.RequestRow, error) {
	var row internal.RequestRow
	err := scanner.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetRequestByProviderMessageID(provider, messageID string) (internal.RequestRow, error) {
	row, err := scanRequest(d.conn.QueryRow(`SELECT `+requestColumns+` FROM requests WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.RequestRow{}, fmt.Errorf("request provider=%s messageId=%s: %w", provider, messageID, ErrNotFound)
	}
	return row, err
}

func (d *DB) GetRequestByID(id int) (internal.RequestRow, error) {
	row, err := scanRequest(d.conn.QueryRow(`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.RequestRow{}, fmt.Errorf("request %d: %w", id, ErrNotFound)
	}
	return row, err
}

func (d *DB) ListRequestsByStatus(status string, limit int) ([]internal.RequestRow, error) {
	rows, err := d.conn.Query(`SELECT `+requestColumns+` FROM requests WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RequestRow
	for rows.Next() {
		row, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateRequestStatus(requestID int, status string) error {
	_, err := d.conn.Exec(`UPDATE requests SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, requestID)
	return err
}

func (d *DB) ClearRequestProcessing(requestID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM matches WHERE lineId IN (SELECT id FROM request_lines WHERE requestId = ?)`, requestID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM request_lines WHERE requestId = ?`, requestID); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) InsertRequestLine(requestID int, line internal.RequestLine) (int64, error) {
	metaJSON, _ := json.Marshal(line.Meta)
	result, err := d.conn.Exec(`
INSERT INTO request_lines (requestId, lineNo, source, rawLine, partNumber, description, qty, unit, equipment, metaJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, requestID, line.LineNo, string(line.Source), line.RawLine, line.PartNumber, line.Description, line.Qty, line.Unit, line.Equipment, string(metaJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) InsertMatch(lineID int64, result internal.MatchResult) error {
	candidatesJSON, _ := json.Marshal(result.Candidates)
	var itemID *int
	if result.Item != nil {
		itemID = result.Item.ID
	}
	mismatch := 0
	if result.EquipmentMismatch {
		mismatch = 1
	}

	_, err := d.conn.Exec(`
INSERT INTO matches (lineId, status, confidence, reason, equipmentMismatch, itemId, candidatesJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, lineID, string(result.Status), result.Confidence, string(result.Reason), mismatch, itemID, string(candidatesJSON))
	return err
}

func (d *DB) InsertRun(traceID string, requestID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, requestId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, requestID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) GetExportRows(requestID int) ([]internal.ExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  l.lineNo,
  l.source,
  l.rawLine,
  l.partNumber,
  l.description,
  l.qty,
  l.unit,
  l.equipment,
  m.status,
  m.confidence,
  m.reason,
  m.equipmentMismatch,
  i.id,
  i.partNumber,
  i.description,
  i.unit,
  i.location,
  i.onHand,
  i.equipmentNumbers,
  m.candidatesJson
FROM request_lines l
JOIN matches m ON m.lineId = l.id
LEFT JOIN items i ON i.id = m.itemId
WHERE l.requestId = ?
ORDER BY
  CASE m.status WHEN 'OK' THEN 1 WHEN 'REVIEW' THEN 2 ELSE 3 END,
  l.lineNo ASC
`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ExportRow
	for rows.Next() {
		var row internal.ExportRow
		var candidatesJSON string
		if err := rows.Scan(
			&row.LineNo,
			&row.Source,
			&row.RawLine,
			&row.ParsedPartNumber,
			&row.ParsedDescription,
			&row.ParsedQty,
			&row.ParsedUnit,
			&row.RequestedEquipment,
			&row.MatchStatus,
			&row.Confidence,
			&row.MatchReason,
			&row.EquipmentMismatch,
			&row.ItemID,
			&row.ItemPartNumber,
			&row.ItemDescription,
			&row.ItemUnit,
			&row.ItemLocation,
			&row.ItemOnHand,
			&row.ItemEquipment,
			&candidatesJSON,
		); err != nil {
			return nil, err
		}

		var candidates []internal.MatchCandidate
		_ = json.Unmarshal([]byte(candidatesJSON), &candidates)
		if len(candidates) > 1 {
			row.Candidate2Desc = util.StringPtr(candidates[1].Description)
			row.Candidate2Score = util.FloatPtr(candidates[1].Score)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
