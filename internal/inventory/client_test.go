package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"stockroom/internal/config"
	"stockroom/internal/equipment"
	"stockroom/internal/logger"
	"stockroom/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func testConfig() config.Config {
	cfg, _ := config.Load()
	cfg.InventoryAPIToken = "test"
	cfg.InventoryAPIBaseURL = "https://inventory.test/api"
	cfg.InventoryRateLimitRPS = 1000
	cfg.EquipmentMaxTokens = 100
	return cfg
}

func TestScrollItemsWithRetry(t *testing.T) {
	attempt := 0

	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/items/scroll" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer test" {
				t.Fatalf("missing bearer token")
			}
			attempt++
			switch attempt {
			case 1:
				return jsonResponse(http.StatusServiceUnavailable, map[string]any{"error": "busy"}), nil
			case 2:
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
					"items":    []map[string]any{{"id": 1, "partNumber": "MS29513-014", "description": "O-ring", "equipmentNumbers": []any{"3", "1", "2"}}},
					"scrollId": "abc",
				}}), nil
			case 3:
				if r.URL.Query().Get("scrollId") != "abc" {
					t.Fatalf("scrollId not forwarded: %s", r.URL.RawQuery)
				}
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
					"items":    []map[string]any{{"id": 2, "partNumber": "65-4321", "description": "Filter"}},
					"scrollId": nil,
				}}), nil
			}
			t.Fatalf("unexpected attempt %d", attempt)
			return nil, nil
		}),
	}

	items, err := client.ScrollItems(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("len=%d", len(items))
	}
	if items[0].EquipmentNumbers != "1-3" {
		t.Fatalf("equipment=%q", items[0].EquipmentNumbers)
	}
}

func TestSearchItemsSendsExpandedEquipment(t *testing.T) {
	var gotQuery string
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/search" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			gotQuery = r.URL.Query().Get("equipment")
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"items": []map[string]any{{"id": 7, "partNumber": "P-7", "description": "Seal", "equipmentNumbers": "201"}},
			}}), nil
		}),
	}

	items, err := client.SearchItems(context.Background(), "100, Boeing, 200-202, AB12")
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "100,200,201,202,Boeing" {
		t.Fatalf("equipment query=%q", gotQuery)
	}
	if len(items) != 1 || items[0].ID != 7 {
		t.Fatalf("items=%+v", items)
	}
}

func TestSearchReceipts(t *testing.T) {
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/rrp/search" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"receipts": []map[string]any{
					{"id": 1, "rrpNumber": "RRP-10", "partNumber": "P-1", "qty": 2, "equipmentNumbers": "ge5, 6"},
					{"id": 2, "rrpNumber": "", "partNumber": "P-2"},
				},
			}}), nil
		}),
	}

	receipts, err := client.SearchReceipts(context.Background(), "5")
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 1 || receipts[0].EquipmentNumbers != "5-6" {
		t.Fatalf("receipts=%+v", receipts)
	}
}

func TestSearchSkipsEmptyAndOversizedSpecs(t *testing.T) {
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			t.Fatalf("no request expected, got %s", r.URL)
			return nil, nil
		}),
	}

	items, err := client.SearchItems(context.Background(), "AB12, 9-3")
	if err != nil || items != nil {
		t.Fatalf("items=%v err=%v", items, err)
	}
	if _, err := client.SearchItems(context.Background(), "1-100000"); !errors.Is(err, equipment.ErrTooManyTokens) {
		t.Fatalf("err=%v", err)
	}
}

func TestUnsuccessfulEnvelope(t *testing.T) {
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]any{"success": false, "message": "forbidden"}), nil
		}),
	}
	if _, err := client.ScrollItems(context.Background()); err == nil || !strings.Contains(err.Error(), "forbidden") {
		t.Fatalf("err=%v", err)
	}
}

func TestInitialSyncStoresItems(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "stockroom.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	svc := NewSyncService(db, testConfig(), logger.Nop())
	svc.client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"items": []map[string]any{{"id": 5, "partNumber": "AN960-416L", "description": "Washer", "equipmentNumbers": "12, 11, Cessna"}},
			}}), nil
		}),
	}

	count, err := svc.InitialSync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count=%d", count)
	}
	found, err := db.SearchItemsByEquipment("cessna")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].EquipmentNumbers != "11-12, Cessna" {
		t.Fatalf("found=%+v", found)
	}
	last, err := db.GetMetadata("inventory.last_initial_sync")
	if err != nil || last == nil {
		t.Fatalf("last sync not recorded: %v", err)
	}
}
