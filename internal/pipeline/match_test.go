package pipeline

import (
	"testing"

	"stockroom/internal"
	"stockroom/internal/config"
)

func sp(v string) *string { return &v }

func fp(v float64) *float64 { return &v }

func testItems() []internal.ItemRecord {
	return []internal.ItemRecord{
		{ID: 1, PartNumber: "MS29513-014", Description: "O-ring", EquipmentNumbers: "100-110"},
		{ID: 2, PartNumber: "65-4321", Description: "Hydraulic filter element", EquipmentNumbers: "Airbus"},
		{ID: 3, PartNumber: "65-4322", Description: "Hydraulic filter housing"},
	}
}

func matchOne(t *testing.T, line internal.RequestLine) internal.MatchResult {
	t.Helper()
	cfg, _ := config.Load()
	m := NewMatcher(cfg, testItems())
	return m.Match(NormalizeLines([]internal.RequestLine{line})[0])
}

func TestMatcherPartNumber(t *testing.T) {
	res := matchOne(t, internal.RequestLine{RawLine: "ms29513-014 x2", PartNumber: sp("ms29513-014"), Qty: fp(2), Equipment: "105"})
	if res.Status != internal.MatchOK || res.Reason != internal.ReasonPart || res.Item == nil || *res.Item.ID != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.EquipmentMismatch {
		t.Fatal("105 is inside 100-110")
	}
}

func TestMatcherEquipmentMismatch(t *testing.T) {
	res := matchOne(t, internal.RequestLine{RawLine: "MS29513-014 2 ea", PartNumber: sp("MS29513-014"), Qty: fp(2), Equipment: "200-205"})
	if res.Status != internal.MatchReview || !res.EquipmentMismatch {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Confidence > 0.7 {
		t.Fatalf("confidence=%v", res.Confidence)
	}
	if res.Item == nil || *res.Item.ID != 1 {
		t.Fatalf("item should be kept for review: %+v", res.Item)
	}
}

func TestMatcherEquipmentLabelsIgnoreCase(t *testing.T) {
	res := matchOne(t, internal.RequestLine{RawLine: "65-4321", PartNumber: sp("65-4321"), Qty: fp(1), Equipment: "AIRBUS"})
	if res.Status != internal.MatchOK || res.EquipmentMismatch {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMatcherEquipmentDescriptionWithDigits(t *testing.T) {
	cfg, _ := config.Load()
	items := append(testItems(), internal.ItemRecord{ID: 4, PartNumber: "77-1000", Description: "Brake pad", EquipmentNumbers: "Boeing 737"})
	m := NewMatcher(cfg, items)

	line := internal.RequestLine{RawLine: "77-1000 brake pad 4 ea", PartNumber: sp("77-1000"), Qty: fp(4), Equipment: "Boeing 737"}
	res := m.Match(NormalizeLines([]internal.RequestLine{line})[0])
	if res.Status != internal.MatchOK || res.EquipmentMismatch {
		t.Fatalf("unexpected result: %+v", res)
	}

	line.Equipment = "Boeing 747"
	res = m.Match(NormalizeLines([]internal.RequestLine{line})[0])
	if res.Status != internal.MatchReview || !res.EquipmentMismatch {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMatcherItemWithoutEquipment(t *testing.T) {
	res := matchOne(t, internal.RequestLine{RawLine: "65-4322", PartNumber: sp("65-4322"), Qty: fp(1), Equipment: "7"})
	if res.Status != internal.MatchOK || res.EquipmentMismatch {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMatcherDescription(t *testing.T) {
	res := matchOne(t, internal.RequestLine{RawLine: "hydraulic filter element 1 ea", Description: sp("hydraulic filter element"), Qty: fp(1)})
	if res.Status != internal.MatchOK || res.Reason != internal.ReasonDescription || *res.Item.ID != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMatcherInvalidQty(t *testing.T) {
	res := matchOne(t, internal.RequestLine{RawLine: "MS29513-014", PartNumber: sp("MS29513-014"), Qty: fp(0)})
	if res.Status != internal.MatchReview {
		t.Fatalf("status=%s", res.Status)
	}
}

func TestMatcherNotFound(t *testing.T) {
	res := matchOne(t, internal.RequestLine{RawLine: "brake pad 4 ea", Description: sp("brake pad"), Qty: fp(4)})
	if res.Status != internal.MatchNotFound || res.Item != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}
