package util

import "testing"

func TestNormalizeText(t *testing.T) {
	got := NormalizeText("  «Filter», hydraulic —  element ")
	if got != "FILTER HYDRAULIC - ELEMENT" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizePartNumber(t *testing.T) {
	cases := map[string]string{
		"ms29513-014":  "MS29513-014",
		" 65-4321 / ":  "65-4321",
		"AN 960-416L":  "AN960-416L",
		"ＭＳ２０９９５": "MS20995",
	}
	for in, want := range cases {
		if got := NormalizePartNumber(in); got != want {
			t.Fatalf("NormalizePartNumber(%q)=%q want %q", in, got, want)
		}
	}
}

func TestLooksLikePartNumber(t *testing.T) {
	if !LooksLikePartNumber("MS29513-014") {
		t.Fatal("expected part number")
	}
	if !LooksLikePartNumber("65-4321") {
		t.Fatal("expected dashed numeric part number")
	}
	if LooksLikePartNumber("hydraulic filter") {
		t.Fatal("description is not a part number")
	}
	if LooksLikePartNumber("12") {
		t.Fatal("too short")
	}
}

func TestDiceCoefficient(t *testing.T) {
	if DiceCoefficient("FILTER", "FILTER") != 1 {
		t.Fatal("identical strings")
	}
	if DiceCoefficient("", "FILTER") != 0 {
		t.Fatal("empty string")
	}
	if s := DiceCoefficient("FILTER ELEMENT", "FILTER ELEMNT"); s < 0.8 {
		t.Fatalf("score too low: %v", s)
	}
}
