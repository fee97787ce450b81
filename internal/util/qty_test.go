package util

import "testing"

func TestParseQty(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
		unit  string
	}{
		{name: "thousand with comma", input: "HYD FILTER 1,000 ea", want: 1000, unit: "ea"},
		{name: "thousand with space", input: "Jet A-1 fuel 1 200 gal", want: 1200, unit: "gal"},
		{name: "decimal comma", input: "Engine oil 2,5 l", want: 2.5, unit: "l"},
		{name: "decimal dot", input: "Engine oil 2.5 l", want: 2.5, unit: "l"},
		{name: "part number and qty", input: "O-RING MS29513-014 25 pcs", want: 25, unit: "ea"},
		{name: "qty label", input: "Brake pad qty: 4", want: 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseQty(tc.input)
			if parsed.Qty == nil {
				t.Fatalf("qty is nil")
			}
			if *parsed.Qty != tc.want {
				t.Fatalf("got %v want %v", *parsed.Qty, tc.want)
			}
			if tc.unit == "" {
				if parsed.Unit != nil {
					t.Fatalf("unexpected unit %q", *parsed.Unit)
				}
				return
			}
			if parsed.Unit == nil || *parsed.Unit != tc.unit {
				t.Fatalf("unit=%v want %s", parsed.Unit, tc.unit)
			}
		})
	}
}

func TestParseQtyNoNumber(t *testing.T) {
	parsed := ParseQty("please send the usual")
	if parsed.Qty != nil || parsed.QtyRaw != nil {
		t.Fatalf("unexpected qty %+v", parsed)
	}
}
