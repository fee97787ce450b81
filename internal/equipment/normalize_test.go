package equipment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"runs", "1,2,3,5", "1-3, 5"},
		{"noise_prefix", "ge100, GE101", "100-101"},
		{"noise_word", "GE 737, ge", "737"},
		{"noise_inside_word_kept", "general", "General"},
		{"descriptions", "boeing 737, Boeing 737, AIRBUS", "Airbus, Boeing 737"},
		{"unordered_input", "5, 1, 3, 2, 4", "1-5"},
		{"numbers_before_descriptions", "Zeppelin, 4, airbus, 3", "3-4, Airbus, Zeppelin"},
		{"punctuation_stripped", "a-320!, (cessna)", "A320, Cessna"},
		{"punctuation_only_dropped", "--, ;;, 7", "7"},
		{"duplicates_numbers", "2, 2, 3", "2-3"},
		{"leading_zeros", "007, 8", "7-8"},
		{"canonical_range_kept", "1-5, 6, 10-12", "1-6, 10-12"},
		{"reversed_range_dropped", "9-3, 1", "1"},
		{"title_case_first_letter", "mD 11", "Md 11"},
		{"title_case_after_tab", "a\tb", "A\tB"},
		{"title_case_after_newline", "boeing\n737 max", "Boeing\n737 Max"},
		{"overflow_is_description", "99999999999999999999", "99999999999999999999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	fixtures := []string{
		"1-5, Airbus",
		"1-3, 5",
		"Airbus, Boeing 737",
		"100-101",
		"3-4, 7, 9-20, Cessna, Md 11",
		"",
	}
	for _, f := range fixtures {
		once := Normalize(f)
		assert.Equal(t, once, Normalize(once), "fixture %q", f)
	}
	assert.Equal(t, "1-5, Airbus", Normalize("1-5, Airbus"))
}

func TestNormalize_RunsAreMaximal(t *testing.T) {
	got := Normalize("10, 1, 2, 4, 3, 11, 12, 20")
	assert.Equal(t, "1-4, 10-12, 20", got)
}

type tail string

func (t tail) String() string { return string(t) }

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "", NormalizeValue(nil))
	assert.Equal(t, "42", NormalizeValue(42))
	assert.Equal(t, "1-3", NormalizeValue([]string{"3", "1", "2"}))
	assert.Equal(t, "5, Airbus", NormalizeValue([]any{"airbus", 5}))
	assert.Equal(t, "7", NormalizeValue(tail("GE7")))
	assert.Equal(t, "12", NormalizeValue(float64(12)))
}
