package equipment

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{"empty", "", []string{}},
		{"mixed", "100, Boeing, 200-202", []string{"100", "200", "201", "202", "Boeing"}},
		{"single_element_range", "7-7", []string{"7"}},
		{"reversed_range", "9-3", []string{}},
		{"alphanumeric_dropped", "AB12", []string{}},
		{"trailing_comma", "5,", []string{"5"}},
		{"label_kept_verbatim", " airbus  a ", []string{"airbus  a"}},
		{"leading_zeros_single", "007", []string{"007"}},
		{"leading_zeros_range", "008-010", []string{"8", "9", "10"}},
		{"spaced_range_dropped", "1 - 3", []string{}},
		{"duplicates", "1, 1-2, 2", []string{"1", "2"}},
		{"label_with_digit_dropped", "Boeing 737", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.spec)
			assert.ElementsMatch(t, tt.want, got.Slice())
		})
	}
}

func TestExpand_RangeCardinality(t *testing.T) {
	for _, r := range [][2]int{{0, 0}, {1, 10}, {95, 130}, {1000, 1999}} {
		got := Expand(strconv.Itoa(r[0]) + "-" + strconv.Itoa(r[1]))
		require.Equal(t, r[1]-r[0]+1, got.Len())
		for n := r[0]; n <= r[1]; n++ {
			assert.True(t, got.Has(strconv.Itoa(n)), "missing %d", n)
		}
	}
}

func TestSet_Join(t *testing.T) {
	got := Expand("Boeing, 10, 9-11, Airbus, 2")
	assert.Equal(t, "2,9,10,11,Airbus,Boeing", got.Join(","))
}

func TestExpandLimit(t *testing.T) {
	_, err := ExpandLimit("1-100000000", 5000)
	require.ErrorIs(t, err, ErrTooManyTokens)

	got, err := ExpandLimit("1-10, 20", 11)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Len())

	_, err = ExpandLimit("1-10, 20, 21", 11)
	require.ErrorIs(t, err, ErrTooManyTokens)

	got, err = ExpandLimit("1-3", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
}

func TestOverlaps(t *testing.T) {
	ok, err := Overlaps("1-5, Airbus", "5, 9", 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Overlaps("Airbus", "airbus", 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Overlaps("1-5", "6-9", 100)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Overlaps("", "1", 100)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Overlaps("Boeing 737", "boeing 737, 12", 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Overlaps("Boeing 737", "Boeing 747", 100)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Overlaps("1-1000", "1", 10)
	require.ErrorIs(t, err, ErrTooManyTokens)
}

func TestTokens(t *testing.T) {
	got, err := Tokens("3, 1-2, Airbus, AIRBUS", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "airbus"}, got)
}

func TestTokens_KeepsDescriptionsWithDigits(t *testing.T) {
	got, err := Tokens("boeing 737, A-320, 5", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "a320", "boeing 737"}, got)
}
