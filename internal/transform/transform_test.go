package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/traffic-cli/internal/model"
)

func TestCountMissing(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"a": 1.0, "b": nil},
		{"a": nil},
		{"a": 3.0, "b": "x"},
	})

	report := CountMissing(tbl)
	assert.Equal(t, MissingReport{"a": 1, "b": 2}, report)
	assert.Equal(t, 3, report.Total())
}

func TestClean_ForwardFill(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"speed": nil, "street": "Ashland"},
		{"speed": 20.0, "street": nil},
		{"speed": nil, "street": nil},
		{"speed": 30.0, "street": "Western"},
		{"street": "Halsted"},
	})

	out, report := Clean(tbl)
	require.Equal(t, 5, out.Len())
	assert.Equal(t, 3, report["speed"])
	assert.Equal(t, 2, report["street"])

	// Leading missing value stays missing.
	_, ok := out.Value(0, "speed")
	assert.False(t, ok)

	speeds := []any{nil, 20.0, 20.0, 30.0, 30.0}
	streets := []any{"Ashland", "Ashland", "Ashland", "Western", "Halsted"}
	for i := range out.Len() {
		v, _ := out.Value(i, "speed")
		assert.Equal(t, speeds[i], v, "row %d speed", i)
		s, _ := out.Value(i, "street")
		assert.Equal(t, streets[i], s, "row %d street", i)
	}
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"a": 1.0},
		{"a": nil},
	})
	_, _ = Clean(tbl)

	_, ok := tbl.Value(1, "a")
	assert.False(t, ok)
}

func TestClean_StringifiesStructuredValues(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"location": map[string]any{"type": "Point"}, "tags": []any{"a", 1.0}, "n": 2.0},
		{"location": nil, "tags": nil, "n": nil},
	})

	out, _ := Clean(tbl)

	loc, _ := out.Value(0, "location")
	assert.Equal(t, `{"type":"Point"}`, loc)
	tags, _ := out.Value(0, "tags")
	assert.Equal(t, `["a",1]`, tags)
	n, _ := out.Value(0, "n")
	assert.Equal(t, 2.0, n)

	// Forward-filled value is the stringified text.
	loc1, _ := out.Value(1, "location")
	assert.Equal(t, `{"type":"Point"}`, loc1)
}

// Once a column has a non-missing value, no later row may be missing.
func TestClean_NoMissingAfterFirstValue(t *testing.T) {
	recs := []model.Record{
		{"a": nil, "b": 1.0},
		{"a": "x", "b": nil},
		{"a": nil, "b": nil},
		{"a": nil, "b": -2.0},
		{},
	}
	out, _ := Clean(model.NewTableFromRecords(recs))

	for _, col := range out.Columns() {
		first := -1
		for i := range out.Len() {
			if _, ok := out.Value(i, col); ok {
				first = i
				break
			}
		}
		if first < 0 {
			continue
		}
		for i := first; i < out.Len(); i++ {
			_, ok := out.Value(i, col)
			assert.True(t, ok, "column %s row %d", col, i)
		}
	}
}

func TestNumericColumns(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"x": -1.0, "y": "2", "z": nil, "flag": true},
		{"x": 3.0, "y": "4", "z": nil, "flag": false},
	})
	assert.Equal(t, []string{"x"}, NumericColumns(tbl))
}

func TestFilterNonNegative_Scenario(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"x": -1.0, "y": 2.0},
		{"x": 3.0, "y": 4.0},
	})

	out := FilterNonNegative(tbl)
	require.Equal(t, 1, out.Len())
	x, _ := out.Value(0, "x")
	assert.Equal(t, 3.0, x)
	assert.Equal(t, 2, tbl.Len(), "input must not be modified")
}

func TestFilterNonNegative_IgnoresNonNumericColumns(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"speed": "-5", "street": "Ashland"},
		{"speed": "10", "street": "Western"},
	})

	out := FilterNonNegative(tbl)
	assert.Equal(t, 2, out.Len())
}

func TestFilterNonNegative_MissingNumericDropsRow(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"speed": nil},
		{"speed": 0.0},
	})

	out := FilterNonNegative(tbl)
	require.Equal(t, 1, out.Len())
	v, _ := out.Value(0, "speed")
	assert.Equal(t, 0.0, v)
}

func TestFilterNonNegative_Invariants(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"a": 1.0, "b": 2.0, "c": "n"},
		{"a": -0.5, "b": 2.0, "c": "n"},
		{"a": 1.0, "b": -3.0, "c": "-n"},
		{"a": 0.0, "b": 0.0, "c": "n"},
	})

	out := FilterNonNegative(tbl)
	assert.LessOrEqual(t, out.Len(), tbl.Len())
	for i := range out.Len() {
		for _, col := range NumericColumns(tbl) {
			v, ok := out.Value(i, col)
			require.True(t, ok)
			f, _ := AsNumber(v)
			assert.GreaterOrEqual(t, f, 0.0)
		}
	}
	assert.Equal(t, 2, out.Len())
}

func TestAsNumber(t *testing.T) {
	f, ok := AsNumber(2.5)
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)

	_, ok = AsNumber("2.5")
	assert.False(t, ok)

	_, ok = AsNumber(true)
	assert.False(t, ok)

	f, ok = AsNumber(7)
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)
}
