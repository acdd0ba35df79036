package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AppendDiscoversColumns(t *testing.T) {
	tbl := NewTable()
	tbl.Append(Record{"street": "Ashland", "speed": 20.0})
	tbl.Append(Record{"street": "Western", "hour": 5.0})

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"speed", "street", "hour"}, tbl.Columns())
	assert.True(t, tbl.HasColumn("hour"))
	assert.False(t, tbl.HasColumn("time"))
}

func TestTable_AppendNilRecord(t *testing.T) {
	tbl := NewTable()
	tbl.Append(nil)
	require.Equal(t, 1, tbl.Len())
	assert.Empty(t, tbl.Row(0))
}

func TestTable_Value(t *testing.T) {
	tbl := NewTableFromRecords([]Record{{"a": 1.0, "b": nil}})

	v, ok := tbl.Value(0, "a")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = tbl.Value(0, "b")
	assert.False(t, ok)

	_, ok = tbl.Value(0, "c")
	assert.False(t, ok)
}

func TestTable_CloneIsIndependent(t *testing.T) {
	orig := NewTableFromRecords([]Record{{"a": 1.0}})
	cp := orig.Clone()
	cp.Row(0)["a"] = 2.0

	v, _ := orig.Value(0, "a")
	assert.Equal(t, 1.0, v)
	assert.Equal(t, orig.Columns(), cp.Columns())
}

func TestTable_SelectKeepsColumns(t *testing.T) {
	tbl := NewTableFromRecords([]Record{{"a": 1.0}, {"b": 2.0}, {"a": 3.0}})
	sel := tbl.Select([]int{2, 0})

	assert.Equal(t, 2, sel.Len())
	assert.Equal(t, []string{"a", "b"}, sel.Columns())
	v, _ := sel.Value(0, "a")
	assert.Equal(t, 3.0, v)
}

func TestTable_NilSafe(t *testing.T) {
	var tbl *Table
	assert.Equal(t, 0, tbl.Len())
	assert.True(t, tbl.Empty())
	assert.Nil(t, tbl.Columns())
	assert.False(t, tbl.HasColumn("x"))
}
