package table

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineTable() *Table {
	return FromRecords([]string{"line_factid", "line_no", "id"}, [][]any{
		{"L1", "01", int64(3)},
		{"L1", "01", int64(4)},
		{"l1", "01", nil},
		{"L2", nil, int64(1)},
	})
}

func TestTable_AppendAddsColumns(t *testing.T) {
	tb := New("a")
	tb.Append(map[string]any{"a": 1, "b": "x"})
	tb.Append(map[string]any{"b": "y"})

	require.Equal(t, []string{"a", "b"}, tb.Columns())
	require.Equal(t, 2, tb.Len())
	assert.Nil(t, tb.Get(1, "a"))
	assert.Equal(t, "y", tb.Get(1, "b"))
	assert.Nil(t, tb.Get(0, "missing"))
}

func TestTable_SetAndCopy(t *testing.T) {
	tb := lineTable()
	tb.Set(0, "line_sign", "Line")
	require.True(t, tb.Has("line_sign"))
	assert.Nil(t, tb.Get(1, "line_sign"))

	tb.Copy("line_factid", "t_line_id")
	assert.Equal(t, []any{"L1", "L1", "l1", "L2"}, tb.Column("t_line_id"))
}

func TestTable_DropDuplicatesKeepsFirst(t *testing.T) {
	tb := lineTable()

	exact := tb.DropDuplicates([]string{"line_factid", "line_no"}, nil)
	require.Equal(t, 3, exact.Len())
	assert.Equal(t, int64(3), exact.Get(0, "id"))

	folded := tb.DropDuplicates([]string{"line_factid", "line_no"}, func(v any) string {
		return strings.ToLower(KeyOf(v))
	})
	require.Equal(t, 2, folded.Len())
}

func TestTable_KeyTreatsNullAsSentinel(t *testing.T) {
	tb := New("a", "b")
	tb.AppendValues(nil, "x")
	tb.AppendValues("", "x")

	assert.NotEqual(t, tb.Key(0, []string{"a", "b"}, nil), tb.Key(1, []string{"a", "b"}, nil))
	assert.Equal(t, NullKey+"\x1fx", tb.Key(0, []string{"a", "b"}, nil))
	assert.Equal(t, tb.Key(0, []string{"missing", "b"}, nil), tb.Key(0, []string{"a", "b"}, nil))
}

func TestTable_AntiJoin(t *testing.T) {
	existing := FromRecords([]string{"t_line_name", "data_table_id"}, [][]any{
		{"Line 1", int64(7)},
	})
	incoming := FromRecords([]string{"t_line_name", "data_table_id"}, [][]any{
		{"Line 1", "7"},
		{"Line 2", int64(7)},
	})

	out := incoming.AntiJoin(existing, []string{"t_line_name", "data_table_id"}, nil)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "Line 2", out.Get(0, "t_line_name"))

	assert.Equal(t, 2, incoming.AntiJoin(New(), []string{"t_line_name"}, nil).Len())
}

func TestTable_SelectRenameDrop(t *testing.T) {
	tb := lineTable()
	sel := tb.Select("id", "absent")
	require.Equal(t, []string{"id", "absent"}, sel.Columns())
	assert.Nil(t, sel.Get(0, "absent"))

	tb.Rename(map[string]string{"line_no": "no", "id": "line_factid"})
	assert.True(t, tb.Has("no"))
	assert.True(t, tb.Has("id"), "rename onto an existing column is skipped")

	dropped := tb.Drop("no")
	assert.False(t, dropped.Has("no"))
	assert.Equal(t, 4, dropped.Len())
}

func TestTable_FilterTakeDoNotAlias(t *testing.T) {
	tb := lineTable()
	sub := tb.Filter(func(i int) bool { return tb.Get(i, "id") != nil })
	require.Equal(t, 3, sub.Len())

	sub.Set(0, "line_factid", "changed")
	assert.Equal(t, "L1", tb.Get(0, "line_factid"))
}

func TestTable_SortByNullsLast(t *testing.T) {
	sorted := lineTable().SortBy("id")
	assert.Equal(t, []any{int64(1), int64(3), int64(4), nil}, sorted.Column("id"))
}

func TestConcat_UnionOfColumns(t *testing.T) {
	a := FromRecords([]string{"x"}, [][]any{{1}})
	b := FromRecords([]string{"y", "x"}, [][]any{{"b", 2}})

	out := Concat(a, nil, b)
	require.Equal(t, []string{"x", "y"}, out.Columns())
	require.Equal(t, 2, out.Len())
	assert.Nil(t, out.Get(0, "y"))
	assert.Equal(t, 2, out.Get(1, "x"))
}

func TestValues_Conversions(t *testing.T) {
	n, ok := AsInt64("12")
	require.True(t, ok)
	assert.Equal(t, int64(12), n)

	n, ok = AsInt64(3.0)
	require.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = AsInt64(3.5)
	assert.False(t, ok)

	assert.Equal(t, "3", KeyOf(3.0))
	assert.Equal(t, "3", KeyOf(int64(3)))
	assert.Equal(t, NullKey, KeyOf(nil))

	b, ok := AsBool("true")
	require.True(t, ok)
	assert.True(t, b)

	assert.True(t, Less(int64(2), int64(10)))
	assert.True(t, Less("a", nil))
	assert.False(t, Less(nil, "a"))
}

func TestXLSX_RoundTrip(t *testing.T) {
	ts := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	in := FromRecords([]string{"id", "t_line_name", "ratio", "flag", "created_at"}, [][]any{
		{int64(1), "ライン1", 0.5, true, ts},
		{int64(2), nil, nil, false, nil},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, in))

	out, err := ReadXLSX(&buf)
	require.NoError(t, err)
	require.Equal(t, in.Columns(), out.Columns())
	require.Equal(t, 2, out.Len())

	assert.Equal(t, int64(1), out.Get(0, "id"))
	assert.Equal(t, "ライン1", out.Get(0, "t_line_name"))
	assert.Equal(t, 0.5, out.Get(0, "ratio"))
	assert.Equal(t, true, out.Get(0, "flag"))
	assert.True(t, ts.Equal(out.Get(0, "created_at").(time.Time)))
	assert.Nil(t, out.Get(1, "t_line_name"))
	assert.Equal(t, false, out.Get(1, "flag"))
}
