package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

func TestMemoryStore_InsertSelectCoerces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rows := table.FromRecords([]string{"id", "plant_id", "line_factid", "line_no", "line_sign"}, [][]any{
		{int64(10), "3", "L1", 1, "Line"},
		{int64(11), int64(3), "L2", nil, "Line"},
	})
	n, err := s.Insert(ctx, domain.MLine, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Select(ctx, domain.MLine, domain.Eq("plant_id", 3))
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, int64(3), got.Get(0, "plant_id"))
	assert.Equal(t, "1", got.Get(0, "line_no"))

	got, err = s.Select(ctx, domain.MLine, domain.Filter{"line_no": {nil}})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "L2", got.Get(0, "line_factid"))

	got, err = s.Select(ctx, domain.MLine, domain.Filter{"line_no": {}})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())

	_, err = s.Select(ctx, domain.MLine, domain.Eq("nope", 1))
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestMemoryStore_RejectsDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rows := table.FromRecords([]string{"unit"}, [][]any{{"mm"}})

	_, err := s.Insert(ctx, domain.MUnit, rows)
	require.NoError(t, err)
	_, err = s.Insert(ctx, domain.MUnit, rows)
	require.Error(t, err)
}

func TestMemoryStore_ProcessUniquePerDataSource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Insert(ctx, domain.MProcess, table.FromRecords(
		[]string{"process_factid", "process_name_en", "data_source_id"},
		[][]any{{"P1", "Press", int64(1)}, {"P1", "Press", int64(2)}},
	))
	require.NoError(t, err)
}

func TestMemoryStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Insert(ctx, domain.MappingCategoryData, table.FromRecords(
		[]string{"data_id", "data_table_id", "value"},
		[][]any{{int64(5), int64(1), "OK"}, {int64(5), int64(1), "NG"}, {int64(6), int64(1), "ok"}},
	))
	require.NoError(t, err)

	n, err := s.UpdateWhere(ctx, domain.MappingCategoryData, domain.Eq("data_id", 5), map[string]any{"factor": 1, "group_id": 9})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.UpdateWhere(ctx, domain.MappingCategoryData, nil, map[string]any{"factor": 1})
	require.ErrorIs(t, err, ErrEmptyFilter)

	n, err = s.Delete(ctx, domain.MappingCategoryData, domain.Eq("value", "NG"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left := s.Snapshot(domain.MappingCategoryData)
	require.Equal(t, 2, left.Len())
	assert.Equal(t, int64(9), left.Get(0, "group_id"))
	assert.Nil(t, left.Get(1, "group_id"))
}

func TestMemoryStore_NextIDsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Insert(ctx, domain.MLineGroup, table.FromRecords([]string{"id", "line_name_en"}, [][]any{{int64(7), "A"}}))
	require.NoError(t, err)

	first, err := s.NextIDs(ctx, domain.MLineGroup, 3)
	require.NoError(t, err)
	second, err := s.NextIDs(ctx, domain.MLineGroup, 2)
	require.NoError(t, err)

	assert.Equal(t, []int64{8, 9, 10}, first)
	assert.Equal(t, []int64{11, 12}, second)
	assert.Equal(t, int64(12), s.SequenceValue(domain.MLineGroup))
}

func TestMemoryStore_NextIDsReservedFloor(t *testing.T) {
	ids, err := NewMemoryStore().NextIDs(context.Background(), domain.MDataGroup, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{domain.MaxReservedNameID + 1, domain.MaxReservedNameID + 2}, ids)
}

func TestMemoryStore_DummyIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Insert(ctx, domain.MEquipGroup, table.FromRecords([]string{"id", "equip_name_en"}, [][]any{
		{int64(-1), "dummy"}, {int64(0), "zero"}, {int64(4), "real"},
	}))
	require.NoError(t, err)

	ids, err := s.DummyIDs(ctx, domain.MEquipGroup)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{-1: {}, 0: {}}, ids)
}

func TestAllocate(t *testing.T) {
	assert.Equal(t, []int64{21, 22}, allocate(20, 5, 0, 2))
	assert.Equal(t, []int64{31}, allocate(20, 30, 0, 1))
	assert.Equal(t, []int64{101}, allocate(46, 0, 100, 1))
}

func TestWhere_RendersNullAndValues(t *testing.T) {
	var a args
	sql, err := where(domain.MLine, domain.Filter{"line_no": {nil, "01"}, "plant_id": {int64(1), "2"}}, &a)
	require.NoError(t, err)
	assert.Equal(t, ` WHERE ("line_no" IN ($1) OR "line_no" IS NULL) AND ("plant_id" IN ($2, $3))`, sql)
	assert.Equal(t, []any{"01", int64(1), int64(2)}, []any(a))
}
