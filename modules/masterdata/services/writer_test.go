package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/infrastructure/persistence"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/eventbus"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

func newTestWriter(t *testing.T) (*Writer, *persistence.MemoryStore, eventbus.EventBus) {
	t.Helper()
	store := persistence.NewMemoryStore()
	bus := eventbus.NewEventPublisher(logrus.New())
	return NewWriter(store, NewNotifier(bus)), store, bus
}

func lineFrame(factids ...any) *table.Table {
	tb := table.New("line_group_id", "line_factid", "line_no")
	for _, f := range factids {
		tb.AppendValues(int64(1), f, "01")
	}
	return tb
}

func TestWriter_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	w, store, _ := newTestWriter(t)

	first := lineFrame("L1", "L2", "L1")
	n, err := w.WriteMasterData(ctx, first, domain.MLine, WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, first.Get(0, "line_id"), first.Get(2, "line_id"))
	assert.NotEqual(t, first.Get(0, "line_id"), first.Get(1, "line_id"))

	second := lineFrame("L2", "L1")
	n, err = w.WriteMasterData(ctx, second, domain.MLine, WriteOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, first.Get(1, "line_id"), second.Get(0, "line_id"))
	assert.Equal(t, first.Get(0, "line_id"), second.Get(1, "line_id"))
	assert.Equal(t, 2, store.Snapshot(domain.MLine).Len())
}

func TestWriter_LineMatchingIgnoresCaseAndFormat(t *testing.T) {
	ctx := context.Background()
	w, store, _ := newTestWriter(t)

	seed := lineFrame("Line 01")
	_, err := w.WriteMasterData(ctx, seed, domain.MLine, WriteOptions{})
	require.NoError(t, err)
	want := seed.Get(0, "line_id")

	again := lineFrame("line_01", "LINE:(01)", "Line01", "line  01")
	n, err := w.WriteMasterData(ctx, again, domain.MLine, WriteOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
	for i := 0; i < again.Len(); i++ {
		assert.Equal(t, want, again.Get(i, "line_id"), "row %d", i)
	}
	assert.Equal(t, 1, store.Snapshot(domain.MLine).Len())
}

func TestWriter_CollapsesNewRowsWithinBatch(t *testing.T) {
	ctx := context.Background()
	w, store, _ := newTestWriter(t)

	frame := lineFrame("Line A", "LINE_A", "line a")
	n, err := w.WriteMasterData(ctx, frame, domain.MLine, WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, frame.Get(0, "line_id"), frame.Get(1, "line_id"))
	assert.Equal(t, frame.Get(0, "line_id"), frame.Get(2, "line_id"))

	stored := store.Snapshot(domain.MLine)
	require.Equal(t, 1, stored.Len())
	assert.Equal(t, "Line A", stored.Get(0, "line_factid"))
	assert.Equal(t, "Line", stored.Get(0, "line_sign"))
	assert.NotNil(t, stored.Get(0, domain.ColCreatedAt))
}

func TestWriter_SkipsRowsWithoutIdentity(t *testing.T) {
	ctx := context.Background()
	w, store, _ := newTestWriter(t)

	frame := table.New("line_group_id", "line_factid", "line_no")
	frame.AppendValues(nil, nil, nil)
	frame.AppendValues(nil, "", "  ")
	n, err := w.WriteMasterData(ctx, frame, domain.MLine, WriteOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, frame.Get(0, "line_id"))
	assert.Equal(t, 0, store.Snapshot(domain.MLine).Len())
}

func TestWriter_NeverMergesIntoDummyRows(t *testing.T) {
	ctx := context.Background()
	w, store, _ := newTestWriter(t)

	dummy := table.New(domain.ColID, "line_name_en")
	dummy.AppendValues(int64(-1), "Unknown Line")
	_, err := store.Insert(ctx, domain.MLineGroup, dummy)
	require.NoError(t, err)

	frame := table.New("line_name_en")
	frame.AppendValues("unknown_line")
	n, err := w.WriteMasterData(ctx, frame, domain.MLineGroup, WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	id, ok := table.AsInt64(frame.Get(0, "line_group_id"))
	require.True(t, ok)
	assert.Positive(t, id)
}

func TestWriter_SystemNameTier(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWriter(t)

	seed := table.New("location_name_en")
	seed.AppendValues("Tokyo Plant")
	_, err := w.WriteMasterData(ctx, seed, domain.MLocation, WriteOptions{})
	require.NoError(t, err)

	frame := table.New("location_name_jp", "location_name_en")
	frame.AppendValues("東京", "TOKYO-PLANT")
	n, err := w.WriteMasterData(ctx, frame, domain.MLocation, WriteOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, seed.Get(0, "location_id"), frame.Get(0, "location_id"))
}

func TestWriter_ProcessScopedByDataSource(t *testing.T) {
	ctx := context.Background()
	w, store, _ := newTestWriter(t)

	frame := func() *table.Table {
		tb := table.New("process_factid", "process_name_en")
		tb.AppendValues("P1", "Press")
		return tb
	}

	first := frame()
	_, err := w.WriteMasterData(ctx, first, domain.MProcess, WriteOptions{DataSourceID: 1})
	require.NoError(t, err)

	merged := frame()
	n, err := w.WriteMasterData(ctx, merged, domain.MProcess, WriteOptions{DataSourceID: 2})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, first.Get(0, "process_id"), merged.Get(0, "process_id"))

	separate := frame()
	n, err = w.WriteMasterData(ctx, separate, domain.MProcess, WriteOptions{DataSourceID: 2, SkipMergeWithDifferentDataSources: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEqual(t, first.Get(0, "process_id"), separate.Get(0, "process_id"))

	stored := store.Snapshot(domain.MProcess)
	require.Equal(t, 2, stored.Len())
	assert.Equal(t, int64(2), stored.Get(1, "data_source_id"))
}

func TestWriter_MappingRowsInsertedOnce(t *testing.T) {
	ctx := context.Background()
	w, store, _ := newTestWriter(t)

	frame := func() *table.Table {
		tb := table.New("t_part_no", "t_part_name", domain.ColDataTableID, "part_id")
		tb.AppendValues("A-1", "Bolt", int64(7), int64(1))
		tb.AppendValues("A-1", "Bolt", int64(7), int64(1))
		tb.AppendValues("A-2", "Nut", int64(7), int64(2))
		return tb
	}

	n, err := w.WriteMasterData(ctx, frame(), domain.MappingPart, WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.WriteMasterData(ctx, frame(), domain.MappingPart, WriteOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, store.Snapshot(domain.MappingPart).Len())
}

func TestWriter_PublishesInsertedIDs(t *testing.T) {
	ctx := context.Background()
	w, _, bus := newTestWriter(t)

	var got []*MasterDataChanged
	bus.Subscribe(func(ev *MasterDataChanged) { got = append(got, ev) })

	frame := table.New("unit")
	frame.AppendValues("mm")
	frame.AppendValues("kg")
	_, err := w.WriteMasterData(ctx, frame, domain.MUnit, WriteOptions{})
	require.NoError(t, err)
	_, err = w.WriteMasterData(ctx, frame, domain.MUnit, WriteOptions{})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "m_unit", got[0].Table)
	assert.Len(t, got[0].IDs, 2)
}

func TestWriter_WhereLimitsRows(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWriter(t)

	frame := table.New("unit")
	frame.AppendValues("mm")
	frame.AppendValues("kg")
	n, err := w.WriteMasterData(ctx, frame, domain.MUnit, WriteOptions{Where: func(i int) bool { return i == 1 }})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, frame.Get(0, "unit_id"))
	assert.NotNil(t, frame.Get(1, "unit_id"))
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "line 01", looseKey("LINE_(01)"))
	assert.Equal(t, "a b", looseKey("  A:/  B "))
	assert.Equal(t, "line01", noSpaceKey(" Line 0\t1 "))
	assert.Equal(t, table.NullKey, looseKey(nil))
	assert.Equal(t, "3", noSpaceKey(int64(3)))
}

func TestMatchTiers(t *testing.T) {
	names := func(ts []tier) []string {
		out := make([]string, len(ts))
		for i, tr := range ts {
			out[i] = tr.name
		}
		return out
	}
	assert.Equal(t, []string{TierExact, TierLoose, TierSystemName, TierNoSpace}, names(matchTiers(domain.MLocation)))
	assert.Equal(t, []string{TierExact, TierLoose, TierNoSpace}, names(matchTiers(domain.MLine)))
	assert.Equal(t, []string{TierExact, TierLoose, TierNoSpace}, names(matchTiers(domain.MData)))
	assert.Equal(t, []string{TierExact}, names(matchTiers(domain.MappingPart)))

	_, cols, ok := systemNameColumns(domain.MPlant)
	require.True(t, ok)
	assert.Equal(t, []string{"plant_name_sys", "factory_id"}, cols)
}
