package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/infrastructure/persistence"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob/fs"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/lock"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

func partRows(parts ...string) *table.Table {
	tb := table.New("t_part_no", "t_part_name", domain.ColDataTableID, "part_id")
	for i, p := range parts {
		tb.AppendValues(p, "Bolt", testDataTableID, int64(i+1))
	}
	return tb
}

func TestExporter_MergesWithPriorFiles(t *testing.T) {
	ctx := context.Background()
	blobs, err := fs.New(t.TempDir())
	require.NoError(t, err)
	e := NewExporter(blobs, lock.NewMemory())

	_, err = e.Read(ctx, testDataTableID, string(domain.TargetPart))
	assert.ErrorIs(t, err, blob.ErrNotFound)

	keys, err := e.Export(ctx, testDataTableID, map[domain.MappingTarget]*table.Table{
		domain.TargetPart: partRows("A-1", "A-2"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10/mapping_part.xlsx", "10/ALL_DATA_RELATION.xlsx"}, keys)

	// A-2 resolves to a different id the second time; it is still one row.
	_, err = e.Export(ctx, testDataTableID, map[domain.MappingTarget]*table.Table{
		domain.TargetPart: partRows("A-2", "A-3"),
	})
	require.NoError(t, err)

	parts, err := e.Read(ctx, testDataTableID, string(domain.TargetPart))
	require.NoError(t, err)
	assert.Equal(t, []any{"A-1", "A-2", "A-3"}, parts.Column("t_part_no"))
	assert.Equal(t, []any{testDataTableID, testDataTableID, testDataTableID}, parts.Column(domain.ColDataTableID))

	all, err := e.Read(ctx, testDataTableID, AllDataRelation)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Len())

	keys, err = e.Export(ctx, testDataTableID, nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStoreConfigLoader(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedDataTable(t, store, "v2_multi", true,
		domain.DataTableColumn{ColumnName: "LINE", DataGroupType: domain.LineName, DataType: "TEXT"},
		domain.DataTableColumn{ColumnName: "temp", DataGroupType: domain.Generated, DataType: "REAL"},
	)

	cfg, err := NewStoreConfigLoader(store).LoadDataTableConfig(ctx, testDataTableID)
	require.NoError(t, err)
	assert.Equal(t, "press_log", cfg.Name)
	assert.Equal(t, domain.DataSource{ID: 1, Name: "line-sensors", Type: domain.DataSourceV2Multi, IsDirectImport: true}, cfg.DataSource)
	require.Len(t, cfg.Columns, 2)
	col, ok := cfg.ColumnFor(domain.LineName)
	require.True(t, ok)
	assert.Equal(t, "LINE", col.ColumnName)
	assert.Equal(t, map[domain.DataGroupType]string{domain.LineName: "TEXT", domain.Generated: "REAL"}, cfg.DataTypes())

	_, err = NewStoreConfigLoader(store).LoadDataTableConfig(ctx, 99)
	assert.ErrorIs(t, err, ErrUnknownDataTable)
}
