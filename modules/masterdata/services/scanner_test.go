package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/infrastructure/persistence"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob/fs"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/eventbus"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// staticETL replays fixed batches on every scan.
type staticETL struct {
	batches []Batch
}

func (e staticETL) Stream(ctx context.Context, _ domain.DataTableConfig, fn func(Batch) error) error {
	for _, b := range e.batches {
		frames := make(map[domain.MappingTarget]*table.Table, len(b.Frames))
		for k, v := range b.Frames {
			frames[k] = v.Clone()
		}
		if err := fn(Batch{Frames: frames, Percent: b.Percent}); err != nil {
			return err
		}
	}
	return nil
}

const testDataTableID int64 = 10

func seedDataTable(t *testing.T, store *persistence.MemoryStore, typ domain.DataSourceType, direct bool, cols ...domain.DataTableColumn) {
	t.Helper()
	ctx := context.Background()

	src := table.New("id", "name", "type", "is_direct_import")
	src.AppendValues(int64(1), "line-sensors", string(typ), direct)
	_, err := store.Insert(ctx, domain.CfgDataSource, src)
	require.NoError(t, err)

	dt := table.New("id", "name", "data_source_id")
	dt.AppendValues(testDataTableID, "press_log", int64(1))
	_, err = store.Insert(ctx, domain.CfgDataTable, dt)
	require.NoError(t, err)

	if len(cols) == 0 {
		return
	}
	ct := table.New("data_table_id", "column_name", "data_group_type", "data_type")
	for _, c := range cols {
		ct.AppendValues(testDataTableID, c.ColumnName, int64(c.DataGroupType), c.DataType)
	}
	_, err = store.Insert(ctx, domain.CfgDataTableColumn, ct)
	require.NoError(t, err)
}

func efaMachineBatch() Batch {
	fm := table.New("FactoryID", "FactoryName", "PlantID", "LineName", "EquipName", "ProcessName")
	fm.AppendValues("F1", "Factory A", "P1", "LINE_01", "PRESS-02#1", "Press")
	fm.AppendValues("F1", "Factory A", "P1", "LINE_02", "PRESS-03#2", "Weld")
	return Batch{Frames: map[domain.MappingTarget]*table.Table{domain.TargetFactoryMachine: fm}, Percent: 50}
}

func processDataBatch() Batch {
	pd := table.New("ProcessName", "DataID", "DataName", "Unit")
	pd.AppendValues("Press", "c1", "温度", "℃")
	pd.AppendValues("Press", "c2", "温度", "℃")
	pd.AppendValues("Press", "c3", "温度", nil)
	return Batch{Frames: map[domain.MappingTarget]*table.Table{domain.TargetProcessData: pd}, Percent: 100}
}

func newTestScanner(store *persistence.MemoryStore, etl ETL, opts ...ScannerOption) *Scanner {
	bus := eventbus.NewEventPublisher(logrus.New())
	opts = append([]ScannerOption{WithNotifier(NewNotifier(bus))}, opts...)
	return NewScanner(store, etl, NewStoreConfigLoader(store), opts...)
}

func totalInserted(r *ScanResult) int {
	n := 0
	for _, v := range r.Inserted {
		n += v
	}
	return n
}

func TestScanner_DirectImportBuildsMasters(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedDataTable(t, store, domain.DataSourceEFA, true)
	s := newTestScanner(store, staticETL{batches: []Batch{efaMachineBatch()}})

	var progress []float64
	res, err := s.ScanMaster(ctx, testDataTableID, ScanOptions{}, func(p float64) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.Equal(t, ExportDirect, res.Mode)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, []float64{50, 100}, progress)
	assert.Equal(t, 2, res.MappingRows[domain.TargetFactoryMachine])

	counts := map[domain.Model]int{
		domain.MFactory:        1,
		domain.MPlant:          1,
		domain.MLineGroup:      1,
		domain.MLine:           2,
		domain.MEquipGroup:     1,
		domain.MEquip:          2,
		domain.MSt:             2,
		domain.MProcess:        2,
		domain.RFactoryMachine: 2,
		domain.MLocation:       0,
		domain.MDept:           0,
		domain.MProd:           0,
	}
	for m, want := range counts {
		assert.Equal(t, want, store.Snapshot(m).Len(), m.Table())
	}

	lines := store.Snapshot(domain.MLine)
	assert.ElementsMatch(t, []any{"01", "02"}, lines.Column("line_no"))
	groups := store.Snapshot(domain.MLineGroup)
	assert.Equal(t, "LINE", groups.Get(0, "line_name_en"))

	processes := store.Snapshot(domain.MProcess)
	assert.ElementsMatch(t, []any{"press", "weld"}, processes.Column("process_name_sys"))
	assert.Equal(t, []any{int64(1), int64(1)}, processes.Column("data_source_id"))

	mapping := store.Snapshot(domain.MappingFactoryMachine)
	require.Equal(t, 2, mapping.Len())
	assert.ElementsMatch(t, []any{"LINE_01", "LINE_02"}, mapping.Column("t_line_name"))
	assert.ElementsMatch(t, []any{"PRESS-02#1", "PRESS-03#2"}, mapping.Column("t_equip_name"))
	for i := 0; i < mapping.Len(); i++ {
		assert.NotNil(t, mapping.Get(i, "factory_machine_id"))
		assert.Equal(t, testDataTableID, mapping.Get(i, domain.ColDataTableID))
	}
}

func TestScanner_RepeatedImportAddsNothing(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedDataTable(t, store, domain.DataSourceEFA, true)
	s := newTestScanner(store, staticETL{batches: []Batch{efaMachineBatch()}})

	_, err := s.ScanMaster(ctx, testDataTableID, ScanOptions{}, nil)
	require.NoError(t, err)
	before := map[string]int{}
	for _, m := range domain.AllModels() {
		before[m.Table()] = store.Snapshot(m).Len()
	}

	res, err := s.ScanMaster(ctx, testDataTableID, ScanOptions{}, nil)
	require.NoError(t, err)
	assert.Zero(t, totalInserted(res))
	assert.Zero(t, res.MappingRows[domain.TargetFactoryMachine])
	for _, m := range domain.AllModels() {
		assert.Equal(t, before[m.Table()], store.Snapshot(m).Len(), m.Table())
	}
}

func TestScanner_ProcessDataSuffixesDuplicateNames(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedDataTable(t, store, domain.DataSourceCSV, true,
		domain.DataTableColumn{ColumnName: "c1", DataGroupType: domain.Generated, DataType: "REAL"},
		domain.DataTableColumn{ColumnName: "c2", DataGroupType: domain.Generated, DataType: "REAL"},
		domain.DataTableColumn{ColumnName: "c3", DataGroupType: domain.Generated, DataType: "REAL"},
	)
	s := newTestScanner(store, staticETL{batches: []Batch{processDataBatch()}})

	res, err := s.ScanMaster(ctx, testDataTableID, ScanOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Inserted[domain.MData.Table()])
	assert.Equal(t, 1, res.Inserted[domain.MUnit.Table()])

	data := domain.MDataFrom(store.Snapshot(domain.MData))
	byFactID := map[string]domain.MDataRecord{}
	for _, r := range data {
		byFactID[r.DataFactID] = r
	}
	require.Len(t, byFactID, 5)

	assert.Equal(t, "Temperature", byFactID["c1"].Names.EN)
	assert.Equal(t, "Temperature_01", byFactID["c2"].Names.EN)
	assert.Equal(t, "温度_01", byFactID["c2"].Names.JP)
	assert.Equal(t, "Temperature_02", byFactID["c3"].Names.EN)
	assert.NotEqual(t, byFactID["c1"].DataGroupID, byFactID["c2"].DataGroupID)
	assert.Equal(t, "REAL", byFactID["c1"].DataType)

	assert.Equal(t, int64(domain.DataTime), byFactID["DataTime"].DataGroupID)
	assert.Equal(t, "DATETIME", byFactID["DataTime"].DataType)
	assert.Equal(t, int64(domain.AutoIncrement), byFactID["AutoIncrement"].DataGroupID)

	renamed := byFactID["c2"]
	groups := domain.DataGroupsFrom(store.Snapshot(domain.MDataGroup))
	var found bool
	for _, g := range groups {
		if g.ID == renamed.DataGroupID {
			found = true
			assert.Equal(t, domain.Generated, g.Type)
			assert.Equal(t, "Temperature_01", g.Names.EN)
		}
	}
	assert.True(t, found)

	res, err = s.ScanMaster(ctx, testDataTableID, ScanOptions{}, nil)
	require.NoError(t, err)
	assert.Zero(t, totalInserted(res))
	assert.Len(t, store.Snapshot(domain.MData).Column("id"), 5)
}

func TestScanner_FileExportKeepsMappingOutOfDatabase(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedDataTable(t, store, domain.DataSourceEFA, false)
	blobs, err := fs.New(t.TempDir())
	require.NoError(t, err)
	exporter := NewExporter(blobs, nil)
	s := newTestScanner(store, staticETL{batches: []Batch{efaMachineBatch()}}, WithExporter(exporter))

	res, err := s.ScanMaster(ctx, testDataTableID, ScanOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ExportFile, res.Mode)
	assert.Equal(t, []string{
		FileKey(testDataTableID, string(domain.TargetFactoryMachine)),
		FileKey(testDataTableID, AllDataRelation),
	}, res.Files)
	assert.Zero(t, store.Snapshot(domain.MappingFactoryMachine).Len())
	assert.Equal(t, 2, store.Snapshot(domain.RFactoryMachine).Len())

	file, err := exporter.Read(ctx, testDataTableID, string(domain.TargetFactoryMachine))
	require.NoError(t, err)
	require.Equal(t, 2, file.Len())
	assert.ElementsMatch(t, []any{"LINE_01", "LINE_02"}, file.Column("t_line_name"))

	res, err = s.ScanMaster(ctx, testDataTableID, ScanOptions{}, nil)
	require.NoError(t, err)
	assert.Zero(t, totalInserted(res))
	file, err = exporter.Read(ctx, testDataTableID, string(domain.TargetFactoryMachine))
	require.NoError(t, err)
	assert.Equal(t, 2, file.Len())

	all, err := exporter.Read(ctx, testDataTableID, AllDataRelation)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Len())
	assert.Equal(t, string(domain.TargetFactoryMachine), all.Get(0, MappingTableColumn))
}

func TestScanner_FileModeNeedsExporter(t *testing.T) {
	store := persistence.NewMemoryStore()
	seedDataTable(t, store, domain.DataSourceCSV, true)
	s := newTestScanner(store, staticETL{})

	_, err := s.ScanMaster(context.Background(), testDataTableID, ScanOptions{Mode: ExportFile}, nil)
	assert.Error(t, err)

	_, err = s.ScanMaster(context.Background(), testDataTableID, ScanOptions{Mode: "bogus"}, nil)
	assert.Error(t, err)
}

func TestScanner_UnknownDataTable(t *testing.T) {
	s := newTestScanner(persistence.NewMemoryStore(), staticETL{})
	_, err := s.ScanMaster(context.Background(), 404, ScanOptions{}, nil)
	assert.ErrorIs(t, err, ErrUnknownDataTable)
}

func TestScanner_RunsBatchesInsideTxRunner(t *testing.T) {
	ctx := composables.WithRunID(context.Background(), "run-1")
	store := persistence.NewMemoryStore()
	seedDataTable(t, store, domain.DataSourceEFA, true)

	calls := 0
	runner := TxRunner(func(ctx context.Context, fn func(context.Context) error) error {
		calls++
		return fn(ctx)
	})
	s := newTestScanner(store, staticETL{batches: []Batch{efaMachineBatch(), processDataBatch()}}, WithTxRunner(runner))

	res, err := s.ScanMaster(ctx, testDataTableID, ScanOptions{}, func(float64) { panic("progress sink gone") })
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 3, calls)
}

func TestScanner_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := persistence.NewMemoryStore()
	seedDataTable(t, store, domain.DataSourceEFA, true)
	s := newTestScanner(store, staticETL{batches: []Batch{efaMachineBatch()}})

	_, err := s.ScanMaster(ctx, testDataTableID, ScanOptions{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Snapshot(domain.MFactory).Len())
}
