package services

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/lock"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

const (
	// AllDataRelation is the file stacking every mapping of a data table.
	AllDataRelation = "ALL_DATA_RELATION"
	// MappingTableColumn names the source mapping of an AllDataRelation row.
	MappingTableColumn = "mapping_table"
)

// FileKey is the blob key of one nayose file.
func FileKey(dataTableID int64, name string) string {
	return fmt.Sprintf("%d/%s.xlsx", dataTableID, name)
}

func exportLockKey(dataTableID int64) string {
	return fmt.Sprintf("nayose:%d", dataTableID)
}

// Exporter keeps the nayose files of each data table: one workbook per
// mapping plus AllDataRelation.
type Exporter struct {
	blobs  blob.Store
	locker lock.Locker
}

func NewExporter(blobs blob.Store, locker lock.Locker) *Exporter {
	if locker == nil {
		locker = lock.NewMemory()
	}
	return &Exporter{blobs: blobs, locker: locker}
}

// Export merges frames into the stored files of dataTableID and returns the
// written keys. Rows equal on every non-id column are kept once, prior rows
// first.
func (e *Exporter) Export(ctx context.Context, dataTableID int64, frames map[domain.MappingTarget]*table.Table) ([]string, error) {
	unlock, err := e.locker.Lock(ctx, exportLockKey(dataTableID))
	if err != nil {
		return nil, errors.Wrapf(err, "lock nayose files of %d", dataTableID)
	}
	defer func() {
		if uErr := unlock(context.WithoutCancel(ctx)); uErr != nil {
			logWithFields(ctx, logrus.WarnLevel, "nayose.export.unlock_failed", logrus.Fields{
				"data_table_id": dataTableID,
				"error":         uErr.Error(),
			})
		}
	}()

	var (
		keys     []string
		relation []*table.Table
		idCols   = []string{domain.ColID}
	)
	for _, mm := range domain.MappingModels() {
		idCols = append(idCols, mm.IDColumns()...)
		frame := frames[mm.Target()]
		if frame.Empty() {
			continue
		}
		rows := frame.Select(writableColumns(mm)...)
		key := FileKey(dataTableID, string(mm.Target()))
		merged, err := e.merge(ctx, key, rows, append([]string{domain.ColID}, mm.IDColumns()...))
		if err != nil {
			return keys, err
		}
		if err := e.write(ctx, key, string(mm.Target()), merged); err != nil {
			return keys, err
		}
		keys = append(keys, key)

		tagged := rows.Clone()
		tagged.AddColumn(MappingTableColumn, string(mm.Target()))
		relation = append(relation, tagged)
	}
	if len(relation) == 0 {
		return keys, nil
	}

	key := FileKey(dataTableID, AllDataRelation)
	merged, err := e.merge(ctx, key, table.Concat(relation...), idCols)
	if err != nil {
		return keys, err
	}
	if err := e.write(ctx, key, AllDataRelation, merged); err != nil {
		return keys, err
	}
	return append(keys, key), nil
}

// Read loads one nayose file. It returns blob.ErrNotFound when missing.
func (e *Exporter) Read(ctx context.Context, dataTableID int64, name string) (*table.Table, error) {
	return e.read(ctx, FileKey(dataTableID, name))
}

func (e *Exporter) read(ctx context.Context, key string) (*table.Table, error) {
	rc, err := e.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	t, err := table.ReadXLSX(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", key)
	}
	return t, nil
}

func (e *Exporter) merge(ctx context.Context, key string, rows *table.Table, idCols []string) (*table.Table, error) {
	prior, err := e.read(ctx, key)
	if err != nil && !errors.Is(err, blob.ErrNotFound) {
		return nil, err
	}
	merged := table.Concat(prior, rows)
	var cols []string
	for _, c := range merged.Columns() {
		if !slices.Contains(idCols, c) {
			cols = append(cols, c)
		}
	}
	return merged.DropDuplicates(cols, nil), nil
}

func (e *Exporter) write(ctx context.Context, key, label string, t *table.Table) error {
	var buf bytes.Buffer
	if err := table.WriteXLSX(&buf, t); err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	if err := e.blobs.Put(ctx, key, &buf); err != nil {
		return errors.Wrapf(err, "store %s", key)
	}
	nayoseExportFiles.WithLabelValues(label).Inc()
	logWithFields(ctx, logrus.InfoLevel, "nayose.export.file", logrus.Fields{"key": key, "rows": t.Len()})
	return nil
}
