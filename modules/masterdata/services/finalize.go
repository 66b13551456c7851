package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// Filter types generated for every process.
const (
	FilterLine    = "LINE"
	FilterMachine = "MACHINE"
	FilterPartNo  = "PART_NO"
)

var defaultFilterTypes = map[domain.DataGroupType]string{
	domain.LineID:  FilterLine,
	domain.EquipID: FilterMachine,
	domain.PartNo:  FilterPartNo,
}

// GenerateDefaultFilters adds a cfg_filter row for every line, equipment
// and part number column of the processes.
func GenerateDefaultFilters(ctx context.Context, w *Writer, processIDs []int64) (int, error) {
	if len(processIDs) == 0 {
		return 0, nil
	}
	groups := make([]int64, 0, len(defaultFilterTypes))
	for g := range defaultFilterTypes {
		groups = append(groups, int64(g))
	}
	rows, err := w.store.Select(ctx, domain.MData,
		domain.In("process_id", processIDs).And(domain.In("data_group_id", groups)))
	if err != nil {
		return 0, errors.Wrap(err, "select filter columns")
	}
	frame := table.New("process_id", "filter_type", "column_id", "name")
	for _, r := range domain.MDataFrom(rows) {
		frame.AppendValues(r.ProcessID, defaultFilterTypes[domain.DataGroupType(r.DataGroupID)], r.ID, nullIfEmpty(r.Names.Display()))
	}
	return w.WriteMasterData(ctx, frame, domain.CfgFilter, WriteOptions{})
}

// AddRepresentativePlaceholders adds a hidden m_data row for the
// representative group of every non-representative column whose process
// has no column of that group yet.
func AddRepresentativePlaceholders(ctx context.Context, w *Writer, catalog *domain.Catalog, processIDs []int64) (int, error) {
	if len(processIDs) == 0 {
		return 0, nil
	}
	rows, err := w.store.Select(ctx, domain.MData, domain.In("process_id", processIDs))
	if err != nil {
		return 0, errors.Wrap(err, "select m_data")
	}
	records := domain.MDataFrom(rows)
	present := map[int64]map[domain.DataGroupType]bool{}
	for _, r := range records {
		if present[r.ProcessID] == nil {
			present[r.ProcessID] = map[domain.DataGroupType]bool{}
		}
		present[r.ProcessID][domain.DataGroupType(r.DataGroupID)] = true
	}

	dataNames := namesOf(domain.MData)
	frame := table.New("process_id", "data_group_id", "data_factid", dataNames.JP, dataNames.EN, "is_hide")
	for _, r := range records {
		meta, ok := catalog.Lookup(domain.DataGroupType(r.DataGroupID))
		if !ok || meta.IsRepresent() {
			continue
		}
		rep := meta.Represent
		if present[r.ProcessID][rep] {
			continue
		}
		present[r.ProcessID][rep] = true
		frame.AppendValues(r.ProcessID, int64(rep), rep.String(), rep.NameJP(), rep.NameEN(), true)
	}
	return w.WriteMasterData(ctx, frame, domain.MData, WriteOptions{})
}

// ScanDataTypes copies configured raw data types onto the processes' m_data
// rows that have none yet.
func ScanDataTypes(ctx context.Context, store Store, cfg domain.DataTableConfig, processIDs []int64) (int, error) {
	if len(processIDs) == 0 {
		return 0, nil
	}
	total := 0
	for _, col := range cfg.Columns {
		if col.DataType == "" || col.ColumnName == "" {
			continue
		}
		f := domain.In("process_id", processIDs).And(domain.Filter{
			"data_factid": {col.ColumnName},
			"data_type":   {nil},
		})
		n, err := store.UpdateWhere(ctx, domain.MData, f, map[string]any{"data_type": col.DataType})
		if err != nil {
			return total, errors.Wrapf(err, "set data type of %s", col.ColumnName)
		}
		total += n
	}
	return total, nil
}
