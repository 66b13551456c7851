package services

import (
	"context"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

var reservedDataTypes = map[domain.DataGroupType]string{
	domain.DataTime:      "DATETIME",
	domain.AutoIncrement: "INTEGER",
}

// InsertReservedMData makes sure every process has one m_data row per
// process-level reserved data group.
func InsertReservedMData(ctx context.Context, w *Writer, processIDs []int64) (int, error) {
	if len(processIDs) == 0 {
		return 0, nil
	}
	dataNames := namesOf(domain.MData)
	frame := table.New("process_id", "data_group_id", "data_factid", "data_type", dataNames.JP, dataNames.EN)
	for _, pid := range processIDs {
		for _, t := range domain.ProcessReservedDataGroups {
			frame.AppendValues(pid, int64(t), t.String(), reservedDataTypes[t], t.NameJP(), t.NameEN())
		}
	}
	return w.WriteMasterData(ctx, frame, domain.MData, WriteOptions{})
}
