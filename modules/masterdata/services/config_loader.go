package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

var ErrUnknownDataTable = errors.New("unknown data table")

// ConfigLoader resolves a data table id to its import configuration.
type ConfigLoader interface {
	LoadDataTableConfig(ctx context.Context, dataTableID int64) (domain.DataTableConfig, error)
}

// StoreConfigLoader reads cfg_data_table, cfg_data_source and
// cfg_data_table_column.
type StoreConfigLoader struct {
	store Store
}

func NewStoreConfigLoader(store Store) *StoreConfigLoader {
	return &StoreConfigLoader{store: store}
}

func (l *StoreConfigLoader) LoadDataTableConfig(ctx context.Context, dataTableID int64) (domain.DataTableConfig, error) {
	tables, err := l.store.Select(ctx, domain.CfgDataTable, domain.Eq(domain.ColID, dataTableID))
	if err != nil {
		return domain.DataTableConfig{}, errors.Wrap(err, "select cfg_data_table")
	}
	if tables.Empty() {
		return domain.DataTableConfig{}, errors.Wrapf(ErrUnknownDataTable, "data table %d", dataTableID)
	}
	cfg := domain.DataTableConfig{ID: dataTableID, Name: asText(tables.Get(0, "name"))}

	if sourceID, ok := table.AsInt64(tables.Get(0, "data_source_id")); ok {
		sources, err := l.store.Select(ctx, domain.CfgDataSource, domain.Eq(domain.ColID, sourceID))
		if err != nil {
			return cfg, errors.Wrap(err, "select cfg_data_source")
		}
		if !sources.Empty() {
			direct, _ := table.AsBool(sources.Get(0, "is_direct_import"))
			cfg.DataSource = domain.DataSource{
				ID:             sourceID,
				Name:           asText(sources.Get(0, "name")),
				Type:           domain.ParseDataSourceType(asText(sources.Get(0, "type"))),
				IsDirectImport: direct,
			}
		}
	}

	columns, err := l.store.Select(ctx, domain.CfgDataTableColumn, domain.Eq(domain.ColDataTableID, dataTableID))
	if err != nil {
		return cfg, errors.Wrap(err, "select cfg_data_table_column")
	}
	for i := 0; i < columns.Len(); i++ {
		group, _ := table.AsInt64(columns.Get(i, "data_group_type"))
		cfg.Columns = append(cfg.Columns, domain.DataTableColumn{
			ColumnName:    asText(columns.Get(i, "column_name")),
			DataGroupType: domain.DataGroupType(group),
			DataType:      asText(columns.Get(i, "data_type")),
		})
	}
	return cfg, nil
}
