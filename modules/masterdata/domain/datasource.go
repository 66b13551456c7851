package domain

import "strings"

// DataSourceType selects the column transform applied before matching.
type DataSourceType string

const (
	DataSourceCSV              DataSourceType = "CSV"
	DataSourceEFA              DataSourceType = "EFA"
	DataSourceV2               DataSourceType = "V2"
	DataSourceV2Multi          DataSourceType = "V2_MULTI"
	DataSourceV2History        DataSourceType = "V2_HISTORY"
	DataSourceSoftwareWorkshop DataSourceType = "SOFTWARE_WORKSHOP"
	DataSourcePostgres         DataSourceType = "POSTGRESQL"
	DataSourceSQLServer        DataSourceType = "MSSQLSERVER"
	DataSourceOracle           DataSourceType = "ORACLE"
	DataSourceMySQL            DataSourceType = "MYSQL"
	DataSourceOthers           DataSourceType = "OTHERS"
)

func ParseDataSourceType(s string) DataSourceType {
	t := DataSourceType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case DataSourceCSV, DataSourceEFA, DataSourceV2, DataSourceV2Multi, DataSourceV2History,
		DataSourceSoftwareWorkshop, DataSourcePostgres, DataSourceSQLServer, DataSourceOracle, DataSourceMySQL:
		return t
	default:
		return DataSourceOthers
	}
}

func (t DataSourceType) IsV2() bool {
	return t == DataSourceV2 || t == DataSourceV2Multi || t == DataSourceV2History
}

type DataSource struct {
	ID             int64
	Name           string
	Type           DataSourceType
	IsDirectImport bool
}

type DataTableColumn struct {
	ColumnName    string
	DataGroupType DataGroupType
	DataType      string
}

// DataTableConfig is one import target with its source and classified columns.
type DataTableConfig struct {
	ID         int64
	Name       string
	DataSource DataSource
	Columns    []DataTableColumn
}

// ColumnFor returns the first column classified as t.
func (c DataTableConfig) ColumnFor(t DataGroupType) (DataTableColumn, bool) {
	for _, col := range c.Columns {
		if col.DataGroupType == t {
			return col, true
		}
	}
	return DataTableColumn{}, false
}

// DataTypes maps data group types to their configured raw data type.
func (c DataTableConfig) DataTypes() map[DataGroupType]string {
	out := make(map[DataGroupType]string, len(c.Columns))
	for _, col := range c.Columns {
		if col.DataType == "" {
			continue
		}
		if _, ok := out[col.DataGroupType]; !ok {
			out[col.DataGroupType] = col.DataType
		}
	}
	return out
}
