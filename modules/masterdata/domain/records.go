package domain

import "github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"

// Names holds one entity's display names. Empty means null.
type Names struct {
	JP, EN, Sys, Local string
}

func (n Names) values(c NameColumns) map[string]any {
	return map[string]any{
		c.JP:    nullable(n.JP),
		c.EN:    nullable(n.EN),
		c.Sys:   nullable(n.Sys),
		c.Local: nullable(n.Local),
	}
}

func namesAt(t *table.Table, i int, c NameColumns) Names {
	return Names{
		JP:    str(t.Get(i, c.JP)),
		EN:    str(t.Get(i, c.EN)),
		Sys:   str(t.Get(i, c.Sys)),
		Local: str(t.Get(i, c.Local)),
	}
}

// Display returns the first non-empty name, preferring English.
func (n Names) Display() string {
	for _, s := range []string{n.EN, n.JP, n.Local, n.Sys} {
		if s != "" {
			return s
		}
	}
	return ""
}

type DataGroup struct {
	ID    int64
	Type  DataGroupType
	Names Names
}

func DataGroupsFrom(t *table.Table) []DataGroup {
	out := make([]DataGroup, t.Len())
	for i := range out {
		out[i] = DataGroup{
			ID:    i64(t.Get(i, ColID)),
			Type:  DataGroupType(i64(t.Get(i, "data_group_type"))),
			Names: namesAt(t, i, dataNames),
		}
	}
	return out
}

func (g DataGroup) Values() map[string]any {
	v := g.Names.values(dataNames)
	v["data_group_type"] = int64(g.Type)
	return v
}

type MDataRecord struct {
	ID          int64
	ProcessID   int64
	DataGroupID int64
	UnitID      int64
	DataType    string
	DataFactID  string
	Names       Names
	IsHide      bool
}

func MDataFrom(t *table.Table) []MDataRecord {
	out := make([]MDataRecord, t.Len())
	for i := range out {
		hide, _ := table.AsBool(t.Get(i, "is_hide"))
		out[i] = MDataRecord{
			ID:          i64(t.Get(i, ColID)),
			ProcessID:   i64(t.Get(i, "process_id")),
			DataGroupID: i64(t.Get(i, "data_group_id")),
			UnitID:      i64(t.Get(i, "unit_id")),
			DataType:    str(t.Get(i, "data_type")),
			DataFactID:  str(t.Get(i, "data_factid")),
			Names:       namesAt(t, i, dataNames),
			IsHide:      hide,
		}
	}
	return out
}

// NameValues are the m_data name columns of r.
func (r MDataRecord) NameValues() map[string]any {
	return r.Names.values(dataNames)
}

type MGroupRecord struct {
	ID          int64
	DataGroupID int64
	LastFactor  int64
	Names       Names
}

func MGroupsFrom(t *table.Table) []MGroupRecord {
	out := make([]MGroupRecord, t.Len())
	for i := range out {
		out[i] = MGroupRecord{
			ID:          i64(t.Get(i, ColID)),
			DataGroupID: i64(t.Get(i, "data_group_id")),
			LastFactor:  i64(t.Get(i, "last_factor")),
			Names:       namesAt(t, i, groupNames),
		}
	}
	return out
}

func (g MGroupRecord) Values() map[string]any {
	v := g.Names.values(groupNames)
	v["data_group_id"] = g.DataGroupID
	v["last_factor"] = g.LastFactor
	return v
}

type ColumnGroupRecord struct {
	ID      int64
	GroupID int64
	DataID  int64
}

func ColumnGroupsFrom(t *table.Table) []ColumnGroupRecord {
	out := make([]ColumnGroupRecord, t.Len())
	for i := range out {
		out[i] = ColumnGroupRecord{
			ID:      i64(t.Get(i, ColID)),
			GroupID: i64(t.Get(i, "group_id")),
			DataID:  i64(t.Get(i, "data_id")),
		}
	}
	return out
}

// CategoryValue is one raw categorical value seen for a column. Factor and
// GroupID are zero while ungrouped.
type CategoryValue struct {
	ID          int64
	DataID      int64
	DataTableID int64
	Value       string
	Factor      int64
	GroupID     int64
}

func CategoryValuesFrom(t *table.Table) []CategoryValue {
	out := make([]CategoryValue, t.Len())
	for i := range out {
		out[i] = CategoryValue{
			ID:          i64(t.Get(i, ColID)),
			DataID:      i64(t.Get(i, "data_id")),
			DataTableID: i64(t.Get(i, ColDataTableID)),
			Value:       str(t.Get(i, "value")),
			Factor:      i64(t.Get(i, "factor")),
			GroupID:     i64(t.Get(i, "group_id")),
		}
	}
	return out
}

// SemiMasterRecord is the representative value of one factor.
type SemiMasterRecord struct {
	ID      int64
	GroupID int64
	Factor  int64
	Value   string
}

func SemiMastersFrom(t *table.Table) []SemiMasterRecord {
	out := make([]SemiMasterRecord, t.Len())
	for i := range out {
		out[i] = SemiMasterRecord{
			ID:      i64(t.Get(i, ColID)),
			GroupID: i64(t.Get(i, "group_id")),
			Factor:  i64(t.Get(i, "factor")),
			Value:   str(t.Get(i, "value")),
		}
	}
	return out
}

func str(v any) string {
	s, _ := table.AsString(v)
	return s
}

func i64(v any) int64 {
	n, _ := table.AsInt64(v)
	return n
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
