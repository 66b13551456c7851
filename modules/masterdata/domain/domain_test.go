package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

func TestModels_UniqueKeysAreColumns(t *testing.T) {
	for _, m := range AllModels() {
		for _, c := range m.UniqueKey() {
			_, ok := m.Column(c)
			assert.True(t, ok, "%s: key column %s", m.Table(), c)
		}
		if h, ok := m.(Hierarchical); ok {
			for _, p := range h.Parents() {
				_, ok := m.Column(p)
				assert.True(t, ok, "%s: parent %s", m.Table(), p)
			}
		}
	}
}

func TestModels_TablesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range AllModels() {
		require.False(t, seen[m.Table()], m.Table())
		seen[m.Table()] = true
	}
	m, ok := ModelByTable("m_line")
	require.True(t, ok)
	assert.Same(t, MLine, m)
}

func TestModels_Capabilities(t *testing.T) {
	col, def := Model(MLine).(Signed).Sign()
	assert.Equal(t, "line_sign", col)
	assert.Equal(t, "Line", def)

	_, ok := Model(MProcess).(DataSourceScoped)
	assert.True(t, ok)
	_, ok = Model(MFactory).(DataSourceScoped)
	assert.False(t, ok)

	assert.Equal(t, MaxReservedNameID, Model(MDataGroup).(ReservedIDFloored).ReservedIDFloor())
	assert.Equal(t, "is_hide", Model(MData).(SoftDeletable).HideColumn())

	_, ok = MLine.Column(ColCreatedAt)
	assert.True(t, ok)
	_, ok = MappingPart.Column(ColCreatedAt)
	assert.False(t, ok)
}

func TestIdentityColumns_SkipParents(t *testing.T) {
	assert.Equal(t, []string{"line_group_id", "line_factid", "line_no"}, IdentityColumns(MLine))
	assert.Equal(t, []string{"data_factid"}, IdentityColumns(MData))
	assert.Equal(t, []string{"line_id", "process_id", "equip_id", "st_id"}, IdentityColumns(RFactoryMachine))
	assert.Equal(t, MLocation.UniqueKey(), IdentityColumns(MLocation))
}

func TestMappingModel_PhysicalColumns(t *testing.T) {
	c, ok := MappingFactoryMachine.Physical(LineName)
	require.True(t, ok)
	assert.Equal(t, "t_line_name", c)

	key := MappingPart.UniqueKey()
	assert.Equal(t, ColDataTableID, key[len(key)-1])
	assert.Contains(t, key, "t_part_no")
	assert.NotContains(t, key, "part_id")

	m, ok := MappingModelFor(TargetProcessData)
	require.True(t, ok)
	assert.Equal(t, []string{"data_id"}, m.IDColumns())
}

func TestDataGroupType_Parse(t *testing.T) {
	g, err := ParseDataGroupType("linename")
	require.NoError(t, err)
	assert.Equal(t, LineName, g)

	g, err = ParseDataGroupType("23")
	require.NoError(t, err)
	assert.Equal(t, EquipName, g)

	_, err = ParseDataGroupType("nope")
	require.Error(t, err)

	reserved := ReservedDataGroupTypes()
	assert.Contains(t, reserved, DataTime)
	assert.NotContains(t, reserved, Generated)
	assert.NotContains(t, reserved, GeneratedEquation)
}

func TestNames(t *testing.T) {
	assert.True(t, IsJapanese("ライン1"))
	assert.False(t, IsJapanese("Line 1"))

	jp, en := SplitName(" 組立 ")
	assert.Equal(t, "組立", jp)
	assert.Nil(t, en)

	assert.Equal(t, "Line_1_A", SystemName("", "Ｌｉｎｅ　1 (A)"))
	assert.Equal(t, "Press", SystemName("プレス", "Press"))
	assert.Nil(t, SystemName("プレス"))
}

func TestCatalog_Instance(t *testing.T) {
	c := NewCatalog(nil)

	meta := c.Instance(EquipName)
	require.NotNil(t, meta)
	assert.Equal(t, EquipID, meta.Represent)
	assert.Same(t, MEquipGroup, meta.Model)
	assert.Same(t, MEquip, meta.RepresentModel)
	assert.False(t, meta.IsRepresent())

	assert.Nil(t, c.Instance(DataValue))
	assert.Contains(t, c.Dependents(LineID), LineName)
	assert.Contains(t, c.Represents(), StationNo)
	assert.NotContains(t, c.Represents(), LineName)
}

func TestRelationMasters_SharedPerRepresent(t *testing.T) {
	r := NewRelationMasters(NewCatalog(nil))

	a := r.Get(EquipName)
	b := r.Get(EquipID)
	require.NotNil(t, a)
	assert.Same(t, a, b)

	assert.Nil(t, r.Get(DataValue))
	assert.Nil(t, r.Get(Unit))

	r.Reset()
	assert.NotSame(t, a, r.Get(EquipID))
}

func TestRelationMaster_SQL(t *testing.T) {
	line := buildRelationMaster(LineID)

	en := line.SQL(language.English)
	assert.Contains(t, en, "SELECT DISTINCT r.line_id AS id, COALESCE(g.line_name_en, g.line_name_sys, g.line_name_jp, g.line_name_local, CAST(m.line_factid AS TEXT)) AS name, m.id AS master_id FROM r_factory_machine r")
	assert.Contains(t, en, "LEFT JOIN m_plant p ON p.id = m.plant_id")

	ja := line.SQL(language.Japanese)
	assert.Contains(t, ja, "COALESCE(g.line_name_jp, g.line_name_en")
	assert.True(t, PreferJapanese(language.MustParse("ja-JP")))
	assert.False(t, PreferJapanese(language.Und))
}

func TestRecords_FromTable(t *testing.T) {
	tb := table.FromRecords(
		[]string{"id", "process_id", "data_group_id", "data_name_en", "is_hide"},
		[][]any{{int64(5), int64(1), int64(101), "Temp", false}},
	)
	rec := MDataFrom(tb)
	require.Len(t, rec, 1)
	assert.Equal(t, int64(5), rec[0].ID)
	assert.Equal(t, "Temp", rec[0].Names.Display())
	assert.Nil(t, rec[0].NameValues()["data_name_jp"])

	cfg := DataTableConfig{Columns: []DataTableColumn{{ColumnName: "ライン", DataGroupType: LineName, DataType: "TEXT"}}}
	col, ok := cfg.ColumnFor(LineName)
	require.True(t, ok)
	assert.Equal(t, "ライン", col.ColumnName)
	assert.Equal(t, map[DataGroupType]string{LineName: "TEXT"}, cfg.DataTypes())
	assert.Equal(t, DataSourceOthers, ParseDataSourceType("excel"))
	assert.True(t, ParseDataSourceType("v2_multi").IsV2())
}
