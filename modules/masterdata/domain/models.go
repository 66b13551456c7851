package domain

import "sort"

func nameSet(prefix string, withAbbr bool) NameColumns {
	n := NameColumns{
		JP:    prefix + "_name_jp",
		EN:    prefix + "_name_en",
		Sys:   prefix + "_name_sys",
		Local: prefix + "_name_local",
	}
	if withAbbr {
		n.AbbrJP = prefix + "_abbr_jp"
		n.AbbrEN = prefix + "_abbr_en"
		n.AbbrLocal = prefix + "_abbr_local"
	}
	return n
}

func text(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Column{Name: n, Type: TypeText}
	}
	return out
}

func ints(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Column{Name: n, Type: TypeInt}
	}
	return out
}

func cols(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func keyOf(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var (
	locationNames   = nameSet("location", true)
	factoryNames    = nameSet("factory", true)
	plantNames      = nameSet("plant", true)
	deptNames       = nameSet("dept", true)
	sectNames       = nameSet("sect", true)
	prodFamilyNames = nameSet("prod_family", true)
	prodNames       = nameSet("prod", true)
	lineNames       = nameSet("line", false)
	equipNames      = nameSet("equip", false)
	processNames    = nameSet("process", true)
	partNames       = nameSet("part", true)
	dataNames       = nameSet("data", true)
	groupNames      = nameSet("group", false)
)

// Masters.
var (
	MLocation = &namedModel{
		base:  newBase("m_location", KindMaster, "location_id", locationNames.Key(), text(locationNames.All()...)...),
		names: names(locationNames),
	}
	MFactory = &namedChildModel{
		base: newBase("m_factory", KindMaster, "factory_id",
			keyOf([]string{"factory_factid"}, factoryNames.Key()),
			cols(ints("location_id"), text("factory_factid"), text(factoryNames.All()...))...),
		names:   names(factoryNames),
		parents: parents{"location_id"},
	}
	MPlant = &namedChildModel{
		base: newBase("m_plant", KindMaster, "plant_id",
			keyOf([]string{"factory_id", "plant_factid"}, plantNames.Key()),
			cols(ints("factory_id"), text("plant_factid"), text(plantNames.All()...))...),
		names:   names(plantNames),
		parents: parents{"factory_id"},
	}
	MDept = &namedModel{
		base: newBase("m_dept", KindMaster, "dept_id",
			keyOf([]string{"dept_factid"}, deptNames.Key()),
			cols(text("dept_factid"), text(deptNames.All()...))...),
		names: names(deptNames),
	}
	MSect = &namedChildModel{
		base: newBase("m_sect", KindMaster, "sect_id",
			keyOf([]string{"dept_id", "sect_factid"}, sectNames.Key()),
			cols(ints("dept_id"), text("sect_factid"), text(sectNames.All()...))...),
		names:   names(sectNames),
		parents: parents{"dept_id"},
	}
	MProdFamily = &namedModel{
		base: newBase("m_prod_family", KindMaster, "prod_family_id",
			keyOf([]string{"prod_family_factid"}, prodFamilyNames.Key()),
			cols(text("prod_family_factid"), text(prodFamilyNames.All()...))...),
		names: names(prodFamilyNames),
	}
	MProd = &namedChildModel{
		base: newBase("m_prod", KindMaster, "prod_id",
			keyOf([]string{"prod_family_id", "prod_factid"}, prodNames.Key()),
			cols(ints("prod_family_id"), text("prod_factid"), text(prodNames.All()...))...),
		names:   names(prodNames),
		parents: parents{"prod_family_id"},
	}
	MLineGroup = &namedModel{
		base:  newBase("m_line_group", KindMaster, "line_group_id", lineNames.Key(), text(lineNames.All()...)...),
		names: names(lineNames),
	}
	MLine = &signedChildModel{
		base: newBase("m_line", KindMaster, "line_id",
			[]string{"plant_id", "prod_family_id", "line_group_id", "line_factid", "line_no"},
			cols(ints("plant_id", "prod_family_id", "line_group_id"), text("line_factid", "line_no", "line_sign"),
				[]Column{{Name: "outsourcing_flag", Type: TypeBool}})...),
		parents: parents{"plant_id", "prod_family_id", "line_group_id"},
		sign:    sign{col: "line_sign", def: "Line"},
	}
	MEquipGroup = &namedModel{
		base:  newBase("m_equip_group", KindMaster, "equip_group_id", equipNames.Key(), text(equipNames.All()...)...),
		names: names(equipNames),
	}
	MEquip = &signedChildModel{
		base: newBase("m_equip", KindMaster, "equip_id",
			[]string{"equip_group_id", "equip_factid", "equip_no", "equip_product_no"},
			cols(ints("equip_group_id"), text("equip_factid", "equip_no", "equip_sign", "equip_product_no", "equip_product_date"))...),
		parents: parents{"equip_group_id"},
		sign:    sign{col: "equip_sign", def: "Eq"},
	}
	MSt = &signedChildModel{
		base: newBase("m_st", KindMaster, "st_id",
			[]string{"equip_id", "st_no"},
			cols(ints("equip_id"), text("st_no", "st_sign"))...),
		parents: parents{"equip_id"},
		sign:    sign{col: "st_sign", def: "St"},
	}
	MProcess = &processModel{
		base: newBase("m_process", KindMaster, "process_id",
			keyOf([]string{"process_factid"}, processNames.Key()),
			cols(text("process_factid"), text(processNames.All()...), ints("data_source_id"))...),
		names:  names(processNames),
		scoped: scoped("data_source_id"),
	}
	RFactoryMachine = &childModel{
		base: newBase("r_factory_machine", KindMaster, "factory_machine_id",
			[]string{"line_id", "process_id", "equip_id", "st_id"},
			ints("line_id", "process_id", "equip_id", "st_id")...),
		parents: parents{"line_id", "process_id", "equip_id", "st_id"},
	}
	MPartType = &namedModel{
		base: newBase("m_part_type", KindMaster, "part_type_id",
			keyOf([]string{"part_type_factid"}, partNames.Key()),
			cols(text("part_type_factid"), text(partNames.All()...), []Column{{Name: "assy_flag", Type: TypeBool}})...),
		names: names(partNames),
	}
	MPart = &childModel{
		base: newBase("m_part", KindMaster, "part_id",
			[]string{"part_type_id", "part_factid", "part_no"},
			cols(ints("part_type_id"), text("part_factid", "part_no"))...),
		parents: parents{"part_type_id"},
	}
	MUnit = &plainModel{
		base: newBase("m_unit", KindMaster, "unit_id", []string{"unit"},
			text("unit", "quantity_name_jp", "quantity_name_en", "quantity_name_sys")...),
	}
	MDataGroup = &dataGroupModel{
		base: newBase("m_data_group", KindMaster, "data_group_id",
			keyOf(dataNames.Key(), []string{"data_group_type"}),
			cols(text(dataNames.All()...), ints("data_group_type"))...),
		names: names(dataNames),
		floor: floor(MaxReservedNameID),
	}
	MData = &dataModel{
		base: newBase("m_data", KindMaster, "data_id",
			[]string{"process_id", "data_factid"},
			cols(ints("process_id", "data_group_id", "unit_id"), text("data_type", "data_factid"),
				text(dataNames.All()...), []Column{{Name: "is_hide", Type: TypeBool}})...),
		names:   names(dataNames),
		parents: parents{"process_id", "data_group_id", "unit_id"},
		hide:    hide("is_hide"),
	}
)

// Column grouping and category mapping.
var (
	MGroup = &namedModel{
		base: newBase("m_group", KindOthers, "group_id", []string{"id"},
			cols(text(groupNames.All()...), ints("data_group_id", "last_factor"))...),
		names: names(groupNames),
	}
	MColumnGroup = &plainModel{
		base: newBase("m_column_group", KindOthers, "", []string{"group_id", "data_id"}, ints("group_id", "data_id")...),
	}
	MappingCategoryData = &plainModel{
		base: newBase("mapping_category_data", KindOthers, "", []string{"data_id", "data_table_id", "value"},
			cols(ints("data_id", "data_table_id"), text("value"), ints("factor", "group_id"))...),
	}
	SemiMaster = &plainModel{
		base: newBase("semi_master", KindOthers, "", []string{"group_id", "factor"},
			cols(ints("group_id", "factor"), text("value"))...),
	}
)

// Configuration.
var (
	CfgDataSource = &plainModel{
		base: newBase("cfg_data_source", KindConfig, "data_source_id", []string{"name"},
			cols(text("name", "type"), []Column{{Name: "is_direct_import", Type: TypeBool}})...),
	}
	CfgDataTable = &plainModel{
		base: newBase("cfg_data_table", KindConfig, "data_table_id", []string{"name"},
			cols(text("name"), ints("data_source_id"))...),
	}
	CfgDataTableColumn = &plainModel{
		base: newBase("cfg_data_table_column", KindConfig, "", []string{"data_table_id", "column_name"},
			cols(ints("data_table_id"), text("column_name"), ints("data_group_type"), text("data_type"))...),
	}
	CfgFilter = &plainModel{
		base: newBase("cfg_filter", KindConfig, "", []string{"process_id", "filter_type", "column_id"},
			cols(ints("process_id"), text("filter_type"), ints("column_id"), text("name"))...),
	}
)

// MappingModel is a mapping table plus the semantic-to-physical column map.
type MappingModel struct {
	*base
	target   MappingTarget
	physical map[DataGroupType]string
	ids      []string
}

// Target names the mapping in ETL batches and nayose file names.
func (m *MappingModel) Target() MappingTarget { return m.target }

// Physical returns the t_* column for a semantic group.
func (m *MappingModel) Physical(t DataGroupType) (string, bool) {
	c, ok := m.physical[t]
	return c, ok
}

// PhysicalColumns returns every t_* column ordered by data group type.
func (m *MappingModel) PhysicalColumns() map[DataGroupType]string {
	out := make(map[DataGroupType]string, len(m.physical))
	for k, v := range m.physical {
		out[k] = v
	}
	return out
}

// IDColumns are the resolved master id columns the mapping row points to.
func (m *MappingModel) IDColumns() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

type MappingTarget string

const (
	TargetFactoryMachine MappingTarget = "mapping_factory_machine"
	TargetPart           MappingTarget = "mapping_part"
	TargetProcessData    MappingTarget = "mapping_process_data"
)

func newMappingModel(target MappingTarget, physical map[DataGroupType]string, ids ...string) *MappingModel {
	types := make([]DataGroupType, 0, len(physical))
	for t := range physical {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	tcols := make([]string, 0, len(types))
	for _, t := range types {
		tcols = append(tcols, physical[t])
	}
	key := keyOf(tcols, []string{ColDataTableID})
	return &MappingModel{
		base:     newBase(string(target), KindMapping, "", key, cols(text(tcols...), ints(ColDataTableID), ints(ids...))...),
		target:   target,
		physical: physical,
		ids:      ids,
	}
}

var (
	MappingFactoryMachine = newMappingModel(TargetFactoryMachine, map[DataGroupType]string{
		LocationName:     "t_location_name",
		LocationAbbr:     "t_location_abbr",
		FactoryID:        "t_factory_id",
		FactoryName:      "t_factory_name",
		FactoryAbbr:      "t_factory_abbr",
		PlantID:          "t_plant_id",
		PlantName:        "t_plant_name",
		PlantAbbr:        "t_plant_abbr",
		DeptID:           "t_dept_id",
		DeptName:         "t_dept_name",
		DeptAbbr:         "t_dept_abbr",
		SectID:           "t_sect_id",
		SectName:         "t_sect_name",
		SectAbbr:         "t_sect_abbr",
		ProdFamilyID:     "t_prod_family_id",
		ProdFamilyName:   "t_prod_family_name",
		ProdFamilyAbbr:   "t_prod_family_abbr",
		OutsourceFlag:    "t_outsource",
		LineID:           "t_line_id",
		LineName:         "t_line_name",
		LineNo:           "t_line_no",
		EquipID:          "t_equip_id",
		EquipName:        "t_equip_name",
		EquipProductNo:   "t_equip_product_no",
		EquipProductDate: "t_equip_product_date",
		EquipNo:          "t_equip_no",
		StationNo:        "t_station_no",
		ProcessID:        "t_process_id",
		ProcessName:      "t_process_name",
		ProcessAbbr:      "t_process_abbr",
		ProdID:           "t_prod_id",
		ProdName:         "t_prod_name",
		ProdAbbr:         "t_prod_abbr",
	}, "factory_machine_id", "prod_id", "sect_id")

	MappingPart = newMappingModel(TargetPart, map[DataGroupType]string{
		PartType:   "t_part_type",
		PartName:   "t_part_name",
		PartAbbr:   "t_part_abbr",
		PartNoFull: "t_part_no_full",
		PartNo:     "t_part_no",
	}, "part_id")

	MappingProcessData = newMappingModel(TargetProcessData, map[DataGroupType]string{
		ProcessID:      "t_process_id",
		ProcessName:    "t_process_name",
		ProcessAbbr:    "t_process_abbr",
		DataID:         "t_data_id",
		DataName:       "t_data_name",
		DataAbbr:       "t_data_abbr",
		ProdFamilyID:   "t_prod_family_id",
		ProdFamilyName: "t_prod_family_name",
		ProdFamilyAbbr: "t_prod_family_abbr",
		Unit:           "t_unit",
	}, "data_id")
)

// MappingModels lists the mapping tables in processing order.
func MappingModels() []*MappingModel {
	return []*MappingModel{MappingFactoryMachine, MappingPart, MappingProcessData}
}

func MappingModelFor(target MappingTarget) (*MappingModel, bool) {
	for _, m := range MappingModels() {
		if m.target == target {
			return m, true
		}
	}
	return nil, false
}

// AllModels lists every table in creation order (parents first).
func AllModels() []Model {
	return []Model{
		CfgDataSource, CfgDataTable, CfgDataTableColumn,
		MLocation, MFactory, MPlant, MDept, MSect, MProdFamily, MProd,
		MLineGroup, MLine, MEquipGroup, MEquip, MSt, MProcess, RFactoryMachine,
		MPartType, MPart, MUnit, MDataGroup, MData,
		MGroup, MColumnGroup, MappingCategoryData, SemiMaster, CfgFilter,
		MappingFactoryMachine, MappingPart, MappingProcessData,
	}
}

func ModelByTable(table string) (Model, bool) {
	for _, m := range AllModels() {
		if m.Table() == table {
			return m, true
		}
	}
	return nil, false
}
