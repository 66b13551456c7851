package domain

import (
	"slices"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// ColumnMeta describes how values of one data group land in the master graph.
type ColumnMeta struct {
	Group DataGroupType
	// Represent is the group whose master row is deduplicated for this column.
	Represent DataGroupType
	// RepresentModel is the entity actually deduplicated.
	RepresentModel Model
	// Model holds Column; it differs from RepresentModel for shared names
	// such as LineName living on m_line_group.
	Model  Model
	Column string
	// Hover lists the columns shown when describing a resolved value.
	Hover []string
}

func (m *ColumnMeta) IsRepresent() bool { return m.Group == m.Represent }

// Catalog is the registry of column metadata keyed by data group.
type Catalog struct {
	log   logrus.FieldLogger
	metas map[DataGroupType]*ColumnMeta
}

type entry struct {
	group, represent DataGroupType
	represented      Model
	model            Model
	column           string
}

func catalogEntries() []entry {
	return []entry{
		{LocationName, LocationName, MLocation, MLocation, "location_name_local"},
		{LocationAbbr, LocationName, MLocation, MLocation, "location_abbr_local"},
		{FactoryID, FactoryID, MFactory, MFactory, "factory_factid"},
		{FactoryName, FactoryID, MFactory, MFactory, "factory_name_local"},
		{FactoryAbbr, FactoryID, MFactory, MFactory, "factory_abbr_local"},
		{PlantID, PlantID, MPlant, MPlant, "plant_factid"},
		{PlantName, PlantID, MPlant, MPlant, "plant_name_local"},
		{PlantAbbr, PlantID, MPlant, MPlant, "plant_abbr_local"},
		{DeptID, DeptID, MDept, MDept, "dept_factid"},
		{DeptName, DeptID, MDept, MDept, "dept_name_local"},
		{DeptAbbr, DeptID, MDept, MDept, "dept_abbr_local"},
		{SectID, SectID, MSect, MSect, "sect_factid"},
		{SectName, SectID, MSect, MSect, "sect_name_local"},
		{SectAbbr, SectID, MSect, MSect, "sect_abbr_local"},
		{ProdFamilyID, ProdFamilyID, MProdFamily, MProdFamily, "prod_family_factid"},
		{ProdFamilyName, ProdFamilyID, MProdFamily, MProdFamily, "prod_family_name_local"},
		{ProdFamilyAbbr, ProdFamilyID, MProdFamily, MProdFamily, "prod_family_abbr_local"},
		{OutsourceFlag, LineID, MLine, MLine, "outsourcing_flag"},
		{LineID, LineID, MLine, MLine, "line_factid"},
		{LineName, LineID, MLine, MLineGroup, "line_name_local"},
		{LineNo, LineID, MLine, MLine, "line_no"},
		{EquipID, EquipID, MEquip, MEquip, "equip_factid"},
		{EquipName, EquipID, MEquip, MEquipGroup, "equip_name_local"},
		{EquipProductNo, EquipID, MEquip, MEquip, "equip_product_no"},
		{EquipProductDate, EquipID, MEquip, MEquip, "equip_product_date"},
		{EquipNo, EquipID, MEquip, MEquip, "equip_no"},
		{StationNo, StationNo, MSt, MSt, "st_no"},
		{ProcessID, ProcessID, MProcess, MProcess, "process_factid"},
		{ProcessName, ProcessID, MProcess, MProcess, "process_name_local"},
		{ProcessAbbr, ProcessID, MProcess, MProcess, "process_abbr_local"},
		{ProdID, ProdID, MProd, MProd, "prod_factid"},
		{ProdName, ProdID, MProd, MProd, "prod_name_local"},
		{ProdAbbr, ProdID, MProd, MProd, "prod_abbr_local"},
		{PartType, PartNo, MPart, MPartType, "part_type_factid"},
		{PartName, PartNo, MPart, MPartType, "part_name_local"},
		{PartAbbr, PartNo, MPart, MPartType, "part_abbr_local"},
		{PartNoFull, PartNo, MPart, MPart, "part_factid"},
		{PartNo, PartNo, MPart, MPart, "part_no"},
		{DataID, DataID, MData, MData, "data_factid"},
		{DataName, DataID, MData, MData, "data_name_local"},
		{DataAbbr, DataID, MData, MData, "data_abbr_local"},
		{Unit, Unit, MUnit, MUnit, "unit"},
	}
}

func NewCatalog(log logrus.FieldLogger) *Catalog {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Catalog{log: log, metas: map[DataGroupType]*ColumnMeta{}}
	for _, e := range catalogEntries() {
		c.metas[e.group] = &ColumnMeta{
			Group:          e.group,
			Represent:      e.represent,
			RepresentModel: e.represented,
			Model:          e.model,
			Column:         e.column,
			Hover:          hoverColumns(e.represented),
		}
	}
	return c
}

func hoverColumns(m Model) []string {
	var out []string
	if n, ok := m.(Named); ok {
		out = append(out, n.Names().All()...)
	}
	for _, c := range m.UniqueKey() {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// Instance returns the metadata for group, or nil when the group has no
// master join.
func (c *Catalog) Instance(group DataGroupType) *ColumnMeta {
	m, ok := c.metas[group]
	if !ok {
		c.log.WithField("data_group_type", int(group)).Error("no master column meta registered")
		return nil
	}
	return m
}

// Lookup is Instance without the error log.
func (c *Catalog) Lookup(group DataGroupType) (*ColumnMeta, bool) {
	m, ok := c.metas[group]
	return m, ok
}

// Represents lists the representative groups in ascending order.
func (c *Catalog) Represents() []DataGroupType {
	var out []DataGroupType
	for g, m := range c.metas {
		if m.IsRepresent() {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dependents lists the non-representative groups that point at rep.
func (c *Catalog) Dependents(rep DataGroupType) []DataGroupType {
	var out []DataGroupType
	for g, m := range c.metas {
		if !m.IsRepresent() && m.Represent == rep {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	catalogMu      sync.Mutex
	defaultCatalog = sync.OnceValue(func() *Catalog { return NewCatalog(nil) })
)

// DefaultCatalog returns the process-wide catalog, built on first use.
func DefaultCatalog() *Catalog {
	catalogMu.Lock()
	get := defaultCatalog
	catalogMu.Unlock()
	return get()
}

// ResetDefaultCatalog drops the process-wide catalog. Tests only.
func ResetDefaultCatalog() {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	defaultCatalog = sync.OnceValue(func() *Catalog { return NewCatalog(nil) })
}
