package domain

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// Join is one hop of a relation chain. Left joins keep relation rows whose
// optional parent is missing.
type Join struct {
	Left  bool
	Table string
	Alias string
	On    string
}

// NameSource is a table alias carrying name columns.
type NameSource struct {
	Alias string
	Names NameColumns
}

// RelationMaster builds the (id, name, master_id) view for one
// representative group.
type RelationMaster struct {
	Group    DataGroupType
	From     string
	IDColumn string
	Joins    []Join
	MasterID string
	Sources  []NameSource
	Fallback string
}

var languages = language.NewMatcher([]language.Tag{language.English, language.Japanese})

// PreferJapanese reports whether tag resolves to Japanese.
func PreferJapanese(tag language.Tag) bool {
	_, idx, _ := languages.Match(tag)
	return idx == 1
}

// NameExpr is the language-prioritized COALESCE over abbreviations and names,
// ending at the raw fact id.
func (r *RelationMaster) NameExpr(tag language.Tag) string {
	ja := PreferJapanese(tag)
	var parts []string
	add := func(alias, col string) {
		if col != "" {
			parts = append(parts, alias+"."+col)
		}
	}
	for _, s := range r.Sources {
		n := s.Names
		if ja {
			add(s.Alias, n.AbbrJP)
			add(s.Alias, n.JP)
			add(s.Alias, n.AbbrEN)
			add(s.Alias, n.EN)
		} else {
			add(s.Alias, n.AbbrEN)
			add(s.Alias, n.EN)
			add(s.Alias, n.Sys)
			add(s.Alias, n.AbbrJP)
			add(s.Alias, n.JP)
		}
		add(s.Alias, n.AbbrLocal)
		add(s.Alias, n.Local)
		if ja {
			add(s.Alias, n.Sys)
		}
	}
	parts = append(parts, fmt.Sprintf("CAST(%s AS TEXT)", r.Fallback))
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}

// SQL renders the view query.
func (r *RelationMaster) SQL(tag language.Tag) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT r.%s AS id, %s AS name, %s AS master_id FROM %s r",
		r.IDColumn, r.NameExpr(tag), r.MasterID, r.From)
	for _, j := range r.Joins {
		kw := "JOIN"
		if j.Left {
			kw = "LEFT JOIN"
		}
		fmt.Fprintf(&b, " %s %s %s ON %s", kw, j.Table, j.Alias, j.On)
	}
	fmt.Fprintf(&b, " WHERE r.%s IS NOT NULL", r.IDColumn)
	return b.String()
}

func lineChain(master, on string) []Join {
	return []Join{
		{Table: "m_line", Alias: "l", On: "l.id = r.line_id"},
		{Table: master, Alias: "m", On: on},
	}
}

func buildRelationMaster(rep DataGroupType) *RelationMaster {
	switch rep {
	case LocationName:
		return &RelationMaster{
			Group: rep, From: RFactoryMachine.Table(), IDColumn: "line_id",
			Joins: []Join{
				{Table: "m_line", Alias: "l", On: "l.id = r.line_id"},
				{Table: "m_plant", Alias: "p", On: "p.id = l.plant_id"},
				{Table: "m_factory", Alias: "f", On: "f.id = p.factory_id"},
				{Table: "m_location", Alias: "m", On: "m.id = f.location_id"},
			},
			MasterID: "m.id", Sources: []NameSource{{"m", locationNames}}, Fallback: "m.id",
		}
	case FactoryID:
		return &RelationMaster{
			Group: rep, From: RFactoryMachine.Table(), IDColumn: "line_id",
			Joins: []Join{
				{Table: "m_line", Alias: "l", On: "l.id = r.line_id"},
				{Table: "m_plant", Alias: "p", On: "p.id = l.plant_id"},
				{Table: "m_factory", Alias: "m", On: "m.id = p.factory_id"},
			},
			MasterID: "m.id", Sources: []NameSource{{"m", factoryNames}}, Fallback: "m.factory_factid",
		}
	case PlantID:
		return &RelationMaster{
			Group: rep, From: RFactoryMachine.Table(), IDColumn: "line_id",
			Joins:    lineChain("m_plant", "m.id = l.plant_id"),
			MasterID: "m.id", Sources: []NameSource{{"m", plantNames}}, Fallback: "m.plant_factid",
		}
	case ProdFamilyID:
		return &RelationMaster{
			Group: rep, From: RFactoryMachine.Table(), IDColumn: "line_id",
			Joins:    lineChain("m_prod_family", "m.id = l.prod_family_id"),
			MasterID: "m.id", Sources: []NameSource{{"m", prodFamilyNames}}, Fallback: "m.prod_family_factid",
		}
	case LineID:
		return &RelationMaster{
			Group: rep, From: RFactoryMachine.Table(), IDColumn: "line_id",
			Joins: []Join{
				{Table: "m_line", Alias: "m", On: "m.id = r.line_id"},
				{Left: true, Table: "m_line_group", Alias: "g", On: "g.id = m.line_group_id"},
				{Left: true, Table: "m_plant", Alias: "p", On: "p.id = m.plant_id"},
				{Left: true, Table: "m_factory", Alias: "f", On: "f.id = p.factory_id"},
			},
			MasterID: "m.id", Sources: []NameSource{{"g", lineNames}}, Fallback: "m.line_factid",
		}
	case ProcessID:
		return &RelationMaster{
			Group: rep, From: RFactoryMachine.Table(), IDColumn: "process_id",
			Joins:    []Join{{Table: "m_process", Alias: "m", On: "m.id = r.process_id"}},
			MasterID: "m.id", Sources: []NameSource{{"m", processNames}}, Fallback: "m.process_factid",
		}
	case EquipID:
		return &RelationMaster{
			Group: rep, From: RFactoryMachine.Table(), IDColumn: "equip_id",
			Joins: []Join{
				{Table: "m_equip", Alias: "m", On: "m.id = r.equip_id"},
				{Left: true, Table: "m_equip_group", Alias: "g", On: "g.id = m.equip_group_id"},
			},
			MasterID: "m.id", Sources: []NameSource{{"g", equipNames}}, Fallback: "m.equip_factid",
		}
	case StationNo:
		return &RelationMaster{
			Group: rep, From: RFactoryMachine.Table(), IDColumn: "st_id",
			Joins:    []Join{{Table: "m_st", Alias: "m", On: "m.id = r.st_id"}},
			MasterID: "m.id", Fallback: "m.st_no",
		}
	case DeptID:
		return &RelationMaster{
			Group: rep, From: MappingFactoryMachine.Table(), IDColumn: "sect_id",
			Joins: []Join{
				{Table: "m_sect", Alias: "s", On: "s.id = r.sect_id"},
				{Table: "m_dept", Alias: "m", On: "m.id = s.dept_id"},
			},
			MasterID: "m.id", Sources: []NameSource{{"m", deptNames}}, Fallback: "m.dept_factid",
		}
	case SectID:
		return &RelationMaster{
			Group: rep, From: MappingFactoryMachine.Table(), IDColumn: "sect_id",
			Joins:    []Join{{Table: "m_sect", Alias: "m", On: "m.id = r.sect_id"}},
			MasterID: "m.id", Sources: []NameSource{{"m", sectNames}}, Fallback: "m.sect_factid",
		}
	case ProdID:
		return &RelationMaster{
			Group: rep, From: MappingFactoryMachine.Table(), IDColumn: "prod_id",
			Joins:    []Join{{Table: "m_prod", Alias: "m", On: "m.id = r.prod_id"}},
			MasterID: "m.id", Sources: []NameSource{{"m", prodNames}}, Fallback: "m.prod_factid",
		}
	case PartNo:
		return &RelationMaster{
			Group: rep, From: MappingPart.Table(), IDColumn: "part_id",
			Joins: []Join{
				{Table: "m_part", Alias: "m", On: "m.id = r.part_id"},
				{Left: true, Table: "m_part_type", Alias: "t", On: "t.id = m.part_type_id"},
			},
			MasterID: "m.id", Sources: []NameSource{{"t", partNames}}, Fallback: "m.part_no",
		}
	default:
		return nil
	}
}

// RelationMasters caches one RelationMaster per representative group, so
// EquipName and EquipID share a view.
type RelationMasters struct {
	catalog *Catalog
	mu      sync.Mutex
	cache   map[DataGroupType]*RelationMaster
}

func NewRelationMasters(c *Catalog) *RelationMasters {
	return &RelationMasters{catalog: c, cache: map[DataGroupType]*RelationMaster{}}
}

// Get returns nil when group has no relation chain.
func (r *RelationMasters) Get(group DataGroupType) *RelationMaster {
	meta := r.catalog.Instance(group)
	if meta == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.cache[meta.Represent]; ok {
		return rm
	}
	rm := buildRelationMaster(meta.Represent)
	r.cache[meta.Represent] = rm
	return rm
}

func (r *RelationMasters) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[DataGroupType]*RelationMaster{}
}

var (
	relationMu      sync.Mutex
	defaultRelation = sync.OnceValue(func() *RelationMasters { return NewRelationMasters(DefaultCatalog()) })
)

// DefaultRelationMasters is the process-wide relation cache.
func DefaultRelationMasters() *RelationMasters {
	relationMu.Lock()
	get := defaultRelation
	relationMu.Unlock()
	return get()
}

// ResetDefaultRelationMasters drops the process-wide cache. Tests only.
func ResetDefaultRelationMasters() {
	relationMu.Lock()
	defer relationMu.Unlock()
	defaultRelation = sync.OnceValue(func() *RelationMasters { return NewRelationMasters(DefaultCatalog()) })
}

// RelationRow is one row of a relation view.
type RelationRow struct {
	ID       int64
	Name     string
	MasterID int64
}
