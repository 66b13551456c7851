package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// chain writes the masters of one mapping batch, parents first, and leaves
// the resolved ids on the batch frame.
type chain struct {
	writer   *Writer
	dict     *WordDictionary
	cfg      domain.DataTableConfig
	opts     WriteOptions
	inserted map[string]int
}

func newChain(w *Writer, dict *WordDictionary, cfg domain.DataTableConfig, opts WriteOptions) *chain {
	return &chain{writer: w, dict: dict, cfg: cfg, opts: opts, inserted: map[string]int{}}
}

type step struct {
	deps []domain.Model
	// prepare derives the model columns from the t_* columns. A non-nil
	// result limits the write to the rows it accepts.
	prepare func(c *chain, frame *table.Table) func(i int) bool
	after   func(ctx context.Context, c *chain, frame *table.Table) error
}

var chainRoots = map[domain.MappingTarget][]domain.Model{
	domain.TargetFactoryMachine: {domain.RFactoryMachine, domain.MSect, domain.MProd},
	domain.TargetPart:           {domain.MPart},
	domain.TargetProcessData:    {domain.MProdFamily, domain.MData},
}

func chainSteps() map[string]step {
	return map[string]step{
		domain.MLocation.Table(): {prepare: named("t_location_name", "t_location_abbr")},
		domain.MFactory.Table(): {
			deps:    []domain.Model{domain.MLocation},
			prepare: factid("t_factory_id", "factory_factid", named("t_factory_name", "t_factory_abbr")),
		},
		domain.MPlant.Table(): {
			deps:    []domain.Model{domain.MFactory},
			prepare: factid("t_plant_id", "plant_factid", named("t_plant_name", "t_plant_abbr")),
		},
		domain.MDept.Table(): {prepare: factid("t_dept_id", "dept_factid", named("t_dept_name", "t_dept_abbr"))},
		domain.MSect.Table(): {
			deps:    []domain.Model{domain.MDept},
			prepare: factid("t_sect_id", "sect_factid", named("t_sect_name", "t_sect_abbr")),
		},
		domain.MProdFamily.Table(): {
			prepare: factid("t_prod_family_id", "prod_family_factid", named("t_prod_family_name", "t_prod_family_abbr")),
		},
		domain.MProd.Table(): {
			deps:    []domain.Model{domain.MProdFamily},
			prepare: factid("t_prod_id", "prod_factid", named("t_prod_name", "t_prod_abbr")),
		},
		domain.MLineGroup.Table(): {prepare: named("t_line_name", "")},
		domain.MLine.Table(): {
			deps: []domain.Model{domain.MPlant, domain.MProdFamily, domain.MLineGroup},
			prepare: copies(map[string]string{
				"t_line_id":   "line_factid",
				"t_line_no":   "line_no",
				"t_outsource": "outsourcing_flag",
			}),
		},
		domain.MEquipGroup.Table(): {prepare: named("t_equip_name", "")},
		domain.MEquip.Table(): {
			deps: []domain.Model{domain.MEquipGroup},
			prepare: copies(map[string]string{
				"t_equip_id":           "equip_factid",
				"t_equip_no":           "equip_no",
				"t_equip_product_no":   "equip_product_no",
				"t_equip_product_date": "equip_product_date",
			}),
		},
		domain.MSt.Table(): {
			deps:    []domain.Model{domain.MEquip},
			prepare: copies(map[string]string{"t_station_no": "st_no"}),
		},
		domain.MProcess.Table(): {prepare: prepareProcess},
		domain.RFactoryMachine.Table(): {
			deps: []domain.Model{domain.MLine, domain.MProcess, domain.MEquip, domain.MSt},
		},
		domain.MPartType.Table(): {prepare: factid("t_part_type", "part_type_factid", named("t_part_name", "t_part_abbr"))},
		domain.MPart.Table(): {
			deps: []domain.Model{domain.MPartType},
			prepare: copies(map[string]string{
				"t_part_no_full": "part_factid",
				"t_part_no":      "part_no",
			}),
		},
		domain.MUnit.Table():      {prepare: copies(map[string]string{"t_unit": "unit"})},
		domain.MDataGroup.Table(): {prepare: prepareDataGroup},
		domain.MData.Table(): {
			deps:    []domain.Model{domain.MProcess, domain.MDataGroup, domain.MUnit},
			prepare: prepareData,
			after:   afterData,
		},
	}
}

// run walks the chain of target with a visited set so shared parents are
// written once.
func (c *chain) run(ctx context.Context, target domain.MappingTarget, frame *table.Table) error {
	steps := chainSteps()
	visited := map[string]bool{}
	var visit func(m domain.Model) error
	visit = func(m domain.Model) error {
		if visited[m.Table()] {
			return nil
		}
		visited[m.Table()] = true
		s := steps[m.Table()]
		for _, d := range s.deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		opts := c.opts
		if s.prepare != nil {
			opts.Where = s.prepare(c, frame)
		}
		n, err := c.writer.WriteMasterData(ctx, frame, m, opts)
		if err != nil {
			return errors.Wrapf(err, "write %s", m.Table())
		}
		c.inserted[m.Table()] += n
		if s.after != nil {
			return s.after(ctx, c, frame)
		}
		return nil
	}
	for _, root := range chainRoots[target] {
		if err := visit(root); err != nil {
			return err
		}
	}
	return nil
}

func namesOf(m domain.Model) domain.NameColumns {
	n, _ := m.(domain.Named)
	return n.Names()
}

// copies maps t_* columns onto model columns.
func copies(cols map[string]string) func(*chain, *table.Table) func(int) bool {
	return func(_ *chain, frame *table.Table) func(int) bool {
		for src, dst := range cols {
			if frame.Has(src) {
				frame.Copy(src, dst)
			}
		}
		return nil
	}
}

func factid(src, dst string, next func(*chain, *table.Table) func(int) bool) func(*chain, *table.Table) func(int) bool {
	return func(c *chain, frame *table.Table) func(int) bool {
		if frame.Has(src) {
			frame.Copy(src, dst)
		}
		return next(c, frame)
	}
}

// named fills the name columns of the model owning the next write. The
// owner is looked up by the name column prefix.
func named(nameCol, abbrCol string) func(*chain, *table.Table) func(int) bool {
	return func(c *chain, frame *table.Table) func(int) bool {
		nc, ok := nameColumnsFor(nameCol)
		if !ok {
			return nil
		}
		c.setNames(frame, nc, nameCol, abbrCol)
		return nil
	}
}

var namePrefixes = map[string]domain.Model{
	"t_location_name":    domain.MLocation,
	"t_factory_name":     domain.MFactory,
	"t_plant_name":       domain.MPlant,
	"t_dept_name":        domain.MDept,
	"t_sect_name":        domain.MSect,
	"t_prod_family_name": domain.MProdFamily,
	"t_prod_name":        domain.MProd,
	"t_line_name":        domain.MLineGroup,
	"t_equip_name":       domain.MEquipGroup,
	"t_process_name":     domain.MProcess,
	"t_part_name":        domain.MPartType,
	"t_data_name":        domain.MData,
}

func nameColumnsFor(nameCol string) (domain.NameColumns, bool) {
	m, ok := namePrefixes[nameCol]
	if !ok {
		return domain.NameColumns{}, false
	}
	return namesOf(m), true
}

// setNames routes raw names to their language columns, predicting English
// from the dictionary when only Japanese is known.
func (c *chain) setNames(frame *table.Table, nc domain.NameColumns, nameCol, abbrCol string) {
	for i := 0; i < frame.Len(); i++ {
		raw := strings.TrimSpace(asText(frame.Get(i, nameCol)))
		jp, en := domain.SplitName(raw)
		if en == nil && jp != nil {
			if p, ok := c.dict.Predict(raw); ok {
				en = p
			}
		}
		frame.Set(i, nc.JP, jp)
		frame.Set(i, nc.EN, en)
		frame.Set(i, nc.Local, nullIfEmpty(raw))
		frame.Set(i, nc.Sys, nil)

		if nc.AbbrJP == "" || abbrCol == "" {
			continue
		}
		abbr := strings.TrimSpace(asText(frame.Get(i, abbrCol)))
		ajp, aen := domain.SplitName(abbr)
		frame.Set(i, nc.AbbrJP, ajp)
		frame.Set(i, nc.AbbrEN, aen)
		frame.Set(i, nc.AbbrLocal, nullIfEmpty(abbr))
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// prepareProcess also lowercases the system name so processes differing
// only in case share one row.
func prepareProcess(c *chain, frame *table.Table) func(int) bool {
	if frame.Has("t_process_id") {
		frame.Copy("t_process_id", "process_factid")
	}
	nc := namesOf(domain.MProcess)
	c.setNames(frame, nc, "t_process_name", "t_process_abbr")
	for i := 0; i < frame.Len(); i++ {
		sys := domain.SystemName(asText(frame.Get(i, nc.EN)), asText(frame.Get(i, nc.Local)), asText(frame.Get(i, "process_factid")))
		if s, ok := sys.(string); ok {
			frame.Set(i, nc.Sys, strings.ToLower(s))
		}
	}
	return nil
}

// configuredColumn finds the data table column behind a process data row.
func (c *chain) configuredColumn(frame *table.Table, i int) (domain.DataTableColumn, bool) {
	for _, col := range []string{"t_data_id", "t_data_name"} {
		name := strings.TrimSpace(asText(frame.Get(i, col)))
		if name == "" {
			continue
		}
		for _, dc := range c.cfg.Columns {
			if dc.ColumnName == name {
				return dc, true
			}
		}
	}
	return domain.DataTableColumn{}, false
}

// prepareDataGroup points reserved columns at their seeded group and
// describes a generated group for the rest.
func prepareDataGroup(c *chain, frame *table.Table) func(int) bool {
	c.setNames(frame, namesOf(domain.MData), "t_data_name", "t_data_abbr")
	frame.AddColumn("data_group_id", nil)
	frame.AddColumn("data_group_type", nil)
	for i := 0; i < frame.Len(); i++ {
		dc, ok := c.configuredColumn(frame, i)
		if ok && dc.DataGroupType.Reserved() {
			frame.Set(i, "data_group_id", int64(dc.DataGroupType))
			frame.Set(i, "data_group_type", int64(dc.DataGroupType))
			continue
		}
		frame.Set(i, "data_group_id", nil)
		frame.Set(i, "data_group_type", int64(domain.Generated))
	}
	return func(i int) bool { return frame.Get(i, "data_group_id") == nil }
}

func prepareData(c *chain, frame *table.Table) func(int) bool {
	c.setNames(frame, namesOf(domain.MData), "t_data_name", "t_data_abbr")
	for i := 0; i < frame.Len(); i++ {
		var factID any
		for _, col := range []string{"t_data_id", "t_data_name", "t_data_abbr"} {
			if s := strings.TrimSpace(asText(frame.Get(i, col))); s != "" {
				factID = s
				break
			}
		}
		frame.Set(i, "data_factid", factID)
		if dc, ok := c.configuredColumn(frame, i); ok && dc.DataType != "" {
			frame.Set(i, "data_type", dc.DataType)
		}
	}
	return nil
}

// afterData adds the per-process reserved columns and disambiguates names
// of the processes the batch touched.
func afterData(ctx context.Context, c *chain, frame *table.Table) error {
	processIDs := int64Set(frame.Column("process_id"))
	if len(processIDs) == 0 {
		return nil
	}
	n, err := InsertReservedMData(ctx, c.writer, processIDs)
	if err != nil {
		return err
	}
	c.inserted[domain.MData.Table()] += n
	renamed, err := AddSuffixToDuplicateDataName(ctx, c.writer, processIDs)
	if err != nil {
		return err
	}
	if renamed > 0 {
		logger(ctx).WithField("renamed", renamed).Info("nayose.suffix")
	}
	return nil
}

// int64Set returns the distinct non-null ids of values in first-seen order.
func int64Set(values []any) []int64 {
	seen := map[int64]struct{}{}
	var out []int64
	for _, v := range values {
		id, ok := table.AsInt64(v)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
