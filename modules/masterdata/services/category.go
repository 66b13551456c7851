package services

import (
	"context"
	"slices"
	"sort"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/constants"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// CategoryMember is one raw value of one column.
type CategoryMember struct {
	DataID int64  `json:"data_id" validate:"required,gt=0"`
	Value  string `json:"value" validate:"required"`
}

// FactorSet is the set of raw values sharing a factor. Factor 0 asks for a
// new factor; an empty member list dissolves the factor.
type FactorSet struct {
	Factor  int64            `json:"factor" validate:"gte=0"`
	Value   string           `json:"value"`
	Members []CategoryMember `json:"members" validate:"dive"`
}

type CategoryGroup struct {
	GroupID int64       `json:"group_id" validate:"required,gt=0"`
	Factors []FactorSet `json:"factors" validate:"required,min=1,dive"`
}

// GenFactorAndGroupID numbers the ungrouped category values of members.
// Equal values share a factor; new factors continue after the largest one
// ever handed out, so factors are never reused. It returns the group's new
// last factor.
func GenFactorAndGroupID(ctx context.Context, w *Writer, g domain.MGroupRecord, members []int64) (int64, error) {
	if len(members) == 0 {
		return g.LastFactor, nil
	}
	rows, err := w.store.Select(ctx, domain.MappingCategoryData, domain.In("data_id", members))
	if err != nil {
		return g.LastFactor, errors.Wrap(err, "select mapping_category_data")
	}
	values := domain.CategoryValuesFrom(rows)
	sort.SliceStable(values, func(i, j int) bool { return values[i].ID < values[j].ID })

	semis, err := w.store.Select(ctx, domain.SemiMaster, domain.Eq("group_id", g.ID))
	if err != nil {
		return g.LastFactor, errors.Wrap(err, "select semi_master")
	}
	factorOf := map[string]int64{}
	last := g.LastFactor
	for _, s := range domain.SemiMastersFrom(semis) {
		factorOf[s.Value] = s.Factor
		last = max(last, s.Factor)
	}
	for _, v := range values {
		if v.GroupID == g.ID && v.Factor > 0 {
			if _, ok := factorOf[v.Value]; !ok {
				factorOf[v.Value] = v.Factor
			}
			last = max(last, v.Factor)
		}
	}

	fresh := table.New("group_id", "factor", "value")
	for _, v := range values {
		if v.GroupID == g.ID && v.Factor > 0 {
			continue
		}
		f, ok := factorOf[v.Value]
		if !ok {
			last++
			f = last
			factorOf[v.Value] = f
			fresh.AppendValues(g.ID, f, v.Value)
		}
		if err := w.store.Update(ctx, domain.MappingCategoryData, v.ID, map[string]any{"factor": f, "group_id": g.ID}); err != nil {
			return g.LastFactor, errors.Wrapf(err, "assign factor to %d", v.ID)
		}
	}
	if _, err := w.WriteMasterData(ctx, fresh, domain.SemiMaster, WriteOptions{}); err != nil {
		return g.LastFactor, errors.Wrap(err, "write semi_master")
	}
	if last != g.LastFactor {
		if err := w.store.Update(ctx, domain.MGroup, g.ID, map[string]any{"last_factor": last}); err != nil {
			return g.LastFactor, errors.Wrap(err, "update last_factor")
		}
	}
	return last, nil
}

// UngroupCategoryValues clears factor and group of the group's category
// values whose column is not one of members.
func UngroupCategoryValues(ctx context.Context, store Store, groupID int64, members []int64) (int, error) {
	rows, err := store.Select(ctx, domain.MappingCategoryData, domain.Eq("group_id", groupID))
	if err != nil {
		return 0, errors.Wrap(err, "select mapping_category_data")
	}
	var stale []int64
	for _, v := range domain.CategoryValuesFrom(rows) {
		if !slices.Contains(members, v.DataID) {
			stale = append(stale, v.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := store.UpdateWhere(ctx, domain.MappingCategoryData, domain.In(domain.ColID, stale), map[string]any{"factor": nil, "group_id": nil})
	if err != nil {
		return 0, errors.Wrap(err, "ungroup category values")
	}
	return n, nil
}

// ApplyCategoryGroup stores a user's factor assignment for a group.
func ApplyCategoryGroup(ctx context.Context, w *Writer, cg CategoryGroup) error {
	if err := constants.Validate.Struct(cg); err != nil {
		return errors.Wrap(err, "invalid category group")
	}
	mc, err := NewMappingColumnFromGroup(ctx, w, cg.GroupID)
	if err != nil {
		return err
	}
	rows, err := w.store.Select(ctx, domain.MappingCategoryData, domain.In("data_id", mc.Members))
	if err != nil {
		return errors.Wrap(err, "select mapping_category_data")
	}
	values := domain.CategoryValuesFrom(rows)
	last := mc.Group.LastFactor
	for _, v := range values {
		last = max(last, v.Factor)
	}

	for _, fs := range cg.Factors {
		factor := fs.Factor
		if len(fs.Members) == 0 {
			if factor == 0 {
				continue
			}
			if err := dissolveFactor(ctx, w.store, cg.GroupID, factor); err != nil {
				return err
			}
			continue
		}
		if factor == 0 {
			last++
			factor = last
		}
		last = max(last, factor)

		presented := map[string]bool{}
		for _, m := range fs.Members {
			presented[memberKey(m.DataID, m.Value)] = true
		}
		for _, v := range values {
			inSet := presented[memberKey(v.DataID, v.Value)]
			switch {
			case inSet && (v.Factor != factor || v.GroupID != cg.GroupID):
				err = w.store.Update(ctx, domain.MappingCategoryData, v.ID, map[string]any{"factor": factor, "group_id": cg.GroupID})
			case !inSet && v.Factor == factor && v.GroupID == cg.GroupID:
				err = w.store.Update(ctx, domain.MappingCategoryData, v.ID, map[string]any{"factor": nil, "group_id": nil})
			}
			if err != nil {
				return errors.Wrapf(err, "assign factor %d", factor)
			}
		}

		rep := fs.Value
		if rep == "" {
			rep = fs.Members[0].Value
		}
		if err := upsertSemiMaster(ctx, w.store, cg.GroupID, factor, rep); err != nil {
			return err
		}
	}
	if last != mc.Group.LastFactor {
		if err := w.store.Update(ctx, domain.MGroup, cg.GroupID, map[string]any{"last_factor": last}); err != nil {
			return errors.Wrap(err, "update last_factor")
		}
	}
	return nil
}

func dissolveFactor(ctx context.Context, store Store, groupID, factor int64) error {
	f := domain.Eq("group_id", groupID).And(domain.Eq("factor", factor))
	if _, err := store.Delete(ctx, domain.SemiMaster, f); err != nil {
		return errors.Wrapf(err, "delete semi_master factor %d", factor)
	}
	if _, err := store.UpdateWhere(ctx, domain.MappingCategoryData, f, map[string]any{"factor": nil, "group_id": nil}); err != nil {
		return errors.Wrapf(err, "ungroup factor %d", factor)
	}
	return nil
}

func upsertSemiMaster(ctx context.Context, store Store, groupID, factor int64, value string) error {
	f := domain.Eq("group_id", groupID).And(domain.Eq("factor", factor))
	n, err := store.UpdateWhere(ctx, domain.SemiMaster, f, map[string]any{"value": value})
	if err != nil {
		return errors.Wrap(err, "update semi_master")
	}
	if n > 0 {
		return nil
	}
	row := table.New("group_id", "factor", "value")
	row.AppendValues(groupID, factor, value)
	if _, err := store.Insert(ctx, domain.SemiMaster, row); err != nil {
		return errors.Wrap(err, "insert semi_master")
	}
	return nil
}

func memberKey(dataID int64, value string) string {
	return table.KeyOf(dataID) + "\x1f" + value
}
