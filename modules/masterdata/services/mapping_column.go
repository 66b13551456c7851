package services

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

var (
	ErrGroupNotFound = errors.New("column group not found")
	ErrNoDataIDs     = errors.New("no data ids given")
)

// MappingColumn is a column group: m_data columns whose categorical values
// share one factor numbering.
type MappingColumn struct {
	w       *Writer
	Group   domain.MGroupRecord
	Members []int64
}

// NewMappingColumnFromGroup loads an existing group.
func NewMappingColumnFromGroup(ctx context.Context, w *Writer, groupID int64) (*MappingColumn, error) {
	rows, err := w.store.Select(ctx, domain.MGroup, domain.Eq(domain.ColID, groupID))
	if err != nil {
		return nil, errors.Wrap(err, "select m_group")
	}
	groups := domain.MGroupsFrom(rows)
	if len(groups) == 0 {
		return nil, errors.Wrapf(ErrGroupNotFound, "group %d", groupID)
	}
	members, err := groupMembers(ctx, w.store, groupID)
	if err != nil {
		return nil, err
	}
	return &MappingColumn{w: w, Group: groups[0], Members: members}, nil
}

// NewMappingColumn returns the group already holding one of dataIDs, or
// bootstraps a new one named after the first column.
func NewMappingColumn(ctx context.Context, w *Writer, dataIDs []int64) (*MappingColumn, error) {
	ids := normalizeIDs(dataIDs)
	if len(ids) == 0 {
		return nil, ErrNoDataIDs
	}
	links, err := w.store.Select(ctx, domain.MColumnGroup, domain.In("data_id", ids))
	if err != nil {
		return nil, errors.Wrap(err, "select m_column_group")
	}
	if links.Len() > 0 {
		groupID, _ := table.AsInt64(links.SortBy("group_id").Get(0, "group_id"))
		return NewMappingColumnFromGroup(ctx, w, groupID)
	}

	first, err := loadData(ctx, w.store, ids[:1])
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errors.Wrapf(ErrNoDataIDs, "data %d not found", ids[0])
	}
	newIDs, err := w.store.NextIDs(ctx, domain.MGroup, 1)
	if err != nil {
		return nil, errors.Wrap(err, "allocate m_group id")
	}
	group := domain.MGroupRecord{ID: newIDs[0], DataGroupID: first[0].DataGroupID, Names: first[0].Names}
	row := group.Values()
	row[domain.ColID] = group.ID
	frame := table.New()
	frame.Append(row)
	if _, err := w.store.Insert(ctx, domain.MGroup, frame); err != nil {
		return nil, errors.Wrap(err, "insert m_group")
	}
	logWithFields(ctx, logrus.InfoLevel, "nayose.group.created", logrus.Fields{"group_id": group.ID, "data_id": ids[0]})
	return &MappingColumn{w: w, Group: group}, nil
}

// GenMGroup makes members the exact membership of the group. Added columns
// are linked and take the group's names, removed ones are unlinked with
// their names reverted to their data group, and category factors are
// recomputed. Repeating a call changes
// nothing.
func (c *MappingColumn) GenMGroup(ctx context.Context, members []int64) error {
	want := normalizeIDs(members)
	if len(want) == 0 {
		return ErrNoDataIDs
	}
	current, err := groupMembers(ctx, c.w.store, c.Group.ID)
	if err != nil {
		return err
	}
	var add, remove []int64
	for _, id := range want {
		if !slices.Contains(current, id) {
			add = append(add, id)
		}
	}
	for _, id := range current {
		if !slices.Contains(want, id) {
			remove = append(remove, id)
		}
	}

	if len(add) > 0 {
		frame := table.New("group_id", "data_id")
		for _, id := range add {
			frame.AppendValues(c.Group.ID, id)
		}
		if _, err := c.w.WriteMasterData(ctx, frame, domain.MColumnGroup, WriteOptions{}); err != nil {
			return errors.Wrap(err, "link columns")
		}
	}
	if len(remove) > 0 {
		f := domain.Eq("group_id", c.Group.ID).And(domain.In("data_id", remove))
		if _, err := c.w.store.Delete(ctx, domain.MColumnGroup, f); err != nil {
			return errors.Wrap(err, "unlink columns")
		}
		if err := revertDataNames(ctx, c.w.store, remove); err != nil {
			return err
		}
	}

	if err := c.applyGroupNames(ctx, want); err != nil {
		return err
	}
	if _, err := UngroupCategoryValues(ctx, c.w.store, c.Group.ID, want); err != nil {
		return err
	}
	last, err := GenFactorAndGroupID(ctx, c.w, c.Group, want)
	if err != nil {
		return err
	}
	c.Group.LastFactor = last
	c.Members = want
	logWithFields(ctx, logrus.InfoLevel, "nayose.group.members", logrus.Fields{
		"group_id": c.Group.ID,
		"added":    len(add),
		"removed":  len(remove),
	})
	return nil
}

// applyGroupNames gives every member the display names of the group. The
// group keeps the names it was created with.
func (c *MappingColumn) applyGroupNames(ctx context.Context, members []int64) error {
	records, err := loadData(ctx, c.w.store, members)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.Names == c.Group.Names {
			continue
		}
		r.Names = c.Group.Names
		if err := c.w.store.Update(ctx, domain.MData, r.ID, r.NameValues()); err != nil {
			return errors.Wrapf(err, "rename m_data %d", r.ID)
		}
	}
	return nil
}

// DeleteColumnGroup dissolves a group: links, factors, semi masters and
// the group row itself.
func DeleteColumnGroup(ctx context.Context, w *Writer, groupID int64) error {
	c, err := NewMappingColumnFromGroup(ctx, w, groupID)
	if err != nil {
		return err
	}
	byGroup := domain.Eq("group_id", groupID)
	if _, err := w.store.UpdateWhere(ctx, domain.MappingCategoryData, byGroup, map[string]any{"factor": nil, "group_id": nil}); err != nil {
		return errors.Wrap(err, "ungroup category values")
	}
	if _, err := w.store.Delete(ctx, domain.SemiMaster, byGroup); err != nil {
		return errors.Wrap(err, "delete semi masters")
	}
	if _, err := w.store.Delete(ctx, domain.MColumnGroup, byGroup); err != nil {
		return errors.Wrap(err, "delete column links")
	}
	if err := revertDataNames(ctx, w.store, c.Members); err != nil {
		return err
	}
	if _, err := w.store.Delete(ctx, domain.MGroup, domain.Eq(domain.ColID, groupID)); err != nil {
		return errors.Wrap(err, "delete m_group")
	}
	logWithFields(ctx, logrus.InfoLevel, "nayose.group.deleted", logrus.Fields{"group_id": groupID, "members": len(c.Members)})
	return nil
}

func groupMembers(ctx context.Context, store Store, groupID int64) ([]int64, error) {
	rows, err := store.Select(ctx, domain.MColumnGroup, domain.Eq("group_id", groupID))
	if err != nil {
		return nil, errors.Wrap(err, "select m_column_group")
	}
	return normalizeIDs(int64Set(rows.Column("data_id"))), nil
}

func loadData(ctx context.Context, store Store, ids []int64) ([]domain.MDataRecord, error) {
	rows, err := store.Select(ctx, domain.MData, domain.In(domain.ColID, ids))
	if err != nil {
		return nil, errors.Wrap(err, "select m_data")
	}
	return domain.MDataFrom(rows), nil
}

// revertDataNames resets the names of dataIDs to those of their generated
// data group. Columns of reserved groups keep their names.
func revertDataNames(ctx context.Context, store Store, dataIDs []int64) error {
	if len(dataIDs) == 0 {
		return nil
	}
	records, err := loadData(ctx, store, dataIDs)
	if err != nil {
		return err
	}
	groupIDs := make([]int64, 0, len(records))
	for _, r := range records {
		if !isReservedGroup(r.DataGroupID) {
			groupIDs = append(groupIDs, r.DataGroupID)
		}
	}
	if len(groupIDs) == 0 {
		return nil
	}
	rows, err := store.Select(ctx, domain.MDataGroup, domain.In(domain.ColID, groupIDs))
	if err != nil {
		return errors.Wrap(err, "select m_data_group")
	}
	defaults := map[int64]domain.Names{}
	for _, g := range domain.DataGroupsFrom(rows) {
		defaults[g.ID] = g.Names
	}
	for _, r := range records {
		names, ok := defaults[r.DataGroupID]
		if !ok || names == r.Names {
			continue
		}
		r.Names = names
		if err := store.Update(ctx, domain.MData, r.ID, r.NameValues()); err != nil {
			return errors.Wrapf(err, "revert m_data %d", r.ID)
		}
	}
	return nil
}

// normalizeIDs drops non-positive ids and duplicates and sorts the rest.
func normalizeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
