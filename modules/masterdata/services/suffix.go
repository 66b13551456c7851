package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// AddSuffixToDuplicateDataName renames visible m_data rows whose display or
// system name repeats inside a process. The first row keeps its name, the
// others get "_01", "_02", ... in id order and a generated data group with
// the new name. Names compare exactly, so "Temp" and "TEMP" both stay. Rows
// of reserved groups always count as first.
func AddSuffixToDuplicateDataName(ctx context.Context, w *Writer, processIDs []int64) (int, error) {
	if len(processIDs) == 0 {
		return 0, nil
	}
	rows, err := w.store.Select(ctx, domain.MData, domain.In("process_id", processIDs))
	if err != nil {
		return 0, errors.Wrap(err, "select m_data")
	}
	records := domain.MDataFrom(rows)
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := isReservedGroup(records[i].DataGroupID), isReservedGroup(records[j].DataGroupID)
		if ri != rj {
			return ri
		}
		return records[i].ID < records[j].ID
	})

	type seen struct{ display, sys map[string]bool }
	byProcess := map[int64]*seen{}
	renamed := 0
	for _, r := range records {
		if r.IsHide {
			continue
		}
		s, ok := byProcess[r.ProcessID]
		if !ok {
			s = &seen{display: map[string]bool{}, sys: map[string]bool{}}
			byProcess[r.ProcessID] = s
		}
		taken := func(n domain.Names) bool {
			d, y := n.Display(), n.Sys
			return (d != "" && s.display[d]) || (y != "" && s.sys[y])
		}
		mark := func(n domain.Names) {
			if d := n.Display(); d != "" {
				s.display[d] = true
			}
			if y := n.Sys; y != "" {
				s.sys[y] = true
			}
		}
		if !taken(r.Names) {
			mark(r.Names)
			continue
		}
		next := r.Names
		for k := 1; ; k++ {
			next = withSuffix(r.Names, fmt.Sprintf("_%02d", k))
			if !taken(next) {
				break
			}
		}
		mark(next)
		if err := repoint(ctx, w, r, next); err != nil {
			return renamed, err
		}
		renamed++
	}
	return renamed, nil
}

func isReservedGroup(id int64) bool {
	return id > 0 && id <= domain.MaxReservedNameID
}

func withSuffix(n domain.Names, suffix string) domain.Names {
	add := func(s string) string {
		if s == "" {
			return ""
		}
		return s + suffix
	}
	return domain.Names{JP: add(n.JP), EN: add(n.EN), Sys: add(n.Sys), Local: add(n.Local)}
}

// repoint stores the new names on r through a generated data group.
func repoint(ctx context.Context, w *Writer, r domain.MDataRecord, names domain.Names) error {
	group := domain.DataGroup{Type: domain.Generated, Names: names}
	frame := table.New()
	frame.Append(group.Values())
	if _, err := w.WriteMasterData(ctx, frame, domain.MDataGroup, WriteOptions{}); err != nil {
		return errors.Wrap(err, "write renamed data group")
	}
	groupID, ok := table.AsInt64(frame.Get(0, "data_group_id"))
	if !ok {
		return errors.Errorf("no data group for renamed m_data %d", r.ID)
	}
	r.Names = names
	values := r.NameValues()
	values["data_group_id"] = groupID
	if err := w.store.Update(ctx, domain.MData, r.ID, values); err != nil {
		return errors.Wrapf(err, "rename m_data %d", r.ID)
	}
	return nil
}
