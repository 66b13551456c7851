package services

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
)

// maxSuggestDistance bounds how many extra characters a column name may
// carry beyond the shared stem.
const maxSuggestDistance = 4

// GroupSuggestion proposes columns of one process that look like repeats
// of one measurement, e.g. "Temp_01", "Temp_02".
type GroupSuggestion struct {
	Name    string  `json:"name"`
	DataIDs []int64 `json:"data_ids"`
}

// SuggestColumnGroups proposes column groups among the visible, ungrouped
// generated columns of a process.
func SuggestColumnGroups(ctx context.Context, store Store, processID int64) ([]GroupSuggestion, error) {
	rows, err := store.Select(ctx, domain.MData, domain.Eq("process_id", processID))
	if err != nil {
		return nil, errors.Wrap(err, "select m_data")
	}
	records := domain.MDataFrom(rows)
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	links, err := store.Select(ctx, domain.MColumnGroup, domain.In("data_id", ids))
	if err != nil {
		return nil, errors.Wrap(err, "select m_column_group")
	}
	grouped := map[int64]bool{}
	for _, id := range int64Set(links.Column("data_id")) {
		grouped[id] = true
	}

	var cands []domain.MDataRecord
	for _, r := range records {
		if r.IsHide || grouped[r.ID] || isReservedGroup(r.DataGroupID) || r.Names.Display() == "" {
			continue
		}
		cands = append(cands, r)
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })
	names := make([]string, 0, len(cands))
	for _, r := range cands {
		names = append(names, r.Names.Display())
	}

	taken := make([]bool, len(cands))
	var out []GroupSuggestion
	for i := range cands {
		if taken[i] {
			continue
		}
		stem := nameStem(names[i])
		if stem == "" {
			continue
		}
		ranks := fuzzy.RankFindNormalizedFold(stem, names)
		sort.Sort(ranks)
		var members []int64
		for _, rank := range ranks {
			j := rank.OriginalIndex
			if taken[j] || rank.Distance > maxSuggestDistance || !strings.EqualFold(nameStem(names[j]), stem) {
				continue
			}
			members = append(members, cands[j].ID)
		}
		if len(members) < 2 {
			continue
		}
		for j := range cands {
			if slices.Contains(members, cands[j].ID) {
				taken[j] = true
			}
		}
		slices.Sort(members)
		out = append(out, GroupSuggestion{Name: stem, DataIDs: members})
	}
	return out, nil
}

// nameStem drops a trailing counter and its separators: "Temp_01" -> "Temp".
func nameStem(name string) string {
	s := strings.TrimSpace(name)
	s = strings.TrimRight(s, "0123456789")
	return strings.TrimRight(s, " _-#.")
}
