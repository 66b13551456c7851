package services

import (
	"slices"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// tier is one matching pass: rows agree when their keys over cols agree
// after norm. Rows with a null require column take no part.
type tier struct {
	name    string
	cols    []string
	norm    table.Normalizer
	require string
}

func (t tier) key(tb *table.Table, i int) (string, bool) {
	if t.require != "" && tb.Get(i, t.require) == nil {
		return "", false
	}
	return tb.Key(i, t.cols, t.norm), true
}

// index maps keys to the first row carrying them.
func (t tier) index(tb *table.Table) map[string]int {
	out := make(map[string]int, tb.Len())
	for i := 0; i < tb.Len(); i++ {
		k, ok := t.key(tb, i)
		if !ok {
			continue
		}
		if _, seen := out[k]; !seen {
			out[k] = i
		}
	}
	return out
}

// matchTiers lists the passes for m. Masters are matched loosely; every
// other kind only by exact key.
func matchTiers(m domain.Model) []tier {
	key := m.UniqueKey()
	if m.Kind() != domain.KindMaster {
		return []tier{{name: TierExact, cols: key}}
	}
	out := []tier{
		{name: TierExact, cols: key},
		{name: TierLoose, cols: key, norm: looseKey},
	}
	if sys, cols, ok := systemNameColumns(m); ok {
		out = append(out, tier{name: TierSystemName, cols: cols, norm: looseKey, require: sys})
	}
	return append(out, tier{name: TierNoSpace, cols: key, norm: noSpaceKey})
}

// systemNameColumns returns the system-name key of a named model whose
// identity is its names: the sys column scoped by the integer key columns.
func systemNameColumns(m domain.Model) (string, []string, bool) {
	n, ok := m.(domain.Named)
	if !ok {
		return "", nil, false
	}
	nc := n.Names()
	if nc.Sys == "" {
		return "", nil, false
	}
	key := m.UniqueKey()
	named := false
	for _, c := range nc.Key() {
		if slices.Contains(key, c) {
			named = true
			break
		}
	}
	if !named {
		return "", nil, false
	}
	cols := []string{nc.Sys}
	for _, c := range key {
		if col, ok := m.Column(c); ok && col.Type == domain.TypeInt {
			cols = append(cols, c)
		}
	}
	return nc.Sys, cols, true
}

// collapse folds new rows that name the same entity under any tier into
// the first of them.
func collapse(t *table.Table, rows []int, tiers []tier) ([]int, map[int]int) {
	seen := make([]map[string]int, len(tiers))
	for i := range seen {
		seen[i] = map[string]int{}
	}
	var leaders []int
	alias := map[int]int{}
	for _, r := range rows {
		leader := -1
		for ti, tr := range tiers {
			k, ok := tr.key(t, r)
			if !ok {
				continue
			}
			if l, hit := seen[ti][k]; hit {
				leader = l
				break
			}
		}
		if leader >= 0 {
			alias[r] = leader
			continue
		}
		leaders = append(leaders, r)
		for ti, tr := range tiers {
			if k, ok := tr.key(t, r); ok {
				seen[ti][k] = r
			}
		}
	}
	return leaders, alias
}
