// Package table is a small row-oriented tabular batch used to move candidate
// master rows between the scanner, the writer and the stores.
package table

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer maps a cell value to the string used when building a row key.
type Normalizer func(v any) string

// Table keeps rows in insertion order. Column names are unique.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

// FromRecords copies records; every record must have len(columns) values.
func FromRecords(columns []string, records [][]any) *Table {
	t := New(columns...)
	for _, r := range records {
		t.AppendValues(r...)
	}
	return t
}

func FromMaps(columns []string, rows []map[string]any) *Table {
	t := New(columns...)
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func (t *Table) addColumn(c string) bool {
	if _, ok := t.index[c]; ok {
		return false
	}
	t.index[c] = len(t.columns)
	t.columns = append(t.columns, c)
	return true
}

func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Get returns nil for an absent column.
func (t *Table) Get(i int, col string) any {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	return t.rows[i][j]
}

// Set adds col when absent.
func (t *Table) Set(i int, col string, v any) {
	t.AddColumn(col, nil)
	t.rows[i][t.index[col]] = v
}

func (t *Table) Row(i int) map[string]any {
	out := make(map[string]any, len(t.columns))
	for j, c := range t.columns {
		out[c] = t.rows[i][j]
	}
	return out
}

func (t *Table) Values(i int) []any {
	out := make([]any, len(t.columns))
	copy(out, t.rows[i])
	return out
}

func (t *Table) Column(col string) []any {
	out := make([]any, len(t.rows))
	j, ok := t.index[col]
	if !ok {
		return out
	}
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// AddColumn appends col filled with fill. It reports false when col exists.
func (t *Table) AddColumn(col string, fill any) bool {
	if !t.addColumn(col) {
		return false
	}
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], fill)
	}
	return true
}

// Copy sets dst to the values of src, adding dst when needed.
func (t *Table) Copy(src, dst string) {
	values := t.Column(src)
	t.AddColumn(dst, nil)
	j := t.index[dst]
	for i := range t.rows {
		t.rows[i][j] = values[i]
	}
}

// Append adds one row; unknown keys become new columns.
func (t *Table) Append(row map[string]any) {
	for c := range row {
		if !t.Has(c) {
			t.AddColumn(c, nil)
		}
	}
	r := make([]any, len(t.columns))
	for c, v := range row {
		r[t.index[c]] = v
	}
	t.rows = append(t.rows, r)
}

func (t *Table) AppendValues(values ...any) {
	if len(values) != len(t.columns) {
		panic(fmt.Sprintf("table: append %d values into %d columns", len(values), len(t.columns)))
	}
	r := make([]any, len(values))
	copy(r, values)
	t.rows = append(t.rows, r)
}

// Select returns a new table with cols in order; absent columns are null.
func (t *Table) Select(cols ...string) *Table {
	out := New(cols...)
	out.rows = make([][]any, len(t.rows))
	for i := range t.rows {
		r := make([]any, len(out.columns))
		for k, c := range out.columns {
			if j, ok := t.index[c]; ok {
				r[k] = t.rows[i][j]
			}
		}
		out.rows[i] = r
	}
	return out
}

// Rename renames columns in place. Targets that already exist are skipped.
func (t *Table) Rename(names map[string]string) *Table {
	for from, to := range names {
		j, ok := t.index[from]
		if !ok || t.Has(to) {
			continue
		}
		delete(t.index, from)
		t.index[to] = j
		t.columns[j] = to
	}
	return t
}

func (t *Table) Drop(cols ...string) *Table {
	drop := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		drop[c] = struct{}{}
	}
	keep := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if _, ok := drop[c]; !ok {
			keep = append(keep, c)
		}
	}
	return t.Select(keep...)
}

func (t *Table) Clone() *Table {
	return t.Select(t.columns...)
}

func (t *Table) Filter(keep func(i int) bool) *Table {
	idx := make([]int, 0, len(t.rows))
	for i := range t.rows {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

func (t *Table) Take(idx []int) *Table {
	out := New(t.columns...)
	out.rows = make([][]any, 0, len(idx))
	for _, i := range idx {
		r := make([]any, len(t.columns))
		copy(r, t.rows[i])
		out.rows = append(out.rows, r)
	}
	return out
}

// Key builds the row key over cols. A nil norm uses KeyOf.
func (t *Table) Key(i int, cols []string, norm Normalizer) string {
	if norm == nil {
		norm = KeyOf
	}
	var b strings.Builder
	for k, c := range cols {
		if k > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(norm(t.Get(i, c)))
	}
	return b.String()
}

// Index maps each key to the first row carrying it.
func (t *Table) Index(cols []string, norm Normalizer) map[string]int {
	out := make(map[string]int, len(t.rows))
	for i := range t.rows {
		k := t.Key(i, cols, norm)
		if _, ok := out[k]; !ok {
			out[k] = i
		}
	}
	return out
}

// DropDuplicates keeps the first row of every key.
func (t *Table) DropDuplicates(cols []string, norm Normalizer) *Table {
	seen := make(map[string]struct{}, len(t.rows))
	return t.Filter(func(i int) bool {
		k := t.Key(i, cols, norm)
		if _, ok := seen[k]; ok {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}

// AntiJoin keeps rows of t whose key does not appear in other.
func (t *Table) AntiJoin(other *Table, cols []string, norm Normalizer) *Table {
	if other.Len() == 0 {
		return t.Clone()
	}
	existing := other.Index(cols, norm)
	return t.Filter(func(i int) bool {
		_, ok := existing[t.Key(i, cols, norm)]
		return !ok
	})
}

// SortBy orders rows by col ascending. Nulls go last.
func (t *Table) SortBy(col string) *Table {
	out := t.Clone()
	j, ok := out.index[col]
	if !ok {
		return out
	}
	sort.SliceStable(out.rows, func(a, b int) bool {
		return Less(out.rows[a][j], out.rows[b][j])
	})
	return out
}

// Concat stacks tables; the result has the union of their columns.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.columns {
			out.AddColumn(c, nil)
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for i := range t.rows {
			r := make([]any, len(out.columns))
			for j, c := range t.columns {
				r[out.index[c]] = t.rows[i][j]
			}
			out.rows = append(out.rows, r)
		}
	}
	return out
}
