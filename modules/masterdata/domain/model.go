package domain

import "strings"

// Kind separates shared masters from per-import mapping rows and config.
type Kind int

const (
	KindMaster Kind = iota
	KindMapping
	KindConfig
	KindOthers
)

func (k Kind) String() string {
	switch k {
	case KindMaster:
		return "master"
	case KindMapping:
		return "mapping"
	case KindConfig:
		return "config"
	default:
		return "others"
	}
}

type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInt
	TypeBool
	TypeFloat
	TypeTime
)

func (t ColumnType) SQL() string {
	switch t {
	case TypeInt:
		return "BIGINT"
	case TypeBool:
		return "BOOLEAN"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeTime:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

type Column struct {
	Name string
	Type ColumnType
}

const (
	ColID          = "id"
	ColCreatedAt   = "created_at"
	ColUpdatedAt   = "updated_at"
	ColDataTableID = "data_table_id"
)

// Model describes one table.
type Model interface {
	Table() string
	Kind() Kind
	Columns() []Column
	ColumnNames() []string
	Column(name string) (Column, bool)
	// UniqueKey is the tuple no two rows may share.
	UniqueKey() []string
	// ForeignIDColumn is the column other tables use to reference a row.
	ForeignIDColumn() string
}

// Named models carry parallel jp/en/local names and a derived system name.
type Named interface {
	Names() NameColumns
}

// Hierarchical models reference parent masters.
type Hierarchical interface {
	Parents() []string
}

// Signed models require a short code, defaulted when absent.
type Signed interface {
	Sign() (column, defaultSign string)
}

// SoftDeletable rows are hidden instead of deleted.
type SoftDeletable interface {
	HideColumn() string
}

// DataSourceScoped models can restrict matching to one data source.
type DataSourceScoped interface {
	DataSourceColumn() string
}

// ReservedIDFloored models never allocate ids at or below the floor.
type ReservedIDFloored interface {
	ReservedIDFloor() int64
}

type NameColumns struct {
	JP, EN, Sys, Local        string
	AbbrJP, AbbrEN, AbbrLocal string
}

// All returns the non-empty name columns.
func (n NameColumns) All() []string {
	out := make([]string, 0, 7)
	for _, c := range []string{n.JP, n.EN, n.Sys, n.Local, n.AbbrJP, n.AbbrEN, n.AbbrLocal} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Key returns the raw name columns used in unique keys (sys is derived).
func (n NameColumns) Key() []string {
	out := make([]string, 0, 3)
	for _, c := range []string{n.JP, n.EN, n.Local} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

type base struct {
	table string
	kind  Kind
	cols  []Column
	index map[string]int
	key   []string
	fk    string
}

func newBase(table string, kind Kind, fk string, key []string, cols ...Column) *base {
	b := &base{table: table, kind: kind, fk: fk, key: key, index: map[string]int{}}
	add := func(c Column) {
		if _, ok := b.index[c.Name]; ok {
			return
		}
		b.index[c.Name] = len(b.cols)
		b.cols = append(b.cols, c)
	}
	add(Column{Name: ColID, Type: TypeInt})
	for _, c := range cols {
		add(c)
	}
	if kind == KindMaster {
		add(Column{Name: ColCreatedAt, Type: TypeTime})
		add(Column{Name: ColUpdatedAt, Type: TypeTime})
	}
	return b
}

func (b *base) Table() string { return b.table }
func (b *base) Kind() Kind    { return b.kind }

func (b *base) Columns() []Column {
	out := make([]Column, len(b.cols))
	copy(out, b.cols)
	return out
}

func (b *base) ColumnNames() []string {
	out := make([]string, len(b.cols))
	for i, c := range b.cols {
		out[i] = c.Name
	}
	return out
}

func (b *base) Column(name string) (Column, bool) {
	i, ok := b.index[name]
	if !ok {
		return Column{}, false
	}
	return b.cols[i], true
}

func (b *base) UniqueKey() []string {
	out := make([]string, len(b.key))
	copy(out, b.key)
	return out
}

func (b *base) ForeignIDColumn() string { return b.fk }

func (b *base) String() string { return b.table }

type names NameColumns

func (n names) Names() NameColumns { return NameColumns(n) }

type parents []string

func (p parents) Parents() []string {
	out := make([]string, len(p))
	copy(out, p)
	return out
}

type sign struct{ col, def string }

func (s sign) Sign() (string, string) { return s.col, s.def }

type hide string

func (h hide) HideColumn() string { return string(h) }

type scoped string

func (s scoped) DataSourceColumn() string { return string(s) }

type floor int64

func (f floor) ReservedIDFloor() int64 { return int64(f) }

type plainModel struct{ *base }

type namedModel struct {
	*base
	names
}

type namedChildModel struct {
	*base
	names
	parents
}

type childModel struct {
	*base
	parents
}

type signedChildModel struct {
	*base
	parents
	sign
}

type processModel struct {
	*base
	names
	scoped
}

type dataGroupModel struct {
	*base
	names
	floor
}

type dataModel struct {
	*base
	names
	parents
	hide
}

// IdentityColumns are the unique-key columns that say which entity a row
// is: everything but parent references, except *_group_id parents, which name
// the entity (a line known only by its line group is still a line). A
// candidate row with all of them null describes no entity.
func IdentityColumns(m Model) []string {
	key := m.UniqueKey()
	h, ok := m.(Hierarchical)
	if !ok {
		return key
	}
	skip := map[string]struct{}{}
	for _, p := range h.Parents() {
		if !strings.HasSuffix(p, "_group_id") {
			skip[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(key))
	for _, c := range key {
		if _, ok := skip[c]; !ok {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return key
	}
	return out
}
