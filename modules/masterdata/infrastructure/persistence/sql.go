package persistence

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrEmptyFilter   = errors.New("refusing to touch every row without a filter")
)

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func identList(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = ident(c)
	}
	return strings.Join(out, ", ")
}

// args accumulates positional parameters.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

// where renders f as a WHERE clause. Column order is sorted so the SQL is
// stable for a given filter.
func where(m domain.Model, f domain.Filter, a *args) (string, error) {
	if len(f) == 0 {
		return "", nil
	}
	cols := make([]string, 0, len(f))
	for c := range f {
		if _, ok := m.Column(c); !ok {
			return "", errors.Wrapf(ErrUnknownColumn, "%s.%s", m.Table(), c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	conds := make([]string, 0, len(cols))
	for _, c := range cols {
		col, _ := m.Column(c)
		values := f[c]
		if len(values) == 0 {
			conds = append(conds, "FALSE")
			continue
		}
		var (
			nullable bool
			params   []string
		)
		for _, v := range values {
			cv, err := domain.Coerce(col.Type, v)
			if err != nil {
				return "", err
			}
			if cv == nil {
				nullable = true
				continue
			}
			params = append(params, a.add(cv))
		}
		var parts []string
		if len(params) > 0 {
			parts = append(parts, ident(c)+" IN ("+strings.Join(params, ", ")+")")
		}
		if nullable {
			parts = append(parts, ident(c)+" IS NULL")
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

// setClause renders SET assignments for the known columns of values,
// touching updated_at when the model carries it.
func setClause(m domain.Model, values map[string]any, a *args) (string, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		if _, ok := m.Column(c); !ok {
			return "", errors.Wrapf(ErrUnknownColumn, "%s.%s", m.Table(), c)
		}
		if c == domain.ColID {
			continue
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		col, _ := m.Column(c)
		v, err := domain.Coerce(col.Type, values[c])
		if err != nil {
			return "", err
		}
		parts = append(parts, ident(c)+" = "+a.add(v))
	}
	_, given := values[domain.ColUpdatedAt]
	if _, ok := m.Column(domain.ColUpdatedAt); ok && !given {
		parts = append(parts, ident(domain.ColUpdatedAt)+" = now()")
	}
	if len(parts) == 0 {
		return "", errors.Errorf("%s: nothing to update", m.Table())
	}
	return " SET " + strings.Join(parts, ", "), nil
}
