package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// PostgresStore reads and writes model tables through the transaction (or
// pool) carried by the context.
type PostgresStore struct {
	seq *PostgresSequence
}

func NewPostgresStore() *PostgresStore {
	return &PostgresStore{seq: NewPostgresSequence()}
}

func (s *PostgresStore) Select(ctx context.Context, m domain.Model, f domain.Filter) (*table.Table, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var a args
	cond, err := where(m, f, &a)
	if err != nil {
		return nil, err
	}
	cols := m.ColumnNames()
	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", identList(cols), ident(m.Table()), cond, ident(domain.ColID))

	rows, err := tx.Query(ctx, sql, a...)
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", m.Table())
	}
	defer rows.Close()

	out := table.New(cols...)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", m.Table())
		}
		out.AppendValues(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "select %s", m.Table())
	}
	return out, nil
}

// Insert copies rows into the table. The id column is sent only when every
// row carries one; otherwise the column default assigns it.
func (s *PostgresStore) Insert(ctx context.Context, m domain.Model, rows *table.Table) (int, error) {
	if rows.Len() == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	cols := insertColumns(m, rows)
	records := make([][]any, rows.Len())
	for i := range records {
		r := make([]any, len(cols))
		for j, c := range cols {
			col, _ := m.Column(c)
			v, err := domain.Coerce(col.Type, rows.Get(i, c))
			if err != nil {
				return 0, errors.Wrapf(err, "insert %s row %d", m.Table(), i)
			}
			r[j] = v
		}
		records[i] = r
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{m.Table()}, cols, pgx.CopyFromRows(records))
	if err != nil {
		return 0, errors.Wrapf(err, "insert %s", m.Table())
	}
	return int(n), nil
}

func insertColumns(m domain.Model, rows *table.Table) []string {
	withID := rows.Has(domain.ColID)
	if withID {
		for _, v := range rows.Column(domain.ColID) {
			if v == nil {
				withID = false
				break
			}
		}
	}
	var cols []string
	for _, c := range m.ColumnNames() {
		if !rows.Has(c) {
			continue
		}
		if c == domain.ColID && !withID {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

func (s *PostgresStore) Update(ctx context.Context, m domain.Model, id int64, values map[string]any) error {
	_, err := s.UpdateWhere(ctx, m, domain.Eq(domain.ColID, id), values)
	return err
}

func (s *PostgresStore) UpdateWhere(ctx context.Context, m domain.Model, f domain.Filter, values map[string]any) (int, error) {
	if len(f) == 0 {
		return 0, errors.Wrapf(ErrEmptyFilter, "update %s", m.Table())
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	var a args
	set, err := setClause(m, values, &a)
	if err != nil {
		return 0, err
	}
	cond, err := where(m, f, &a)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, "UPDATE "+ident(m.Table())+set+cond, a...)
	if err != nil {
		return 0, errors.Wrapf(err, "update %s", m.Table())
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Delete(ctx context.Context, m domain.Model, f domain.Filter) (int, error) {
	if len(f) == 0 {
		return 0, errors.Wrapf(ErrEmptyFilter, "delete %s", m.Table())
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	var a args
	cond, err := where(m, f, &a)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, "DELETE FROM "+ident(m.Table())+cond, a...)
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s", m.Table())
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) NextIDs(ctx context.Context, m domain.Model, n int) ([]int64, error) {
	return s.seq.GetNextIDByTable(ctx, m.Table(), n)
}

// DummyIDs returns the placeholder rows (id <= 0) that matching must skip.
func (s *PostgresStore) DummyIDs(ctx context.Context, m domain.Model) (map[int64]struct{}, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, "SELECT id FROM "+ident(m.Table())+" WHERE id <= 0")
	if err != nil {
		return nil, errors.Wrapf(err, "dummy ids %s", m.Table())
	}
	defer rows.Close()

	out := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
