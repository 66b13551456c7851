package services

import (
	"context"

	"golang.org/x/text/language"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/table"
)

// Store is the table access the reconciliation services need. Values in
// returned tables use the Go types of domain.Coerce.
type Store interface {
	Select(ctx context.Context, m domain.Model, f domain.Filter) (*table.Table, error)
	Insert(ctx context.Context, m domain.Model, rows *table.Table) (int, error)
	Update(ctx context.Context, m domain.Model, id int64, values map[string]any) error
	UpdateWhere(ctx context.Context, m domain.Model, f domain.Filter, values map[string]any) (int, error)
	Delete(ctx context.Context, m domain.Model, f domain.Filter) (int, error)
	// NextIDs returns n contiguous fresh ids for m.
	NextIDs(ctx context.Context, m domain.Model, n int) ([]int64, error)
	// DummyIDs are placeholder rows that must never be merged into.
	DummyIDs(ctx context.Context, m domain.Model) (map[int64]struct{}, error)
}

// RelationQuerier runs relation master views.
type RelationQuerier interface {
	QueryRelation(ctx context.Context, rm *domain.RelationMaster, tag language.Tag) ([]domain.RelationRow, error)
}

// TxRunner runs fn inside a unit of work. Postgres callers pass
// composables.InTx; the zero runner calls fn directly.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

func (r TxRunner) run(ctx context.Context, fn func(context.Context) error) error {
	if r == nil {
		return fn(ctx)
	}
	return r(ctx, fn)
}
