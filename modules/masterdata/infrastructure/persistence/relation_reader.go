package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/text/language"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
)

// RelationReader runs relation master views.
type RelationReader struct{}

func NewRelationReader() *RelationReader {
	return &RelationReader{}
}

func (r *RelationReader) QueryRelation(ctx context.Context, rm *domain.RelationMaster, tag language.Tag) ([]domain.RelationRow, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, rm.SQL(tag)+" ORDER BY 1, 3")
	if err != nil {
		return nil, errors.Wrapf(err, "relation %s", rm.Group)
	}
	defer rows.Close()

	out := make([]domain.RelationRow, 0, 64)
	for rows.Next() {
		var row domain.RelationRow
		if err := rows.Scan(&row.ID, &row.Name, &row.MasterID); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
