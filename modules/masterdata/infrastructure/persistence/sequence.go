package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
)

// PostgresSequence issues id blocks reconciled against both the table's max
// id and its serial sequence. Bulk loads that insert explicit ids do not
// advance the sequence, so neither source alone is trusted.
type PostgresSequence struct{}

func NewPostgresSequence() *PostgresSequence {
	return &PostgresSequence{}
}

// GetNextIDByTable returns step contiguous ids and moves the sequence to the
// last one. Calls for one table are serialized by an advisory lock held until
// the surrounding transaction ends.
func (s *PostgresSequence) GetNextIDByTable(ctx context.Context, tableName string, step int) ([]int64, error) {
	if step <= 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "nayose_seq:"+tableName); err != nil {
		return nil, errors.Wrapf(err, "lock sequence %s", tableName)
	}

	var maxID int64
	if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(id), 0) FROM "+pgx.Identifier{tableName}.Sanitize()).Scan(&maxID); err != nil {
		return nil, errors.Wrapf(err, "max id %s", tableName)
	}

	var seqName *string
	if err := tx.QueryRow(ctx, "SELECT pg_get_serial_sequence($1, 'id')", tableName).Scan(&seqName); err != nil {
		return nil, errors.Wrapf(err, "sequence of %s", tableName)
	}

	var last int64
	if seqName != nil {
		err := tx.QueryRow(ctx, `
SELECT COALESCE(last_value, 0)
FROM pg_sequences
WHERE format('%I.%I', schemaname, sequencename) = $1
`, *seqName).Scan(&last)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(err, "read sequence %s", *seqName)
		}
	}

	ids := allocate(maxID, last, floorOf(tableName), step)

	if seqName != nil {
		if _, err := tx.Exec(ctx, "SELECT setval($1, $2, true)", *seqName, ids[len(ids)-1]); err != nil {
			return nil, errors.Wrapf(err, "advance sequence %s", *seqName)
		}
	}
	return ids, nil
}

func floorOf(tableName string) int64 {
	m, ok := domain.ModelByTable(tableName)
	if !ok {
		return 0
	}
	if f, ok := m.(domain.ReservedIDFloored); ok {
		return f.ReservedIDFloor()
	}
	return 0
}

// allocate returns max(maxID, last)+1 .. +step, never at or below floor.
func allocate(maxID, last, floor int64, step int) []int64 {
	start := max(maxID, last) + 1
	if start <= floor {
		start = floor + 1
	}
	ids := make([]int64, step)
	for i := range ids {
		ids[i] = start + int64(i)
	}
	return ids
}
