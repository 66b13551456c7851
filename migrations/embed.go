// Package migrations holds the goose SQL migrations of the nayose schema.
package migrations

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// NewProvider returns a goose provider over the embedded migrations. The
// returned close func releases the database/sql handle, not the pool.
func NewProvider(pool *pgxpool.Pool) (*goose.Provider, func() error, error) {
	db := stdlib.OpenDBFromPool(pool)
	p, err := goose.NewProvider(goose.DialectPostgres, db, FS)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return p, db.Close, nil
}

// Up applies every pending migration.
func Up(ctx context.Context, pool *pgxpool.Pool) error {
	p, closeDB, err := NewProvider(pool)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()
	_, err = p.Up(ctx)
	return err
}

