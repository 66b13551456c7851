package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/configuration"
)

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, configuration.Use().Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("db connect failed: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("db ping failed: %w", err))
	}
	return pool, nil
}
