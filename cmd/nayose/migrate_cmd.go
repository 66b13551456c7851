package main

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the nayose schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProvider(cmd, func(ctx context.Context, p *goose.Provider) error {
				results, err := p.Up(ctx)
				if err != nil {
					return withCode(exitDBWrite, fmt.Errorf("migrate up: %w", err))
				}
				for _, r := range results {
					if err := writeMigrationResult(cmd, r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProvider(cmd, func(ctx context.Context, p *goose.Provider) error {
				r, err := p.Down(ctx)
				if err != nil {
					return withCode(exitDBWrite, fmt.Errorf("migrate down: %w", err))
				}
				return writeMigrationResult(cmd, r)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProvider(cmd, func(ctx context.Context, p *goose.Provider) error {
				statuses, err := p.Status(ctx)
				if err != nil {
					return withCode(exitDB, fmt.Errorf("migrate status: %w", err))
				}
				for _, s := range statuses {
					line := map[string]any{"version": s.Source.Version, "path": s.Source.Path, "state": string(s.State)}
					if !s.AppliedAt.IsZero() {
						line["applied_at"] = s.AppliedAt
					}
					if err := writeJSONLine(cmd.OutOrStdout(), line); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})
	return cmd
}

func withProvider(cmd *cobra.Command, fn func(context.Context, *goose.Provider) error) error {
	ctx := cmd.Context()
	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	p, closeDB, err := migrations.NewProvider(pool)
	if err != nil {
		return withCode(exitDB, fmt.Errorf("migration provider: %w", err))
	}
	defer func() { _ = closeDB() }()
	return fn(ctx, p)
}

func writeMigrationResult(cmd *cobra.Command, r *goose.MigrationResult) error {
	if r == nil || r.Source == nil {
		return nil
	}
	return writeJSONLine(cmd.OutOrStdout(), map[string]any{
		"version":     r.Source.Version,
		"path":        r.Source.Path,
		"direction":   r.Direction,
		"duration_ms": r.Duration.Milliseconds(),
	})
}

func runMigrateUp(ctx context.Context, a *app) error {
	if err := migrations.Up(ctx, a.pool); err != nil {
		return withCode(exitDBWrite, fmt.Errorf("migrate up: %w", err))
	}
	return nil
}
