package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/infrastructure/persistence"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
)

func newSequenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Allocate master ids",
	}

	var (
		tableName string
		step      int
	)
	next := &cobra.Command{
		Use:   "next",
		Short: "Reserve the next ids of a master table",
		RunE: func(cmd *cobra.Command, args []string) error {
			tableName = strings.TrimSpace(tableName)
			if _, ok := domain.ModelByTable(tableName); !ok {
				return withCode(exitUsage, fmt.Errorf("unknown master table: %q", tableName))
			}
			if step <= 0 {
				return withCode(exitUsage, fmt.Errorf("--step must be positive"))
			}
			ctx := cmd.Context()
			pool, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			ids, err := composables.InTxResult(composables.WithPool(ctx, pool), func(txCtx context.Context) ([]int64, error) {
				return persistence.NewPostgresSequence().GetNextIDByTable(txCtx, tableName, step)
			})
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"table": tableName, "ids": ids})
		},
	}
	next.Flags().StringVar(&tableName, "table", "", "Master table name (required)")
	next.Flags().IntVar(&step, "step", 1, "How many ids to reserve")
	_ = next.MarkFlagRequired("table")

	cmd.AddCommand(next)
	return cmd
}
