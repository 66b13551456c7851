package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/services"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/configuration"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/lock"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Inspect nayose files written by file-mode scans",
	}
	cmd.AddCommand(newExportListCmd())
	cmd.AddCommand(newExportShowCmd())
	return cmd
}

func newExportListCmd() *cobra.Command {
	var dataTableID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the nayose files of a data table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataTableID <= 0 {
				return withCode(exitUsage, fmt.Errorf("--data-table must be positive"))
			}
			ctx := cmd.Context()
			blobs, err := newBlobStore(ctx, configuration.Use())
			if err != nil {
				return err
			}
			keys, err := blobs.List(ctx, fmt.Sprintf("%d/", dataTableID))
			if err != nil {
				return withCode(exitExport, err)
			}
			for _, k := range keys {
				if err := writeJSONLine(cmd.OutOrStdout(), map[string]any{"key": k}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&dataTableID, "data-table", 0, "cfg_data_table id (required)")
	_ = cmd.MarkFlagRequired("data-table")
	return cmd
}

func newExportShowCmd() *cobra.Command {
	var (
		dataTableID int64
		target      string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the rows of one nayose file as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataTableID <= 0 {
				return withCode(exitUsage, fmt.Errorf("--data-table must be positive"))
			}
			target = strings.TrimSpace(target)
			if target == "" {
				return withCode(exitUsage, fmt.Errorf("--target is required"))
			}
			ctx := cmd.Context()
			blobs, err := newBlobStore(ctx, configuration.Use())
			if err != nil {
				return err
			}
			rows, err := services.NewExporter(blobs, lock.NewMemory()).Read(ctx, dataTableID, target)
			if errors.Is(err, blob.ErrNotFound) {
				return withCode(exitValidation, fmt.Errorf("no nayose file %s for data table %d", target, dataTableID))
			}
			if err != nil {
				return withCode(exitExport, err)
			}
			for i := 0; i < rows.Len(); i++ {
				if err := writeJSONLine(cmd.OutOrStdout(), rows.Row(i)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&dataTableID, "data-table", 0, "cfg_data_table id (required)")
	cmd.Flags().StringVar(&target, "target", services.AllDataRelation, "Mapping name, e.g. mapping_part, or ALL_DATA_RELATION")
	_ = cmd.MarkFlagRequired("data-table")
	return cmd
}
