package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/services"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/metrics"
)

type scanOptions struct {
	dataTableID  int64
	inputDir     string
	chunk        int
	skipMerge    bool
	mode         string
	migrate      bool
	metricsAddr  string
	showProgress bool
}

func newScanCmd() *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Import the masters referenced by one data table",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.dataTableID, "data-table", 0, "cfg_data_table id (required)")
	cmd.Flags().StringVar(&opts.inputDir, "input", "", "Directory holding the extracted CSV files (required)")
	cmd.Flags().IntVar(&opts.chunk, "chunk", 10000, "Rows per batch")
	cmd.Flags().BoolVar(&opts.skipMerge, "skip-merge-data-source", false, "Never merge processes of different data sources")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Override the import mode: direct|file")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "Apply pending migrations first")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while scanning")
	cmd.Flags().BoolVar(&opts.showProgress, "progress", false, "Print a JSON line per batch")

	_ = cmd.MarkFlagRequired("data-table")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (o *scanOptions) validate() error {
	if o.dataTableID <= 0 {
		return withCode(exitUsage, fmt.Errorf("--data-table must be positive"))
	}
	if strings.TrimSpace(o.inputDir) == "" {
		return withCode(exitUsage, fmt.Errorf("--input is required"))
	}
	if o.chunk <= 0 {
		return withCode(exitUsage, fmt.Errorf("--chunk must be positive"))
	}
	o.mode = strings.ToLower(strings.TrimSpace(o.mode))
	switch services.ExportMode(o.mode) {
	case services.ExportAuto, services.ExportDirect, services.ExportFile:
	default:
		return withCode(exitUsage, fmt.Errorf("unsupported --mode: %s", o.mode))
	}
	return nil
}

func runScan(cmd *cobra.Command, opts scanOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.metricsAddr == "" && a.conf.Prometheus.Enabled {
		opts.metricsAddr = a.conf.Prometheus.Addr
	}
	if opts.metricsAddr != "" {
		wait := metrics.Serve(ctx, opts.metricsAddr, metrics.NewPrometheusController(a.conf.Prometheus.Path), a.log)
		defer wait()
		defer cancel()
	}

	if opts.migrate {
		if err := runMigrateUp(ctx, a); err != nil {
			return err
		}
	}

	scanner, err := a.scanner(ctx, services.NewCSVSource(opts.inputDir, opts.chunk))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var progress func(float64)
	if opts.showProgress {
		progress = func(p float64) {
			_ = writeJSONLine(out, map[string]any{"event": "progress", "data_table_id": opts.dataTableID, "percent": p})
		}
	}

	res, err := scanner.ScanMaster(a.context(ctx), opts.dataTableID, services.ScanOptions{
		SkipMergeWithDifferentDataSources: opts.skipMerge,
		Mode:                              services.ExportMode(opts.mode),
	}, progress)
	if err != nil {
		if errors.Is(err, services.ErrUnknownDataTable) {
			return withCode(exitValidation, err)
		}
		return withCode(exitDBWrite, err)
	}
	return writeJSONLine(out, res)
}
