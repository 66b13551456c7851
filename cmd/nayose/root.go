package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nayose",
		Short:         "Master data reconciliation for Bridge Station data tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSequenceCmd())
	cmd.AddCommand(newRelationCmd())
	cmd.AddCommand(newGroupCmd())
	cmd.AddCommand(newOutboxCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
