package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/infrastructure/persistence"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/services"
)

type relationOptions struct {
	group   string
	lang    string
	sqlOnly bool
}

func newRelationCmd() *cobra.Command {
	var opts relationOptions

	cmd := &cobra.Command{
		Use:   "relation",
		Short: "Print the id/name/master_id view of a data group",
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := domain.ParseDataGroupType(opts.group)
			if err != nil {
				return withCode(exitUsage, err)
			}
			tag, err := language.Parse(opts.lang)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("--lang: %w", err))
			}
			masters := domain.DefaultRelationMasters()
			rm := masters.Get(group)
			if rm == nil {
				return withCode(exitValidation, fmt.Errorf("data group %s has no relation master", group))
			}
			if opts.sqlOnly {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), rm.SQL(tag))
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := services.NewRelationService(persistence.NewRelationReader(), masters, a.bus).Lookup(a.context(ctx), group, tag)
			if err != nil {
				return withCode(exitDB, err)
			}
			for _, r := range rows {
				if err := writeJSONLine(cmd.OutOrStdout(), map[string]any{"id": r.ID, "name": r.Name, "master_id": r.MasterID}); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.group, "group", "", "Data group type name or number (required)")
	cmd.Flags().StringVar(&opts.lang, "lang", "en", "Display language (BCP 47)")
	cmd.Flags().BoolVar(&opts.sqlOnly, "sql", false, "Print the view query instead of running it")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}
