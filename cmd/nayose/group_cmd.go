package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/services"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage column groups and their category factors",
	}
	cmd.AddCommand(newGroupSetCmd())
	cmd.AddCommand(newGroupDeleteCmd())
	cmd.AddCommand(newGroupSuggestCmd())
	cmd.AddCommand(newGroupCategoriesCmd())
	return cmd
}

// inWriterTx runs fn with a writer inside one transaction.
func inWriterTx(cmd *cobra.Command, fn func(ctx context.Context, w *services.Writer) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	w := a.writer()
	return composables.InTx(a.context(ctx), func(txCtx context.Context) error {
		return fn(txCtx, w)
	})
}

func groupErr(err error) error {
	var verr validator.ValidationErrors
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrGroupNotFound), errors.Is(err, services.ErrNoDataIDs):
		return withCode(exitValidation, err)
	case errors.As(err, &verr):
		return withCode(exitValidation, err)
	default:
		var ce *cliError
		if errors.As(err, &ce) {
			return err
		}
		return withCode(exitDBWrite, err)
	}
}

func newGroupSetCmd() *cobra.Command {
	var (
		groupID int64
		dataIDs []int64
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Make the given columns the exact members of a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(dataIDs) == 0 {
				return withCode(exitUsage, fmt.Errorf("--data-ids is required"))
			}
			err := inWriterTx(cmd, func(ctx context.Context, w *services.Writer) error {
				var (
					mc  *services.MappingColumn
					err error
				)
				if groupID > 0 {
					mc, err = services.NewMappingColumnFromGroup(ctx, w, groupID)
				} else {
					mc, err = services.NewMappingColumn(ctx, w, dataIDs)
				}
				if err != nil {
					return err
				}
				if err := mc.GenMGroup(ctx, dataIDs); err != nil {
					return err
				}
				return writeJSONLine(cmd.OutOrStdout(), map[string]any{
					"group_id":    mc.Group.ID,
					"name":        mc.Group.Names.EN,
					"members":     mc.Members,
					"last_factor": mc.Group.LastFactor,
				})
			})
			return groupErr(err)
		},
	}
	cmd.Flags().Int64Var(&groupID, "group-id", 0, "Existing group id; omitted to find or create one")
	cmd.Flags().Int64SliceVar(&dataIDs, "data-ids", nil, "m_data ids of the members (required)")
	return cmd
}

func newGroupDeleteCmd() *cobra.Command {
	var groupID int64
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Dissolve a column group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if groupID <= 0 {
				return withCode(exitUsage, fmt.Errorf("--group-id must be positive"))
			}
			err := inWriterTx(cmd, func(ctx context.Context, w *services.Writer) error {
				return services.DeleteColumnGroup(ctx, w, groupID)
			})
			return groupErr(err)
		},
	}
	cmd.Flags().Int64Var(&groupID, "group-id", 0, "Group id (required)")
	_ = cmd.MarkFlagRequired("group-id")
	return cmd
}

func newGroupSuggestCmd() *cobra.Command {
	var processID int64
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Propose column groups among the columns of a process",
		RunE: func(cmd *cobra.Command, args []string) error {
			if processID <= 0 {
				return withCode(exitUsage, fmt.Errorf("--process-id must be positive"))
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			suggestions, err := services.SuggestColumnGroups(a.context(ctx), a.store, processID)
			if err != nil {
				return withCode(exitDB, err)
			}
			for _, s := range suggestions {
				if err := writeJSONLine(cmd.OutOrStdout(), s); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&processID, "process-id", 0, "m_process id (required)")
	_ = cmd.MarkFlagRequired("process-id")
	return cmd
}

func newGroupCategoriesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Apply a hand-edited factor assignment from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cg services.CategoryGroup
			if err := readJSONFile(file, &cg); err != nil {
				return err
			}
			err := inWriterTx(cmd, func(ctx context.Context, w *services.Writer) error {
				return services.ApplyCategoryGroup(ctx, w, cg)
			})
			return groupErr(err)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file holding the category group (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
