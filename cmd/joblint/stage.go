package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/joblint/internal/decode"
	"github.com/rendis/joblint/internal/store"
	"github.com/rendis/joblint/pkg/schema"
)

func newStageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Manage the local stage registry",
		Long: `Manage the registry of stages that jobs may run without declaring them.
lint and graph consult it with --registry, and serve always does.

Examples:
  joblint stage add notify --steps notify-steps.yml
  joblint stage add deploy --version 2.1.0 --description "Roll out to production"
  joblint stage list
  joblint stage rm deploy --version 2.1.0`,
	}
	cmd.AddCommand(
		newStageAddCommand(a),
		newStageListCommand(a),
		newStageRemoveCommand(a),
	)
	return cmd
}

func newStageAddCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a stage, replacing the same name and version if present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, _ := cmd.Flags().GetString("version")
			description, _ := cmd.Flags().GetString("description")
			stepsPath, _ := cmd.Flags().GetString("steps")

			st := &store.Stage{Name: args[0], Version: version, Description: description}
			if stepsPath != "" {
				steps, err := readSteps(stepsPath)
				if err != nil {
					return err
				}
				st.Steps = steps
			}
			return a.withStore(cmd.Context(), func(ctx context.Context, reg store.Store) error {
				if err := reg.RegisterStage(ctx, st); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", st)
				return nil
			})
		},
	}
	cmd.Flags().String("version", "", "Stage version (default: "+store.DefaultStageVersion+")")
	cmd.Flags().String("description", "", "What the stage does")
	cmd.Flags().String("steps", "", "YAML or JSON file holding the stage's list of steps")
	return cmd
}

// readSteps loads a steps file and checks it holds a list.
func readSteps(path string) (json.RawMessage, error) {
	doc, err := decode.File(path)
	if err != nil {
		return nil, err
	}
	if doc.Kind() != schema.KindSequence {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "steps must be a list, got a %s", doc.Kind()).WithSource(path)
	}
	return json.Marshal(doc)
}

func newStageListCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered stages, newest version first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			return a.withStore(cmd.Context(), func(ctx context.Context, reg store.Store) error {
				stages, err := reg.ListStages(ctx, store.StageFilter{Name: name, Limit: limit})
				if err != nil {
					return err
				}
				return writeStages(cmd.OutOrStdout(), stages, asJSON)
			})
		},
	}
	cmd.Flags().String("name", "", "Only list versions of this stage")
	cmd.Flags().Int("limit", 0, "Maximum number of stages to list")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}

func writeStages(out io.Writer, stages []*store.Stage, asJSON bool) error {
	if asJSON {
		if stages == nil {
			stages = []*store.Stage{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stages)
	}
	if len(stages) == 0 {
		_, err := fmt.Fprintln(out, "no stages registered")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tUPDATED\tDESCRIPTION")
	for _, st := range stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Name, st.Version, st.UpdatedAt.Format("2006-01-02 15:04"), st.Description)
	}
	return tw.Flush()
}

func newStageRemoveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a stage from the registry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, _ := cmd.Flags().GetString("version")
			return a.withStore(cmd.Context(), func(ctx context.Context, reg store.Store) error {
				if err := reg.DeleteStage(ctx, args[0], version); err != nil {
					return err
				}
				if version == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "removed every version of %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s@%s\n", args[0], version)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("version", "", "Version to remove (default: every version)")
	return cmd
}

// withStore opens the registry for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}
