package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/fiscal-engine/factory"
)

// NewVariablesCommand creates the variables command.
func NewVariablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "variables",
		Short: "List the registered variables",
		Long: `List every variable of the model registry with its kind, entity
and whether a formula computes it or it is survey input.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVariables(rootOpts, cmd)
		},
	}
}

func runVariables(opts *RootOptions, cmd *cobra.Command) error {
	f, err := factory.New()
	if err != nil {
		return err
	}
	schemas := f.Registry().Schemas()

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(schemas)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tENTITY\tSOURCE\tLABEL")
	for _, s := range schemas {
		source := "input"
		if s.Formula {
			source = "formula"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Type, s.Entity, source, s.Label)
	}
	return w.Flush()
}
