package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/fiscal-engine/datatable"
	"github.com/warp/fiscal-engine/engine"
	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/params"
)

// simulateOptions holds flags of the simulate command.
type simulateOptions struct {
	Compute []string
	Date    string
	Params  string
	Reform  bool
}

// simulateResult is the JSON output shape.
type simulateResult struct {
	Date       string               `json:"date"`
	Results    map[string][]any     `json:"results"`
	Baseline   map[string][]any     `json:"baseline,omitempty"`
	Difference map[string][]float64 `json:"difference,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Compute variables over a scenario population",
		Long: `Load a YAML scenario, feed it into a fresh simulation and compute
the requested variables under the bundled legislation.

With --reform the scenario runs under the reform legislation and the
output adds baseline values and per-member differences. With --params
the actual law is replaced by a legislation file.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Compute, "compute", "c", nil, "variables to compute (required)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "evaluation date (YYYY-MM-DD), overrides the scenario's")
	cmd.Flags().StringVar(&opts.Params, "params", "", "legislation YAML file replacing the bundled actual law")
	cmd.Flags().BoolVar(&opts.Reform, "reform", false, "evaluate under the reform legislation, with baseline")
	cmd.MarkFlagRequired("compute")

	return cmd
}

func runSimulate(rootOpts *RootOptions, opts *simulateOptions, scenarioPath string, cmd *cobra.Command) error {
	if opts.Reform && opts.Params != "" {
		return fmt.Errorf("--reform and --params are mutually exclusive")
	}

	sc, err := datatable.LoadScenarioFile(scenarioPath)
	if err != nil {
		return err
	}

	date, err := evaluationDate(opts.Date, sc)
	if err != nil {
		return err
	}

	f, err := factory.New()
	if err != nil {
		return err
	}
	sim, err := buildSimulation(f, opts, date)
	if err != nil {
		return err
	}
	if err := sc.Apply(sim); err != nil {
		return err
	}

	result := simulateResult{
		Date:    date.Format("2006-01-02"),
		Results: make(map[string][]any, len(opts.Compute)),
	}
	var baseline *engine.Simulation
	if opts.Reform {
		baseline = sim.BaselineFork()
		result.Baseline = make(map[string][]any, len(opts.Compute))
		result.Difference = make(map[string][]float64, len(opts.Compute))
	}

	for _, name := range opts.Compute {
		vec, err := sim.Compute(name)
		if err != nil {
			return fmt.Errorf("compute %q: %w", name, err)
		}
		result.Results[name] = flatten(vec)

		if baseline == nil {
			continue
		}
		base, err := baseline.Compute(name)
		if err != nil {
			return fmt.Errorf("compute baseline %q: %w", name, err)
		}
		result.Baseline[name] = flatten(base)
		if vec.Kind() == engine.KindDate {
			// Dates have no numeric view, so no difference column.
			continue
		}
		diff, err := engine.Difference(vec, base)
		if err != nil {
			return fmt.Errorf("diff %q against baseline: %w", name, err)
		}
		result.Difference[name] = diff
	}

	return writeResult(rootOpts, cmd, opts, result)
}

func buildSimulation(f *factory.Factory, opts *simulateOptions, date time.Time) (*engine.Simulation, error) {
	if opts.Reform {
		return f.NewReformSimulation(date)
	}
	if opts.Params == "" {
		return f.NewSimulation(date)
	}
	provider, err := params.LoadFile(opts.Params)
	if err != nil {
		return nil, err
	}
	law, err := provider.CompactLegislation(date)
	if err != nil {
		return nil, err
	}
	return engine.NewSimulation(f.Registry(), date, law, nil), nil
}

// evaluationDate prefers the flag, then the scenario's own date.
func evaluationDate(flag string, sc *datatable.Scenario) (time.Time, error) {
	if flag != "" {
		t, err := time.ParseInLocation("2006-01-02", flag, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("--date %q: %w", flag, err)
		}
		return t, nil
	}
	date, ok, err := sc.EvaluationDate()
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("scenario has no date; pass --date")
	}
	return date, nil
}

func flatten(vec engine.Vector) []any {
	out := make([]any, vec.Len())
	for i := range out {
		switch x := vec.At(i).(type) {
		case time.Time:
			out[i] = x.Format("2006-01-02")
		default:
			out[i] = x
		}
	}
	return out
}

func writeResult(rootOpts *RootOptions, cmd *cobra.Command, opts *simulateOptions, result simulateResult) error {
	if rootOpts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Evaluation date: %s\n", result.Date)
	for _, name := range opts.Compute {
		fmt.Fprintf(out, "%s: %v\n", name, result.Results[name])
		if opts.Reform {
			fmt.Fprintf(out, "  baseline:   %v\n", result.Baseline[name])
			fmt.Fprintf(out, "  difference: %v\n", result.Difference[name])
		}
	}
	return nil
}
