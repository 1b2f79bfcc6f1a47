package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"simbench/chart"
	"simbench/experiment"
	"simbench/logging"
	"simbench/signalhandler"
	"simbench/similarity"
	"simbench/types"
	"simbench/utils"
	"simbench/viewer"
)

var runCmd = &cobra.Command{
	Use:   "run [CONDITION...]",
	Short: "Score every model under each condition and chart the results",
	Long: `Run aggregates <root>/<trial>/<model>/<condition> for both trials of every
configured model, prints the per-directory scores and a result table, then
draws a grouped bar chart per condition.

Examples:
  simbench run                              # Fixed, Increment and Random
  simbench run Increment Random             # Selected conditions in order
  simbench run --no-display --save-dir out  # Write charts instead of showing them
  simbench run Fixed --axis Fixed=0.9:1:0.01`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("root", "", "experiment root directory (default from config)")
	runCmd.Flags().String("save-dir", "", "also write each chart as PNG into this directory")
	runCmd.Flags().Bool("no-display", false, "do not open a chart window")
	runCmd.Flags().Bool("legend", false, "draw a legend for the two trials")
	runCmd.Flags().StringArray("axis", nil, "y axis override CONDITION=min:max:step (repeatable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("root")
	saveDir, _ := cmd.Flags().GetString("save-dir")
	noDisplay, _ := cmd.Flags().GetBool("no-display")
	legend, _ := cmd.Flags().GetBool("legend")
	axisSpecs, _ := cmd.Flags().GetStringArray("axis")

	if root == "" {
		root = cfg.Experiment.Root
	}

	conditions, err := selectConditions(args)
	if err != nil {
		return err
	}
	overrides, err := parseAxisOverrides(axisSpecs)
	if err != nil {
		return err
	}
	conditions, err = applyAxisOverrides(conditions, overrides)
	if err != nil {
		return err
	}

	ctx, cancel := signalhandler.Context(cmd.Context())
	defer cancel()

	s, err := openSession(cmd.OutOrStdout(), false)
	if err != nil {
		return err
	}
	defer s.Close()

	trials := cfg.TrialNames()
	agg := similarity.NewAggregator(s.pipeline, similarity.WithObserver(s.reporter))
	collector := experiment.NewCollector(agg, experiment.Layout{Root: root, Trials: trials}, s.store)
	show := chartViewer(noDisplay, saveDir)

	for _, cond := range conditions {
		logging.LogInfo("collecting %s under %s", cond.Name, root)

		if _, err := collector.Collect(ctx, cfg.Experiment.Models, cond.Name); err != nil {
			return err
		}
		results, err := s.store.ConditionResults(ctx, cond.Name)
		if err != nil {
			return err
		}
		s.reporter.PrintCondition(cond, trials, results)

		if show == nil {
			continue
		}
		png, err := chart.Render(results, cfg.Experiment.Models, chart.Options{
			Title:        cond.Title,
			Axis:         cond.Axis,
			SeriesLabels: trials,
			Legend:       legend || cfg.Chart.Legend,
			Width:        vg.Length(cfg.Chart.Width) * vg.Inch,
			Height:       vg.Length(cfg.Chart.Height) * vg.Inch,
		})
		if err != nil {
			return fmt.Errorf("%s chart: %w", cond.Name, err)
		}
		if err := show.Show(cond.Title, png); err != nil {
			return err
		}
	}

	stats, err := s.store.GetSessionStats(ctx)
	if err != nil {
		return err
	}
	s.reporter.PrintSessionStats(stats)
	return nil
}

// selectConditions resolves condition names against the config, keeping the
// order given on the command line
func selectConditions(names []string) ([]types.Condition, error) {
	if len(names) == 0 {
		return append([]types.Condition(nil), cfg.Experiment.Conditions...), nil
	}

	conditions := make([]types.Condition, 0, len(names))
	for _, name := range names {
		cond, ok := cfg.Condition(name)
		if !ok {
			return nil, fmt.Errorf("unknown condition %q (configured: %s)", name, strings.Join(cfg.ConditionNames(), ", "))
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// parseAxisOverrides parses CONDITION=min:max:step flags
func parseAxisOverrides(values []string) (map[string]types.Axis, error) {
	overrides := make(map[string]types.Axis, len(values))
	for _, s := range values {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --axis %q: expected CONDITION=min:max:step", s)
		}
		axis, err := utils.ParseAxisRange(value)
		if err != nil {
			return nil, err
		}
		overrides[strings.ToLower(name)] = axis
	}
	return overrides, nil
}

func applyAxisOverrides(conditions []types.Condition, overrides map[string]types.Axis) ([]types.Condition, error) {
	used := 0
	for i, cond := range conditions {
		if axis, ok := overrides[strings.ToLower(cond.Name)]; ok {
			conditions[i].Axis = axis
			used++
		}
	}
	if used != len(overrides) {
		return nil, fmt.Errorf("--axis names a condition that is not being run")
	}
	return conditions, nil
}

// chartViewer returns nil when charts are neither shown nor saved
func chartViewer(noDisplay bool, saveDir string) viewer.Viewer {
	var viewers viewer.Multi
	if saveDir != "" {
		viewers = append(viewers, viewer.FileSink{Dir: saveDir})
	}
	if !noDisplay {
		viewers = append(viewers, viewer.Window{})
	}
	if len(viewers) == 0 {
		return nil
	}
	return viewers
}
