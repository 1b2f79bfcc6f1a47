package cmd

import (
	"github.com/spf13/cobra"

	"simbench/signalhandler"
	"simbench/similarity"
)

var compareCmd = &cobra.Command{
	Use:   "compare DIR",
	Short: "Score a single image directory",
	Long: `Compare prints the similarity of every image in DIR to the reference image
and their mean. The reference is the first file in sorted order unless
--reference names another image.

Examples:
  simbench compare "Test 1/Flux/Fixed"
  simbench compare out/ --reference target.png`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().String("reference", "", "reference image (default: first file in DIR)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	reference, _ := cmd.Flags().GetString("reference")

	ctx, cancel := signalhandler.Context(cmd.Context())
	defer cancel()

	s, err := openSession(cmd.OutOrStdout(), false)
	if err != nil {
		return err
	}
	defer s.Close()

	agg := similarity.NewAggregator(s.pipeline, similarity.WithObserver(s.reporter))
	if reference != "" {
		_, err = agg.MeanSimilarityTo(ctx, args[0], reference)
	} else {
		_, err = agg.MeanSimilarity(ctx, args[0])
	}
	return err
}
