package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"simbench/report"
	"simbench/signalhandler"
	"simbench/similarity"
)

var pairCmd = &cobra.Command{
	Use:   "pair IMAGE IMAGE",
	Short: "Print the cosine similarity of two images",
	Args:  cobra.ExactArgs(2),
	RunE:  runPair,
}

func init() {
	rootCmd.AddCommand(pairCmd)
}

func runPair(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalhandler.Context(cmd.Context())
	defer cancel()

	s, err := openSession(cmd.OutOrStdout(), true)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.pipeline.Vector(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	b, err := s.pipeline.Vector(ctx, args[1])
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}

	sim, err := similarity.CosineSimilarity(a, b)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.FormatScore(sim))
	return nil
}
