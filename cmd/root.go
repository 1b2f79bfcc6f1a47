// Package cmd contains all CLI commands for simbench
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"simbench/config"
	"simbench/logging"
	"simbench/report"
)

var (
	cfgFile   string
	verbose   bool
	logFile   string
	colorFlag string
	cfg       *config.Config
	useColors bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "simbench",
	Short: "Image similarity benchmark for generative models",
	Long: `simbench measures how visually consistent the images produced by
generative models are. Every image directory is scored by the mean cosine
similarity between the embedding of its first image and every other image.

Expected layout under the experiment root:
  <trial>/<model>/<condition>/*.png

Example usage:
  simbench run                          # All conditions, chart per condition
  simbench run Fixed --no-display       # One condition, console output only
  simbench compare "Test 1/SDXL/Random" # Score a single directory
  simbench pair a.png b.png             # Similarity of two images`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The logger is closed on every path, including failed commands.
func Execute() error {
	defer logging.CloseLogger()
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .simbench.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write the log to this file")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto", "color output: auto, always, never")
}

// initConfig reads in config file and ENV variables and sets up logging
func initConfig() error {
	mode, err := report.ParseColorMode(colorFlag)
	if err != nil {
		return err
	}

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	file := cfg.Logging.File
	if logFile != "" {
		file = logFile
	}
	if err := logging.SetupLogger(logging.Options{Level: level, File: file, Console: os.Stderr}); err != nil {
		return err
	}

	useColors = report.ResolveColors(mode, cfg.Output.Colors)

	logging.DebugLog("configuration loaded: root=%s models=%v conditions=%v backend=%s",
		cfg.Experiment.Root, cfg.Experiment.Models, cfg.ConditionNames(), cfg.Embedder.Backend)
	return nil
}
