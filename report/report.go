// Package report prints similarity scores and result tables to the console.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"

	"simbench/database"
	"simbench/logging"
	"simbench/types"
)

// ColorMode represents color output mode
type ColorMode int

const (
	// ColorAuto enables colors based on environment (default)
	ColorAuto ColorMode = iota
	// ColorAlways forces colors on
	ColorAlways
	// ColorNever forces colors off
	ColorNever
)

// ParseColorMode parses a string into a ColorMode
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors determines whether to use colors based on mode and environment
func ResolveColors(mode ColorMode, configColors bool) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return configColors
	}
}

// Reporter prints directory scores as they are produced
type Reporter struct {
	out       io.Writer
	useColors bool
	quiet     bool
	started   time.Time
}

// NewReporter creates a reporter writing to out
func NewReporter(out io.Writer, useColors, quiet bool) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		out:       out,
		useColors: useColors,
		quiet:     quiet,
		started:   time.Now(),
	}
}

// ImageScored logs one image score
func (r *Reporter) ImageScored(dir string, score types.ImageScore) {
	logging.LogImageScored(filepath.Join(dir, score.Filename), score.Similarity, score.Reference)
}

// DirectoryScored prints the directory, every score in order and the mean
func (r *Reporter) DirectoryScored(summary types.DirectorySummary) {
	if r.quiet {
		return
	}

	r.heading(summary.Dir)
	for _, score := range summary.Scores {
		fmt.Fprintln(r.out, FormatScore(score.Similarity))
	}
	r.mean(summary.Mean)
}

// PrintCondition prints the result table of one condition
func (r *Reporter) PrintCondition(condition types.Condition, trials [2]string, results []types.ModelResult) {
	if r.quiet {
		return
	}

	fmt.Fprintln(r.out)
	r.heading(condition.Title)
	table := NewTableWithWriter(r.out, []string{"Model", trials[0], trials[1]})
	for _, res := range results {
		table.AddRow([]string{res.Model, FormatScore(res.MeanT1), FormatScore(res.MeanT2)})
	}
	table.Render()
}

// PrintSessionStats prints the final summary of a run
func (r *Reporter) PrintSessionStats(stats *database.SessionStats) {
	if r.quiet || stats == nil {
		return
	}

	elapsed := time.Since(r.started).Round(time.Millisecond)
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Scored %d images in %d directories (%d comparisons) in %v.\n",
		stats.Images, stats.Directories, stats.Compared, elapsed)
	fmt.Fprintf(r.out, "Model results: %d\n", stats.Results)
}

// FormatScore prints a similarity in its shortest exact form
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (r *Reporter) heading(text string) {
	if r.useColors {
		color.New(color.FgCyan, color.Bold).Fprintln(r.out, text)
		return
	}
	fmt.Fprintln(r.out, text)
}

func (r *Reporter) mean(v float64) {
	if r.useColors {
		color.New(color.FgGreen).Fprintf(r.out, "mean: %s\n", FormatScore(v))
		return
	}
	fmt.Fprintf(r.out, "mean: %s\n", FormatScore(v))
}
