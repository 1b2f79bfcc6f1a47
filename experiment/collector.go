// Package experiment runs the similarity aggregator over every model and trial
// of an experiment condition.
package experiment

import (
	"context"
	"fmt"
	"path/filepath"

	"simbench/database"
	"simbench/logging"
	"simbench/types"
)

// DefaultTrials are the two experiment folders every model is evaluated in
var DefaultTrials = [2]string{"Test 1", "Test 2"}

// Layout maps a trial, model and condition to an image directory
type Layout struct {
	Root   string
	Trials [2]string
}

// Dir returns <root>/<trial>/<model>/<condition>
func (l Layout) Dir(trial, model, condition string) string {
	return filepath.Join(l.Root, trial, model, condition)
}

// Aggregator computes the mean similarity of one directory
type Aggregator interface {
	MeanSimilarity(ctx context.Context, dir string) (types.DirectorySummary, error)
}

// ResultStore records what a collection pass produced
type ResultStore interface {
	SaveDirectory(ctx context.Context, key database.RunKey, summary types.DirectorySummary) error
	SaveResult(ctx context.Context, condition string, position int, result types.ModelResult) error
}

// Collector gathers per-model mean similarities for a condition
type Collector struct {
	agg    Aggregator
	layout Layout
	store  ResultStore
}

// NewCollector creates a collector. store may be nil.
func NewCollector(agg Aggregator, layout Layout, store ResultStore) *Collector {
	return &Collector{
		agg:    agg,
		layout: layout,
		store:  store,
	}
}

// Collect aggregates both trials of every model under condition, in model order.
// The first failure aborts the pass.
func (c *Collector) Collect(ctx context.Context, models []string, condition string) ([]types.ModelResult, error) {
	results := make([]types.ModelResult, 0, len(models))

	for i, model := range models {
		var means [2]float64
		for t, trial := range c.layout.Trials {
			dir := c.layout.Dir(trial, model, condition)
			logging.DebugLog("aggregating %s", dir)

			summary, err := c.agg.MeanSimilarity(ctx, dir)
			if err != nil {
				return nil, fmt.Errorf("%s %s/%s: %w", trial, model, condition, err)
			}
			means[t] = summary.Mean

			if c.store != nil {
				key := database.RunKey{Condition: condition, Model: model, Trial: trial}
				if err := c.store.SaveDirectory(ctx, key, summary); err != nil {
					return nil, err
				}
			}
		}

		result := types.ModelResult{Model: model, MeanT1: means[0], MeanT2: means[1]}
		if c.store != nil {
			if err := c.store.SaveResult(ctx, condition, i, result); err != nil {
				return nil, err
			}
		}
		results = append(results, result)
	}

	return results, nil
}
