package experiment

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simbench/database"
	"simbench/similarity"
	"simbench/types"
)

type scriptedAggregator struct {
	means map[string]float64
	dirs  []string
	err   error
}

func (s *scriptedAggregator) MeanSimilarity(ctx context.Context, dir string) (types.DirectorySummary, error) {
	s.dirs = append(s.dirs, dir)
	if s.err != nil {
		return types.DirectorySummary{Dir: dir}, s.err
	}
	return types.DirectorySummary{
		Dir:    dir,
		Scores: []types.ImageScore{{Filename: "a.png", Similarity: 1, Reference: true}, {Filename: "b.png", Similarity: s.means[dir]}},
		Mean:   s.means[dir],
	}, nil
}

func TestLayoutDir(t *testing.T) {
	l := Layout{Root: "runs", Trials: DefaultTrials}
	assert.Equal(t, filepath.Join("runs", "Test 2", "sd 1.5", "Increment"), l.Dir(l.Trials[1], "sd 1.5", "Increment"))
}

func TestCollectVisitsModelsAndTrialsInOrder(t *testing.T) {
	layout := Layout{Root: "exp", Trials: DefaultTrials}
	agg := &scriptedAggregator{means: map[string]float64{
		layout.Dir("Test 1", "SDXL", "Fixed"): 0.95,
		layout.Dir("Test 2", "SDXL", "Fixed"): 0.90,
		layout.Dir("Test 1", "Flux", "Fixed"): 0.85,
		layout.Dir("Test 2", "Flux", "Fixed"): 0.80,
	}}

	results, err := NewCollector(agg, layout, nil).Collect(context.Background(), []string{"SDXL", "Flux"}, "Fixed")
	require.NoError(t, err)

	assert.Equal(t, []types.ModelResult{
		{Model: "SDXL", MeanT1: 0.95, MeanT2: 0.90},
		{Model: "Flux", MeanT1: 0.85, MeanT2: 0.80},
	}, results)
	assert.Equal(t, []string{
		layout.Dir("Test 1", "SDXL", "Fixed"),
		layout.Dir("Test 2", "SDXL", "Fixed"),
		layout.Dir("Test 1", "Flux", "Fixed"),
		layout.Dir("Test 2", "Flux", "Fixed"),
	}, agg.dirs)
}

func TestCollectStopsOnFirstError(t *testing.T) {
	boom := errors.New("missing directory")
	agg := &scriptedAggregator{err: boom}

	results, err := NewCollector(agg, Layout{Trials: DefaultTrials}, nil).Collect(context.Background(), []string{"a", "b"}, "Random")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, results)
	assert.Len(t, agg.dirs, 1)
	assert.Contains(t, err.Error(), "Test 1 a/Random")
}

func TestCollectRecordsSession(t *testing.T) {
	ctx := context.Background()
	db, err := database.InitDatabase(database.MemoryDSN)
	require.NoError(t, err)
	defer db.Close()
	store := database.NewStore(db)

	layout := Layout{Trials: DefaultTrials}
	agg := &scriptedAggregator{means: map[string]float64{
		layout.Dir("Test 1", "m", "Fixed"): 0.7,
		layout.Dir("Test 2", "m", "Fixed"): 0.6,
	}}

	_, err = NewCollector(agg, layout, store).Collect(ctx, []string{"m"}, "Fixed")
	require.NoError(t, err)

	stored, err := store.ConditionResults(ctx, "Fixed")
	require.NoError(t, err)
	assert.Equal(t, []types.ModelResult{{Model: "m", MeanT1: 0.7, MeanT2: 0.6}}, stored)

	stats, err := store.GetSessionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Directories)
	assert.Equal(t, 4, stats.Images)
}

// constSource gives every file of a directory the same vector except those
// named in overrides
type constSource struct {
	overrides map[string]types.Embedding
}

func (c constSource) Vector(ctx context.Context, path string) (types.Embedding, error) {
	if v, ok := c.overrides[filepath.Base(path)]; ok {
		return v, nil
	}
	return types.Embedding{1, 0}, nil
}

func TestCollectWithRealAggregatorOnDisk(t *testing.T) {
	root := t.TempDir()
	layout := Layout{Root: root, Trials: DefaultTrials}
	for _, trial := range layout.Trials {
		dir := layout.Dir(trial, "sd 2.1", "Fixed")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for _, name := range []string{"0.png", "1.png", "2.png"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}
	}

	agg := similarity.NewAggregator(constSource{overrides: map[string]types.Embedding{"2.png": {0, 1}}})
	results, err := NewCollector(agg, layout, nil).Collect(context.Background(), []string{"sd 2.1"}, "Fixed")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, results[0].MeanT1, 1e-9)
	assert.InDelta(t, 0.5, results[0].MeanT2, 1e-9)

	_, err = NewCollector(agg, layout, nil).Collect(context.Background(), []string{"missing"}, "Fixed")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
