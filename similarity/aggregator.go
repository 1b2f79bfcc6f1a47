package similarity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"simbench/types"
)

// VectorSource produces the embedding for an image file
type VectorSource interface {
	Vector(ctx context.Context, path string) (types.Embedding, error)
}

// Observer receives scores as a directory is aggregated
type Observer interface {
	ImageScored(dir string, score types.ImageScore)
	DirectoryScored(summary types.DirectorySummary)
}

// Aggregator averages the similarity of every image in a directory to a reference image
type Aggregator struct {
	source   VectorSource
	compare  Func
	observer Observer
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithObserver attaches an observer that is told about every score
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		a.observer = o
	}
}

// WithComparator replaces cosine similarity
func WithComparator(f Func) Option {
	return func(a *Aggregator) {
		if f != nil {
			a.compare = f
		}
	}
}

// NewAggregator creates an aggregator reading embeddings from source
func NewAggregator(source VectorSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:  source,
		compare: CosineSimilarity,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ListImages returns the regular, non-hidden files of dir sorted by name
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// MeanSimilarity uses the lexicographically first image of dir as the reference
// and returns the mean similarity of every other image to it.
func (a *Aggregator) MeanSimilarity(ctx context.Context, dir string) (types.DirectorySummary, error) {
	names, err := ListImages(dir)
	if err != nil {
		return types.DirectorySummary{Dir: dir}, err
	}
	if len(names) < 2 {
		return types.DirectorySummary{Dir: dir}, fmt.Errorf("%s has %d image(s): %w", dir, len(names), ErrInsufficientImages)
	}
	return a.aggregate(ctx, dir, filepath.Join(dir, names[0]), names)
}

// MeanSimilarityTo compares every image of dir to an explicit reference image.
// The reference may live inside dir, in which case it is not compared to itself.
func (a *Aggregator) MeanSimilarityTo(ctx context.Context, dir, reference string) (types.DirectorySummary, error) {
	names, err := ListImages(dir)
	if err != nil {
		return types.DirectorySummary{Dir: dir}, err
	}

	compared := len(names)
	if inDir(dir, reference, names) {
		compared--
	}
	if compared < 1 {
		return types.DirectorySummary{Dir: dir}, fmt.Errorf("%s has no image to compare with %s: %w", dir, reference, ErrInsufficientImages)
	}
	return a.aggregate(ctx, dir, reference, names)
}

// inDir reports whether reference is one of the listed files of dir
func inDir(dir, reference string, names []string) bool {
	if absPath(filepath.Dir(reference)) != absPath(dir) {
		return false
	}
	i := sort.SearchStrings(names, filepath.Base(reference))
	return i < len(names) && names[i] == filepath.Base(reference)
}

// absPath resolves p against the working directory so relative and absolute
// spellings of one directory compare equal
func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

func (a *Aggregator) aggregate(ctx context.Context, dir, reference string, names []string) (types.DirectorySummary, error) {
	summary := types.DirectorySummary{
		Dir:       dir,
		Reference: filepath.Base(reference),
	}

	refVec, err := a.source.Vector(ctx, reference)
	if err != nil {
		return summary, fmt.Errorf("reference %s: %w", reference, err)
	}

	refInDir := inDir(dir, reference, names)
	if !refInDir {
		a.record(&summary, types.ImageScore{Filename: summary.Reference, Similarity: 1.0, Reference: true})
	}

	var sum float64
	var count int
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if refInDir && name == summary.Reference {
			a.record(&summary, types.ImageScore{Filename: name, Similarity: 1.0, Reference: true})
			continue
		}

		path := filepath.Join(dir, name)
		vec, err := a.source.Vector(ctx, path)
		if err != nil {
			return summary, fmt.Errorf("image %s: %w", path, err)
		}

		sim, err := a.compare(refVec, vec)
		if err != nil {
			return summary, fmt.Errorf("comparing %s with %s: %w", path, reference, err)
		}

		sum += sim
		count++
		a.record(&summary, types.ImageScore{Filename: name, Similarity: sim})
	}

	summary.Mean = sum / float64(count)
	if a.observer != nil {
		a.observer.DirectoryScored(summary)
	}
	return summary, nil
}

func (a *Aggregator) record(summary *types.DirectorySummary, score types.ImageScore) {
	summary.Scores = append(summary.Scores, score)
	if a.observer != nil {
		a.observer.ImageScored(summary.Dir, score)
	}
}
