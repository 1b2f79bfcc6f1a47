// Package embedder turns image files into feature vectors with a pretrained
// vision model.
package embedder

import (
	"context"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"simbench/logging"
	"simbench/types"
)

// Embedder maps a decoded RGB image to a fixed-length feature vector
type Embedder interface {
	Embed(ctx context.Context, img gocv.Mat) (types.Embedding, error)
	Name() string
	Close() error
}

// Loader decodes an image file into an RGB matrix
type Loader interface {
	LoadImage(path string) (gocv.Mat, error)
}

// Pipeline loads image files and embeds them, memoising vectors by content
type Pipeline struct {
	loader   Loader
	embedder Embedder
	cache    *Cache
}

// NewPipeline wires a loader and an embedder. cache may be nil.
func NewPipeline(loader Loader, embedder Embedder, cache *Cache) *Pipeline {
	return &Pipeline{
		loader:   loader,
		embedder: embedder,
		cache:    cache,
	}
}

// Vector returns the embedding of the image at path
func (p *Pipeline) Vector(ctx context.Context, path string) (types.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var key string
	if p.cache != nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read image: %w", err)
		}
		key = p.cache.Key(p.embedder.Name(), data)
		if vec, ok := p.cache.Get(key); ok {
			logging.DebugLog("embedding cache hit for %s", path)
			return vec, nil
		}
	}

	img, err := p.loader.LoadImage(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	vec, err := p.embedder.Embed(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("cannot embed %s with %s: %w", path, p.embedder.Name(), err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedder %s returned an empty vector for %s", p.embedder.Name(), path)
	}

	if p.cache != nil {
		p.cache.Add(key, vec)
	}
	return vec, nil
}

// Close releases the embedder
func (p *Pipeline) Close() error {
	return p.embedder.Close()
}
