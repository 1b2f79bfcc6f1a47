package embedder

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"simbench/types"
)

// Cache keeps recently computed embeddings keyed by model and file content
type Cache struct {
	entries *lru.Cache[string, types.Embedding]
}

// NewCache creates a cache holding at most size embeddings
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, types.Embedding](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Key derives the cache key for an image's raw bytes under a model
func (c *Cache) Key(model string, data []byte) string {
	sum := sha256.Sum256(data)
	return model + ":" + hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached embedding
func (c *Cache) Get(key string) (types.Embedding, bool) {
	vec, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return append(types.Embedding(nil), vec...), true
}

// Add stores a copy of vec
func (c *Cache) Add(key string, vec types.Embedding) {
	c.entries.Add(key, append(types.Embedding(nil), vec...))
}

// Len returns the number of cached embeddings
func (c *Cache) Len() int {
	return c.entries.Len()
}
