package similarity

import (
	"math"
	"math/rand"
	"testing"

	"simbench/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		sim, err := CosineSimilarity(types.Embedding{1, 2, 3}, types.Embedding{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 1.0, sim)
	})

	t.Run("orthogonal", func(t *testing.T) {
		sim, err := CosineSimilarity(types.Embedding{1, 0}, types.Embedding{0, 1})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("opposite", func(t *testing.T) {
		sim, err := CosineSimilarity(types.Embedding{1, 1}, types.Embedding{-2, -2})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, sim, 1e-9)
	})

	t.Run("scale invariant", func(t *testing.T) {
		sim, err := CosineSimilarity(types.Embedding{1, 2}, types.Embedding{10, 20})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("zero vector", func(t *testing.T) {
		sim, err := CosineSimilarity(types.Embedding{0, 0}, types.Embedding{1, 2})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := CosineSimilarity(types.Embedding{1, 0, 0}, types.Embedding{1, 0})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestCosineSimilaritySymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := make(types.Embedding, 16)
		b := make(types.Embedding, 16)
		for j := range a {
			a[j] = float32(rng.NormFloat64())
			b[j] = float32(rng.NormFloat64())
		}

		ab, err := CosineSimilarity(a, b)
		require.NoError(t, err)
		ba, err := CosineSimilarity(b, a)
		require.NoError(t, err)

		assert.Equal(t, ab, ba)
		assert.True(t, ab >= -1 && ab <= 1, "similarity %f out of range", ab)
		assert.False(t, math.IsNaN(ab))
	}
}
