// Package similarity compares image embeddings and aggregates directory scores.
package similarity

import (
	"errors"
	"math"

	"simbench/types"
)

var (
	// ErrDimensionMismatch is returned when two embeddings differ in length
	ErrDimensionMismatch = errors.New("embedding dimensions differ")

	// ErrInsufficientImages is returned when a directory has no image to compare
	// against its reference
	ErrInsufficientImages = errors.New("at least two images are required")
)

// Func computes the similarity between two embeddings
type Func func(a, b types.Embedding) (float64, error)

// CosineSimilarity returns the normalized dot product of a and b in [-1, 1].
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b types.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}

	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, dot/denom)), nil
}
