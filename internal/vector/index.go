// Package vector provides exact nearest-neighbour search over dense vectors.
package vector

import "context"

// VectorIndex is an append-only vector store with k-nearest-neighbour search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single nearest-neighbour hit.
type VectorResult struct {
	// Position is the insertion order of the vector, starting at 0.
	Position int
	ID       string
	// Distance is the Euclidean (L2) distance to the query.
	Distance float64
}
