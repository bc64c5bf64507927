// Package keyword provides term lookup of customers by ID and history text.
package keyword

import (
	"context"

	"github.com/hyperjump/custsim/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword lookup operations over customer records.
type KeywordIndex interface {
	// IndexBatch indexes records. A customer ID that is already indexed keeps its first record.
	IndexBatch(ctx context.Context, records []*models.CustomerRecord) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// DocCount returns the number of distinct customers in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}
