// Package search implements the customer similarity index and customer-context composition.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/custsim/internal/embedding"
	"github.com/hyperjump/custsim/internal/models"
	"github.com/hyperjump/custsim/internal/vector"
)

// DefaultContextPeers is the number of similar customers returned in a customer context.
const DefaultContextPeers = 3

// Index is an append-only store of customer records and their embeddings that answers
// exact k-nearest-neighbour queries. records[i] always corresponds to vector i.
type Index struct {
	embedder  embedding.Embedder
	vectors   *vector.MemoryIndex
	records   []*models.CustomerRecord
	firstByID map[string]int
	peers     int
	logger    *zap.Logger
	mu        sync.RWMutex
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLogger sets a logger for ingestion diagnostics.
func WithLogger(l *zap.Logger) IndexOption {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// WithContextPeers sets how many similar customers GetContext returns.
func WithContextPeers(n int) IndexOption {
	return func(ix *Index) {
		if n > 0 {
			ix.peers = n
		}
	}
}

// NewIndex creates an empty index whose dimension is the embedder's output dimension.
func NewIndex(embedder embedding.Embedder, opts ...IndexOption) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", models.ErrInvalidArgument)
	}
	vecs, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	ix := &Index{
		embedder:  embedder,
		vectors:   vecs,
		records:   make([]*models.CustomerRecord, 0),
		firstByID: make(map[string]int),
		peers:     DefaultContextPeers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// AddResult summarizes a committed batch.
type AddResult struct {
	Added int
	// DuplicateIDs lists customer IDs in the batch that were already present, or repeated
	// within the batch. Lookups keep resolving to the first occurrence.
	DuplicateIDs []string
}

// Add ingests records. See AddBatch.
func (ix *Index) Add(ctx context.Context, records []*models.CustomerRecord) error {
	_, err := ix.AddBatch(ctx, records)
	return err
}

// AddBatch serializes records, embeds them in one batch call, and appends every
// (record, vector) pair in input order. Either all records are committed or none are.
// An empty batch is a no-op.
func (ix *Index) AddBatch(ctx context.Context, records []*models.CustomerRecord) (*AddResult, error) {
	if len(records) == 0 {
		return &AddResult{}, nil
	}
	texts, err := embedding.SerializeAll(records)
	if err != nil {
		return nil, err
	}
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, asEmbeddingError(err)
	}
	if len(vecs) != len(records) {
		return nil, fmt.Errorf("%w: got %d vectors for %d records", models.ErrEmbedding, len(vecs), len(records))
	}

	owned := make([]*models.CustomerRecord, len(records))
	ids := make([]string, len(records))
	for i, r := range records {
		owned[i] = r.Clone()
		ids[i] = r.CustomerID
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.vectors.Add(ctx, ids, vecs); err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
		}
		return nil, err
	}
	base := len(ix.records)
	result := &AddResult{Added: len(owned)}
	for i, r := range owned {
		ix.records = append(ix.records, r)
		if _, seen := ix.firstByID[r.CustomerID]; seen {
			result.DuplicateIDs = append(result.DuplicateIDs, r.CustomerID)
			continue
		}
		ix.firstByID[r.CustomerID] = base + i
	}
	if len(result.DuplicateIDs) > 0 {
		ix.logger.Warn("duplicate customer ids ingested; lookups use the first occurrence",
			zap.Strings("customer_ids", result.DuplicateIDs))
	}
	ix.logger.Debug("customers added", zap.Int("count", len(owned)), zap.Int("size", len(ix.records)))
	return result, nil
}

// Search returns the min(k, Size()) stored records nearest to query by L2 distance,
// nearest first, ties in insertion order.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]*models.CustomerRecord, error) {
	results, err := ix.searchVector(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return customersOf(results), nil
}

// SearchByRecord embeds record and searches for its nearest neighbours.
// The record does not need to be stored.
func (ix *Index) SearchByRecord(ctx context.Context, record *models.CustomerRecord, k int) ([]*models.CustomerRecord, error) {
	results, err := ix.searchRecord(ctx, record, k)
	if err != nil {
		return nil, err
	}
	return customersOf(results), nil
}

// SearchByText embeds free text and searches for its nearest neighbours.
func (ix *Index) SearchByText(ctx context.Context, text string, k int) ([]*models.CustomerRecord, error) {
	results, err := ix.searchText(ctx, text, k)
	if err != nil {
		return nil, err
	}
	return customersOf(results), nil
}

// Query runs a validated SearchQuery and returns ranked results with distances.
func (ix *Index) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	var (
		results []*models.SearchResult
		err     error
	)
	switch {
	case len(q.Vector) > 0:
		results, err = ix.searchVector(ctx, q.Vector, q.Limit)
	case q.Customer != nil:
		results, err = ix.searchRecord(ctx, q.Customer, q.Limit)
	default:
		results, err = ix.searchText(ctx, q.Query, q.Limit)
	}
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// Lookup returns the first stored record with the given customer ID.
func (ix *Index) Lookup(customerID string) (*models.CustomerRecord, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	pos, ok := ix.firstByID[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", models.ErrNotFound, customerID)
	}
	return ix.records[pos].Clone(), nil
}

// Records returns copies of all stored records in insertion order.
func (ix *Index) Records() []*models.CustomerRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*models.CustomerRecord, len(ix.records))
	for i, r := range ix.records {
		out[i] = r.Clone()
	}
	return out
}

// Size returns the number of stored records.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Customers returns the number of distinct customer IDs stored.
func (ix *Index) Customers() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.firstByID)
}

// Dimensions returns the fixed vector dimension.
func (ix *Index) Dimensions() int {
	return ix.vectors.Dimensions()
}

func (ix *Index) searchVector(ctx context.Context, query []float32, k int) ([]*models.SearchResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	hits, err := ix.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]*models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = &models.SearchResult{
			Customer: ix.records[h.Position].Clone(),
			Distance: h.Distance,
			Rank:     i + 1,
		}
	}
	return results, nil
}

func (ix *Index) searchRecord(ctx context.Context, record *models.CustomerRecord, k int) ([]*models.SearchResult, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	text, err := embedding.Serialize(record)
	if err != nil {
		return nil, err
	}
	return ix.searchEmbedded(ctx, text, k)
}

func (ix *Index) searchText(ctx context.Context, text string, k int) ([]*models.SearchResult, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", models.ErrInvalidArgument)
	}
	return ix.searchEmbedded(ctx, text, k)
}

func (ix *Index) searchEmbedded(ctx context.Context, text string, k int) ([]*models.SearchResult, error) {
	// Nothing to compare against, so skip the embedding call.
	if ix.Size() == 0 {
		return []*models.SearchResult{}, nil
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, asEmbeddingError(err)
	}
	if len(vec) != ix.Dimensions() {
		return nil, fmt.Errorf("%w: got dimension %d, expected %d", models.ErrEmbedding, len(vec), ix.Dimensions())
	}
	return ix.searchVector(ctx, vec, k)
}

func checkK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	return nil
}

func asEmbeddingError(err error) error {
	if errors.Is(err, models.ErrEmbedding) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrEmbedding, err)
}

func customersOf(results []*models.SearchResult) []*models.CustomerRecord {
	out := make([]*models.CustomerRecord, len(results))
	for i, r := range results {
		out[i] = r.Customer
	}
	return out
}
