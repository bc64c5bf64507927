package vector

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hyperjump/custsim/internal/models"
	"github.com/hyperjump/custsim/pkg/utils"
)

// MemoryIndex is an in-memory vector index using exact brute-force L2 search.
// Vectors are only ever appended; positions are stable for the life of the index.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	mu         sync.RWMutex
}

var _ VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", models.ErrInvalidArgument)
	}
	return &MemoryIndex{
		dimensions: dimensions,
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
	}, nil
}

// Add appends vectors with the given IDs. Every vector is checked before any is stored,
// so a failed Add leaves the index unchanged.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", models.ErrInvalidArgument, len(ids), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				models.ErrDimensionMismatch, i, len(v), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the min(k, Size()) vectors closest to query by L2 distance, nearest first.
// Equal distances are ordered by insertion position. An empty index yields no results.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has dimension %d, expected %d",
			models.ErrDimensionMismatch, len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.vectors) == 0 {
		return []*VectorResult{}, nil
	}
	if k > len(m.vectors) {
		k = len(m.vectors)
	}

	// Max-heap of the k best so far; the root is the worst kept candidate.
	h := make(candidateHeap, 0, k)
	for pos, vec := range m.vectors {
		c := candidate{pos: pos, dist: utils.SquaredL2(query, vec)}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if c.before(h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	results := make([]*VectorResult, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		c := heap.Pop(&h).(candidate)
		results[i] = &VectorResult{Position: c.pos, ID: m.ids[c.pos], Distance: math.Sqrt(c.dist)}
	}
	return results, nil
}

// Vector returns a copy of the vector stored at pos.
func (m *MemoryIndex) Vector(pos int) ([]float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos < 0 || pos >= len(m.vectors) {
		return nil, false
	}
	out := make([]float32, m.dimensions)
	copy(out, m.vectors[pos])
	return out, true
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Dimensions returns the fixed vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

type candidate struct {
	pos  int
	dist float64
}

// before reports whether c ranks ahead of o: smaller distance, then earlier position.
func (c candidate) before(o candidate) bool {
	if c.dist != o.dist {
		return c.dist < o.dist
	}
	return c.pos < o.pos
}

type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[j].before(h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
