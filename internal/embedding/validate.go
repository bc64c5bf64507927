package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/custsim/internal/models"
)

// ValidatingEmbedder guarantees the Embedder contract: one vector per input, each of the
// configured dimension. Violations and provider failures are reported as models.ErrEmbedding.
// Vectors are never padded or truncated.
type ValidatingEmbedder struct {
	inner      Embedder
	dimensions int
}

// NewValidatingEmbedder wraps inner and enforces vectors of length dimensions.
func NewValidatingEmbedder(inner Embedder, dimensions int) *ValidatingEmbedder {
	return &ValidatingEmbedder{inner: inner, dimensions: dimensions}
}

// Embed embeds one text and checks its dimension.
func (v *ValidatingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := v.inner.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	if err := v.check(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds texts and checks the count and every dimension.
func (v *ValidatingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := v.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEmbedding, len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if err := v.check(vec); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return vecs, nil
}

func (v *ValidatingEmbedder) check(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", models.ErrEmbedding)
	}
	if len(vec) != v.dimensions {
		return fmt.Errorf("%w: got dimension %d, expected %d", models.ErrEmbedding, len(vec), v.dimensions)
	}
	return nil
}

// Dimensions returns the enforced dimension.
func (v *ValidatingEmbedder) Dimensions() int {
	return v.dimensions
}

// Close closes the wrapped embedder.
func (v *ValidatingEmbedder) Close() error {
	return v.inner.Close()
}
