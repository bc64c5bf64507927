package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// OpenAIOptions configures an OpenAIEmbedder.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string // empty uses the OpenAI default
	Model   string
	// Dimensions is the expected vector length.
	Dimensions int
	// RequestDimensions sends Dimensions in the request; only newer models accept it.
	RequestDimensions bool
	BatchSize         int
	Concurrency       int
	CacheSize         int
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dimensions  int
	sendDims    bool
	batchSize   int
	concurrency int
	cache       *EmbeddingCache
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	if opts.Model == "" {
		return nil, errors.New("openai embedder: model is required")
	}
	if opts.Dimensions <= 0 {
		return nil, errors.New("openai embedder: dimensions must be positive")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		dimensions:  opts.Dimensions,
		sendDims:    opts.RequestDimensions,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		cache:       NewEmbeddingCache(opts.CacheSize),
	}, nil
}

// Embed makes one request for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	vecs, err := e.create(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vecs[0])
	return vecs[0], nil
}

// EmbedBatch embeds cache misses in sub-batches of BatchSize, running up to Concurrency
// requests at once. Results are placed by position so output order matches texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			out[i] = cached
			continue
		}
		missing = append(missing, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for start := 0; start < len(missing); start += e.batchSize {
		end := start + e.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		positions := missing[start:end]
		g.Go(func() error {
			batch := make([]string, len(positions))
			for j, pos := range positions {
				batch[j] = texts[pos]
			}
			vecs, err := e.create(gctx, batch)
			if err != nil {
				return err
			}
			for j, pos := range positions {
				out[pos] = vecs[j]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, pos := range missing {
		e.cache.Set(texts[pos], out[pos])
	}
	return out, nil
}

// create issues one embeddings request and orders the response by its index field.
func (e *OpenAIEmbedder) create(ctx context.Context, input []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(e.model),
	}
	if e.sendDims {
		req.Dimensions = e.dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("create embeddings: got %d embeddings for %d inputs", len(resp.Data), len(input))
	}
	vecs := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(input) {
			return nil, fmt.Errorf("create embeddings: response index %d out of range", d.Index)
		}
		if vecs[d.Index] != nil {
			return nil, fmt.Errorf("create embeddings: duplicate response index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
