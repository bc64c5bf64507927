package embedding

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/custsim/internal/config"
)

// Provider names accepted in embedding.provider.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// New builds the embedding pipeline for cfg: provider, then retries, then contract validation.
// When the ONNX model cannot be loaded it falls back to MockEmbedder and logs a warning.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := newProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	retrying := NewRetryEmbedder(base, cfg.MaxRetries, cfg.RetryBaseDelay,
		WithRetryLogger(logger),
		WithAttemptTimeout(cfg.Timeout),
		WithMaxRetryDelay(cfg.RetryMaxDelay),
	)
	return NewValidatingEmbedder(retrying, cfg.Dimensions), nil
}

func newProvider(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAIEmbedder(OpenAIOptions{
			APIKey:            apiKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestDimensions: cfg.RequestDimensions,
			BatchSize:         cfg.BatchSize,
			Concurrency:       cfg.Concurrency,
			CacheSize:         cfg.CacheSize,
		})
	case ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	case ProviderONNX, "":
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err != nil {
			logger.Warn("onnx embedder unavailable, using mock embedder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			return NewMockEmbedder(cfg.Dimensions), nil
		}
		return onnx, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, openai, mock)", cfg.Provider)
	}
}
