package embedding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const defaultMaxRetryDelay = 5 * time.Second

// RetryEmbedder retries transient provider failures with capped exponential backoff.
type RetryEmbedder struct {
	inner          Embedder
	maxRetries     uint64
	baseDelay      time.Duration
	maxDelay       time.Duration
	attemptTimeout time.Duration
	logger         *zap.Logger
}

// RetryOption configures a RetryEmbedder.
type RetryOption func(*RetryEmbedder)

// WithRetryLogger logs each retried failure at warn level.
func WithRetryLogger(l *zap.Logger) RetryOption {
	return func(r *RetryEmbedder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAttemptTimeout bounds every provider call; zero means no per-attempt deadline.
func WithAttemptTimeout(d time.Duration) RetryOption {
	return func(r *RetryEmbedder) { r.attemptTimeout = d }
}

// WithMaxRetryDelay caps the backoff between attempts.
func WithMaxRetryDelay(d time.Duration) RetryOption {
	return func(r *RetryEmbedder) {
		if d > 0 {
			r.maxDelay = d
		}
	}
}

// NewRetryEmbedder wraps inner. maxRetries is the number of retries after the first attempt.
func NewRetryEmbedder(inner Embedder, maxRetries int, baseDelay time.Duration, opts ...RetryOption) *RetryEmbedder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	r := &RetryEmbedder{
		inner:      inner,
		maxRetries: uint64(maxRetries),
		baseDelay:  baseDelay,
		maxDelay:   defaultMaxRetryDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Embed calls the wrapped embedder with retries.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, "embed", func(ctx context.Context) error {
		v, err := r.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// EmbedBatch calls the wrapped embedder with retries; a retry repeats the whole batch.
func (r *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, "embed_batch", func(ctx context.Context) error {
		v, err := r.inner.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Dimensions returns the wrapped embedder's dimension.
func (r *RetryEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (r *RetryEmbedder) Close() error {
	return r.inner.Close()
}

func (r *RetryEmbedder) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := retry.NewExponential(r.baseDelay)
	b = retry.WithCappedDuration(r.maxDelay, b)
	b = retry.WithMaxRetries(r.maxRetries, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		callCtx := ctx
		if r.attemptTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err == nil {
			return nil
		}
		// The caller's own cancellation is final; a per-attempt timeout is not.
		if ctx.Err() != nil || !ShouldRetry(err) {
			return err
		}
		r.logger.Warn("embedding call failed, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return retry.RetryableError(err)
	})
}

// ShouldRetry reports whether an embedding provider error is worth retrying.
// Cancellation and client errors other than 408 and 429 are permanent.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, errONNXUnavailable) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 400 && code < 500:
		return false
	default:
		return true
	}
}
