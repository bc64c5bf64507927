package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingsData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// newEmbeddingsServer answers /embeddings with [len(text), index] vectors in reverse order.
func newEmbeddingsServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		requests.Add(1)
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]embeddingsData, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, embeddingsData{
				Object:    "embedding",
				Embedding: []float32{float32(len(req.Input[i])), float32(i)},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	var requests atomic.Int32
	srv := newEmbeddingsServer(t, &requests)
	defer srv.Close()

	emb, err := NewOpenAIEmbedder(OpenAIOptions{
		APIKey: "test", BaseURL: srv.URL, Model: "text-embedding-3-small",
		Dimensions: 2, BatchSize: 2, Concurrency: 3, CacheSize: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := emb.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, text := range texts {
		if vecs[i][0] != float32(len(text)) {
			t.Errorf("vecs[%d] = %v, want first component %d", i, vecs[i], len(text))
		}
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3 sub-batches", got)
	}

	// Cached texts are not requested again.
	if _, err := emb.EmbedBatch(context.Background(), []string{"a", "bb"}); err != nil {
		t.Fatal(err)
	}
	if _, err := emb.Embed(context.Background(), "ccc"); err != nil {
		t.Fatal(err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests after cached calls = %d, want 3", got)
	}
}

func TestOpenAIEmbedder_ServerErrorIsRetried(t *testing.T) {
	var requests atomic.Int32
	inner := newEmbeddingsServer(t, &requests)
	defer inner.Close()

	var failed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failed.CompareAndSwap(false, true) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "m", Dimensions: 2})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRetryEmbedder(emb, 2, time.Millisecond)
	vec, err := r.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vec[0] != 5 {
		t.Errorf("vec = %v, want first component 5", vec)
	}
}

func TestOpenAIEmbedder_ClientErrorIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "m", Dimensions: 2})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRetryEmbedder(emb, 3, time.Millisecond)
	if _, err := r.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestNewOpenAIEmbedder_Validation(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIOptions{Dimensions: 2}); err == nil {
		t.Error("expected error for missing model")
	}
	if _, err := NewOpenAIEmbedder(OpenAIOptions{Model: "m"}); err == nil {
		t.Error("expected error for missing dimensions")
	}
}
