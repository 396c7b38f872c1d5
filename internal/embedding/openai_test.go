package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hyperjump/kotae/internal/apperr"
)

// newTestEmbedder returns an embedder pointed at a fake embeddings endpoint
// that returns a small fixed vector per input, plus a counter of requests served.
func newTestEmbedder(t *testing.T, opts ...OpenAIOption) (*OpenAIEmbedder, *int) {
	t.Helper()
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var body struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, len(body.Input))
		for i := range body.Input {
			data[i] = item{Object: "embedding", Index: i, Embedding: []float64{float64(i), 1, 2}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)

	e, err := NewOpenAIEmbedder("test-key", opts...)
	if err != nil {
		t.Fatal(err)
	}
	e.client = openai.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(srv.URL))
	return e, &requests
}

func TestNewOpenAIEmbedder_requestTimeout(t *testing.T) {
	e, err := NewOpenAIEmbedder("test-key", WithRequestTimeout(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if e.timeout != 30*time.Second {
		t.Errorf("timeout not applied: %v", e.timeout)
	}
}

func TestNewOpenAIEmbedder_missingKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("")
	if err == nil {
		t.Fatal("expected error for empty key")
	}
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestEmbedBatch(t *testing.T) {
	e, requests := newTestEmbedder(t)
	out, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(out))
	}
	if out[1][0] != 1 {
		t.Errorf("input order not preserved: %v", out[1])
	}
	if *requests != 1 {
		t.Errorf("expected 1 request, got %d", *requests)
	}
}

func TestEmbedBatch_batching(t *testing.T) {
	e, requests := newTestEmbedder(t, WithBatchSize(2))
	texts := []string{"a", "b", "c", "d", "e"}
	out, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 5 {
		t.Fatalf("expected 5 embeddings, got %d", len(out))
	}
	if *requests != 3 {
		t.Errorf("expected 3 requests for 5 inputs at batch size 2, got %d", *requests)
	}
}

func TestEmbedBatch_cacheOptIn(t *testing.T) {
	e, requests := newTestEmbedder(t, WithCache(NewEmbeddingCache(16)))
	ctx := context.Background()
	if _, err := e.Embed(ctx, "repeat me"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(ctx, "repeat me"); err != nil {
		t.Fatal(err)
	}
	if *requests != 1 {
		t.Errorf("expected cache to absorb second call, got %d requests", *requests)
	}
}

func TestEmbedBatch_noCacheByDefault(t *testing.T) {
	e, requests := newTestEmbedder(t)
	ctx := context.Background()
	if _, err := e.Embed(ctx, "repeat me"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(ctx, "repeat me"); err != nil {
		t.Fatal(err)
	}
	if *requests != 2 {
		t.Errorf("expected one request per call without a cache, got %d requests", *requests)
	}
}

func TestMockEmbedder_deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx := context.Background()
	a, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d", i)
		}
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions: got %d", e.Dimensions())
	}
}
