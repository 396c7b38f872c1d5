package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/apperr"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// DefaultDimensions is the vector width of DefaultModel.
const DefaultDimensions = 1536

// DefaultBatchSize is the maximum number of inputs per embeddings request.
const DefaultBatchSize = 100

// OpenAIEmbedder produces embeddings through the OpenAI embeddings API.
// Caching is off unless a cache is supplied with WithCache; the persisted
// index is the only place embeddings are kept between runs.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	batchSize  int
	timeout    time.Duration
	cache      *EmbeddingCache
	logger     *zap.Logger
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithModel overrides the embedding model.
func WithModel(model string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithDimensions overrides the requested vector width.
func WithDimensions(d int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if d > 0 {
			e.dimensions = d
		}
	}
}

// WithBatchSize overrides the per-request input limit.
func WithBatchSize(n int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithCache enables in-memory caching of embeddings by text. No cache is
// used by default.
func WithCache(c *EmbeddingCache) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.cache = c }
}

// WithEmbedderLogger sets a logger for batch progress.
func WithEmbedderLogger(l *zap.Logger) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.logger = l }
}

// WithRequestTimeout sets the per-request timeout. Zero keeps the SDK
// default.
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.timeout = d }
}

// NewOpenAIEmbedder returns an embedder backed by the OpenAI API. apiKey must
// be non-empty; a missing key is a configuration error so callers can report
// it before any corpus work starts.
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.KindConfiguration, "OpenAI API key is not configured")
	}
	e := &OpenAIEmbedder{
		model:      DefaultModel,
		dimensions: DefaultDimensions,
		batchSize:  DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if e.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(e.timeout))
	}
	e.client = openai.NewClient(reqOpts...)
	return e, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in request batches of at most batchSize inputs,
// preserving input order. Cached texts are served locally.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Collect cache misses, remembering their positions.
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if e.cache != nil {
			if emb, ok := e.cache.Get(text); ok {
				out[i] = emb
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missTexts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch := missTexts[start:end]

		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: openai.Int(int64(e.dimensions)),
		})
		if err != nil {
			return nil, e.wrapAPIError(err)
		}
		if len(resp.Data) != len(batch) {
			return nil, apperr.Newf(apperr.KindProvider,
				"embeddings API returned %d vectors for %d inputs", len(resp.Data), len(batch))
		}
		for j, d := range resp.Data {
			emb := make([]float32, len(d.Embedding))
			for k, v := range d.Embedding {
				emb[k] = float32(v)
			}
			out[missIdx[start+j]] = emb
			if e.cache != nil {
				e.cache.Set(batch[j], emb)
			}
		}
		if e.logger != nil {
			e.logger.Debug("embedded batch",
				zap.Int("inputs", len(batch)),
				zap.Int("done", end),
				zap.Int("total", len(missTexts)))
		}
	}
	return out, nil
}

// Dimensions returns the requested vector width.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

// wrapAPIError maps API failures onto the application error taxonomy.
// Authentication failures surface as configuration errors so the caller can
// tell a bad key apart from a transient provider fault.
func (e *OpenAIEmbedder) wrapAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return apperr.Wrap(apperr.KindConfiguration, fmt.Sprintf("OpenAI rejected the API key (status %d)", apiErr.StatusCode), err)
		}
		return apperr.Wrap(apperr.KindProvider, fmt.Sprintf("embeddings API error (status %d)", apiErr.StatusCode), err)
	}
	return apperr.Wrap(apperr.KindProvider, "embeddings request failed", err)
}
