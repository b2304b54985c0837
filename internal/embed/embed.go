// Package embed produces fixed-length L2-normalized embeddings for text.
//
// The production provider wraps the Gemini embedding API. Client
// construction is expensive and happens lazily on first use, guarded by
// singleflight so concurrent first callers share one initialization. A
// failed initialization is not cached: a later call retries, because the
// failure may be transient.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"
)

// ErrProviderUnavailable marks embedding-model initialization or inference
// failures. The caller must not fall back to zero vectors.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// DefaultModel is the Gemini embedding model used unless overridden.
// gemini-embedding-001 supports truncation to lower dimensions via
// OutputDimensionality (Matryoshka representation).
const DefaultModel = "gemini-embedding-001"

// DefaultDimension matches the vector(768) column in db/migrations.
const DefaultDimension int32 = 768

// Provider converts text into a fixed-length normalized vector.
type Provider interface {
	// Embed returns the embedding for text. The vector is L2-normalized,
	// so dot product between two embeddings equals cosine similarity.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension reports the fixed output vector length.
	Dimension() int
}

// Google is the Gemini-backed Provider. Safe for concurrent use.
type Google struct {
	apiKey    string
	model     string
	dimension int32
	logger    *slog.Logger

	flight singleflight.Group
	mu     sync.RWMutex
	client *genai.Client
}

// NewGoogle creates a Google provider. The genai client is not created
// until the first Embed call. model and dimension fall back to package
// defaults when zero.
func NewGoogle(apiKey, model string, dimension int32, logger *slog.Logger) *Google {
	if model == "" {
		model = DefaultModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Google{
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		logger:    logger,
	}
}

// Dimension reports the configured output vector length.
func (g *Google) Dimension() int {
	return int(g.dimension)
}

// Embed generates a normalized embedding for text.
func (g *Google) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	dim := g.dimension
	resp, err := client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding text: %w", ErrProviderUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrProviderUnavailable)
	}

	vec := resp.Embeddings[0].Values
	if len(vec) != int(g.dimension) {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrProviderUnavailable, len(vec), g.dimension)
	}

	// Truncated Gemini embeddings are not pre-normalized; normalize here so
	// the scorer's dot product is a true cosine.
	return Normalize(vec), nil
}

// getClient returns the shared genai client, creating it on first call.
// Concurrent first calls share one construction via singleflight; a failed
// construction is retried on the next call.
func (g *Google) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.RLock()
	client := g.client
	g.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	v, err, _ := g.flight.Do("init", func() (any, error) {
		if g.apiKey == "" {
			return nil, fmt.Errorf("%w: missing API key", ErrProviderUnavailable)
		}
		c, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: creating client: %w", ErrProviderUnavailable, err)
		}
		g.mu.Lock()
		g.client = c
		g.mu.Unlock()
		g.logger.Debug("embedding client initialized", "model", g.model, "dimension", g.dimension)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*genai.Client), nil
}

// Normalize scales v to unit length. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := 1 / math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
