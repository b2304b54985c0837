// Package gateway wraps the Gemini chat-completion API behind two
// operations: resolving a usable model identifier and generating text from
// a prompt.
//
// Model resolution is best-effort service discovery: the provider's model
// roster changes over time, so the gateway lists available models, filters
// to those supporting free-form generation, and picks the first match from
// a hard-coded preference order. When listing fails or nothing matches, a
// hard default keeps the system degrading instead of failing. The resolved
// identifier is cached for the process lifetime; a restart re-resolves.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"
)

// ErrGenerationFailed marks gateway failures: a missing API key
// (configuration, permanent until fixed) or a remote call error
// (transient). The gateway itself never retries.
var ErrGenerationFailed = errors.New("generation failed")

// preferredModels is the probe order, fastest and cheapest first. Tried
// against the provider's live roster; entries absent from the roster are
// skipped.
var preferredModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-2.5-flash",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

// FallbackModel is used when capability listing fails or no preferred
// model is available.
const FallbackModel = "gemini-2.0-flash"

// DefaultTimeout bounds a single generation call; the model API is the
// highest-latency external dependency in the request path.
const DefaultTimeout = 60 * time.Second

// generateAction is the capability a model must support to serve chat.
const generateAction = "generateContent"

// Gateway resolves a model identifier and generates text. Safe for
// concurrent use.
type Gateway struct {
	apiKey   string
	override string // explicit model name from config; skips probing
	timeout  time.Duration
	logger   *slog.Logger

	flight singleflight.Group
	mu     sync.RWMutex
	client *genai.Client
	model  string // resolved identifier, write-once
}

// New creates a Gateway. override, when non-empty, pins the model and
// disables capability probing. timeout <= 0 uses DefaultTimeout.
func New(apiKey, override string, timeout time.Duration, logger *slog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		apiKey:   apiKey,
		override: override,
		timeout:  timeout,
		logger:   logger,
	}
}

// ResolveModel returns the model identifier to use for generation,
// resolving and caching it on first call. Resolution never fails once the
// client exists: listing errors degrade to FallbackModel.
func (g *Gateway) ResolveModel(ctx context.Context) (string, error) {
	if g.override != "" {
		return g.override, nil
	}

	g.mu.RLock()
	model := g.model
	g.mu.RUnlock()
	if model != "" {
		return model, nil
	}

	v, err, _ := g.flight.Do("resolve", func() (any, error) {
		client, err := g.getClient(ctx)
		if err != nil {
			return "", err
		}

		resolved := g.probeModels(ctx, client)
		g.mu.Lock()
		g.model = resolved
		g.mu.Unlock()
		g.logger.Info("resolved generative model", "model", resolved)
		return resolved, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// probeModels lists the provider roster and picks the first preferred
// model that supports generation. Any failure falls back to FallbackModel.
func (g *Gateway) probeModels(ctx context.Context, client *genai.Client) string {
	supported := make(map[string]bool)
	for model, err := range client.Models.All(ctx) {
		if err != nil {
			g.logger.Warn("model listing failed, using fallback", "error", err, "fallback", FallbackModel)
			return FallbackModel
		}
		if !slices.Contains(model.SupportedActions, generateAction) {
			continue
		}
		// Roster names come prefixed, e.g. "models/gemini-2.0-flash".
		supported[strings.TrimPrefix(model.Name, "models/")] = true
	}

	resolved, ok := pickModel(supported)
	if !ok {
		g.logger.Warn("no preferred model in roster, using fallback",
			"roster_size", len(supported), "fallback", FallbackModel)
	}
	return resolved
}

// pickModel returns the first preferred model present in the roster, or
// FallbackModel (and false) when none is.
func pickModel(supported map[string]bool) (string, bool) {
	for _, name := range preferredModels {
		if supported[name] {
			return name, true
		}
	}
	return FallbackModel, false
}

// Generate produces a completion for prompt using the resolved model. The
// call is bounded by the configured timeout; a timeout surfaces as
// ErrGenerationFailed.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	model, err := g.ResolveModel(ctx)
	if err != nil {
		return "", err
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := client.Models.GenerateContent(callCtx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: calling %s: %w", ErrGenerationFailed, model, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", ErrGenerationFailed, model)
	}
	return text, nil
}

// getClient returns the shared genai client, creating it on first use.
func (g *Gateway) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.RLock()
	client := g.client
	g.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	v, err, _ := g.flight.Do("client", func() (any, error) {
		if g.apiKey == "" {
			return nil, fmt.Errorf("%w: missing API key", ErrGenerationFailed)
		}
		c, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: creating client: %w", ErrGenerationFailed, err)
		}
		g.mu.Lock()
		g.client = c
		g.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*genai.Client), nil
}
