// Package chat orchestrates the retrieval-augmented answer pipeline.
//
// A query first gets a chance at deterministic intent routing. If no
// intent claims it, the orchestrator embeds the question, scans recent
// chunks, ranks them in process, and either grounds the model on the best
// matches or falls back to a general answer when nothing scores above the
// similarity floor. Citations are always built structurally from the
// retrieval results, never parsed out of model text.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/campushq/placemate/internal/rank"
	"github.com/campushq/placemate/internal/store"
	"github.com/campushq/placemate/internal/telemetry"
)

// ErrEmptyMessage rejects blank queries before any provider call.
var ErrEmptyMessage = errors.New("chat: message is empty")

const (
	// DefaultTopK is how many ranked chunks ground the answer.
	DefaultTopK = 6

	// DefaultMinSimilarity is the score floor below which the answer is
	// not grounded on retrieved chunks.
	DefaultMinSimilarity float32 = 0.25

	// DefaultScanLimit bounds the newest-first candidate scan.
	DefaultScanLimit = store.DefaultScanLimit
)

// uploadHint is appended whenever retrieval found nothing relevant enough
// to ground the answer.
const uploadHint = "Tip: I could not find a relevant uploaded placement document for this. " +
	"An admin can upload placement brochures, policies, or notices to improve my answers."

// Query is one user turn.
type Query struct {
	Message   string
	ActorID   string
	ActorRole string
}

// Citation names a source document that grounded the answer. Index is the
// 1-based position in the citations list.
type Citation struct {
	Index    int     `json:"index"`
	Filename string  `json:"filename"`
	Score    float32 `json:"score"`
}

// Reply is the orchestrator's answer.
type Reply struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	TopScore  float32    `json:"topScore"`
	Grounded  bool       `json:"grounded"`
	Routed    bool       `json:"routed"`
}

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Scanner returns recent chunks with the given visibility.
type Scanner interface {
	ScanRecent(ctx context.Context, visibility string, limit int) ([]store.Chunk, error)
}

// Generator produces model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IntentRouter gets first refusal on every query.
type IntentRouter interface {
	Route(ctx context.Context, actorID, role, message string) (answer string, handled bool, err error)
}

// Options tune the orchestrator. Zero values take the defaults above.
type Options struct {
	TopK          int
	MinSimilarity float32
	ScanLimit     int
}

// Orchestrator answers chat queries. Safe for concurrent use.
type Orchestrator struct {
	embedder  Embedder
	scanner   Scanner
	generator Generator
	router    IntentRouter
	emitter   telemetry.Emitter
	logger    *slog.Logger

	topK          int
	minSimilarity float32
	scanLimit     int
}

// New creates an Orchestrator. The router and emitter may be nil; the other
// collaborators are required.
func New(embedder Embedder, scanner Scanner, generator Generator, router IntentRouter, emitter telemetry.Emitter, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if emitter == nil {
		emitter = telemetry.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = DefaultMinSimilarity
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = DefaultScanLimit
	}
	return &Orchestrator{
		embedder:      embedder,
		scanner:       scanner,
		generator:     generator,
		router:        router,
		emitter:       emitter,
		logger:        logger,
		topK:          opts.TopK,
		minSimilarity: opts.MinSimilarity,
		scanLimit:     opts.ScanLimit,
	}, nil
}

// Answer runs the full pipeline for one query.
func (o *Orchestrator) Answer(ctx context.Context, q Query) (*Reply, error) {
	message := strings.TrimSpace(q.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	if o.router != nil {
		answer, handled, err := o.router.Route(ctx, q.ActorID, q.ActorRole, message)
		if err != nil {
			return nil, fmt.Errorf("routing intent: %w", err)
		}
		if handled {
			o.emitter.Emit(ctx, telemetry.Event{
				Name:      telemetry.EventChatRouted,
				ActorID:   q.ActorID,
				ActorRole: q.ActorRole,
			})
			return &Reply{Answer: answer, Citations: []Citation{}, TopScore: rank.SentinelScore, Routed: true}, nil
		}
	}

	queryVec, err := o.embedder.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := o.scanner.ScanRecent(ctx, store.VisibilityAll, o.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("scanning chunks: %w", err)
	}

	top := rank.TopK(queryVec, candidates, o.topK)
	topScore := rank.SentinelScore
	if len(top) > 0 {
		topScore = top[0].Score
	}
	grounded := topScore >= o.minSimilarity

	var prompt string
	if grounded {
		prompt = groundedPrompt(message, top)
	} else {
		prompt = fallbackPrompt(message)
	}

	answer, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	answer = stripInlineCitations(answer)

	reply := &Reply{
		Answer:    answer,
		Citations: []Citation{},
		TopScore:  topScore,
		Grounded:  grounded,
	}
	if grounded {
		reply.Citations = buildCitations(top)
	} else {
		reply.Answer = strings.TrimSpace(answer + "\n\n" + uploadHint)
		o.emitter.Emit(ctx, telemetry.Event{
			Name:      telemetry.EventChatFallback,
			ActorID:   q.ActorID,
			ActorRole: q.ActorRole,
			Fields:    map[string]any{"candidates": len(candidates)},
		})
	}

	o.emitter.Emit(ctx, telemetry.Event{
		Name:      telemetry.EventChatAnswered,
		ActorID:   q.ActorID,
		ActorRole: q.ActorRole,
		Fields: map[string]any{
			"grounded":  grounded,
			"top_score": topScore,
			"citations": len(reply.Citations),
		},
	})
	return reply, nil
}

// groundedPrompt assembles the context block from ranked chunks.
func groundedPrompt(message string, top []rank.Scored) string {
	var b strings.Builder
	b.WriteString("You are PlaceMate, the placement assistant for a college placement cell.\n")
	b.WriteString("Answer the student's question using ONLY the context below.\n")
	b.WriteString("If the context does not contain the answer, say so plainly.\n")
	b.WriteString("Do not cite sources inline; sources are attached separately.\n\n")
	b.WriteString("Context:\n")
	for i, s := range top {
		fmt.Fprintf(&b, "--- excerpt %d (from %s) ---\n%s\n", i+1, s.Chunk.Metadata.SourceFilename, s.Chunk.Content)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(message)
	return b.String()
}

// fallbackPrompt answers from general knowledge with a disclaimer.
func fallbackPrompt(message string) string {
	var b strings.Builder
	b.WriteString("You are PlaceMate, the placement assistant for a college placement cell.\n")
	b.WriteString("No uploaded placement document matched this question.\n")
	b.WriteString("Answer briefly from general knowledge about campus placements, and make\n")
	b.WriteString("clear the answer is not based on this college's official documents.\n\n")
	b.WriteString("Question: ")
	b.WriteString(message)
	return b.String()
}

// inlineCitation matches bracketed source markers the model may emit
// despite instructions, e.g. [S1], [Source 2], (S3).
var (
	inlineCitation = regexp.MustCompile(`\s*[\[(](?:S|Source\s*)\d+[\])]`)
	sourcesBlock   = regexp.MustCompile(`(?is)\n+sources?:\s*\n.*$`)
)

// stripInlineCitations removes model-emitted citation markers and any
// trailing "Sources:" block so structural citations are the only ones.
func stripInlineCitations(answer string) string {
	answer = sourcesBlock.ReplaceAllString(answer, "")
	answer = inlineCitation.ReplaceAllString(answer, "")
	return strings.TrimSpace(answer)
}

// buildCitations dedupes by source filename, keeping the best score.
// Input is already sorted descending by score.
func buildCitations(top []rank.Scored) []Citation {
	seen := make(map[string]bool, len(top))
	citations := make([]Citation, 0, len(top))
	for _, s := range top {
		source := s.Chunk.Metadata.SourceFilename
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		citations = append(citations, Citation{
			Index:    len(citations) + 1,
			Filename: source,
			Score:    roundScore(s.Score),
		})
	}
	return citations
}

// roundScore rounds to three decimals for stable presentation.
func roundScore(s float32) float32 {
	return float32(math.Round(float64(s)*1000) / 1000)
}
