// Package ingest turns uploaded documents into stored knowledge chunks.
//
// Per file the pipeline runs Decode → Normalize → Chunk → EmbedEach →
// StoreEach. Embedding and storage are intentionally sequential per chunk
// to cap peak load on the embedding provider and the database; each chunk
// is persisted as soon as it is embedded, so partial ingestion on failure
// is visible and the chunks already stored stay useful.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/campushq/placemate/internal/chunker"
	"github.com/campushq/placemate/internal/embed"
	"github.com/campushq/placemate/internal/store"
)

// Limits bound per-file resource usage. Zero values fall back to defaults.
type Limits struct {
	MaxDocChars      int // documents longer than this are silently truncated
	ChunkSize        int
	ChunkOverlap     int
	MaxChunksPerFile int
}

// Default ceilings. Oversized documents are truncated, not rejected: the
// goal is bounding worst-case memory and time per request, and a truncated
// prefix is still useful knowledge.
const (
	DefaultMaxDocChars = 200000
)

// File is one uploaded document.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// ChunkSaver persists embedded chunks. Defined here, by the consumer;
// *store.Store satisfies it.
type ChunkSaver interface {
	Save(ctx context.Context, c store.Chunk) (uuid.UUID, error)
}

// Pipeline orchestrates ingestion. Safe for concurrent use across
// requests; within one call, work is sequential.
type Pipeline struct {
	provider embed.Provider
	chunks   ChunkSaver
	limits   Limits
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(provider embed.Provider, chunks ChunkSaver, limits Limits, logger *slog.Logger) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if chunks == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	if limits.MaxDocChars <= 0 {
		limits.MaxDocChars = DefaultMaxDocChars
	}
	if limits.ChunkSize <= 0 {
		limits.ChunkSize = chunker.DefaultSize
	}
	if limits.ChunkOverlap <= 0 {
		limits.ChunkOverlap = chunker.DefaultOverlap
	}
	if limits.MaxChunksPerFile <= 0 {
		limits.MaxChunksPerFile = chunker.DefaultMaxChunks
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{provider: provider, chunks: chunks, limits: limits, logger: logger}, nil
}

// Actor identifies the uploader; recorded in chunk metadata.
type Actor struct {
	ID   string
	Role string
}

// Files ingests a batch. Files are processed independently: one file's
// decode failure skips that file without aborting the rest. Returns the
// total chunk count stored across all files.
func (p *Pipeline) Files(ctx context.Context, files []File, actor Actor) (int, error) {
	total := 0
	for _, f := range files {
		n, err := p.File(ctx, f, actor)
		total += n
		if err != nil {
			// Embedding or storage failures are fatal for the batch; the
			// chunks already stored remain. Decode failures never reach
			// here; File absorbs them.
			return total, err
		}
	}
	return total, nil
}

// File ingests one document and returns the number of chunks stored.
// Unsupported or undecodable files yield (0, nil): excluded from
// ingestion, not an error.
func (p *Pipeline) File(ctx context.Context, f File, actor Actor) (int, error) {
	text, ok := p.decode(f)
	if !ok {
		return 0, nil
	}

	text = normalize(text, p.limits.MaxDocChars)
	pieces := chunker.Split(text, chunker.Options{
		Size:      p.limits.ChunkSize,
		Overlap:   p.limits.ChunkOverlap,
		MaxChunks: p.limits.MaxChunksPerFile,
	})

	stored := 0
	for i, piece := range pieces {
		vec, err := p.provider.Embed(ctx, piece)
		if err != nil {
			return stored, fmt.Errorf("embedding chunk %d of %q: %w", i, f.Name, err)
		}

		_, err = p.chunks.Save(ctx, store.Chunk{
			Content:   piece,
			Embedding: vec,
			Metadata: store.Metadata{
				SourceFilename: f.Name,
				MIMEType:       f.MIMEType,
				SizeBytes:      f.Size,
				ChunkIndex:     i,
				UploaderID:     actor.ID,
				UploaderRole:   actor.Role,
				Visibility:     store.VisibilityAll,
			},
			CreatedAt: time.Now(),
		})
		if err != nil {
			return stored, fmt.Errorf("storing chunk %d of %q: %w", i, f.Name, err)
		}
		stored++
	}

	p.logger.Info("ingested file", "name", f.Name, "mime", f.MIMEType, "chunks", stored)
	return stored, nil
}

// decode extracts plain text from the upload. Supported: PDF and plain
// text. Anything else is skipped.
func (p *Pipeline) decode(f File) (string, bool) {
	switch {
	case isPDF(f):
		text, err := extractPDFText(f.Data)
		if err != nil {
			p.logger.Warn("skipping undecodable PDF", "name", f.Name, "error", err)
			return "", false
		}
		return text, true
	case isPlainText(f):
		return string(f.Data), true
	default:
		p.logger.Debug("skipping unsupported file type", "name", f.Name, "mime", f.MIMEType)
		return "", false
	}
}

func isPDF(f File) bool {
	return f.MIMEType == "application/pdf" || strings.HasSuffix(strings.ToLower(f.Name), ".pdf")
}

func isPlainText(f File) bool {
	if strings.HasPrefix(f.MIMEType, "text/") {
		return true
	}
	lower := strings.ToLower(f.Name)
	return strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md")
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalize collapses whitespace runs to single spaces, trims, and
// truncates to maxChars. The cut is measured in runes so multi-byte text
// is never truncated mid-character.
func normalize(text string, maxChars int) string {
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		runes := []rune(text)
		text = string(runes[:maxChars])
	}
	return text
}
