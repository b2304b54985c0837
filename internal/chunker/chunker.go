// Package chunker splits document text into overlapping fixed-size windows
// for embedding and retrieval. Splitting is pure and deterministic; the
// ingestion pipeline owns decoding and normalization.
package chunker

import "strings"

// Default window parameters. Tuned for short institutional documents
// (placement notices, eligibility criteria); overridable via config.
const (
	DefaultSize      = 1000
	DefaultOverlap   = 200
	DefaultMaxChunks = 2000
)

// Options controls window size, overlap between consecutive windows, and
// the hard cap on produced chunks.
type Options struct {
	Size      int // window width in characters; <=0 uses DefaultSize
	Overlap   int // clamped to [0, Size-1] so the window always advances
	MaxChunks int // hard cap; remaining text is silently dropped
}

// Split slides a window of opts.Size characters over text, advancing by
// Size-Overlap each step. Windows are measured in runes, never bytes, so
// multi-byte input is never cut mid-character. Each slice is trimmed; empty
// slices are skipped. Production stops when the window would start at or
// past the end of the text, or after MaxChunks windows. Empty input yields
// nil.
func Split(text string, opts Options) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	maxChunks := opts.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}

	// Overlap >= size would stall the window; clamp to guarantee progress.
	overlap := opts.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	stride := size - overlap

	runes := []rune(text)

	var chunks []string
	for start := 0; start < len(runes) && len(chunks) < maxChunks; start += stride {
		end := min(start+size, len(runes))
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}
