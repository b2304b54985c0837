// Package testutil provides shared fakes for tests: deterministic
// embedders, a scripted generator, and a silent logger. No fake touches
// the network.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync/atomic"
)

// StaticEmbedder produces deterministic unit vectors derived from a hash
// of the input text. Equal inputs embed equally; different inputs almost
// surely differ. Call counts are recorded so tests can assert the fast
// path never embeds.
type StaticEmbedder struct {
	dimension int
	calls     atomic.Int64
	err       error
}

// NewStaticEmbedder creates an embedder emitting vectors of the given
// dimension.
func NewStaticEmbedder(dimension int) *StaticEmbedder {
	return &StaticEmbedder{dimension: dimension}
}

// NewFailingEmbedder creates an embedder whose Embed always returns err.
func NewFailingEmbedder(err error) *StaticEmbedder {
	return &StaticEmbedder{dimension: 1, err: err}
}

// Embed returns a deterministic L2-normalized vector for text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}

	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, e.dimension)
	var norm float64
	for i := range vec {
		// Reuse hash bytes cyclically; offset by index so short dimensions
		// still vary per component.
		off := (i * 4) % (len(sum) - 4)
		bits := binary.BigEndian.Uint32(sum[off : off+4])
		v := float64(bits%2000)/1000 - 1 // [-1, 1)
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		norm = 1
	}
	inv := 1 / math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
	return vec, nil
}

// Dimension reports the fixed vector length.
func (e *StaticEmbedder) Dimension() int { return e.dimension }

// Calls returns how many times Embed was invoked.
func (e *StaticEmbedder) Calls() int64 { return e.calls.Load() }
