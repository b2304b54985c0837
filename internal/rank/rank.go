// Package rank scores stored chunks against a query embedding. Vectors are
// L2-normalized by the embedding provider, so plain dot product equals
// cosine similarity. Ranking is a full sort-and-slice over the candidate
// set; the store bounds the set size, so no index structure is needed at
// this scale.
package rank

import (
	"sort"

	"github.com/campushq/placemate/internal/store"
)

// SentinelScore is returned for degenerate input (mismatched lengths, empty
// vectors). It is below any real cosine value, so malformed stored records
// sort last instead of crashing retrieval.
const SentinelScore float32 = -1

// Scored pairs a chunk with its similarity to the query.
type Scored struct {
	Chunk store.Chunk
	Score float32
}

// Score computes the dot product of two unit vectors (cosine similarity).
// Degenerate input yields SentinelScore rather than an error.
func Score(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return SentinelScore
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// TopK ranks candidates by similarity to query, descending, and returns at
// most k results.
func TopK(query []float32, candidates []store.Chunk, k int) []Scored {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Chunk: c, Score: Score(query, c.Embedding)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
