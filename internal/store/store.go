// Package store persists knowledge chunks in PostgreSQL with pgvector
// embeddings. The store is append-only: chunks are written once during
// ingestion and never updated or deleted. Retrieval is a bounded
// newest-first scan; relevance ranking happens in the rank package.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// ErrStorageFailed marks persistence-layer failures. Callers use errors.Is
// to map it to HTTP 500.
var ErrStorageFailed = errors.New("storage failed")

// VisibilityAll is the only visibility level currently written. The column
// exists so a later per-role restriction needs no schema change.
const VisibilityAll = "all"

// DefaultScanLimit bounds the retrieval candidate set. If the corpus grows
// past this, older chunks become unreachable, a deliberate scale ceiling
// for a single-institution knowledge base.
const DefaultScanLimit = 5000

// Metadata describes a chunk's provenance.
type Metadata struct {
	SourceFilename string `json:"source_filename"`
	MIMEType       string `json:"mime_type"`
	SizeBytes      int64  `json:"size_bytes"`
	ChunkIndex     int    `json:"chunk_index"`
	UploaderID     string `json:"uploader_id"`
	UploaderRole   string `json:"uploader_role"`
	Visibility     string `json:"visibility"`
}

// Chunk is a unit of retrievable knowledge: a bounded slice of a source
// document together with its embedding.
type Chunk struct {
	ID        uuid.UUID
	Content   string
	Embedding []float32
	Metadata  Metadata
	CreatedAt time.Time
}

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages chunk persistence. Safe for concurrent use.
type Store struct {
	db     querier
	logger *slog.Logger
}

// New creates a Store. db is typically a *pgxpool.Pool.
func New(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

const insertChunkSQL = `INSERT INTO chunks (id, content, embedding, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5)`

// Save appends one chunk. The embedding dimension must match the schema;
// a mismatch surfaces as a wrapped ErrStorageFailed from the driver.
func (s *Store) Save(ctx context.Context, c Chunk) (uuid.UUID, error) {
	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: marshaling metadata: %w", ErrStorageFailed, err)
	}

	vec := pgvector.NewVector(c.Embedding)
	if _, err := s.db.Exec(ctx, insertChunkSQL, id, c.Content, vec, metadataJSON, createdAt); err != nil {
		return uuid.Nil, fmt.Errorf("%w: inserting chunk: %w", ErrStorageFailed, err)
	}

	s.logger.Debug("saved chunk",
		"id", id,
		"source", c.Metadata.SourceFilename,
		"index", c.Metadata.ChunkIndex,
	)
	return id, nil
}

const scanRecentSQL = `SELECT id, content, embedding, metadata, created_at
	FROM chunks
	WHERE metadata @> $1
	ORDER BY created_at DESC, (metadata->>'chunk_index')::int DESC
	LIMIT $2`

// ScanRecent returns the most recently created chunks matching the
// visibility filter, newest first. The result is a candidate set for
// similarity ranking, not a relevance-ordered one.
func (s *Store) ScanRecent(ctx context.Context, visibility string, limit int) ([]Chunk, error) {
	if visibility == "" {
		visibility = VisibilityAll
	}
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	filterJSON, err := json.Marshal(map[string]string{"visibility": visibility})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling filter: %w", ErrStorageFailed, err)
	}

	rows, err := s.db.Query(ctx, scanRecentSQL, filterJSON, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning chunks: %w", ErrStorageFailed, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c            Chunk
			vec          pgvector.Vector
			metadataJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.Content, &vec, &metadataJSON, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %w", ErrStorageFailed, err)
		}
		c.Embedding = vec.Slice()
		if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
			// A malformed record should not break retrieval; the scorer
			// handles missing embeddings, and metadata stays zero-valued.
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", c.ID, "error", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading rows: %w", ErrStorageFailed, err)
	}

	return chunks, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", ErrStorageFailed, err)
	}
	return int(count), nil
}
