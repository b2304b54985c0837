package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the PostgreSQL sslmode values pgx accepts.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for invalid values.
// Returns sentinel errors wrapped with context for errors.Is() checks.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.MaxChunksPerFile < 1 {
		return fmt.Errorf("%w: max_chunks_per_file must be positive, got %d", ErrInvalidChunking, c.MaxChunksPerFile)
	}
	if c.MaxDocChars < c.ChunkSize {
		return fmt.Errorf("%w: max_doc_chars must be at least chunk_size, got %d", ErrInvalidChunking, c.MaxDocChars)
	}

	if c.EmbedDimension < 1 {
		return fmt.Errorf("%w: embed_dimension must be positive, got %d", ErrInvalidModelSettings, c.EmbedDimension)
	}
	if c.GenerateTimeout <= 0 {
		return fmt.Errorf("%w: generate_timeout must be positive, got %s", ErrInvalidModelSettings, c.GenerateTimeout)
	}

	if c.ScanLimit < 1 {
		return fmt.Errorf("%w: scan_limit must be positive, got %d", ErrInvalidRetrieval, c.ScanLimit)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidRetrieval, c.TopK)
	}
	if c.MinSimilarity <= 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity must be in (0, 1], got %g", ErrInvalidRetrieval, c.MinSimilarity)
	}

	if c.MaxUploadFiles < 1 {
		return fmt.Errorf("%w: max_upload_files must be positive, got %d", ErrInvalidUploadLimits, c.MaxUploadFiles)
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("%w: max_upload_bytes must be positive, got %d", ErrInvalidUploadLimits, c.MaxUploadBytes)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be in [1, 65535], got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: got %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}

// RequireAPIKey checks that the Gemini API key is present. Startup does
// not call this so the health endpoints stay useful without a key; the
// providers return typed errors on first use instead.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}
