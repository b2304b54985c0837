// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.placemate/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: Gemini API key, generation model override, embedder model
//   - Retrieval: chunking, scan limit, top-K, similarity floor
//   - Storage: PostgreSQL connection (see storage.go)
//   - Serve: HTTP address, CORS, rate limiting, upload limits
//
// Security: Sensitive data (API key, password) are never logged; masked in MarshalJSON.
// Validation: range checks in validation.go with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking settings")

	// ErrInvalidModelSettings indicates the embedding dimension or the
	// generation timeout is out of range.
	ErrInvalidModelSettings = errors.New("invalid model settings")

	// ErrInvalidRetrieval indicates scan limit, top-K, or similarity floor is out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval settings")

	// ErrInvalidUploadLimits indicates the upload limits are out of range.
	ErrInvalidUploadLimits = errors.New("invalid upload limits")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI configuration
	GeminiAPIKey    string        `mapstructure:"gemini_api_key" json:"gemini_api_key"`   // SENSITIVE: masked in MarshalJSON
	ModelName       string        `mapstructure:"model_name" json:"model_name"`           // Generation model override; empty enables capability probing
	EmbedderModel   string        `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedDimension  int           `mapstructure:"embed_dimension" json:"embed_dimension"` // Must match the vector column width in db/migrations
	GenerateTimeout time.Duration `mapstructure:"generate_timeout" json:"generate_timeout"`

	// Retrieval configuration
	ChunkSize        int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap     int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MaxChunksPerFile int     `mapstructure:"max_chunks_per_file" json:"max_chunks_per_file"`
	MaxDocChars      int     `mapstructure:"max_doc_chars" json:"max_doc_chars"`
	ScanLimit        int     `mapstructure:"scan_limit" json:"scan_limit"`
	TopK             int     `mapstructure:"top_k" json:"top_k"`
	MinSimilarity    float64 `mapstructure:"min_similarity" json:"min_similarity"`

	// Upload limits
	MaxUploadFiles int   `mapstructure:"max_upload_files" json:"max_upload_files"`
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Serve configuration
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)
	RateLimit   float64  `mapstructure:"rate_limit" json:"rate_limit"`   // Requests per second per client IP
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Intent router scoring weights
	IntentWeights IntentWeights `mapstructure:"intent_weights" json:"intent_weights"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// IntentWeights are the opportunity-scoring weights used by the intent
// router. They are heuristic tuning constants, not a validated ranking
// model; any integer values are accepted.
type IntentWeights struct {
	SkillMatch    int `mapstructure:"skill_match" json:"skill_match"`
	BranchMention int `mapstructure:"branch_mention" json:"branch_mention"`
	StreamMention int `mapstructure:"stream_mention" json:"stream_mention"`
	CGPAMet       int `mapstructure:"cgpa_met" json:"cgpa_met"`
	CGPAUnmet     int `mapstructure:"cgpa_unmet" json:"cgpa_unmet"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".placemate")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.applyDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", "") // empty: probe supported models at first use
	viper.SetDefault("embedder_model", "gemini-embedding-001")
	viper.SetDefault("embed_dimension", 768)
	viper.SetDefault("generate_timeout", "60s")

	// Retrieval defaults
	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("chunk_overlap", 200)
	viper.SetDefault("max_chunks_per_file", 2000)
	viper.SetDefault("max_doc_chars", 200000)
	viper.SetDefault("scan_limit", 5000)
	viper.SetDefault("top_k", 6)
	viper.SetDefault("min_similarity", 0.25)

	// Upload defaults
	viper.SetDefault("max_upload_files", 10)
	viper.SetDefault("max_upload_bytes", int64(20)<<20)

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "placemate")
	viper.SetDefault("postgres_password", "placemate_dev_password")
	viper.SetDefault("postgres_db_name", "placemate")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Serve defaults
	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_limit", 5.0)
	viper.SetDefault("rate_burst", 10)

	// Intent weight defaults
	viper.SetDefault("intent_weights.skill_match", 2)
	viper.SetDefault("intent_weights.branch_mention", 1)
	viper.SetDefault("intent_weights.stream_mention", 1)
	viper.SetDefault("intent_weights.cgpa_met", 1)
	viper.SetDefault("intent_weights.cgpa_unmet", -1)

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", true)
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Gemini API key (required for embedding and generation)
	mustBind("gemini_api_key", "GEMINI_API_KEY")

	// Model overrides
	mustBind("model_name", "PLACEMATE_MODEL_NAME")
	mustBind("embedder_model", "PLACEMATE_EMBEDDER_MODEL")
	mustBind("embed_dimension", "PLACEMATE_EMBED_DIMENSION")
	mustBind("generate_timeout", "PLACEMATE_GENERATE_TIMEOUT")

	// Serve mode
	mustBind("http_addr", "PLACEMATE_HTTP_ADDR")
	mustBind("cors_origins", "PLACEMATE_CORS_ORIGINS")
	mustBind("trust_proxy", "PLACEMATE_TRUST_PROXY")

	// Logging
	mustBind("log_level", "PLACEMATE_LOG_LEVEL")
	mustBind("log_json", "PLACEMATE_LOG_JSON")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matching against real secret fragments.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters for secrets longer than 8 chars;
// fully masks shorter secrets to prevent substring matching.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + maskedValue + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursing into MarshalJSON
	masked := alias(c)
	masked.GeminiAPIKey = maskSecret(c.GeminiAPIKey)
	masked.PostgresPassword = maskSecret(c.PostgresPassword)
	return json.Marshal(masked)
}

// String returns the masked JSON form for logging.
func (c *Config) String() string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(b)
}
