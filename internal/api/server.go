package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushq/placemate/internal/telemetry"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    *slog.Logger
	Chat      ChatService       // Required
	Ingest    Ingestor          // Required
	Counter   Counter           // Required
	Pool      *pgxpool.Pool     // Optional: nil disables the database readiness check
	Telemetry telemetry.Emitter // Optional

	CORSOrigins    []string
	TrustProxy     bool    // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateLimit      float64 // Tokens per second per IP (0 = default 5)
	RateBurst      int     // Rate limiter burst size per IP (0 = default 10)
	MaxUploadFiles int     // 0 = default 10
	MaxUploadBytes int64   // Per file, 0 = default 20 MiB
	IsDev          bool    // Disables HSTS
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chat == nil {
		return nil, errors.New("chat service is required")
	}
	if cfg.Ingest == nil {
		return nil, errors.New("ingest pipeline is required")
	}
	if cfg.Counter == nil {
		return nil, errors.New("chunk counter is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxFiles := cfg.MaxUploadFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxUploadFiles
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	emitter := cfg.Telemetry
	if emitter == nil {
		emitter = telemetry.Nop{}
	}

	ch := &chatHandler{chat: cfg.Chat, logger: logger}
	ih := &ingestHandler{pipeline: cfg.Ingest, maxFiles: maxFiles, maxBytes: maxBytes, emitter: emitter, logger: logger}
	st := &statsHandler{counter: cfg.Counter, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("POST /api/v1/documents", ih.upload)
	mux.HandleFunc("GET /api/v1/stats", st.getStats)

	// Rate limiter: per-IP token bucket
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(limit, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Identity → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = identityMiddleware(logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
