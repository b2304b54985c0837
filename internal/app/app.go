// Package app assembles the application: configuration in, a ready HTTP
// handler and lifecycle container out. All cross-package wiring lives here
// so the packages themselves stay free of each other.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushq/placemate/internal/api"
	"github.com/campushq/placemate/internal/chat"
	"github.com/campushq/placemate/internal/config"
	"github.com/campushq/placemate/internal/embed"
	"github.com/campushq/placemate/internal/gateway"
	"github.com/campushq/placemate/internal/ingest"
	"github.com/campushq/placemate/internal/intent"
	"github.com/campushq/placemate/internal/records"
	"github.com/campushq/placemate/internal/store"
	"github.com/campushq/placemate/internal/telemetry"
)

// startupPingTimeout bounds the initial database connectivity check.
const startupPingTimeout = 5 * time.Second

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool      *pgxpool.Pool
	Store     *store.Store
	Embedder  *embed.Google
	Gateway   *gateway.Gateway
	Pipeline  *ingest.Pipeline
	Directory *records.Directory
	Router    *intent.Router
	Chat      *chat.Orchestrator
	Server    *api.Server
}

// Setup builds the full dependency graph. The Gemini API key may be empty
// at startup; the providers return typed errors on first use instead of
// failing here, which keeps health probes working without credentials.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	chunkStore, err := store.New(pool, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating chunk store: %w", err)
	}

	embedder := embed.NewGoogle(cfg.GeminiAPIKey, cfg.EmbedderModel, int32(cfg.EmbedDimension), logger)
	gw := gateway.New(cfg.GeminiAPIKey, cfg.ModelName, cfg.GenerateTimeout, logger)

	pipeline, err := ingest.New(embedder, chunkStore, ingest.Limits{
		MaxDocChars:      cfg.MaxDocChars,
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		MaxChunksPerFile: cfg.MaxChunksPerFile,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating ingest pipeline: %w", err)
	}

	directory, err := records.New(pool, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating records directory: %w", err)
	}

	weights := intent.Weights{
		SkillMatch:    cfg.IntentWeights.SkillMatch,
		BranchMention: cfg.IntentWeights.BranchMention,
		StreamMention: cfg.IntentWeights.StreamMention,
		CGPAMet:       cfg.IntentWeights.CGPAMet,
		CGPAUnmet:     cfg.IntentWeights.CGPAUnmet,
	}
	router, err := intent.New(directory, weights, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating intent router: %w", err)
	}

	emitter := telemetry.NewSlogEmitter(logger)

	orchestrator, err := chat.New(embedder, chunkStore, gw, router,
		emitter, chat.Options{
			TopK:          cfg.TopK,
			MinSimilarity: float32(cfg.MinSimilarity),
			ScanLimit:     cfg.ScanLimit,
		}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating chat orchestrator: %w", err)
	}

	server, err := api.NewServer(api.ServerConfig{
		Logger:         logger,
		Chat:           orchestrator,
		Ingest:         pipeline,
		Counter:        chunkStore,
		Pool:           pool,
		Telemetry:      emitter,
		CORSOrigins:    cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		MaxUploadFiles: cfg.MaxUploadFiles,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Store:     chunkStore,
		Embedder:  embedder,
		Gateway:   gw,
		Pipeline:  pipeline,
		Directory: directory,
		Router:    router,
		Chat:      orchestrator,
		Server:    server,
	}, nil
}

// Close releases all held resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
}
