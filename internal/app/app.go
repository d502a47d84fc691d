package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/econlens/econlens/internal/config"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/core/cache"
	"github.com/econlens/econlens/internal/core/chat"
	"github.com/econlens/econlens/internal/core/chunk"
	"github.com/econlens/econlens/internal/core/database"
	"github.com/econlens/econlens/internal/core/extract"
	"github.com/econlens/econlens/internal/core/ingest"
	"github.com/econlens/econlens/internal/core/llm"
	"github.com/econlens/econlens/internal/core/objectstore"
	"github.com/econlens/econlens/internal/core/tools"
	"github.com/econlens/econlens/internal/core/vectorstore"
)

// App owns every long-lived client and the HTTP server built on top of them.
type App struct {
	DBClient *database.DatabaseClient
	Cache    *cache.RedisContextCache
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := database.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("database initialized and ready")

	contextCache, err := cache.NewRedisContextCache(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("context cache connected")

	vectors := vectorstore.NewPgVectorStore(dbClient.DB())

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, err
	}
	metadata, err := llm.NewGeminiMetadataGenerator(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, err
	}
	chatModel, err := llm.NewGeminiChat(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, err
	}

	pipeline := ingest.NewPipeline(
		dbClient,
		vectors,
		embedder,
		extract.NewDocconvExtractor(),
		metadata,
		chunk.NewChunker(chunk.DefaultSize, chunk.DefaultOverlap),
	)

	// Archival is optional; the pipeline works without object storage.
	var objects core.ObjectClient
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		objects, err = objectstore.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		pipeline.WithArchive(objects, cfg.BucketName)
	} else {
		log.Warn().Msg("object storage not configured; original uploads will not be archived")
	}

	baseTools := []tools.Tool{
		tools.NewChartTool(),
		tools.NewIndicatorTool(cfg.IndicatorAPIURL, cfg.IndicatorAPIKey),
	}
	if cfg.NewsAPIURL != "" {
		baseTools = append(baseTools, tools.NewNewsTool(
			tools.NewHTTPNewsSource("marketaux", cfg.NewsAPIURL, cfg.NewsAPIKey),
		))
	}

	orchestrator := chat.NewOrchestrator(chatModel, dbClient, contextCache, embedder, vectors, baseTools...)

	server := NewServer(cfg, dbClient, contextCache, vectors, pipeline, orchestrator)

	return &App{DBClient: dbClient, Cache: contextCache, Server: server}, nil
}

func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
