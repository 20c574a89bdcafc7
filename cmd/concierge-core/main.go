package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/helpdesk-labs/concierge-core/internal/adapters/driven/ai"
	"github.com/helpdesk-labs/concierge-core/internal/adapters/driven/chroma"
	"github.com/helpdesk-labs/concierge-core/internal/adapters/driven/fsstore"
	"github.com/helpdesk-labs/concierge-core/internal/adapters/driven/memoryindex"
	"github.com/helpdesk-labs/concierge-core/internal/adapters/driven/postgres"
	redisadapter "github.com/helpdesk-labs/concierge-core/internal/adapters/driven/redis"
	httpserver "github.com/helpdesk-labs/concierge-core/internal/adapters/driving/http"
	"github.com/helpdesk-labs/concierge-core/internal/config"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
	"github.com/helpdesk-labs/concierge-core/internal/core/services"
	"github.com/helpdesk-labs/concierge-core/internal/extract"
	"github.com/helpdesk-labs/concierge-core/internal/postprocessors"
	"github.com/helpdesk-labs/concierge-core/internal/runtime"
)

var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	configPath := getEnv("CONFIG_PATH", "config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	log.Printf("concierge-core %s starting", version)

	ctx := context.Background()

	// ===== Model provider =====
	settings := ai.Settings{
		Provider:                 ai.Provider(cfg.AI.Provider),
		APIKey:                   cfg.AI.APIKey(),
		BaseURL:                  cfg.AI.BaseURL,
		EmbeddingModel:           cfg.AI.EmbeddingModel,
		ChatModel:                cfg.AI.ChatModel,
		AzureInstance:            cfg.AI.AzureInstance,
		AzureDeployment:          cfg.AI.AzureDeployment,
		AzureEmbeddingDeployment: cfg.AI.AzureEmbeddingDeployment,
		AzureAPIVersion:          cfg.AI.AzureAPIVersion,
		Timeout:                  time.Duration(cfg.AI.TimeoutSecs) * time.Second,
	}

	registry := runtime.NewServices()
	defer registry.Close()

	embedding, err := ai.NewEmbeddingService(settings)
	if err != nil {
		log.Fatalf("Failed to create embedding service: %v", err)
	}
	if embedding != nil {
		registry.SetEmbeddingService(embedding)
	} else {
		log.Println("No model provider configured; ingestion and querying will fail until one is set")
	}

	llm, err := ai.NewLLMService(settings)
	if err != nil {
		log.Fatalf("Failed to create LLM service: %v", err)
	}
	if llm != nil {
		registry.SetLLMService(llm)
	}

	// ===== Vector index =====
	indexManager, indexPinger, cleanup, err := buildIndex(ctx, cfg.Index)
	if err != nil {
		log.Fatalf("Failed to initialize %s index backend: %v", cfg.Index.Backend, err)
	}
	defer cleanup()
	log.Printf("Using %s index backend", cfg.Index.Backend)

	// ===== Ingestion pipeline =====
	ingestService := services.NewIngestService(services.IngestConfig{
		DocumentsRoot: cfg.Ingest.DocumentsRoot,
		Loader:        extract.NewExtractor(extract.DefaultIgnoredFields),
		Splitter: postprocessors.DefaultPipeline(postprocessors.ChunkConfig{
			Size:    cfg.Ingest.ChunkSize,
			Overlap: cfg.Ingest.ChunkOverlap,
		}),
		Index:        indexManager,
		Services:     registry,
		Fingerprints: fsstore.NewFingerprintStore(cfg.Ingest.FingerprintsPath),
		Logger:       logger,
	})

	// ===== Freshness scheduler =====
	var lock driven.DistributedLock
	if cfg.Scheduler.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.Scheduler.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := goredis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		lock = redisadapter.NewLock(redisClient)
		log.Println("Redis scheduler lock enabled")
	}

	scheduler := services.NewFreshnessScheduler(services.FreshnessSchedulerConfig{
		Ingest:   ingestService,
		Lock:     lock,
		Logger:   logger,
		Interval: cfg.Scheduler.Interval,
	})
	if cfg.Scheduler.Enabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// ===== Query services =====
	retriever := services.NewRetriever(indexManager, registry, logger)
	composer := services.NewComposer(registry, services.DefaultContextChunks, logger)
	chatService := services.NewChatService(retriever, composer, services.DefaultTopK, logger)
	analyticsService := services.NewAnalyticsService(cfg.Analytics.DatasetPath, registry, logger)

	// ===== HTTP server =====
	server := httpserver.NewServer(
		httpserver.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			Version:      version,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		chatService,
		ingestService,
		analyticsService,
		scheduler,
		indexPinger,
	)

	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// buildIndex constructs the configured vector index backend. The manager
// opens the backend lazily on first use.
func buildIndex(ctx context.Context, cfg config.IndexConfig) (*runtime.IndexManager, httpserver.Pinger, func(), error) {
	cleanup := func() {}

	switch cfg.Backend {
	case "", "memory":
		idx, err := memoryindex.New(cfg.SnapshotPath)
		if err != nil {
			return nil, nil, cleanup, err
		}
		manager := runtime.NewIndexManager(func(ctx context.Context) (driven.VectorIndex, error) {
			return idx, nil
		})
		return manager, pinger{idx}, cleanup, nil

	case "postgres":
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.PostgresURL))
		if err != nil {
			return nil, nil, cleanup, err
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, nil, cleanup, err
		}
		idx := postgres.NewVectorIndex(db)
		manager := runtime.NewIndexManager(func(ctx context.Context) (driven.VectorIndex, error) {
			return idx, nil
		})
		return manager, db, func() { db.Close() }, nil

	case "chroma":
		// Connection is deferred so the service starts even when the
		// Chroma server is still coming up.
		manager := runtime.NewIndexManager(func(ctx context.Context) (driven.VectorIndex, error) {
			return chroma.New(ctx, chroma.Config{
				URL:        cfg.ChromaURL,
				Collection: cfg.ChromaCollection,
			})
		})
		return manager, nil, cleanup, nil

	default:
		return nil, nil, cleanup, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// pinger adapts a VectorIndex health check to the server's Pinger.
type pinger struct {
	index driven.VectorIndex
}

func (p pinger) Ping(ctx context.Context) error {
	return p.index.HealthCheck(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
