// Package ragsvc provides the RAG service server implementation.
package ragsvc

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/ragsvc/internal/ragsvc/biz"
	"github.com/kart-io/ragsvc/internal/ragsvc/handler"
	"github.com/kart-io/ragsvc/internal/ragsvc/router"
	"github.com/kart-io/ragsvc/internal/ragsvc/store"
	mongodbcomp "github.com/kart-io/ragsvc/pkg/component/mongodb"
	rediscomp "github.com/kart-io/ragsvc/pkg/component/redis"
	"github.com/kart-io/ragsvc/pkg/component/storage"
	"github.com/kart-io/ragsvc/pkg/llm"
	cacheopts "github.com/kart-io/ragsvc/pkg/options/cache"
	llmopts "github.com/kart-io/ragsvc/pkg/options/llm"
	logopts "github.com/kart-io/ragsvc/pkg/options/logger"
	mongoopts "github.com/kart-io/ragsvc/pkg/options/mongodb"
	ragopts "github.com/kart-io/ragsvc/pkg/options/rag"
	redisopts "github.com/kart-io/ragsvc/pkg/options/redis"
	storeopts "github.com/kart-io/ragsvc/pkg/options/store"
	httpopts "github.com/kart-io/ragsvc/pkg/options/server/http"
	"github.com/kart-io/ragsvc/pkg/server"

	// Register LLM providers.
	_ "github.com/kart-io/ragsvc/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "ragsvc"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MongoOptions     *mongoopts.Options
	RedisOptions     *redisopts.Options
	StoreOptions     *storeopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
}

// Server is the assembled RAG server.
type Server struct {
	httpServer  *server.HTTPServer
	vectorStore store.VectorStore
	redisClose  func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	cfg.LogOptions.AddInitialField("service.name", Name)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting RAG service...", "backend", cfg.StoreOptions.Backend)

	vectorStore, storageClient, redisClient, err := cfg.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infow("Vector store initialized", "backend", vectorStore.Name())

	if err := vectorStore.EnsureIndex(ctx); err != nil {
		_ = vectorStore.Close()
		return nil, fmt.Errorf("failed to ensure vector index: %w", err)
	}
	if cfg.StoreOptions.WaitReady {
		if err := vectorStore.WaitReady(ctx); err != nil {
			_ = vectorStore.Close()
			return nil, err
		}
	}

	queryCache, redisClose := cfg.newQueryCache(ctx, redisClient)

	embedProvider, err := llm.NewProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		_ = vectorStore.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		_ = vectorStore.Close()
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	service, err := biz.NewRAGService(vectorStore, embedProvider, chatProvider, queryCache, &biz.ServiceConfig{
		IngesterConfig: &biz.IngesterConfig{
			ChunkSize:    cfg.RAGOptions.ChunkSize,
			ChunkOverlap: cfg.RAGOptions.ChunkOverlap,
			Concurrency:  cfg.RAGOptions.EmbedConcurrency,
		},
		RetrieverConfig: &biz.RetrieverConfig{
			TopK: cfg.RAGOptions.TopK,
		},
		EmbeddingDim: cfg.RAGOptions.EmbeddingDim,
	})
	if err != nil {
		_ = vectorStore.Close()
		return nil, fmt.Errorf("failed to initialize RAG service: %w", err)
	}

	seedDataDir(ctx, service, cfg.RAGOptions.DataDir)

	httpServer := server.NewHTTPServer(cfg.HTTPOptions)
	httpServer.RegisterReadiness(map[string]storage.HealthChecker{
		storageClient.Name(): storageClient.Health(),
	})
	router.Register(httpServer, handler.NewRAGHandler(service))

	return &Server{
		httpServer:  httpServer,
		vectorStore: vectorStore,
		redisClose:  redisClose,
	}, nil
}

// Run serves until the context is canceled, then releases resources.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.redisClose != nil {
			s.redisClose()
		}
		if err := s.vectorStore.Close(); err != nil {
			logger.Warnw("failed to close vector store", "error", err.Error())
		}
	}()

	return s.httpServer.Run(ctx)
}

// seedDataDir ingests the configured data directory before the server
// starts serving. Per-file failures are logged and do not block
// startup; the rest of the directory is still ingested.
func seedDataDir(ctx context.Context, service biz.Service, dir string) {
	if dir == "" {
		return
	}

	results, err := service.IngestDirectory(ctx, dir)
	if err != nil {
		logger.Warnw("data directory ingestion completed with errors", "dir", dir, "error", err.Error())
	}
	logger.Infow("data directory ingested", "dir", dir, "documents", len(results))
}

// newVectorStore builds the configured backend. The component client
// is returned for health checks; for the Redis backend the raw client
// is also returned so the query cache can share the connection.
func (cfg *Config) newVectorStore(ctx context.Context) (store.VectorStore, storage.Client, *goredis.Client, error) {
	dim := cfg.RAGOptions.EmbeddingDim

	switch cfg.StoreOptions.Backend {
	case storeopts.BackendMongoDB:
		client, err := mongodbcomp.NewWithContext(ctx, cfg.MongoOptions)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		return store.NewMongoStore(client, cfg.StoreOptions, dim), client, nil, nil

	case storeopts.BackendRedis:
		client, err := rediscomp.NewWithContext(ctx, cfg.RedisOptions)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		return store.NewRedisStore(client, cfg.StoreOptions, dim), client, client.Client(), nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreOptions.Backend)
	}
}

// newQueryCache wires the query cache. The Redis store's client is
// reused when present; otherwise a dedicated connection is dialed.
// Cache setup failures disable the cache rather than failing startup.
func (cfg *Config) newQueryCache(ctx context.Context, shared *goredis.Client) (*biz.QueryCache, func()) {
	if !cfg.CacheOptions.Enabled {
		logger.Info("Query cache is disabled")
		return biz.NewQueryCache(nil, nil), nil
	}

	cacheConfig := &biz.QueryCacheConfig{
		Enabled:   true,
		TTL:       cfg.CacheOptions.TTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
	}

	if shared != nil {
		logger.Infow("Query cache initialized on shared redis connection", "ttl", cfg.CacheOptions.TTL)
		return biz.NewQueryCache(shared, cacheConfig), nil
	}

	client, err := rediscomp.NewWithContext(ctx, cfg.RedisOptions)
	if err != nil {
		logger.Warnw("failed to connect to redis, query cache disabled", "error", err.Error())
		return biz.NewQueryCache(nil, nil), nil
	}

	logger.Infow("Query cache initialized",
		"host", cfg.RedisOptions.Host,
		"port", cfg.RedisOptions.Port,
		"ttl", cfg.CacheOptions.TTL,
	)
	return biz.NewQueryCache(client.Client(), cacheConfig), func() { _ = client.Close() }
}
