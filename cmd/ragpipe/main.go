package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/chunker"
	"github.com/kailas-cloud/ragpipe/internal/config"
	dbRedis "github.com/kailas-cloud/ragpipe/internal/db/redis"
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/loader"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
	"github.com/kailas-cloud/ragpipe/internal/repository/embcache"
	qdrantrepo "github.com/kailas-cloud/ragpipe/internal/repository/qdrant"
	"github.com/kailas-cloud/ragpipe/internal/repository/vectorindex"
	chiTransport "github.com/kailas-cloud/ragpipe/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/ragpipe/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/ragpipe/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragpipe/internal/usecase/health"
	indexuc "github.com/kailas-cloud/ragpipe/internal/usecase/index"
	ingestuc "github.com/kailas-cloud/ragpipe/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/ragpipe/internal/usecase/retrieval"
	setupuc "github.com/kailas-cloud/ragpipe/internal/usecase/setup"
	"github.com/kailas-cloud/ragpipe/internal/version"
)

func main() {
	// .env is optional; real environment variables win
	envFileErr := godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(logpkg.Options{
		Env:     env,
		Level:   cfg.Logging.Level,
		Service: "ragpipe",
		Version: version.Version,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if envFileErr != nil && !errors.Is(envFileErr, os.ErrNotExist) {
		logger.Warn("Failed to load .env", zap.Error(envFileErr))
	}

	logger.Info("Starting ragpipe API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_store", cfg.VectorStore.Driver),
		zap.String("index", cfg.Index.Name),
		zap.Int("dimension", cfg.Index.Dimension),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()

	// Redis serves the vector index, the embedding cache, or both
	var redisStore *dbRedis.Store
	if cfg.VectorStore.Driver == config.DriverRedis || cfg.Embedding.Cache.Enabled {
		redisStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.VectorStore.Redis.Addrs,
			Username: cfg.VectorStore.Redis.Username,
			Password: cfg.VectorStore.Redis.Password,
			DB:       cfg.VectorStore.Redis.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		defer redisStore.Close()

		readiness := time.Duration(cfg.VectorStore.Redis.ReadinessTimeout) * time.Second
		if err := redisStore.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.VectorStore.Redis.Addrs))
	}

	indexSvc, closeIndex := buildIndexService(cfg, redisStore, logger)
	defer closeIndex()

	embedder := buildEmbedder(cfg, redisStore, logger)
	batcherCfg := embeddinguc.BatcherConfig{
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		Dimension:   cfg.Index.Dimension,
	}
	docBatcher, err := embeddinguc.NewBatcher(
		withInstruction(embedder, cfg.Embedding.DocumentInstruction), batcherCfg, logger,
	)
	if err != nil {
		logger.Fatal("Invalid embedding configuration", zap.Error(err))
	}
	queryBatcher, err := embeddinguc.NewBatcher(
		withInstruction(embedder, cfg.Embedding.QueryInstruction), batcherCfg, logger,
	)
	if err != nil {
		logger.Fatal("Invalid embedding configuration", zap.Error(err))
	}

	splitter, err := chunker.New(cfg.Chunker.Size)
	if err != nil {
		logger.Fatal("Invalid chunker configuration", zap.Error(err))
	}

	manager, err := indexuc.NewManager(indexSvc, indexuc.ManagerConfig{
		Name:          cfg.Index.Name,
		Dimension:     cfg.Index.Dimension,
		CreateTimeout: cfg.Index.CreateTimeout(),
		Mode:          indexuc.Mode(cfg.Index.Mode),
	}, logger)
	if err != nil {
		logger.Fatal("Invalid index configuration", zap.Error(err))
	}

	coordinator, err := ingestuc.NewCoordinator(indexSvc, ingestuc.CoordinatorConfig{
		IndexName:   cfg.Index.Name,
		BatchSize:   cfg.Index.UpsertBatchSize,
		Concurrency: cfg.Index.UpsertConcurrency,
	}, logger)
	if err != nil {
		logger.Fatal("Invalid upsert configuration", zap.Error(err))
	}

	ingestSvc := ingestuc.New(splitter, docBatcher, coordinator, logger).
		WithDocumentConcurrency(cfg.Index.DocumentConcurrency)

	docLoader := loader.New(cfg.Documents.Dir, logger)
	if len(cfg.Documents.Extensions) > 0 {
		docLoader.WithExtensions(cfg.Documents.Extensions...)
	}
	setupSvc := setupuc.New(docLoader, manager, ingestSvc, logger)

	completer := openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Provider:          cfg.LLM.Provider,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		Logger:            logger,
	}).WithTemperature(cfg.LLM.Temperature).WithMaxTokens(cfg.LLM.MaxTokens)

	retrievalSvc, err := retrievaluc.New(queryBatcher, indexSvc, completer, retrievaluc.Config{
		IndexName: cfg.Index.Name,
		TopK:      cfg.Retrieval.TopK,
	}, logger)
	if err != nil {
		logger.Fatal("Invalid retrieval configuration", zap.Error(err))
	}

	healthSvc := healthuc.New(indexSvc, newEmbeddingHealthChecker(embedder), logger).WithLLM(completer)

	server := chiTransport.NewServer(retrievalSvc, setupSvc, healthSvc, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildIndexService picks the vector index backend. The returned func releases it.
func buildIndexService(cfg config.Config, redisStore *dbRedis.Store, logger *zap.Logger) (domain.IndexService, func()) {
	switch cfg.VectorStore.Driver {
	case config.DriverQdrant:
		qc, err := qdrantrepo.NewClient(qdrantrepo.Config{
			Host:   cfg.VectorStore.Qdrant.Host,
			Port:   cfg.VectorStore.Qdrant.Port,
			UseTLS: cfg.VectorStore.Qdrant.UseTLS,
			APIKey: cfg.VectorStore.Qdrant.APIKey,
		})
		if err != nil {
			logger.Fatal("Failed to create qdrant client", zap.Error(err))
		}
		logger.Info("Using qdrant vector store",
			zap.String("host", cfg.VectorStore.Qdrant.Host),
			zap.Int("port", cfg.VectorStore.Qdrant.Port),
		)
		return qdrantrepo.New(qc, logger), func() { _ = qc.Close() }
	default:
		repo := vectorindex.New(redisStore).WithHNSW(vectorindex.HNSWConfig{
			M:           cfg.VectorStore.Redis.HNSWM,
			EFConstruct: cfg.VectorStore.Redis.HNSWEFConstruct,
		})
		if cfg.VectorStore.Redis.KeyPrefix != "" {
			repo.WithKeyPrefix(cfg.VectorStore.Redis.KeyPrefix)
		}
		return repo, func() {}
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Cached.
// The cache sits outermost so hits neither reach the provider nor count as usage.
func buildEmbedder(cfg config.Config, redisStore *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Provider:          cfg.Embedding.Provider,
		Dimensions:        cfg.Embedding.Dimensions,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Burst:             cfg.Embedding.Burst,
		Logger:            logger,
	})

	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Embedding.Provider, cfg.Embedding.Model, logger,
	)

	if cfg.Embedding.Cache.Enabled && redisStore != nil {
		embedder = embcache.New(embedder, redisStore, metrics.EmbeddingCacheTotal, logger).
			WithNamespace(cfg.Embedding.Model).
			WithTTL(time.Duration(cfg.Embedding.Cache.TTLSec) * time.Second)
	}

	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)
	return embedder
}

// withInstruction prefixes inputs outside the cache, so cache keys include the instruction.
func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

// embeddingHealthChecker adapts domain.Embedder to health.ProviderChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
