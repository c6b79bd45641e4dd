package main

import (
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/marketmatch/internal/cache"
	"github.com/davidbz/marketmatch/internal/config"
	"github.com/davidbz/marketmatch/internal/crypto"
	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/embedding/openai"
	"github.com/davidbz/marketmatch/internal/httpserver"
	"github.com/davidbz/marketmatch/internal/httpserver/middleware"
	"github.com/davidbz/marketmatch/internal/observability"
	"github.com/davidbz/marketmatch/internal/source/dataset"
	"github.com/davidbz/marketmatch/internal/source/gjopen"
	"github.com/davidbz/marketmatch/internal/source/manifold"
	"github.com/davidbz/marketmatch/internal/source/metaculus"
	"github.com/davidbz/marketmatch/internal/source/polymarket"
	"github.com/davidbz/marketmatch/internal/source/predictit"
	"github.com/davidbz/marketmatch/internal/store"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *httpserver.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Invoke(func(logger *zap.Logger, cfg *config.Config) {
		logger.Info("configuration loaded", zap.Any("config", config.Redacted(cfg)))
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if err := container.Provide(func() domain.EventPublisher {
		return observability.NewEventBus(slog.Default())
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Source Adapters
	if err := container.Provide(buildAdapters); err != nil {
		log.Fatalf("Failed to provide source adapters: %v", err)
	}

	// Embedding Generator
	if err := container.Provide(func(cfg *openai.Config) (domain.EmbeddingGenerator, error) {
		return openai.NewGenerator(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide embedding generator: %v", err)
	}

	// Embedding Store
	if err := container.Provide(buildEmbeddingStore); err != nil {
		log.Fatalf("Failed to provide embedding store: %v", err)
	}

	// Caches
	if err := container.Provide(func(cfg *config.CacheConfig) *cache.Store[[]domain.MarketRecord] {
		return cache.NewStore[[]domain.MarketRecord]("markets", cacheTTL(cfg))
	}); err != nil {
		log.Fatalf("Failed to provide market cache: %v", err)
	}
	if err := container.Provide(func(cfg *config.CacheConfig) *cache.Store[[]domain.EmbeddingRecord] {
		return cache.NewStore[[]domain.EmbeddingRecord]("embeddings", cacheTTL(cfg))
	}); err != nil {
		log.Fatalf("Failed to provide embedding cache: %v", err)
	}

	// Domain Services
	if err := container.Provide(func(
		adapters []domain.SourceAdapter,
		cfg *config.SourcesConfig,
		events domain.EventPublisher,
	) *domain.AggregatorService {
		return domain.NewAggregatorService(adapters, time.Duration(cfg.TimeoutSeconds)*time.Second, events)
	}); err != nil {
		log.Fatalf("Failed to provide aggregator service: %v", err)
	}
	if err := container.Provide(domain.NewEmbeddingPipeline); err != nil {
		log.Fatalf("Failed to provide embedding pipeline: %v", err)
	}
	if err := container.Provide(domain.NewMatcherService); err != nil {
		log.Fatalf("Failed to provide matcher service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(httpserver.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(httpserver.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

func cacheTTL(cfg *config.CacheConfig) time.Duration {
	return time.Duration(cfg.DurationMinutes) * time.Minute
}

// buildAdapters assembles the source adapter set from SOURCES, appending the
// encrypted shared dataset when one is configured.
func buildAdapters(
	sources *config.SourcesConfig,
	datasetCfg *config.DatasetConfig,
	cryptoCfg *config.CryptoConfig,
) ([]domain.SourceAdapter, error) {
	timeout := time.Duration(sources.TimeoutSeconds) * time.Second

	var adapters []domain.SourceAdapter
	for _, name := range sources.Enabled {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "manifold":
			adapters = append(adapters, manifold.New(timeout))
		case "polymarket":
			adapters = append(adapters, polymarket.New(timeout))
		case "predictit":
			adapters = append(adapters, predictit.New(timeout))
		case "metaculus":
			adapters = append(adapters, metaculus.New(timeout))
		case "gjopen":
			adapters = append(adapters, gjopen.New(gjopen.Credentials{
				Email:    sources.GJOEmail,
				Password: sources.GJOPassword,
			}, timeout))
		case "":
			continue
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}

	if datasetCfg.Path != "" || datasetCfg.URL != "" {
		gate, err := crypto.NewGate(cryptoCfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("dataset source: %w", err)
		}
		adapters = append(adapters, dataset.New(dataset.Config{
			Path: datasetCfg.Path,
			URL:  datasetCfg.URL,
		}, gate, timeout))
	}

	return adapters, nil
}

func buildEmbeddingStore(cfg *config.StoreConfig) (domain.EmbeddingStore, error) {
	switch cfg.Backend {
	case "file", "":
		return store.NewFile(cfg.FilePath), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return store.NewRedis(client, cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown embedding store backend %q", cfg.Backend)
	}
}
