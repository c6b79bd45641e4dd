// Package marketmatch finds semantically similar questions across prediction
// market platforms. A Client aggregates open markets from the configured
// sources, embeds every distinct question text exactly once, and answers
// free-text similarity queries against the cumulative embedding table.
package marketmatch

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/davidbz/marketmatch/internal/cache"
	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/embedding/openai"
	"github.com/davidbz/marketmatch/internal/source/gjopen"
	"github.com/davidbz/marketmatch/internal/source/manifold"
	"github.com/davidbz/marketmatch/internal/source/metaculus"
	"github.com/davidbz/marketmatch/internal/source/polymarket"
	"github.com/davidbz/marketmatch/internal/source/predictit"
	"github.com/davidbz/marketmatch/internal/store"
)

// Re-exported domain types so callers never import internal packages.
type (
	MarketRecord       = domain.MarketRecord
	EmbeddingRecord    = domain.EmbeddingRecord
	SimilarQuestion    = domain.SimilarQuestion
	SearchOptions      = domain.SearchOptions
	SourceAdapter      = domain.SourceAdapter
	EmbeddingGenerator = domain.EmbeddingGenerator
	EmbeddingStore     = domain.EmbeddingStore
	EventPublisher     = domain.EventPublisher
)

const (
	defaultCacheDuration = 30 * time.Minute
	defaultSourceTimeout = 30 * time.Second
	defaultStorePath     = "data/embeddings.json"
)

// Client is the library entry point.
type Client struct {
	matcher *domain.MatcherService
}

type settings struct {
	cacheDuration time.Duration
	sourceTimeout time.Duration
	sources       []domain.SourceAdapter
	generator     domain.EmbeddingGenerator
	store         domain.EmbeddingStore
	clock         cache.Clock
	events        domain.EventPublisher
}

// Option customizes a Client.
type Option func(*settings)

// WithCacheDuration sets the TTL shared by the market and embedding caches.
func WithCacheDuration(d time.Duration) Option {
	return func(s *settings) { s.cacheDuration = d }
}

// WithSourceTimeout bounds each individual source fetch.
func WithSourceTimeout(d time.Duration) Option {
	return func(s *settings) { s.sourceTimeout = d }
}

// WithSources replaces the default platform adapter set.
func WithSources(adapters ...SourceAdapter) Option {
	return func(s *settings) { s.sources = adapters }
}

// WithGenerator replaces the embedding provider.
func WithGenerator(generator EmbeddingGenerator) Option {
	return func(s *settings) { s.generator = generator }
}

// WithStore replaces the embedding persistence backend.
func WithStore(backend EmbeddingStore) Option {
	return func(s *settings) { s.store = backend }
}

// WithClock overrides the cache clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.clock = now }
}

// WithEventPublisher wires an event sink for aggregation lifecycle events.
func WithEventPublisher(events EventPublisher) Option {
	return func(s *settings) { s.events = events }
}

// New creates a Client. Without options it reads the embedding provider
// configuration from the environment, persists embeddings to a local JSON
// file, and tracks every supported platform.
func New(opts ...Option) (*Client, error) {
	cfg := settings{
		sourceTimeout: defaultSourceTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.cacheDuration <= 0 {
		cfg.cacheDuration = cacheDurationFromEnv()
	}

	if cfg.generator == nil {
		var providerCfg openai.Config
		if err := env.Parse(&providerCfg); err != nil {
			return nil, fmt.Errorf("parsing embedding provider config: %w", err)
		}
		generator, err := openai.NewGenerator(providerCfg)
		if err != nil {
			return nil, fmt.Errorf("embedding generator: %w", err)
		}
		cfg.generator = generator
	}

	if cfg.store == nil {
		cfg.store = store.NewFile(defaultStorePath)
	}

	if len(cfg.sources) == 0 {
		cfg.sources = defaultSources(cfg.sourceTimeout)
	}

	var cacheOpts []cache.Option[[]domain.MarketRecord]
	var embCacheOpts []cache.Option[[]domain.EmbeddingRecord]
	if cfg.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock[[]domain.MarketRecord](cfg.clock))
		embCacheOpts = append(embCacheOpts, cache.WithClock[[]domain.EmbeddingRecord](cfg.clock))
	}

	aggregator := domain.NewAggregatorService(cfg.sources, cfg.sourceTimeout, cfg.events)
	pipeline := domain.NewEmbeddingPipeline(
		cfg.generator,
		cfg.store,
		cache.NewStore[[]domain.EmbeddingRecord]("embeddings", cfg.cacheDuration, embCacheOpts...),
	)
	matcher := domain.NewMatcherService(
		aggregator,
		pipeline,
		cache.NewStore[[]domain.MarketRecord]("markets", cfg.cacheDuration, cacheOpts...),
	)

	return &Client{matcher: matcher}, nil
}

// cacheDurationFromEnv reads CACHE_DURATION_MINUTES, defaulting to 30.
func cacheDurationFromEnv() time.Duration {
	if raw := os.Getenv("CACHE_DURATION_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultCacheDuration
}

// defaultSources tracks every supported public platform. Good Judgment Open
// participates only when GJO_EMAIL and GJO_PASSWORD are set; its adapter
// skips the fetch otherwise.
func defaultSources(timeout time.Duration) []domain.SourceAdapter {
	return []domain.SourceAdapter{
		manifold.New(timeout),
		polymarket.New(timeout),
		predictit.New(timeout),
		metaculus.New(timeout),
		gjopen.New(gjopen.Credentials{
			Email:    os.Getenv("GJO_EMAIL"),
			Password: os.Getenv("GJO_PASSWORD"),
		}, timeout),
	}
}

// FindSimilarQuestions returns the questions most similar to query across all
// tracked platforms, refreshing markets and embeddings first when stale. A
// nil opts applies the defaults (5 results, 0.5 minimum similarity).
func (c *Client) FindSimilarQuestions(
	ctx context.Context,
	query string,
	opts *SearchOptions,
) ([]SimilarQuestion, error) {
	return c.matcher.FindSimilarQuestions(ctx, query, opts)
}

// Markets returns the canonical market table, refreshing it first when stale.
func (c *Client) Markets(ctx context.Context) ([]MarketRecord, error) {
	return c.matcher.Markets(ctx)
}

// Embeddings returns the cumulative embedding table, reloading it from the
// backing store first when stale.
func (c *Client) Embeddings(ctx context.Context) ([]EmbeddingRecord, error) {
	return c.matcher.Embeddings(ctx)
}
