package domain

import "context"

// SourceAdapter retrieves and normalizes markets from one platform.
type SourceAdapter interface {
	// FetchMarkets fetches the platform's current markets, normalized into
	// MarketRecord. Optional fields the platform cannot resolve stay nil.
	FetchMarkets(ctx context.Context) ([]MarketRecord, error)

	// Name returns the platform identifier, e.g. "manifold".
	Name() string
}

// EmbeddingGenerator creates vector embeddings from text in batches.
type EmbeddingGenerator interface {
	// Embed returns one vector per input text, position-preserving.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Name returns the generator identifier.
	Name() string

	// Dimension returns the vector dimension.
	Dimension() int

	// MaxBatchSize returns the largest batch the provider accepts per call.
	MaxBatchSize() int
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}

// EmbeddingStore persists the cumulative embedding table. Save must replace
// the stored table atomically: a crash mid-write may lose the in-flight table
// but must never corrupt the previously stored one.
type EmbeddingStore interface {
	Load(ctx context.Context) ([]EmbeddingRecord, error)
	Save(ctx context.Context, records []EmbeddingRecord) error
}
