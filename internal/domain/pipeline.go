package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/davidbz/marketmatch/internal/cache"
	"github.com/davidbz/marketmatch/internal/observability"
)

// EmbeddingPipeline maintains the cumulative embedding table: every distinct
// question text is embedded at most once, newly computed vectors are appended
// and persisted as a single atomic update, and a provider failure is scoped
// to the missing delta.
type EmbeddingPipeline struct {
	generator EmbeddingGenerator
	store     EmbeddingStore
	cache     *cache.Store[[]EmbeddingRecord]
}

// NewEmbeddingPipeline creates a new embedding pipeline.
func NewEmbeddingPipeline(
	generator EmbeddingGenerator,
	store EmbeddingStore,
	cacheStore *cache.Store[[]EmbeddingRecord],
) *EmbeddingPipeline {
	return &EmbeddingPipeline{
		generator: generator,
		store:     store,
		cache:     cacheStore,
	}
}

// Embeddings returns the current cumulative embedding table, reloading it
// from the backing store when the cached copy is stale. A stored table that
// fails to decode or fails the vector-length shape check is treated as a
// cache miss: the pipeline restarts from an empty table rather than trusting
// corrupted vectors, and the next save replaces the corrupted state.
func (p *EmbeddingPipeline) Embeddings(ctx context.Context) ([]EmbeddingRecord, error) {
	return p.cache.Get(ctx, func(ctx context.Context) ([]EmbeddingRecord, error) {
		records, err := p.store.Load(ctx)
		if errors.Is(err, ErrCacheCorrupted) {
			observability.FromContext(ctx).Warn("embedding store corrupted, rebuilding from empty",
				observability.Error(err))
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading embedding store: %w", err)
		}

		if err := p.checkShape(records); err != nil {
			observability.FromContext(ctx).Warn("embedding table failed shape check, discarding",
				observability.Error(err),
				observability.Int("records", len(records)))
			return nil, nil
		}
		return records, nil
	})
}

// EnsureEmbedded guarantees the table covers the given texts, computing only
// the missing delta. It returns the full cumulative table, never just the
// delta. When the provider fails, the table so far and the list of texts that
// still lack vectors are returned alongside an error wrapping
// ErrEmbeddingProvider; callers may proceed with the reduced set.
func (p *EmbeddingPipeline) EnsureEmbedded(ctx context.Context, texts []string) ([]EmbeddingRecord, []string, error) {
	logger := observability.FromContext(ctx)

	table, err := p.Embeddings(ctx)
	if err != nil {
		return nil, nil, err
	}

	known := make(map[string]struct{}, len(table))
	for _, record := range table {
		known[record.Text] = struct{}{}
	}

	// Set difference, order-preserving and deduplicated.
	var missing []string
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if _, ok := known[text]; ok {
			continue
		}
		known[text] = struct{}{}
		missing = append(missing, text)
	}

	if len(missing) == 0 {
		return table, nil, nil
	}

	logger.Info("embedding missing texts",
		observability.Int("missing", len(missing)),
		observability.Int("cached", len(table)))

	computed, failed, embedErr := p.embedBatches(ctx, missing, p.tableDimension(table))
	if len(computed) == 0 && embedErr != nil {
		return table, failed, embedErr
	}

	// Copy before appending so concurrent readers of the old table never see
	// an interleaving.
	updated := make([]EmbeddingRecord, len(table), len(table)+len(computed))
	copy(updated, table)
	updated = append(updated, computed...)

	if saveErr := p.store.Save(ctx, updated); saveErr != nil {
		// The in-flight batch is lost, prior entries stay intact on disk.
		return table, missing, fmt.Errorf("persisting embedding table: %w", saveErr)
	}
	p.cache.Put(updated)

	logger.Info("embedding table updated",
		observability.Int("added", len(computed)),
		observability.Int("total", len(updated)))

	return updated, failed, embedErr
}

// embedBatches computes vectors for texts in provider-bounded batches. On a
// provider failure it returns the records computed so far plus the texts that
// remain unembedded.
func (p *EmbeddingPipeline) embedBatches(
	ctx context.Context,
	texts []string,
	dimension int,
) ([]EmbeddingRecord, []string, error) {
	batchSize := p.generator.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	var computed []EmbeddingRecord
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := p.generator.Embed(ctx, batch)
		if err != nil {
			return computed, texts[start:], fmt.Errorf("%w: %v", ErrEmbeddingProvider, err)
		}
		if len(vectors) != len(batch) {
			return computed, texts[start:], fmt.Errorf(
				"%w: got %d vectors for %d texts", ErrEmbeddingProvider, len(vectors), len(batch))
		}

		for i, vector := range vectors {
			if dimension == 0 {
				dimension = len(vector)
			}
			if len(vector) == 0 || len(vector) != dimension {
				return computed, texts[start+i:], fmt.Errorf(
					"%w: vector length %d, want %d", ErrEmbeddingProvider, len(vector), dimension)
			}
			computed = append(computed, EmbeddingRecord{Text: batch[i], Vector: vector})
		}
	}

	return computed, nil, nil
}

// checkShape verifies the invariant that all vectors share one constant
// length matching the generator's dimension when it declares one.
func (p *EmbeddingPipeline) checkShape(records []EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	dimension := p.generator.Dimension()
	if dimension <= 0 {
		dimension = len(records[0].Vector)
	}

	for _, record := range records {
		if len(record.Vector) != dimension {
			return fmt.Errorf("%w: %q has vector length %d, want %d",
				ErrCacheCorrupted, record.Text, len(record.Vector), dimension)
		}
	}
	return nil
}

// tableDimension returns the vector length already established by the table,
// or the generator's declared dimension for an empty table.
func (p *EmbeddingPipeline) tableDimension(table []EmbeddingRecord) int {
	if len(table) > 0 {
		return len(table[0].Vector)
	}
	if d := p.generator.Dimension(); d > 0 {
		return d
	}
	return 0
}

// IsProviderError reports whether err is scoped to the embedding provider,
// i.e. recoverable by proceeding with partial coverage.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrEmbeddingProvider)
}
