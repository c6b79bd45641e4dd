package domain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/davidbz/marketmatch/internal/observability"
)

// defaultSourceTimeout bounds a single adapter call when none is configured.
const defaultSourceTimeout = 30 * time.Second

// AggregatorService drives all configured source adapters and merges their
// normalized records into one canonical market table. A single failing
// adapter degrades that source's contribution to empty; the cycle only fails
// when every source does.
type AggregatorService struct {
	adapters      []SourceAdapter
	sourceTimeout time.Duration
	events        EventPublisher
}

// NewAggregatorService creates a new market aggregator. sourceTimeout bounds
// each adapter call independently; events may be nil.
func NewAggregatorService(
	adapters []SourceAdapter,
	sourceTimeout time.Duration,
	events EventPublisher,
) *AggregatorService {
	if sourceTimeout <= 0 {
		sourceTimeout = defaultSourceTimeout
	}
	return &AggregatorService{
		adapters:      adapters,
		sourceTimeout: sourceTimeout,
		events:        events,
	}
}

// RefreshMarkets invokes every adapter concurrently and returns the merged,
// deduplicated market table. Row order is not semantically significant.
func (a *AggregatorService) RefreshMarkets(ctx context.Context) ([]MarketRecord, error) {
	logger := observability.FromContext(ctx)
	logger.Info("market aggregation started",
		observability.Int("sources", len(a.adapters)))

	results := make([][]MarketRecord, len(a.adapters))
	var (
		mu       sync.Mutex
		failures int
	)

	var g errgroup.Group
	for i, adapter := range a.adapters {
		g.Go(func() error {
			records, err := a.fetchSource(ctx, adapter)
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				return nil // partial-failure tolerance: never abort the cycle
			}
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	if len(a.adapters) > 0 && failures == len(a.adapters) {
		return nil, fmt.Errorf("%w: %d sources unreachable", ErrAllSourcesFailed, failures)
	}

	merged := a.merge(results)

	logger.Info("market aggregation completed",
		observability.Int("records", len(merged)),
		observability.Int("failed_sources", failures))

	if a.events != nil {
		a.events.Publish(ctx, "aggregation.completed", map[string]interface{}{
			"records":        len(merged),
			"failed_sources": failures,
		})
	}

	return merged, nil
}

// fetchSource runs one adapter under its own timeout. A timed-out adapter is
// treated identically to a failed one.
func (a *AggregatorService) fetchSource(ctx context.Context, adapter SourceAdapter) ([]MarketRecord, error) {
	sourceCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	sourceCtx = observability.WithPlatform(sourceCtx, adapter.Name())
	logger := observability.FromContext(sourceCtx)

	start := time.Now()
	records, err := adapter.FetchMarkets(sourceCtx)
	if err != nil {
		logger.Warn("source fetch failed, skipping this cycle",
			observability.Error(err),
			observability.Duration("elapsed", time.Since(start)))

		if a.events != nil {
			a.events.Publish(sourceCtx, "aggregation.source_failed", map[string]interface{}{
				"platform": adapter.Name(),
				"error":    err.Error(),
			})
		}
		return nil, err
	}

	logger.Info("source fetch completed",
		observability.Int("records", len(records)),
		observability.Duration("elapsed", time.Since(start)))
	return records, nil
}

// merge flattens the per-source results, enforcing at most one record per
// platform market ID and dropping exact (question, platform, url) duplicates
// arising from pagination overlap.
func (a *AggregatorService) merge(results [][]MarketRecord) []MarketRecord {
	type dedupeKey struct {
		question string
		platform string
		url      string
	}

	seenIDs := make(map[string]struct{})
	seenRows := make(map[dedupeKey]struct{})

	var merged []MarketRecord
	for _, records := range results {
		for _, record := range records {
			if record.Question == "" {
				continue
			}
			if record.ID != "" {
				if _, dup := seenIDs[record.ID]; dup {
					continue
				}
				seenIDs[record.ID] = struct{}{}
			}

			key := dedupeKey{record.Question, record.SourcePlatform, record.URL}
			if _, dup := seenRows[key]; dup {
				continue
			}
			seenRows[key] = struct{}{}

			merged = append(merged, record)
		}
	}
	return merged
}
