package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/marketmatch/internal/cache"
	"github.com/davidbz/marketmatch/internal/domain"
)

func newMatcher(
	adapters []domain.SourceAdapter,
	generator domain.EmbeddingGenerator,
	store domain.EmbeddingStore,
) *domain.MatcherService {
	aggregator := domain.NewAggregatorService(adapters, time.Second, nil)
	pipeline := domain.NewEmbeddingPipeline(
		generator,
		store,
		cache.NewStore[[]domain.EmbeddingRecord]("embeddings", 30*time.Minute),
	)
	return domain.NewMatcherService(
		aggregator,
		pipeline,
		cache.NewStore[[]domain.MarketRecord]("markets", 30*time.Minute),
	)
}

// tableGenerator resolves embeddings from a fixed text-to-vector table, so
// similarity outcomes are exact.
func tableGenerator(vectors map[string][]float64) *mockGenerator {
	generator := newMockGenerator()
	generator.embedFunc = func(_ context.Context, texts []string) ([][]float64, error) {
		out := make([][]float64, len(texts))
		for i, text := range texts {
			vector, ok := vectors[text]
			if !ok {
				return nil, fmt.Errorf("no vector for %q", text)
			}
			out[i] = vector
		}
		return out, nil
	}
	return generator
}

func float64Ptr(v float64) *float64 { return &v }

func marketWithVolume(id, question, platform string, volume *float64) domain.MarketRecord {
	m := record(id, question, platform)
	m.Volume = volume
	return m
}

func TestMatcherService_FindSimilarQuestions(t *testing.T) {
	t.Run("should return only the exact match above a high threshold", func(t *testing.T) {
		generator := tableGenerator(map[string][]float64{
			"Will X happen?": {1, 0, 0},
			"Will Y happen?": {0, 1, 0},
			"Will Z happen?": {0, 0, 1},
		})
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("manifold",
				record("manifold:1", "Will X happen?", "Manifold"),
				record("manifold:2", "Will Y happen?", "Manifold"),
				record("manifold:3", "Will Z happen?", "Manifold"),
			),
		}, generator, &mockEmbeddingStore{})

		results, err := matcher.FindSimilarQuestions(context.Background(), "Will X happen?",
			&domain.SearchOptions{NResults: 2, MinSimilarity: 0.9})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "Will X happen?", results[0].Question)
		require.InDelta(t, 1.0, results[0].SimilarityScore, 1e-9)
	})

	t.Run("should return nothing for an empty market table", func(t *testing.T) {
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("manifold"),
		}, newMockGenerator(), &mockEmbeddingStore{})

		results, err := matcher.FindSimilarQuestions(context.Background(), "anything", nil)
		require.NoError(t, err)
		require.Empty(t, results)
	})

	t.Run("should reject an empty query", func(t *testing.T) {
		matcher := newMatcher(nil, newMockGenerator(), &mockEmbeddingStore{})

		_, err := matcher.FindSimilarQuestions(context.Background(), "   ", nil)
		require.Error(t, err)
	})

	t.Run("should cap results at n", func(t *testing.T) {
		vectors := map[string][]float64{"query": {1, 0, 0}}
		var markets []domain.MarketRecord
		for i := range 10 {
			question := fmt.Sprintf("question %d", i)
			vectors[question] = []float64{1, 0, 0}
			markets = append(markets, record(fmt.Sprintf("manifold:%d", i), question, "Manifold"))
		}
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("manifold", markets...),
		}, tableGenerator(vectors), &mockEmbeddingStore{})

		results, err := matcher.FindSimilarQuestions(context.Background(), "query",
			&domain.SearchOptions{NResults: 3, MinSimilarity: 0.5})
		require.NoError(t, err)
		require.Len(t, results, 3)
	})

	t.Run("should apply the default options when opts is nil", func(t *testing.T) {
		vectors := map[string][]float64{
			"query": {1, 0, 0},
			"near":  {1, 0.1, 0}, // above 0.5
			"far":   {0, 1, 0},   // below 0.5
		}
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("manifold",
				record("manifold:1", "near", "Manifold"),
				record("manifold:2", "far", "Manifold"),
			),
		}, tableGenerator(vectors), &mockEmbeddingStore{})

		results, err := matcher.FindSimilarQuestions(context.Background(), "query", nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "near", results[0].Question)
	})

	t.Run("should include rows exactly at the threshold", func(t *testing.T) {
		vectors := map[string][]float64{
			"query": {1, 0, 0},
			"same":  {1, 0, 0},
		}
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("manifold", record("manifold:1", "same", "Manifold")),
		}, tableGenerator(vectors), &mockEmbeddingStore{})

		results, err := matcher.FindSimilarQuestions(context.Background(), "query",
			&domain.SearchOptions{NResults: 5, MinSimilarity: 1.0})
		require.NoError(t, err)
		require.Len(t, results, 1)
	})

	t.Run("should emit one row per platform for a shared question", func(t *testing.T) {
		vectors := map[string][]float64{
			"query":          {1, 0, 0},
			"Will X happen?": {1, 0, 0},
		}
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("manifold",
				marketWithVolume("manifold:1", "Will X happen?", "Manifold", float64Ptr(100))),
			staticAdapter("polymarket",
				marketWithVolume("polymarket:2", "Will X happen?", "Polymarket", float64Ptr(9000))),
		}, tableGenerator(vectors), &mockEmbeddingStore{})

		results, err := matcher.FindSimilarQuestions(context.Background(), "query",
			&domain.SearchOptions{NResults: 5, MinSimilarity: 0.9})
		require.NoError(t, err)
		require.Len(t, results, 2)

		// Equal similarity: higher volume ranks first.
		require.Equal(t, "Polymarket", results[0].SourcePlatform)
		require.Equal(t, "Manifold", results[1].SourcePlatform)
	})

	t.Run("should order by similarity then volume then platform", func(t *testing.T) {
		vectors := map[string][]float64{
			"query":  {1, 0, 0},
			"best":   {1, 0, 0},
			"good-a": {1, 1, 0},
			"good-b": {1, 1, 0},
			"good-c": {1, 1, 0},
		}
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("mixed",
				marketWithVolume("m:1", "best", "Manifold", nil),
				marketWithVolume("m:2", "good-a", "PredictIt", float64Ptr(50)),
				marketWithVolume("m:3", "good-b", "Manifold", nil),
				marketWithVolume("m:4", "good-c", "Metaculus", nil),
			),
		}, tableGenerator(vectors), &mockEmbeddingStore{})

		results, err := matcher.FindSimilarQuestions(context.Background(), "query",
			&domain.SearchOptions{NResults: 10, MinSimilarity: 0.5})
		require.NoError(t, err)
		require.Len(t, results, 4)

		require.Equal(t, "best", results[0].Question)
		// Volume beats the alphabetical platform order within a similarity tie.
		require.Equal(t, "good-a", results[1].Question)
		// Absent volume ties resolve by platform name.
		require.Equal(t, "good-b", results[2].Question) // Manifold
		require.Equal(t, "good-c", results[3].Question) // Metaculus
	})

	t.Run("should not refetch or re-embed on a second query within the TTL", func(t *testing.T) {
		adapter := staticAdapter("manifold", record("manifold:1", "Will X happen?", "Manifold"))
		generator := tableGenerator(map[string][]float64{
			"Will X happen?": {1, 0, 0},
			"query":          {1, 0, 0},
		})
		matcher := newMatcher([]domain.SourceAdapter{adapter}, generator, &mockEmbeddingStore{})

		_, err := matcher.FindSimilarQuestions(context.Background(), "query", nil)
		require.NoError(t, err)

		fetches, embeds := adapter.fetchCalls(), generator.embedCalls()

		_, err = matcher.FindSimilarQuestions(context.Background(), "query", nil)
		require.NoError(t, err)
		require.Equal(t, fetches, adapter.fetchCalls())
		require.Equal(t, embeds, generator.embedCalls())
	})

	t.Run("should fail when the query embedding is unavailable", func(t *testing.T) {
		generator := newMockGenerator()
		generator.embedFunc = func(_ context.Context, _ []string) ([][]float64, error) {
			return nil, errors.New("rate limited")
		}
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("manifold", record("manifold:1", "Will X happen?", "Manifold")),
		}, generator, &mockEmbeddingStore{})

		_, err := matcher.FindSimilarQuestions(context.Background(), "query", nil)
		require.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	})

	t.Run("should proceed with reduced coverage when only the query is embedded", func(t *testing.T) {
		generator := newMockGenerator()
		generator.embedFunc = func(_ context.Context, _ []string) ([][]float64, error) {
			return nil, errors.New("rate limited")
		}
		store := &mockEmbeddingStore{records: []domain.EmbeddingRecord{
			{Text: "query", Vector: []float64{1, 0, 0}},
			{Text: "covered", Vector: []float64{1, 0, 0}},
		}}
		matcher := newMatcher([]domain.SourceAdapter{
			staticAdapter("manifold",
				record("manifold:1", "covered", "Manifold"),
				record("manifold:2", "uncovered", "Manifold"),
			),
		}, generator, store)

		results, err := matcher.FindSimilarQuestions(context.Background(), "query",
			&domain.SearchOptions{NResults: 5, MinSimilarity: 0.5})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "covered", results[0].Question)
	})

	t.Run("should propagate a total aggregation failure", func(t *testing.T) {
		matcher := newMatcher([]domain.SourceAdapter{
			failingAdapter("manifold"),
		}, newMockGenerator(), &mockEmbeddingStore{})

		_, err := matcher.FindSimilarQuestions(context.Background(), "query", nil)
		require.ErrorIs(t, err, domain.ErrAllSourcesFailed)
	})
}

func TestMatcherService_Markets(t *testing.T) {
	t.Run("should serve the cached table on repeated calls", func(t *testing.T) {
		adapter := staticAdapter("manifold", record("manifold:1", "Will X happen?", "Manifold"))
		matcher := newMatcher([]domain.SourceAdapter{adapter}, newMockGenerator(), &mockEmbeddingStore{})

		first, err := matcher.Markets(context.Background())
		require.NoError(t, err)
		second, err := matcher.Markets(context.Background())
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.Equal(t, 1, adapter.fetchCalls())
	})
}
