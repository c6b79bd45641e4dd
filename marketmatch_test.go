package marketmatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/marketmatch"
)

type stubAdapter struct {
	mu      sync.Mutex
	fetches int
	records []marketmatch.MarketRecord
}

func (s *stubAdapter) FetchMarkets(_ context.Context) ([]marketmatch.MarketRecord, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	return s.records, nil
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) fetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

type stubGenerator struct {
	vectors map[string][]float64
}

func (s *stubGenerator) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = s.vectors[text]
	}
	return out, nil
}

func (s *stubGenerator) Name() string      { return "stub" }
func (s *stubGenerator) Dimension() int    { return 3 }
func (s *stubGenerator) MaxBatchSize() int { return 1024 }

type memoryStore struct {
	records []marketmatch.EmbeddingRecord
}

func (m *memoryStore) Load(_ context.Context) ([]marketmatch.EmbeddingRecord, error) {
	return m.records, nil
}

func (m *memoryStore) Save(_ context.Context, records []marketmatch.EmbeddingRecord) error {
	m.records = records
	return nil
}

func TestNew(t *testing.T) {
	t.Run("should fail without an embedding API key", func(t *testing.T) {
		t.Setenv("EMBEDDING_API_KEY", "")

		_, err := marketmatch.New()
		require.Error(t, err)
	})

	t.Run("should accept injected components", func(t *testing.T) {
		client, err := marketmatch.New(
			marketmatch.WithSources(&stubAdapter{}),
			marketmatch.WithGenerator(&stubGenerator{}),
			marketmatch.WithStore(&memoryStore{}),
		)
		require.NoError(t, err)
		require.NotNil(t, client)
	})
}

func TestClient_FindSimilarQuestions(t *testing.T) {
	newClient := func(t *testing.T, adapter *stubAdapter, clock func() time.Time) *marketmatch.Client {
		t.Helper()
		opts := []marketmatch.Option{
			marketmatch.WithSources(adapter),
			marketmatch.WithGenerator(&stubGenerator{vectors: map[string][]float64{
				"Will X happen?": {1, 0, 0},
				"Will Y happen?": {0, 1, 0},
			}}),
			marketmatch.WithStore(&memoryStore{}),
			marketmatch.WithCacheDuration(30 * time.Minute),
		}
		if clock != nil {
			opts = append(opts, marketmatch.WithClock(clock))
		}
		client, err := marketmatch.New(opts...)
		require.NoError(t, err)
		return client
	}

	adapterWithMarket := func() *stubAdapter {
		return &stubAdapter{records: []marketmatch.MarketRecord{
			{
				ID:                "manifold:1",
				Question:          "Will X happen?",
				SourcePlatform:    "Manifold",
				FormattedOutcomes: "Yes: 60.0%; No: 40.0%",
				URL:               "https://manifold.markets/x",
			},
		}}
	}

	t.Run("should find the matching question", func(t *testing.T) {
		client := newClient(t, adapterWithMarket(), nil)

		results, err := client.FindSimilarQuestions(context.Background(), "Will X happen?",
			&marketmatch.SearchOptions{NResults: 5, MinSimilarity: 0.9})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "Manifold", results[0].SourcePlatform)
		require.InDelta(t, 1.0, results[0].SimilarityScore, 1e-9)
	})

	t.Run("should reuse the cached tables within the TTL", func(t *testing.T) {
		adapter := adapterWithMarket()
		client := newClient(t, adapter, nil)

		_, err := client.FindSimilarQuestions(context.Background(), "Will X happen?", nil)
		require.NoError(t, err)
		_, err = client.FindSimilarQuestions(context.Background(), "Will Y happen?", nil)
		require.NoError(t, err)

		require.Equal(t, 1, adapter.fetchCalls())
	})

	t.Run("should refetch after the cache duration elapses", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}

		adapter := adapterWithMarket()
		client := newClient(t, adapter, clock)

		_, err := client.Markets(context.Background())
		require.NoError(t, err)

		mu.Lock()
		now = now.Add(31 * time.Minute)
		mu.Unlock()

		_, err = client.Markets(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, adapter.fetchCalls())
	})
}

func TestClient_Embeddings(t *testing.T) {
	t.Run("should expose the cumulative table", func(t *testing.T) {
		store := &memoryStore{records: []marketmatch.EmbeddingRecord{
			{Text: "Will X happen?", Vector: []float64{1, 0, 0}},
		}}
		client, err := marketmatch.New(
			marketmatch.WithSources(&stubAdapter{}),
			marketmatch.WithGenerator(&stubGenerator{}),
			marketmatch.WithStore(store),
		)
		require.NoError(t, err)

		table, err := client.Embeddings(context.Background())
		require.NoError(t, err)
		require.Len(t, table, 1)
	})
}
