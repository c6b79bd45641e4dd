package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/davidbz/marketmatch/internal/cache"
	"github.com/davidbz/marketmatch/internal/observability"
)

// MatcherService turns a free-text query into a ranked, thresholded,
// deduplicated set of similar questions across all tracked platforms. It owns
// the canonical market cache and drives the aggregator and embedding pipeline
// when either resource is stale.
type MatcherService struct {
	aggregator *AggregatorService
	pipeline   *EmbeddingPipeline
	markets    *cache.Store[[]MarketRecord]
}

// NewMatcherService creates a new similarity matcher.
func NewMatcherService(
	aggregator *AggregatorService,
	pipeline *EmbeddingPipeline,
	markets *cache.Store[[]MarketRecord],
) *MatcherService {
	return &MatcherService{
		aggregator: aggregator,
		pipeline:   pipeline,
		markets:    markets,
	}
}

// Markets returns the canonical market table, refreshing it first when stale.
func (m *MatcherService) Markets(ctx context.Context) ([]MarketRecord, error) {
	return m.markets.Get(ctx, m.aggregator.RefreshMarkets)
}

// Embeddings returns the cumulative embedding table under the same
// refresh-if-stale contract as Markets.
func (m *MatcherService) Embeddings(ctx context.Context) ([]EmbeddingRecord, error) {
	return m.pipeline.Embeddings(ctx)
}

// FindSimilarQuestions embeds the query, scores it against every tracked
// question, and returns at most opts.NResults rows sorted by similarity
// (descending), ties broken by volume (descending) then platform name. The
// same question on multiple platforms yields one row per platform. Market
// freshness is ensured before embedding coverage, which is ensured before
// scoring; that order is load-bearing.
func (m *MatcherService) FindSimilarQuestions(
	ctx context.Context,
	query string,
	opts *SearchOptions,
) ([]SimilarQuestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	options := opts.normalized()

	logger := observability.FromContext(ctx)
	logger.Info("similarity search started",
		observability.Int("n_results", options.NResults),
		observability.Float64("min_similarity", options.MinSimilarity))

	marketTable, err := m.Markets(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing markets: %w", err)
	}
	if len(marketTable) == 0 {
		logger.Info("market table is empty, nothing to match")
		return nil, nil
	}

	questions, byQuestion := indexMarkets(marketTable)

	embeddings, unembedded, err := m.pipeline.EnsureEmbedded(ctx, append(questions, query))
	if err != nil && !IsProviderError(err) {
		return nil, err
	}
	if err != nil {
		logger.Warn("proceeding with partial embedding coverage",
			observability.Error(err),
			observability.Int("unembedded", len(unembedded)))
	}

	vectors := make(map[string][]float64, len(embeddings))
	for _, record := range embeddings {
		vectors[record.Text] = record.Vector
	}

	queryVector, ok := vectors[query]
	if !ok {
		return nil, fmt.Errorf("query embedding unavailable: %w", ErrEmbeddingProvider)
	}

	var rows []SimilarQuestion
	for _, question := range questions {
		vector, ok := vectors[question]
		if !ok {
			continue // lacks a vector this cycle, reduced coverage
		}

		similarity := min(CosineSimilarity(queryVector, vector), 1.0)
		if similarity < options.MinSimilarity {
			continue
		}

		for _, record := range byQuestion[question] {
			rows = append(rows, SimilarQuestion{
				Question:          record.Question,
				SimilarityScore:   similarity,
				SourcePlatform:    record.SourcePlatform,
				FormattedOutcomes: record.FormattedOutcomes,
				URL:               record.URL,
				NForecasters:      record.NForecasters,
				Volume:            record.Volume,
				PublishedAt:       record.PublishedAt,
			})
		}
	}

	sortRows(rows)
	if len(rows) > options.NResults {
		rows = rows[:options.NResults]
	}

	logger.Info("similarity search completed",
		observability.Int("results", len(rows)))
	return rows, nil
}

// indexMarkets extracts the ordered distinct question texts and groups
// records by question for the join step.
func indexMarkets(records []MarketRecord) ([]string, map[string][]MarketRecord) {
	byQuestion := make(map[string][]MarketRecord, len(records))
	var questions []string
	for _, record := range records {
		question := strings.TrimSpace(record.Question)
		if question == "" {
			continue
		}
		if _, seen := byQuestion[question]; !seen {
			questions = append(questions, question)
		}
		record.Question = question
		byQuestion[question] = append(byQuestion[question], record)
	}
	return questions, byQuestion
}

// sortRows orders results by similarity descending, then volume descending
// (absent volume ranks last within a similarity tie), then platform and URL
// ascending for full determinism.
func sortRows(rows []SimilarQuestion) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SimilarityScore != rows[j].SimilarityScore {
			return rows[i].SimilarityScore > rows[j].SimilarityScore
		}
		vi, vj := volumeOrZero(rows[i].Volume), volumeOrZero(rows[j].Volume)
		if vi != vj {
			return vi > vj
		}
		if rows[i].SourcePlatform != rows[j].SourcePlatform {
			return rows[i].SourcePlatform < rows[j].SourcePlatform
		}
		return rows[i].URL < rows[j].URL
	})
}

func volumeOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
