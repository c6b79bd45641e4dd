package domain

import "time"

// MarketRecord is one forecasting-market question as observed on one platform
// during a single aggregation cycle. Records are immutable once aggregated and
// are replaced wholesale on the next refresh.
type MarketRecord struct {
	// ID is the platform-prefixed market identifier, e.g. "manifold:abc123".
	ID                string     `json:"id"`
	Question          string     `json:"question"`
	SourcePlatform    string     `json:"source_platform"`
	FormattedOutcomes string     `json:"formatted_outcomes"`
	URL               string     `json:"url,omitempty"`
	NForecasters      *int       `json:"n_forecasters,omitempty"`
	Volume            *float64   `json:"volume,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
}

// EmbeddingRecord pairs a question text with its embedding vector. The text is
// the exact join key back into the market table; vector length is constant
// across the whole table.
type EmbeddingRecord struct {
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

// SimilarQuestion is one ranked match returned by the matcher. It is created
// fresh per call; ownership transfers to the caller.
type SimilarQuestion struct {
	Question          string     `json:"question"`
	SimilarityScore   float64    `json:"similarity_score"`
	SourcePlatform    string     `json:"source_platform"`
	FormattedOutcomes string     `json:"formatted_outcomes"`
	URL               string     `json:"url,omitempty"`
	NForecasters      *int       `json:"n_forecasters,omitempty"`
	Volume            *float64   `json:"volume,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
}

// SearchOptions tunes a FindSimilarQuestions call. A nil options value uses
// the defaults below.
type SearchOptions struct {
	// NResults caps the number of returned rows. Values <= 0 fall back to
	// DefaultNResults.
	NResults int

	// MinSimilarity is the inclusive similarity floor in [0,1]. Values < 0
	// fall back to DefaultMinSimilarity.
	MinSimilarity float64
}

const (
	// DefaultNResults is the default result cap.
	DefaultNResults = 5

	// DefaultMinSimilarity is the default inclusive similarity floor.
	DefaultMinSimilarity = 0.5
)

// normalized returns a copy of opts with defaults applied.
func (o *SearchOptions) normalized() SearchOptions {
	out := SearchOptions{NResults: DefaultNResults, MinSimilarity: DefaultMinSimilarity}
	if o == nil {
		return out
	}
	if o.NResults > 0 {
		out.NResults = o.NResults
	}
	if o.MinSimilarity >= 0 {
		out.MinSimilarity = o.MinSimilarity
	}
	return out
}
