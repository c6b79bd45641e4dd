// Package manifold fetches markets from the Manifold Markets public API.
package manifold

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/source"
)

const (
	defaultBaseURL = "https://api.manifold.markets"
	pageLimit      = 1000
)

// liteMarket is the list-endpoint payload. Multi-choice answer breakdowns
// require a per-market call, so the adapter normalizes binary markets only.
type liteMarket struct {
	ID                string   `json:"id"`
	Question          string   `json:"question"`
	OutcomeType       string   `json:"outcomeType"`
	Probability       *float64 `json:"probability"`
	Volume            float64  `json:"volume"`
	UniqueBettorCount int      `json:"uniqueBettorCount"`
	CreatedTime       int64    `json:"createdTime"` // unix millis
	CloseTime         *int64   `json:"closeTime"`   // unix millis
	IsResolved        bool     `json:"isResolved"`
	URL               string   `json:"url"`
}

// Adapter implements domain.SourceAdapter for Manifold.
type Adapter struct {
	baseURL string
	client  *resty.Client
}

// New creates a Manifold adapter.
func New(timeout time.Duration) *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		client:  source.NewHTTPClient(timeout),
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() string {
	return "manifold"
}

// FetchMarkets fetches open binary markets and normalizes them.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	var markets []liteMarket
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", pageLimit)).
		SetResult(&markets).
		Get(a.baseURL + "/v0/markets")
	if err != nil {
		return nil, fmt.Errorf("manifold: list markets: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("manifold: list markets: status %d", resp.StatusCode())
	}

	now := time.Now().UnixMilli()
	records := make([]domain.MarketRecord, 0, len(markets))
	for _, m := range markets {
		if m.IsResolved || m.OutcomeType != "BINARY" || m.Probability == nil {
			continue
		}
		if m.CloseTime != nil && *m.CloseTime <= now {
			continue
		}

		p := *m.Probability
		publishedAt := time.UnixMilli(m.CreatedTime).UTC()
		volume := m.Volume
		forecasters := m.UniqueBettorCount

		records = append(records, domain.MarketRecord{
			ID:                "manifold:" + m.ID,
			Question:          m.Question,
			SourcePlatform:    "Manifold",
			FormattedOutcomes: source.FormatOutcomes([]string{"Yes", "No"}, []float64{p, 1 - p}),
			URL:               m.URL,
			NForecasters:      &forecasters,
			Volume:            &volume,
			PublishedAt:       &publishedAt,
		})
	}
	return records, nil
}
