// Package predictit fetches markets from the PredictIt public market data
// API.
package predictit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/source"
)

const defaultBaseURL = "https://www.predictit.org"

type contract struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	LastTradePrice *float64 `json:"lastTradePrice"`
}

type market struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	TimeStamp string     `json:"timeStamp"`
	Status    string     `json:"status"`
	Contracts []contract `json:"contracts"`
}

type marketData struct {
	Markets []market `json:"markets"`
}

// Adapter implements domain.SourceAdapter for PredictIt.
type Adapter struct {
	baseURL string
	client  *resty.Client
}

// New creates a PredictIt adapter.
func New(timeout time.Duration) *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		client:  source.NewHTTPClient(timeout),
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() string {
	return "predictit"
}

// FetchMarkets fetches all open markets and normalizes them.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	var payload marketData
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(a.baseURL + "/api/marketdata/all/")
	if err != nil {
		return nil, fmt.Errorf("predictit: market data: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("predictit: market data: status %d", resp.StatusCode())
	}

	records := make([]domain.MarketRecord, 0, len(payload.Markets))
	for _, m := range payload.Markets {
		if m.Status != "Open" || m.Name == "" || len(m.Contracts) == 0 {
			continue
		}
		records = append(records, domain.MarketRecord{
			ID:                fmt.Sprintf("predictit:%d", m.ID),
			Question:          m.Name,
			SourcePlatform:    "PredictIt",
			FormattedOutcomes: formatContracts(m.Contracts),
			URL:               m.URL,
			PublishedAt:       source.ParseTimeFlexible(m.TimeStamp),
		})
	}
	return records, nil
}

// formatContracts renders a single-contract market as Yes/No and a
// multi-contract market as one outcome per contract, with prices normalized
// to a probability distribution.
func formatContracts(contracts []contract) string {
	if len(contracts) == 1 {
		price := contracts[0].LastTradePrice
		if price == nil || *price < 0 || *price > 1 {
			return source.FormatOutcomes([]string{"Yes", "No"}, []float64{math.NaN(), math.NaN()})
		}
		return source.FormatOutcomes([]string{"Yes", "No"}, []float64{*price, 1 - *price})
	}

	names := make([]string, len(contracts))
	prices := make([]float64, len(contracts))
	var sum float64
	for i, c := range contracts {
		names[i] = c.Name
		prices[i] = math.NaN()
		if c.LastTradePrice != nil {
			prices[i] = *c.LastTradePrice
			sum += *c.LastTradePrice
		}
	}
	if sum > 0 {
		for i := range prices {
			if !math.IsNaN(prices[i]) {
				prices[i] /= sum
			}
		}
	}
	return source.FormatOutcomes(names, prices)
}
