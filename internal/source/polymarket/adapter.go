// Package polymarket fetches markets from the Polymarket Gamma API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/source"
)

const (
	defaultBaseURL = "https://gamma-api.polymarket.com"
	pageSize       = 100
	maxPages       = 20
)

// gammaMarket is the Gamma /markets payload. Outcome names and prices arrive
// as JSON-encoded strings inside the JSON document.
type gammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	Volume        string `json:"volume"`
	Slug          string `json:"slug"`
	StartDate     string `json:"startDate"`
	Closed        bool   `json:"closed"`
}

// Adapter implements domain.SourceAdapter for Polymarket.
type Adapter struct {
	baseURL string
	client  *resty.Client
}

// New creates a Polymarket adapter.
func New(timeout time.Duration) *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		client:  source.NewHTTPClient(timeout),
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() string {
	return "polymarket"
}

// FetchMarkets pages through open markets and normalizes them.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	var records []domain.MarketRecord

	for page := 0; page < maxPages; page++ {
		var markets []gammaMarket
		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"closed": "false",
				"limit":  strconv.Itoa(pageSize),
				"offset": strconv.Itoa(page * pageSize),
			}).
			SetResult(&markets).
			Get(a.baseURL + "/markets")
		if err != nil {
			return nil, fmt.Errorf("polymarket: list markets: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("polymarket: list markets: status %d", resp.StatusCode())
		}

		for _, m := range markets {
			if m.Closed || m.Question == "" {
				continue
			}
			records = append(records, a.normalize(m))
		}

		if len(markets) < pageSize {
			break
		}
	}
	return records, nil
}

func (a *Adapter) normalize(m gammaMarket) domain.MarketRecord {
	names := decodeStringList(m.Outcomes)
	prices := decodeFloatList(m.OutcomePrices, len(names))

	record := domain.MarketRecord{
		ID:                "polymarket:" + m.ID,
		Question:          m.Question,
		SourcePlatform:    "Polymarket",
		FormattedOutcomes: source.FormatOutcomes(names, prices),
		PublishedAt:       source.ParseTimeFlexible(m.StartDate),
	}
	if m.Slug != "" {
		record.URL = "https://polymarket.com/event/" + m.Slug
	}
	if volume, err := strconv.ParseFloat(m.Volume, 64); err == nil && volume >= 0 {
		record.Volume = &volume
	}
	return record
}

// decodeStringList parses a JSON-encoded string array like `["Yes","No"]`.
func decodeStringList(encoded string) []string {
	var names []string
	if err := json.Unmarshal([]byte(encoded), &names); err != nil {
		return nil
	}
	return names
}

// decodeFloatList parses a JSON-encoded price array; prices come as strings
// ("0.62") or numbers depending on the market. Missing entries pad as NaN so
// formatting shows N/A instead of a fabricated price.
func decodeFloatList(encoded string, want int) []float64 {
	var raw []json.Number
	if err := json.Unmarshal([]byte(encoded), &raw); err != nil {
		var asStrings []string
		if err := json.Unmarshal([]byte(encoded), &asStrings); err != nil {
			raw = nil
		} else {
			for _, s := range asStrings {
				raw = append(raw, json.Number(s))
			}
		}
	}

	prices := make([]float64, want)
	for i := range prices {
		prices[i] = math.NaN()
		if i < len(raw) {
			if f, err := raw[i].Float64(); err == nil {
				prices[i] = f
			}
		}
	}
	return prices
}
