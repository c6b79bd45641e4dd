// Package metaculus fetches questions from the Metaculus API.
package metaculus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/source"
)

const (
	defaultBaseURL = "https://www.metaculus.com"
	pageLimit      = 100
	maxPages       = 5
)

type question struct {
	ID                  int    `json:"id"`
	Title               string `json:"title"`
	PageURL             string `json:"page_url"`
	PublishTime         string `json:"publish_time"`
	NumberOfForecasters int    `json:"number_of_forecasters"`
	CommunityPrediction struct {
		Full struct {
			Q2 *float64 `json:"q2"` // community median for binary questions
		} `json:"full"`
	} `json:"community_prediction"`
}

type questionList struct {
	Next    string     `json:"next"`
	Results []question `json:"results"`
}

// Adapter implements domain.SourceAdapter for Metaculus.
type Adapter struct {
	baseURL string
	client  *resty.Client
}

// New creates a Metaculus adapter.
func New(timeout time.Duration) *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		client:  source.NewHTTPClient(timeout),
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() string {
	return "metaculus"
}

// FetchMarkets pages through open questions and normalizes them.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	var records []domain.MarketRecord

	for page := 0; page < maxPages; page++ {
		var payload questionList
		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"status": "open",
				"limit":  strconv.Itoa(pageLimit),
				"offset": strconv.Itoa(page * pageLimit),
			}).
			SetResult(&payload).
			Get(a.baseURL + "/api2/questions/")
		if err != nil {
			return nil, fmt.Errorf("metaculus: list questions: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("metaculus: list questions: status %d", resp.StatusCode())
		}

		for _, q := range payload.Results {
			if q.Title == "" {
				continue
			}
			records = append(records, a.normalize(q))
		}

		if payload.Next == "" || len(payload.Results) < pageLimit {
			break
		}
	}
	return records, nil
}

func (a *Adapter) normalize(q question) domain.MarketRecord {
	record := domain.MarketRecord{
		ID:                fmt.Sprintf("metaculus:%d", q.ID),
		Question:          q.Title,
		SourcePlatform:    "Metaculus",
		FormattedOutcomes: formatCommunity(q.CommunityPrediction.Full.Q2),
		PublishedAt:       source.ParseTimeFlexible(q.PublishTime),
	}
	if q.PageURL != "" {
		record.URL = a.baseURL + q.PageURL
	}
	if q.NumberOfForecasters > 0 {
		forecasters := q.NumberOfForecasters
		record.NForecasters = &forecasters
	}
	return record
}

func formatCommunity(median *float64) string {
	if median == nil {
		return "Community prediction unavailable"
	}
	return source.FormatOutcomes([]string{"Yes", "No"}, []float64{*median, 1 - *median})
}
