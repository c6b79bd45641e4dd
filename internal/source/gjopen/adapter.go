// Package gjopen fetches markets from Good Judgment Open. The platform has
// no public API: the adapter signs in with session credentials and reads the
// market state embedded as React props in the question pages. Absent
// credentials the source degrades to skip.
package gjopen

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/source"
)

const (
	defaultBaseURL = "https://www.gjopen.com"
	maxPages       = 3
)

var (
	csrfTokenRe    = regexp.MustCompile(`name="authenticity_token" value="([^"]+)"`)
	questionLinkRe = regexp.MustCompile(`href="(/questions/\d+[^"]*)"`)
	reactPropsRe   = regexp.MustCompile(
		`data-react-class="FOF\.Forecast\.PredictionInterfaces\.OpinionPoolInterface"[^>]*data-react-props="([^"]*)"`)
)

// questionProps is the subset of the embedded React props the adapter reads.
type questionProps struct {
	Question struct {
		ID              int    `json:"id"`
		Name            string `json:"name"`
		PredictorsCount int    `json:"predictors_count"`
		PublishedAt     string `json:"published_at"`
		Answers         []struct {
			Name        string   `json:"name"`
			Probability *float64 `json:"normalized_probability"`
		} `json:"answers"`
	} `json:"question"`
}

// Credentials are the optional GJOpen session credentials.
type Credentials struct {
	Email    string
	Password string
}

// Adapter implements domain.SourceAdapter for Good Judgment Open.
type Adapter struct {
	baseURL     string
	credentials Credentials
	client      *resty.Client
}

// New creates a GJOpen adapter. Empty credentials are allowed; the adapter
// then skips instead of failing the aggregation.
func New(credentials Credentials, timeout time.Duration) *Adapter {
	client := source.NewHTTPClient(timeout).SetHeader("Accept", "text/html")
	if jar, err := cookiejar.New(nil); err == nil {
		client.SetCookieJar(jar)
	}
	return &Adapter{
		baseURL:     defaultBaseURL,
		credentials: credentials,
		client:      client,
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() string {
	return "gjopen"
}

// FetchMarkets logs in and scrapes the most-predicted open questions. Without
// credentials it contributes nothing and reports no error.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	if a.credentials.Email == "" || a.credentials.Password == "" {
		return nil, nil
	}

	if err := a.login(ctx); err != nil {
		return nil, fmt.Errorf("gjopen: %w", err)
	}

	var records []domain.MarketRecord
	seen := make(map[string]struct{})
	for page := 1; page <= maxPages; page++ {
		links, err := a.questionLinks(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("gjopen: %w", err)
		}
		if len(links) == 0 {
			break
		}

		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}

			record, err := a.fetchQuestion(ctx, link)
			if err != nil || record == nil {
				continue // one unparseable question page is not a source failure
			}
			records = append(records, *record)
		}
	}
	return records, nil
}

// login fetches the sign-in page for a CSRF token and posts the credentials.
func (a *Adapter) login(ctx context.Context) error {
	signInURL := a.baseURL + "/users/sign_in"

	page, err := a.client.R().SetContext(ctx).Get(signInURL)
	if err != nil {
		return fmt.Errorf("fetching sign-in page: %w", err)
	}
	match := csrfTokenRe.FindSubmatch(page.Body())
	if match == nil {
		return fmt.Errorf("no CSRF token on sign-in page")
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"user[email]":        a.credentials.Email,
			"user[password]":     a.credentials.Password,
			"authenticity_token": string(match[1]),
		}).
		Post(signInURL)
	if err != nil {
		return fmt.Errorf("sign-in request: %w", err)
	}
	if strings.Contains(resp.String(), "Invalid Email or password") {
		return fmt.Errorf("sign-in rejected, check credentials")
	}
	return nil
}

// questionLinks extracts question URLs from one listing page, sorted by
// predictor count so the most active markets come first.
func (a *Adapter) questionLinks(ctx context.Context, page int) ([]string, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sort":     "predictors_count",
			"sort_dir": "desc",
			"page":     fmt.Sprintf("%d", page),
		}).
		Get(a.baseURL + "/questions")
	if err != nil {
		return nil, fmt.Errorf("listing questions page %d: %w", page, err)
	}

	var links []string
	for _, match := range questionLinkRe.FindAllSubmatch(resp.Body(), -1) {
		links = append(links, a.baseURL+string(match[1]))
	}
	return links, nil
}

// fetchQuestion reads one question page and decodes the embedded props.
func (a *Adapter) fetchQuestion(ctx context.Context, url string) (*domain.MarketRecord, error) {
	resp, err := a.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}

	match := reactPropsRe.FindSubmatch(resp.Body())
	if match == nil {
		return nil, nil
	}

	var props questionProps
	if err := json.Unmarshal([]byte(html.UnescapeString(string(match[1]))), &props); err != nil {
		return nil, err
	}
	q := props.Question
	if q.Name == "" {
		return nil, nil
	}

	names := make([]string, 0, len(q.Answers))
	probabilities := make([]float64, 0, len(q.Answers))
	for _, answer := range q.Answers {
		names = append(names, answer.Name)
		p := probabilityOrNaN(answer.Probability)
		probabilities = append(probabilities, p)
	}

	record := domain.MarketRecord{
		ID:                fmt.Sprintf("gjopen:%d", q.ID),
		Question:          q.Name,
		SourcePlatform:    "GJOpen",
		FormattedOutcomes: source.FormatOutcomes(names, probabilities),
		URL:               url,
		PublishedAt:       source.ParseTimeFlexible(q.PublishedAt),
	}
	if q.PredictorsCount > 0 {
		forecasters := q.PredictorsCount
		record.NForecasters = &forecasters
	}
	return &record, nil
}

func probabilityOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
