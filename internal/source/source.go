// Package source holds helpers shared by the per-platform adapters. Each
// platform lives in its own subpackage and normalizes its native payload into
// domain.MarketRecord; nothing outside the adapters branches on platform
// identity.
package source

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "marketmatch/1.0"

// NewHTTPClient creates a resty client shared by an adapter's requests. The
// timeout bounds every individual request; the aggregator additionally bounds
// the whole adapter call through its context.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
}

// FormatOutcomes renders outcome names with their probabilities as
// "Yes: 60.0%; No: 40.0%". A NaN probability renders as "N/A" rather than a
// fabricated number.
func FormatOutcomes(names []string, probabilities []float64) string {
	parts := make([]string, 0, len(names))
	for i, name := range names {
		if i >= len(probabilities) || math.IsNaN(probabilities[i]) {
			parts = append(parts, fmt.Sprintf("%s: N/A", name))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %.1f%%", name, probabilities[i]*100))
	}
	return strings.Join(parts, "; ")
}

// ParseTimeFlexible parses the timestamp formats seen across platform APIs.
// It returns nil for unparseable input; timestamps are optional and never
// fabricated.
func ParseTimeFlexible(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}
