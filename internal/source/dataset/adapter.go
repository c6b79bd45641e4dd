// Package dataset ingests a pre-aggregated, Fernet-encrypted market dataset,
// shared out-of-band (published release asset or local file). It lets a
// deployment warm its canonical table without hitting every platform API.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/davidbz/marketmatch/internal/crypto"
	"github.com/davidbz/marketmatch/internal/domain"
	"github.com/davidbz/marketmatch/internal/source"
)

// Config locates the encrypted blob. Exactly one of Path or URL should be
// set; Path wins when both are.
type Config struct {
	Path string
	URL  string
}

// Adapter implements domain.SourceAdapter for the encrypted shared dataset.
type Adapter struct {
	config Config
	gate   *crypto.Gate
	client *resty.Client
}

// New creates a dataset adapter decrypting through gate.
func New(config Config, gate *crypto.Gate, timeout time.Duration) *Adapter {
	return &Adapter{
		config: config,
		gate:   gate,
		client: source.NewHTTPClient(timeout),
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() string {
	return "dataset"
}

// FetchMarkets reads, decrypts, and decodes the shared dataset. The records
// keep the platform names recorded at publish time. Decryption failure
// surfaces as-is: a tampered dataset must not be retried into.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	blob, err := a.fetchBlob(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	plaintext, err := a.gate.Decrypt(blob)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	var records []domain.MarketRecord
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return nil, fmt.Errorf("dataset: decoding records: %w", err)
	}
	return records, nil
}

func (a *Adapter) fetchBlob(ctx context.Context) ([]byte, error) {
	if a.config.Path != "" {
		blob, err := os.ReadFile(a.config.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", a.config.Path, err)
		}
		return blob, nil
	}

	resp, err := a.client.R().SetContext(ctx).Get(a.config.URL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", a.config.URL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("downloading %s: status %d", a.config.URL, resp.StatusCode())
	}
	return resp.Body(), nil
}
