// Package openai generates embeddings through any OpenAI-compatible
// embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Generator generates embeddings in batches via the OpenAI embeddings API.
type Generator struct {
	client    openai.Client
	model     string
	dimension int
	batchSize int
}

// NewGenerator creates a new embedding generator.
func NewGenerator(config Config) (*Generator, error) {
	if config.APIKey == "" {
		return nil, errors.New("embedding API key is required")
	}
	if config.Model == "" {
		return nil, errors.New("embedding model is required")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(config.BaseURL))
	}

	return &Generator{
		client:    openai.NewClient(clientOpts...),
		model:     config.Model,
		dimension: config.Dimension,
		batchSize: config.BatchSize,
	}, nil
}

// Embed creates one vector per input text, position-preserving.
func (g *Generator) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	//nolint:exhaustruct // OpenAI SDK struct has many optional fields
	resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(g.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	// The API documents positional alignment but also carries an explicit
	// index per datum; honor the index.
	vectors := make([][]float64, len(texts))
	for _, datum := range resp.Data {
		if datum.Index < 0 || int(datum.Index) >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", datum.Index)
		}
		vectors[datum.Index] = datum.Embedding
	}

	for i, vector := range vectors {
		if len(vector) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
	}

	return vectors, nil
}

// Name returns the generator identifier.
func (g *Generator) Name() string {
	return "openai"
}

// Dimension returns the configured vector dimension, 0 when unknown.
func (g *Generator) Dimension() int {
	return g.dimension
}

// MaxBatchSize returns the largest batch sent in one API call.
func (g *Generator) MaxBatchSize() int {
	return g.batchSize
}
