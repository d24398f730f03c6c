// Package embedding turns text into vectors using an OpenAI-compatible
// embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrDisabled is wrapped by the ServiceError of a Disabled embedder.
var ErrDisabled = errors.New("embedding service not configured")

// ServiceError reports a failure of the embedding collaborator.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("embedding service: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Embedder returns the embedding of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config configures the OpenAI client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "text-embedding-3-small"

// Client is an Embedder backed by the OpenAI embeddings API.
type Client struct {
	client openai.Client
	model  string
}

// New returns an Embedder for cfg. Without an API key it returns Disabled.
func New(cfg Config) Embedder {
	if cfg.APIKey == "" {
		return Disabled{}
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: openai.NewClient(opts...), model: model}
}

// Embed requests the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ServiceError{Op: "embed", Err: errors.New("empty input")}
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, &ServiceError{Op: "embed", Err: err}
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &ServiceError{Op: "embed", Err: errors.New("empty response")}
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

// Disabled fails every request. It keeps search and indexing wired when no
// embedding service is configured.
type Disabled struct{}

func (Disabled) Embed(context.Context, string) ([]float32, error) {
	return nil, &ServiceError{Op: "embed", Err: ErrDisabled}
}

// Func adapts a function to the Embedder interface.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// ItemText is the text indexed for an item.
func ItemText(name, description, location string, tags []string) string {
	parts := []string{name, description}
	if location != "" {
		parts = append(parts, "found at "+location)
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, ", "))
	}
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		b.WriteString(p)
	}
	return b.String()
}
