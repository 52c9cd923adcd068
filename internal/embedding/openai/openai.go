// Package openai embeds passages through an OpenAI-compatible embeddings API
// (OpenAI itself, Ollama, vLLM and friends).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"docqa/internal/domain"
)

// Config configures the embeddings client.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Timeout           time.Duration
	BatchSize         int
	RequestsPerSecond float64
	MaxRetries        int
}

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	client     *goopenai.Client
	model      string
	batchSize  int
	maxRetries int
	limiter    *rate.Limiter
	backoff    func(attempt int) time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		client:     goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(limit, 1),
		backoff:    retryDelay,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Embed returns one vector per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([]domain.Vector, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: batch,
			Model: goopenai.EmbeddingModel(c.model),
		})
		if err != nil {
			if !retryable(err) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		return toVectors(resp, len(batch))
	}
	return nil, fmt.Errorf("openai embeddings failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func toVectors(resp goopenai.EmbeddingResponse, want int) ([]domain.Vector, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("openai embeddings returned %d vectors for %d inputs", len(resp.Data), want)
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([]domain.Vector, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			return nil, errors.New("empty embedding")
		}
		v := make(domain.Vector, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float64(x)
		}
		out[i] = v
	}
	return out, nil
}

// retryable reports whether err is a rate limit, a server error or a
// transport failure.
func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		attempt = 5
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
