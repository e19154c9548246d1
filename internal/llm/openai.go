// Package llm talks to an OpenAI-compatible endpoint for embeddings and chat completions.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/metrics"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client implements domain.Embedder and domain.Completer on top of openai-go.
type Client struct {
	client         openai.Client
	embeddingModel string
	chatModel      string
	maxTokens      int
}

var (
	_ domain.Embedder  = (*Client)(nil)
	_ domain.Completer = (*Client)(nil)
)

// NewClient creates a client from the llm config section
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: llm.api_key", domain.ErrNotConfigured)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		client:         openai.NewClient(opts...),
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		maxTokens:      cfg.MaxTokens,
	}, nil
}

// ModelName returns the embedding model name
func (c *Client) ModelName() string {
	return c.embeddingModel
}

// ChatModel returns the completion model name
func (c *Client) ChatModel() string {
	return c.chatModel
}

// Embed returns the embedding of a single text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	metrics.LLMCallDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings request failed: %v", domain.ErrUpstream, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrUpstream, len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrUpstream, d.Index)
		}
		vectors[d.Index] = toFloat32(d.Embedding)
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", domain.ErrUpstream, i)
		}
	}
	return vectors, nil
}

// Complete sends a system and a user message and returns the first choice
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model: openai.ChatModel(c.chatModel),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	metrics.LLMCallDuration.WithLabelValues("complete").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: completion request failed: %v", domain.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", domain.ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
