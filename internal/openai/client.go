// Package openai adapts the OpenAI API to the pipeline's Embedder and
// Generator interfaces.
package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/munipolis/vasefirma-ai/internal/assist"
)

var (
	_ assist.Embedder  = (*Client)(nil)
	_ assist.Generator = (*Client)(nil)
)

// Config holds the model parameters for both endpoints.
type Config struct {
	// APIKey is checked at first use; an empty key yields
	// assist.ErrNotConfigured instead of an upstream call.
	APIKey string

	EmbeddingModel     string
	EmbeddingDimension int

	ChatModel       string
	Temperature     float64
	MaxAnswerTokens int

	// MaxInputChars caps the embedding input length. The query path and the
	// importer use different caps, so it is per-client rather than global.
	MaxInputChars int
}

// Client calls the OpenAI embeddings and chat completion endpoints.
type Client struct {
	api openai.Client
	cfg Config
}

// New creates a client. The key is trimmed so a whitespace-only env value
// counts as unconfigured.
func New(cfg Config) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &Client{
		api: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg: cfg,
	}
}

// Embed returns the embedding vector for text, truncated to the configured
// input cap.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.cfg.APIKey == "" {
		return nil, assist.ErrNotConfigured
	}

	input := text
	if c.cfg.MaxInputChars > 0 {
		if runes := []rune(input); len(runes) > c.cfg.MaxInputChars {
			input = string(runes[:c.cfg.MaxInputChars])
		}
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(input)},
	}
	if c.cfg.EmbeddingDimension > 0 {
		params.Dimensions = openai.Int(int64(c.cfg.EmbeddingDimension))
	}

	resp, err := c.api.Embeddings.New(ctx, params)
	if err != nil {
		return nil, upstreamErr("openai-embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, &assist.UpstreamError{Service: "openai-embeddings", Detail: "empty embedding response"}
	}

	embedding := resp.Data[0].Embedding
	vector := make([]float32, len(embedding))
	for i, v := range embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// Generate runs a chat completion over the assembled messages.
func (c *Client) Generate(ctx context.Context, messages []assist.Message) (assist.Completion, error) {
	if c.cfg.APIKey == "" {
		return assist.Completion{}, assist.ErrNotConfigured
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.cfg.ChatModel),
		Messages:    toMessageParams(messages),
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(int64(c.cfg.MaxAnswerTokens)),
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return assist.Completion{}, upstreamErr("openai-chat", err)
	}
	if len(completion.Choices) == 0 {
		return assist.Completion{}, &assist.UpstreamError{Service: "openai-chat", Detail: "no completion choices"}
	}

	return assist.Completion{
		Text:       completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

func toMessageParams(messages []assist.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case assist.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case assist.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}

// upstreamErr maps SDK errors into the pipeline error type, keeping the
// upstream status code when the API responded.
func upstreamErr(service string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &assist.UpstreamError{
			Service:    service,
			StatusCode: apiErr.StatusCode,
			Detail:     apiErr.Message,
			Err:        err,
		}
	}
	return &assist.UpstreamError{Service: service, Detail: err.Error(), Err: err}
}
