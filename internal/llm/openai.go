package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI models
type OpenAIProvider struct {
	client   *openai.Client
	endpoint string
	config   Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: clientConfig.BaseURL,
		config:   config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Complete generates a completion using OpenAI's Chat Completions API
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = openai.GPT4o
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p.config.Limiter != nil {
		if err := p.config.Limiter.Wait(ctxWithTimeout, p.endpoint); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return &Response{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// Embed returns dense embeddings for the given texts
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddingModel := p.config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(openai.LargeEmbedding3)
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p.config.Limiter != nil {
		if err := p.config.Limiter.Wait(ctxWithTimeout, p.endpoint); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := p.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
