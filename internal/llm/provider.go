package llm

import (
	"context"

	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

// Provider defines the interface for text-generation backends. Each pipeline
// stage builds a prompt and decodes the structured JSON reply through Invoke;
// the provider itself is a black box: prompt in, text out, fallible.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates a completion for the given request
	Complete(ctx context.Context, req Request) (*Response, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Request contains the input for one generation call
type Request struct {
	// System is the system/role instruction
	System string

	// Prompt is the user-turn content
	Prompt string

	// Model overrides the configured default model (optional)
	Model string

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int

	// Temperature controls sampling (extraction stages run at 0)
	Temperature float64
}

// Response contains the generation output
type Response struct {
	// Text is the raw completion text
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// EmbeddingModel for dense vectors (OpenAI only)
	EmbeddingModel string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout per API request, seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Temperature default for requests that do not set one
	Temperature float64

	// Limiter throttles calls to the generation backend (nil = unthrottled)
	Limiter *worker.Limiter
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "openai",
		Model:          "gpt-4o",
		EmbeddingModel: "text-embedding-3-large",
		Timeout:        60,
		MaxTokens:      4000,
		Temperature:    0,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config. A positive rate
// gets a per-host limiter shared by every call the provider makes.
func ConfigFromModel(mc model.LLMConfig) Config {
	cfg := Config{
		Provider:       mc.Provider,
		Model:          mc.Model,
		EmbeddingModel: mc.EmbeddingModel,
		APIKey:         mc.APIKey,
		BaseURL:        mc.BaseURL,
		Timeout:        mc.Timeout,
		MaxTokens:      mc.MaxTokens,
		Temperature:    mc.Temperature,
	}
	if mc.RatePerSecond > 0 {
		cfg.Limiter = worker.NewLimiter(mc.RatePerSecond, mc.RateBurst)
	}
	return cfg
}
