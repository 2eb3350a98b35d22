package model

import "time"

// Config is the complete runtime configuration. Built once from defaults,
// config file, env vars, and flags, then passed into the pipeline; no
// process-wide globals.
type Config struct {
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Trust     TrustConfig     `yaml:"trust" mapstructure:"trust"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// RetrievalConfig configures the external retrieval service client
type RetrievalConfig struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	TopK           int           `yaml:"top_k" mapstructure:"top_k"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSecond  float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	ExpandParents  bool          `yaml:"expand_parents" mapstructure:"expand_parents"`
	PlanItemCap    int           `yaml:"plan_item_cap" mapstructure:"plan_item_cap"`
}

// LLMConfig configures the text-generation backend
type LLMConfig struct {
	Provider       string  `yaml:"provider" mapstructure:"provider"`
	Model          string  `yaml:"model" mapstructure:"model"`
	EmbeddingModel string  `yaml:"embedding_model" mapstructure:"embedding_model"`
	APIKey         string  `yaml:"-" mapstructure:"-"` // env only, never persisted
	BaseURL        string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int     `yaml:"timeout" mapstructure:"timeout"` // seconds per call
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// PipelineConfig bounds the per-stage fan-out and external-call volume
type PipelineConfig struct {
	Workers            int     `yaml:"workers" mapstructure:"workers"`
	ChunkCap           int     `yaml:"chunk_cap" mapstructure:"chunk_cap"`
	DetectionCap       int     `yaml:"detection_cap" mapstructure:"detection_cap"`
	ApplicabilityCap   int     `yaml:"applicability_cap" mapstructure:"applicability_cap"`
	ClusterThreshold   float64 `yaml:"cluster_threshold" mapstructure:"cluster_threshold"`
	PassageMaxChars    int     `yaml:"passage_max_chars" mapstructure:"passage_max_chars"`
}

// TrustConfig configures the trust/safety gate sequence
type TrustConfig struct {
	ReviewThreshold  float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	MinExcerptLength int     `yaml:"min_excerpt_length" mapstructure:"min_excerpt_length"`
	ChunkSampleSize  int     `yaml:"chunk_sample_size" mapstructure:"chunk_sample_size"`
}

// CacheConfig configures the in-memory embedding/retrieval cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Retrieval: RetrievalConfig{
			BaseURL:       "http://localhost:8100",
			TopK:          30,
			Timeout:       15 * time.Second,
			MaxRetries:    3,
			RatePerSecond: 10,
			RateBurst:     5,
			ExpandParents: true,
			PlanItemCap:   15,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			EmbeddingModel: "text-embedding-3-large",
			Timeout:        60,
			MaxTokens:      4000,
			Temperature:    0,
			RatePerSecond:  5,
			RateBurst:      5,
		},
		Pipeline: PipelineConfig{
			Workers:          10,
			ChunkCap:         50,
			DetectionCap:     100,
			ApplicabilityCap: 50,
			ClusterThreshold: 0.85,
			PassageMaxChars:  4000,
		},
		Trust: TrustConfig{
			ReviewThreshold:  0.90,
			MinExcerptLength: MinExcerptLength,
			ChunkSampleSize:  5,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 10 * time.Minute,
		},
	}
}
