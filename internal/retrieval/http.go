package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PubuduLasith093/RiskSafeAI/internal/cache"
	"github.com/PubuduLasith093/RiskSafeAI/internal/model"
	"github.com/PubuduLasith093/RiskSafeAI/internal/worker"
)

const searchMaxRetries = 3

// HTTPSearcher talks to the retrieval service over HTTP
type HTTPSearcher struct {
	baseURL    string
	httpClient *http.Client
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	maxRetries int
}

// NewHTTPSearcher creates a searcher against the given service base URL.
// The cache may be nil to disable response caching.
func NewHTTPSearcher(cfg model.RetrievalConfig, limiter *worker.Limiter, c cache.Cache, cacheTTL time.Duration) *HTTPSearcher {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = searchMaxRetries
	}

	return &HTTPSearcher{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		cache:      c,
		cacheTTL:   cacheTTL,
		maxRetries: maxRetries,
	}
}

type searchRequest struct {
	Query   string  `json:"query"`
	TopK    int     `json:"top_k"`
	Filters Filters `json:"filters,omitempty"`
}

type searchResponse struct {
	Matches []Match `json:"matches"`
}

type contextResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Search returns ranked passages for the query
func (s *HTTPSearcher) Search(ctx context.Context, query string, topK int, filters Filters) ([]Match, error) {
	body, err := json.Marshal(searchRequest{Query: query, TopK: topK, Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	cacheKey := cache.Key("search", string(body))
	if s.cache != nil {
		if cached, found := s.cache.Get(cacheKey); found {
			var resp searchResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return resp.Matches, nil
			}
		}
	}

	raw, err := s.post(ctx, "/v1/search", body)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(cacheKey, raw, s.cacheTTL)
	}

	return resp.Matches, nil
}

// FetchFullContext returns the enclosing parent section for a child passage
func (s *HTTPSearcher) FetchFullContext(ctx context.Context, childID string) (string, error) {
	body, err := json.Marshal(map[string]string{"child_id": childID})
	if err != nil {
		return "", fmt.Errorf("marshal context request: %w", err)
	}

	raw, err := s.post(ctx, "/v1/context", body)
	if err != nil {
		return "", err
	}

	var resp contextResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unmarshal context response: %w", err)
	}
	return resp.Text, nil
}

// post executes a rate-limited POST with bounded retries on transient failures
func (s *HTTPSearcher) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	url := s.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, url); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("retrieval service status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("retrieval service status %d", resp.StatusCode)
		}
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}
		return raw, nil
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxRetries, lastErr)
}
