// Web Search.
//
// Information Hiding:
// - Backend selection (Tavily with a key, Jina without)
// - Per-backend request and response envelopes
// - Result formatting and summarization

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	BackendTavily = "tavily"
	BackendJina   = "jina"

	DefaultSearchTimeout = 30 * time.Second
	DefaultMaxResults    = 5

	defaultTavilyURL = "https://api.tavily.com/search"
	defaultJinaURL   = "https://s.jina.ai/"
	userAgent        = "steward/1.0 (personal assistant)"
	maxSnippetChars  = 300
)

// ErrNoResults is returned when a search produced nothing usable.
var ErrNoResults = errors.New("no results found")

// ContentSummarizer condenses a prompt into a short answer.
type ContentSummarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Result is one search hit, normalized across backends.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher queries a web search backend.
type Searcher struct {
	backend    string
	apiKey     string
	tavilyURL  string
	jinaURL    string
	client     *http.Client
	timeout    time.Duration
	summarizer ContentSummarizer
	logger     *zap.Logger
}

// SearchOption configures a Searcher.
type SearchOption func(*Searcher)

// WithSearchHTTPClient replaces the HTTP client.
func WithSearchHTTPClient(hc *http.Client) SearchOption {
	return func(s *Searcher) { s.client = hc }
}

// WithSearchEndpoints overrides the backend URLs. Empty values keep the default.
func WithSearchEndpoints(tavilyURL, jinaURL string) SearchOption {
	return func(s *Searcher) {
		if tavilyURL != "" {
			s.tavilyURL = tavilyURL
		}
		if jinaURL != "" {
			s.jinaURL = jinaURL
		}
	}
}

// WithSearchTimeout sets the per-search deadline.
func WithSearchTimeout(d time.Duration) SearchOption {
	return func(s *Searcher) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSearchSummarizer summarizes result lists before returning them.
func WithSearchSummarizer(sum ContentSummarizer) SearchOption {
	return func(s *Searcher) { s.summarizer = sum }
}

// WithSearchLogger sets the logger.
func WithSearchLogger(logger *zap.Logger) SearchOption {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher creates a Searcher.
// Backend priority: explicit > tavily (if key set) > jina.
func NewSearcher(backend, apiKey string, opts ...SearchOption) *Searcher {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		if apiKey != "" {
			backend = BackendTavily
		} else {
			backend = BackendJina
		}
	}
	s := &Searcher{
		backend:   backend,
		apiKey:    apiKey,
		tavilyURL: defaultTavilyURL,
		jinaURL:   defaultJinaURL,
		client:    &http.Client{},
		timeout:   DefaultSearchTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the active backend name.
func (s *Searcher) Backend() string {
	return s.backend
}

// Search returns a summary of the top results for query. When summarization
// fails the formatted result list is returned instead.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) (string, error) {
	results, err := s.Results(ctx, query, maxResults)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNoResults
	}

	raw := formatSearchResults(query, results)
	if s.summarizer == nil {
		return raw, nil
	}

	prompt := "Summarize these web search results for the user. Be concise:\n\n" +
		raw + "\nProvide a brief summary of the key findings."
	summary, err := s.summarizer.Summarize(ctx, prompt)
	if err != nil || strings.TrimSpace(summary) == "" {
		s.logger.Warn("search summarization failed, returning raw results",
			zap.String("query", query), zap.Error(err))
		return raw, nil
	}
	return strings.TrimSpace(summary), nil
}

// TopURL returns the URL of the best result for query.
func (s *Searcher) TopURL(ctx context.Context, query string) (string, error) {
	results, err := s.Results(ctx, query, 1)
	if err != nil {
		return "", err
	}
	for _, r := range results {
		if r.URL != "" {
			return r.URL, nil
		}
	}
	return "", ErrNoResults
}

// Results runs the query against the configured backend.
func (s *Searcher) Results(ctx context.Context, query string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var results []Result
	var err error
	switch s.backend {
	case BackendTavily:
		results, err = s.searchTavily(ctx, query, maxResults)
	case BackendJina:
		results, err = s.searchJina(ctx, query, maxResults)
	default:
		return nil, fmt.Errorf("unknown search backend %q", s.backend)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("search timed out after %s", s.timeout)
		}
		return nil, err
	}

	s.logger.Debug("search completed",
		zap.String("backend", s.backend),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func (s *Searcher) searchTavily(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if s.apiKey == "" {
		return nil, errors.New("tavily API key not configured (set TAVILY_API_KEY or switch to jina)")
	}

	body, err := json.Marshal(map[string]any{
		"query":        query,
		"max_results":  maxResults,
		"search_depth": "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tavilyURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	var result struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := s.doJSON(req, "Tavily", &result); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(result.Results))
	for i, r := range result.Results {
		if i >= maxResults {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: clip(r.Content, maxSnippetChars)})
	}
	return results, nil
}

func (s *Searcher) searchJina(ctx context.Context, query string, maxResults int) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.jinaURL+url.PathEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	var result struct {
		Data []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Content     string `json:"content"`
		} `json:"data"`
	}
	if err := s.doJSON(req, "Jina", &result); err != nil {
		return nil, err
	}

	results := make([]Result, 0, maxResults)
	for i, item := range result.Data {
		if i >= maxResults {
			break
		}
		snippet := item.Description
		if snippet == "" {
			snippet = clip(item.Content, maxSnippetChars)
		}
		results = append(results, Result{Title: item.Title, URL: item.URL, Snippet: snippet})
	}
	return results, nil
}

func (s *Searcher) doJSON(req *http.Request, name string, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s search error (HTTP %d): %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", name, err)
	}
	return nil
}

// formatSearchResults produces a numbered list for model consumption.
func formatSearchResults(query string, results []Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for: %s\n\n", query)

	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&sb, "   URL: %s\n", r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// clip cuts s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
