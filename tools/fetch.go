// Page Fetcher.
//
// Information Hiding:
// - URL normalization and domain allowlist
// - HTML to text conversion
// - Content clipping before summarization

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"go.uber.org/zap"
)

const (
	DefaultFetchTimeout = 30 * time.Second

	fetchMaxBodySize = 5 * 1024 * 1024
	fetchMaxLines    = 200
	fetchMaxChars    = 3000
	fetchTruncated   = "\n...(truncated)"
)

// PageFetcher downloads a web page and summarizes it.
type PageFetcher struct {
	client         *http.Client
	timeout        time.Duration
	allowedDomains []string
	summarizer     ContentSummarizer
	logger         *zap.Logger
}

// FetchOption configures a PageFetcher.
type FetchOption func(*PageFetcher)

// WithFetchHTTPClient replaces the HTTP client.
func WithFetchHTTPClient(hc *http.Client) FetchOption {
	return func(f *PageFetcher) { f.client = hc }
}

// WithFetchTimeout sets the per-fetch deadline.
func WithFetchTimeout(d time.Duration) FetchOption {
	return func(f *PageFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithAllowedDomains restricts fetches to the given domains and their subdomains.
func WithAllowedDomains(domains []string) FetchOption {
	return func(f *PageFetcher) { f.allowedDomains = domains }
}

// WithFetchLogger sets the logger.
func WithFetchLogger(logger *zap.Logger) FetchOption {
	return func(f *PageFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewPageFetcher creates a PageFetcher. A nil summarizer returns the
// clipped page text unsummarized.
func NewPageFetcher(summarizer ContentSummarizer, opts ...FetchOption) *PageFetcher {
	f := &PageFetcher{
		client:     &http.Client{},
		timeout:    DefaultFetchTimeout,
		summarizer: summarizer,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAndSummarize retrieves rawURL and returns a short summary of its text.
func (f *PageFetcher) FetchAndSummarize(ctx context.Context, rawURL string) (string, error) {
	text, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if f.summarizer == nil {
		return text, nil
	}
	summary, err := f.summarizer.Summarize(ctx, "Summarize this webpage content concisely:\n\n"+text)
	if err != nil {
		return "", fmt.Errorf("failed to summarize page: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// Fetch retrieves rawURL and returns its text, clipped to a prompt-sized excerpt.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	if !f.isDomainAllowed(target) {
		return "", fmt.Errorf("access to domain in '%s' is not allowed", target)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("request timed out (%s limit)", f.timeout)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") {
		return "", fmt.Errorf("URL does not return HTML content. Content-Type: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to convert page: %w", err)
	}

	f.logger.Debug("page fetched",
		zap.String("url", target),
		zap.Int("bytes", len(body)),
	)
	return excerpt(markdown), nil
}

// excerpt keeps the first non-empty lines and clips the result.
func excerpt(text string) string {
	lines := make([]string, 0, fetchMaxLines)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == fetchMaxLines {
			break
		}
	}
	out := strings.Join(lines, "\n")
	if r := []rune(out); len(r) > fetchMaxChars {
		out = string(r[:fetchMaxChars]) + fetchTruncated
	}
	return out
}

func normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q", rawURL)
	}
	return u.String(), nil
}

// isDomainAllowed checks the URL's host against the allowlist.
func (f *PageFetcher) isDomainAllowed(urlStr string) bool {
	if len(f.allowedDomains) == 0 {
		return true
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := u.Hostname()
	for _, domain := range f.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
