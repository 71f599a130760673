// Provider Client - one completed text response from one named backend.
//
// Information Hiding:
// - Per-provider key rotation cursor
// - Capability to endpoint path resolution
// - Free-tier policy check
// - Which envelope (OpenAI-compatible, Gemini, Anthropic) a provider speaks

package llm

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpointPath is used for any capability a provider does not map.
const DefaultEndpointPath = "/chat/completions"

// DefaultCallTimeout bounds a single backend call.
const DefaultCallTimeout = 60 * time.Second

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Caller is anything that performs a single backend call.
type Caller interface {
	Call(ctx context.Context, req Request) (string, error)
}

// Client calls a backend by provider name.
// It is safe for concurrent use.
type Client struct {
	providers  map[string]*providerState
	freeOnly   bool
	timeout    time.Duration
	doer       Doer
	httpClient *http.Client
	logger     *zap.Logger
}

type providerState struct {
	desc Descriptor

	mu     sync.Mutex
	cursor int
}

// nextKey returns the current key and advances the cursor.
func (s *providerState) nextKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.desc.APIKeys[s.cursor%len(s.desc.APIKeys)]
	s.cursor = (s.cursor + 1) % len(s.desc.APIKeys)
	return key
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithFreeOnly enables or disables the paid-calls-disabled policy.
func WithFreeOnly(freeOnly bool) ClientOption {
	return func(c *Client) { c.freeOnly = freeOnly }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDoer replaces the transport used by OpenAI-compatible providers.
func WithDoer(d Doer) ClientOption {
	return func(c *Client) { c.doer = d }
}

// WithHTTPClient replaces the transport for every envelope.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
		c.doer = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client over the given provider descriptors.
func NewClient(descs []Descriptor, opts ...ClientOption) *Client {
	c := &Client{
		providers:  make(map[string]*providerState, len(descs)),
		timeout:    DefaultCallTimeout,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, d := range descs {
		c.providers[d.Name] = &providerState{desc: d}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = c.httpClient
	}
	return c
}

// Descriptor returns the descriptor for a provider.
func (c *Client) Descriptor(name string) (Descriptor, bool) {
	st, ok := c.providers[name]
	if !ok {
		return Descriptor{}, false
	}
	return st.desc, true
}

// FreeOnly reports whether the paid-calls-disabled policy is active.
func (c *Client) FreeOnly() bool {
	return c.freeOnly
}

// target is a fully resolved call destination.
type target struct {
	desc     Descriptor
	apiKey   string
	endpoint string
}

// Call sends one request to one backend. No retries happen here.
func (c *Client) Call(ctx context.Context, req Request) (string, error) {
	st, ok := c.providers[req.Provider]
	if !ok {
		return "", newProviderError(ErrUnknownProvider, req.Provider, req.Model, 0, "")
	}
	desc := st.desc
	if len(desc.APIKeys) == 0 {
		return "", newProviderError(ErrMissingCredentials, req.Provider, req.Model, 0, "no API keys configured")
	}
	if c.freeOnly && !desc.IsFree(req.Model) {
		return "", newProviderError(ErrPolicyViolation, req.Provider, req.Model, 0, "paid models are disabled")
	}
	if req.Capability == "" {
		req.Capability = CapabilityChat
	}

	t := target{
		desc:     desc,
		apiKey:   st.nextKey(),
		endpoint: resolveEndpoint(desc, req.Capability),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var (
		out string
		err error
	)
	switch desc.Kind {
	case KindGemini:
		out, err = c.callGemini(ctx, t, req)
	case KindAnthropic:
		out, err = c.callAnthropic(ctx, t, req)
	default:
		out, err = c.callOpenAI(ctx, t, req)
	}

	c.logger.Debug("provider call",
		zap.String("provider", req.Provider),
		zap.String("model", req.Model),
		zap.String("capability", string(req.Capability)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	return out, err
}

// resolveEndpoint joins the base URL with the capability path.
func resolveEndpoint(desc Descriptor, capability Capability) string {
	path, ok := desc.Endpoints[capability]
	if !ok || path == "" {
		path = DefaultEndpointPath
	}
	return strings.TrimRight(desc.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

var _ Caller = (*Client)(nil)
