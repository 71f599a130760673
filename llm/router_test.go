package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCaller answers per provider/model and records the order of calls.
type scriptedCaller struct {
	mu      sync.Mutex
	order   []string
	results map[string]string
	errs    map[string]error
}

func (s *scriptedCaller) Call(_ context.Context, req Request) (string, error) {
	key := req.Provider + "/" + req.Model
	s.mu.Lock()
	s.order = append(s.order, key)
	s.mu.Unlock()
	if err, ok := s.errs[key]; ok {
		return "", err
	}
	return s.results[key], nil
}

func failure(provider, model, reason string) error {
	return newProviderError(ErrTransport, provider, model, 503, reason)
}

func TestParseModelRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		model    string
	}{
		{"groq/llama-3.3-70b-versatile", "groq", "llama-3.3-70b-versatile"},
		{"openrouter/mistralai/mistral-7b-instruct:free", "openrouter", "mistralai/mistral-7b-instruct:free"},
		{"gemini-2.5-flash", "google", "gemini-2.5-flash"},
	}
	for _, tt := range tests {
		ref, err := ParseModelRef(tt.in, "google")
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.provider, ref.Provider, tt.in)
		assert.Equal(t, tt.model, ref.Model, tt.in)
	}

	_, err := ParseModelRef("", "google")
	assert.True(t, errors.Is(err, ErrInvalidModelRef))
	_, err = ParseModelRef("groq/", "google")
	assert.True(t, errors.Is(err, ErrInvalidModelRef))
}

func TestRouterPrimaryFailsFallbackSucceeds(t *testing.T) {
	caller := &scriptedCaller{
		results: map[string]string{"b/m2": "from fallback"},
		errs:    map[string]error{"a/m1": failure("a", "m1", "down")},
	}
	r := NewRouter(caller, "a", nil)

	out, err := r.Complete(context.Background(), Route{Primary: "a/m1", Fallbacks: []string{"b/m2", "c/m3"}}, Payload{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", out)
	assert.Equal(t, []string{"a/m1", "b/m2"}, caller.order, "primary exactly once, then the first fallback")
}

func TestRouterAllFailComposite(t *testing.T) {
	caller := &scriptedCaller{
		errs: map[string]error{
			"a/m1": failure("a", "m1", "primary boom"),
			"b/m2": failure("b", "m2", "fallback boom"),
		},
	}
	r := NewRouter(caller, "a", nil)

	_, err := r.Complete(context.Background(), Route{Primary: "a/m1", Fallbacks: []string{"b/m2"}}, Payload{}, nil)
	require.Error(t, err)

	var fe *FallbackError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "primary boom")
	assert.Contains(t, err.Error(), "fallback boom")
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestRouterNonProviderErrorSkipsFallback(t *testing.T) {
	configErr := errors.New("bad persona table")
	caller := &scriptedCaller{
		results: map[string]string{"b/m2": "never"},
		errs:    map[string]error{"a/m1": configErr},
	}
	r := NewRouter(caller, "a", nil)

	_, err := r.Complete(context.Background(), Route{Primary: "a/m1", Fallbacks: []string{"b/m2"}}, Payload{}, nil)
	assert.Equal(t, configErr, err)
	assert.Equal(t, []string{"a/m1"}, caller.order)
}

func TestRouterInvalidRefFailsBeforeAnyCall(t *testing.T) {
	caller := &scriptedCaller{}
	r := NewRouter(caller, "a", nil)

	_, err := r.Complete(context.Background(), Route{Primary: "", Fallbacks: []string{"b/m2"}}, Payload{}, nil)
	assert.True(t, errors.Is(err, ErrInvalidModelRef))
	assert.Empty(t, caller.order)
}

func TestRouterNotifierFailuresAreSwallowed(t *testing.T) {
	caller := &scriptedCaller{
		results: map[string]string{"b/m2": "ok"},
		errs:    map[string]error{"a/m1": failure("a", "m1", "down")},
	}
	r := NewRouter(caller, "a", nil)

	var statuses []string
	failing := NotifierFunc(func(_ context.Context, status string) error {
		statuses = append(statuses, status)
		return errors.New("chat transport gone")
	})
	out, err := r.Complete(context.Background(), Route{Primary: "a/m1", Fallbacks: []string{"b/m2"}}, Payload{}, failing)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"Asking a/m1...", "a/m1 failed.", "Trying fallback b/m2..."}, statuses)

	panicking := NotifierFunc(func(context.Context, string) error { panic("boom") })
	out, err = r.Complete(context.Background(), Route{Primary: "b/m2"}, Payload{}, panicking)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestRouterReportsEachFailedAttempt(t *testing.T) {
	caller := &scriptedCaller{
		errs: map[string]error{
			"a/m1": failure("a", "m1", "down"),
			"b/m2": failure("b", "m2", "rate limited"),
		},
	}
	r := NewRouter(caller, "a", nil)

	var statuses []string
	n := NotifierFunc(func(_ context.Context, status string) error {
		statuses = append(statuses, status)
		return nil
	})
	_, err := r.Complete(context.Background(), Route{Primary: "a/m1", Fallbacks: []string{"b/m2"}}, Payload{}, n)
	require.Error(t, err)
	assert.Equal(t, []string{"Asking a/m1...", "a/m1 failed.", "Trying fallback b/m2...", "b/m2 failed."}, statuses)
}

func TestRouteWithPrimary(t *testing.T) {
	base := Route{Primary: "a/1", Fallbacks: []string{"b/2", "c/3"}}

	got := base.WithPrimary("b/2")
	assert.Equal(t, "b/2", got.Primary)
	assert.Equal(t, []string{"a/1", "c/3"}, got.Fallbacks)

	assert.Equal(t, base, base.WithPrimary(""))
}
