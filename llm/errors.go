package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure returned by Client.Call is a *ProviderError
// whose Unwrap exposes one of these, so errors.Is works on the kind.
var (
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrPolicyViolation    = errors.New("policy violation")
	ErrEmptyResponse      = errors.New("empty response")
	ErrTransport          = errors.New("provider call failed")

	// ErrInvalidModelRef is a configuration error; it never triggers fallback.
	ErrInvalidModelRef = errors.New("invalid model reference")
)

// ProviderError is a failure attributable to one provider/model attempt.
type ProviderError struct {
	Provider string
	Model    string
	// Status is the HTTP status code, 0 when no response was received.
	Status int
	Reason string
	Err    error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		b.WriteString("/")
		b.WriteString(e.Model)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Unwrap returns the error kind.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(kind error, provider, model string, status int, reason string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Model:    model,
		Status:   status,
		Reason:   shorten(reason, 200),
		Err:      kind,
	}
}

// FallbackError reports a fully exhausted fallback chain.
type FallbackError struct {
	Primary   error
	Fallbacks []error
}

func (e *FallbackError) Error() string {
	if len(e.Fallbacks) == 0 {
		return fmt.Sprintf("primary failed: %v", e.Primary)
	}
	parts := make([]string, len(e.Fallbacks))
	for i, err := range e.Fallbacks {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("primary failed: %v; fallback also failed: %s", e.Primary, strings.Join(parts, "; "))
}

// Unwrap exposes every attempt's error to errors.Is/As.
func (e *FallbackError) Unwrap() []error {
	return append([]error{e.Primary}, e.Fallbacks...)
}

// IsProviderError reports whether err came from a provider attempt.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
