// Fallback Router - primary provider/model with ordered fallbacks.
//
// Information Hiding:
// - "provider/model" reference parsing
// - Which errors are eligible for fallback
// - Composite error on chain exhaustion

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ModelRef is a parsed "provider/model" reference.
type ModelRef struct {
	Provider string
	Model    string
}

func (r ModelRef) String() string {
	return r.Provider + "/" + r.Model
}

// ParseModelRef splits ref on its first "/". Without a separator the
// default provider is assumed.
func ParseModelRef(ref, defaultProvider string) (ModelRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ModelRef{}, fmt.Errorf("%w: empty reference", ErrInvalidModelRef)
	}
	provider, model, found := strings.Cut(ref, "/")
	if !found {
		provider, model = defaultProvider, ref
	}
	if provider == "" || model == "" {
		return ModelRef{}, fmt.Errorf("%w: %q", ErrInvalidModelRef, ref)
	}
	return ModelRef{Provider: provider, Model: model}, nil
}

// Route is a primary reference and its ordered fallbacks.
type Route struct {
	Primary   string
	Fallbacks []string
}

// WithPrimary returns a route whose primary is ref and whose fallbacks are
// r's full chain. An empty ref returns r unchanged.
func (r Route) WithPrimary(ref string) Route {
	if ref == "" {
		return r
	}
	chain := make([]string, 0, len(r.Fallbacks)+1)
	if r.Primary != "" && r.Primary != ref {
		chain = append(chain, r.Primary)
	}
	for _, fb := range r.Fallbacks {
		if fb != ref {
			chain = append(chain, fb)
		}
	}
	return Route{Primary: ref, Fallbacks: chain}
}

// Payload is everything but the destination of a call.
type Payload struct {
	Messages   []ChatMessage
	Capability Capability
	Audio      *Attachment
	Options    CallOptions
}

// Completer is the Router's public surface.
type Completer interface {
	Complete(ctx context.Context, route Route, payload Payload, n Notifier) (string, error)
}

// Router wraps a Caller with primary-then-fallback semantics.
type Router struct {
	caller          Caller
	defaultProvider string
	logger          *zap.Logger
}

// NewRouter creates a router. A nil logger is replaced by a no-op logger.
func NewRouter(caller Caller, defaultProvider string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{caller: caller, defaultProvider: defaultProvider, logger: logger}
}

// DefaultProvider returns the provider assumed for bare model references.
func (r *Router) DefaultProvider() string {
	return r.defaultProvider
}

// Complete tries the primary, then each fallback in order, stopping at the
// first success. Only provider errors move on to the next candidate.
func (r *Router) Complete(ctx context.Context, route Route, payload Payload, n Notifier) (string, error) {
	refs := make([]ModelRef, 0, len(route.Fallbacks)+1)
	for _, s := range append([]string{route.Primary}, route.Fallbacks...) {
		ref, err := ParseModelRef(s, r.defaultProvider)
		if err != nil {
			return "", err
		}
		refs = append(refs, ref)
	}

	var primaryErr error
	var fallbackErrs []error

	for i, ref := range refs {
		if i == 0 {
			SafeNotify(ctx, n, r.logger, fmt.Sprintf("Asking %s...", ref))
		} else {
			SafeNotify(ctx, n, r.logger, fmt.Sprintf("Trying fallback %s...", ref))
		}

		out, err := r.caller.Call(ctx, Request{
			Provider:   ref.Provider,
			Model:      ref.Model,
			Messages:   payload.Messages,
			Capability: payload.Capability,
			Audio:      payload.Audio,
			Options:    payload.Options,
		})
		if err == nil {
			return out, nil
		}

		var pe *ProviderError
		if !errors.As(err, &pe) {
			return "", err
		}

		SafeNotify(ctx, n, r.logger, fmt.Sprintf("%s failed.", ref))
		r.logger.Warn("provider attempt failed",
			zap.String("provider", ref.Provider),
			zap.String("model", ref.Model),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		if i == 0 {
			primaryErr = err
		} else {
			fallbackErrs = append(fallbackErrs, err)
		}
	}

	if len(fallbackErrs) == 0 {
		return "", primaryErr
	}
	return "", &FallbackError{Primary: primaryErr, Fallbacks: fallbackErrs}
}

var _ Completer = (*Router)(nil)
