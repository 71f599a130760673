package llm

import (
	"context"

	"go.uber.org/zap"
)

// Notifier receives human-readable progress updates.
// Implementations may fail; callers never let that affect the outcome.
type Notifier interface {
	Notify(ctx context.Context, status string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, status string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, status string) error {
	return f(ctx, status)
}

// SafeNotify delivers status to n, swallowing errors and panics.
// A nil Notifier is a no-op.
func SafeNotify(ctx context.Context, n Notifier, logger *zap.Logger, status string) {
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Warn("progress notifier panicked", zap.Any("panic", r))
		}
	}()
	if err := n.Notify(ctx, status); err != nil && logger != nil {
		logger.Debug("progress notifier failed", zap.Error(err))
	}
}
