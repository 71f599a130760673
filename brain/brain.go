// Brain - per-message decision engine.
//
// Classifies every inbound message into an ActionPlan by asking a
// planner model through the fallback router.
//
// Information Hiding:
// - Tier heuristic and per-tier model chains
// - Prompt layout and context clipping
// - Plan decoding and the safe-default policy

package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/steward/llm"
	"github.com/richinex/steward/storage"
	"go.uber.org/zap"
)

const (
	// DefaultContextTurns is how many recent turns the planner sees.
	DefaultContextTurns = 10
	// ContextClipChars bounds each context turn in the prompt.
	ContextClipChars = 200
)

// MediaKind tags an attachment on an inbound message.
type MediaKind string

const (
	MediaVoice MediaKind = "voice"
	MediaImage MediaKind = "image"
)

// Media is a binary attachment delivered with a message.
type Media struct {
	Kind     MediaKind
	MIMEType string
	Data     []byte
}

// Attachment converts m for a provider call.
func (m *Media) Attachment() llm.Attachment {
	return llm.Attachment{MIMEType: m.MIMEType, Data: m.Data}
}

// ContextReader reads recent conversation turns, oldest first.
type ContextReader interface {
	ReadContext(ctx context.Context, conversationID string, limit int) ([]storage.Turn, error)
}

// Brain produces one ActionPlan per message.
type Brain struct {
	router       llm.Completer
	history      ContextReader
	routes       TierRoutes
	options      llm.CallOptions
	contextTurns int
	logger       *zap.Logger
}

// Option configures a Brain.
type Option func(*Brain)

// WithCallOptions sets the planner's generation parameters.
func WithCallOptions(opts llm.CallOptions) Option {
	return func(b *Brain) { b.options = opts }
}

// WithContextTurns sets how many recent turns go into the prompt.
func WithContextTurns(n int) Option {
	return func(b *Brain) {
		if n >= 0 {
			b.contextTurns = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Brain) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a Brain.
func New(router llm.Completer, history ContextReader, routes TierRoutes, opts ...Option) *Brain {
	b := &Brain{
		router:       router,
		history:      history,
		routes:       routes,
		contextTurns: DefaultContextTurns,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Decide returns the plan for text. It never fails: any error obtaining or
// decoding the planner reply yields a direct-answer plan carrying the error.
func (b *Brain) Decide(ctx context.Context, conversationID, text string, media *Media) (plan ActionPlan) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("planner panicked", zap.Any("panic", r))
			plan = failurePlan(fmt.Errorf("%v", r))
		}
	}()

	tier := SelectTier(text, media != nil)
	route := b.routes.For(tier)
	b.logger.Debug("planner tier selected",
		zap.String("tier", tier.String()),
		zap.String("model", route.Primary),
	)

	messages := []llm.ChatMessage{
		llm.SystemMessage(plannerSystemMessage),
		llm.UserMessage(b.buildPrompt(ctx, conversationID, text, media)),
	}

	reply, err := b.router.Complete(ctx, route, llm.Payload{
		Messages:   messages,
		Capability: llm.CapabilityChat,
		Options:    b.options,
	}, nil)
	if err != nil {
		b.logger.Warn("planner call failed", zap.Error(err))
		return failurePlan(err)
	}

	plan, err = ParsePlan(reply)
	if err != nil {
		b.logger.Warn("planner reply unparseable", zap.Error(err))
	}

	b.logger.Info("brain decision",
		zap.String("action", string(plan.Action)),
		zap.String("confidence", string(plan.Confidence)),
		zap.String("tier", tier.String()),
		zap.String("reasoning", plan.Reasoning),
	)
	return plan
}

// buildPrompt lays out the instructions, recent context and the message.
func (b *Brain) buildPrompt(ctx context.Context, conversationID, text string, media *Media) string {
	var sb strings.Builder
	sb.WriteString(plannerPrompt)
	sb.WriteString("\n\nRecent conversation context:\n")
	sb.WriteString(b.recentContext(ctx, conversationID))
	sb.WriteString("\n\nUser message: ")
	sb.WriteString(annotateMedia(text, media))
	sb.WriteString("\n")
	return sb.String()
}

// recentContext renders the last turns as "role: content" lines. A failed
// read degrades to an empty context.
func (b *Brain) recentContext(ctx context.Context, conversationID string) string {
	if b.history == nil || b.contextTurns == 0 {
		return ""
	}
	turns, err := b.history.ReadContext(ctx, conversationID, b.contextTurns)
	if err != nil {
		b.logger.Warn("failed to read planner context", zap.String("conversation_id", conversationID), zap.Error(err))
		return ""
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+truncate(t.Content, ContextClipChars))
	}
	return strings.Join(lines, "\n")
}

func annotateMedia(text string, media *Media) string {
	if media == nil {
		return text
	}
	desc := "\n\nMedia attached: " + string(media.Kind)
	switch media.Kind {
	case MediaVoice:
		return "[Voice message]" + desc + "\n\nUser message: " + text
	case MediaImage:
		return "[Image]" + desc + "\n\nUser caption: " + text
	default:
		return text + desc
	}
}

func failurePlan(err error) ActionPlan {
	msg := err.Error()
	plan := DefaultPlan()
	plan.Reasoning = fmt.Sprintf("Brain error: %s, defaulting to direct answer", truncate(msg, 50))
	plan.Response = "I encountered an issue processing your request. Please try again. Error: " + truncate(msg, 100)
	return plan
}
