package tools

import (
	"context"
	"strings"

	"github.com/richinex/steward/llm"
	"github.com/richinex/steward/storage"
	"go.uber.org/zap"
)

const (
	summarizeSystemPrompt = "You summarize content concisely. Be brief."

	historySystemPrompt = "You are a conversation history summarizer. " +
		"Summarize the assistant response in 1-2 sentences capturing: " +
		"what was provided, key details, function/class names if code. " +
		"Be specific enough that a follow-up request like 'fix that code' " +
		"or 'tell me more' makes sense. " +
		"Return only the summary, no preamble."
)

// LLMSummarizer sends summarization prompts through a router route.
type LLMSummarizer struct {
	router llm.Completer
	route  llm.Route
	logger *zap.Logger
}

// NewLLMSummarizer creates a summarizer that calls route through router.
func NewLLMSummarizer(router llm.Completer, route llm.Route, logger *zap.Logger) *LLMSummarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMSummarizer{router: router, route: route, logger: logger}
}

// Summarize answers prompt briefly.
func (s *LLMSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	return s.complete(ctx, summarizeSystemPrompt, prompt)
}

// SummarizeForHistory condenses an assistant reply for stored context.
func (s *LLMSummarizer) SummarizeForHistory(ctx context.Context, text string) (string, error) {
	return s.complete(ctx, historySystemPrompt, "Summarize this assistant response:\n\n"+text)
}

func (s *LLMSummarizer) complete(ctx context.Context, system, user string) (string, error) {
	out, err := s.router.Complete(ctx, s.route, llm.Payload{
		Messages: []llm.ChatMessage{
			llm.SystemMessage(system),
			llm.UserMessage(user),
		},
		Capability: llm.CapabilityChat,
	}, nil)
	if err != nil {
		s.logger.Debug("summarization failed", zap.String("route", s.route.Primary), zap.Error(err))
		return "", err
	}
	return strings.TrimSpace(out), nil
}

var (
	_ ContentSummarizer  = (*LLMSummarizer)(nil)
	_ storage.Summarizer = (*LLMSummarizer)(nil)
)
