// Anthropic envelope using the official anthropic-sdk-go.
//
// Information Hiding:
// - x-api-key authentication (handled by the SDK)
// - Messages API request/response shape
// - SDK-level retries disabled; fallback belongs to the Router

package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

func (c *Client) callAnthropic(ctx context.Context, t target, req Request) (string, error) {
	if req.Capability == CapabilityTranscribe {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, "transcription is not supported by the anthropic envelope")
	}
	for _, msg := range req.Messages {
		if len(msg.Images) > 0 {
			return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, "image attachments are not supported by the anthropic envelope")
		}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(t.apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(c.httpClient),
	}
	if t.desc.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(t.desc.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	messages, systemPrompt := convertToAnthropicMessages(req.Messages)

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*req.Options.Temperature))
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", newProviderError(ErrTransport, req.Provider, req.Model, apiErr.StatusCode, apiErr.Error())
		}
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "request timed out"
		}
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, reason)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(variant.Text)
		}
	}
	if sb.Len() == 0 {
		return "", newProviderError(ErrEmptyResponse, req.Provider, req.Model, 0, "no text blocks in response")
	}
	return sb.String(), nil
}

// convertToAnthropicMessages splits out the system prompt.
func convertToAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var result []anthropic.MessageParam
	var system []string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return result, strings.Join(system, "\n\n")
}
