// Gemini native envelope using google.golang.org/genai.
//
// Information Hiding:
// - System instruction carried outside the message list
// - "assistant" role renamed to "model"
// - Inline image bytes for vision
// - Empty candidates treated as a content-safety block

package llm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// SafetyBlockedResponse is returned in place of text when Gemini withholds a reply.
const SafetyBlockedResponse = "Response blocked by safety filter"

func (c *Client) callGemini(ctx context.Context, t target, req Request) (string, error) {
	if req.Capability == CapabilityTranscribe {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, "transcription is not supported by the native envelope")
	}

	cfg := &genai.ClientConfig{
		APIKey:     t.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if t.desc.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: t.desc.BaseURL}
	}

	// Keys rotate per call, so the SDK client is per call too.
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, err.Error())
	}

	contents, systemInstruction := convertToGeminiMessages(req.Messages)

	config := &genai.GenerateContentConfig{}
	if req.Options.Temperature != nil {
		config.Temperature = genai.Ptr(*req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", geminiError(err, req)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return SafetyBlockedResponse, nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		return SafetyBlockedResponse, nil
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", newProviderError(ErrEmptyResponse, req.Provider, req.Model, 0, "candidate has no text")
	}
	return sb.String(), nil
}

func geminiError(err error, req Request) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newProviderError(ErrTransport, req.Provider, req.Model, apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return newProviderError(ErrTransport, req.Provider, req.Model, apiErrPtr.Code, apiErrPtr.Message)
	}
	reason := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "request timed out"
	}
	return newProviderError(ErrTransport, req.Provider, req.Model, 0, reason)
}

// convertToGeminiMessages splits out system messages and renames roles.
func convertToGeminiMessages(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var system []string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			content := genai.NewContentFromText(msg.Content, genai.RoleUser)
			for _, img := range msg.Images {
				mime := img.MIMEType
				if mime == "" {
					mime = "image/jpeg"
				}
				content.Parts = append(content.Parts, genai.NewPartFromBytes(img.Data, mime))
			}
			contents = append(contents, content)
		}
	}

	return contents, strings.Join(system, "\n\n")
}
