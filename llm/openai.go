// OpenAI-compatible envelope shared by Groq, OpenRouter, DeepSeek and friends.
//
// Information Hiding:
// - Bearer-token authentication
// - Chat Completions request/response shape (go-openai wire types)
// - Data-URI image parts for vision
// - Multipart upload for transcription

package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const maxResponseBytes = 4 << 20

func (c *Client) callOpenAI(ctx context.Context, t target, req Request) (string, error) {
	if req.Capability == CapabilityTranscribe {
		return c.transcribeOpenAI(ctx, t, req)
	}

	body := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  convertToOpenAIMessages(req.Messages),
		MaxTokens: req.Options.MaxTokens,
	}
	if req.Options.Temperature != nil {
		body.Temperature = *req.Options.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, fmt.Sprintf("failed to encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	raw, err := c.send(httpReq, req)
	if err != nil {
		return "", err
	}

	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", newProviderError(ErrEmptyResponse, req.Provider, req.Model, 0, "undecodable response body")
	}
	if len(resp.Choices) == 0 {
		return "", newProviderError(ErrEmptyResponse, req.Provider, req.Model, 0, "no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// transcribeOpenAI uploads audio to a Whisper-style endpoint.
func (c *Client) transcribeOpenAI(ctx context.Context, t target, req Request) (string, error) {
	if req.Audio == nil || len(req.Audio.Data) == 0 {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, "no audio payload")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model", req.Model); err != nil {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, err.Error())
	}
	part, err := w.CreateFormFile("file", audioFileName(req.Audio.MIMEType))
	if err != nil {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, err.Error())
	}
	if _, err := part.Write(req.Audio.Data); err != nil {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, err.Error())
	}
	if err := w.Close(); err != nil {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &buf)
	if err != nil {
		return "", newProviderError(ErrTransport, req.Provider, req.Model, 0, err.Error())
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	raw, err := c.send(httpReq, req)
	if err != nil {
		return "", err
	}

	var resp openai.AudioResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Text == "" {
		return "", newProviderError(ErrEmptyResponse, req.Provider, req.Model, 0, "no transcript in response")
	}
	return resp.Text, nil
}

// send executes the request and returns the body of a 2xx response.
func (c *Client) send(httpReq *http.Request, req Request) ([]byte, error) {
	resp, err := c.doer.Do(httpReq)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "request timed out"
		}
		return nil, newProviderError(ErrTransport, req.Provider, req.Model, 0, reason)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, newProviderError(ErrTransport, req.Provider, req.Model, resp.StatusCode, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newProviderError(ErrTransport, req.Provider, req.Model, resp.StatusCode, errorReason(raw))
	}
	return raw, nil
}

// errorReason prefers the backend's own error message over the raw body.
func errorReason(raw []byte) string {
	var er openai.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != nil && er.Error.Message != "" {
		return er.Error.Message
	}
	return string(raw)
}

func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Images) == 0 {
			result = append(result, openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
			continue
		}

		parts := []openai.ChatMessagePart{{
			Type: openai.ChatMessagePartTypeText,
			Text: msg.Content,
		}}
		for _, img := range msg.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: dataURI(img),
				},
			})
		}
		result = append(result, openai.ChatCompletionMessage{
			Role:         msg.Role,
			MultiContent: parts,
		})
	}
	return result
}

func dataURI(a Attachment) string {
	mime := a.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

func audioFileName(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/wav", "audio/x-wav":
		return "audio.wav"
	case "audio/mp4", "audio/m4a":
		return "audio.m4a"
	default:
		return "audio.ogg"
	}
}
