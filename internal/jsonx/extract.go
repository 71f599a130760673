// Package jsonx provides JSON extraction utilities for parsing model replies.
//
// Models often return JSON wrapped in markdown fences or surrounded by
// commentary. This package extracts and decodes the object from such replies.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be found in a reply.
var ErrNoJSON = errors.New("no valid JSON object")

// extractJSON finds and returns the JSON portion of a response string.
// It handles common reply patterns:
// 1. Pure JSON response - returns the full response
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON object embedded in text - finds first '{' and last '}'
//
// Limitations:
// - Only handles JSON objects, not arrays
// - Uses simple brace matching, not full JSON parsing
func extractJSON(response string) (string, error) {
	response = StripCodeFence(response)

	var probe any
	firstErr := json.Unmarshal([]byte(response), &probe)
	if firstErr == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	if start != -1 {
		end := strings.LastIndex(response, "}")
		if end != -1 && end > start {
			jsonStr := response[start : end+1]
			if err := json.Unmarshal([]byte(jsonStr), &probe); err == nil {
				return jsonStr, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %v", ErrNoJSON, firstErr)
}

// StripCodeFence removes markdown code block markers from a response.
// Handles patterns like ```json\n...\n``` or ```\n...\n```
func StripCodeFence(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimSpace(trimmed)
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	return trimmed
}

// Decode extracts and parses a JSON object from a reply.
func Decode[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// Fields extracts a JSON object and returns its top-level members
// undecoded, so callers can tell absent fields from null ones.
func Fields(response string) (map[string]json.RawMessage, error) {
	return Decode[map[string]json.RawMessage](response)
}

