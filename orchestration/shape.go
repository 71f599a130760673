package orchestration

import "strings"

const (
	noResponse      = "No response."
	truncatedMarker = "\n\n[Truncated...]"
)

// truncateResponse enforces the character budget. Over-long text keeps its
// first max-100 runes followed by a marker; the cut is not word-aware.
func truncateResponse(text string, max int) string {
	if strings.TrimSpace(text) == "" {
		return noResponse
	}
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max-100]) + truncatedMarker
}

// splitMessage breaks text into chunks of at most size runes, preferring
// to cut after a newline in the second half of a chunk.
func splitMessage(text string, size int) []string {
	r := []rune(text)
	if size <= 0 || len(r) <= size {
		return []string{text}
	}

	var chunks []string
	for len(r) > size {
		cut := size
		for i := size - 1; i >= size/2; i-- {
			if r[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(r[:cut]))
		r = r[cut:]
	}
	if len(r) > 0 {
		chunks = append(chunks, string(r))
	}
	return chunks
}
