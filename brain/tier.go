package brain

import (
	"strings"
	"unicode/utf8"

	"github.com/richinex/steward/llm"
)

// Tier is a model-selection class.
type Tier int

const (
	// TierFast is the cheap, low-latency chain for short chit-chat.
	TierFast Tier = iota
	// TierCapable handles everything else.
	TierCapable
)

func (t Tier) String() string {
	if t == TierFast {
		return "fast"
	}
	return "capable"
}

// SimpleMessageMaxChars is the longest message that can still be simple.
const SimpleMessageMaxChars = 60

var complexityKeywords = []string{
	"?", "search", "find", "latest", "news", "write", "code",
	"debug", "fix", "explain", "why", "how", "what", "compare",
	"analyze", "calculate", "translate", "summarize", "generate",
}

// IsSimple reports whether text is short, has no media and contains
// none of the complexity keywords (case-insensitive substring match).
func IsSimple(text string, hasMedia bool) bool {
	if hasMedia || utf8.RuneCountInString(text) > SimpleMessageMaxChars {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// SelectTier picks the tier for a message.
func SelectTier(text string, hasMedia bool) Tier {
	if IsSimple(text, hasMedia) {
		return TierFast
	}
	return TierCapable
}

// TierRoutes holds one model chain per tier.
type TierRoutes struct {
	Fast    llm.Route
	Capable llm.Route
}

// For returns the chain for t.
func (r TierRoutes) For(t Tier) llm.Route {
	if t == TierFast {
		return r.Fast
	}
	return r.Capable
}
