// Package llm provides shared data models for backend calls.
package llm

// Chat roles understood by every envelope.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Capability selects the kind of backend operation and, through the
// provider's endpoint table, the concrete endpoint path.
type Capability string

const (
	CapabilityChat       Capability = "chat"
	CapabilityTranscribe Capability = "transcribe"
	CapabilityVision     Capability = "vision"
	CapabilityEmbeddings Capability = "embeddings"
	CapabilityFIM        Capability = "fim"
)

// ParseCapability maps a wire value to a Capability.
// Unknown or empty values resolve to chat.
func ParseCapability(s string) Capability {
	switch Capability(s) {
	case CapabilityTranscribe, CapabilityVision, CapabilityEmbeddings, CapabilityFIM:
		return Capability(s)
	default:
		return CapabilityChat
	}
}

// Attachment is a binary payload sent alongside a message (image or audio).
type Attachment struct {
	MIMEType string
	Data     []byte
}

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role    string       `json:"role"`
	Content string       `json:"content"`
	Images  []Attachment `json:"-"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    RoleSystem,
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    RoleUser,
		Content: content,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    RoleAssistant,
		Content: content,
	}
}

// UserMessageWithImage creates a user message carrying one image.
func UserMessageWithImage(content string, image Attachment) ChatMessage {
	return ChatMessage{
		Role:    RoleUser,
		Content: content,
		Images:  []Attachment{image},
	}
}

// CallOptions carries optional generation parameters.
// Zero values leave the backend default in place.
type CallOptions struct {
	Temperature *float32
	MaxTokens   int
}

// Request is a single backend call addressed to one provider and model.
type Request struct {
	Provider   string
	Model      string
	Messages   []ChatMessage
	Capability Capability
	// Audio is the payload for CapabilityTranscribe.
	Audio   *Attachment
	Options CallOptions
}

// ModelEntry is one model in a provider's catalog.
type ModelEntry struct {
	ID string
	// Free is nil when the catalog does not say; the ":free" id suffix then decides.
	Free *bool
}

// Envelope kinds select the request/response shape of a provider.
const (
	KindOpenAI    = "openai"
	KindGemini    = "gemini"
	KindAnthropic = "anthropic"
)

// Descriptor is the static description of one provider.
// It is read-only after load.
type Descriptor struct {
	Name      string
	Kind      string
	BaseURL   string
	APIKeys   []string
	Endpoints map[Capability]string
	Models    []ModelEntry
}

// IsFree reports whether model is marked free in the catalog.
func (d Descriptor) IsFree(model string) bool {
	for _, m := range d.Models {
		if m.ID != model {
			continue
		}
		if m.Free != nil {
			return *m.Free
		}
		break
	}
	return hasFreeSuffix(model)
}

func hasFreeSuffix(model string) bool {
	const suffix = ":free"
	return len(model) >= len(suffix) && model[len(model)-len(suffix):] == suffix
}
