// Package orchestration executes action plans end-to-end.
//
// Types and collaborator contracts used by the Orchestrator.
package orchestration

import (
	"context"
	"strings"

	"github.com/richinex/steward/brain"
	"github.com/richinex/steward/llm"
	"github.com/richinex/steward/storage"
)

// Planner turns a message into an ActionPlan.
type Planner interface {
	Decide(ctx context.Context, conversationID, text string, media *brain.Media) brain.ActionPlan
}

// Store is the slice of the session store the Orchestrator needs.
type Store interface {
	GetSession(ctx context.Context, id string) (storage.Session, error)
	UpdateSession(ctx context.Context, id string, upd storage.SessionUpdate) error
	AppendExchange(ctx context.Context, id, userText, reply string) error
	ReadContext(ctx context.Context, id string, limit int) ([]storage.Turn, error)
	ListNotes(ctx context.Context, id string, limit int) ([]storage.Note, error)
	Shortcut(ctx context.Context, id, trigger string) (string, bool, error)
	LogCommand(ctx context.Context, id, requestID, command, output string) error
}

// Searcher queries the web.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
	TopURL(ctx context.Context, query string) (string, error)
}

// PageFetcher retrieves and summarizes a web page.
type PageFetcher interface {
	FetchAndSummarize(ctx context.Context, url string) (string, error)
}

// Request is one inbound message.
type Request struct {
	ConversationID string
	Text           string
	Media          *brain.Media
}

// Reply is what the transport renders. Messages is never empty.
type Reply struct {
	RequestID string
	Messages  []string
	Plan      brain.ActionPlan
}

// Text joins the reply messages.
func (r Reply) Text() string {
	return strings.Join(r.Messages, "\n")
}

// UserInputError is a problem with the request itself. Its message is
// shown to the user verbatim.
type UserInputError struct {
	Message string
}

func (e *UserInputError) Error() string {
	return e.Message
}

func userInputError(msg string) error {
	return &UserInputError{Message: msg}
}

// Persona is a named model configuration for specialist calls.
type Persona struct {
	Route        llm.Route
	Options      llm.CallOptions
	SystemPrompt string
}

// Config holds the Orchestrator's routes and limits.
type Config struct {
	// Capable answers directly and synthesizes from search results.
	Capable    llm.Route
	Transcribe llm.Route
	Vision     llm.Route
	Code       llm.Route
	Notes      llm.Route

	Personas       map[string]Persona
	DefaultPersona string
	Personality    string

	MaxResponseChars int
	// MaxMessageChars splits long replies into several messages. 0 disables splitting.
	MaxMessageChars int
	ContextTurns    int
	SearchResults   int
}

const (
	defaultMaxResponseChars = 4000
	defaultContextTurns     = 40
	defaultSearchResults    = 5
	defaultPersonality      = "You are Steward, a concise personal assistant."
	notesLimit              = 20
)

func (c Config) withDefaults() Config {
	if c.MaxResponseChars <= 100 {
		c.MaxResponseChars = defaultMaxResponseChars
	}
	if c.ContextTurns <= 0 {
		c.ContextTurns = defaultContextTurns
	}
	if c.SearchResults <= 0 {
		c.SearchResults = defaultSearchResults
	}
	if c.Personality == "" {
		c.Personality = defaultPersonality
	}
	if c.DefaultPersona == "" {
		c.DefaultPersona = "default"
	}
	return c
}

// persona returns the named persona, falling back to the default persona
// and then to the capable route.
func (c Config) persona(name string) (Persona, string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if p, ok := c.Personas[name]; ok && name != "" {
		return p, name
	}
	if p, ok := c.Personas[c.DefaultPersona]; ok {
		return p, c.DefaultPersona
	}
	return Persona{Route: c.Capable}, c.DefaultPersona
}
