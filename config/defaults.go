package config

import (
	"strings"
	"time"

	"github.com/richinex/steward/llm"
)

// DefaultAgent is the persona used when none is named or the name is unknown.
const DefaultAgent = "default"

// Default values.
const (
	DefaultHistoryWindow     = 20
	DefaultMaxResponseChars  = 4000
	DefaultChatTimeout       = 60 * time.Second
	DefaultSearchTimeout     = 30 * time.Second
	DefaultCompactThreshold  = 500
	DefaultSummaryInputChars = 3000
	DefaultSearchResults     = 5
	DefaultDBPath            = "steward.db"
	DefaultPersonality       = "You are Steward, a concise and helpful personal assistant."
)

// knownProvider is a built-in provider table.
type knownProvider struct {
	kind      string
	baseURL   string
	endpoints map[string]string
	models    []ModelConfig
}

// Built-in endpoint tables for providers the assistant knows about.
// A config file may override any of these fields.
var knownProviders = map[string]knownProvider{
	"groq": {
		kind:    llm.KindOpenAI,
		baseURL: "https://api.groq.com",
		endpoints: map[string]string{
			"chat":       "/openai/v1/chat/completions",
			"transcribe": "/openai/v1/audio/transcriptions",
		},
		models: []ModelConfig{
			{ID: "llama-3.3-70b-versatile", Free: boolPtr(true)},
			{ID: "whisper-large-v3", Free: boolPtr(true)},
		},
	},
	"google": {
		kind: llm.KindGemini,
		endpoints: map[string]string{
			"chat":       "/v1beta/openai/chat/completions",
			"embeddings": "/v1beta/openai/embeddings",
			"vision":     "/v1beta/openai/chat/completions",
		},
		models: []ModelConfig{
			{ID: "gemini-2.5-flash", Free: boolPtr(true)},
		},
	},
	"openrouter": {
		kind:    llm.KindOpenAI,
		baseURL: "https://openrouter.ai",
		endpoints: map[string]string{
			"chat":       "/api/v1/chat/completions",
			"embeddings": "/api/v1/embeddings",
		},
		models: []ModelConfig{
			{ID: "mistralai/mistral-7b-instruct:free"},
		},
	},
	"deepseek": {
		kind:    llm.KindOpenAI,
		baseURL: "https://api.deepseek.com",
		endpoints: map[string]string{
			"chat": "/v1/chat/completions",
			"fim":  "/beta/completions",
		},
		models: []ModelConfig{
			{ID: "deepseek-chat", Free: boolPtr(false)},
		},
	},
	"anthropic": {
		kind:    llm.KindAnthropic,
		baseURL: "https://api.anthropic.com",
	},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"gemini": "google",
	"claude": "anthropic",
}

func boolPtr(b bool) *bool { return &b }

func float32Ptr(f float32) *float32 { return &f }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultProvider: "openrouter",
		Providers: map[string]ProviderConfig{
			"groq":       {},
			"google":     {},
			"openrouter": {},
			"deepseek":   {},
		},
		Agents: map[string]AgentConfig{
			DefaultAgent: {
				Description: "General assistant",
				Model:       "groq/llama-3.3-70b-versatile",
				Fallbacks:   []string{"openrouter/mistralai/mistral-7b-instruct:free"},
				Temperature: float32Ptr(0.7),
				MaxTokens:   1024,
			},
			"reason": {
				Description: "Step-by-step analysis and maths",
				Model:       "deepseek/deepseek-chat",
				Fallbacks:   []string{"groq/llama-3.3-70b-versatile"},
				Temperature: float32Ptr(0.3),
				MaxTokens:   2048,
			},
			"creative": {
				Description:  "Stories, poems and brainstorming",
				Model:        "openrouter/mistralai/mistral-7b-instruct:free",
				Fallbacks:    []string{"groq/llama-3.3-70b-versatile"},
				Temperature:  float32Ptr(0.9),
				MaxTokens:    1024,
				SystemPrompt: "You are a playful, imaginative writer.",
			},
			"code": {
				Description:  "Programming help",
				Model:        "deepseek/deepseek-chat",
				Fallbacks:    []string{"groq/llama-3.3-70b-versatile"},
				Temperature:  float32Ptr(0.2),
				MaxTokens:    2048,
				SystemPrompt: "You are a senior software engineer. Prefer short, working code.",
			},
		},
		Brain: BrainConfig{
			Fast: RouteSpec{
				Primary:   "groq/llama-3.3-70b-versatile",
				Fallbacks: []string{"openrouter/mistralai/mistral-7b-instruct:free"},
			},
			Capable: RouteSpec{
				Primary: "google/gemini-2.5-flash",
				Fallbacks: []string{
					"groq/llama-3.3-70b-versatile",
					"openrouter/mistralai/mistral-7b-instruct:free",
				},
			},
			Temperature: float32Ptr(0.3),
			MaxTokens:   1024,
		},
		Routes: RouteConfig{
			Transcribe: RouteSpec{Primary: "groq/whisper-large-v3"},
			Vision: RouteSpec{
				Primary:   "google/gemini-2.5-flash",
				Fallbacks: []string{"groq/llama-3.3-70b-versatile"},
			},
			Code: RouteSpec{
				Primary:   "deepseek/deepseek-chat",
				Fallbacks: []string{"groq/llama-3.3-70b-versatile"},
			},
			Notes: RouteSpec{Primary: "openrouter/mistralai/mistral-7b-instruct:free"},
			Summary: RouteSpec{
				Primary:   "groq/llama-3.3-70b-versatile",
				Fallbacks: []string{"openrouter/mistralai/mistral-7b-instruct:free"},
			},
		},
		Settings: Settings{
			MaxResponseChars: DefaultMaxResponseChars,
			HistoryWindow:    DefaultHistoryWindow,
			ChatTimeout:      DefaultChatTimeout,
			Personality:      DefaultPersonality,
		},
		Storage: StorageConfig{
			Path:              DefaultDBPath,
			CompactThreshold:  DefaultCompactThreshold,
			SummaryInputChars: DefaultSummaryInputChars,
		},
		Search: SearchConfig{
			MaxResults: DefaultSearchResults,
			Timeout:    DefaultSearchTimeout,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// applyKnownProviders folds aliases into canonical names, in provider keys
// and in model references, and fills in kind, base URL, endpoint table and
// model catalog gaps from the built-in tables.
func (c *Config) applyKnownProviders() {
	for alias, canonical := range providerAliases {
		p, ok := c.Providers[alias]
		if !ok {
			continue
		}
		delete(c.Providers, alias)
		c.Providers[canonical] = p
	}
	if canonical, ok := providerAliases[c.DefaultProvider]; ok {
		c.DefaultProvider = canonical
	}

	for name, p := range c.Providers {
		known, ok := knownProviders[name]
		if ok {
			if p.Kind == "" {
				p.Kind = known.kind
			}
			if p.BaseURL == "" {
				p.BaseURL = known.baseURL
			}
			if p.Endpoints == nil {
				p.Endpoints = make(map[string]string, len(known.endpoints))
			}
			for capability, path := range known.endpoints {
				if _, set := p.Endpoints[capability]; !set {
					p.Endpoints[capability] = path
				}
			}
			if p.Models == nil {
				p.Models = append([]ModelConfig(nil), known.models...)
			}
		}
		if p.Kind == "" {
			p.Kind = llm.KindOpenAI
		}
		c.Providers[name] = p
	}

	for name, a := range c.Agents {
		a.Model = canonicalRef(a.Model)
		canonicalRefs(a.Fallbacks)
		c.Agents[name] = a
	}
	for _, r := range []*RouteSpec{
		&c.Brain.Fast, &c.Brain.Capable,
		&c.Routes.Transcribe, &c.Routes.Vision, &c.Routes.Code, &c.Routes.Notes, &c.Routes.Summary,
	} {
		r.Primary = canonicalRef(r.Primary)
		canonicalRefs(r.Fallbacks)
	}
}

// canonicalRef rewrites an aliased provider prefix of a model reference.
func canonicalRef(ref string) string {
	provider, model, found := strings.Cut(ref, "/")
	if canonical, ok := providerAliases[provider]; ok && found {
		return canonical + "/" + model
	}
	return ref
}

func canonicalRefs(refs []string) {
	for i, ref := range refs {
		refs[i] = canonicalRef(ref)
	}
}
