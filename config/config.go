// Package config provides typed application configuration.
//
// Configuration is created via Load() which handles:
// - YAML file parsing (optional)
// - Default value application, including built-in tables for known providers
// - Environment variable overrides with validation
// - Cross-reference validation (every model reference resolves to a provider)

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/richinex/steward/llm"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	Agents          map[string]AgentConfig    `yaml:"agents"`
	Brain           BrainConfig               `yaml:"brain"`
	Routes          RouteConfig               `yaml:"routes"`
	Settings        Settings                  `yaml:"settings"`
	Storage         StorageConfig             `yaml:"storage"`
	Search          SearchConfig              `yaml:"search"`
	Log             LogConfig                 `yaml:"log"`
}

// ProviderConfig describes one backend.
type ProviderConfig struct {
	// Kind is the envelope: openai (default), gemini or anthropic.
	Kind      string            `yaml:"kind"`
	BaseURL   string            `yaml:"base_url"`
	APIKeys   []string          `yaml:"api_keys"`
	Endpoints map[string]string `yaml:"endpoints"`
	Models    []ModelConfig     `yaml:"models"`
}

// ModelConfig is one catalog entry. Free is optional.
type ModelConfig struct {
	ID   string `yaml:"id"`
	Free *bool  `yaml:"free"`
}

// AgentConfig is a persona/specialist.
type AgentConfig struct {
	Description  string   `yaml:"description"`
	Model        string   `yaml:"model"`
	Fallbacks    []string `yaml:"fallbacks"`
	Temperature  *float32 `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	SystemPrompt string   `yaml:"system_prompt"`
}

// Route returns the agent's model chain.
func (a AgentConfig) Route() llm.Route {
	return llm.Route{Primary: a.Model, Fallbacks: a.Fallbacks}
}

// Options returns the agent's generation parameters.
func (a AgentConfig) Options() llm.CallOptions {
	return llm.CallOptions{Temperature: a.Temperature, MaxTokens: a.MaxTokens}
}

// RouteSpec is a primary model reference and its fallbacks.
type RouteSpec struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
}

// Route converts r to an llm.Route.
func (r RouteSpec) Route() llm.Route {
	return llm.Route{Primary: r.Primary, Fallbacks: r.Fallbacks}
}

// BrainConfig holds the decision engine's tier chains.
type BrainConfig struct {
	Fast        RouteSpec `yaml:"fast"`
	Capable     RouteSpec `yaml:"capable"`
	Temperature *float32  `yaml:"temperature"`
	MaxTokens   int       `yaml:"max_tokens"`
}

// RouteConfig holds the fixed chains for single-purpose calls.
type RouteConfig struct {
	Transcribe RouteSpec `yaml:"transcribe"`
	Vision     RouteSpec `yaml:"vision"`
	Code       RouteSpec `yaml:"code"`
	Notes      RouteSpec `yaml:"notes"`
	Summary    RouteSpec `yaml:"summary"`
}

// Settings holds global behaviour switches.
type Settings struct {
	FreeOnly         bool          `yaml:"free_only"`
	MaxResponseChars int           `yaml:"max_response_chars"`
	MaxMessageChars  int           `yaml:"max_message_chars"`
	HistoryWindow    int           `yaml:"history_window"`
	ChatTimeout      time.Duration `yaml:"chat_timeout"`
	Personality      string        `yaml:"personality"`
}

// ContextTurns is the number of turns read back for context.
// Both user and assistant turns count.
func (s Settings) ContextTurns() int {
	return s.HistoryWindow * 2
}

// StorageConfig configures the session store.
type StorageConfig struct {
	Path              string `yaml:"path"`
	CompactThreshold  int    `yaml:"compact_threshold"`
	SummaryInputChars int    `yaml:"summary_input_chars"`
}

// SearchConfig configures the web search collaborator.
type SearchConfig struct {
	// Backend is tavily or jina. Empty picks tavily when a key is set.
	Backend      string        `yaml:"backend"`
	TavilyAPIKey string        `yaml:"tavily_api_key"`
	MaxResults   int           `yaml:"max_results"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads configuration from path (optional), applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyKnownProviders()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross references and numeric bounds.
func (c *Config) Validate() error {
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("%w: default provider %q is not configured", ErrInvalidConfig, c.DefaultProvider)
	}
	for name, p := range c.Providers {
		switch p.Kind {
		case llm.KindOpenAI, llm.KindGemini, llm.KindAnthropic:
		default:
			return fmt.Errorf("%w: provider %q has unknown kind %q", ErrInvalidConfig, name, p.Kind)
		}
		if p.Kind != llm.KindGemini && p.BaseURL == "" {
			return fmt.Errorf("%w: provider %q has no base_url", ErrInvalidConfig, name)
		}
	}
	if c.Settings.HistoryWindow <= 0 {
		return fmt.Errorf("%w: history_window must be positive", ErrInvalidConfig)
	}
	if c.Settings.MaxResponseChars <= 100 {
		return fmt.Errorf("%w: max_response_chars must be greater than 100", ErrInvalidConfig)
	}
	if c.Settings.MaxMessageChars < 0 {
		return fmt.Errorf("%w: max_message_chars must not be negative", ErrInvalidConfig)
	}
	if _, ok := c.Agents[DefaultAgent]; !ok {
		return fmt.Errorf("%w: agent %q must be configured", ErrInvalidConfig, DefaultAgent)
	}

	check := func(where string, spec llm.Route) error {
		for _, ref := range append([]string{spec.Primary}, spec.Fallbacks...) {
			mr, err := llm.ParseModelRef(ref, c.DefaultProvider)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, where, err)
			}
			if _, ok := c.Providers[mr.Provider]; !ok {
				return fmt.Errorf("%w: %s: provider %q is not configured", ErrInvalidConfig, where, mr.Provider)
			}
		}
		return nil
	}

	for name, a := range c.Agents {
		if err := check("agent "+name, a.Route()); err != nil {
			return err
		}
	}
	routes := map[string]RouteSpec{
		"brain.fast":        c.Brain.Fast,
		"brain.capable":     c.Brain.Capable,
		"routes.transcribe": c.Routes.Transcribe,
		"routes.vision":     c.Routes.Vision,
		"routes.code":       c.Routes.Code,
		"routes.notes":      c.Routes.Notes,
		"routes.summary":    c.Routes.Summary,
	}
	for where, spec := range routes {
		if err := check(where, spec.Route()); err != nil {
			return err
		}
	}
	return nil
}

// Descriptors converts provider configuration into llm descriptors,
// sorted by provider name.
func (c *Config) Descriptors() []llm.Descriptor {
	names := c.ProviderNames()
	out := make([]llm.Descriptor, 0, len(names))
	for _, name := range names {
		p := c.Providers[name]
		d := llm.Descriptor{
			Name:      name,
			Kind:      p.Kind,
			BaseURL:   p.BaseURL,
			APIKeys:   append([]string(nil), p.APIKeys...),
			Endpoints: make(map[llm.Capability]string, len(p.Endpoints)),
		}
		for capability, path := range p.Endpoints {
			d.Endpoints[llm.Capability(capability)] = path
		}
		for _, m := range p.Models {
			d.Models = append(d.Models, llm.ModelEntry{ID: m.ID, Free: m.Free})
		}
		out = append(out, d)
	}
	return out
}

// ProviderNames returns configured provider names in sorted order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
