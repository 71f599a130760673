// App - process wiring for the steward CLI.
//
// Builds the provider client, router, store and orchestrator from a loaded
// configuration.
//
// Information Hiding:
// - Construction order and collaborator wiring
// - Persona table conversion
// - Resource cleanup

package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/richinex/steward/brain"
	"github.com/richinex/steward/config"
	"github.com/richinex/steward/internal/logging"
	"github.com/richinex/steward/llm"
	"github.com/richinex/steward/orchestration"
	"github.com/richinex/steward/storage"
	"github.com/richinex/steward/tools"
	"go.uber.org/zap"
)

// App holds the long-lived components of one steward process.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        *storage.Store
	Router       *llm.Router
	Orchestrator *orchestration.Orchestrator
}

// NewClient builds the provider client from cfg.
func NewClient(cfg *config.Config, logger *zap.Logger) *llm.Client {
	return llm.NewClient(cfg.Descriptors(),
		llm.WithFreeOnly(cfg.Settings.FreeOnly),
		llm.WithTimeout(cfg.Settings.ChatTimeout),
		llm.WithLogger(logging.OrNop(logger).Named("llm")),
	)
}

// NewApp wires every component from cfg. The caller must Close the App.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	client := NewClient(cfg, logger)
	router := llm.NewRouter(client, cfg.DefaultProvider, logger.Named("router"))
	summarizer := tools.NewLLMSummarizer(router, cfg.Routes.Summary.Route(), logger.Named("summarizer"))

	store, err := storage.Open(cfg.Storage.Path,
		storage.WithSummarizer(summarizer),
		storage.WithCompaction(cfg.Storage.CompactThreshold, cfg.Storage.SummaryInputChars),
		storage.WithLogger(logger.Named("storage")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	searcher := tools.NewSearcher(cfg.Search.Backend, cfg.Search.TavilyAPIKey,
		tools.WithSearchSummarizer(summarizer),
		tools.WithSearchTimeout(cfg.Search.Timeout),
		tools.WithSearchLogger(logger.Named("search")),
	)
	pages := tools.NewPageFetcher(summarizer,
		tools.WithFetchTimeout(cfg.Search.Timeout),
		tools.WithFetchLogger(logger.Named("fetch")),
	)

	b := brain.New(router, store,
		brain.TierRoutes{Fast: cfg.Brain.Fast.Route(), Capable: cfg.Brain.Capable.Route()},
		brain.WithCallOptions(llm.CallOptions{Temperature: cfg.Brain.Temperature, MaxTokens: cfg.Brain.MaxTokens}),
		brain.WithLogger(logger.Named("brain")),
	)

	orch := orchestration.New(orchestration.Deps{
		Brain:  b,
		Router: router,
		Store:  store,
		Search: searcher,
		Pages:  pages,
		Logger: logger.Named("orchestrator"),
	}, OrchestrationConfig(cfg))

	logger.Debug("steward initialized",
		zap.Strings("providers", cfg.ProviderNames()),
		zap.String("default_provider", cfg.DefaultProvider),
		zap.String("search_backend", searcher.Backend()),
		zap.String("db_path", cfg.Storage.Path),
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Router:       router,
		Orchestrator: orch,
	}, nil
}

// OrchestrationConfig converts the loaded configuration into orchestrator routes and limits.
func OrchestrationConfig(cfg *config.Config) orchestration.Config {
	personas := make(map[string]orchestration.Persona, len(cfg.Agents))
	for name, a := range cfg.Agents {
		personas[name] = orchestration.Persona{
			Route:        a.Route(),
			Options:      a.Options(),
			SystemPrompt: a.SystemPrompt,
		}
	}
	return orchestration.Config{
		Capable:          cfg.Brain.Capable.Route(),
		Transcribe:       cfg.Routes.Transcribe.Route(),
		Vision:           cfg.Routes.Vision.Route(),
		Code:             cfg.Routes.Code.Route(),
		Notes:            cfg.Routes.Notes.Route(),
		Personas:         personas,
		DefaultPersona:   config.DefaultAgent,
		Personality:      cfg.Settings.Personality,
		MaxResponseChars: cfg.Settings.MaxResponseChars,
		MaxMessageChars:  cfg.Settings.MaxMessageChars,
		ContextTurns:     cfg.Settings.ContextTurns(),
		SearchResults:    cfg.Search.MaxResults,
	}
}

// NewChat returns a chat session for conversationID writing to out.
func (a *App) NewChat(conversationID string, out io.Writer) *Chat {
	return NewChat(a.Orchestrator, a.Store, conversationID, out,
		WithAgents(agentNames(a.Config)),
		WithProviders(a.Config.ProviderNames(), a.Config.DefaultProvider),
		WithChatLogger(a.Logger.Named("chat")),
	)
}

// Close releases the store.
func (a *App) Close() error {
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

func agentNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
