// Orchestrator - action plan dispatch.
//
// Runs every inbound message through the planner, executes the chosen
// path and shapes the result for the transport.
//
// Information Hiding:
// - Per-conversation serialization
// - Shortcut expansion and audit logging
// - Session override resolution
// - Error to user-visible text mapping
// - Output truncation and splitting

package orchestration

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/richinex/steward/brain"
	"github.com/richinex/steward/llm"
	"github.com/richinex/steward/storage"
	"github.com/richinex/steward/tools"
	"go.uber.org/zap"
)

const (
	storageUnavailableMessage = "Storage is unavailable right now, please try again."
	maxErrorChars             = 200
)

// Deps are the Orchestrator's collaborators. Search and Pages may be nil.
type Deps struct {
	Brain  Planner
	Router llm.Completer
	Store  Store
	Search Searcher
	Pages  PageFetcher
	Logger *zap.Logger
}

// Orchestrator executes action plans. Safe for concurrent use; requests
// for the same conversation run one at a time.
type Orchestrator struct {
	brain  Planner
	router llm.Completer
	store  Store
	search Searcher
	pages  PageFetcher
	cfg    Config
	locks  *keyedLocker
	logger *zap.Logger
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		brain:  deps.Brain,
		router: deps.Router,
		store:  deps.Store,
		search: deps.Search,
		pages:  deps.Pages,
		cfg:    cfg.withDefaults(),
		locks:  newKeyedLocker(),
		logger: logger,
	}
}

// outcome is the result of one action before shaping.
type outcome struct {
	text string
	// remember appends the exchange to conversation history.
	remember bool
	// userText overrides what is recorded as the user turn.
	userText string
}

// turn carries per-request state through the action handlers.
type turn struct {
	req      Request
	text     string
	session  storage.Session
	notifier llm.Notifier
	logger   *zap.Logger
}

// Handle processes one message and always returns at least one message.
func (o *Orchestrator) Handle(ctx context.Context, req Request, n llm.Notifier) Reply {
	requestID := uuid.NewString()
	logger := o.logger.With(
		zap.String("request_id", requestID),
		zap.String("conversation_id", req.ConversationID),
	)
	reply := Reply{RequestID: requestID, Plan: brain.DefaultPlan()}

	unlock, err := o.locks.Lock(ctx, req.ConversationID)
	if err != nil {
		reply.Messages = []string{o.errorText(err)}
		return reply
	}
	defer unlock()

	session, err := o.store.GetSession(ctx, req.ConversationID)
	if err != nil {
		logger.Error("failed to load session", zap.Error(err))
		reply.Messages = []string{storageUnavailableMessage}
		return reply
	}

	text, err := o.expandShortcut(ctx, req.ConversationID, req.Text)
	if err != nil {
		logger.Error("failed to expand shortcut", zap.Error(err))
		reply.Messages = []string{storageUnavailableMessage}
		return reply
	}

	plan := o.brain.Decide(ctx, req.ConversationID, text, req.Media)
	reply.Plan = plan

	if err := o.store.LogCommand(ctx, req.ConversationID, requestID, string(plan.Action), plan.Reasoning); err != nil {
		logger.Warn("failed to write command log", zap.Error(err))
	}

	t := &turn{req: req, text: text, session: session, notifier: n, logger: logger}
	out, err := o.dispatch(ctx, plan, t)

	var final string
	if err != nil {
		logger.Warn("action failed", zap.String("action", string(plan.Action)), zap.Error(err))
		final = o.errorText(err)
	} else {
		final = out.text
		if out.remember {
			userText := out.userText
			if userText == "" {
				userText = text
			}
			if err := o.store.AppendExchange(ctx, req.ConversationID, userText, out.text); err != nil {
				logger.Error("failed to record exchange", zap.Error(err))
				reply.Messages = []string{storageUnavailableMessage}
				return reply
			}
		}
	}

	if err := o.store.UpdateSession(ctx, req.ConversationID, storage.SessionUpdate{}); err != nil {
		logger.Error("failed to update session", zap.Error(err))
		reply.Messages = []string{storageUnavailableMessage}
		return reply
	}

	final = truncateResponse(final, o.cfg.MaxResponseChars)
	reply.Messages = splitMessage(final, o.cfg.MaxMessageChars)

	logger.Info("request handled",
		zap.String("action", string(plan.Action)),
		zap.Int("reply_chars", len([]rune(final))),
	)
	return reply
}

// dispatch runs the handler for plan.Action. Unknown actions answer directly.
func (o *Orchestrator) dispatch(ctx context.Context, plan brain.ActionPlan, t *turn) (outcome, error) {
	switch plan.Action {
	case brain.ActionSearchAndAnswer:
		return o.searchAndAnswer(ctx, plan, t)
	case brain.ActionSearchOnly:
		return o.searchOnly(ctx, plan, t)
	case brain.ActionSpecialist:
		return o.specialist(ctx, plan, t)
	case brain.ActionMultiStep:
		return o.multiStep(ctx, plan, t)
	case brain.ActionTranscribe:
		return o.transcribe(ctx, t)
	case brain.ActionVision:
		return o.vision(ctx, t)
	case brain.ActionNotesSearch:
		return o.notesSearch(ctx, t)
	case brain.ActionCodeCompletion:
		return o.codeCompletion(ctx, t)
	default:
		return o.directAnswer(ctx, plan, t)
	}
}

// expandShortcut replaces text with a stored expansion on an exact
// trigger match.
func (o *Orchestrator) expandShortcut(ctx context.Context, id, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	expansion, ok, err := o.store.Shortcut(ctx, id, text)
	if err != nil {
		return "", err
	}
	if !ok {
		return text, nil
	}
	o.logger.Debug("shortcut expanded", zap.String("conversation_id", id), zap.String("trigger", text))
	return expansion, nil
}

// errorText maps an error to the text shown to the user.
func (o *Orchestrator) errorText(err error) string {
	var uie *UserInputError
	switch {
	case errors.As(err, &uie):
		return uie.Message
	case errors.Is(err, storage.ErrStoreUnavailable):
		return storageUnavailableMessage
	case errors.Is(err, tools.ErrNoResults):
		return "No results found."
	default:
		return "Error: " + clipRunes(err.Error(), maxErrorChars)
	}
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
