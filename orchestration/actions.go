package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/steward/brain"
	"github.com/richinex/steward/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	multiStepMissingInput = "Multi-step requires both search_query and specialist."
	noNotesMessage        = "No notes found. Use /note to save notes."

	verifyClipChars   = 300
	verifyNoteChars   = 200
	pageContentChars  = 3000
	synthesizeSystem  = "Answer concisely based on the provided search results."
	visionSystem      = "You analyze images and describe them. Be detailed but concise."
	notesSystem       = "You search through user's notes to find relevant information."
	codeSystem        = "You are a code completion assistant. Provide code snippets."
	transcribeSystem  = "You transcribe audio to text. Return only the transcription."
	transcribeRequest = "Transcribe this audio file."
)

var errSearchUnavailable = errors.New("web search is not configured")

// directAnswer uses the plan's embedded response, else asks the answer
// route with full context. Low confidence appends a quick web check.
func (o *Orchestrator) directAnswer(ctx context.Context, plan brain.ActionPlan, t *turn) (outcome, error) {
	response := plan.Response
	if response == "" {
		var err error
		response, err = o.askWithContext(ctx, t, t.text)
		if err != nil {
			return outcome{}, err
		}
	}

	if plan.Confidence == brain.ConfidenceLow {
		if web := o.quickVerify(ctx, t); web != "" {
			response += fmt.Sprintf("\n\n[Verified via web: %s]", clipRunes(web, verifyNoteChars))
		}
	}
	return outcome{text: response, remember: true}, nil
}

// askWithContext answers message with the system persona and stored history.
func (o *Orchestrator) askWithContext(ctx context.Context, t *turn, message string) (string, error) {
	route, persona := o.answerRoute(t)

	history, err := o.store.ReadContext(ctx, t.req.ConversationID, o.cfg.ContextTurns)
	if err != nil {
		return "", err
	}

	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.SystemMessage(o.systemPrompt(persona.SystemPrompt)))
	for _, h := range history {
		messages = append(messages, llm.ChatMessage{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, llm.UserMessage(message))

	return o.router.Complete(ctx, route, llm.Payload{
		Messages:   messages,
		Capability: llm.CapabilityChat,
		Options:    persona.Options,
	}, t.notifier)
}

// quickVerify runs a single-result search. Failures yield "".
func (o *Orchestrator) quickVerify(ctx context.Context, t *turn) string {
	if o.search == nil {
		return ""
	}
	llm.SafeNotify(ctx, t.notifier, t.logger, "Double-checking on the web...")
	result, err := o.search.Search(ctx, t.text, 1)
	if err != nil {
		t.logger.Debug("quick verification failed", zap.Error(err))
		return ""
	}
	return clipRunes(strings.TrimSpace(result), verifyClipChars)
}

// searchAndAnswer synthesizes an answer from search results and, when the
// plan asks for it, the summarized top page.
func (o *Orchestrator) searchAndAnswer(ctx context.Context, plan brain.ActionPlan, t *turn) (outcome, error) {
	if o.search == nil {
		return outcome{}, errSearchUnavailable
	}
	query := searchQuery(plan, t)
	llm.SafeNotify(ctx, t.notifier, t.logger, fmt.Sprintf("Searching the web for %q...", query))

	if !plan.FetchFullPage {
		results, err := o.search.Search(ctx, query, o.cfg.SearchResults)
		if err != nil {
			return outcome{}, err
		}
		return o.synthesize(ctx, t, results, "")
	}

	var results, topURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = o.search.Search(gctx, query, 1)
		return err
	})
	g.Go(func() error {
		u, err := o.search.TopURL(gctx, query)
		if err != nil {
			t.logger.Debug("top URL lookup failed", zap.Error(err))
			return nil
		}
		topURL = u
		return nil
	})
	if err := g.Wait(); err != nil {
		return outcome{}, err
	}

	var page string
	if topURL != "" && o.pages != nil {
		llm.SafeNotify(ctx, t.notifier, t.logger, "Reading "+topURL+"...")
		content, err := o.pages.FetchAndSummarize(ctx, topURL)
		if err != nil {
			t.logger.Warn("page fetch failed", zap.String("url", topURL), zap.Error(err))
		} else {
			page = content
		}
	}
	return o.synthesize(ctx, t, results, page)
}

// synthesize answers the user's message from search context.
func (o *Orchestrator) synthesize(ctx context.Context, t *turn, results, page string) (outcome, error) {
	material := results
	if page != "" {
		material += "\n\nFull page content:\n" + clipRunes(page, pageContentChars)
	}

	prompt := fmt.Sprintf("Based on the user's question and web search results, provide a concise answer.\n\n"+
		"User question: %s\n\nWeb search results:\n%s\n\nProvide a direct, concise answer.", t.text, material)

	route := o.cfg.Capable.WithPrimary(t.session.ModelOverride)
	answer, err := o.router.Complete(ctx, route, llm.Payload{
		Messages: []llm.ChatMessage{
			llm.SystemMessage(o.systemPrompt(synthesizeSystem)),
			llm.UserMessage(prompt),
		},
		Capability: llm.CapabilityChat,
	}, t.notifier)
	if err != nil {
		return outcome{}, err
	}
	return outcome{text: answer, remember: true}, nil
}

// searchOnly returns the summarized search output without synthesis.
func (o *Orchestrator) searchOnly(ctx context.Context, plan brain.ActionPlan, t *turn) (outcome, error) {
	if o.search == nil {
		return outcome{}, errSearchUnavailable
	}
	query := searchQuery(plan, t)
	llm.SafeNotify(ctx, t.notifier, t.logger, fmt.Sprintf("Searching the web for %q...", query))

	results, err := o.search.Search(ctx, query, o.cfg.SearchResults)
	if err != nil {
		return outcome{}, err
	}
	return outcome{text: results}, nil
}

// specialist hands the message to a persona.
func (o *Orchestrator) specialist(ctx context.Context, plan brain.ActionPlan, t *turn) (outcome, error) {
	answer, err := o.callPersona(ctx, t, plan.Specialist, t.text)
	if err != nil {
		return outcome{}, err
	}
	return outcome{text: answer, remember: true}, nil
}

// multiStep searches, then gives the results to a persona.
func (o *Orchestrator) multiStep(ctx context.Context, plan brain.ActionPlan, t *turn) (outcome, error) {
	if plan.SearchQuery == "" || plan.Specialist == "" {
		return outcome{}, userInputError(multiStepMissingInput)
	}
	if o.search == nil {
		return outcome{}, errSearchUnavailable
	}
	llm.SafeNotify(ctx, t.notifier, t.logger, fmt.Sprintf("Searching the web for %q...", plan.SearchQuery))

	results, err := o.search.Search(ctx, plan.SearchQuery, o.cfg.SearchResults)
	if err != nil {
		return outcome{}, err
	}

	prompt := fmt.Sprintf("Based on the user's request and search results, provide a response.\n\n"+
		"User request: %s\n\nSearch results:\n%s\n", t.text, results)
	answer, err := o.callPersona(ctx, t, plan.Specialist, prompt)
	if err != nil {
		return outcome{}, err
	}
	return outcome{text: answer, remember: true}, nil
}

// callPersona runs a single-shot completion against a persona. A session
// agent override replaces the planned persona and a session model override
// becomes the primary model.
func (o *Orchestrator) callPersona(ctx context.Context, t *turn, name, message string) (string, error) {
	if t.session.AgentOverride != "" {
		name = t.session.AgentOverride
	}
	persona, resolved := o.cfg.persona(name)
	route := persona.Route.WithPrimary(t.session.ModelOverride)
	t.logger.Debug("calling persona", zap.String("persona", resolved), zap.String("model", route.Primary))

	return o.router.Complete(ctx, route, llm.Payload{
		Messages: []llm.ChatMessage{
			llm.SystemMessage(o.systemPrompt(persona.SystemPrompt)),
			llm.UserMessage(message),
		},
		Capability: llm.CapabilityChat,
		Options:    persona.Options,
	}, t.notifier)
}

// transcribe converts a voice message to text, then answers it.
func (o *Orchestrator) transcribe(ctx context.Context, t *turn) (outcome, error) {
	media := t.req.Media
	if media == nil || media.Kind != brain.MediaVoice {
		return outcome{}, userInputError("No voice file provided.")
	}
	if len(media.Data) == 0 {
		return outcome{}, userInputError("No valid voice file provided.")
	}

	audio := media.Attachment()
	transcript, err := o.router.Complete(ctx, o.cfg.Transcribe, llm.Payload{
		Messages: []llm.ChatMessage{
			llm.SystemMessage(transcribeSystem),
			llm.UserMessage(transcribeRequest),
		},
		Capability: llm.CapabilityTranscribe,
		Audio:      &audio,
	}, t.notifier)
	if err != nil {
		return outcome{}, fmt.Errorf("transcription failed: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" || t.req.ConversationID == "" {
		return outcome{text: transcript}, nil
	}

	answer, err := o.askWithContext(ctx, t, transcript)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		text:     fmt.Sprintf("You said: %s\n\n%s", transcript, answer),
		remember: true,
		userText: transcript,
	}, nil
}

// vision describes an attached image.
func (o *Orchestrator) vision(ctx context.Context, t *turn) (outcome, error) {
	media := t.req.Media
	if media == nil || media.Kind != brain.MediaImage {
		return outcome{}, userInputError("No image provided.")
	}
	if len(media.Data) == 0 {
		return outcome{}, userInputError("No valid image file provided.")
	}

	description, err := o.router.Complete(ctx, o.cfg.Vision, llm.Payload{
		Messages: []llm.ChatMessage{
			llm.SystemMessage(visionSystem),
			llm.UserMessageWithImage("Describe this image. User context: "+t.text, media.Attachment()),
		},
		Capability: llm.CapabilityVision,
	}, t.notifier)
	if err != nil {
		return outcome{}, fmt.Errorf("image analysis failed: %w", err)
	}
	return outcome{text: description}, nil
}

// notesSearch surfaces stored notes relevant to the message.
func (o *Orchestrator) notesSearch(ctx context.Context, t *turn) (outcome, error) {
	notes, err := o.store.ListNotes(ctx, t.req.ConversationID, notesLimit)
	if err != nil {
		return outcome{}, err
	}
	if len(notes) == 0 {
		return outcome{text: noNotesMessage}, nil
	}

	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, "- "+n.Content)
	}
	prompt := fmt.Sprintf("Query: %s\n\nUser's notes:\n%s\n\nProvide relevant notes.", t.text, strings.Join(lines, "\n"))

	answer, err := o.router.Complete(ctx, o.cfg.Notes, llm.Payload{
		Messages: []llm.ChatMessage{
			llm.SystemMessage(notesSystem),
			llm.UserMessage(prompt),
		},
		Capability: llm.CapabilityChat,
	}, t.notifier)
	if err != nil {
		return outcome{}, fmt.Errorf("notes search failed: %w", err)
	}
	return outcome{text: answer}, nil
}

// codeCompletion asks the code route for a snippet.
func (o *Orchestrator) codeCompletion(ctx context.Context, t *turn) (outcome, error) {
	answer, err := o.router.Complete(ctx, o.cfg.Code, llm.Payload{
		Messages: []llm.ChatMessage{
			llm.SystemMessage(codeSystem),
			llm.UserMessage(t.text),
		},
		Capability: llm.CapabilityChat,
	}, t.notifier)
	if err != nil {
		return outcome{}, fmt.Errorf("code completion failed: %w", err)
	}
	return outcome{text: answer}, nil
}

// answerRoute picks the chain for direct answers: the session's agent
// override if set, else the capable route, with any model override first.
func (o *Orchestrator) answerRoute(t *turn) (llm.Route, Persona) {
	persona := Persona{Route: o.cfg.Capable}
	if t.session.AgentOverride != "" {
		persona, _ = o.cfg.persona(t.session.AgentOverride)
	}
	return persona.Route.WithPrimary(t.session.ModelOverride), persona
}

func (o *Orchestrator) systemPrompt(extra string) string {
	if extra == "" {
		return o.cfg.Personality
	}
	return o.cfg.Personality + "\n\n" + extra
}

func searchQuery(plan brain.ActionPlan, t *turn) string {
	if plan.SearchQuery != "" {
		return plan.SearchQuery
	}
	return t.text
}
