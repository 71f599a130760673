package brain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/richinex/steward/llm"
	"github.com/richinex/steward/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRouter struct {
	reply    string
	err      error
	panicVal any
	routes   []llm.Route
	payloads []llm.Payload
}

func (r *stubRouter) Complete(_ context.Context, route llm.Route, payload llm.Payload, _ llm.Notifier) (string, error) {
	r.routes = append(r.routes, route)
	r.payloads = append(r.payloads, payload)
	if r.panicVal != nil {
		panic(r.panicVal)
	}
	return r.reply, r.err
}

type stubHistory struct {
	turns []storage.Turn
	err   error
	limit int
}

func (h *stubHistory) ReadContext(_ context.Context, _ string, limit int) ([]storage.Turn, error) {
	h.limit = limit
	return h.turns, h.err
}

var testRoutes = TierRoutes{
	Fast:    llm.Route{Primary: "groq/llama-3.3-70b-versatile", Fallbacks: []string{"openrouter/mistralai/mistral-7b-instruct:free"}},
	Capable: llm.Route{Primary: "google/gemini-2.5-flash", Fallbacks: []string{"groq/llama-3.3-70b-versatile"}},
}

func TestIsSimple(t *testing.T) {
	tests := []struct {
		text     string
		hasMedia bool
		want     bool
	}{
		{"hello there", false, true},
		{"thanks, that's great", false, true},
		{"hello there", true, false},
		{"Can you SEARCH for flights", false, false},
		{"ok?", false, false},
		{"Explain monads", false, false},
		{"What's 2+2?", false, false},
		{strings.Repeat("a", SimpleMessageMaxChars), false, true},
		{strings.Repeat("a", SimpleMessageMaxChars+1), false, false},
		{strings.Repeat("ü", SimpleMessageMaxChars), false, true},
	}
	for _, tt := range tests {
		if got := IsSimple(tt.text, tt.hasMedia); got != tt.want {
			t.Errorf("IsSimple(%q, %v) = %v, want %v", tt.text, tt.hasMedia, got, tt.want)
		}
	}
}

func TestShortKeywordFreeMessagesAreFastTier(t *testing.T) {
	safe := []rune("abcdegijklmopqrsuvxyz ")
	for n := 0; n <= SimpleMessageMaxChars; n += 7 {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			sb.WriteRune(safe[(i*5+n)%len(safe)])
		}
		msg := sb.String()
		if IsSimple(msg, false) {
			assert.Equal(t, TierFast, SelectTier(msg, false), msg)
			continue
		}
		lower := strings.ToLower(msg)
		found := false
		for _, kw := range complexityKeywords {
			found = found || strings.Contains(lower, kw)
		}
		assert.True(t, found, "message %q classified capable without a keyword", msg)
	}
}

func TestDecideUsesFastTierForSimpleMessages(t *testing.T) {
	router := &stubRouter{reply: `{"action":"answer_directly","confidence":"high","reasoning":"greeting","response":"Hi!"}`}
	b := New(router, &stubHistory{}, testRoutes)

	plan := b.Decide(context.Background(), "c", "hello there", nil)
	assert.Equal(t, ActionDirectAnswer, plan.Action)
	assert.Equal(t, "Hi!", plan.Response)

	require.Len(t, router.routes, 1)
	assert.Equal(t, testRoutes.Fast, router.routes[0])
}

func TestDecideUsesCapableTierForMedia(t *testing.T) {
	router := &stubRouter{reply: `{"action":"vision","confidence":"high","capability":"vision","reasoning":"image"}`}
	b := New(router, &stubHistory{}, testRoutes)

	plan := b.Decide(context.Background(), "c", "hi", &Media{Kind: MediaImage, MIMEType: "image/png", Data: []byte{1}})
	assert.Equal(t, ActionVision, plan.Action)
	assert.Equal(t, testRoutes.Capable, router.routes[0])

	prompt := router.payloads[0].Messages[1].Content
	assert.Contains(t, prompt, "[Image]\n\nMedia attached: image\n\nUser caption: hi")
}

func TestDecidePromptContext(t *testing.T) {
	history := &stubHistory{turns: []storage.Turn{
		{Role: storage.RoleUser, Content: "remember my cat is called Miso"},
		{Role: storage.RoleAssistant, Content: strings.Repeat("x", 500)},
	}}
	router := &stubRouter{reply: `{"action":"answer_directly"}`}
	b := New(router, history, testRoutes)

	b.Decide(context.Background(), "c", "what is my cat called?", nil)

	assert.Equal(t, DefaultContextTurns, history.limit)
	msgs := router.payloads[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)

	prompt := msgs[1].Content
	assert.Contains(t, prompt, "user: remember my cat is called Miso\n")
	assert.Contains(t, prompt, "assistant: "+strings.Repeat("x", ContextClipChars)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", ContextClipChars+1))
	assert.True(t, strings.HasSuffix(prompt, "User message: what is my cat called?\n"))
	for _, a := range Actions() {
		assert.Contains(t, prompt, string(a))
	}
}

func TestDecideVoiceAnnotation(t *testing.T) {
	router := &stubRouter{reply: `{"action":"transcribe"}`}
	b := New(router, nil, testRoutes)

	b.Decide(context.Background(), "c", "", &Media{Kind: MediaVoice, MIMEType: "audio/ogg", Data: []byte{1}})
	assert.Contains(t, router.payloads[0].Messages[1].Content, "[Voice message]\n\nMedia attached: voice")
}

func TestDecideContextReadFailureStillPlans(t *testing.T) {
	router := &stubRouter{reply: `{"action":"search_only","reasoning":"asked"}`}
	b := New(router, &stubHistory{err: storage.ErrStoreUnavailable}, testRoutes)

	plan := b.Decide(context.Background(), "c", "search go releases", nil)
	assert.Equal(t, ActionSearchOnly, plan.Action)
}

func TestDecideRouterFailure(t *testing.T) {
	long := strings.Repeat("e", 150)
	router := &stubRouter{err: errors.New(long)}
	b := New(router, &stubHistory{}, testRoutes)

	plan := b.Decide(context.Background(), "c", "explain raft", nil)
	assert.Equal(t, ActionDirectAnswer, plan.Action)
	assert.Equal(t, ConfidenceHigh, plan.Confidence)
	assert.Equal(t, "Brain error: "+strings.Repeat("e", 50)+", defaulting to direct answer", plan.Reasoning)

	prefix := "I encountered an issue processing your request. Please try again. Error: "
	require.True(t, strings.HasPrefix(plan.Response, prefix))
	assert.Equal(t, 100, utf8.RuneCountInString(strings.TrimPrefix(plan.Response, prefix)))
}

func TestDecideGarbageReply(t *testing.T) {
	b := New(&stubRouter{reply: "no idea, sorry"}, &stubHistory{}, testRoutes)

	plan := b.Decide(context.Background(), "c", "explain raft", nil)
	assert.Equal(t, ActionDirectAnswer, plan.Action)
	assert.True(t, strings.HasPrefix(plan.Reasoning, "Parse error: "))
	assert.Empty(t, plan.Response)
}

func TestDecideRecoversFromPanic(t *testing.T) {
	b := New(&stubRouter{panicVal: "nil map"}, &stubHistory{}, testRoutes)

	plan := b.Decide(context.Background(), "c", "explain raft", nil)
	assert.Equal(t, ActionDirectAnswer, plan.Action)
	assert.Contains(t, plan.Reasoning, "nil map")
}

func TestDecidePassesCallOptions(t *testing.T) {
	temp := float32(0.3)
	router := &stubRouter{reply: `{}`}
	b := New(router, nil, testRoutes, WithCallOptions(llm.CallOptions{Temperature: &temp, MaxTokens: 512}))

	plan := b.Decide(context.Background(), "c", "hey", nil)
	assert.Equal(t, DefaultPlan(), plan)
	assert.Equal(t, 512, router.payloads[0].Options.MaxTokens)
}
