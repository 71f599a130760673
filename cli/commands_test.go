package cli

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/richinex/steward/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line  string
		want  Command
		isCmd bool
	}{
		{"hello", Command{}, false},
		{"  /quit ", Command{Name: "quit"}, true},
		{"/MODEL groq/llama", Command{Name: "model", Args: "groq/llama"}, true},
		{"/note buy   milk #home", Command{Name: "note", Args: "buy   milk #home"}, true},
		{"/", Command{}, true},
		{"what about /model", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseCommand(tt.line)
			assert.Equal(t, tt.isCmd, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNoteTags(t *testing.T) {
	assert.Equal(t, "", NoteTags("no tags here"))
	assert.Equal(t, "home,todo", NoteTags("buy milk #Home #todo #home"))
}

func run(t *testing.T, chat *Chat, line string) string {
	t.Helper()
	cmd, ok := ParseCommand(line)
	require.True(t, ok)
	res, err := chat.execute(context.Background(), cmd)
	require.NoError(t, err)
	return res.reply
}

func TestModelCommand(t *testing.T) {
	chat, _, store, _ := newTestChat(t)
	ctx := context.Background()

	assert.Equal(t, "Model: automatic (no override).", run(t, chat, "/model"))
	assert.Equal(t, "Model set to groq/llama-3.3-70b", run(t, chat, "/model groq/llama-3.3-70b"))

	sess, err := store.GetSession(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, "groq/llama-3.3-70b", sess.ModelOverride)
	assert.Equal(t, "Model: groq/llama-3.3-70b", run(t, chat, "/model"))

	assert.Equal(t, "Model set to openrouter/mistral", run(t, chat, "/model mistral"))
	assert.Contains(t, run(t, chat, "/model nowhere/x"), "Unknown provider: nowhere")

	assert.Equal(t, "Model override cleared.", run(t, chat, "/model clear"))
	sess, err = store.GetSession(ctx, "conv")
	require.NoError(t, err)
	assert.Empty(t, sess.ModelOverride)
}

func TestAgentCommand(t *testing.T) {
	chat, _, store, _ := newTestChat(t)
	ctx := context.Background()

	assert.Contains(t, run(t, chat, "/agent"), "Available: code, creative, default, reason")
	assert.Equal(t, "Agent set to creative", run(t, chat, "/agent Creative"))

	sess, err := store.GetSession(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, "creative", sess.AgentOverride)

	assert.Contains(t, run(t, chat, "/agent pirate"), "Unknown agent: pirate")
	assert.Equal(t, "Agent override cleared.", run(t, chat, "/agent clear"))

	sess, err = store.GetSession(ctx, "conv")
	require.NoError(t, err)
	assert.Empty(t, sess.AgentOverride)
}

func TestResetAndClearCommands(t *testing.T) {
	chat, _, store, _ := newTestChat(t)
	ctx := context.Background()

	require.NoError(t, store.UpdateSession(ctx, "conv", storage.SessionUpdate{ModelOverride: storage.SetOverride("groq/x")}))
	require.NoError(t, store.AppendExchange(ctx, "conv", "hi", "hello"))

	assert.Equal(t, "Session reset.", run(t, chat, "/reset"))
	sess, err := store.GetSession(ctx, "conv")
	require.NoError(t, err)
	assert.Empty(t, sess.ModelOverride)
	assert.Zero(t, sess.MessageCount)

	turns, err := store.ReadContext(ctx, "conv", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	assert.Equal(t, "Conversation cleared.", run(t, chat, "/clear"))
	turns, err = store.ReadContext(ctx, "conv", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestNoteCommands(t *testing.T) {
	chat, _, store, _ := newTestChat(t)

	assert.Equal(t, "Usage: /note <text>", run(t, chat, "/note"))
	assert.Equal(t, "No notes yet. Use /note to save one.", run(t, chat, "/notes"))
	assert.Regexp(t, `^Note #\d+ saved\.$`, run(t, chat, "/note call the dentist #health"))

	notes, err := store.ListNotes(context.Background(), "conv", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "health", notes[0].Tags)

	assert.Contains(t, run(t, chat, "/notes"), "call the dentist #health [health]")
}

func TestNotesSearchAndForget(t *testing.T) {
	chat, _, store, _ := newTestChat(t)
	ctx := context.Background()

	dentist, err := store.AddNote(ctx, "conv", "call the dentist #health", "health")
	require.NoError(t, err)
	_, err = store.AddNote(ctx, "conv", "buy milk", "")
	require.NoError(t, err)

	out := run(t, chat, "/notes dentist")
	assert.Contains(t, out, "call the dentist")
	assert.NotContains(t, out, "buy milk")
	assert.Equal(t, `No notes match "flights".`, run(t, chat, "/notes flights"))

	assert.Equal(t, "Usage: /forget <note-id>", run(t, chat, "/forget"))
	assert.Equal(t, "Usage: /forget <note-id>", run(t, chat, "/forget soon"))
	assert.Equal(t, fmt.Sprintf("Note #%d deleted.", dentist), run(t, chat, fmt.Sprintf("/forget #%d", dentist)))

	notes, err := store.ListNotes(ctx, "conv", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "buy milk", notes[0].Content)
}

func TestShortcutListAndDelete(t *testing.T) {
	chat, _, store, _ := newTestChat(t)

	assert.Equal(t, "No shortcuts yet. Use /shortcut to save one.", run(t, chat, "/shortcuts"))
	run(t, chat, "/shortcut gm what is on my calendar today?")
	assert.Equal(t, "gm -> what is on my calendar today?", run(t, chat, "/shortcuts"))

	assert.Equal(t, "Usage: /unshortcut <trigger>", run(t, chat, "/unshortcut"))
	assert.Equal(t, `Shortcut "gm" deleted.`, run(t, chat, "/unshortcut GM"))

	_, ok, err := store.Shortcut(context.Background(), "conv", "gm")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogCommand(t *testing.T) {
	chat, _, store, _ := newTestChat(t)

	assert.Equal(t, "No routing decisions logged yet.", run(t, chat, "/log"))
	require.NoError(t, store.LogCommand(context.Background(), "conv", "req-1", "search_only", "needs fresh data"))

	assert.Contains(t, run(t, chat, "/log"), "search_only: needs fresh data")
}

func TestFormatCommandLogs(t *testing.T) {
	got := FormatCommandLogs([]storage.CommandLog{
		{Command: "answer_directly", CreatedAt: time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local)},
		{Command: "search_only", Output: "weather", CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)},
	})
	assert.Equal(t, "2025-03-01 09:30 answer_directly\n2025-03-01 09:00 search_only: weather", got)
}

func TestShortcutCommand(t *testing.T) {
	chat, _, store, _ := newTestChat(t)

	assert.Equal(t, "Usage: /shortcut <trigger> <expansion>", run(t, chat, "/shortcut gm"))
	assert.Equal(t, `Shortcut "gm" saved.`, run(t, chat, "/shortcut GM what is on my calendar today?"))

	expansion, ok, err := store.Shortcut(context.Background(), "conv", "gm")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "what is on my calendar today?", expansion)
}

func TestSessionCommandAndUnknown(t *testing.T) {
	chat, _, _, _ := newTestChat(t)

	out := run(t, chat, "/session")
	assert.Contains(t, out, "Conversation: conv")
	assert.Contains(t, out, "Model: automatic")
	assert.Contains(t, out, "Messages: 0")

	assert.Equal(t, "Unknown command: /frobnicate. Type /help for commands.", run(t, chat, "/frobnicate"))
	assert.Equal(t, helpText, run(t, chat, "/help"))
}

func TestQuitCommand(t *testing.T) {
	chat, _, _, _ := newTestChat(t)
	for _, line := range []string{"/quit", "/exit"} {
		cmd, _ := ParseCommand(line)
		res, err := chat.execute(context.Background(), cmd)
		require.NoError(t, err)
		assert.True(t, res.quit, line)
	}
}

func TestFormatSession(t *testing.T) {
	got := FormatSession(storage.Session{
		ConversationID: "c1",
		ModelOverride:  "groq/x",
		AgentOverride:  "code",
		MessageCount:   3,
		UpdatedAt:      time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local),
	})
	assert.Equal(t, "Conversation: c1\nModel: groq/x\nAgent: code\nMessages: 3\nUpdated: 2025-03-01 09:30", got)
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		in         string
		want       string
		candidates []string
	}{
		{"model", "model", nil},
		{"mo", "model", nil},
		{"note", "note", nil},
		{"notes", "notes", nil},
		{"q", "quit", nil},
		{"shortcut", "shortcut", nil},
		{"sh", "sh", []string{"shortcut", "shortcuts"}},
		{"s", "s", []string{"session", "shortcut", "shortcuts", "start", "status"}},
		{"f", "forget", nil},
		{"u", "unshortcut", nil},
		{"l", "log", nil},
		{"zzz", "zzz", nil},
		{"", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, candidates := resolveCommand(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.candidates, candidates)
		})
	}
}

func TestAbbreviatedCommands(t *testing.T) {
	chat, _, _, _ := newTestChat(t)

	assert.Equal(t, "Model set to groq/x", run(t, chat, "/mod groq/x"))
	assert.Equal(t, "Ambiguous command: /st (/start, /status)", run(t, chat, "/st"))
}
