package cli

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/richinex/steward/brain"
	"github.com/richinex/steward/internal/dsa"
	"github.com/richinex/steward/llm"
	"github.com/richinex/steward/orchestration"
	"github.com/richinex/steward/storage"
)

const (
	notesListLimit = 20
	logListLimit   = 10
	clearKeyword   = "clear"
)

const helpText = `Commands:
/model [provider/model|clear] - show or pin the answering model
/agent [name|clear] - show or pin the persona
/session - show session state
/reset - clear overrides and the message counter
/clear - delete conversation history
/note <text> - save a note (#tags are indexed)
/notes [query] - list saved notes, or search them
/forget <note-id> - delete a note
/shortcut <trigger> <expansion> - replace a message with a stored text
/shortcuts - list saved shortcuts
/unshortcut <trigger> - delete a shortcut
/log - show recent routing decisions
/voice <file> - send a voice recording
/image <file> [caption] - send an image
/quit - leave the chat

Any other message goes to the assistant.`

// Command is a parsed slash command.
type Command struct {
	Name string
	Args string
}

// ParseCommand reports whether line is a slash command and splits it into
// a lowercase name and the remaining argument text.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}
	name, args, _ := strings.Cut(line[1:], " ")
	return Command{
		Name: strings.ToLower(strings.TrimSpace(name)),
		Args: strings.TrimSpace(args),
	}, true
}

var commandNames = []string{
	"agent", "clear", "exit", "forget", "help", "image", "log", "model",
	"note", "notes", "quit", "reset", "session", "shortcut", "shortcuts",
	"start", "status", "unshortcut", "voice",
}

var commandIndex = func() *dsa.Trie[struct{}] {
	t := dsa.NewTrie[struct{}]()
	for _, name := range commandNames {
		t.Insert(name, struct{}{})
	}
	return t
}()

// resolveCommand expands an unambiguous prefix to a command name. An exact
// name always wins. On ambiguity it returns the candidates.
func resolveCommand(name string) (string, []string) {
	if _, ok := commandIndex.Get(name); ok || name == "" {
		return name, nil
	}
	matches := commandIndex.Complete(name)
	if len(matches) == 1 {
		return matches[0], nil
	}
	return name, matches
}

// commandResult is what the chat loop does after a command.
type commandResult struct {
	reply   string
	quit    bool
	request *orchestration.Request
}

// SessionStore is the slice of the session store slash commands need.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (storage.Session, error)
	UpdateSession(ctx context.Context, id string, upd storage.SessionUpdate) error
	ResetSession(ctx context.Context, id string) error
	ClearHistory(ctx context.Context, id string) error
	AddNote(ctx context.Context, id, content, tags string) (int64, error)
	ListNotes(ctx context.Context, id string, limit int) ([]storage.Note, error)
	SearchNotes(ctx context.Context, id, query string, limit int) ([]storage.Note, error)
	DeleteNote(ctx context.Context, id string, noteID int64) error
	PutShortcut(ctx context.Context, id, trigger, expansion string) error
	ListShortcuts(ctx context.Context, id string) ([]storage.Shortcut, error)
	DeleteShortcut(ctx context.Context, id, trigger string) error
	CommandLogs(ctx context.Context, id string, limit int) ([]storage.CommandLog, error)
}

var _ SessionStore = (*storage.Store)(nil)

func (c *Chat) execute(ctx context.Context, cmd Command) (commandResult, error) {
	name, candidates := resolveCommand(cmd.Name)
	if len(candidates) > 1 {
		return commandResult{reply: fmt.Sprintf("Ambiguous command: /%s (%s)", cmd.Name, "/"+strings.Join(candidates, ", /"))}, nil
	}
	cmd.Name = name

	switch cmd.Name {
	case "help", "start":
		return commandResult{reply: helpText}, nil
	case "quit", "exit":
		return commandResult{quit: true}, nil
	case "model":
		return c.modelCommand(ctx, cmd.Args)
	case "agent":
		return c.agentCommand(ctx, cmd.Args)
	case "session", "status":
		return c.sessionCommand(ctx)
	case "reset":
		if err := c.store.ResetSession(ctx, c.conversationID); err != nil {
			return commandResult{}, err
		}
		return commandResult{reply: "Session reset."}, nil
	case "clear":
		if err := c.store.ClearHistory(ctx, c.conversationID); err != nil {
			return commandResult{}, err
		}
		return commandResult{reply: "Conversation cleared."}, nil
	case "note":
		return c.noteCommand(ctx, cmd.Args)
	case "notes":
		return c.notesCommand(ctx, cmd.Args)
	case "forget":
		return c.forgetCommand(ctx, cmd.Args)
	case "shortcut":
		return c.shortcutCommand(ctx, cmd.Args)
	case "shortcuts":
		return c.shortcutsCommand(ctx)
	case "unshortcut":
		return c.unshortcutCommand(ctx, cmd.Args)
	case "log":
		return c.logCommand(ctx)
	case "voice":
		return c.mediaCommand(brain.MediaVoice, cmd.Args)
	case "image":
		return c.mediaCommand(brain.MediaImage, cmd.Args)
	default:
		return commandResult{reply: fmt.Sprintf("Unknown command: /%s. Type /help for commands.", cmd.Name)}, nil
	}
}

func (c *Chat) modelCommand(ctx context.Context, args string) (commandResult, error) {
	switch {
	case args == "":
		sess, err := c.store.GetSession(ctx, c.conversationID)
		if err != nil {
			return commandResult{}, err
		}
		if sess.ModelOverride == "" {
			return commandResult{reply: "Model: automatic (no override)."}, nil
		}
		return commandResult{reply: "Model: " + sess.ModelOverride}, nil

	case strings.EqualFold(args, clearKeyword):
		if err := c.store.UpdateSession(ctx, c.conversationID, storage.SessionUpdate{ModelOverride: storage.ClearOverride()}); err != nil {
			return commandResult{}, err
		}
		return commandResult{reply: "Model override cleared."}, nil
	}

	ref, err := llm.ParseModelRef(args, c.defaultProvider)
	if err != nil {
		return commandResult{reply: "Usage: /model <provider/model|clear>"}, nil
	}
	if len(c.providers) > 0 && !slices.Contains(c.providers, ref.Provider) {
		return commandResult{reply: fmt.Sprintf("Unknown provider: %s. Available: %s", ref.Provider, strings.Join(c.providers, ", "))}, nil
	}
	if err := c.store.UpdateSession(ctx, c.conversationID, storage.SessionUpdate{ModelOverride: storage.SetOverride(ref.String())}); err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: "Model set to " + ref.String()}, nil
}

func (c *Chat) agentCommand(ctx context.Context, args string) (commandResult, error) {
	name := strings.ToLower(args)
	switch {
	case name == "":
		sess, err := c.store.GetSession(ctx, c.conversationID)
		if err != nil {
			return commandResult{}, err
		}
		current := sess.AgentOverride
		if current == "" {
			current = "automatic (no override)"
		}
		return commandResult{reply: fmt.Sprintf("Agent: %s\nAvailable: %s", current, strings.Join(c.agents, ", "))}, nil

	case name == clearKeyword:
		if err := c.store.UpdateSession(ctx, c.conversationID, storage.SessionUpdate{AgentOverride: storage.ClearOverride()}); err != nil {
			return commandResult{}, err
		}
		return commandResult{reply: "Agent override cleared."}, nil
	}

	if len(c.agents) > 0 && !slices.Contains(c.agents, name) {
		return commandResult{reply: fmt.Sprintf("Unknown agent: %s. Available: %s", name, strings.Join(c.agents, ", "))}, nil
	}
	if err := c.store.UpdateSession(ctx, c.conversationID, storage.SessionUpdate{AgentOverride: storage.SetOverride(name)}); err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: "Agent set to " + name}, nil
}

func (c *Chat) sessionCommand(ctx context.Context) (commandResult, error) {
	sess, err := c.store.GetSession(ctx, c.conversationID)
	if err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: FormatSession(sess)}, nil
}

var tagPattern = regexp.MustCompile(`#(\w+)`)

// NoteTags extracts the #tags of a note as a comma-separated list.
func NoteTags(text string) string {
	var tags []string
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(m[1])
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return strings.Join(tags, ",")
}

func (c *Chat) noteCommand(ctx context.Context, args string) (commandResult, error) {
	if args == "" {
		return commandResult{reply: "Usage: /note <text>"}, nil
	}
	id, err := c.store.AddNote(ctx, c.conversationID, args, NoteTags(args))
	if err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: fmt.Sprintf("Note #%d saved.", id)}, nil
}

func (c *Chat) notesCommand(ctx context.Context, query string) (commandResult, error) {
	if query == "" {
		notes, err := c.store.ListNotes(ctx, c.conversationID, notesListLimit)
		if err != nil {
			return commandResult{}, err
		}
		return commandResult{reply: FormatNotes(notes)}, nil
	}
	notes, err := c.store.SearchNotes(ctx, c.conversationID, query, notesListLimit)
	if err != nil {
		return commandResult{}, err
	}
	if len(notes) == 0 {
		return commandResult{reply: fmt.Sprintf("No notes match %q.", query)}, nil
	}
	return commandResult{reply: FormatNotes(notes)}, nil
}

func (c *Chat) forgetCommand(ctx context.Context, args string) (commandResult, error) {
	noteID, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil || noteID <= 0 {
		return commandResult{reply: "Usage: /forget <note-id>"}, nil
	}
	if err := c.store.DeleteNote(ctx, c.conversationID, noteID); err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: fmt.Sprintf("Note #%d deleted.", noteID)}, nil
}

func (c *Chat) shortcutCommand(ctx context.Context, args string) (commandResult, error) {
	trigger, expansion, _ := strings.Cut(args, " ")
	expansion = strings.TrimSpace(expansion)
	if trigger == "" || expansion == "" {
		return commandResult{reply: "Usage: /shortcut <trigger> <expansion>"}, nil
	}
	if err := c.store.PutShortcut(ctx, c.conversationID, trigger, expansion); err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: fmt.Sprintf("Shortcut %q saved.", strings.ToLower(trigger))}, nil
}

func (c *Chat) shortcutsCommand(ctx context.Context) (commandResult, error) {
	shortcuts, err := c.store.ListShortcuts(ctx, c.conversationID)
	if err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: FormatShortcuts(shortcuts)}, nil
}

func (c *Chat) unshortcutCommand(ctx context.Context, trigger string) (commandResult, error) {
	if trigger == "" {
		return commandResult{reply: "Usage: /unshortcut <trigger>"}, nil
	}
	if err := c.store.DeleteShortcut(ctx, c.conversationID, trigger); err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: fmt.Sprintf("Shortcut %q deleted.", strings.ToLower(trigger))}, nil
}

func (c *Chat) logCommand(ctx context.Context) (commandResult, error) {
	logs, err := c.store.CommandLogs(ctx, c.conversationID, logListLimit)
	if err != nil {
		return commandResult{}, err
	}
	return commandResult{reply: FormatCommandLogs(logs)}, nil
}

func (c *Chat) mediaCommand(kind brain.MediaKind, args string) (commandResult, error) {
	path, caption, _ := strings.Cut(args, " ")
	if path == "" {
		return commandResult{reply: fmt.Sprintf("Usage: /%s <file>", kind)}, nil
	}
	media, err := LoadMedia(kind, path)
	if err != nil {
		if errors.Is(err, ErrUnsupportedMedia) || errors.Is(err, ErrMediaTooLarge) {
			return commandResult{reply: err.Error()}, nil
		}
		return commandResult{reply: "Error: " + err.Error()}, nil
	}
	return commandResult{request: &orchestration.Request{
		ConversationID: c.conversationID,
		Text:           strings.TrimSpace(caption),
		Media:          media,
	}}, nil
}

// FormatSession renders session state for display.
func FormatSession(sess storage.Session) string {
	model := sess.ModelOverride
	if model == "" {
		model = "automatic"
	}
	agent := sess.AgentOverride
	if agent == "" {
		agent = "automatic"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation: %s\n", sess.ConversationID)
	fmt.Fprintf(&b, "Model: %s\n", model)
	fmt.Fprintf(&b, "Agent: %s\n", agent)
	fmt.Fprintf(&b, "Messages: %d", sess.MessageCount)
	if !sess.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "\nUpdated: %s", sess.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// FormatNotes renders notes one per line.
func FormatNotes(notes []storage.Note) string {
	if len(notes) == 0 {
		return "No notes yet. Use /note to save one."
	}
	var b strings.Builder
	for i, n := range notes {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "#%d %s", n.ID, n.Content)
		if n.Tags != "" {
			fmt.Fprintf(&b, " [%s]", n.Tags)
		}
	}
	return b.String()
}

// FormatShortcuts renders shortcuts one per line.
func FormatShortcuts(shortcuts []storage.Shortcut) string {
	if len(shortcuts) == 0 {
		return "No shortcuts yet. Use /shortcut to save one."
	}
	var b strings.Builder
	for i, sc := range shortcuts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s -> %s", sc.Trigger, sc.Expansion)
	}
	return b.String()
}

// FormatCommandLogs renders routing decisions, newest first.
func FormatCommandLogs(logs []storage.CommandLog) string {
	if len(logs) == 0 {
		return "No routing decisions logged yet."
	}
	var b strings.Builder
	for i, l := range logs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s", l.CreatedAt.Format("2006-01-02 15:04"), l.Command)
		if l.Output != "" {
			fmt.Fprintf(&b, ": %s", l.Output)
		}
	}
	return b.String()
}
