// Chat - stdin/stdout transport for the orchestrator.
//
// Reads one message per line, answers slash commands locally and hands
// everything else to the orchestrator.
//
// Information Hiding:
// - Line scanning and prompt rendering
// - Slash command dispatch
// - Progress notification display

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/richinex/steward/llm"
	"github.com/richinex/steward/orchestration"
	"go.uber.org/zap"
)

const (
	dim   = "\033[2m"
	reset = "\033[0m"
	// maxLineBytes bounds one pasted chat line.
	maxLineBytes = 1 << 20
)

// Handler processes one inbound message.
type Handler interface {
	Handle(ctx context.Context, req orchestration.Request, n llm.Notifier) orchestration.Reply
}

var _ Handler = (*orchestration.Orchestrator)(nil)

// Chat is one interactive conversation.
type Chat struct {
	handler         Handler
	store           SessionStore
	conversationID  string
	out             io.Writer
	agents          []string
	providers       []string
	defaultProvider string
	color           bool
	logger          *zap.Logger
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithAgents restricts /agent to the given persona names.
func WithAgents(names []string) ChatOption {
	return func(c *Chat) {
		c.agents = names
	}
}

// WithProviders restricts /model to configured providers and sets the
// provider assumed for bare model names.
func WithProviders(names []string, defaultProvider string) ChatOption {
	return func(c *Chat) {
		c.providers = names
		c.defaultProvider = defaultProvider
	}
}

// WithColor toggles ANSI dimming of progress lines.
func WithColor(enabled bool) ChatOption {
	return func(c *Chat) {
		c.color = enabled
	}
}

// WithChatLogger sets the logger.
func WithChatLogger(logger *zap.Logger) ChatOption {
	return func(c *Chat) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChat creates a chat for conversationID.
func NewChat(handler Handler, store SessionStore, conversationID string, out io.Writer, opts ...ChatOption) *Chat {
	c := &Chat{
		handler:        handler,
		store:          store,
		conversationID: conversationID,
		out:            out,
		color:          true,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads lines from in until EOF, /quit or ctx cancellation.
func (c *Chat) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(c.out, "Chatting as '%s'. Type /help for commands, /quit to leave.\n\n", c.conversationID)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}

		quit, err := c.Line(ctx, scanner.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(c.out)
	return nil
}

// Line processes one input line and reports whether the chat should end.
// Store failures from slash commands are printed, not returned.
func (c *Chat) Line(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	cmd, ok := ParseCommand(line)
	if !ok {
		c.Send(ctx, orchestration.Request{ConversationID: c.conversationID, Text: line})
		return false, nil
	}

	res, err := c.execute(ctx, cmd)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true, nil
		}
		c.logger.Warn("command failed", zap.String("command", cmd.Name), zap.Error(err))
		fmt.Fprintf(c.out, "\nError: %v\n\n", err)
		return false, nil
	}
	switch {
	case res.quit:
		return true, nil
	case res.request != nil:
		c.Send(ctx, *res.request)
	case res.reply != "":
		fmt.Fprintf(c.out, "\n%s\n\n", res.reply)
	}
	return false, nil
}

// Send hands req to the orchestrator and prints every reply message.
func (c *Chat) Send(ctx context.Context, req orchestration.Request) orchestration.Reply {
	reply := c.handler.Handle(ctx, req, llm.NotifierFunc(c.progress))
	for _, msg := range reply.Messages {
		fmt.Fprintf(c.out, "\n%s\n", msg)
	}
	fmt.Fprintln(c.out)
	return reply
}

func (c *Chat) progress(_ context.Context, status string) error {
	if c.color {
		_, err := fmt.Fprintf(c.out, "%s… %s%s\n", dim, status, reset)
		return err
	}
	_, err := fmt.Fprintf(c.out, "… %s\n", status)
	return err
}
