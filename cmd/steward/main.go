// Package main provides the steward CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/richinex/steward/cli"
	"github.com/richinex/steward/config"
	"github.com/richinex/steward/internal/logging"
	"github.com/richinex/steward/orchestration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConversation = "cli"

var (
	// Global flags
	configPath string
	logLevel   string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "steward",
		Short: "Personal assistant that routes every message to the right model",
		Long: `A personal assistant that classifies each message into an action plan
and executes it against multiple LLM providers with fallback.

Actions include direct answers, web search, specialist personas,
voice transcription, image description and note lookup.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("STEWARD_CONFIG"), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(notesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(providersCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session on stdin/stdout.

Conversation state (overrides, history, notes, shortcuts) persists in the
SQLite store under the conversation ID. Type /help inside the chat for
slash commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(app)

			chat := app.NewChat(conversationID, os.Stdout)
			return chat.Run(cmd.Context(), os.Stdin)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", defaultConversation, "Conversation ID for session persistence")

	return cmd
}

func askCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(app)

			chat := app.NewChat(conversationID, os.Stdout)
			reply := chat.Send(cmd.Context(), orchestration.Request{
				ConversationID: conversationID,
				Text:           args[0],
			})
			if verbose {
				fmt.Fprintf(os.Stderr, "request %s: action=%s confidence=%s\n",
					reply.RequestID, reply.Plan.Action, reply.Plan.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", defaultConversation, "Conversation ID for session persistence")

	return cmd
}

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset conversation sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [conversation-id]",
		Short: "Show overrides and message count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(app)

			sess, err := app.Store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSession(sess))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [conversation-id]",
		Short: "Clear overrides and the message counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(app)

			if err := app.Store.ResetSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Session '%s' reset.\n", args[0])
			return nil
		},
	})

	return cmd
}

func notesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage saved notes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [conversation-id] [text]",
		Short: "Save a note",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(app)

			text := strings.Join(args[1:], " ")
			id, err := app.Store.AddNote(cmd.Context(), args[0], text, cli.NoteTags(text))
			if err != nil {
				return err
			}
			fmt.Printf("Note #%d saved.\n", id)
			return nil
		},
	})

	list := &cobra.Command{
		Use:   "list [conversation-id]",
		Short: "List notes, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(app)

			notes, err := app.Store.ListNotes(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatNotes(notes))
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum notes to list")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm [conversation-id] [note-id]",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			noteID, err := strconv.ParseInt(strings.TrimPrefix(args[1], "#"), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid note id %q: %w", args[1], err)
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(app)

			if err := app.Store.DeleteNote(cmd.Context(), args[0], noteID); err != nil {
				return err
			}
			fmt.Printf("Note #%d deleted.\n", noteID)
			return nil
		},
	})

	return cmd
}

func logCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log [conversation-id]",
		Short: "Show recent routing decisions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(app)

			logs, err := app.Store.CommandLogs(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatCommandLogs(logs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers, key counts and free models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			client := cli.NewClient(cfg, nil)
			return cli.PrintProviders(client, cfg.ProviderNames(), cfg.DefaultProvider, os.Stdout)
		},
	}
}

func openApp() (*cli.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

func closeApp(app *cli.App) {
	if err := app.Close(); err != nil {
		app.Logger.Warn("failed to close app", zap.Error(err))
	}
	_ = app.Logger.Sync()
}
