// Package storage provides the SQLite-backed session store.
//
// Information Hiding:
// - SQLite connection management and schema
// - Transient-failure classification and the single reconnect retry
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrStoreUnavailable is returned when the store keeps failing after one
// reconnect attempt.
var ErrStoreUnavailable = errors.New("store unavailable")

// Default compaction parameters.
const (
	DefaultCompactThreshold  = 500
	DefaultSummaryInputChars = 3000
)

// Store implements the session store using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type Store struct {
	db *sql.DB

	summarizer        Summarizer
	compactThreshold  int
	summaryInputChars int
	logger            *zap.Logger
	now               func() time.Time

	sessions singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithSummarizer sets the summarizer used to compact long assistant turns.
func WithSummarizer(s Summarizer) Option {
	return func(st *Store) { st.summarizer = s }
}

// WithCompaction overrides the compaction threshold and summary input clip.
func WithCompaction(threshold, inputChars int) Option {
	return func(st *Store) {
		if threshold > 0 {
			st.compactThreshold = threshold
		}
		if inputChars > 0 {
			st.summaryInputChars = inputChars
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(st *Store) {
		if logger != nil {
			st.logger = logger
		}
	}
}

// withClock overrides the time source (tests).
func withClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// Open opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newStore(db, opts)
}

// OpenInMemory creates an in-memory database (useful for testing).
func OpenInMemory(opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every new connection would get its own empty in-memory database.
	db.SetMaxOpenConns(1)
	return newStore(db, opts)
}

func newStore(db *sql.DB, opts []Option) (*Store, error) {
	s := &Store{
		db:                db,
		compactThreshold:  DefaultCompactThreshold,
		summaryInputChars: DefaultSummaryInputChars,
		logger:            zap.NewNop(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			conversation_id TEXT PRIMARY KEY,
			model_override TEXT,
			agent_override TEXT,
			message_count INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS conversation_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_conversation
		ON conversation_history(conversation_id, id);

		CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notes_conversation
		ON notes(conversation_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS shortcuts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			trigger_phrase TEXT NOT NULL,
			expansion TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(conversation_id, trigger_phrase)
		);

		CREATE TABLE IF NOT EXISTS command_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			request_id TEXT,
			command TEXT NOT NULL,
			output TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_command_logs_conversation
		ON command_logs(conversation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// do runs op through the single reconnect retry.
func (s *Store) do(ctx context.Context, op func() error) error {
	return retryOnce(ctx, s.reconnect, op, s.logger)
}

// reconnect is the lightweight liveness probe run before the retry.
func (s *Store) reconnect(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// retryOnce runs op; on a transient failure it reconnects and runs op
// exactly once more. A second failure is reported as ErrStoreUnavailable.
func retryOnce(ctx context.Context, reconnect func(context.Context) error, op func() error, logger *zap.Logger) error {
	err := op()
	if err == nil || !isTransient(err) {
		return err
	}

	if logger != nil {
		logger.Warn("transient store failure, reconnecting", zap.Error(err))
	}
	if rerr := reconnect(ctx); rerr != nil {
		return fmt.Errorf("%w: reconnect failed: %v (after: %v)", ErrStoreUnavailable, rerr, err)
	}
	if err := op(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// isTransient reports whether err is a connectivity or lock failure worth
// one retry.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func (s *Store) nowUnix() int64 {
	return s.now().Unix()
}
