package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Session is the per-conversation state record.
type Session struct {
	ConversationID string
	// ModelOverride is a "provider/model" reference, empty when unset.
	ModelOverride string
	// AgentOverride is a persona name, empty when unset.
	AgentOverride string
	MessageCount  int
	UpdatedAt     time.Time
}

// SessionUpdate is a partial session update. A nil field is left untouched;
// a non-nil field with Valid=false clears the override.
type SessionUpdate struct {
	ModelOverride *sql.NullString
	AgentOverride *sql.NullString
}

// SetOverride returns an update value that sets an override.
func SetOverride(v string) *sql.NullString {
	return &sql.NullString{String: v, Valid: true}
}

// ClearOverride returns an update value that clears an override.
func ClearOverride() *sql.NullString {
	return &sql.NullString{}
}

// GetSession returns the session for id, creating a default one on first
// access. Concurrent calls for the same id never create two rows.
// The shared load ignores cancellation so one caller giving up does not
// fail the others; each caller still returns early on its own ctx.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	shared := context.WithoutCancel(ctx)
	ch := s.sessions.DoChan(id, func() (any, error) {
		var sess Session
		err := s.do(shared, func() error {
			var err error
			sess, err = s.getOrCreateSession(shared, id)
			return err
		})
		return sess, err
	})

	select {
	case <-ctx.Done():
		return Session{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Session{}, res.Err
		}
		return res.Val.(Session), nil
	}
}

func (s *Store) getOrCreateSession(ctx context.Context, id string) (Session, error) {
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (conversation_id, updated_at) VALUES (?, ?)",
		id, s.nowUnix(),
	); err != nil {
		return Session{}, fmt.Errorf("failed to ensure session: %w", err)
	}

	var (
		sess          Session
		model, agent  sql.NullString
		updatedAtUnix int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT conversation_id, model_override, agent_override, message_count, updated_at FROM sessions WHERE conversation_id = ?",
		id,
	).Scan(&sess.ConversationID, &model, &agent, &sess.MessageCount, &updatedAtUnix)
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	sess.ModelOverride = model.String
	sess.AgentOverride = agent.String
	sess.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return sess, nil
}

// UpdateSession writes each supplied override independently and
// increments the message counter by one.
func (s *Store) UpdateSession(ctx context.Context, id string, upd SessionUpdate) error {
	sets := []string{"message_count = message_count + 1", "updated_at = ?"}
	args := []any{s.nowUnix()}
	if upd.ModelOverride != nil {
		sets = append(sets, "model_override = ?")
		args = append(args, *upd.ModelOverride)
	}
	if upd.AgentOverride != nil {
		sets = append(sets, "agent_override = ?")
		args = append(args, *upd.AgentOverride)
	}
	args = append(args, id)
	query := "UPDATE sessions SET " + strings.Join(sets, ", ") + " WHERE conversation_id = ?"

	return s.do(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO sessions (conversation_id, updated_at) VALUES (?, ?)",
			id, s.nowUnix(),
		); err != nil {
			return fmt.Errorf("failed to ensure session: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// ResetSession clears both overrides and zeroes the counter.
// History is not touched.
func (s *Store) ResetSession(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (conversation_id, updated_at) VALUES (?, ?)
			ON CONFLICT(conversation_id) DO UPDATE SET
				model_override = NULL,
				agent_override = NULL,
				message_count = 0,
				updated_at = excluded.updated_at`,
			id, s.nowUnix(),
		)
		if err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
		return nil
	})
}
