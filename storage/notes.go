package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Note is a free-text note saved by the user.
type Note struct {
	ID        int64
	Content   string
	Tags      string
	CreatedAt time.Time
}

// AddNote saves a note and returns its id.
func (s *Store) AddNote(ctx context.Context, id, content, tags string) (int64, error) {
	var noteID int64
	err := s.do(ctx, func() error {
		var t any
		if tags != "" {
			t = tags
		}
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO notes (conversation_id, content, tags, created_at) VALUES (?, ?, ?, ?)",
			id, content, t, s.nowUnix(),
		)
		if err != nil {
			return fmt.Errorf("failed to add note: %w", err)
		}
		noteID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read note id: %w", err)
		}
		return nil
	})
	return noteID, err
}

// ListNotes returns up to limit notes, newest first.
func (s *Store) ListNotes(ctx context.Context, id string, limit int) ([]Note, error) {
	return s.queryNotes(ctx, `
		SELECT id, content, tags, created_at FROM notes
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, id, limit)
}

// SearchNotes returns notes whose content or tags contain query.
func (s *Store) SearchNotes(ctx context.Context, id, query string, limit int) ([]Note, error) {
	pattern := "%" + escapeLike(query) + "%"
	return s.queryNotes(ctx, `
		SELECT id, content, tags, created_at FROM notes
		WHERE conversation_id = ? AND (content LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, id, pattern, pattern, limit)
}

// DeleteNote removes a note owned by the conversation.
func (s *Store) DeleteNote(ctx context.Context, id string, noteID int64) error {
	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ? AND conversation_id = ?", noteID, id)
		if err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}
		return nil
	})
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]Note, error) {
	notes := []Note{}
	err := s.do(ctx, func() error {
		notes = notes[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query notes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				n    Note
				tags sql.NullString
				ts   int64
			)
			if err := rows.Scan(&n.ID, &n.Content, &tags, &ts); err != nil {
				return fmt.Errorf("failed to scan note: %w", err)
			}
			n.Tags = tags.String
			n.CreatedAt = time.Unix(ts, 0)
			notes = append(notes, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
