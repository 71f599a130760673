package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TruncationMarker is appended when a long turn could not be summarized.
const TruncationMarker = "\n[...truncated for history...]"

// Turn is one stored conversation message.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Summarizer condenses a long assistant reply for storage.
type Summarizer interface {
	SummarizeForHistory(ctx context.Context, text string) (string, error)
}

// AppendTurn stores one turn. Assistant turns over the compaction
// threshold are summarized, or hard-truncated with a visible marker.
func (s *Store) AppendTurn(ctx context.Context, id, role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("invalid role %q", role)
	}
	if role == RoleAssistant {
		content = s.compact(ctx, content)
	}

	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO conversation_history (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)",
			id, role, content, s.nowUnix(),
		)
		if err != nil {
			return fmt.Errorf("failed to append turn: %w", err)
		}
		return nil
	})
}

// AppendExchange stores a user message and the assistant reply to it.
func (s *Store) AppendExchange(ctx context.Context, id, userText, reply string) error {
	if err := s.AppendTurn(ctx, id, RoleUser, userText); err != nil {
		return err
	}
	return s.AppendTurn(ctx, id, RoleAssistant, reply)
}

// compact applies the write-time compaction policy to an assistant turn.
func (s *Store) compact(ctx context.Context, content string) string {
	length := utf8.RuneCountInString(content)
	if length <= s.compactThreshold {
		return content
	}

	if s.summarizer != nil {
		summary, err := s.summarizer.SummarizeForHistory(ctx, clipRunes(content, s.summaryInputChars))
		summary = strings.TrimSpace(summary)
		switch {
		case err != nil:
			s.logger.Debug("history summarization failed", zap.Error(err))
		case summary != "" && utf8.RuneCountInString(summary) < length:
			return "[Summary: " + summary + "]"
		}
	}

	return clipRunes(content, s.compactThreshold) + TruncationMarker
}

// ReadContext returns the most recent limit turns, oldest first.
func (s *Store) ReadContext(ctx context.Context, id string, limit int) ([]Turn, error) {
	turns := []Turn{}
	if limit <= 0 {
		return turns, nil
	}

	err := s.do(ctx, func() error {
		turns = turns[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT role, content, created_at FROM conversation_history
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?`,
			id, limit)
		if err != nil {
			return fmt.Errorf("failed to query history: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t  Turn
				ts int64
			)
			if err := rows.Scan(&t.Role, &t.Content, &ts); err != nil {
				return fmt.Errorf("failed to scan turn: %w", err)
			}
			t.Timestamp = time.Unix(ts, 0)
			turns = append(turns, t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ClearHistory deletes every stored turn of a conversation.
func (s *Store) ClearHistory(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM conversation_history WHERE conversation_id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		return nil
	})
}

// clipRunes returns the first n runes of s.
func clipRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
