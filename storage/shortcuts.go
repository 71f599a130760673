package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Shortcut maps a trigger phrase to its expansion.
type Shortcut struct {
	Trigger   string
	Expansion string
}

// PutShortcut creates or replaces a shortcut. Triggers are case-insensitive.
func (s *Store) PutShortcut(ctx context.Context, id, trigger, expansion string) error {
	trigger = normalizeTrigger(trigger)
	if trigger == "" {
		return errors.New("shortcut trigger must not be empty")
	}
	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO shortcuts (conversation_id, trigger_phrase, expansion, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(conversation_id, trigger_phrase) DO UPDATE SET expansion = excluded.expansion`,
			id, trigger, expansion, s.nowUnix(),
		)
		if err != nil {
			return fmt.Errorf("failed to save shortcut: %w", err)
		}
		return nil
	})
}

// Shortcut returns the expansion for trigger, if one exists.
func (s *Store) Shortcut(ctx context.Context, id, trigger string) (string, bool, error) {
	var expansion string
	found := false
	err := s.do(ctx, func() error {
		err := s.db.QueryRowContext(ctx,
			"SELECT expansion FROM shortcuts WHERE conversation_id = ? AND trigger_phrase = ?",
			id, normalizeTrigger(trigger),
		).Scan(&expansion)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load shortcut: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return expansion, found, nil
}

// ListShortcuts returns every shortcut of a conversation ordered by trigger.
func (s *Store) ListShortcuts(ctx context.Context, id string) ([]Shortcut, error) {
	shortcuts := []Shortcut{}
	err := s.do(ctx, func() error {
		shortcuts = shortcuts[:0]
		rows, err := s.db.QueryContext(ctx,
			"SELECT trigger_phrase, expansion FROM shortcuts WHERE conversation_id = ? ORDER BY trigger_phrase", id)
		if err != nil {
			return fmt.Errorf("failed to query shortcuts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var sc Shortcut
			if err := rows.Scan(&sc.Trigger, &sc.Expansion); err != nil {
				return fmt.Errorf("failed to scan shortcut: %w", err)
			}
			shortcuts = append(shortcuts, sc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return shortcuts, nil
}

// DeleteShortcut removes a shortcut.
func (s *Store) DeleteShortcut(ctx context.Context, id, trigger string) error {
	return s.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"DELETE FROM shortcuts WHERE conversation_id = ? AND trigger_phrase = ?", id, normalizeTrigger(trigger))
		if err != nil {
			return fmt.Errorf("failed to delete shortcut: %w", err)
		}
		return nil
	})
}

func normalizeTrigger(trigger string) string {
	return strings.ToLower(strings.TrimSpace(trigger))
}
