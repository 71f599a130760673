package storage

import (
	"context"
	"fmt"
	"time"
)

// CommandLogRetention is how long audit rows are kept.
const CommandLogRetention = 30 * 24 * time.Hour

// CommandLog is one audit row.
type CommandLog struct {
	RequestID string
	Command   string
	Output    string
	CreatedAt time.Time
}

// LogCommand records an audit row and prunes rows older than the
// retention window for the same conversation. Both happen in one
// transaction so a retried call never leaves a duplicate row.
func (s *Store) LogCommand(ctx context.Context, id, requestID, command, output string) error {
	now := s.now()
	cutoff := now.Add(-CommandLogRetention).Unix()

	return s.do(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO command_logs (conversation_id, request_id, command, output, created_at) VALUES (?, ?, ?, ?, ?)",
			id, requestID, command, output, now.Unix(),
		); err != nil {
			return fmt.Errorf("failed to log command: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM command_logs WHERE conversation_id = ? AND created_at < ?",
			id, cutoff,
		); err != nil {
			return fmt.Errorf("failed to clean up command logs: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// CommandLogs returns up to limit audit rows, newest first.
func (s *Store) CommandLogs(ctx context.Context, id string, limit int) ([]CommandLog, error) {
	logs := []CommandLog{}
	err := s.do(ctx, func() error {
		logs = logs[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT COALESCE(request_id, ''), command, COALESCE(output, ''), created_at
			FROM command_logs WHERE conversation_id = ?
			ORDER BY id DESC LIMIT ?`, id, limit)
		if err != nil {
			return fmt.Errorf("failed to query command logs: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				l  CommandLog
				ts int64
			)
			if err := rows.Scan(&l.RequestID, &l.Command, &l.Output, &ts); err != nil {
				return fmt.Errorf("failed to scan command log: %w", err)
			}
			l.CreatedAt = time.Unix(ts, 0)
			logs = append(logs, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}
