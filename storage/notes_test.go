package storage

import (
	"context"
	"testing"
	"time"
)

func TestNotesAddListSearchDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	milkID, err := store.AddNote(ctx, "c", "buy oat milk", "groceries")
	if err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	if _, err := store.AddNote(ctx, "c", "wifi password is 100%_secure", ""); err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	if _, err := store.AddNote(ctx, "other", "buy oat milk", ""); err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}

	notes, err := store.ListNotes(ctx, "c", 20)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].Content != "wifi password is 100%_secure" {
		t.Errorf("expected newest first, got %q", notes[0].Content)
	}

	found, err := store.SearchNotes(ctx, "c", "groceries", 20)
	if err != nil {
		t.Fatalf("SearchNotes failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != milkID {
		t.Errorf("expected tag match on the milk note, got %+v", found)
	}

	found, _ = store.SearchNotes(ctx, "c", "100%_", 20)
	if len(found) != 1 {
		t.Errorf("expected literal match on LIKE metacharacters, got %d", len(found))
	}
	found, _ = store.SearchNotes(ctx, "c", "%", 20)
	if len(found) != 1 {
		t.Errorf("expected '%%' to match literally, got %d", len(found))
	}

	if err := store.DeleteNote(ctx, "c", milkID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	notes, _ = store.ListNotes(ctx, "c", 20)
	if len(notes) != 1 {
		t.Errorf("expected 1 note after delete, got %d", len(notes))
	}
}

func TestShortcutsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutShortcut(ctx, "c", "GM", "good morning, what's on today?"); err != nil {
		t.Fatalf("PutShortcut failed: %v", err)
	}
	if err := store.PutShortcut(ctx, "c", "gm", "good morning!"); err != nil {
		t.Fatalf("PutShortcut failed: %v", err)
	}

	expansion, ok, err := store.Shortcut(ctx, "c", " Gm ")
	if err != nil {
		t.Fatalf("Shortcut failed: %v", err)
	}
	if !ok || expansion != "good morning!" {
		t.Errorf("expected upserted expansion, got %q (found=%v)", expansion, ok)
	}

	list, _ := store.ListShortcuts(ctx, "c")
	if len(list) != 1 {
		t.Errorf("expected one shortcut after upsert, got %d", len(list))
	}

	if err := store.DeleteShortcut(ctx, "c", "gm"); err != nil {
		t.Fatalf("DeleteShortcut failed: %v", err)
	}
	if _, ok, _ := store.Shortcut(ctx, "c", "gm"); ok {
		t.Error("expected shortcut to be deleted")
	}
}

func TestShortcutEmptyTrigger(t *testing.T) {
	store := newTestStore(t)
	if err := store.PutShortcut(context.Background(), "c", "  ", "x"); err == nil {
		t.Error("expected error for empty trigger")
	}
}

func TestLogCommandRetention(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, withClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := store.LogCommand(ctx, "c", "req-1", "search_only", "old"); err != nil {
		t.Fatalf("LogCommand failed: %v", err)
	}

	now = now.Add(CommandLogRetention + time.Hour)
	if err := store.LogCommand(ctx, "c", "req-2", "answer_directly", "new"); err != nil {
		t.Fatalf("LogCommand failed: %v", err)
	}

	logs, err := store.CommandLogs(ctx, "c", 10)
	if err != nil {
		t.Fatalf("CommandLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected old row pruned, got %d rows", len(logs))
	}
	if logs[0].RequestID != "req-2" || logs[0].Command != "answer_directly" {
		t.Errorf("unexpected row %+v", logs[0])
	}
}

func TestLogCommandCleanupFailureRollsBackInsert(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, withClock(func() time.Time { return now }))
	ctx := context.Background()

	old := now.Add(-CommandLogRetention - time.Hour).Unix()
	if _, err := store.db.Exec(
		"INSERT INTO command_logs (conversation_id, request_id, command, output, created_at) VALUES (?, ?, ?, ?, ?)",
		"c", "req-old", "search_only", "old", old,
	); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := store.db.Exec(`CREATE TRIGGER block_cleanup BEFORE DELETE ON command_logs
		BEGIN SELECT RAISE(ABORT, 'cleanup blocked'); END;`); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	if err := store.LogCommand(ctx, "c", "req-new", "answer_directly", "new"); err == nil {
		t.Fatal("expected cleanup failure to be reported")
	}

	var rows int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM command_logs WHERE request_id = ?", "req-new").Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 0 {
		t.Errorf("expected insert rolled back, found %d rows", rows)
	}
}
