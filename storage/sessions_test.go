package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := OpenInMemory(opts...)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetSessionCreatesDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.GetSession(ctx, "chat-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	second, err := store.GetSession(ctx, "chat-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	if first.ModelOverride != "" || first.AgentOverride != "" || first.MessageCount != 0 {
		t.Errorf("expected default session, got %+v", first)
	}
	if first != second {
		t.Errorf("expected identical records, got %+v and %+v", first, second)
	}

	var rows int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE conversation_id = ?", "chat-1").Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected exactly 1 row, got %d", rows)
	}
}

func TestGetSessionConcurrentCreatesOneRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetSession(ctx, "busy"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("GetSession failed: %v", err)
	}

	var rows int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected exactly 1 row, got %d", rows)
	}
}

func TestGetSessionCancelledCallerDoesNotFailOthers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store := newTestStore(t, withClock(func() time.Time {
		once.Do(func() {
			close(entered)
			<-release
		})
		return time.Unix(1700000000, 0)
	}))

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := store.GetSession(leaderCtx, "shared")
		leaderErr <- err
	}()
	<-entered

	followerErr := make(chan error, 1)
	go func() {
		_, err := store.GetSession(context.Background(), "shared")
		followerErr <- err
	}()
	// Let the second caller join the in-flight load.
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the cancelled caller, got %v", err)
	}
	close(release)

	if err := <-followerErr; err != nil {
		t.Fatalf("expected the waiting caller to succeed, got %v", err)
	}
	sess, err := store.GetSession(context.Background(), "shared")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.ConversationID != "shared" {
		t.Errorf("expected session for %q, got %+v", "shared", sess)
	}
}

func TestGetSessionCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.GetSession(ctx, "chat-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestUpdateSessionPartial(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpdateSession(ctx, "c", SessionUpdate{AgentOverride: SetOverride("code")}); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if err := store.UpdateSession(ctx, "c", SessionUpdate{ModelOverride: SetOverride("groq/llama-3.3-70b-versatile")}); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	sess, err := store.GetSession(ctx, "c")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.AgentOverride != "code" {
		t.Errorf("expected agent override to survive a model-only update, got %q", sess.AgentOverride)
	}
	if sess.ModelOverride != "groq/llama-3.3-70b-versatile" {
		t.Errorf("unexpected model override %q", sess.ModelOverride)
	}
	if sess.MessageCount != 2 {
		t.Errorf("expected message_count 2 after two updates, got %d", sess.MessageCount)
	}
}

func TestUpdateSessionExplicitClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpdateSession(ctx, "c", SessionUpdate{
		ModelOverride: SetOverride("deepseek/deepseek-chat"),
		AgentOverride: SetOverride("creative"),
	}); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if err := store.UpdateSession(ctx, "c", SessionUpdate{ModelOverride: ClearOverride()}); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	sess, err := store.GetSession(ctx, "c")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.ModelOverride != "" {
		t.Errorf("expected model override cleared, got %q", sess.ModelOverride)
	}
	if sess.AgentOverride != "creative" {
		t.Errorf("expected agent override untouched, got %q", sess.AgentOverride)
	}
}

func TestUpdateSessionCountOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.UpdateSession(ctx, "c", SessionUpdate{}); err != nil {
			t.Fatalf("UpdateSession failed: %v", err)
		}
	}
	sess, _ := store.GetSession(ctx, "c")
	if sess.MessageCount != 3 {
		t.Errorf("expected 3, got %d", sess.MessageCount)
	}
}

func TestResetSessionKeepsHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpdateSession(ctx, "c", SessionUpdate{AgentOverride: SetOverride("code")}); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if err := store.AppendExchange(ctx, "c", "hi", "hello"); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}
	if err := store.ResetSession(ctx, "c"); err != nil {
		t.Fatalf("ResetSession failed: %v", err)
	}

	sess, _ := store.GetSession(ctx, "c")
	if sess.AgentOverride != "" || sess.ModelOverride != "" || sess.MessageCount != 0 {
		t.Errorf("expected reset session, got %+v", sess)
	}
	turns, err := store.ReadContext(ctx, "c", 10)
	if err != nil {
		t.Fatalf("ReadContext failed: %v", err)
	}
	if len(turns) != 2 {
		t.Errorf("expected history untouched (2 turns), got %d", len(turns))
	}
}
